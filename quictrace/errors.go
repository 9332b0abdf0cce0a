package quictrace

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Decoding
	ErrTruncated     = errors.New("record truncated")
	ErrPointerWidth  = errors.New("invalid pointer width")
	ErrAddressFamily = errors.New("unknown address family")

	// Model lifecycle
	ErrNotFinalized     = errors.New("model is not finalized")
	ErrAlreadyFinalized = errors.New("model already finalized")

	// Configuration
	ErrInvalidParseMode = errors.New("invalid parse mode")
)

// RecordError reports a record that could not be decoded. Only that record is
// lost; decoding continues with the next one.
type RecordError struct {
	ID        EventID
	Timestamp time.Duration
	Offset    int
	Err       error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s (%d) at %s, offset %d: %v", e.ID, uint16(e.ID), e.Timestamp, e.Offset, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
