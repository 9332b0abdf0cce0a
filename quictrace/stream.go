package quictrace

import (
	"strings"
	"time"
)

// StreamFlags describe a stream's ownership and direction.
type StreamFlags uint8

const (
	StreamLocalOwned StreamFlags = 1 << iota
	StreamServerInitiated
	StreamUnidirectional
)

func (f StreamFlags) String() string {
	var parts []string
	if f&StreamLocalOwned != 0 {
		parts = append(parts, "LocalOwned")
	}
	if f&StreamServerInitiated != 0 {
		parts = append(parts, "ServerInitiated")
	} else {
		parts = append(parts, "ClientInitiated")
	}
	if f&StreamUnidirectional != 0 {
		parts = append(parts, "Unidirectional")
	} else {
		parts = append(parts, "Bidirectional")
	}
	return strings.Join(parts, "|")
}

// streamFlags derives the flags from a QUIC stream id: bit 0 is the
// initiator, bit 1 the direction.
func streamFlags(streamID uint64, localOwned bool) StreamFlags {
	var f StreamFlags
	if localOwned {
		f |= StreamLocalOwned
	}
	if streamID&0x1 != 0 {
		f |= StreamServerInitiated
	}
	if streamID&0x2 != 0 {
		f |= StreamUnidirectional
	}
	return f
}

// Stream send and receive states as reported by StreamSendState and
// StreamRecvState.
const (
	SendStateDisabled uint8 = iota
	SendStateStarted
	SendStateReset
	SendStateResetAcked
	SendStateFin
	SendStateFinAcked
	SendStateReliableReset
	SendStateReliableResetAcked
)

const (
	RecvStateDisabled uint8 = iota
	RecvStateStarted
	RecvStatePaused
	RecvStateStopped
	RecvStateReset
	RecvStateFin
	RecvStateReliableReset
)

// sendDone reports whether no more data will be sent in state.
func sendDone(state uint8) bool {
	switch state {
	case SendStateDisabled, SendStateResetAcked, SendStateFinAcked, SendStateReliableResetAcked:
		return true
	}
	return false
}

// recvDone reports whether no more data will be received in state.
func recvDone(state uint8) bool {
	switch state {
	case RecvStateDisabled, RecvStateReset, RecvStateFin, RecvStateReliableReset:
		return true
	}
	return false
}

// BlockedInterval is a span during which a stream could not send.
type BlockedInterval struct {
	Start   time.Duration
	End     time.Duration
	Reasons FlowBlockReason
	// Open is set when the interval was closed by destruction or trace end
	// rather than an unblock record.
	Open bool
}

func (b BlockedInterval) Duration() time.Duration {
	return b.End - b.Start
}

// Stream is a QUIC stream.
type Stream struct {
	object

	connection  EntityID
	streamID    uint64
	hasStreamID bool
	flags       StreamFlags

	sendState uint8
	recvState uint8

	blocked     []BlockedInterval
	blockedOpen bool

	framesWritten  uint64
	framesReceived uint64
	appSends       uint64
	appReceives    uint64

	timing StreamTiming
	// timestamp of the previous record folded into the stream
	lastEvent time.Duration
}

// Connection returns the owning connection, 0 if never reported.
func (s *Stream) Connection() EntityID { return s.connection }

// StreamID returns the QUIC stream id.
func (s *Stream) StreamID() (uint64, bool) { return s.streamID, s.hasStreamID }

func (s *Stream) Flags() StreamFlags { return s.flags }

func (s *Stream) SendState() uint8 { return s.sendState }

func (s *Stream) RecvState() uint8 { return s.recvState }

// Blocked returns the out-flow blocked intervals in time order.
func (s *Stream) Blocked() []BlockedInterval { return s.blocked }

// BlockedTime sums the blocked intervals.
func (s *Stream) BlockedTime() time.Duration {
	var d time.Duration
	for _, b := range s.blocked {
		d += b.Duration()
	}
	return d
}

func (s *Stream) FramesWritten() uint64 { return s.framesWritten }

func (s *Stream) FramesReceived() uint64 { return s.framesReceived }

// AppCalls counts application sends and receive completions.
func (s *Stream) AppCalls() (sends, receives uint64) { return s.appSends, s.appReceives }

// Timing returns the phase breakdown of the stream's lifetime.
func (s *Stream) Timing() *StreamTiming { return &s.timing }

func (s *Stream) setInfo(conn EntityID, streamID uint64, localOwned bool) {
	s.connection = conn
	s.streamID = streamID
	s.hasStreamID = true
	s.flags = streamFlags(streamID, localOwned)
}

// setBlocked opens, updates or closes the current blocked interval. A change
// of reasons while blocked starts a new interval.
func (s *Stream) setBlocked(t time.Duration, reasons FlowBlockReason) {
	if s.blockedOpen {
		cur := &s.blocked[len(s.blocked)-1]
		if cur.Reasons == reasons {
			return
		}
		cur.End = t
		s.blockedOpen = false
	}
	if reasons != 0 {
		s.blocked = append(s.blocked, BlockedInterval{Start: t, End: t, Reasons: reasons})
		s.blockedOpen = true
	}
}

func (s *Stream) finish(t time.Duration) {
	if s.blockedOpen {
		cur := &s.blocked[len(s.blocked)-1]
		cur.End = max(t, cur.Start)
		cur.Open = true
		s.blockedOpen = false
	}
	s.timing.finalize(t, s.retired)
}
