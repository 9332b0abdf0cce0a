package quictrace

import (
	"io"
	"os"

	"github.com/phuslu/log"
	"github.com/tekert/golang-quictrace/logsampler"
	"github.com/tekert/golang-quictrace/logsampler/adapters/phusluadapter"
)

// NewLogger returns a JSON logger writing to w at the named level
// ("trace", "debug", "info", "warn", "error"). A nil w writes to stderr.
func NewLogger(level string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return &log.Logger{
		Level:  log.ParseLevel(level),
		Writer: &log.IOWriter{Writer: w},
	}
}

// discardLogger drops everything; used when no logger is configured.
func discardLogger() *phusluadapter.SampledLogger {
	l := &log.Logger{
		Level:  log.PanicLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
	return phusluadapter.NewWithSampler(l, logsampler.NewDeduplicatingSampler(1, 0, nil))
}

func logRecordError(l *phusluadapter.SampledLogger, rec *RawRecord, err error) {
	l.SampledWarn("decode:"+rec.ID.String()).
		Uint16("id", uint16(rec.ID)).
		Dur("timestamp", rec.Timestamp).
		Uint32("pid", rec.ProcessID).
		Uint32("tid", rec.ThreadID).
		Int("size", len(rec.Data)).
		Err(err).
		Msg("dropping malformed record")
}

func logAnomaly(l *phusluadapter.SampledLogger, a Anomaly, ev *Event) {
	l.SampledWarn("anomaly:"+a.String()+":"+ev.ID.String()).
		Str("anomaly", a.String()).
		Str("event", ev.ID.String()).
		Str("category", ev.Category.String()).
		Str("pointer", ev.PointerString()).
		Dur("timestamp", ev.Timestamp).
		Uint32("pid", ev.ProcessID).
		Msg("fold anomaly")
}
