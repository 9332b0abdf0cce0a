// Package phusluadapter binds a logsampler.Sampler to a phuslu/log logger.
package phusluadapter

import (
	"time"

	"github.com/phuslu/log"
	"github.com/tekert/golang-quictrace/logsampler"
)

// SampledLogger is a phuslu logger with sampled variants of the level
// methods. Unsampled calls go straight to the embedded logger.
type SampledLogger struct {
	*log.Logger
	sampler logsampler.Sampler
}

// New wraps logger with a deduplicating sampler that reports suppressed counts
// back through logger.
func New(logger *log.Logger, burst int, window time.Duration, opts ...logsampler.Option) *SampledLogger {
	l := &SampledLogger{Logger: logger}
	l.sampler = logsampler.NewDeduplicatingSampler(burst, window, l, opts...)
	return l
}

// NewWithSampler wraps logger with a caller provided sampler.
func NewWithSampler(logger *log.Logger, sampler logsampler.Sampler) *SampledLogger {
	return &SampledLogger{Logger: logger, sampler: sampler}
}

func (l *SampledLogger) Sampler() logsampler.Sampler {
	return l.sampler
}

// SampledDebug returns a debug entry, or nil when the level is disabled or the
// sampler drops key. Entry methods are nil safe so callers chain as usual.
func (l *SampledLogger) SampledDebug(key string) *log.Entry {
	if l.Level > log.DebugLevel || !l.sampler.ShouldLog(key) {
		return nil
	}
	return l.Debug().Str("sample_key", key)
}

func (l *SampledLogger) SampledWarn(key string) *log.Entry {
	if l.Level > log.WarnLevel || !l.sampler.ShouldLog(key) {
		return nil
	}
	return l.Warn().Str("sample_key", key)
}

func (l *SampledLogger) SampledError(key string) *log.Entry {
	if l.Level > log.ErrorLevel || !l.sampler.ShouldLog(key) {
		return nil
	}
	return l.Error().Str("sample_key", key)
}

// LogSummary implements logsampler.SummaryReporter.
func (l *SampledLogger) LogSummary(key string, suppressed int64) {
	l.Info().Str("sample_key", key).Int64("suppressed", suppressed).Msg("suppressed repeated log messages")
}

// Close stops the sampler and flushes pending summaries.
func (l *SampledLogger) Close() {
	l.sampler.Close()
}
