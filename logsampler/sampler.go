/*
Package logsampler limits repeated log lines on hot paths.

A decoder that hits the same malformed record shape thousands of times per
second should log it once per window and report how many were dropped, not
flood the output. Keys identify the log site (for example a record name plus
the failure kind).
*/
package logsampler

import (
	"sync"
	"sync/atomic"
	"time"
)

// SummaryReporter receives the number of messages dropped for a key. It keeps
// the sampler independent from any logging library.
type SummaryReporter interface {
	LogSummary(key string, suppressed int64)
}

// Sampler decides whether a message should be written.
type Sampler interface {
	// ShouldLog reports whether the message for key should be written now.
	ShouldLog(key string) bool
	// Flush reports every pending suppressed count.
	Flush()
	// Close stops background work and flushes one last time.
	Close()
}

type keyState struct {
	suppressed atomic.Int64
	lastSeen   atomic.Int64
	lastLogged atomic.Int64
	hits       atomic.Int64
}

// DeduplicatingSampler lets the first message of a key through, then drops
// the same key until window has elapsed. With burst > 1 every burst-th
// dropped message is also let through.
type DeduplicatingSampler struct {
	burst    int64
	window   int64
	keys     sync.Map // string -> *keyState
	reporter SummaryReporter
	now      func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type Option func(*DeduplicatingSampler)

// WithClock replaces time.Now, tests use it to step time.
func WithClock(now func() time.Time) Option {
	return func(s *DeduplicatingSampler) {
		s.now = now
	}
}

// NewDeduplicatingSampler creates a sampler. A nil reporter disables
// summaries and the background reporting goroutine.
func NewDeduplicatingSampler(burst int, window time.Duration, reporter SummaryReporter, opts ...Option) *DeduplicatingSampler {
	s := &DeduplicatingSampler{
		burst:    int64(burst),
		window:   int64(window),
		reporter: reporter,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reporter != nil {
		go s.reportLoop()
	} else {
		close(s.done)
	}
	return s
}

func (s *DeduplicatingSampler) ShouldLog(key string) bool {
	now := s.now().UnixNano()
	v, _ := s.keys.LoadOrStore(key, &keyState{})
	st := v.(*keyState)
	st.lastSeen.Store(now)

	last := st.lastLogged.Load()
	if last == 0 || now-last >= s.window {
		if st.lastLogged.CompareAndSwap(last, now) {
			st.hits.Store(0)
			return true
		}
	}

	hits := st.hits.Add(1)
	if s.burst > 1 && hits%s.burst == 0 {
		return true
	}
	st.suppressed.Add(1)
	return false
}

// Suppressed returns the pending dropped count for key.
func (s *DeduplicatingSampler) Suppressed(key string) int64 {
	if v, ok := s.keys.Load(key); ok {
		return v.(*keyState).suppressed.Load()
	}
	return 0
}

func (s *DeduplicatingSampler) Flush() {
	s.report(func(*keyState) bool { return true })
}

// report hands pending counts to the reporter for every key accepted by
// expired and forgets those keys.
func (s *DeduplicatingSampler) report(expired func(*keyState) bool) {
	s.keys.Range(func(k, v any) bool {
		st := v.(*keyState)
		if !expired(st) {
			return true
		}
		if n := st.suppressed.Swap(0); n > 0 && s.reporter != nil {
			s.reporter.LogSummary(k.(string), n)
		}
		s.keys.Delete(k)
		return true
	})
}

func (s *DeduplicatingSampler) reportLoop() {
	defer close(s.done)
	interval := max(time.Duration(s.window)*3, 10*time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := s.now().Add(-interval).UnixNano()
			s.report(func(st *keyState) bool { return st.lastSeen.Load() < cutoff })
		case <-s.stop:
			return
		}
	}
}

func (s *DeduplicatingSampler) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.Flush()
	})
}
