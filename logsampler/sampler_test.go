package logsampler_test

import (
	"sync"
	"testing"
	"time"

	"github.com/0xrawsec/toast"
	"github.com/tekert/golang-quictrace/logsampler"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingReporter struct {
	mu      sync.Mutex
	reports map[string]int64
}

func (r *recordingReporter) LogSummary(key string, suppressed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reports == nil {
		r.reports = make(map[string]int64)
	}
	r.reports[key] += suppressed
}

func (r *recordingReporter) get(key string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reports[key]
}

func TestDeduplicatingSampler(t *testing.T) {
	t.Run("FirstPassesRepeatsDropped", func(t *testing.T) {
		tt := toast.FromT(t)
		clk := &fakeClock{t: time.Unix(1000, 0)}
		s := logsampler.NewDeduplicatingSampler(1, time.Second, nil, logsampler.WithClock(clk.Now))
		defer s.Close()

		tt.Assert(s.ShouldLog("decode:ConnStats"))
		for i := 0; i < 5; i++ {
			tt.Assert(!s.ShouldLog("decode:ConnStats"))
		}
		tt.Assert(s.Suppressed("decode:ConnStats") == 5)

		// other keys are independent
		tt.Assert(s.ShouldLog("decode:StreamCreated"))
	})

	t.Run("PassesAgainAfterWindow", func(t *testing.T) {
		tt := toast.FromT(t)
		clk := &fakeClock{t: time.Unix(1000, 0)}
		s := logsampler.NewDeduplicatingSampler(1, time.Second, nil, logsampler.WithClock(clk.Now))
		defer s.Close()

		tt.Assert(s.ShouldLog("k"))
		clk.Advance(500 * time.Millisecond)
		tt.Assert(!s.ShouldLog("k"))
		clk.Advance(500 * time.Millisecond)
		tt.Assert(s.ShouldLog("k"))
	})

	t.Run("BurstLetsEveryNth", func(t *testing.T) {
		tt := toast.FromT(t)
		clk := &fakeClock{t: time.Unix(1000, 0)}
		s := logsampler.NewDeduplicatingSampler(3, time.Hour, nil, logsampler.WithClock(clk.Now))
		defer s.Close()

		tt.Assert(s.ShouldLog("k"))
		passed := 0
		for i := 0; i < 9; i++ {
			if s.ShouldLog("k") {
				passed++
			}
		}
		tt.Assert(passed == 3)
		tt.Assert(s.Suppressed("k") == 6)
	})

	t.Run("CloseReportsSuppressed", func(t *testing.T) {
		tt := toast.FromT(t)
		clk := &fakeClock{t: time.Unix(1000, 0)}
		rep := &recordingReporter{}
		s := logsampler.NewDeduplicatingSampler(1, time.Minute, rep, logsampler.WithClock(clk.Now))

		s.ShouldLog("anomaly:DestroyUnknown")
		for i := 0; i < 4; i++ {
			s.ShouldLog("anomaly:DestroyUnknown")
		}
		s.ShouldLog("quiet")

		s.Close()
		s.Close()
		tt.Assert(rep.get("anomaly:DestroyUnknown") == 4)
		tt.Assert(rep.get("quiet") == 0)
	})

	t.Run("Concurrent", func(t *testing.T) {
		tt := toast.FromT(t)
		s := logsampler.NewDeduplicatingSampler(1, time.Hour, nil)
		defer s.Close()

		var wg sync.WaitGroup
		var mu sync.Mutex
		passed := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if s.ShouldLog("shared") {
						mu.Lock()
						passed++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()
		tt.Assert(passed == 1)
		tt.Assert(s.Suppressed("shared") == 799)
	})
}
