package quictrace

import "time"

// Global aggregates trace wide counters.
type Global struct {
	byCategory [categoryCount]uint64
	byID       map[EventID]uint64
	first      time.Duration
	last       time.Duration
	seen       bool
}

// observe counts ev and moves the trace bounds. It reports false when ev is
// older than the last observed event.
func (g *Global) observe(ev *Event) bool {
	g.byCategory[ev.Category]++
	g.byID[ev.ID]++
	if !g.seen {
		g.first, g.last, g.seen = ev.Timestamp, ev.Timestamp, true
		return true
	}
	if ev.Timestamp < g.last {
		return false
	}
	g.last = ev.Timestamp
	return true
}

// ApiCall is one API call on a thread, from ApiEnter to ApiExit or
// ApiExitStatus.
type ApiCall struct {
	ProcessID uint32
	ThreadID  uint32
	Type      uint32
	Handle    uint64
	Start     time.Duration
	End       time.Duration
	Status    uint32
	HasStatus bool
	// Complete is false for calls still open when the trace ended.
	Complete bool
}

func (c *ApiCall) Duration() time.Duration {
	return c.End - c.Start
}
