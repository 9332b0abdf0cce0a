package quictrace

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction selects the send or receive side of a connection.
type Direction uint8

const (
	DirectionTx Direction = iota
	DirectionRx
)

func (d Direction) String() string {
	if d == DirectionRx {
		return "rx"
	}
	return "tx"
}

// RatePoint is the throughput between two consecutive byte samples.
type RatePoint struct {
	Start time.Duration
	End   time.Duration
	// Bytes transferred in the window.
	Bytes uint64
	// BitsPerSecond is 0 when the counter went backwards. A zero length
	// window repeats the previous rate.
	BitsPerSecond float64
}

// Query is the read only view of a finalized Model. Returned slices are owned
// by the model and must not be modified.
type Query struct {
	m *Model
}

func (q *Query) RunID() uuid.UUID { return q.m.runID }

// TraceStart is the timestamp of the first folded event.
func (q *Query) TraceStart() time.Duration { return q.m.global.first }

// TraceEnd is the timestamp of the last folded event.
func (q *Query) TraceEnd() time.Duration { return q.m.global.last }

func (q *Query) Duration() time.Duration { return q.m.global.last - q.m.global.first }

// Workers returns every worker in id order, retired ones included.
func (q *Query) Workers() []*Worker { return q.m.workers }

func (q *Query) Connections() []*Connection { return q.m.connections }

func (q *Query) Streams() []*Stream { return q.m.streams }

func (q *Query) Datapaths() []*Datapath { return q.m.datapaths }

func (q *Query) Worker(id EntityID) (*Worker, bool) {
	w := q.m.worker(id)
	return w, w != nil
}

func (q *Query) Connection(id EntityID) (*Connection, bool) {
	c := q.m.connection(id)
	return c, c != nil
}

func (q *Query) Stream(id EntityID) (*Stream, bool) {
	s := q.m.stream(id)
	return s, s != nil
}

func (q *Query) Datapath(id EntityID) (*Datapath, bool) {
	d := q.m.datapath(id)
	return d, d != nil
}

// StreamsOf returns the streams of a connection.
func (q *Query) StreamsOf(conn EntityID) []*Stream {
	c := q.m.connection(conn)
	if c == nil {
		return nil
	}
	out := make([]*Stream, 0, len(c.streams))
	for _, id := range c.streams {
		out = append(out, q.m.stream(id))
	}
	return out
}

// ConnectionsOn returns the connections ever assigned to a worker.
func (q *Query) ConnectionsOn(worker EntityID) []*Connection {
	w := q.m.worker(worker)
	if w == nil {
		return nil
	}
	out := make([]*Connection, 0, len(w.connections))
	for _, id := range w.connections {
		out = append(out, q.m.connection(id))
	}
	return out
}

// ActivePercent is the share of the trace duration the worker spent active,
// in percent. It is 0 for an empty trace.
func (q *Query) ActivePercent(worker EntityID) (float64, error) {
	w := q.m.worker(worker)
	if w == nil {
		return 0, fmt.Errorf("unknown worker %d", worker)
	}
	d := q.Duration()
	if d <= 0 {
		return 0, nil
	}
	return float64(w.totalActive) * 100 / float64(d), nil
}

// RateSeries derives the throughput of one direction of a connection from its
// consecutive cumulative byte samples.
func (q *Query) RateSeries(conn EntityID, dir Direction) ([]RatePoint, error) {
	c := q.m.connection(conn)
	if c == nil {
		return nil, fmt.Errorf("unknown connection %d", conn)
	}
	samples := c.tx
	if dir == DirectionRx {
		samples = c.rx
	}
	return rateSeries(samples), nil
}

func rateSeries(samples []ByteSample) []RatePoint {
	if len(samples) < 2 {
		return nil
	}
	out := make([]RatePoint, 0, len(samples)-1)
	var prev float64
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		p := RatePoint{Start: a.Time, End: b.Time}
		switch {
		case b.Bytes < a.Bytes:
			p.BitsPerSecond = 0
		case b.Time <= a.Time:
			p.Bytes = b.Bytes - a.Bytes
			p.BitsPerSecond = prev
		default:
			p.Bytes = b.Bytes - a.Bytes
			p.BitsPerSecond = float64(p.Bytes) * 8 / (b.Time - a.Time).Seconds()
		}
		prev = p.BitsPerSecond
		out = append(out, p)
	}
	return out
}

// Throughput returns one sample series of a connection.
func (q *Query) Throughput(conn EntityID, series TputSeries) ([]TputSample, error) {
	c := q.m.connection(conn)
	if c == nil {
		return nil, fmt.Errorf("unknown connection %d", conn)
	}
	if series >= tputSeriesCount {
		return nil, fmt.Errorf("unknown throughput series %d", series)
	}
	return c.Throughput(series), nil
}

// ScheduleTimeline returns the spans between consecutive scheduling state
// changes of a connection. The state entered last has no end and is not
// listed.
func (q *Query) ScheduleTimeline(conn EntityID) ([]ScheduleInterval, error) {
	c := q.m.connection(conn)
	if c == nil {
		return nil, fmt.Errorf("unknown connection %d", conn)
	}
	if len(c.schedule) < 2 {
		return nil, nil
	}
	out := make([]ScheduleInterval, 0, len(c.schedule)-1)
	for i := 1; i < len(c.schedule); i++ {
		a, b := c.schedule[i-1], c.schedule[i]
		out = append(out, ScheduleInterval{
			Start:    a.Time,
			Duration: max(b.Time-a.Time, 0),
			ThreadID: a.ThreadID,
			State:    a.State,
		})
	}
	return out, nil
}

// ExecutionTimeline returns the operations run on a connection.
func (q *Query) ExecutionTimeline(conn EntityID) ([]ExecInterval, error) {
	c := q.m.connection(conn)
	if c == nil {
		return nil, fmt.Errorf("unknown connection %d", conn)
	}
	return c.execs, nil
}

// FlowBlockedTimeline returns the spans during which a connection could not
// send. Each ConnOutFlowBlocked sample with reasons lasts until the next
// sample with different reasons; the last one ends at the connection's last
// event and is marked Open.
func (q *Query) FlowBlockedTimeline(conn EntityID) ([]BlockedInterval, error) {
	c := q.m.connection(conn)
	if c == nil {
		return nil, fmt.Errorf("unknown connection %d", conn)
	}
	var out []BlockedInterval
	open := false
	for _, b := range c.blocked {
		if open {
			cur := &out[len(out)-1]
			if cur.Reasons == b.Reasons {
				continue
			}
			cur.End = max(b.Time, cur.Start)
			open = false
		}
		if b.Reasons != 0 {
			out = append(out, BlockedInterval{Start: b.Time, End: b.Time, Reasons: b.Reasons})
			open = true
		}
	}
	if open {
		cur := &out[len(out)-1]
		cur.End = max(c.final, cur.Start)
		cur.Open = true
	}
	return out, nil
}

// EventCounts returns the number of folded events per category.
func (q *Query) EventCounts() map[Category]uint64 {
	out := make(map[Category]uint64, categoryCount)
	for i, n := range q.m.global.byCategory {
		out[Category(i)] = n
	}
	return out
}

// EventIDCounts returns the number of folded events per record id.
func (q *Query) EventIDCounts() map[EventID]uint64 {
	out := make(map[EventID]uint64, len(q.m.global.byID))
	for id, n := range q.m.global.byID {
		out[id] = n
	}
	return out
}

// ApiCalls returns the API calls in enter order. Calls pair by thread: an
// ApiEnter on a thread that still has an open call ends that call at the new
// enter and leaves it incomplete, so nested calls are not stacked. Calls still
// open at the trace end end there.
func (q *Query) ApiCalls() []ApiCall { return q.m.apiCalls }

func (q *Query) Anomalies() map[Anomaly]uint64 {
	out := make(map[Anomaly]uint64)
	for i, n := range q.m.anomalies {
		if n > 0 {
			out[Anomaly(i)] = n
		}
	}
	return out
}

// DecodeStats returns the decoder outcome counts when the model was built by
// a Processor.
func (q *Query) DecodeStats() DecodeStats { return q.m.decode }
