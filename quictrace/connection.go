package quictrace

import "time"

// ConnectionState is the coarse lifecycle of a connection.
type ConnectionState uint8

const (
	ConnStateAllocated ConnectionState = iota
	ConnStateHandshakeComplete
	ConnStateShutdown
	ConnStateClosed
	ConnStateDestroyed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnStateAllocated:
		return "Allocated"
	case ConnStateHandshakeComplete:
		return "HandshakeComplete"
	case ConnStateShutdown:
		return "Shutdown"
	case ConnStateClosed:
		return "Closed"
	case ConnStateDestroyed:
		return "Destroyed"
	}
	return "Unknown"
}

// Connection scheduling states as reported by ConnScheduleState.
const (
	ScheduleIdle       uint32 = 0
	ScheduleQueued     uint32 = 1
	ScheduleProcessing uint32 = 2
)

type WorkerAssignment struct {
	Time   time.Duration
	Worker EntityID
	// Implied is set when the worker was inferred from the processing thread.
	Implied bool
}

type ScheduleTransition struct {
	Time     time.Duration
	State    uint32
	ThreadID uint32
}

// ShutdownRecord describes how a connection was shut down.
type ShutdownRecord struct {
	Time        time.Duration
	ErrorCode   uint64
	Remote      bool
	QuicStatus  bool
	Application bool
}

// ByteSample is a cumulative byte counter observed at Time.
type ByteSample struct {
	Time  time.Duration
	Bytes uint64
}

type FlowBlockSample struct {
	Time    time.Duration
	Reasons FlowBlockReason
}

// ExecInterval is an operation run on a connection, from its exec record to
// the next exec or schedule record.
type ExecInterval struct {
	Start     time.Duration
	Duration  time.Duration
	ThreadID  uint32
	Processor uint16
	// Kind is ConnExecOper, ConnExecApiOper or ConnExecTimerOper, Type is
	// read in that record's namespace.
	Kind EventID
	Type uint32
}

// ScheduleInterval is a span a connection spent in one scheduling state.
type ScheduleInterval struct {
	Start    time.Duration
	Duration time.Duration
	ThreadID uint32
	State    uint32
}

type CIDRecord struct {
	Time     time.Duration
	Sequence uint64
	CID      []byte
	Source   bool
}

// Connection is a QUIC connection.
type Connection struct {
	object

	isServer      bool
	correlationID uint64
	state         ConnectionState

	handshakeComplete time.Duration
	handshakeDone     bool
	closed            time.Duration
	isClosed          bool

	workers  []WorkerAssignment
	schedule []ScheduleTransition
	execOps  uint64
	execs    []ExecInterval
	exec     ExecInterval
	execOpen bool
	shutdown *ShutdownRecord

	tx      []ByteSample
	rx      []ByteSample
	blocked []FlowBlockSample
	cids    []CIDRecord
	streams []EntityID

	tput [tputSeriesCount]tputSampler

	lastOutFlow                OutFlowStats
	hasOutFlow                 bool
	lastStreamFlow             StreamFlowStats
	hasStreamFlow              bool
	congestionEvents           uint32
	persistentCongestionEvents uint32
	stats                      *ConnectionStats

	datapathBytesSent uint64
	datapathBytesRecv uint64

	// last event folded into the connection, datapath sends attributed to it
	// included
	lastEvent time.Duration
	// end of the connection's sample series, set by finish
	final time.Duration
}

func (c *Connection) IsServer() bool { return c.isServer }

func (c *Connection) CorrelationID() uint64 { return c.correlationID }

func (c *Connection) State() ConnectionState { return c.state }

func (c *Connection) HandshakeComplete() (time.Duration, bool) {
	return c.handshakeComplete, c.handshakeDone
}

// Closed returns when the application closed its handle.
func (c *Connection) Closed() (time.Duration, bool) { return c.closed, c.isClosed }

// Workers returns the worker assignment history.
func (c *Connection) Workers() []WorkerAssignment { return c.workers }

// Worker returns the currently assigned worker, 0 if none.
func (c *Connection) Worker() EntityID {
	if len(c.workers) == 0 {
		return 0
	}
	return c.workers[len(c.workers)-1].Worker
}

func (c *Connection) Schedule() []ScheduleTransition { return c.schedule }

// SchedulingState returns the latest scheduling state, ok is false before the
// first ConnScheduleState.
func (c *Connection) SchedulingState() (state uint32, ok bool) {
	if len(c.schedule) == 0 {
		return ScheduleIdle, false
	}
	return c.schedule[len(c.schedule)-1].State, true
}

// Executions returns the operations run on the connection. An operation with
// no following exec or schedule record has no end and is not listed.
func (c *Connection) Executions() []ExecInterval { return c.execs }

// LastEvent is the timestamp of the last record folded into the connection.
func (c *Connection) LastEvent() time.Duration { return c.final }

// ExecOperations counts operations executed on the connection.
func (c *Connection) ExecOperations() uint64 { return c.execOps }

// Shutdown returns the shutdown record, nil if the connection was never shut
// down.
func (c *Connection) Shutdown() *ShutdownRecord { return c.shutdown }

// TxSamples returns the cumulative bytes sent samples.
func (c *Connection) TxSamples() []ByteSample { return c.tx }

// RxSamples returns the cumulative bytes received samples.
func (c *Connection) RxSamples() []ByteSample { return c.rx }

func (c *Connection) FlowBlocked() []FlowBlockSample { return c.blocked }

func (c *Connection) ConnectionIDs() []CIDRecord { return c.cids }

// Streams returns the ids of the streams opened on the connection.
func (c *Connection) Streams() []EntityID { return c.streams }

// LastOutFlow returns the latest ConnOutFlowStats snapshot.
func (c *Connection) LastOutFlow() (OutFlowStats, bool) { return c.lastOutFlow, c.hasOutFlow }

// LastStreamFlow returns the latest ConnOutFlowStreamStats snapshot.
func (c *Connection) LastStreamFlow() (StreamFlowStats, bool) {
	return c.lastStreamFlow, c.hasStreamFlow
}

// Throughput returns the samples of one series in time order.
func (c *Connection) Throughput(series TputSeries) []TputSample {
	if series >= tputSeriesCount {
		return nil
	}
	return c.tput[series].samples
}

// DatapathBytes returns the datapath bytes attributed to the connection
// through the thread that last processed it.
func (c *Connection) DatapathBytes() (sent, recv uint64) {
	return c.datapathBytesSent, c.datapathBytesRecv
}

// Stats returns the final statistics. The ConnStats snapshot is used when the
// trace has one, otherwise the values are derived from the observed flow
// samples and congestion events.
func (c *Connection) Stats() ConnectionStats {
	if c.stats != nil {
		return *c.stats
	}
	s := ConnectionStats{
		CongestionCount:           c.congestionEvents,
		PersistentCongestionCount: c.persistentCongestionEvents,
	}
	if c.hasOutFlow {
		s.SmoothedRTT = c.lastOutFlow.SmoothedRTT
	}
	if n := len(c.tx); n > 0 {
		s.SendTotalBytes = c.tx[n-1].Bytes
	}
	if n := len(c.rx); n > 0 {
		s.RecvTotalBytes = c.rx[n-1].Bytes
	}
	return s
}

// HasStatsSnapshot reports whether Stats comes from a ConnStats record.
func (c *Connection) HasStatsSnapshot() bool { return c.stats != nil }

func (c *Connection) assignWorker(t time.Duration, w EntityID, implied bool) bool {
	if c.Worker() == w {
		return false
	}
	c.workers = append(c.workers, WorkerAssignment{Time: t, Worker: w, Implied: implied})
	return true
}

func (c *Connection) sample(series TputSeries, t time.Duration, v uint64) {
	c.tput[series].update(series, t, v)
}

// seen records an event at t.
func (c *Connection) seen(t time.Duration) {
	c.lastEvent = max(c.lastEvent, t)
}

// startExec closes the running operation at t and opens next.
func (c *Connection) startExec(t time.Duration, next ExecInterval) {
	c.endExec(t)
	c.exec, c.execOpen = next, true
}

// endExec closes the running operation at t.
func (c *Connection) endExec(t time.Duration) {
	if !c.execOpen {
		return
	}
	c.exec.Duration = max(t-c.exec.Start, 0)
	c.execs = append(c.execs, c.exec)
	c.execOpen = false
}

func (c *Connection) lastSchedule() (ScheduleTransition, bool) {
	if len(c.schedule) == 0 {
		return ScheduleTransition{}, false
	}
	return c.schedule[len(c.schedule)-1], true
}

func (c *Connection) setState(s ConnectionState) {
	if s > c.state {
		c.state = s
	}
}

func (c *Connection) finish(t time.Duration) {
	c.final = max(c.lastEvent, c.created)
	if c.retired {
		c.state = ConnStateDestroyed
		c.final = max(c.final, t)
	}
	for i := range c.tput {
		c.tput[i].finish(c.final)
	}
}
