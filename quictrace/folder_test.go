package quictrace

import (
	"net/netip"
	"testing"
	"time"

	"github.com/0xrawsec/toast"
	"github.com/tekert/golang-quictrace/internal/test"
)

const (
	connA   uint64 = 0x7f00_0000_1000
	connB   uint64 = 0x7f00_0000_2000
	streamS uint64 = 0x7f00_0000_3000
	workerW uint64 = 0x7f00_0000_4000
	workerX uint64 = 0x7f00_0000_5000
	dpD     uint64 = 0x7f00_0000_6000
)

// event builds an event on process 1, thread 1.
func event(id EventID, t time.Duration, ptr uint64, p Payload) *Event {
	return onThread(1, id, t, ptr, p)
}

func onThread(tid uint32, id EventID, t time.Duration, ptr uint64, p Payload) *Event {
	return &Event{
		Header: Header{
			ID:           id,
			Category:     id.BlockCategory(),
			Timestamp:    t,
			ProcessID:    1,
			ThreadID:     tid,
			PointerWidth: 8,
			Pointer:      ptr,
		},
		Payload: p,
	}
}

func fold(t *testing.T, events ...*Event) *Query {
	t.Helper()
	tt := test.FromT(t)
	f := NewFolder(NewModel())
	for _, ev := range events {
		tt.CheckErr(f.Fold(ev))
	}
	q, err := f.Finalize()
	tt.CheckErr(err)
	return q
}

func TestFoldPointerReuse(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	q := fold(t,
		event(ConnCreated, 0, connA, ConnectionInfo{}),
		event(ConnDestroyed, 10, connA, nil),
		event(ConnCreated, 20, connA, ConnectionInfo{IsServer: true}),
		event(ConnDestroyed, 30, connA, nil),
	)

	conns := q.Connections()
	tt.Assertf(len(conns) == 2, "got %d connections", len(conns))
	tt.Assert(conns[0].ID() == 1 && conns[1].ID() == 2)
	tt.Assert(!conns[0].IsServer() && conns[1].IsServer())

	end, ok := conns[0].Destroyed()
	tt.Assert(ok && end == 10)
	tt.Assert(conns[1].Created() == 20)
	tt.Assert(conns[1].State() == ConnStateDestroyed)
	tt.Assert(len(q.Anomalies()) == 0)
}

func TestFoldCreateWhileLive(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	q := fold(t,
		event(ConnCreated, 0, connA, ConnectionInfo{}),
		event(ConnCreated, 5, connA, ConnectionInfo{}),
	)
	tt.Assert(len(q.Connections()) == 2)
	end, ok := q.Connections()[0].Destroyed()
	tt.Assert(ok && end == 5)
	_, ok = q.Connections()[1].Destroyed()
	tt.Assert(!ok)
	tt.Assert(q.Anomalies()[AnomalyCreateWhileLive] == 1)
}

func TestFoldDestroyUnknown(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	q := fold(t,
		event(ConnDestroyed, 0, connA, nil),
		event(StreamDestroyed, 1, streamS, nil),
	)
	tt.Assert(len(q.Connections()) == 0)
	tt.Assert(len(q.Streams()) == 0)
	tt.Assert(q.Anomalies()[AnomalyDestroyUnknown] == 2)
}

func TestFoldWorkerActivePercent(t *testing.T) {
	t.Parallel()

	t.Run("ClosedInterval", func(t *testing.T) {
		tt := test.FromT(t)
		q := fold(t,
			event(WorkerCreated, 0, workerW, WorkerInfo{IdealProcessor: 2, Owner: 0x10}),
			event(WorkerActivityStateUpdated, 0, workerW, WorkerActivity{IsActive: true}),
			event(WorkerActivityStateUpdated, 100, workerW, WorkerActivity{IsActive: false}),
			event(ConnCreated, 200, connA, ConnectionInfo{}),
		)
		pct, err := q.ActivePercent(1)
		tt.CheckErr(err)
		tt.Assertf(pct == 50, "active %v%%", pct)

		w, ok := q.Worker(1)
		tt.Assert(ok)
		tt.Assert(w.IdealProcessor() == 2 && w.Owner() == 0x10)
		tt.Assert(len(w.Activity()) == 2)
		tid, ok := w.ThreadID()
		tt.Assert(ok && tid == 1)
	})

	t.Run("OpenAtTraceEnd", func(t *testing.T) {
		tt := test.FromT(t)
		q := fold(t,
			event(WorkerActivityStateUpdated, 0, workerW, WorkerActivity{IsActive: true}),
			event(ConnCreated, 200, connA, ConnectionInfo{}),
		)
		pct, err := q.ActivePercent(1)
		tt.CheckErr(err)
		tt.Assertf(pct == 100, "active %v%%", pct)
		w, _ := q.Worker(1)
		tt.Assert(w.Origin() == OriginImplicit)
		tt.Assert(w.TotalActive() == 200)
	})

	t.Run("ClosedByDestroy", func(t *testing.T) {
		tt := test.FromT(t)
		q := fold(t,
			event(WorkerActivityStateUpdated, 0, workerW, WorkerActivity{IsActive: true}),
			event(WorkerDestroyed, 40, workerW, nil),
			event(ConnCreated, 100, connA, ConnectionInfo{}),
		)
		pct, err := q.ActivePercent(1)
		tt.CheckErr(err)
		tt.Assertf(pct == 40, "active %v%%", pct)
	})

	t.Run("RegressedTimestamp", func(t *testing.T) {
		tt := test.FromT(t)
		q := fold(t,
			event(WorkerActivityStateUpdated, 10, workerW, WorkerActivity{IsActive: true}),
			// goes idle before it went active
			event(WorkerActivityStateUpdated, 5, workerW, WorkerActivity{IsActive: false}),
			event(WorkerActivityStateUpdated, 20, workerW, WorkerActivity{IsActive: true}),
			event(WorkerActivityStateUpdated, 30, workerW, WorkerActivity{IsActive: false}),
			event(ConnCreated, 60, connA, ConnectionInfo{}),
		)
		w, _ := q.Worker(1)
		test.Equal(tt, w.TotalActive(), 10)
		pct, err := q.ActivePercent(1)
		tt.CheckErr(err)
		tt.Assertf(pct == 20, "active %v%%", pct)
		tt.Assert(q.Anomalies()[AnomalyTimestampRegression] == 1)
	})
}

func TestFoldQueueDelay(t *testing.T) {
	t.Parallel()
	tt := toast.FromT(t)

	q := fold(t,
		event(WorkerQueueDelayUpdated, 0, workerW, WorkerQueueDelay{QueueDelay: 100}),
		event(WorkerQueueDelayUpdated, 5, workerW, WorkerQueueDelay{QueueDelay: 300}),
	)
	w, ok := q.Worker(1)
	tt.Assert(ok)
	tt.Assert(len(w.QueueDelays()) == 2)
	tt.Assert(w.AverageQueueDelay() == 200*time.Microsecond)
}

func TestFoldRundownDatesToTraceStart(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	q := fold(t,
		event(ApiEnter, 10, 0, ApiCallInfo{Type: 1}),
		event(ConnRundown, 50, connA, ConnectionInfo{CorrelationID: 9}),
		event(StreamAppSend, 60, streamS, nil),
		event(StreamRundown, 70, streamS, StreamInfo{Connection: connA, StreamID: 0}),
	)
	c, ok := q.Connection(1)
	tt.Assert(ok)
	tt.Assertf(c.Created() == 10, "created at %v", c.Created())
	tt.Assert(c.Origin() == OriginRundown)
	tt.Assert(c.CorrelationID() == 9)

	// an implicit entity is redated by its rundown
	s, ok := q.Stream(1)
	tt.Assert(ok)
	tt.Assert(len(q.Streams()) == 1)
	tt.Assert(s.Created() == 10 && s.Origin() == OriginRundown)
	tt.Assert(s.Connection() == c.ID())
}

func TestFoldStreamLinksToSynthesizedConnection(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	q := fold(t,
		event(StreamCreated, 5, streamS, StreamInfo{Connection: connB, StreamID: 3}),
		event(ConnCreated, 6, connB, ConnectionInfo{IsServer: true}),
		event(StreamAppSend, 7, streamS, nil),
		event(StreamWriteFrames, 8, streamS, PacketRef{PacketID: 1}),
	)

	tt.Assert(len(q.Connections()) == 1)
	c, _ := q.Connection(1)
	// the create record adopts the implicit connection
	tt.Assert(c.Origin() == OriginCreated)
	tt.Assert(c.Created() == 5)
	tt.Assert(c.IsServer())

	s, _ := q.Stream(1)
	tt.Assert(s.Connection() == 1)
	id, ok := s.StreamID()
	tt.Assert(ok && id == 3)
	tt.Assert(s.Flags() == StreamServerInitiated|StreamUnidirectional)
	tt.Assert(s.Flags().String() == "ServerInitiated|Unidirectional")
	sends, _ := s.AppCalls()
	tt.Assert(sends == 1 && s.FramesWritten() == 1)

	streams := q.StreamsOf(1)
	tt.Assert(len(streams) == 1 && streams[0] == s)
}

func TestFoldStreamAlloc(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	q := fold(t,
		event(ConnCreated, 0, connA, ConnectionInfo{}),
		event(StreamAlloc, 1, streamS, StreamAllocInfo{Connection: connA}),
		event(StreamAlloc, 2, streamS, StreamAllocInfo{Connection: connA}),
	)
	s, _ := q.Stream(1)
	tt.Assert(s.Connection() == 1)
	_, ok := s.StreamID()
	tt.Assert(!ok)
	tt.Assert(len(q.StreamsOf(1)) == 1)
}

func TestFoldStreamMovesConnection(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	q := fold(t,
		event(ConnCreated, 0, connA, ConnectionInfo{}),
		event(ConnCreated, 0, connB, ConnectionInfo{}),
		event(StreamAlloc, 1, streamS, StreamAllocInfo{Connection: connA}),
		// the create record names another connection
		event(StreamCreated, 2, streamS, StreamInfo{Connection: connB, StreamID: 4}),
	)

	s, _ := q.Stream(1)
	tt.Assert(s.Connection() == 2)
	tt.Assert(len(q.StreamsOf(1)) == 0)
	a, _ := q.Connection(1)
	tt.Assert(len(a.Streams()) == 0)
	streams := q.StreamsOf(2)
	tt.Assert(len(streams) == 1 && streams[0] == s)
}

func TestFoldStreamBlockedIntervals(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	blocked := func(t time.Duration, r FlowBlockReason) *Event {
		return event(StreamOutFlowBlocked, t, streamS, FlowBlocked{Reasons: r})
	}
	q := fold(t,
		blocked(10, BlockedPacing),
		blocked(20, BlockedPacing),
		blocked(30, BlockedCongestionControl),
		blocked(40, 0),
		blocked(50, BlockedApp),
		event(ConnCreated, 70, connA, ConnectionInfo{}),
	)

	s, _ := q.Stream(1)
	want := []BlockedInterval{
		{Start: 10, End: 30, Reasons: BlockedPacing},
		{Start: 30, End: 40, Reasons: BlockedCongestionControl},
		{Start: 50, End: 70, Reasons: BlockedApp, Open: true},
	}
	got := s.Blocked()
	tt.Assertf(len(got) == len(want), "got %d intervals", len(got))
	for i := range want {
		tt.Assertf(got[i] == want[i], "interval %d: %+v, want %+v", i, got[i], want[i])
	}
	tt.Assert(s.BlockedTime() == 50)
}

func TestFoldDatapathAttribution(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	pair := DatapathTransfer{Local: SocketAddress{testV4}, Remote: SocketAddress{testV6}}
	send := func(tid uint32, ts time.Duration, size uint32) *Event {
		p := pair
		p.TotalSize = size
		return onThread(tid, DatapathSend, ts, dpD, p)
	}
	recv := func(tid uint32, ts time.Duration, size uint32) *Event {
		p := pair
		p.TotalSize = size
		return onThread(tid, DatapathRecv, ts, dpD, p)
	}
	other := DatapathTransfer{
		TotalSize: 10,
		Local:     SocketAddress{testV4},
		Remote:    SocketAddress{netip.MustParseAddrPort("198.51.100.7:443")},
	}

	q := fold(t,
		onThread(1, ConnCreated, 0, connA, ConnectionInfo{}),
		onThread(2, ConnCreated, 1, connB, ConnectionInfo{}),
		send(1, 2, 1000),
		recv(2, 3, 500),
		send(1, 4, 200),
		onThread(3, DatapathSend, 5, dpD, other),
		onThread(1, ConnDestroyed, 6, connA, nil),
		send(1, 7, 4000),
	)

	a, _ := q.Connection(1)
	b, _ := q.Connection(2)
	sent, recvd := a.DatapathBytes()
	tt.Assertf(sent == 1200 && recvd == 0, "a sent %d recv %d", sent, recvd)
	sent, recvd = b.DatapathBytes()
	tt.Assertf(sent == 0 && recvd == 500, "b sent %d recv %d", sent, recvd)

	d, ok := q.Datapath(1)
	tt.Assert(ok)
	calls, bytes := d.Sends()
	tt.Assert(calls == 4 && bytes == 5210)
	calls, bytes = d.Receives()
	tt.Assert(calls == 1 && bytes == 500)
	tt.Assert(len(d.AddressPairs()) == 2)
	tt.Assert(d.AddressPairs()[0] == AddressPair{Local: pair.Local, Remote: pair.Remote})
}

func TestFoldWorkerAssignment(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	q := fold(t,
		onThread(7, WorkerActivityStateUpdated, 0, workerW, WorkerActivity{IsActive: true}),
		onThread(7, ConnCreated, 1, connA, ConnectionInfo{}),
		onThread(7, ConnScheduleState, 2, connA, ScheduleState{State: ScheduleProcessing}),
		onThread(7, ConnExecOper, 3, connA, ExecOper{Type: 1}),
		onThread(7, ConnAssignWorker, 4, connA, AssignWorker{Worker: workerX}),
		// a connection processed on a thread without a known worker
		onThread(8, ConnExecTimerOper, 5, connB, ExecOper{}),
	)

	a, _ := q.Connection(1)
	want := []WorkerAssignment{
		{Time: 2, Worker: 1, Implied: true},
		{Time: 4, Worker: 2},
	}
	got := a.Workers()
	tt.Assertf(len(got) == 2, "got %d assignments", len(got))
	tt.Assert(got[0] == want[0] && got[1] == want[1])
	tt.Assert(a.Worker() == 2)
	tt.Assert(a.ExecOperations() == 1)
	tt.Assert(len(a.Schedule()) == 1 && a.Schedule()[0].ThreadID == 7)

	x, ok := q.Worker(2)
	tt.Assert(ok && x.Origin() == OriginImplicit && x.Pointer() == workerX)
	tt.Assert(len(q.ConnectionsOn(1)) == 1 && q.ConnectionsOn(1)[0] == a)
	tt.Assert(len(q.ConnectionsOn(2)) == 1)

	b, _ := q.Connection(2)
	tt.Assert(b.Worker() == 0)
}

func TestFoldApiCalls(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	q := fold(t,
		onThread(1, ApiEnter, 0, 0, ApiCallInfo{Type: 5, Handle: connA}),
		onThread(1, ApiExitStatus, 5, 0, Status{Status: 0x10}),
		onThread(2, ApiExit, 6, 0, nil),
		onThread(3, ApiEnter, 7, 0, ApiCallInfo{Type: 6}),
		onThread(1, ApiEnter, 8, 0, ApiCallInfo{Type: 7}),
		onThread(1, ApiExit, 9, 0, nil),
	)

	calls := q.ApiCalls()
	tt.Assert(len(calls) == 3)
	tt.Assert(calls[0].Complete && calls[0].HasStatus && calls[0].Status == 0x10)
	tt.Assert(calls[0].Duration() == 5 && calls[0].Handle == connA)
	// still open at the end of the trace
	tt.Assert(!calls[1].Complete && calls[1].ThreadID == 3 && calls[1].End == 9)
	tt.Assert(calls[2].Complete && !calls[2].HasStatus && calls[2].Duration() == 1)
	tt.Assert(q.Anomalies()[AnomalyUnmatchedApiExit] == 1)
}

func TestFoldApiCallsNestedEnter(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	q := fold(t,
		onThread(1, ApiEnter, 0, 0, ApiCallInfo{Type: 1}),
		onThread(1, ApiEnter, 3, 0, ApiCallInfo{Type: 2}),
		onThread(1, ApiExit, 4, 0, nil),
		// the outer call's exit has nothing left to match
		onThread(1, ApiExit, 9, 0, nil),
	)

	calls := q.ApiCalls()
	tt.Assert(len(calls) == 2)
	// the second enter closes the first call
	tt.Assert(calls[0].Type == 1 && !calls[0].Complete && calls[0].End == 3)
	tt.Assert(calls[1].Type == 2 && calls[1].Complete && calls[1].Duration() == 1)
	tt.Assert(q.Anomalies()[AnomalyUnmatchedApiExit] == 1)
}

func TestFoldWorkerScheduling(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	sched := func(ts time.Duration, state uint32) *Event {
		return onThread(7, ConnScheduleState, ts, connA, ScheduleState{State: state})
	}
	q := fold(t,
		onThread(7, WorkerActivityStateUpdated, 0, workerW, WorkerActivity{IsActive: true}),
		onThread(7, ConnCreated, 1, connA, ConnectionInfo{}),
		sched(10, ScheduleQueued),
		// processing on the worker's thread implies the worker
		sched(25, ScheduleProcessing),
		sched(30, ScheduleIdle),
		sched(50, ScheduleQueued),
		sched(55, ScheduleProcessing),
		onThread(7, ConnAssignWorker, 60, connA, AssignWorker{Worker: workerX}),
		sched(62, ScheduleIdle),
	)

	w, _ := q.Worker(1)
	queued := w.Scheduling(ScheduleQueued)
	tt.Assert(queued == SchedulingStats{Count: 2, Total: 20, Max: 15})
	test.Equal(tt, w.AverageScheduleQueueDelay(), 10)
	test.Equal(tt, w.TotalProcessingTime(), 5)
	tt.Assert(w.Scheduling(ScheduleIdle) == SchedulingStats{Count: 1, Total: 20, Max: 20})
	tt.Assert(w.Scheduling(9) == SchedulingStats{})
	test.Equal(tt, w.CurrentConnections(), 0)
	test.Equal(tt, len(w.Connections()), 1)

	x, _ := q.Worker(2)
	test.Equal(tt, x.TotalProcessingTime(), 7)
	test.Equal(tt, x.Scheduling(ScheduleQueued).Average(), 0)
	test.Equal(tt, x.CurrentConnections(), 1)

	got, err := q.ScheduleTimeline(1)
	tt.CheckErr(err)
	want := []ScheduleInterval{
		{Start: 10, Duration: 15, ThreadID: 7, State: ScheduleQueued},
		{Start: 25, Duration: 5, ThreadID: 7, State: ScheduleProcessing},
		{Start: 30, Duration: 20, ThreadID: 7, State: ScheduleIdle},
		{Start: 50, Duration: 5, ThreadID: 7, State: ScheduleQueued},
		{Start: 55, Duration: 7, ThreadID: 7, State: ScheduleProcessing},
	}
	tt.Assertf(len(got) == len(want), "got %d intervals", len(got))
	for i := range want {
		tt.Assertf(got[i] == want[i], "interval %d: %+v, want %+v", i, got[i], want[i])
	}
}

func TestFoldTimestampRegression(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	q := fold(t,
		event(ConnCreated, 10, connA, ConnectionInfo{}),
		event(ConnHandshakeComplete, 5, connA, nil),
		event(ConnHandleClosed, 12, connA, nil),
	)
	tt.Assert(q.Anomalies()[AnomalyTimestampRegression] == 1)
	tt.Assert(q.TraceStart() == 10 && q.TraceEnd() == 12)

	// the regressed event is still folded
	c, _ := q.Connection(1)
	hs, ok := c.HandshakeComplete()
	tt.Assert(ok && hs == 5)
	closed, ok := c.Closed()
	tt.Assert(ok && closed == 12)
	tt.Assert(c.State() == ConnStateClosed)
	_, ok = c.Destroyed()
	tt.Assert(!ok)
}

func TestFoldConnectionStats(t *testing.T) {
	t.Parallel()

	t.Run("Derived", func(t *testing.T) {
		tt := test.FromT(t)
		q := fold(t,
			event(ConnOutFlowStats, 0, connA, OutFlowStats{BytesSent: 100, SmoothedRTT: 20}),
			event(ConnOutFlowStats, 10, connA, OutFlowStats{BytesSent: 300, SmoothedRTT: 30}),
			event(ConnInFlowStats, 11, connA, InFlowStats{BytesRecv: 50}),
			event(ConnCongestion, 12, connA, nil),
			event(ConnPersistentCongestion, 13, connA, nil),
		)
		c, _ := q.Connection(1)
		tt.Assert(!c.HasStatsSnapshot())
		want := ConnectionStats{
			SmoothedRTT:               30,
			CongestionCount:           1,
			PersistentCongestionCount: 1,
			SendTotalBytes:            300,
			RecvTotalBytes:            50,
		}
		tt.Assertf(c.Stats() == want, "stats %+v", c.Stats())
		last, ok := c.LastOutFlow()
		tt.Assert(ok && last.BytesSent == 300)
	})

	t.Run("Snapshot", func(t *testing.T) {
		tt := test.FromT(t)
		snap := ConnectionStats{SmoothedRTT: 1, SendTotalBytes: 9000, RecvTotalBytes: 8000}
		q := fold(t,
			event(ConnOutFlowStats, 0, connA, OutFlowStats{BytesSent: 100}),
			event(ConnStats, 1, connA, snap),
		)
		c, _ := q.Connection(1)
		tt.Assert(c.HasStatsSnapshot())
		tt.Assert(c.Stats() == snap)
	})
}

func TestFoldConnectionLifecycle(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	q := fold(t,
		event(ConnCreated, 0, connA, ConnectionInfo{}),
		event(ConnSourceCidAdded, 1, connA, ConnectionID{Sequence: 0, CID: []byte{1, 2}}),
		event(ConnDestCidAdded, 1, connA, ConnectionID{Sequence: 0, CID: []byte{3, 4}}),
		event(ConnHandshakeComplete, 2, connA, nil),
		event(ConnOutFlowBlocked, 3, connA, FlowBlocked{Reasons: BlockedConnFlowControl}),
		event(ConnTransportShutdown, 4, connA, Shutdown{ErrorCode: 0x0a, Remote: true, QuicStatus: true}),
		event(ConnAppShutdown, 5, connA, Shutdown{ErrorCode: 1}),
		event(ConnHandleClosed, 6, connA, nil),
		// late records do not move the state backwards
		event(ConnHandshakeComplete, 7, connA, nil),
		event(ConnDestroyed, 8, connA, nil),
	)

	c, _ := q.Connection(1)
	tt.Assert(c.State() == ConnStateDestroyed)
	hs, _ := c.HandshakeComplete()
	tt.Assert(hs == 2)

	sd := c.Shutdown()
	tt.Assert(sd != nil)
	tt.Assert(*sd == ShutdownRecord{Time: 4, ErrorCode: 0x0a, Remote: true, QuicStatus: true})

	cids := c.ConnectionIDs()
	tt.Assert(len(cids) == 2 && cids[0].Source && !cids[1].Source)
	tt.Assert(len(c.FlowBlocked()) == 1)
}

func TestFoldUnexpectedPayload(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	q := fold(t,
		event(ConnCreated, 0, connA, nil),
		event(WorkerActivityStateUpdated, 1, workerW, Message{Text: "?"}),
	)
	tt.Assert(q.Anomalies()[AnomalyUnexpectedPayload] == 2)
	tt.Assert(len(q.Connections()) == 1)
}

func TestFoldIdentityOnlyCategories(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	m := NewModel()
	f := NewFolder(m)
	ev := event(WorkerCreated, 0, 0x44, nil)
	ev.ID, ev.Category = 1024, CategoryRegistration
	tt.CheckErr(f.Fold(ev))

	id, ok := m.Lookup(CategoryRegistration, 1, 0x44)
	tt.Assert(ok && id == 1)
	q, err := f.Finalize()
	tt.CheckErr(err)
	tt.Assert(q.EventCounts()[CategoryRegistration] == 1)
	tt.Assert(len(q.Workers()) == 0)
}

func TestFoldProcessesAreSeparate(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	other := event(ConnCreated, 1, connA, ConnectionInfo{})
	other.ProcessID = 2
	q := fold(t,
		event(ConnCreated, 0, connA, ConnectionInfo{}),
		other,
	)
	tt.Assert(len(q.Connections()) == 2)
	tt.Assert(len(q.Anomalies()) == 0)
	tt.Assert(q.Connections()[1].ProcessID() == 2)
}
