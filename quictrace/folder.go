package quictrace

import (
	"slices"
	"time"

	"github.com/tekert/golang-quictrace/logsampler/adapters/phusluadapter"
)

// Folder reduces decoded events, in timestamp order, into a Model. A Folder
// must only be used from one goroutine.
type Folder struct {
	m       *Model
	log     *phusluadapter.SampledLogger
	metrics *Metrics

	// last connection handled on each thread, datapath traffic on that thread
	// is attributed to it
	lastConn map[threadKey]EntityID
	// worker last seen running on each thread
	threadWorker map[threadKey]EntityID
	// index in m.apiCalls of the open call on each thread
	openCalls map[threadKey]int

	sendPackets map[packetKey]*sendPacket
	recvPackets map[packetKey]*recvPacket
	// send packets of each batch
	batches map[packetKey][]packetKey
}

type FolderOption func(*Folder)

func WithFolderLogger(l *phusluadapter.SampledLogger) FolderOption {
	return func(f *Folder) {
		f.log = l
	}
}

func WithFolderMetrics(m *Metrics) FolderOption {
	return func(f *Folder) {
		f.metrics = m
	}
}

func NewFolder(m *Model, opts ...FolderOption) *Folder {
	f := &Folder{
		m:            m,
		lastConn:     make(map[threadKey]EntityID),
		threadWorker: make(map[threadKey]EntityID),
		openCalls:    make(map[threadKey]int),
		sendPackets:  make(map[packetKey]*sendPacket),
		recvPackets:  make(map[packetKey]*recvPacket),
		batches:      make(map[packetKey][]packetKey),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = discardLogger()
	}
	return f
}

func (f *Folder) Model() *Model {
	return f.m
}

// Fold applies ev to the model. Events that do not fit the state of their
// entity are counted as anomalies and otherwise ignored. Folding into a
// finalized model fails with ErrAlreadyFinalized.
func (f *Folder) Fold(ev *Event) error {
	if f.m.finalized {
		return ErrAlreadyFinalized
	}
	if !f.m.global.observe(ev) {
		f.anomaly(AnomalyTimestampRegression, ev)
	}
	f.metrics.event(ev.Category)

	switch ev.Category {
	case CategoryGlobal:
		f.foldGlobal(ev)
	case CategoryWorker:
		f.foldWorker(ev)
	case CategoryConnection:
		f.foldConnection(ev)
	case CategoryStream:
		f.foldStream(ev)
	case CategoryDatapath:
		f.foldDatapath(ev)
	default:
		// registrations, configurations, listeners and bindings are only
		// tracked by identity
		if ev.Pointer != 0 {
			f.m.LookupOrCreate(ev.Category, ev.ProcessID, ev.Pointer, ev.Timestamp)
		}
	}
	return nil
}

// Finalize closes open intervals at the last folded timestamp, freezes the
// model and returns its query surface. It fails with ErrAlreadyFinalized when
// called again.
func (f *Folder) Finalize() (*Query, error) {
	if f.m.finalized {
		return nil, ErrAlreadyFinalized
	}
	for _, i := range f.openCalls {
		f.m.apiCalls[i].End = f.m.global.last
	}
	clear(f.openCalls)
	clear(f.sendPackets)
	clear(f.recvPackets)
	clear(f.batches)
	if err := f.m.finalize(); err != nil {
		return nil, err
	}
	return f.m.Query()
}

func (f *Folder) anomaly(a Anomaly, ev *Event) {
	f.m.anomaly(a)
	f.metrics.anomaly(a)
	logAnomaly(f.log, a, ev)
}

// payloadAs returns ev's payload as T, counting an anomaly when it is not.
func payloadAs[T Payload](f *Folder, ev *Event) (T, bool) {
	p, ok := ev.Payload.(T)
	if !ok {
		f.anomaly(AnomalyUnexpectedPayload, ev)
	}
	return p, ok
}

// create handles a create record. A live entity only seen implicitly so far is
// adopted; a live entity that had its own create or rundown record missed its
// destroy, it is retired and a new entity replaces it.
func (f *Folder) create(ev *Event) EntityID {
	m := f.m
	if id, ok := m.Lookup(ev.Category, ev.ProcessID, ev.Pointer); ok {
		if e := m.entity(ev.Category, id); e == nil || e.base().origin == OriginImplicit {
			if e != nil {
				e.base().origin = OriginCreated
			}
			return id
		}
		f.anomaly(AnomalyCreateWhileLive, ev)
		m.destroy(ev.Category, ev.ProcessID, ev.Pointer, ev.Timestamp)
	}
	id, _ := m.LookupOrCreate(ev.Category, ev.ProcessID, ev.Pointer, ev.Timestamp)
	return id
}

// rundown handles a rundown record. Entities first seen in a rundown existed
// before the trace started and are dated to the trace start.
func (f *Folder) rundown(ev *Event) EntityID {
	id, created := f.m.LookupOrCreate(ev.Category, ev.ProcessID, ev.Pointer, f.m.global.first)
	e := f.m.entity(ev.Category, id)
	if e == nil {
		return id
	}
	if o := e.base(); created || o.origin == OriginImplicit {
		o.origin = OriginRundown
		o.created = f.m.global.first
	}
	return id
}

// touch returns the entity ev refers to, synthesizing it at ev's timestamp
// when the pointer is unknown.
func (f *Folder) touch(ev *Event) EntityID {
	return f.reference(ev.Category, ev.ProcessID, ev.Pointer, ev.Timestamp)
}

// reference resolves a pointer held in a payload, synthesizing the entity
// when needed.
func (f *Folder) reference(cat Category, pid uint32, pointer uint64, t time.Duration) EntityID {
	id, created := f.m.LookupOrCreate(cat, pid, pointer, t)
	if created {
		if e := f.m.entity(cat, id); e != nil {
			e.base().origin = OriginImplicit
		}
	}
	return id
}

func (f *Folder) destroy(ev *Event) (EntityID, bool) {
	id, ok := f.m.destroy(ev.Category, ev.ProcessID, ev.Pointer, ev.Timestamp)
	if !ok {
		f.anomaly(AnomalyDestroyUnknown, ev)
	}
	return id, ok
}

func (f *Folder) foldGlobal(ev *Event) {
	key := threadKey{ev.ProcessID, ev.ThreadID}

	switch ev.ID {
	case ApiEnter:
		p, ok := payloadAs[ApiCallInfo](f, ev)
		if !ok {
			return
		}
		if i, open := f.openCalls[key]; open {
			// nested or missed exit, the previous call ends here
			f.m.apiCalls[i].End = ev.Timestamp
		}
		f.m.apiCalls = append(f.m.apiCalls, ApiCall{
			ProcessID: ev.ProcessID,
			ThreadID:  ev.ThreadID,
			Type:      p.Type,
			Handle:    p.Handle,
			Start:     ev.Timestamp,
			End:       ev.Timestamp,
		})
		f.openCalls[key] = len(f.m.apiCalls) - 1

	case ApiExit, ApiExitStatus:
		i, open := f.openCalls[key]
		if !open {
			f.anomaly(AnomalyUnmatchedApiExit, ev)
			return
		}
		delete(f.openCalls, key)
		call := &f.m.apiCalls[i]
		call.End = ev.Timestamp
		call.Complete = true
		if s, ok := ev.Payload.(Status); ok {
			call.Status = s.Status
			call.HasStatus = true
		}

	case PacketCreated, PacketEncrypt, PacketFinalize, PacketBatchSent, PacketReceive, PacketDecrypt:
		f.foldPacket(ev)
	}
}

func (f *Folder) foldWorker(ev *Event) {
	var id EntityID
	switch ev.ID {
	case WorkerCreated:
		id = f.create(ev)
	case WorkerDestroyed:
		if id, ok := f.destroy(ev); ok {
			for k, w := range f.threadWorker {
				if w == id {
					delete(f.threadWorker, k)
				}
			}
		}
		return
	default:
		id = f.touch(ev)
	}
	w := f.m.worker(id)
	if w == nil {
		return
	}

	switch ev.ID {
	case WorkerCreated:
		if p, ok := payloadAs[WorkerInfo](f, ev); ok {
			w.idealProcessor = p.IdealProcessor
			w.owner = p.Owner
		}
	case WorkerActivityStateUpdated:
		if p, ok := payloadAs[WorkerActivity](f, ev); ok {
			w.setActive(ev.Timestamp, p.IsActive, p.Arg)
			w.threadID, w.hasThread = ev.ThreadID, true
			f.threadWorker[threadKey{ev.ProcessID, ev.ThreadID}] = id
		}
	case WorkerQueueDelayUpdated:
		if p, ok := payloadAs[WorkerQueueDelay](f, ev); ok {
			w.addQueueDelay(ev.Timestamp, p.QueueDelay)
		}
	}
}

func (f *Folder) foldConnection(ev *Event) {
	var id EntityID
	switch ev.ID {
	case ConnCreated:
		id = f.create(ev)
	case ConnRundown:
		id = f.rundown(ev)
	case ConnDestroyed:
		f.destroy(ev)
		return
	default:
		id = f.touch(ev)
	}
	c := f.m.connection(id)
	if c == nil {
		return
	}
	thread := threadKey{ev.ProcessID, ev.ThreadID}
	f.lastConn[thread] = id
	c.seen(ev.Timestamp)

	switch ev.ID {
	case ConnCreated, ConnRundown:
		if p, ok := payloadAs[ConnectionInfo](f, ev); ok {
			c.isServer = p.IsServer
			c.correlationID = p.CorrelationID
		}

	case ConnHandshakeComplete:
		if !c.handshakeDone {
			c.handshakeComplete, c.handshakeDone = ev.Timestamp, true
		}
		c.setState(ConnStateHandshakeComplete)

	case ConnScheduleState:
		c.endExec(ev.Timestamp)
		if p, ok := payloadAs[ScheduleState](f, ev); ok {
			prev, had := c.lastSchedule()
			c.schedule = append(c.schedule, ScheduleTransition{Time: ev.Timestamp, State: p.State, ThreadID: ev.ThreadID})
			if p.State == ScheduleProcessing {
				f.impliedWorker(c, thread, ev.Timestamp)
			}
			if w := f.m.worker(c.Worker()); w != nil && had {
				w.addScheduling(prev.State, ev.Timestamp-prev.Time)
			}
		}

	case ConnExecOper, ConnExecApiOper, ConnExecTimerOper:
		c.execOps++
		next := ExecInterval{Start: ev.Timestamp, ThreadID: ev.ThreadID, Processor: ev.Processor, Kind: ev.ID}
		if p, ok := ev.Payload.(ExecOper); ok {
			next.Type = p.Type
		}
		c.startExec(ev.Timestamp, next)
		f.impliedWorker(c, thread, ev.Timestamp)

	case ConnAssignWorker:
		if p, ok := payloadAs[AssignWorker](f, ev); ok {
			wid := f.reference(CategoryWorker, ev.ProcessID, p.Worker, ev.Timestamp)
			old := c.Worker()
			if c.assignWorker(ev.Timestamp, wid, false) {
				if w := f.m.worker(old); w != nil {
					w.removeConnection()
				}
				f.m.worker(wid).addConnection(id)
			}
		}

	case ConnTransportShutdown, ConnAppShutdown:
		if p, ok := payloadAs[Shutdown](f, ev); ok && c.shutdown == nil {
			c.shutdown = &ShutdownRecord{
				Time:        ev.Timestamp,
				ErrorCode:   p.ErrorCode,
				Remote:      p.Remote,
				QuicStatus:  p.QuicStatus,
				Application: ev.ID == ConnAppShutdown,
			}
		}
		c.setState(ConnStateShutdown)

	case ConnHandleClosed:
		if !c.isClosed {
			c.closed, c.isClosed = ev.Timestamp, true
		}
		c.setState(ConnStateClosed)

	case ConnOutFlowStats:
		if p, ok := payloadAs[OutFlowStats](f, ev); ok {
			c.tx = append(c.tx, ByteSample{Time: ev.Timestamp, Bytes: p.BytesSent})
			c.lastOutFlow, c.hasOutFlow = p, true
			t := ev.Timestamp
			c.sample(TputPktCreate, t, p.BytesSent)
			c.sample(TputTxAck, t, uint64(p.BytesInFlight))
			c.sample(TputRtt, t, uint64(p.SmoothedRTT))
			c.sample(TputInFlight, t, uint64(p.BytesInFlight))
			c.sample(TputCWnd, t, uint64(p.CongestionWindow))
			c.sample(TputPosted, t, p.PostedBytes)
			c.sample(TputConnFC, t, p.ConnectionFlowControl)
		}

	case ConnInFlowStats:
		if p, ok := payloadAs[InFlowStats](f, ev); ok {
			c.rx = append(c.rx, ByteSample{Time: ev.Timestamp, Bytes: p.BytesRecv})
			c.sample(TputRx, ev.Timestamp, p.BytesRecv)
		}

	case ConnOutFlowStreamStats:
		if p, ok := payloadAs[StreamFlowStats](f, ev); ok {
			c.lastStreamFlow, c.hasStreamFlow = p, true
			c.sample(TputStreamFC, ev.Timestamp, p.StreamFlowControl)
		}

	case ConnOutFlowBlocked:
		if p, ok := payloadAs[FlowBlocked](f, ev); ok {
			c.blocked = append(c.blocked, FlowBlockSample{Time: ev.Timestamp, Reasons: p.Reasons})
		}

	case ConnCongestion:
		c.congestionEvents++

	case ConnPersistentCongestion:
		c.persistentCongestionEvents++

	case ConnSourceCidAdded, ConnDestCidAdded:
		if p, ok := payloadAs[ConnectionID](f, ev); ok {
			c.cids = append(c.cids, CIDRecord{
				Time:     ev.Timestamp,
				Sequence: p.Sequence,
				CID:      p.CID,
				Source:   ev.ID == ConnSourceCidAdded,
			})
		}

	case ConnStats:
		if p, ok := payloadAs[ConnectionStats](f, ev); ok {
			c.stats = &p
		}
	}
}

// impliedWorker assigns the worker running on thread to a connection that has
// no worker yet.
func (f *Folder) impliedWorker(c *Connection, thread threadKey, t time.Duration) {
	if c.Worker() != 0 {
		return
	}
	wid, ok := f.threadWorker[thread]
	if !ok {
		return
	}
	if c.assignWorker(t, wid, true) {
		f.m.worker(wid).addConnection(c.id)
	}
}

func (f *Folder) foldStream(ev *Event) {
	var id EntityID
	switch ev.ID {
	case StreamCreated:
		id = f.create(ev)
	case StreamRundown:
		id = f.rundown(ev)
	case StreamDestroyed:
		f.destroy(ev)
		return
	default:
		id = f.touch(ev)
	}
	s := f.m.stream(id)
	if s == nil {
		return
	}
	s.timing.start(ev.Timestamp)
	prev := s.lastEvent
	s.lastEvent = ev.Timestamp
	st := &s.timing

	switch ev.ID {
	case StreamCreated, StreamRundown:
		if p, ok := payloadAs[StreamInfo](f, ev); ok {
			conn := f.reference(CategoryConnection, ev.ProcessID, p.Connection, ev.Timestamp)
			f.linkStream(s, conn)
			s.setInfo(conn, p.StreamID, p.IsLocalOwned)
		}
	case StreamAlloc:
		if p, ok := payloadAs[StreamAllocInfo](f, ev); ok && s.connection == 0 {
			f.linkStream(s, f.reference(CategoryConnection, ev.ProcessID, p.Connection, ev.Timestamp))
		}
	case StreamOutFlowBlocked:
		if p, ok := payloadAs[FlowBlocked](f, ev); ok {
			s.setBlocked(ev.Timestamp, p.Reasons)
		}
	case StreamSendState:
		if p, ok := payloadAs[StreamState](f, ev); ok {
			s.sendState = p.State
			if sendDone(p.State) {
				st.shutdown(ev.Timestamp, true)
			}
		}
	case StreamRecvState:
		if p, ok := payloadAs[StreamState](f, ev); ok {
			s.recvState = p.State
			if recvDone(p.State) {
				st.shutdown(ev.Timestamp, false)
			}
		}
	case StreamWriteFrames:
		s.framesWritten++
		if p, ok := payloadAs[PacketRef](f, ev); ok {
			f.streamWrite(s, ev.ProcessID, p.PacketID, ev.Timestamp)
		}
	case StreamReceiveFrame:
		s.framesReceived++
		if p, ok := payloadAs[PacketRef](f, ev); ok {
			f.streamReceive(s, ev.ProcessID, p.PacketID, ev.Timestamp, prev)
		}
	case StreamAppSend:
		s.appSends++
		if state, _ := f.schedulingState(s.connection); state == ScheduleProcessing {
			st.update(PhaseProcessSend, ev.Timestamp, false)
		} else {
			st.update(PhaseQueueSend, ev.Timestamp, false)
		}
	case StreamAppReceive:
		st.update(PhaseAppRecv, ev.Timestamp, false)
	case StreamAppReceiveComplete:
		s.appReceives++
		if st.phase == PhaseAppRecv {
			st.toIdle(ev.Timestamp)
		}
	}
}

func (f *Folder) schedulingState(conn EntityID) (uint32, bool) {
	if c := f.m.connection(conn); c != nil {
		return c.SchedulingState()
	}
	return ScheduleIdle, false
}

func (f *Folder) linkStream(s *Stream, conn EntityID) {
	if s.connection == conn {
		return
	}
	if old := f.m.connection(s.connection); old != nil {
		old.streams = slices.DeleteFunc(old.streams, func(id EntityID) bool { return id == s.id })
	}
	s.connection = conn
	if c := f.m.connection(conn); c != nil {
		c.streams = append(c.streams, s.id)
	}
}

func (f *Folder) foldDatapath(ev *Event) {
	var id EntityID
	switch ev.ID {
	case DatapathCreated:
		id = f.create(ev)
	case DatapathDestroyed:
		f.destroy(ev)
		return
	default:
		id = f.touch(ev)
	}
	d := f.m.datapath(id)
	if d == nil {
		return
	}

	switch ev.ID {
	case DatapathCreated:
		if p, ok := payloadAs[DatapathInfo](f, ev); ok {
			d.addPair(p.Local, p.Remote)
		}
	case DatapathSend, DatapathRecv:
		p, ok := payloadAs[DatapathTransfer](f, ev)
		if !ok {
			return
		}
		d.addPair(p.Local, p.Remote)
		c := f.m.connection(f.lastConn[threadKey{ev.ProcessID, ev.ThreadID}])
		if c != nil && c.retired {
			c = nil
		}
		if ev.ID == DatapathSend {
			d.sends++
			d.bytesSent += uint64(p.TotalSize)
			if c != nil {
				c.datapathBytesSent += uint64(p.TotalSize)
				c.seen(ev.Timestamp)
				c.sample(TputTx, ev.Timestamp, uint64(p.TotalSize))
				c.sample(TputTxDelay, ev.Timestamp, uint64(ev.Timestamp/time.Microsecond))
			}
		} else {
			d.recvs++
			d.bytesRecv += uint64(p.TotalSize)
			if c != nil {
				c.datapathBytesRecv += uint64(p.TotalSize)
			}
		}
	}
}
