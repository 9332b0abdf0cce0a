package quictrace

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntityID is the synthetic id of a modeled object. Ids are sequential per
// category starting at 1 and never reused within a run; 0 means none.
type EntityID uint32

type objectKey struct {
	cat     Category
	pid     uint32
	pointer uint64
}

type threadKey struct {
	pid uint32
	tid uint32
}

// Anomaly is a fold transition that did not match the entity's state.
type Anomaly uint8

const (
	AnomalyDestroyUnknown Anomaly = iota
	AnomalyCreateWhileLive
	AnomalyTimestampRegression
	AnomalyUnmatchedApiExit
	AnomalyUnexpectedPayload

	anomalyCount
)

var anomalyNames = [anomalyCount]string{
	"DestroyUnknown",
	"CreateWhileLive",
	"TimestampRegression",
	"UnmatchedApiExit",
	"UnexpectedPayload",
}

func (a Anomaly) String() string {
	if a < anomalyCount {
		return anomalyNames[a]
	}
	return fmt.Sprintf("Anomaly(%d)", uint8(a))
}

// Origin tells how an entity came to be.
type Origin uint8

const (
	// OriginCreated entities were seen in their create record.
	OriginCreated Origin = iota
	// OriginRundown entities existed before the trace started; their creation
	// time is the trace start.
	OriginRundown
	// OriginImplicit entities were first seen in some other record for an
	// unknown pointer; their creation time is that record's timestamp.
	OriginImplicit
)

func (o Origin) String() string {
	switch o {
	case OriginCreated:
		return "Created"
	case OriginRundown:
		return "Rundown"
	case OriginImplicit:
		return "Implicit"
	}
	return "Unknown"
}

// object holds what every modeled entity shares.
type object struct {
	id        EntityID
	processID uint32
	pointer   uint64
	created   time.Duration
	destroyed time.Duration
	retired   bool
	origin    Origin
}

func (o *object) ID() EntityID { return o.id }
func (o *object) ProcessID() uint32 { return o.processID }
func (o *object) Pointer() uint64 { return o.pointer }
func (o *object) Created() time.Duration { return o.created }

// Destroyed returns the destruction time, ok is false while the entity was
// never destroyed.
func (o *object) Destroyed() (t time.Duration, ok bool) {
	return o.destroyed, o.retired
}

func (o *object) Origin() Origin { return o.origin }

func (o *object) base() *object { return o }

// entity is implemented by every modeled entity.
type entity interface {
	base() *object
	// finish closes open intervals at t.
	finish(t time.Duration)
}

// Model is the state of one trace processing run. It is built by a Folder
// and read through a Query once finalized. A Model is not safe for
// concurrent use.
type Model struct {
	runID uuid.UUID

	index  map[objectKey]EntityID
	nextID [categoryCount]EntityID

	workers     []*Worker
	connections []*Connection
	streams     []*Stream
	datapaths   []*Datapath

	global    Global
	apiCalls  []ApiCall
	anomalies [anomalyCount]uint64
	decode    DecodeStats

	finalized bool
}

func NewModel() *Model {
	return &Model{
		runID: uuid.New(),
		index: make(map[objectKey]EntityID),
		global: Global{
			byID: make(map[EventID]uint64),
		},
	}
}

func (m *Model) RunID() uuid.UUID {
	return m.runID
}

func (m *Model) Finalized() bool {
	return m.finalized
}

// Lookup returns the live entity bound to pointer.
func (m *Model) Lookup(cat Category, pid uint32, pointer uint64) (EntityID, bool) {
	id, ok := m.index[objectKey{cat, pid, pointer}]
	return id, ok
}

// LookupOrCreate returns the live entity bound to pointer, allocating a new
// one created at t when there is none. Categories without a modeled entity
// still get ids so their identity is tracked.
func (m *Model) LookupOrCreate(cat Category, pid uint32, pointer uint64, t time.Duration) (id EntityID, created bool) {
	key := objectKey{cat, pid, pointer}
	if id, ok := m.index[key]; ok {
		return id, false
	}
	m.nextID[cat]++
	id = m.nextID[cat]
	m.index[key] = id

	o := object{id: id, processID: pid, pointer: pointer, created: t}
	switch cat {
	case CategoryWorker:
		m.workers = append(m.workers, &Worker{object: o})
	case CategoryConnection:
		m.connections = append(m.connections, &Connection{object: o})
	case CategoryStream:
		m.streams = append(m.streams, &Stream{object: o})
	case CategoryDatapath:
		m.datapaths = append(m.datapaths, newDatapath(o))
	}
	return id, true
}

// Retire unbinds pointer so the next LookupOrCreate with it allocates a new
// entity. The retired entity itself is kept.
func (m *Model) Retire(cat Category, pid uint32, pointer uint64) (EntityID, bool) {
	key := objectKey{cat, pid, pointer}
	id, ok := m.index[key]
	if ok {
		delete(m.index, key)
	}
	return id, ok
}

// destroy retires pointer and marks its entity destroyed at t.
func (m *Model) destroy(cat Category, pid uint32, pointer uint64, t time.Duration) (EntityID, bool) {
	id, ok := m.Retire(cat, pid, pointer)
	if !ok {
		return 0, false
	}
	if e := m.entity(cat, id); e != nil {
		o := e.base()
		o.retired = true
		o.destroyed = max(t, o.created)
		e.finish(o.destroyed)
	}
	return id, true
}

func (m *Model) entity(cat Category, id EntityID) entity {
	switch cat {
	case CategoryWorker:
		if w := m.worker(id); w != nil {
			return w
		}
	case CategoryConnection:
		if c := m.connection(id); c != nil {
			return c
		}
	case CategoryStream:
		if s := m.stream(id); s != nil {
			return s
		}
	case CategoryDatapath:
		if d := m.datapath(id); d != nil {
			return d
		}
	}
	return nil
}

func (m *Model) worker(id EntityID) *Worker {
	if id == 0 || int(id) > len(m.workers) {
		return nil
	}
	return m.workers[id-1]
}

func (m *Model) connection(id EntityID) *Connection {
	if id == 0 || int(id) > len(m.connections) {
		return nil
	}
	return m.connections[id-1]
}

func (m *Model) stream(id EntityID) *Stream {
	if id == 0 || int(id) > len(m.streams) {
		return nil
	}
	return m.streams[id-1]
}

func (m *Model) datapath(id EntityID) *Datapath {
	if id == 0 || int(id) > len(m.datapaths) {
		return nil
	}
	return m.datapaths[id-1]
}

func (m *Model) anomaly(a Anomaly) {
	m.anomalies[a]++
}

// finalize closes every open interval at the trace end and freezes the model.
func (m *Model) finalize() error {
	if m.finalized {
		return ErrAlreadyFinalized
	}
	end := m.global.last
	for _, w := range m.workers {
		if !w.retired {
			w.finish(end)
		}
	}
	for _, c := range m.connections {
		if !c.retired {
			c.finish(end)
		}
	}
	for _, s := range m.streams {
		if !s.retired {
			s.finish(end)
		}
	}
	for _, d := range m.datapaths {
		if !d.retired {
			d.finish(end)
		}
	}
	m.finalized = true
	return nil
}

// Query returns the read surface of a finalized model.
func (m *Model) Query() (*Query, error) {
	if !m.finalized {
		return nil, ErrNotFinalized
	}
	return &Query{m: m}, nil
}
