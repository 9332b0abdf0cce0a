package quictrace

import (
	"time"

	"github.com/tekert/golang-quictrace/quictrace/pkg/hexf"
)

// RawRecord is one framed provider record. Data is borrowed from the capture
// buffer and is only valid while the record is being processed.
//
// Opcode and Keywords are optional header metadata used for category
// resolution; leave them zero when the source does not provide them.
type RawRecord struct {
	ID           EventID
	Opcode       uint8
	Keywords     uint64
	Timestamp    time.Duration // since an arbitrary trace epoch
	Processor    uint16
	ProcessID    uint32
	ThreadID     uint32
	PointerWidth uint8
	Data         []byte
}

// Header is the part of a decoded event shared by every variant.
type Header struct {
	ID           EventID
	Category     Category
	Timestamp    time.Duration
	Processor    uint16
	ProcessID    uint32
	ThreadID     uint32
	PointerWidth uint8
	// Pointer is the emitting object's address, 0 for Global records. It is
	// only an identity key.
	Pointer uint64
}

// PointerString formats the object pointer at the record's width.
func (h *Header) PointerString() string {
	return hexf.Pointer(h.Pointer, h.PointerWidth)
}

// Event is a decoded record. Payload holds one of the payload types below,
// or nil for records without fields.
type Event struct {
	Header
	Payload Payload
}

// Payload is implemented by every event payload type.
type Payload interface {
	payload()
}

// LibraryInit is carried by LibraryInitialized and LibraryRundown.
type LibraryInit struct {
	PartitionCount   uint32
	DatapathFeatures uint32
}

type AllocFailureInfo struct {
	Description string
	Size        uint64
}

// Message is carried by error and log records that only hold text.
type Message struct {
	Text string
}

// StatusMessage is carried by the *ErrorStatus records.
type StatusMessage struct {
	Status uint32
	Text   string
}

type Assert struct {
	Line       uint32
	File       string
	Expression string
}

type ApiCallInfo struct {
	Type   uint32
	Handle uint64
}

// Status is carried by ApiExitStatus.
type Status struct {
	Status uint32
}

type SendRetryState struct {
	Value uint8
}

type Version struct {
	Major, Minor, Patch, Build uint32
}

// PartitionCount is carried by LibraryInitializedV2 and LibraryRundownV2.
type PartitionCount struct {
	Count uint32
}

// DatapathFeatures is carried by DataPathInitialized and DataPathRundown.
type DatapathFeatures struct {
	Features uint32
}

type WorkerInfo struct {
	IdealProcessor uint16
	Owner          uint64
}

type WorkerActivity struct {
	IsActive bool
	Arg      uint32
}

type WorkerQueueDelay struct {
	QueueDelay uint32 // microseconds
}

// ConnectionInfo is carried by ConnCreated and ConnRundown.
type ConnectionInfo struct {
	IsServer      bool
	CorrelationID uint64
}

type ScheduleState struct {
	State uint32
}

// ExecOper is carried by the ConnExec*Oper records.
type ExecOper struct {
	Type uint32
}

type AssignWorker struct {
	Worker uint64
}

// Shutdown is carried by ConnTransportShutdown and ConnAppShutdown. QuicStatus
// is only meaningful for transport shutdowns.
type Shutdown struct {
	ErrorCode  uint64
	Remote     bool
	QuicStatus bool
}

type OutFlowStats struct {
	BytesSent             uint64
	BytesInFlight         uint32
	BytesInFlightMax      uint32
	CongestionWindow      uint32
	SlowStartThreshold    uint32
	ConnectionFlowControl uint64
	IdealBytes            uint64
	PostedBytes           uint64
	SmoothedRTT           uint32 // microseconds
}

// FlowBlocked is carried by ConnOutFlowBlocked and StreamOutFlowBlocked.
type FlowBlocked struct {
	Reasons FlowBlockReason
}

type InFlowStats struct {
	BytesRecv uint64
}

// ConnectionID is carried by ConnSourceCidAdded and ConnDestCidAdded.
type ConnectionID struct {
	Sequence uint64
	CID      []byte
}

type ConnectionStats struct {
	SmoothedRTT               uint32 // microseconds
	CongestionCount           uint32
	PersistentCongestionCount uint32
	SendTotalBytes            uint64
	RecvTotalBytes            uint64
}

type StreamFlowStats struct {
	StreamFlowControl uint64
	StreamSendWindow  uint64
}

// StreamInfo is carried by StreamCreated and StreamRundown.
type StreamInfo struct {
	Connection   uint64
	StreamID     uint64
	IsLocalOwned bool
}

// StreamState is carried by StreamSendState and StreamRecvState.
type StreamState struct {
	State uint8
}

type StreamAllocInfo struct {
	Connection uint64
}

// PacketRef is carried by StreamWriteFrames and StreamReceiveFrame.
type PacketRef struct {
	PacketID uint64
}

// DatapathTransfer is carried by DatapathSend and DatapathRecv. Receives do
// not report a buffer count.
type DatapathTransfer struct {
	TotalSize   uint32
	BufferCount uint8
	SegmentSize uint16
	Local       SocketAddress
	Remote      SocketAddress
}

type DatapathInfo struct {
	Local  SocketAddress
	Remote SocketAddress
}

// PacketInfo is carried by the Packet* records. BatchID is only set by
// PacketCreated.
type PacketInfo struct {
	BatchID  uint64
	PacketID uint64
}

func (LibraryInit) payload()      {}
func (AllocFailureInfo) payload() {}
func (Message) payload()          {}
func (StatusMessage) payload()    {}
func (Assert) payload()           {}
func (ApiCallInfo) payload()      {}
func (Status) payload()           {}
func (SendRetryState) payload()   {}
func (Version) payload()          {}
func (PartitionCount) payload()   {}
func (DatapathFeatures) payload() {}
func (WorkerInfo) payload()       {}
func (WorkerActivity) payload()   {}
func (WorkerQueueDelay) payload() {}
func (ConnectionInfo) payload()   {}
func (ScheduleState) payload()    {}
func (ExecOper) payload()         {}
func (AssignWorker) payload()     {}
func (Shutdown) payload()         {}
func (OutFlowStats) payload()     {}
func (FlowBlocked) payload()      {}
func (InFlowStats) payload()      {}
func (ConnectionID) payload()     {}
func (ConnectionStats) payload()  {}
func (StreamFlowStats) payload()  {}
func (StreamInfo) payload()       {}
func (StreamState) payload()      {}
func (StreamAllocInfo) payload()  {}
func (PacketRef) payload()        {}
func (DatapathTransfer) payload() {}
func (DatapathInfo) payload()     {}
func (PacketInfo) payload()       {}

// FlowBlockReason is the bit set of reasons a sender is blocked.
type FlowBlockReason uint8

const (
	BlockedScheduling          FlowBlockReason = 0x01
	BlockedPacing              FlowBlockReason = 0x02
	BlockedAmplificationProt   FlowBlockReason = 0x04
	BlockedCongestionControl   FlowBlockReason = 0x08
	BlockedConnFlowControl     FlowBlockReason = 0x10
	BlockedStreamIDFlowControl FlowBlockReason = 0x20
	BlockedStreamFlowControl   FlowBlockReason = 0x40
	BlockedApp                 FlowBlockReason = 0x80
)

var flowBlockNames = [...]string{
	"Scheduling",
	"Pacing",
	"AmplificationProtection",
	"CongestionControl",
	"ConnFlowControl",
	"StreamIdFlowControl",
	"StreamFlowControl",
	"App",
}

func (r FlowBlockReason) String() string {
	if r == 0 {
		return "None"
	}
	s := ""
	for i, name := range flowBlockNames {
		if r&(1<<i) != 0 {
			if s != "" {
				s += "|"
			}
			s += name
		}
	}
	return s
}
