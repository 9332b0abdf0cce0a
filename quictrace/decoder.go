package quictrace

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/0xrawsec/golang-utils/datastructs"
)

// ParseMode selects which records are decoded.
type ParseMode uint8

const (
	// ParseModeFast decodes the records needed for metrics and skips verbose
	// diagnostic records.
	ParseModeFast ParseMode = iota
	// ParseModeFull decodes every record of the schema.
	ParseModeFull
)

func (m ParseMode) String() string {
	switch m {
	case ParseModeFast:
		return "fast"
	case ParseModeFull:
		return "full"
	}
	return fmt.Sprintf("ParseMode(%d)", uint8(m))
}

func ParseParseMode(s string) (ParseMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast", "":
		return ParseModeFast, nil
	case "full":
		return ParseModeFull, nil
	}
	return ParseModeFast, fmt.Errorf("%w: %q", ErrInvalidParseMode, s)
}

func (m ParseMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ParseMode) UnmarshalText(text []byte) (err error) {
	*m, err = ParseParseMode(string(text))
	return
}

// FullOnlyEventsV1 lists the records skipped in fast mode: library lifecycle
// and diagnostics, and every record whose payload is free text.
var FullOnlyEventsV1 = []EventID{
	LibraryInitialized,
	LibraryUninitialized,
	LibraryAddRef,
	LibraryRelease,
	LibraryServerInit,
	AllocFailure,
	LibraryRundown,
	LibraryError,
	LibraryErrorStatus,
	LibraryAssert,
	ApiWaitOperation,
	PerfCountersRundown,
	LibrarySendRetryStateUpdated,
	LibraryVersion,
	LibraryInitializedV2,
	DataPathInitialized,
	LibraryRundownV2,
	DataPathRundown,

	ConnLogError,
	ConnLogWarning,
	ConnLogInfo,
	ConnLogVerbose,

	StreamError,
	StreamErrorStatus,
	StreamLogError,
	StreamLogWarning,
	StreamLogInfo,
	StreamLogVerbose,

	DatapathError,
	DatapathErrorStatus,

	LogError,
	LogWarning,
	LogInfo,
	LogVerbose,
}

// DecodeStats counts Decode outcomes.
type DecodeStats struct {
	Decoded   uint64
	Unknown   uint64
	Gated     uint64
	Malformed uint64
}

// Decoder turns raw records into events. It is not safe for concurrent use.
type Decoder struct {
	mode     ParseMode
	fullOnly *datastructs.Set
	reader   Reader
	stats    DecodeStats
}

type DecoderOption func(*Decoder)

func WithParseMode(mode ParseMode) DecoderOption {
	return func(d *Decoder) {
		d.mode = mode
	}
}

// WithFullOnlyEvents replaces FullOnlyEventsV1 as the set of records skipped
// in fast mode.
func WithFullOnlyEvents(ids ...EventID) DecoderOption {
	return func(d *Decoder) {
		d.fullOnly = datastructs.NewInitSet(datastructs.ToInterfaceSlice(ids)...)
	}
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		fullOnly: datastructs.NewInitSet(datastructs.ToInterfaceSlice(FullOnlyEventsV1)...),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Decoder) Mode() ParseMode {
	return d.mode
}

func (d *Decoder) Stats() DecodeStats {
	return d.stats
}

// Gated reports whether id is skipped in the decoder's mode.
func (d *Decoder) Gated(id EventID) bool {
	return d.mode == ParseModeFast && d.fullOnly.Contains(id)
}

// Decode decodes rec. Records outside the schema, and records gated by the
// parse mode, return a nil event and a nil error. A malformed record returns a
// *RecordError; the decoder stays usable for the next record.
func (d *Decoder) Decode(rec *RawRecord) (*Event, error) {
	if d.Gated(rec.ID) {
		d.stats.Gated++
		return nil, nil
	}

	r := &d.reader
	r.Reset(rec.Data, rec.PointerWidth)

	ev := &Event{Header: Header{
		ID:           rec.ID,
		Timestamp:    rec.Timestamp,
		Processor:    rec.Processor,
		ProcessID:    rec.ProcessID,
		ThreadID:     rec.ThreadID,
		PointerWidth: rec.PointerWidth,
	}}
	if hasCategoryMetadata(rec.Opcode, rec.Keywords) {
		ev.Category = ResolveCategory(rec.Opcode, rec.Keywords)
	} else {
		ev.Category = rec.ID.BlockCategory()
	}

	// object records lead with the emitting object's pointer
	if rec.ID.BlockCategory() != CategoryGlobal {
		ev.Pointer = r.Pointer()
	}

	if !decodePayload(r, ev) {
		d.stats.Unknown++
		return nil, nil
	}

	if err := r.Err(); err != nil {
		d.stats.Malformed++
		return nil, &RecordError{ID: rec.ID, Timestamp: rec.Timestamp, Offset: r.Offset(), Err: err}
	}
	d.stats.Decoded++
	return ev, nil
}

// decodePayload reads the fields of ev.ID in wire order. It returns false for
// ids outside the schema.
func decodePayload(r *Reader, ev *Event) bool {
	switch ev.ID {

	// Library
	case LibraryInitialized, LibraryRundown:
		ev.Payload = LibraryInit{PartitionCount: r.U32(), DatapathFeatures: r.U32()}
	case LibraryUninitialized, LibraryAddRef, LibraryRelease, LibraryServerInit,
		ApiExit, ApiWaitOperation, PerfCountersRundown:
	case AllocFailure:
		ev.Payload = AllocFailureInfo{Description: r.Str(), Size: r.U64()}
	case LibraryError:
		ev.Payload = Message{Text: r.Str()}
	case LibraryErrorStatus:
		ev.Payload = StatusMessage{Status: r.U32(), Text: r.Str()}
	case LibraryAssert:
		ev.Payload = Assert{Line: r.U32(), File: r.Str(), Expression: r.Str()}
	case ApiEnter:
		ev.Payload = ApiCallInfo{Type: r.U32(), Handle: r.Pointer()}
	case ApiExitStatus:
		ev.Payload = Status{Status: r.U32()}
	case LibrarySendRetryStateUpdated:
		ev.Payload = SendRetryState{Value: r.U8()}
	case LibraryVersion:
		ev.Payload = Version{Major: r.U32(), Minor: r.U32(), Patch: r.U32(), Build: r.U32()}
	case LibraryInitializedV2, LibraryRundownV2:
		ev.Payload = PartitionCount{Count: r.U32()}
	case DataPathInitialized, DataPathRundown:
		ev.Payload = DatapathFeatures{Features: r.U32()}

	// Worker
	case WorkerCreated:
		ev.Payload = WorkerInfo{IdealProcessor: r.U16(), Owner: r.Pointer()}
	case WorkerActivityStateUpdated:
		ev.Payload = WorkerActivity{IsActive: r.U8() != 0, Arg: r.U32()}
	case WorkerQueueDelayUpdated:
		ev.Payload = WorkerQueueDelay{QueueDelay: r.U32()}
	case WorkerDestroyed:

	// Connection
	case ConnCreated, ConnRundown:
		ev.Payload = ConnectionInfo{IsServer: r.U32() != 0, CorrelationID: r.U64()}
	case ConnDestroyed, ConnHandshakeComplete, ConnHandleClosed,
		ConnCongestion, ConnPersistentCongestion:
	case ConnScheduleState:
		ev.Payload = ScheduleState{State: r.U32()}
	case ConnExecOper, ConnExecApiOper, ConnExecTimerOper:
		ev.Payload = ExecOper{Type: r.U32()}
	case ConnAssignWorker:
		ev.Payload = AssignWorker{Worker: r.Pointer()}
	case ConnTransportShutdown:
		ev.Payload = Shutdown{ErrorCode: r.U64(), Remote: r.U8() != 0, QuicStatus: r.U8() != 0}
	case ConnAppShutdown:
		ev.Payload = Shutdown{ErrorCode: r.U64(), Remote: r.U8() != 0}
	case ConnOutFlowStats:
		ev.Payload = OutFlowStats{
			BytesSent:             r.U64(),
			BytesInFlight:         r.U32(),
			BytesInFlightMax:      r.U32(),
			CongestionWindow:      r.U32(),
			SlowStartThreshold:    r.U32(),
			ConnectionFlowControl: r.U64(),
			IdealBytes:            r.U64(),
			PostedBytes:           r.U64(),
			SmoothedRTT:           r.U32(),
		}
	case ConnOutFlowBlocked:
		ev.Payload = FlowBlocked{Reasons: FlowBlockReason(r.U8())}
	case ConnInFlowStats:
		ev.Payload = InFlowStats{BytesRecv: r.U64()}
	case ConnSourceCidAdded, ConnDestCidAdded:
		ev.Payload = ConnectionID{Sequence: r.U64(), CID: bytes.Clone(r.LenBytes())}
	case ConnStats:
		ev.Payload = ConnectionStats{
			SmoothedRTT:               r.U32(),
			CongestionCount:           r.U32(),
			PersistentCongestionCount: r.U32(),
			SendTotalBytes:            r.U64(),
			RecvTotalBytes:            r.U64(),
		}
	case ConnLogError, ConnLogWarning, ConnLogInfo, ConnLogVerbose:
		ev.Payload = Message{Text: r.Str()}
	case ConnOutFlowStreamStats:
		ev.Payload = StreamFlowStats{StreamFlowControl: r.U64(), StreamSendWindow: r.U64()}

	// Stream
	case StreamCreated, StreamRundown:
		ev.Payload = StreamInfo{Connection: r.Pointer(), StreamID: r.U64(), IsLocalOwned: r.U8() != 0}
	case StreamDestroyed, StreamAppReceive, StreamAppReceiveComplete, StreamAppSend:
	case StreamOutFlowBlocked:
		ev.Payload = FlowBlocked{Reasons: FlowBlockReason(r.U8())}
	case StreamSendState, StreamRecvState:
		ev.Payload = StreamState{State: r.U8()}
	case StreamError, StreamLogError, StreamLogWarning, StreamLogInfo, StreamLogVerbose:
		ev.Payload = Message{Text: r.Str()}
	case StreamErrorStatus:
		ev.Payload = StatusMessage{Status: r.U32(), Text: r.Str()}
	case StreamAlloc:
		ev.Payload = StreamAllocInfo{Connection: r.U64()}
	case StreamWriteFrames, StreamReceiveFrame:
		ev.Payload = PacketRef{PacketID: r.U64()}

	// Datapath
	case DatapathSend:
		p := DatapathTransfer{TotalSize: r.U32(), BufferCount: r.U8(), SegmentSize: r.U16()}
		p.Remote = r.Address()
		p.Local = r.Address()
		ev.Payload = p
	case DatapathRecv:
		p := DatapathTransfer{TotalSize: r.U32(), SegmentSize: r.U16()}
		p.Local = r.Address()
		p.Remote = r.Address()
		ev.Payload = p
	case DatapathError:
		ev.Payload = Message{Text: r.Str()}
	case DatapathErrorStatus:
		ev.Payload = StatusMessage{Status: r.U32(), Text: r.Str()}
	case DatapathCreated:
		p := DatapathInfo{}
		p.Local = r.Address()
		p.Remote = r.Address()
		ev.Payload = p
	case DatapathDestroyed:

	// Log
	case LogError, LogWarning, LogInfo, LogVerbose:
		ev.Payload = Message{Text: r.Str()}

	// Packet
	case PacketCreated:
		ev.Payload = PacketInfo{BatchID: r.U64(), PacketID: r.U64()}
	case PacketEncrypt, PacketFinalize, PacketBatchSent, PacketReceive, PacketDecrypt:
		ev.Payload = PacketInfo{PacketID: r.U64()}

	default:
		return false
	}
	return true
}
