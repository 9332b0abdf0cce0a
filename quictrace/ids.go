package quictrace

import "strconv"

// EventID is the provider's record id.
type EventID uint16

// First id of each block. Ids are allocated per block of 1024.
const (
	libraryBase       EventID = 1
	registrationBase  EventID = 1024
	workerBase        EventID = 2048
	configurationBase EventID = 3072
	listenerBase      EventID = 4096
	connectionBase    EventID = 5120
	streamBase        EventID = 6144
	bindingBase       EventID = 7168
	tlsBase           EventID = 8192
	datapathBase      EventID = 9217
	logBase           EventID = 10240
	packetBase        EventID = 11264
)

// Library and API records.
const (
	LibraryInitialized EventID = libraryBase + iota
	LibraryUninitialized
	LibraryAddRef
	LibraryRelease
	LibraryServerInit
	AllocFailure
	LibraryRundown
	LibraryError
	LibraryErrorStatus
	LibraryAssert
	ApiEnter
	ApiExit
	ApiExitStatus
	ApiWaitOperation
	PerfCountersRundown
	LibrarySendRetryStateUpdated
	LibraryVersion
	LibraryInitializedV2
	DataPathInitialized
	LibraryRundownV2
	DataPathRundown
)

// Worker records.
const (
	WorkerCreated EventID = workerBase + iota
	WorkerStart
	WorkerStop
	WorkerActivityStateUpdated
	WorkerQueueDelayUpdated
	WorkerDestroyed
)

// Connection records.
const (
	ConnCreated EventID = connectionBase + iota
	ConnDestroyed
	ConnHandshakeComplete
	ConnScheduleState
	ConnExecOper
	ConnExecApiOper
	ConnExecTimerOper
	ConnLocalAddrAdded
	ConnRemoteAddrAdded
	ConnLocalAddrRemoved
	ConnRemoteAddrRemoved
	ConnAssignWorker
	ConnHandshakeStart
	ConnRegisterSession
	ConnUnregisterSession
	ConnTransportShutdown
	ConnAppShutdown
	ConnInitializeComplete
	ConnHandleClosed
	ConnVersionSet
	ConnOutFlowStats
	ConnOutFlowBlocked
	ConnInFlowStats
	ConnCubic
	ConnCongestion
	ConnPersistentCongestion
	ConnRecoveryExit
	ConnRundown
	ConnSourceCidAdded
	ConnDestCidAdded
	ConnSourceCidRemoved
	ConnDestCidRemoved
	ConnLossDetectionTimerSet
	ConnLossDetectionTimerCancel
	ConnDropPacket
	ConnDropPacketEx
	ConnError
	ConnErrorStatus
	ConnNewPacketKeys
	ConnKeyPhaseChange
	ConnStats
	ConnShutdownComplete
	ConnReadKeyUpdated
	ConnWriteKeyUpdated
	ConnPacketSent
	ConnPacketRecv
	ConnPacketLost
	ConnPacketACKed
	ConnLogError
	ConnLogWarning
	ConnLogInfo
	ConnLogVerbose
	ConnQueueSendFlush
	ConnOutFlowStreamStats
)

// Stream records.
const (
	StreamCreated EventID = streamBase + iota
	StreamDestroyed
	StreamOutFlowBlocked
	StreamRundown
	StreamSendState
	StreamRecvState
	StreamError
	StreamErrorStatus
	StreamLogError
	StreamLogWarning
	StreamLogInfo
	StreamLogVerbose
	StreamAlloc
	StreamWriteFrames
	StreamReceiveFrame
	StreamAppReceive
	StreamAppReceiveComplete
	StreamAppSend
)

// Datapath records.
const (
	DatapathSend EventID = datapathBase + iota
	DatapathRecv
	DatapathError
	DatapathErrorStatus
	DatapathCreated
	DatapathDestroyed
)

// Log records.
const (
	LogError EventID = logBase + iota
	LogWarning
	LogInfo
	LogVerbose
)

// Packet records.
const (
	PacketCreated EventID = packetBase + iota
	PacketEncrypt
	PacketFinalize
	PacketBatchSent
	PacketReceive
	PacketDecrypt
)

var eventNames = map[EventID]string{
	LibraryInitialized:           "LibraryInitialized",
	LibraryUninitialized:         "LibraryUninitialized",
	LibraryAddRef:                "LibraryAddRef",
	LibraryRelease:               "LibraryRelease",
	LibraryServerInit:            "LibraryServerInit",
	AllocFailure:                 "AllocFailure",
	LibraryRundown:               "LibraryRundown",
	LibraryError:                 "LibraryError",
	LibraryErrorStatus:           "LibraryErrorStatus",
	LibraryAssert:                "LibraryAssert",
	ApiEnter:                     "ApiEnter",
	ApiExit:                      "ApiExit",
	ApiExitStatus:                "ApiExitStatus",
	ApiWaitOperation:             "ApiWaitOperation",
	PerfCountersRundown:          "PerfCountersRundown",
	LibrarySendRetryStateUpdated: "LibrarySendRetryStateUpdated",
	LibraryVersion:               "LibraryVersion",
	LibraryInitializedV2:         "LibraryInitializedV2",
	DataPathInitialized:          "DataPathInitialized",
	LibraryRundownV2:             "LibraryRundownV2",
	DataPathRundown:              "DataPathRundown",

	WorkerCreated:              "WorkerCreated",
	WorkerStart:                "WorkerStart",
	WorkerStop:                 "WorkerStop",
	WorkerActivityStateUpdated: "WorkerActivityStateUpdated",
	WorkerQueueDelayUpdated:    "WorkerQueueDelayUpdated",
	WorkerDestroyed:            "WorkerDestroyed",

	ConnCreated:              "ConnCreated",
	ConnDestroyed:            "ConnDestroyed",
	ConnHandshakeComplete:    "ConnHandshakeComplete",
	ConnScheduleState:        "ConnScheduleState",
	ConnExecOper:             "ConnExecOper",
	ConnExecApiOper:          "ConnExecApiOper",
	ConnExecTimerOper:        "ConnExecTimerOper",
	ConnAssignWorker:         "ConnAssignWorker",
	ConnTransportShutdown:    "ConnTransportShutdown",
	ConnAppShutdown:          "ConnAppShutdown",
	ConnHandleClosed:         "ConnHandleClosed",
	ConnOutFlowStats:         "ConnOutFlowStats",
	ConnOutFlowBlocked:       "ConnOutFlowBlocked",
	ConnInFlowStats:          "ConnInFlowStats",
	ConnCongestion:           "ConnCongestion",
	ConnPersistentCongestion: "ConnPersistentCongestion",
	ConnRundown:              "ConnRundown",
	ConnSourceCidAdded:       "ConnSourceCidAdded",
	ConnDestCidAdded:         "ConnDestCidAdded",
	ConnStats:                "ConnStats",
	ConnLogError:             "ConnLogError",
	ConnLogWarning:           "ConnLogWarning",
	ConnLogInfo:              "ConnLogInfo",
	ConnLogVerbose:           "ConnLogVerbose",
	ConnOutFlowStreamStats:   "ConnOutFlowStreamStats",

	StreamCreated:            "StreamCreated",
	StreamDestroyed:          "StreamDestroyed",
	StreamOutFlowBlocked:     "StreamOutFlowBlocked",
	StreamRundown:            "StreamRundown",
	StreamSendState:          "StreamSendState",
	StreamRecvState:          "StreamRecvState",
	StreamError:              "StreamError",
	StreamErrorStatus:        "StreamErrorStatus",
	StreamLogError:           "StreamLogError",
	StreamLogWarning:         "StreamLogWarning",
	StreamLogInfo:            "StreamLogInfo",
	StreamLogVerbose:         "StreamLogVerbose",
	StreamAlloc:              "StreamAlloc",
	StreamWriteFrames:        "StreamWriteFrames",
	StreamReceiveFrame:       "StreamReceiveFrame",
	StreamAppReceive:         "StreamAppReceive",
	StreamAppReceiveComplete: "StreamAppReceiveComplete",
	StreamAppSend:            "StreamAppSend",

	DatapathSend:        "DatapathSend",
	DatapathRecv:        "DatapathRecv",
	DatapathError:       "DatapathError",
	DatapathErrorStatus: "DatapathErrorStatus",
	DatapathCreated:     "DatapathCreated",
	DatapathDestroyed:   "DatapathDestroyed",

	LogError:   "LogError",
	LogWarning: "LogWarning",
	LogInfo:    "LogInfo",
	LogVerbose: "LogVerbose",

	PacketCreated:   "PacketCreated",
	PacketEncrypt:   "PacketEncrypt",
	PacketFinalize:  "PacketFinalize",
	PacketBatchSent: "PacketBatchSent",
	PacketReceive:   "PacketReceive",
	PacketDecrypt:   "PacketDecrypt",
}

func (id EventID) String() string {
	if s, ok := eventNames[id]; ok {
		return s
	}
	return "Event(" + strconv.Itoa(int(id)) + ")"
}

// BlockCategory is the category implied by the id block an id belongs to.
// TLS records belong to connections; log and packet records are Global.
func (id EventID) BlockCategory() Category {
	switch {
	case id >= logBase:
		return CategoryGlobal
	case id >= datapathBase:
		return CategoryDatapath
	case id >= tlsBase:
		return CategoryConnection
	case id >= bindingBase:
		return CategoryBinding
	case id >= streamBase:
		return CategoryStream
	case id >= connectionBase:
		return CategoryConnection
	case id >= listenerBase:
		return CategoryListener
	case id >= configurationBase:
		return CategoryConfiguration
	case id >= workerBase:
		return CategoryWorker
	case id >= registrationBase:
		return CategoryRegistration
	}
	return CategoryGlobal
}
