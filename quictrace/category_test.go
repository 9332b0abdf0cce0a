package quictrace

import (
	"testing"

	"github.com/0xrawsec/toast"
)

func TestResolveCategoryOpcode(t *testing.T) {
	t.Parallel()
	tt := toast.FromT(t)

	for _, c := range Categories() {
		// keywords are ignored when the opcode carries the category
		tt.Assert(ResolveCategory(GlobalOpcodeBase+uint8(c), KeywordStream) == c)
	}
	tt.Assert(ResolveCategory(GlobalOpcodeBase+uint8(categoryCount), 0) == CategoryGlobal)
	tt.Assert(ResolveCategory(255, KeywordWorker) == CategoryGlobal)
}

func TestResolveCategoryKeywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		keywords uint64
		want     Category
	}{
		{"none", 0, CategoryGlobal},
		{"stream only", KeywordStream, CategoryStream},
		{"connection and tls", KeywordConnection | KeywordTLS, CategoryConnection},
		{"tls only", KeywordTLS, CategoryConnection},
		{"udp", KeywordUDP, CategoryDatapath},
		{"registration wins", KeywordRegistration | KeywordWorker | KeywordStream, CategoryRegistration},
		{"configuration over listener", KeywordConfiguration | KeywordListener, CategoryConfiguration},
		{"listener over worker", KeywordListener | KeywordWorker, CategoryListener},
		{"worker over binding", KeywordWorker | KeywordBinding, CategoryWorker},
		{"binding over connection", KeywordBinding | KeywordConnection, CategoryBinding},
		{"connection over stream", KeywordConnection | KeywordStream, CategoryConnection},
		{"stream over udp", KeywordStream | KeywordUDP, CategoryStream},
		{"api and log", KeywordAPI | KeywordLog | KeywordLowVolume, CategoryGlobal},
		{"packet", KeywordPacket | KeywordDataFlow, CategoryGlobal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tt := toast.FromT(t)
			for opcode := uint8(0); opcode < GlobalOpcodeBase; opcode++ {
				tt.Assert(ResolveCategory(opcode, tc.keywords) == tc.want)
			}
		})
	}
}

func TestBlockCategory(t *testing.T) {
	t.Parallel()
	tt := toast.FromT(t)

	tt.Assert(ApiEnter.BlockCategory() == CategoryGlobal)
	tt.Assert(EventID(1024).BlockCategory() == CategoryRegistration)
	tt.Assert(WorkerCreated.BlockCategory() == CategoryWorker)
	tt.Assert(EventID(3072).BlockCategory() == CategoryConfiguration)
	tt.Assert(EventID(4096).BlockCategory() == CategoryListener)
	tt.Assert(ConnOutFlowStreamStats.BlockCategory() == CategoryConnection)
	tt.Assert(StreamAppSend.BlockCategory() == CategoryStream)
	tt.Assert(EventID(7168).BlockCategory() == CategoryBinding)
	tt.Assert(EventID(8192).BlockCategory() == CategoryConnection)
	tt.Assert(DatapathDestroyed.BlockCategory() == CategoryDatapath)
	tt.Assert(LogVerbose.BlockCategory() == CategoryGlobal)
	tt.Assert(PacketDecrypt.BlockCategory() == CategoryGlobal)
}

func TestEventIDNumbering(t *testing.T) {
	t.Parallel()
	tt := toast.FromT(t)

	// spot checks against the provider manifest
	tt.Assert(ApiEnter == 11)
	tt.Assert(DataPathRundown == 21)
	tt.Assert(WorkerActivityStateUpdated == 2051)
	tt.Assert(WorkerDestroyed == 2053)
	tt.Assert(ConnAssignWorker == 5131)
	tt.Assert(ConnTransportShutdown == 5135)
	tt.Assert(ConnHandleClosed == 5138)
	tt.Assert(ConnOutFlowStats == 5140)
	tt.Assert(ConnCongestion == 5144)
	tt.Assert(ConnRundown == 5147)
	tt.Assert(ConnStats == 5160)
	tt.Assert(ConnLogError == 5168)
	tt.Assert(ConnOutFlowStreamStats == 5173)
	tt.Assert(StreamAlloc == 6156)
	tt.Assert(StreamAppSend == 6161)
	tt.Assert(DatapathSend == 9217)
	tt.Assert(DatapathDestroyed == 9222)
	tt.Assert(PacketDecrypt == 11269)

	tt.Assert(ConnStats.String() == "ConnStats")
	tt.Assert(EventID(60000).String() == "Event(60000)")
}
