package quictrace

import "time"

// StreamPhase is where a stream's data is in the send or receive pipeline.
type StreamPhase uint8

const (
	PhaseAlloc StreamPhase = iota
	PhaseQueueSend
	PhaseProcessSend
	PhaseFrame
	PhaseWrite
	PhaseWriteOther
	PhaseEncrypt
	PhaseSend
	PhaseIdleSent
	PhaseQueueRecv
	PhaseProcessRecv
	PhaseDecrypt
	PhaseRead
	PhaseReadOther
	PhaseAppRecv
	PhaseProcessAppRecv
	PhaseIdleRecv
	PhaseIdleBoth
	PhaseCleanUp

	streamPhaseCount
)

var streamPhaseNames = [streamPhaseCount]string{
	"Alloc",
	"QueueSend",
	"ProcessSend",
	"Frame",
	"Write",
	"WriteOther",
	"Encrypt",
	"Send",
	"IdleSent",
	"QueueRecv",
	"ProcessRecv",
	"Decrypt",
	"Read",
	"ReadOther",
	"AppRecv",
	"ProcessAppRecv",
	"IdleRecv",
	"IdleBoth",
	"CleanUp",
}

func (p StreamPhase) String() string {
	if p < streamPhaseCount {
		return streamPhaseNames[p]
	}
	return "Unknown"
}

// StreamPhases lists every phase in numeric order.
func StreamPhases() []StreamPhase {
	out := make([]StreamPhase, streamPhaseCount)
	for i := range out {
		out[i] = StreamPhase(i)
	}
	return out
}

func (p StreamPhase) idle() bool {
	return p == PhaseIdleSent || p == PhaseIdleRecv || p == PhaseIdleBoth
}

// PhaseSpan is a span a stream spent in one phase.
type PhaseSpan struct {
	Phase    StreamPhase
	Start    time.Duration
	Duration time.Duration
}

type phaseChange struct {
	phase StreamPhase
	// when the phase was left
	end time.Duration
}

// StreamTiming splits a stream's lifetime into pipeline phases. Once an
// update goes back in time the timing is marked broken and stops changing.
type StreamTiming struct {
	phase      StreamPhase
	started    bool
	initial    time.Duration
	lastChange time.Duration
	times      [streamPhaseCount]time.Duration
	changes    []phaseChange

	broken    bool
	finalized bool

	sendShutdown bool
	recvShutdown bool

	firstSend    time.Duration
	hasFirstSend bool
	firstRecv    time.Duration
	hasFirstRecv bool

	sendPacket *sendPacket
	recvPacket *recvPacket
}

// Phase is the current phase.
func (st *StreamTiming) Phase() StreamPhase { return st.phase }

// Time is the total time spent in p.
func (st *StreamTiming) Time(p StreamPhase) time.Duration {
	if p >= streamPhaseCount {
		return 0
	}
	return st.times[p]
}

// Total sums the time of every phase.
func (st *StreamTiming) Total() time.Duration {
	var d time.Duration
	for _, t := range st.times {
		d += t
	}
	return d
}

// Spans returns the phases in the order they were left.
func (st *StreamTiming) Spans() []PhaseSpan {
	out := make([]PhaseSpan, 0, len(st.changes))
	prev := st.initial
	for _, c := range st.changes {
		out = append(out, PhaseSpan{Phase: c.phase, Start: prev, Duration: c.end - prev})
		prev = c.end
	}
	return out
}

// Broken reports whether an out of order update stopped the timing.
func (st *StreamTiming) Broken() bool { return st.broken }

// Finalized reports whether the stream was destroyed inside the trace.
func (st *StreamTiming) Finalized() bool { return st.finalized }

// FirstPacketSent returns when the first packet carrying the stream's data
// left in a batch.
func (st *StreamTiming) FirstPacketSent() (time.Duration, bool) {
	return st.firstSend, st.hasFirstSend
}

// FirstPacketReceived returns when the first packet carrying the stream's
// data was received.
func (st *StreamTiming) FirstPacketReceived() (time.Duration, bool) {
	return st.firstRecv, st.hasFirstRecv
}

func (st *StreamTiming) start(t time.Duration) {
	if st.started {
		return
	}
	st.started = true
	st.initial, st.lastChange = t, t
}

// update moves to next at t. With lenient set an update behind the last
// change is dropped instead of breaking the timing; a stream still in Alloc
// then starts over in QueueRecv at t, for data received before the stream
// existed.
func (st *StreamTiming) update(next StreamPhase, t time.Duration, lenient bool) {
	if st.broken || st.phase == next {
		return
	}
	if t < st.lastChange {
		switch {
		case !lenient:
			st.broken = true
		case st.phase == PhaseAlloc && next == PhaseQueueRecv:
			st.phase = next
			st.initial, st.lastChange = t, t
		}
		return
	}
	// a stream framing or decrypting was processing, not idle
	if next == PhaseFrame && (st.phase == PhaseIdleSent || st.phase == PhaseIdleBoth) {
		st.phase = PhaseProcessSend
	}
	if (next == PhaseDecrypt || next == PhaseAppRecv) && (st.phase == PhaseIdleRecv || st.phase == PhaseIdleBoth) {
		st.phase = PhaseProcessRecv
	}
	st.leave(t)
	st.phase = next
}

// toIdle moves to the idle phase matching the traffic seen so far.
func (st *StreamTiming) toIdle(t time.Duration) {
	if st.broken {
		return
	}
	if t < st.lastChange {
		st.broken = true
		return
	}
	st.leave(t)
	switch {
	case st.hasFirstRecv && st.hasFirstSend:
		if st.sendShutdown && st.recvShutdown {
			st.phase = PhaseCleanUp
		} else {
			st.phase = PhaseIdleBoth
		}
	case st.hasFirstRecv:
		st.phase = PhaseIdleRecv
	case st.hasFirstSend:
		st.phase = PhaseIdleSent
	default:
		st.phase = PhaseAlloc
	}
}

// shutdown records the end of one direction. Both directions shut down while
// idle move the stream to cleanup.
func (st *StreamTiming) shutdown(t time.Duration, send bool) {
	if send {
		st.sendShutdown = true
	} else {
		st.recvShutdown = true
	}
	if st.sendShutdown && st.recvShutdown && st.phase == PhaseIdleBoth {
		st.toIdle(t)
	}
}

// finalize closes the current phase at t and drops the trailing idle,
// cleanup and app completion phases, which only measure how long the stream
// lingered.
func (st *StreamTiming) finalize(t time.Duration, destroyed bool) {
	if st.broken || !st.started {
		return
	}
	if t < st.lastChange {
		st.broken = true
		return
	}
	st.leave(t)
	st.finalized = destroyed
	for n := len(st.changes); n > 1 && trailing(st.changes[n-1].phase); n = len(st.changes) {
		last, prev := st.changes[n-1], st.changes[n-2]
		st.times[last.phase] -= last.end - prev.end
		st.changes = st.changes[:n-1]
		st.lastChange = prev.end
	}
}

func trailing(p StreamPhase) bool {
	return p == PhaseCleanUp || p.idle() || p == PhaseProcessAppRecv
}

// leave charges the time since the last change to the current phase.
func (st *StreamTiming) leave(t time.Duration) {
	st.times[st.phase] += t - st.lastChange
	st.changes = append(st.changes, phaseChange{phase: st.phase, end: t})
	st.lastChange = t
}
