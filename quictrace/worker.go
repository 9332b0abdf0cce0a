package quictrace

import "time"

// ActivityTransition is a worker switching between active and idle.
type ActivityTransition struct {
	Time   time.Duration
	Active bool
	Arg    uint32
}

type QueueDelaySample struct {
	Time  time.Duration
	Delay time.Duration
}

// SchedulingStats sums the time connections on a worker spent in one
// scheduling state.
type SchedulingStats struct {
	Count uint64
	Total time.Duration
	Max   time.Duration
}

// Average is the mean time per transition, 0 without transitions.
func (s SchedulingStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Worker is a QUIC execution worker thread.
type Worker struct {
	object

	idealProcessor uint16
	owner          uint64
	threadID       uint32
	hasThread      bool

	activity    []ActivityTransition
	queueDelays []QueueDelaySample
	connections []EntityID
	current     int

	// indexed by connection scheduling state
	scheduling [ScheduleProcessing + 1]SchedulingStats

	active      bool
	activeSince time.Duration
	totalActive time.Duration
}

func (w *Worker) IdealProcessor() uint16 { return w.idealProcessor }

// Owner is the registration pointer that created the worker.
func (w *Worker) Owner() uint64 { return w.owner }

// ThreadID returns the last thread seen running the worker.
func (w *Worker) ThreadID() (uint32, bool) { return w.threadID, w.hasThread }

func (w *Worker) Activity() []ActivityTransition { return w.activity }

func (w *Worker) QueueDelays() []QueueDelaySample { return w.queueDelays }

// Connections returns the ids of the connections assigned to the worker, in
// assignment order.
func (w *Worker) Connections() []EntityID { return w.connections }

// CurrentConnections counts the connections assigned to the worker and not
// moved to another one since.
func (w *Worker) CurrentConnections() int { return w.current }

// Scheduling returns the time connections spent in state while on the
// worker. The time between two ConnScheduleState records is charged to the
// state the first one entered.
func (w *Worker) Scheduling(state uint32) SchedulingStats {
	if int(state) >= len(w.scheduling) {
		return SchedulingStats{}
	}
	return w.scheduling[state]
}

// AverageScheduleQueueDelay is the mean time connections waited queued on
// the worker before being processed.
func (w *Worker) AverageScheduleQueueDelay() time.Duration {
	return w.scheduling[ScheduleQueued].Average()
}

// TotalProcessingTime is the time connections spent being processed on the
// worker.
func (w *Worker) TotalProcessingTime() time.Duration {
	return w.scheduling[ScheduleProcessing].Total
}

// TotalActive is the time spent active, open intervals counted up to the
// worker's destruction or the trace end.
func (w *Worker) TotalActive() time.Duration { return w.totalActive }

// AverageQueueDelay is the mean of the queue delay samples, 0 without samples.
func (w *Worker) AverageQueueDelay() time.Duration {
	if len(w.queueDelays) == 0 {
		return 0
	}
	var sum time.Duration
	for _, s := range w.queueDelays {
		sum += s.Delay
	}
	return sum / time.Duration(len(w.queueDelays))
}

func (w *Worker) setActive(t time.Duration, active bool, arg uint32) {
	w.activity = append(w.activity, ActivityTransition{Time: t, Active: active, Arg: arg})
	w.accumulate(t)
	w.active = active
}

func (w *Worker) addQueueDelay(t time.Duration, us uint32) {
	w.queueDelays = append(w.queueDelays, QueueDelaySample{Time: t, Delay: time.Duration(us) * time.Microsecond})
}

func (w *Worker) addConnection(id EntityID) {
	w.connections = append(w.connections, id)
	w.current++
}

func (w *Worker) removeConnection() {
	if w.current > 0 {
		w.current--
	}
}

func (w *Worker) addScheduling(state uint32, d time.Duration) {
	if int(state) >= len(w.scheduling) || d < 0 {
		return
	}
	s := &w.scheduling[state]
	s.Count++
	s.Total += d
	s.Max = max(s.Max, d)
}

func (w *Worker) finish(t time.Duration) {
	w.accumulate(t)
	w.active = false
}

// accumulate adds the active time up to t. A timestamp behind activeSince
// adds nothing and does not move activeSince back.
func (w *Worker) accumulate(t time.Duration) {
	if t <= w.activeSince {
		return
	}
	if w.active {
		w.totalActive += t - w.activeSince
	}
	w.activeSince = t
}
