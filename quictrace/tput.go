package quictrace

import "time"

// TputSeries names a per connection sample series derived from the flow
// statistics and the datapath sends attributed to the connection.
type TputSeries uint8

const (
	// TputTx is the size of each datapath send.
	TputTx TputSeries = iota
	// TputPktCreate is the growth of BytesSent between out-flow samples.
	TputPktCreate
	// TputTxAck is the drop of BytesInFlight, the bytes acknowledged or lost.
	TputTxAck
	// TputTxDelay is the gap in microseconds between datapath sends.
	TputTxDelay
	// TputRx is the growth of BytesRecv between in-flow samples.
	TputRx
	// TputRtt is the smoothed RTT in microseconds.
	TputRtt
	TputInFlight
	TputCWnd
	// TputPosted is the bytes posted by the application and not yet sent.
	TputPosted
	TputConnFC
	TputStreamFC

	tputSeriesCount
)

var tputSeriesNames = [tputSeriesCount]string{
	"Tx",
	"PktCreate",
	"TxAck",
	"TxDelay",
	"Rx",
	"Rtt",
	"InFlight",
	"CWnd",
	"Posted",
	"ConnFC",
	"StreamFC",
}

func (s TputSeries) String() string {
	if s < tputSeriesCount {
		return tputSeriesNames[s]
	}
	return "Unknown"
}

// TputSeriesList lists every series in numeric order.
func TputSeriesList() []TputSeries {
	out := make([]TputSeries, tputSeriesCount)
	for i := range out {
		out[i] = TputSeries(i)
	}
	return out
}

// TputSample holds Value from Time until the next sample of its series, or
// the connection's last event for the final one.
type TputSample struct {
	Time     time.Duration
	Duration time.Duration
	Value    uint64
}

type sampleMode uint8

const (
	// the raw value
	sampleValue sampleMode = iota
	// growth since the previous value
	sampleDiff
	// growth since the previous value, 0 for the first one
	sampleDiffTime
	// decrease since the last peak, increases only move the peak
	sampleDrop
)

var tputModes = [tputSeriesCount]struct {
	mode       sampleMode
	duplicates bool
}{
	TputTx:        {sampleValue, true},
	TputPktCreate: {sampleDiff, true},
	TputTxAck:     {sampleDrop, true},
	TputTxDelay:   {sampleDiffTime, true},
	TputRx:        {sampleDiff, true},
	TputRtt:       {sampleValue, false},
	TputInFlight:  {sampleValue, false},
	TputCWnd:      {sampleValue, false},
	TputPosted:    {sampleValue, false},
	TputConnFC:    {sampleValue, false},
	TputStreamFC:  {sampleValue, false},
}

// tputSampler turns raw counter observations of one series into samples. A
// sample is only emitted once the next one starts, the pending one is closed
// by finish.
type tputSampler struct {
	last    uint64
	set     bool
	pending TputSample
	samples []TputSample
}

func (s *tputSampler) update(series TputSeries, t time.Duration, v uint64) {
	m := tputModes[series]
	if s.set && v == s.last && !m.duplicates {
		return
	}
	if m.mode == sampleDrop && v > s.last {
		s.last = v
		return
	}
	if s.set {
		s.pending.Duration = max(t-s.pending.Time, 0)
		s.samples = append(s.samples, s.pending)
	}
	s.pending.Time = t
	switch m.mode {
	case sampleValue:
		s.pending.Value = v
	case sampleDiff:
		s.pending.Value = growth(s.last, v)
	case sampleDiffTime:
		s.pending.Value = 0
		if s.set {
			s.pending.Value = growth(s.last, v)
		}
	case sampleDrop:
		s.pending.Value = s.last - v
	}
	s.last = v
	s.set = true
}

func (s *tputSampler) finish(t time.Duration) {
	if !s.set {
		return
	}
	s.pending.Duration = max(t-s.pending.Time, 0)
	s.samples = append(s.samples, s.pending)
	s.set = false
}

// growth is b-a, 0 when a counter went backwards.
func growth(a, b uint64) uint64 {
	if b < a {
		return 0
	}
	return b - a
}
