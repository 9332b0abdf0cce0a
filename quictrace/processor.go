package quictrace

import (
	"context"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tekert/golang-quictrace/logsampler/adapters/phusluadapter"
)

type processorOptions struct {
	logWriter  io.Writer
	logger     *phusluadapter.SampledLogger
	registerer prometheus.Registerer
}

type ProcessorOption func(*processorOptions)

// WithLogWriter sets where the processor's logger writes, stderr by default.
func WithLogWriter(w io.Writer) ProcessorOption {
	return func(o *processorOptions) {
		o.logWriter = w
	}
}

// WithLogger makes the processor log through l instead of building a logger
// from the config. The caller keeps ownership of l.
func WithLogger(l *phusluadapter.SampledLogger) ProcessorOption {
	return func(o *processorOptions) {
		o.logger = l
	}
}

// WithRegisterer registers the processor metrics on reg.
func WithRegisterer(reg prometheus.Registerer) ProcessorOption {
	return func(o *processorOptions) {
		o.registerer = reg
	}
}

// Processor decodes raw records and folds them into a fresh Model. It is the
// single consumer of the record stream; producers may run concurrently and
// hand records over a channel to Run.
type Processor struct {
	decoder *Decoder
	folder  *Folder
	log     *phusluadapter.SampledLogger
	metrics *Metrics
	ownsLog bool
}

func NewProcessor(cfg Config, opts ...ProcessorOption) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o processorOptions
	for _, opt := range opts {
		opt(&o)
	}

	p := &Processor{
		decoder: NewDecoder(cfg.decoderOptions()...),
		log:     o.logger,
	}
	if p.log == nil {
		p.log = phusluadapter.New(NewLogger(cfg.Log.Level, o.logWriter),
			cfg.Log.SampleBurst, time.Duration(cfg.Log.SampleWindow))
		p.ownsLog = true
	}
	if o.registerer != nil {
		m, err := NewMetrics(o.registerer)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.metrics = m
	}
	p.folder = NewFolder(NewModel(), WithFolderLogger(p.log), WithFolderMetrics(p.metrics))

	p.log.Debug().
		Str("run_id", p.folder.Model().RunID().String()).
		Stringer("parse_mode", cfg.ParseMode).
		Msg("processor ready")
	return p, nil
}

func (p *Processor) Model() *Model {
	return p.folder.Model()
}

// Process decodes and folds one record. Malformed records are logged and
// counted, never returned; the only error is folding after Finalize.
func (p *Processor) Process(rec *RawRecord) error {
	ev, err := p.decoder.Decode(rec)
	switch {
	case err != nil:
		p.metrics.record(resultMalformed)
		logRecordError(p.log, rec, err)
		return nil
	case ev == nil:
		if p.decoder.Gated(rec.ID) {
			p.metrics.record(resultGated)
		} else {
			p.metrics.record(resultUnknown)
		}
		return nil
	}
	p.metrics.record(resultDecoded)
	return p.folder.Fold(ev)
}

// Run consumes records until in is closed or ctx is done, then finalizes. The
// context is checked between records. On cancellation the partial result is
// returned together with the context's error.
func (p *Processor) Run(ctx context.Context, in <-chan RawRecord) (*Query, error) {
	for {
		if ctx.Err() != nil {
			return p.stop(ctx)
		}
		select {
		case <-ctx.Done():
			return p.stop(ctx)
		case rec, ok := <-in:
			if !ok {
				return p.Finalize()
			}
			if err := p.Process(&rec); err != nil {
				return nil, err
			}
		}
	}
}

func (p *Processor) stop(ctx context.Context) (*Query, error) {
	q, err := p.Finalize()
	if err != nil {
		return nil, err
	}
	p.log.Info().
		Dur("trace_end", q.TraceEnd()).
		Err(ctx.Err()).
		Msg("processing stopped early")
	return q, ctx.Err()
}

// Finalize freezes the model and returns its query surface.
func (p *Processor) Finalize() (*Query, error) {
	m := p.folder.Model()
	if !m.finalized {
		m.decode = p.decoder.Stats()
	}
	q, err := p.folder.Finalize()
	if err != nil {
		return nil, err
	}
	s := q.DecodeStats()
	p.log.Info().
		Str("run_id", q.RunID().String()).
		Uint64("decoded", s.Decoded).
		Uint64("unknown", s.Unknown).
		Uint64("gated", s.Gated).
		Uint64("malformed", s.Malformed).
		Int("workers", len(q.Workers())).
		Int("connections", len(q.Connections())).
		Int("streams", len(q.Streams())).
		Msg("trace folded")
	return q, nil
}

// Close stops the sampler of a logger created by the processor.
func (p *Processor) Close() {
	if p.ownsLog {
		p.log.Close()
	}
}
