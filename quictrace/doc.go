/*
Package quictrace rebuilds the state of a QUIC implementation from its trace
records.

Records come from a capture layer that is not part of this package: each one
is a RawRecord holding the provider's record id, timing and thread metadata,
the pointer width of the emitting process and the payload bytes. The Decoder
turns a record into an Event following the provider's positional little-endian
layout, the Folder applies events in timestamp order to a Model, and once the
Folder is finalized the Model is read through a Query.

	p, err := quictrace.NewProcessor(quictrace.DefaultConfig())
	if err != nil {
		return err
	}
	defer p.Close()

	q, err := p.Run(ctx, records)
	if err != nil && q == nil {
		return err
	}
	for _, c := range q.Connections() {
		tx, _ := q.RateSeries(c.ID(), quictrace.DirectionTx)
		...
	}

Object pointers found in records are only identity keys. Each modeled object
gets a synthetic EntityID the first time it is seen; a destroyed pointer is
unbound so a reused address starts a new entity.
*/
package quictrace
