package quictrace

import "time"

type packetKey struct {
	pid uint32
	id  uint64
}

// sendPacket is a packet being built, tracked from PacketCreated until its
// batch is sent.
type sendPacket struct {
	created    time.Duration
	firstWrite time.Duration
	written    bool
	// streams that wrote frames into the packet
	streams []EntityID
}

// recvPacket is a received packet, tracked until another packet with the
// same id is received.
type recvPacket struct {
	received       time.Duration
	decrypted      time.Duration
	hasDecrypt     bool
	decryptDone    time.Duration
	hasDecryptDone bool
}

// foldPacket tracks packets so stream frames can be timed against them.
func (f *Folder) foldPacket(ev *Event) {
	p, ok := payloadAs[PacketInfo](f, ev)
	if !ok {
		return
	}
	key := packetKey{ev.ProcessID, p.PacketID}

	switch ev.ID {
	case PacketCreated:
		f.sendPackets[key] = &sendPacket{created: ev.Timestamp}
		batch := packetKey{ev.ProcessID, p.BatchID}
		f.batches[batch] = append(f.batches[batch], key)

	case PacketEncrypt:
		f.packetStreams(key, PhaseEncrypt, ev.Timestamp)

	case PacketFinalize:
		f.packetStreams(key, PhaseSend, ev.Timestamp)

	case PacketBatchSent:
		// PacketID holds the batch id
		for _, k := range f.batches[key] {
			sp := f.sendPackets[k]
			if sp == nil {
				continue
			}
			for _, id := range sp.streams {
				if s := f.m.stream(id); s != nil {
					st := &s.timing
					if !st.hasFirstSend {
						st.firstSend, st.hasFirstSend = ev.Timestamp, true
					}
					st.toIdle(ev.Timestamp)
				}
			}
			delete(f.sendPackets, k)
		}
		delete(f.batches, key)

	case PacketReceive:
		f.recvPackets[key] = &recvPacket{received: ev.Timestamp}

	case PacketDecrypt:
		if rp := f.recvPackets[key]; rp != nil {
			rp.decrypted, rp.hasDecrypt = ev.Timestamp, true
		}
	}
}

// packetStreams moves every stream with frames in a send packet to phase.
func (f *Folder) packetStreams(key packetKey, phase StreamPhase, t time.Duration) {
	sp := f.sendPackets[key]
	if sp == nil {
		return
	}
	for _, id := range sp.streams {
		if s := f.m.stream(id); s != nil {
			s.timing.update(phase, t, false)
		}
	}
}

// streamWrite times a StreamWriteFrames record against its send packet.
func (f *Folder) streamWrite(s *Stream, pid uint32, packet uint64, t time.Duration) {
	st := &s.timing
	sp := f.sendPackets[packetKey{pid, packet}]
	if sp == nil {
		st.broken = true
		return
	}
	if sp != st.sendPacket {
		st.sendPacket = sp
		if c := f.m.connection(s.connection); c != nil {
			if last, ok := c.lastSchedule(); ok {
				st.update(PhaseProcessSend, last.Time, true)
			}
		}
		st.update(PhaseFrame, sp.created, false)
		if !sp.written {
			sp.firstWrite, sp.written = t, true
		} else {
			// the packet is shared, streams already in it wait on this write
			for _, id := range sp.streams {
				if o := f.m.stream(id); o != nil {
					o.timing.update(PhaseWriteOther, t, false)
				}
			}
			st.update(PhaseWriteOther, sp.firstWrite, false)
		}
		sp.streams = append(sp.streams, s.id)
	}
	st.update(PhaseWrite, t, false)
}

// streamReceive times a StreamReceiveFrame record against its receive packet.
// prev is the stream's previous record.
func (f *Folder) streamReceive(s *Stream, pid uint32, packet uint64, t, prev time.Duration) {
	st := &s.timing
	rp := f.recvPackets[packetKey{pid, packet}]
	if rp == nil {
		st.broken = true
		return
	}
	if !st.hasFirstRecv {
		st.firstRecv, st.hasFirstRecv = rp.received, true
	}
	if rp != st.recvPacket {
		st.recvPacket = rp
		st.update(PhaseQueueRecv, rp.received, true)
		if c := f.m.connection(s.connection); c != nil {
			if last, ok := c.lastSchedule(); ok {
				st.update(PhaseProcessRecv, last.Time, true)
			}
		}
		if rp.hasDecrypt {
			st.update(PhaseDecrypt, rp.decrypted, false)
			if !rp.hasDecryptDone {
				rp.decryptDone, rp.hasDecryptDone = t, true
			} else {
				st.update(PhaseReadOther, rp.decryptDone, false)
			}
		}
	}
	if prev > st.lastChange {
		st.update(PhaseProcessRecv, prev, false)
	}
	st.update(PhaseRead, t, false)
}
