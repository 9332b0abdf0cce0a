package quictrace

import (
	"time"

	"github.com/0xrawsec/golang-utils/datastructs"
)

// AddressPair is a local/remote address pair seen on a datapath binding.
type AddressPair struct {
	Local  SocketAddress
	Remote SocketAddress
}

// Datapath is a UDP socket binding of the datapath layer.
type Datapath struct {
	object

	pairs   []AddressPair
	pairSet *datastructs.Set

	sends     uint64
	recvs     uint64
	bytesSent uint64
	bytesRecv uint64
}

func newDatapath(o object) *Datapath {
	return &Datapath{object: o, pairSet: datastructs.NewInitSet()}
}

// AddressPairs returns the distinct address pairs in first seen order.
func (d *Datapath) AddressPairs() []AddressPair { return d.pairs }

// Sends returns the number of send calls and the bytes they carried.
func (d *Datapath) Sends() (calls, bytes uint64) { return d.sends, d.bytesSent }

// Receives returns the number of receive indications and their bytes.
func (d *Datapath) Receives() (calls, bytes uint64) { return d.recvs, d.bytesRecv }

func (d *Datapath) addPair(local, remote SocketAddress) {
	p := AddressPair{Local: local, Remote: remote}
	if d.pairSet.Contains(p) {
		return
	}
	d.pairSet.Add(p)
	d.pairs = append(d.pairs, p)
}

func (d *Datapath) finish(time.Duration) {}
