package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
	"github.com/zeebo/blake3"
)

// tagSize is the length, in bytes, of a ChannelTag.
const tagSize = 20

// ChannelTag names a logical communication channel within a protocol run.
// Every message carries the tag of the channel it belongs to, so that a
// single Deliver stream can be demultiplexed across however many channels
// a protocol opens without either side needing to agree on an ordering up
// front. Tags are derived rather than allocated: RootShared always
// produces the same tag, RootPrivate(a, b) always produces the same tag
// regardless of which of a, b computes it, and Child(i) deterministically
// derives a fresh subchannel from a parent, so two participants never need
// to exchange a tag out of band.
type ChannelTag [tagSize]byte

func tagFromHash(domain string, parts ...[]byte) ChannelTag {
	h := blake3.New()
	_, _ = h.Write([]byte(domain))
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	var out ChannelTag
	_, _ = h.Digest().Read(out[:])
	return out
}

// RootShared returns the tag of the single channel shared by every
// participant in a protocol run.
func RootShared() ChannelTag {
	return tagFromHash("Channel.RootShared")
}

// RootPrivate returns the tag of the channel private to the pair {a, b}.
// It is symmetric: RootPrivate(a, b) == RootPrivate(b, a).
func RootPrivate(a, b party.ID) ChannelTag {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return tagFromHash("Channel.RootPrivate", lo.Bytes(), hi.Bytes())
}

// Child derives a fresh subchannel of t, indexed by i. Protocols that open
// several independent conversations over what would otherwise be the same
// root channel (for example, one Triple Setup instance per ordered pair of
// participants) use Child to keep their message streams from colliding.
func (t ChannelTag) Child(i uint64) ChannelTag {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], i)
	return tagFromHash("Channel.Child", t[:], idx[:])
}

func (t ChannelTag) String() string {
	return fmt.Sprintf("%x", t[:6])
}

// Waitpoint distinguishes successive messages sent over the same channel.
// A channel's waitpoint counter starts at zero and advances by one on every
// send, independently on every distinct channel value in play, so replayed
// or out-of-order messages on other channels never collide with it.
type Waitpoint uint64

// headerSize is the wire length of a MessageHeader.
const headerSize = tagSize + 8

// MessageHeader prefixes every message on the wire, identifying which
// channel and which position within that channel's send sequence the
// payload that follows belongs to.
type MessageHeader struct {
	Channel   ChannelTag
	Waitpoint Waitpoint
}

// Bytes encodes h in its canonical wire form.
func (h MessageHeader) Bytes() []byte {
	out := make([]byte, headerSize)
	copy(out, h.Channel[:])
	binary.BigEndian.PutUint64(out[tagSize:], uint64(h.Waitpoint))
	return out
}

// HeaderFromBytes decodes a MessageHeader from the front of b, returning it
// together with the remaining payload bytes.
func HeaderFromBytes(b []byte) (MessageHeader, []byte, error) {
	if len(b) < headerSize {
		return MessageHeader{}, nil, fmt.Errorf("engine: message too short for a header: %d bytes", len(b))
	}
	var h MessageHeader
	copy(h.Channel[:], b[:tagSize])
	h.Waitpoint = Waitpoint(binary.BigEndian.Uint64(b[tagSize:headerSize]))
	return h, b[headerSize:], nil
}
