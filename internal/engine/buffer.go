package engine

import (
	"sync"

	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
)

type buffered struct {
	from party.ID
	data []byte
}

// deliveryKey identifies one (sender, channel-id) delivery: the unit
// Deliver must treat idempotently. header alone is not enough — a shared
// channel's header is the same for every peer's contribution to a round,
// so from is part of the key too.
type deliveryKey struct {
	header MessageHeader
	from   party.ID
}

// messageBuffer holds messages that have arrived ahead of the channel
// receive that will consume them, keyed by header. A protocol goroutine
// calling pop for a header with nothing queued blocks until push supplies
// one, via the shared cond rather than a per-header channel, since the set
// of headers in play isn't known up front.
type messageBuffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	messages map[MessageHeader][]buffered
	seen     map[deliveryKey]struct{}
	// waiting counts, per header, the goroutines parked in pop for it;
	// owner is the Engine they are counted against.
	waiting map[MessageHeader]int
	owner   *Engine
}

func newMessageBuffer() *messageBuffer {
	b := &messageBuffer{
		messages: make(map[MessageHeader][]buffered),
		seen:     make(map[deliveryKey]struct{}),
		waiting:  make(map[MessageHeader]int),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// push enqueues a message for header, waking any goroutine parked waiting
// for it (or for any other header, which will simply re-check and park
// again if it wasn't theirs). A second push for a (from, header) pair
// already seen is discarded rather than enqueued a second time — Deliver
// is idempotent only up to this exact pairing, per the engine's delivery
// contract: a genuine retransmission must not be mistaken for a second,
// distinct sender's contribution to the same round. If a goroutine is
// parked waiting for header, push un-parks it before returning, so Step
// never counts it as parked while it is about to consume this message.
func (b *messageBuffer) push(header MessageHeader, from party.ID, data []byte) {
	key := deliveryKey{header: header, from: from}
	b.mu.Lock()
	if _, dup := b.seen[key]; dup {
		b.mu.Unlock()
		return
	}
	b.seen[key] = struct{}{}
	b.messages[header] = append(b.messages[header], buffered{from: from, data: data})
	if b.waiting[header] > 0 {
		b.waiting[header]--
		b.owner.exitPark()
	}
	b.mu.Unlock()
	b.cond.Broadcast()
}

// pop blocks until a message is available for header, then returns it.
// While blocked, and until the push that supplies its message, the calling
// goroutine is counted as parked in e, so that Step can tell the difference
// between "stuck waiting for Deliver" and "still computing".
func (b *messageBuffer) pop(e *Engine, header MessageHeader) (party.ID, []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.owner = e
	parked := false
	for {
		queue := b.messages[header]
		if len(queue) > 0 {
			msg := queue[0]
			b.messages[header] = queue[1:]
			return msg.from, msg.data
		}
		if !parked {
			b.waiting[header]++
			e.enterPark()
			parked = true
		}
		b.cond.Wait()
	}
}
