package protocol

import (
	"errors"
	"sync"

	"github.com/cait-sith-go/threshold-ecdsa/internal/engine"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
)

// Handler wraps a running engine.Engine, translating its Step/Deliver pair
// into an outgoing Message channel and an Accept method a host can call as
// messages arrive off the network, in whatever order they show up.
//
// A Handler owns exactly one goroutine, spawned by NewHandler, which pumps
// engine.Step in a loop and pushes every SendMany/SendOne it sees onto
// out. Step itself returns KindWaitMore immediately, without blocking,
// once the protocol has parked every one of its internal threads — so the
// pump parks on cond rather than calling Step again in a busy loop; Accept
// broadcasts on cond every time it delivers something, which is the only
// event that can make Step productive again.
type Handler struct {
	me   party.ID
	e    *engine.Engine
	out  chan Message
	done chan struct{}

	mu       sync.Mutex
	cond     *sync.Cond
	woken    bool
	result   interface{}
	err      error
	finished bool
}

// NewHandler starts proto running as me and returns a Handler for
// interacting with it. The protocol begins executing immediately.
func NewHandler(me party.ID, proto engine.Protocol) *Handler {
	h := &Handler{
		me:   me,
		e:    engine.New(me, proto),
		out:  make(chan Message, 8),
		done: make(chan struct{}),
	}
	h.cond = sync.NewCond(&h.mu)
	go h.pump()
	return h
}

func (h *Handler) pump() {
	for {
		a := h.e.Step()
		switch a.Kind {
		case engine.KindSendMany, engine.KindSendOne:
			h.out <- actionToMessage(h.me, a)
		case engine.KindWaitMore:
			h.mu.Lock()
			for !h.woken {
				h.cond.Wait()
			}
			h.woken = false
			h.mu.Unlock()
		case engine.KindDone:
			h.finish(a.Value, nil)
			return
		case engine.KindFail:
			h.finish(nil, a.Err)
			return
		}
	}
}

// finish records the protocol's outcome and closes done/out exactly once.
// Both the pump goroutine (on Done/Fail) and Accept (on a Deliver error)
// can reach this, so a repeat call once finished is a no-op rather than a
// double close.
func (h *Handler) finish(result interface{}, err error) {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return
	}
	h.finished = true
	h.result, h.err = result, err
	h.mu.Unlock()
	close(h.done)
	close(h.out)
}

// Listen returns the channel of outgoing messages the host must deliver
// to their addressees. It is closed once the protocol terminates, whether
// by success or by Fail.
func (h *Handler) Listen() <-chan Message {
	return h.out
}

// Accept feeds an inbound message to the underlying engine. It never
// blocks; a malformed header (Deliver fails to parse msg.Data) finishes
// the run immediately with a Malformed Error, reported back through
// Result, rather than leaving the protocol parked in KindWaitMore
// forever waiting on a message that will never arrive correctly.
func (h *Handler) Accept(msg Message) {
	if !msg.IsFor(h.me) {
		return
	}
	if err := h.e.Deliver(msg.From, msg.Data); err != nil {
		h.finish(nil, Fail("protocol", Malformed, err))
		return
	}
	h.mu.Lock()
	h.woken = true
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Result returns the protocol's output once it has finished. Before that
// it returns an error saying so.
func (h *Handler) Result() (interface{}, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.err != nil {
			return nil, h.err
		}
		return h.result, nil
	default:
		return nil, errors.New("protocol: not finished")
	}
}

// Done returns a channel that is closed once the protocol has reached a
// terminal state (Done or Fail).
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
