package engine

import (
	"fmt"
	"sync"

	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
)

// ActionKind distinguishes the variants of Action returned by Step.
type ActionKind int

const (
	// KindWaitMore means the protocol has made all the progress it can
	// with the messages delivered so far; every one of its goroutines is
	// parked waiting on a channel receive. Step will not return anything
	// new until the host calls Deliver with a message for one of them.
	KindWaitMore ActionKind = iota
	// KindSendMany carries a message the protocol wants broadcast to
	// every other participant, over the channel named by Header.
	KindSendMany
	// KindSendOne carries a message addressed to a single participant,
	// over the channel named by Header.
	KindSendOne
	// KindDone carries the protocol's final result; the Engine will not
	// produce any further Action after this one.
	KindDone
	// KindFail carries the error the protocol body returned; the Engine
	// will not produce any further Action after this one.
	KindFail
)

// Action is one unit of work the host must perform in response to a Step
// call: deliver bytes to the network, or accept a final result.
type Action struct {
	Kind ActionKind

	// Header and Payload are set for KindSendMany and KindSendOne.
	Header  MessageHeader
	Payload []byte
	// To is set for KindSendOne.
	To party.ID

	// Value is set for KindDone.
	Value interface{}
	// Err is set for KindFail.
	Err error
}

// Protocol is the body of a protocol run: an ordinary function that talks
// to its peers entirely through the Context it's given, with no round
// structure of its own. It is spawned onto a goroutine by Start and may
// itself use Context.Spawn to fan out concurrent sub-protocols (one per
// peer, say) within that same run.
type Protocol func(ctx *Context) (interface{}, error)

// Engine drives a single Protocol run. A host interacts with it purely
// through Deliver (feed in a received message) and Step (pull out the next
// thing to do), never observing the goroutines or channels underneath.
type Engine struct {
	mu   sync.Mutex
	cond *sync.Cond

	me party.ID

	alive  int
	parked int

	queue []Action

	resultReady bool
	result      interface{}
	resultErr   error

	buffer *messageBuffer
	// sendWaitpoints counts outgoing calls per tag (SendMany, SendPrivate,
	// and PrivateChannel.Send all draw from it). recvWaitpoints counts
	// PrivateChannel.Recv calls per tag independently, since a private
	// channel carries exactly one message per waitpoint in each direction
	// and the two directions advance on their own schedules. SharedChannel
	// is different: one SendMany call delivers one message to each of N-1
	// peers, all under that call's single waitpoint, so SharedChannel.Recv
	// does not keep its own counter at all — it re-reads
	// currentBroadcastWaitpoint (the tag's current send waitpoint) on every
	// call, letting repeated Recv calls drain that round's N-1 incoming
	// messages one at a time before the tag's next SendMany moves it on.
	sendWaitpoints map[ChannelTag]uint64
	recvWaitpoints map[ChannelTag]uint64
}

// New starts proto running as the given participant and returns the Engine
// that drives it. The protocol body begins executing immediately, on its
// own goroutine; call Step to observe its first actions.
func New(me party.ID, proto Protocol) *Engine {
	e := &Engine{
		me:             me,
		buffer:         newMessageBuffer(),
		sendWaitpoints: make(map[ChannelTag]uint64),
		recvWaitpoints: make(map[ChannelTag]uint64),
	}
	e.cond = sync.NewCond(&e.mu)

	ctx := newRootContext(e)
	e.spawn(func() {
		value, err := proto(ctx)
		e.mu.Lock()
		e.resultReady = true
		e.result, e.resultErr = value, err
		e.mu.Unlock()
		e.cond.Broadcast()
	})
	return e
}

// Deliver hands the engine a message received from from. The message must
// begin with a MessageHeader as produced by Action.Header/Payload on the
// sending side.
func (e *Engine) Deliver(from party.ID, raw []byte) error {
	header, payload, err := HeaderFromBytes(raw)
	if err != nil {
		return err
	}
	e.buffer.push(header, from, payload)
	return nil
}

// Step returns the next thing the protocol wants the host to do. It blocks
// until there is an outgoing message to send, a final result, or every
// goroutine in the run has parked waiting on more input (KindWaitMore). A
// host should loop: call Step, act on SendMany/SendOne by handing the bytes
// to the network, and stop looping (for this tick) on either WaitMore or a
// terminal Done/Fail.
func (e *Engine) Step() Action {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		if len(e.queue) > 0 {
			a := e.queue[0]
			e.queue = e.queue[1:]
			return a
		}
		if e.resultReady {
			e.resultReady = false // terminal: returned exactly once
			if e.resultErr != nil {
				return Action{Kind: KindFail, Err: e.resultErr}
			}
			return Action{Kind: KindDone, Value: e.result}
		}
		if e.alive == 0 {
			return Action{Kind: KindFail, Err: fmt.Errorf("engine: protocol finished without a result")}
		}
		if e.parked == e.alive {
			return Action{Kind: KindWaitMore}
		}
		e.cond.Wait()
	}
}

func (e *Engine) spawn(fn func()) {
	e.mu.Lock()
	e.alive++
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			e.alive--
			e.mu.Unlock()
			e.cond.Broadcast()
		}()
		fn()
	}()
}

func (e *Engine) enterPark() {
	e.mu.Lock()
	e.parked++
	e.mu.Unlock()
	e.cond.Broadcast()
}

func (e *Engine) exitPark() {
	e.mu.Lock()
	e.parked--
	e.mu.Unlock()
	e.cond.Broadcast()
}

func (e *Engine) pushAction(a Action) {
	e.mu.Lock()
	e.queue = append(e.queue, a)
	e.mu.Unlock()
	e.cond.Broadcast()
}

func (e *Engine) nextSendWaitpoint(tag ChannelTag) Waitpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	wp := e.sendWaitpoints[tag]
	e.sendWaitpoints[tag] = wp + 1
	return Waitpoint(wp)
}

func (e *Engine) nextRecvWaitpoint(tag ChannelTag) Waitpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	wp := e.recvWaitpoints[tag]
	e.recvWaitpoints[tag] = wp + 1
	return Waitpoint(wp)
}

// currentBroadcastWaitpoint returns the waitpoint of the most recent
// SendMany/SendPrivate call this engine made on tag, without consuming a
// new one. A broadcast round delivers one message per sender but is
// collected with as many Recv calls as there are peers, and every one of
// those messages was tagged with its sender's own most recent send on
// tag — so unlike a private, point-to-point channel, SharedChannel.Recv
// cannot advance its own independent counter per call: all Recv calls
// draining one round must keep asking for that same round's waitpoint.
// This requires every participant to broadcast its own contribution to a
// round before collecting the round's incoming messages, which is true
// of every broadcast round used here.
func (e *Engine) currentBroadcastWaitpoint(tag ChannelTag) Waitpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	wp := e.sendWaitpoints[tag]
	if wp == 0 {
		panic("engine: Recv on shared channel before this party has broadcast on it")
	}
	return Waitpoint(wp - 1)
}
