package engine

import (
	"sync/atomic"

	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
)

// Context is the handle a Protocol body uses to talk to its peers. It is
// never shared between concurrently-running goroutines except through
// Spawn, which hands each child its own Context so that two sub-protocols
// running in parallel (one per peer, say) never collide on channel tags.
type Context struct {
	engine  *Engine
	derive  func(ChannelTag) ChannelTag
	counter atomic.Int64
}

func newRootContext(e *Engine) *Context {
	return &Context{engine: e, derive: func(t ChannelTag) ChannelTag { return t }}
}

// Me returns the identity this run is executing as.
func (c *Context) Me() party.ID { return c.engine.me }

// Shared returns the channel every participant in the run communicates
// over.
func (c *Context) Shared() SharedChannel {
	return SharedChannel{ctx: c, tag: c.derive(RootShared())}
}

// Private returns the channel private to this participant and other.
func (c *Context) Private(other party.ID) PrivateChannel {
	return PrivateChannel{ctx: c, tag: c.derive(RootPrivate(c.engine.me, other)), peer: other}
}

type spawnResult struct {
	value interface{}
	err   error
}

// Spawn starts fn concurrently, on its own goroutine, with a Context
// derived from c so its channel tags cannot collide with a sibling spawned
// the same way (or with c's own channels). It returns a join function: call
// it to block until fn returns, yielding its result. Spawn a batch of
// children first and join them afterward to run them in parallel; joining
// one immediately after spawning it is equivalent to calling fn directly.
func (c *Context) Spawn(fn func(*Context) (interface{}, error)) func() (interface{}, error) {
	idx := uint64(c.counter.Add(1))
	parentDerive := c.derive
	child := &Context{
		engine: c.engine,
		derive: func(t ChannelTag) ChannelTag { return parentDerive(t).Child(idx) },
	}

	result := make(chan spawnResult, 1)
	var finished, joining bool // guarded by c.engine.mu
	c.engine.spawn(func() {
		v, err := fn(child)
		c.engine.mu.Lock()
		finished = true
		if joining {
			c.engine.parked-- // the joiner is runnable before this goroutine stops counting as alive
		}
		c.engine.mu.Unlock()
		result <- spawnResult{value: v, err: err}
	})

	return func() (interface{}, error) {
		c.engine.mu.Lock()
		if !finished {
			joining = true
			c.engine.parked++
		}
		c.engine.mu.Unlock()
		c.engine.cond.Broadcast()
		r := <-result
		return r.value, r.err
	}
}

// SharedChannel is a handle to the all-participants channel of a Context,
// or one of its Child subchannels.
type SharedChannel struct {
	ctx *Context
	tag ChannelTag
}

// Child returns the i'th subchannel of s, for running i independent
// conversations over what would otherwise be the same channel.
func (s SharedChannel) Child(i uint64) SharedChannel {
	return SharedChannel{ctx: s.ctx, tag: s.tag.Child(i)}
}

// SendMany broadcasts payload to every other participant.
func (s SharedChannel) SendMany(payload []byte) {
	wp := s.ctx.engine.nextSendWaitpoint(s.tag)
	s.ctx.engine.pushAction(Action{
		Kind:    KindSendMany,
		Header:  MessageHeader{Channel: s.tag, Waitpoint: wp},
		Payload: payload,
	})
}

// SendPrivate sends payload to to alone, over s's channel.
func (s SharedChannel) SendPrivate(to party.ID, payload []byte) {
	wp := s.ctx.engine.nextSendWaitpoint(s.tag)
	s.ctx.engine.pushAction(Action{
		Kind:    KindSendOne,
		To:      to,
		Header:  MessageHeader{Channel: s.tag, Waitpoint: wp},
		Payload: payload,
	})
}

// Recv blocks until the next not-yet-collected message of the current
// broadcast round arrives on s, returning its sender together with its
// payload. Call it once per peer you still need to hear from: every
// message broadcast for a round shares that round's waitpoint, so calling
// Recv repeatedly drains them one at a time without advancing past the
// round. A participant must call SendMany (its own contribution to the
// round) before collecting the round with Recv.
func (s SharedChannel) Recv() (party.ID, []byte) {
	wp := s.ctx.engine.currentBroadcastWaitpoint(s.tag)
	return s.ctx.engine.buffer.pop(s.ctx.engine, MessageHeader{Channel: s.tag, Waitpoint: wp})
}

// PrivateChannel is a handle to the two-party channel between a Context's
// owner and one peer, or one of its Child subchannels.
type PrivateChannel struct {
	ctx  *Context
	tag  ChannelTag
	peer party.ID
}

// Peer returns the other participant on this channel.
func (p PrivateChannel) Peer() party.ID { return p.peer }

// Child returns the i'th subchannel of p.
func (p PrivateChannel) Child(i uint64) PrivateChannel {
	return PrivateChannel{ctx: p.ctx, tag: p.tag.Child(i), peer: p.peer}
}

// Send delivers payload to p's peer alone.
func (p PrivateChannel) Send(payload []byte) {
	wp := p.ctx.engine.nextSendWaitpoint(p.tag)
	p.ctx.engine.pushAction(Action{
		Kind:    KindSendOne,
		To:      p.peer,
		Header:  MessageHeader{Channel: p.tag, Waitpoint: wp},
		Payload: payload,
	})
}

// Recv blocks until p's peer sends the next message on this channel.
func (p PrivateChannel) Recv() []byte {
	wp := p.ctx.engine.nextRecvWaitpoint(p.tag)
	_, data := p.ctx.engine.buffer.pop(p.ctx.engine, MessageHeader{Channel: p.tag, Waitpoint: wp})
	return data
}
