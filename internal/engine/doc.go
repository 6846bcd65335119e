// Package engine implements the round-free, message-driven scheduler every
// protocol in this module is built on. A protocol body is an ordinary Go
// function, spawned onto its own goroutine, that sends and receives through
// Channel values instead of being split into discrete Round types; the
// engine turns that goroutine into something a host can drive purely
// through Deliver and Step calls, with no round-barrier bookkeeping exposed
// to the caller.
//
// The design is a direct translation of the async/await state machine the
// reference implementation builds this same facility from: a protocol
// body there is an async function that awaits on channel receives, and the
// executor interleaves polling that future against polling for outgoing
// messages and the eventual return value. Go has no cooperative async
// runtime to poll, but it does have real preemptive goroutines, so the
// translation swaps "poll the future until it parks" for "track how many
// of the protocol's goroutines are currently blocked in a channel receive".
//
// That tracking is what the Engine's alive and parked counters do. The
// protocol body and every goroutine started through Context.Spawn are
// counted as alive; a goroutine blocked inside messageBuffer.pop, or in a
// Spawn join whose child has not yet returned, is additionally counted as
// parked. Step can safely report WaitMore exactly when alive == parked > 0:
// every live goroutine is stuck waiting on a message that hasn't arrived,
// so nothing will change until the next Deliver. Reporting WaitMore any
// earlier would risk telling the host to stop driving the engine while a
// goroutine is still mid-computation and about to produce an outgoing
// message or the final result; the counters are updated under the same
// lock Step itself blocks on, and a waiter is taken out of parked by the
// event that wakes it (the push of its message, or its child's return)
// before that event completes, so there's no window where that could
// happen unnoticed. The outgoing-message queue is a plain unbounded slice rather
// than a bounded channel for the same reason: posting an action must never
// itself become a second, uncounted way for a goroutine to block.
package engine
