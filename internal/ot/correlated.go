package ot

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/cronokirby/saferith"
	"github.com/cait-sith-go/threshold-ecdsa/internal/params"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/hash"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/pool"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
	"github.com/zeebo/blake3"
)

// sessionKey fingerprints ctxHash's transcript state at the point an
// extension call is invoked with it, giving CorreOTSend/CorreOTReceive a
// stable identifier for "this particular sid" without needing the host to
// pass one explicitly: two calls that fork the same sid into the same
// domain-separated transcript land on the same key.
func sessionKey(ctxHash *hash.Hash) [32]byte {
	var key [32]byte
	ctxHash.ReadBytes(key[:])
	return key
}

// sessionTracker records every sessionKey a reusable setup has already
// consumed, so a host that hands the same sid to two extension calls
// against the same setup gets a caller-visible SessionReused failure
// (spec.md §7, §9) instead of silently rederiving correlated randomness
// under a transcript an earlier call already committed to.
type sessionTracker struct {
	mu   sync.Mutex
	seen map[[32]byte]struct{}
}

func (t *sessionTracker) consume(ctxHash *hash.Hash) error {
	key := sessionKey(ctxHash)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen == nil {
		t.seen = map[[32]byte]struct{}{}
	}
	if _, ok := t.seen[key]; ok {
		return protocol.Fail(component, protocol.SessionReused, errSessionReused)
	}
	t.seen[key] = struct{}{}
	return nil
}

// CorreOTSendSetup is the long-lived state held by the Δ-holding side of a
// Triple Setup (C5), after the base OT handshake has completed. It can be
// reused across many subsequent CorreOTSend/CorreOTReceive extensions.
type CorreOTSendSetup struct {
	_Delta   []byte
	_K_Delta [][]byte

	sessions sessionTracker
}

// instanceLabel derives a per-instance transcript fork, so that base OT
// instance i in a batch of params.SecParam of them never reuses another
// instance's randomness even though they all start from the same setup
// hash.
func instanceLabel(h *hash.Hash, i int) *hash.Hash {
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], uint64(i))
	return h.Fork(hash.BytesWithDomain{TheDomain: "CorreOT Random OT Counter", Bytes: ctr[:]})
}

// CorreOTSetupSender runs the Δ-holder's side of the one-time handshake
// (params.SecParam base OT instances) that a Triple Setup pair performs
// once, before either side ever calls CorreOTSend/CorreOTReceive.
type CorreOTSetupSender struct {
	pl   *pool.Pool
	hash *hash.Hash

	setup     *RandomOTSetupReceiveResult
	delta     []byte
	receivers []*RandomOTReceiever
}

func NewCorreOTSetupSender(pl *pool.Pool, h *hash.Hash) *CorreOTSetupSender {
	return &CorreOTSetupSender{pl: pl, hash: h}
}

type CorreOTSetupSendRound1Message struct {
	msgs []*RandomOTReceiveRound1Message
}

// Round1 samples Δ, then starts one base OT receiver per bit of Δ, using
// Δ's bits as each instance's choice bit.
func (r *CorreOTSetupSender) Round1(msg *CorreOTSetupReceiveRound1Message) (*CorreOTSetupSendRound1Message, error) {
	setup, err := RandomOTSetupReceive(r.hash, &msg.msg)
	if err != nil {
		return nil, err
	}
	r.setup = setup

	r.delta = make([]byte, params.SecBytes)
	_, _ = rand.Read(r.delta)

	r.receivers = make([]*RandomOTReceiever, params.SecParam)
	out := make([]*RandomOTReceiveRound1Message, params.SecParam)
	r.pl.Parallelize(params.SecParam, func(i int) interface{} {
		choice := saferith.Choice(bitAt(i, r.delta))
		r.receivers[i] = NewRandomOTReceiver(instanceLabel(r.hash, i), choice, r.setup)
		out[i] = r.receivers[i].Round1()
		return nil
	})

	return &CorreOTSetupSendRound1Message{msgs: out}, nil
}

type CorreOTSetupSendRound2Message struct {
	msgs []*RandomOTReceiveRound2Message
}

func (r *CorreOTSetupSender) Round2(msg *CorreOTSetupReceiveRound2Message) *CorreOTSetupSendRound2Message {
	out := make([]*RandomOTReceiveRound2Message, len(r.receivers))
	r.pl.Parallelize(len(r.receivers), func(i int) interface{} {
		if i < len(msg.msgs) {
			out[i] = r.receivers[i].Round2(msg.msgs[i])
		}
		return nil
	})
	return &CorreOTSetupSendRound2Message{msgs: out}
}

type CorreOTSetupReceiveRound3Message struct {
	msgs []*RandomOTSendRound2Message
}

// Round3 finishes the Δ-holder's side of the base OT handshake, deriving
// K_Δ[i] for every base OT instance i.
func (r *CorreOTSetupSender) Round3(msg *CorreOTSetupReceiveRound3Message) (*CorreOTSendSetup, error) {
	n := len(r.receivers)
	kDelta := make([][]byte, n)
	failures := make([]error, n)
	r.pl.Parallelize(n, func(i int) interface{} {
		if i >= len(msg.msgs) {
			return nil
		}
		pad, err := r.receivers[i].Round3(msg.msgs[i])
		if err != nil {
			failures[i] = err
			return nil
		}
		kDelta[i] = pad
		return nil
	})
	if err := firstNonNil(failures); err != nil {
		return nil, err
	}
	return &CorreOTSendSetup{_Delta: r.delta, _K_Delta: kDelta}, nil
}

// CorreOTReceiveSetup is the long-lived state held by the side that learns
// both K_0[i] and K_1[i] for every base OT instance.
type CorreOTReceiveSetup struct {
	_K_0 [][]byte
	_K_1 [][]byte

	sessions sessionTracker
}

// CorreOTSetupReceiver runs the non-Δ-holding side of the same handshake.
type CorreOTSetupReceiver struct {
	pl    *pool.Pool
	hash  *hash.Hash
	group curve.Curve

	setup   *RandomOTSetupSendResult
	senders []*RandomOTSender
}

func NewCorreOTSetupReceiver(pl *pool.Pool, h *hash.Hash, group curve.Curve) *CorreOTSetupReceiver {
	return &CorreOTSetupReceiver{pl: pl, hash: h, group: group}
}

type CorreOTSetupReceiveRound1Message struct {
	msg RandomOTSetupSendMessage
}

func (r *CorreOTSetupReceiver) Round1() *CorreOTSetupReceiveRound1Message {
	msg, setup := RandomOTSetupSend(r.hash, r.group)
	r.setup = setup

	r.senders = make([]*RandomOTSender, params.SecParam)
	r.pl.Parallelize(params.SecParam, func(i int) interface{} {
		r.senders[i] = NewRandomOTSender(instanceLabel(r.hash, i), setup)
		return nil
	})

	return &CorreOTSetupReceiveRound1Message{msg: *msg}
}

type CorreOTSetupReceiveRound2Message struct {
	msgs []*RandomOTSendRound1Message
}

func (r *CorreOTSetupReceiver) Round2(msg *CorreOTSetupSendRound1Message) (*CorreOTSetupReceiveRound2Message, error) {
	if len(msg.msgs) != len(r.senders) {
		return nil, protocol.Fail(component, protocol.Malformed, errRowCount)
	}
	out := make([]*RandomOTSendRound1Message, len(r.senders))
	r.pl.Parallelize(len(r.senders), func(i int) interface{} {
		out[i] = r.senders[i].Round1(msg.msgs[i])
		return nil
	})
	return &CorreOTSetupReceiveRound2Message{msgs: out}, nil
}

// Round3 finishes the K_0/K_1-holder's side of the base OT handshake.
func (r *CorreOTSetupReceiver) Round3(msg *CorreOTSetupSendRound2Message) (*CorreOTSetupReceiveRound3Message, *CorreOTReceiveSetup, error) {
	n := len(r.senders)
	decommits := make([]*RandomOTSendRound2Message, n)
	k0, k1 := make([][]byte, n), make([][]byte, n)
	failures := make([]error, n)
	r.pl.Parallelize(n, func(i int) interface{} {
		if i >= len(msg.msgs) {
			return nil
		}
		decommit, result, err := r.senders[i].Round2(msg.msgs[i])
		if err != nil {
			failures[i] = err
			return nil
		}
		decommits[i], k0[i], k1[i] = decommit, result.rand[0], result.rand[1]
		return nil
	})
	if err := firstNonNil(failures); err != nil {
		return nil, nil, err
	}
	return &CorreOTSetupReceiveRound3Message{msgs: decommits}, &CorreOTReceiveSetup{_K_0: k0, _K_1: k1}, nil
}

func firstNonNil(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// prgExpand fills out with pseudorandom bits derived from seed under the
// session key sid, one bit per output row, via a blake3 instance keyed on
// both. Expanding a single 32-byte seed this way — once per row of the
// reusable setup, rather than once per output bit — is what turns
// params.SecParam base OTs into an arbitrarily large batch (IKNP-style OT
// extension); sid makes each session's expansion independent.
func prgExpand(sid [32]byte, seed []byte, out []byte) {
	h := blake3.New()
	_, _ = h.Write(sid[:])
	_, _ = h.Write(seed)
	digest := h.Digest()
	_, _ = digest.Read(out)
}

type CorreOTReceiveMessage struct {
	_U [][params.SecBytes]byte
}

type CorreOTReceiveResult struct {
	_T [][params.SecBytes]byte
}

// CorreOTReceive expands a CorreOTReceiveSetup into 8*len(choices)
// correlated OT instances, one row of the setup at a time: row j of the
// setup contributes bit j of every instance's T value, and bit j of the
// correction value U[i] that lets the sender recover T[i] XOR
// (choice_i·Δ) without ever learning T[i] or choice_i itself.
func CorreOTReceive(ctxHash *hash.Hash, setup *CorreOTReceiveSetup, choices []byte) (*CorreOTReceiveMessage, *CorreOTReceiveResult, error) {
	if err := setup.sessions.consume(ctxHash); err != nil {
		return nil, nil, err
	}
	sid := sessionKey(ctxHash)
	rows := len(setup._K_0)
	batchSize := 8 * len(choices)
	byteWidth := (batchSize + 7) / 8

	u := make([][params.SecBytes]byte, batchSize)
	rowExpansion0 := make([]byte, byteWidth)
	rowExpansion1 := make([]byte, byteWidth)

	t := make([][params.SecBytes]byte, batchSize)
	for j := 0; j < rows; j++ {
		prgExpand(sid, setup._K_0[j], rowExpansion0)
		prgExpand(sid, setup._K_1[j], rowExpansion1)
		for i := 0; i < batchSize; i++ {
			b0, b1 := bitAt(i, rowExpansion0), bitAt(i, rowExpansion1)
			setBitAt(u[i][:], j, b0^b1^bitAt(i, choices))
			setBitAt(t[i][:], j, b0)
		}
	}

	return &CorreOTReceiveMessage{_U: u}, &CorreOTReceiveResult{_T: t}, nil
}

type CorreOTSendResult struct {
	_Q [][params.SecBytes]byte
}

// CorreOTSend completes the extension on the Δ-holder's side: Q[i] equals
// T[i], XORed with Δ whenever choice_i was 1, without the sender ever
// seeing T[i] or choice_i directly.
func CorreOTSend(ctxHash *hash.Hash, setup *CorreOTSendSetup, batchSize int, msg *CorreOTReceiveMessage) (*CorreOTSendResult, error) {
	if err := setup.sessions.consume(ctxHash); err != nil {
		return nil, err
	}
	sid := sessionKey(ctxHash)
	rows := len(setup._K_Delta)
	if len(msg._U) != batchSize {
		return nil, protocol.Fail(component, protocol.Malformed, errRowCount)
	}
	byteWidth := (batchSize + 7) / 8

	q := make([][params.SecBytes]byte, batchSize)
	rowExpansion := make([]byte, byteWidth)
	for j := 0; j < rows; j++ {
		prgExpand(sid, setup._K_Delta[j], rowExpansion)
		deltaBit := bitAt(j, setup._Delta)
		for i := 0; i < batchSize; i++ {
			qBit := bitAt(i, rowExpansion)
			if deltaBit == 1 {
				qBit ^= bitAt(j, msg._U[i][:])
			}
			setBitAt(q[i][:], j, qBit)
		}
	}

	return &CorreOTSendResult{_Q: q}, nil
}
