package ot

import (
	"crypto/rand"
	"crypto/subtle"

	"github.com/cronokirby/saferith"
	"github.com/cait-sith-go/threshold-ecdsa/internal/params"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/hash"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/math/sample"
	zksch "github.com/cait-sith-go/threshold-ecdsa/pkg/maurer"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
)

// component names this file's failures under, for pkg/protocol.Error.
const component = "ot: base ot"

// digest hashes a sequence of writable values under a fresh transcript and
// returns n bytes of output. Every step of the base OT below is "hash these
// things together", so pulling that pattern out here removes the repeated
// hash.New/WriteAny/Digest.Read blocks a straight line-for-line port would
// otherwise have at every step.
func digest(n int, parts ...interface{}) []byte {
	h := hash.New()
	_ = h.WriteAny(parts...)
	out := make([]byte, n)
	_, _ = h.Digest().Read(out)
	return out
}

// xorInto XORs src onto dst in place, up to the shorter of the two lengths.
func xorInto(dst, src []byte) {
	for i := 0; i < len(dst) && i < len(src); i++ {
		dst[i] ^= src[i]
	}
}

// choiceMask returns a byte that is all-ones when c is 1 and all-zero when
// c is 0, so a caller can conditionally XOR a buffer without branching on
// secret data.
func choiceMask(c saferith.Choice) byte {
	return -byte(c)
}

// RandomOTSetupSendMessage is the sender's contribution to the one-time
// handshake that both sides of a base OT pair reuse across every instance:
// a public point B together with a Schnorr proof that the sender knows its
// discrete log.
type RandomOTSetupSendMessage struct {
	point      curve.Point
	pointProof *zksch.Proof
}

// RandomOTSetupSendResult is the sender's private half of the handshake:
// the scalar b with B = b*G0.
type RandomOTSetupSendResult struct {
	scalar curve.Scalar
	point  curve.Point
}

// RandomOTSetupSend runs the sender's side of the base OT handshake once;
// its result seeds every subsequent RandomOTSender in the batch.
func RandomOTSetupSend(h *hash.Hash, group curve.Curve) (*RandomOTSetupSendMessage, *RandomOTSetupSendResult) {
	b := sample.Scalar(rand.Reader, group)
	B := b.ActOnBase()
	proof := zksch.NewProof(h, B, b)
	return &RandomOTSetupSendMessage{point: B, pointProof: proof}, &RandomOTSetupSendResult{point: B, scalar: b}
}

// RandomOTSetupReceiveResult is the receiver's view of the handshake: just
// the sender's public point, once its proof has checked out.
type RandomOTSetupReceiveResult struct {
	point curve.Point
}

// RandomOTSetupReceive verifies the sender's proof of knowledge of b before
// trusting B for use in every subsequent base OT instance.
func RandomOTSetupReceive(h *hash.Hash, msg *RandomOTSetupSendMessage) (*RandomOTSetupReceiveResult, error) {
	if !msg.pointProof.Verify(h, msg.point) {
		return nil, protocol.Fail(component, protocol.ProofFailed, errSetupProof)
	}
	return &RandomOTSetupReceiveResult{point: msg.point}, nil
}

// randomOTChoiceState is the receiver's evolving state across the three
// rounds of one base OT instance: the pad it derived for its own choice
// bit, plus what it needs to hold onto to check the sender's decommitment
// in the final round.
type randomOTChoiceState struct {
	pad             []byte
	sentChallenge   []byte
	expectedOpening []byte
}

// RandomOTReceiever runs the receiver's side of one base-OT instance: it
// learns exactly one of the sender's two random pads, indexed by choice,
// without revealing which one to the sender.
type RandomOTReceiever struct {
	hash   *hash.Hash
	group  curve.Curve
	choice saferith.Choice
	base   curve.Point
	state  randomOTChoiceState
}

// NewRandomOTReceiver binds a receiver to one setup result and one choice
// bit; a fresh instance is built per row of a base OT batch.
func NewRandomOTReceiver(h *hash.Hash, choice saferith.Choice, setup *RandomOTSetupReceiveResult) *RandomOTReceiever {
	return &RandomOTReceiever{hash: h, group: setup.point.Curve(), choice: choice, base: setup.point}
}

// RandomOTReceiveRound1Message carries the receiver's blinded choice point.
type RandomOTReceiveRound1Message struct {
	blinded curve.Point
}

// Round1 samples the receiver's own scalar a, blinds its choice bit into
// A = a*G0 + choice*B, and derives the pad it will learn if the sender's
// challenge is honest: H(transcript, a*B), the same hash the sender applies.
func (r *RandomOTReceiever) Round1() *RandomOTReceiveRound1Message {
	a := sample.Scalar(rand.Reader, r.group)
	A := a.ActOnBase()
	one := new(saferith.Nat).SetUint64(1)
	choiceScalar := r.group.NewScalar().SetNat(new(saferith.Nat).CondAssign(r.choice, one))
	A = A.Add(choiceScalar.Act(r.base))

	r.state.pad = digest(params.SecBytes, r.hash.Clone(), a.Act(r.base))
	return &RandomOTReceiveRound1Message{blinded: A}
}

// RandomOTReceiveRound2Message is the receiver's response to the sender's
// challenge, masked so that only a party knowing the pad for its own
// choice bit can have produced it.
type RandomOTReceiveRound2Message struct {
	response []byte
}

// Round2 answers the sender's challenge with H(H(pad)), XORed with the
// challenge whenever choice is 1. An honest sender can check this without
// learning choice, because both possible answers are indistinguishable to
// anyone who doesn't already know one of the two pads.
func (r *RandomOTReceiever) Round2(msg *RandomOTSendRound1Message) *RandomOTReceiveRound2Message {
	r.state.sentChallenge = msg.challenge
	r.state.expectedOpening = digest(len(msg.challenge), digest(len(msg.challenge), r.state.pad))

	response := make([]byte, len(r.state.expectedOpening))
	copy(response, r.state.expectedOpening)
	mask := choiceMask(r.choice)
	for i := range response {
		response[i] ^= mask & msg.challenge[i]
	}
	return &RandomOTReceiveRound2Message{response: response}
}

// Round3 checks that the sender's two decommitments actually reconstruct
// the challenge it sent in Round1, and that the decommitment matching this
// receiver's choice matches the opening it computed in Round2, before
// releasing the pad for its choice bit.
func (r *RandomOTReceiever) Round3(msg *RandomOTSendRound2Message) ([]byte, error) {
	opened0 := digest(len(r.state.sentChallenge), msg.opening[0])
	opened1 := digest(len(r.state.sentChallenge), msg.opening[1])

	reconstructed := make([]byte, len(r.state.sentChallenge))
	for i := range reconstructed {
		reconstructed[i] = opened0[i] ^ opened1[i]
	}
	if subtle.ConstantTimeCompare(r.state.sentChallenge, reconstructed) != 1 {
		return nil, protocol.Fail(component, protocol.ConsistencyFailed, errBadOpening)
	}

	chosenOpening := append([]byte(nil), opened0...)
	mask := choiceMask(r.choice)
	for i := range chosenOpening {
		chosenOpening[i] ^= mask & (opened0[i] ^ opened1[i])
	}
	if subtle.ConstantTimeCompare(chosenOpening, r.state.expectedOpening) != 1 {
		return nil, protocol.Fail(component, protocol.ConsistencyFailed, errBadOpening)
	}

	return r.state.pad, nil
}

// RandomOTSender runs the sender's side of one base-OT instance, ending up
// with both pads rand[0] and rand[1] — one of which the receiver also
// learns, indexed by its secret choice bit.
type RandomOTSender struct {
	hash   *hash.Hash
	scalar curve.Scalar
	base   curve.Point

	rand     [2][]byte
	openings [2][]byte
	// verify is what Round2's response is checked against: H(openings[0]).
	verify []byte
}

// NewRandomOTSender binds a sender to its half of the shared setup result.
func NewRandomOTSender(h *hash.Hash, setup *RandomOTSetupSendResult) *RandomOTSender {
	return &RandomOTSender{hash: h, scalar: setup.scalar, base: setup.point}
}

// RandomOTSendRound1Message carries the sender's challenge, built so that
// opening either decommitment reveals the other by XOR.
type RandomOTSendRound1Message struct {
	challenge []byte
}

// Round1 derives both candidate pads from the receiver's blinded point —
// rand[0] as if choice were 0, rand[1] as if choice were 1 — commits to
// each, and sends a challenge binding the two commitments together.
func (r *RandomOTSender) Round1(msg *RandomOTReceiveRound1Message) *RandomOTSendRound1Message {
	r.rand[0] = digest(params.SecBytes, r.hash.Clone(), r.scalar.Act(msg.blinded))
	r.rand[1] = digest(params.SecBytes, r.hash.Clone(), r.scalar.Act(msg.blinded.Sub(r.base)))

	r.openings[0] = digest(params.SecBytes, r.rand[0])
	r.openings[1] = digest(params.SecBytes, r.rand[1])
	r.verify = digest(params.SecBytes, r.openings[0])

	challenge := digest(params.SecBytes, r.openings[1])
	xorInto(challenge, r.verify)

	return &RandomOTSendRound1Message{challenge: challenge}
}

// RandomOTSendRound2Message reveals both commitment openings, letting the
// receiver check the sender was honest about the challenge it sent.
type RandomOTSendRound2Message struct {
	opening [2][]byte
}

// RandomOTSendResult is both pads the sender ended up with; exactly one of
// these matches whatever the corresponding receiver learned.
type RandomOTSendResult struct {
	rand [2][]byte
}

// Round2 accepts the receiver's response only if it matches the sender's
// own commitment to rand[0], then reveals both openings.
func (r *RandomOTSender) Round2(msg *RandomOTReceiveRound2Message) (*RandomOTSendRound2Message, *RandomOTSendResult, error) {
	if subtle.ConstantTimeCompare(msg.response, r.verify) != 1 {
		return nil, nil, protocol.Fail(component, protocol.ConsistencyFailed, errBadResponse)
	}
	return &RandomOTSendRound2Message{opening: r.openings}, &RandomOTSendResult{rand: r.rand}, nil
}
