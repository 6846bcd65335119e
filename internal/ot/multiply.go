package ot

import (
	"crypto/rand"

	"github.com/zeebo/blake3"

	"github.com/cait-sith-go/threshold-ecdsa/internal/params"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/math/sample"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
)

// MtABatchSize is κ, the number of Random OT Extension rows a single MtA
// (C8) conversion consumes: enough to encode the field (group.ScalarBits())
// plus params.StatParam bits of statistical slack for the χ-weighted
// check baked into the receiver's response. Multiplication (C9) runs one
// C7 batch of 2*MtABatchSize(group) rows per peer and splits it in half
// to feed two parallel MtA calls.
func MtABatchSize(group curve.Curve) int {
	return group.ScalarBits() + params.StatParam
}

// expandROTScalar turns one Random OT Extension output row — already the
// H_i(...) hash spec §4.5 calls for — into a field element, via a PRG
// keyed on the row so every row's scalar is independent of the others.
func expandROTScalar(group curve.Curve, row [params.SecBytes]byte) curve.Scalar {
	prg := blake3.New()
	_, _ = prg.Write(row[:])
	return sample.Scalar(prg.Digest(), group)
}

// expandChiSeed re-derives the receiver's χ_2..χ_{κ} challenge scalars
// from its published seed: both sides read the same blake3 XOF stream in
// the same order, so nothing beyond the seed itself needs to cross the
// wire for the sender to reproduce them.
func expandChiSeed(seed []byte, group curve.Curve, n int) []curve.Scalar {
	h := blake3.New()
	_, _ = h.Write(seed)
	digest := h.Digest()
	chi := make([]curve.Scalar, n)
	for i := range chi {
		chi[i] = sample.Scalar(digest, group)
	}
	return chi
}

// MtASender runs the Δ-holding side of a Gilboa multiplicative-to-additive
// conversion (C8): given κ Random OT Extension send pairs (v0_i, v1_i) and
// a secret a, it speaks first, then finishes with a share alpha such that
// alpha+beta equals a times the receiver's secret once the receiver's
// reply is processed. Grounded on
// original_source/src/triples/mta.rs's mta_sender.
type MtASender struct {
	group curve.Curve
	a     curve.Scalar
	v0    []curve.Scalar
	v1    []curve.Scalar
	delta []curve.Scalar
}

// NewMtASender builds a Gilboa sender out of a completed Random OT
// Extension send result (C7); result must already hold exactly
// MtABatchSize(a.Curve()) rows.
func NewMtASender(result *ExtendedOTSendResult, a curve.Scalar) *MtASender {
	group := a.Curve()
	size := len(result._V0)
	v0 := make([]curve.Scalar, size)
	v1 := make([]curve.Scalar, size)
	delta := make([]curve.Scalar, size)
	for i := 0; i < size; i++ {
		v0[i] = expandROTScalar(group, result._V0[i])
		v1[i] = expandROTScalar(group, result._V1[i])
		delta[i] = sample.Scalar(rand.Reader, group)
	}
	return &MtASender{group: group, a: a, v0: v0, v1: v1, delta: delta}
}

// Curve returns the group this sender's scalars belong to, so a caller
// holding only a *MtASender can decode the receiver's reply without
// threading the group through separately.
func (s *MtASender) Curve() curve.Curve { return s.group }

// MtASendRound1Message is the sender's opening move: for every row i,
// (v0_i+δ_i+a, v1_i+δ_i−a). spec.md §4.6 step 1.
type MtASendRound1Message struct {
	C0, C1 []curve.Scalar
}

func (s *MtASender) Round1() *MtASendRound1Message {
	c0 := make([]curve.Scalar, len(s.delta))
	c1 := make([]curve.Scalar, len(s.delta))
	for i := range s.delta {
		c0[i] = s.group.NewScalar().Set(s.v0[i]).Add(s.delta[i]).Add(s.a)
		c1[i] = s.group.NewScalar().Set(s.v1[i]).Add(s.delta[i]).Sub(s.a)
	}
	return &MtASendRound1Message{C0: c0, C1: c1}
}

// MtAReceiveRound1Message carries the receiver's PRG seed and its first
// challenge scalar χ_1, the only values the sender needs to finish.
type MtAReceiveRound1Message struct {
	Seed []byte
	Chi1 curve.Scalar
}

// Round2 completes the sender's side: α = −⟨χ_i,δ_i⟩ over every row,
// using the received χ_1 for row 0 and re-expanding χ_2..χ_κ from the
// receiver's seed for the rest. spec.md §4.6 step 5.
func (s *MtASender) Round2(msg *MtAReceiveRound1Message) (curve.Scalar, error) {
	if len(s.delta) == 0 {
		return nil, protocol.Fail(component, protocol.Malformed, errRowCount)
	}
	chiRest := expandChiSeed(msg.Seed, s.group, len(s.delta)-1)

	alpha := s.group.NewScalar()
	term := s.group.NewScalar()
	alpha.Add(term.Set(s.delta[0]).Mul(msg.Chi1))
	for i, chi := range chiRest {
		alpha.Add(term.Set(s.delta[i+1]).Mul(chi))
	}
	return alpha.Negate(), nil
}

// MtAReceiver runs the non-Δ side: given κ Random OT Extension receive
// pairs (t_i, v_{t_i,i}) and a secret b, it ends up with a share beta
// such that alpha+beta equals the sender's secret times b. Grounded on
// original_source/src/triples/mta.rs's mta_receiver.
type MtAReceiver struct {
	group   curve.Curve
	b       curve.Scalar
	choices []byte
	vChoice []curve.Scalar
}

// NewMtAReceiver builds a Gilboa receiver out of a completed Random OT
// Extension receive result (C7) and the same choices bit-string that
// produced it; result must already hold exactly MtABatchSize(b.Curve())
// rows, and choices must carry at least that many bits.
func NewMtAReceiver(result *ExtendedOTReceiveResult, choices []byte, b curve.Scalar) *MtAReceiver {
	group := b.Curve()
	vChoice := make([]curve.Scalar, len(result._VChoices))
	for i, row := range result._VChoices {
		vChoice[i] = expandROTScalar(group, row)
	}
	return &MtAReceiver{group: group, b: b, choices: choices, vChoice: vChoice}
}

// Curve returns the group this receiver's scalars belong to.
func (r *MtAReceiver) Curve() curve.Curve { return r.group }

// Round1 processes the sender's opening message: derives m_i = c_{t_i,i} −
// v_{t_i,i}, samples a fresh seed and χ_2..χ_κ from it, sets χ_1 so that
// Σχ_i·(−1)^{t_i} equals b, and returns β = Σχ_i·m_i alongside the (seed,
// χ_1) message the sender needs to finish. spec.md §4.6 steps 2-4.
func (r *MtAReceiver) Round1(msg *MtASendRound1Message) (*MtAReceiveRound1Message, curve.Scalar, error) {
	size := len(r.vChoice)
	if len(msg.C0) != size || len(msg.C1) != size {
		return nil, nil, protocol.Fail(component, protocol.Malformed, errRowCount)
	}
	if size == 0 {
		return nil, nil, protocol.Fail(component, protocol.Malformed, errRowCount)
	}

	m := make([]curve.Scalar, size)
	for i := range m {
		selected := r.group.NewScalar().Set(msg.C0[i])
		if getBitAt(r.choices, i) == 1 {
			selected.Set(msg.C1[i])
		}
		m[i] = selected.Sub(r.vChoice[i])
	}

	seed := make([]byte, params.SecBytes)
	if _, err := rand.Read(seed); err != nil {
		return nil, nil, err
	}
	chiRest := expandChiSeed(seed, r.group, size-1)

	sum := r.group.NewScalar()
	term := r.group.NewScalar()
	for i, chi := range chiRest {
		term.Set(chi)
		if getBitAt(r.choices, i+1) == 1 {
			term.Negate()
		}
		sum.Add(term)
	}
	chi1 := r.group.NewScalar().Set(r.b).Sub(sum)
	if getBitAt(r.choices, 0) == 1 {
		chi1.Negate()
	}

	beta := r.group.NewScalar()
	term.Set(chi1).Mul(m[0])
	beta.Add(term)
	for i, chi := range chiRest {
		term.Set(chi).Mul(m[i+1])
		beta.Add(term)
	}

	return &MtAReceiveRound1Message{Seed: seed, Chi1: chi1}, beta, nil
}
