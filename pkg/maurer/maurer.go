// Package maurer implements Fiat-Shamir, Schnorr-style zero-knowledge
// proofs of knowledge for the two group homomorphisms the OT and triple
// generation protocols need: plain discrete log (φ_G0(x) = x·G0) and
// equality of discrete log across two bases (φ_{G0,F0}(x) = (x·G0, x·F0)).
// Both follow the same three-move Σ-protocol shape, compiled
// non-interactive by deriving the challenge from a transcript hash the
// caller supplies, so the proof is bound into whatever larger protocol
// transcript that hash represents.
package maurer

import (
	"crypto/rand"

	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/hash"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/math/sample"
)

// Proof is a non-interactive proof of knowledge of x such that X = x·G0,
// for the group G0 belongs to.
type Proof struct {
	A curve.Point
	Z curve.Scalar
}

func challenge(transcript *hash.Hash, group curve.Curve, points ...curve.Point) curve.Scalar {
	h := transcript.Clone()
	for _, p := range points {
		_ = h.WriteAny(p)
	}
	buf := make([]byte, group.SafeScalarBytes()+8)
	_, _ = h.Digest().Read(buf)
	return curve.FromHash(group, buf)
}

// NewProof proves knowledge of x given X = x·G0, using a freshly sampled
// commitment scalar. transcript is cloned internally, so the caller's copy
// is left unmodified and may go on to be used for other proofs or writes.
func NewProof(transcript *hash.Hash, X curve.Point, x curve.Scalar) *Proof {
	group := X.Curve()
	a := sample.Scalar(rand.Reader, group)
	A := a.ActOnBase()

	e := challenge(transcript, group, A, X)
	z := group.NewScalar().Set(e)
	z.Mul(x)
	z.Add(a)

	return &Proof{A: A, Z: z}
}

// Verify checks that p proves knowledge of the discrete log of X.
func (p *Proof) Verify(transcript *hash.Hash, X curve.Point) bool {
	if p == nil || p.A == nil || p.Z == nil || X == nil {
		return false
	}
	if p.A.IsIdentity() || X.IsIdentity() {
		return false
	}

	group := X.Curve()
	e := challenge(transcript, group, p.A, X)

	lhs := p.Z.ActOnBase()
	rhs := e.Act(X)
	rhs.Add(p.A)

	return lhs.Equal(rhs)
}

// EqualityProof is a non-interactive proof of knowledge of x such that
// X = x·G0 and Y = x·F0 simultaneously, for a second base point F0 fixed
// by the caller (φ_{G0,F0}). Triple Generation uses this to show that the
// same value underlies both a plain commitment and a value blinded by
// another party's share.
type EqualityProof struct {
	A curve.Point
	B curve.Point
	Z curve.Scalar
}

func equalityChallenge(transcript *hash.Hash, group curve.Curve, points ...curve.Point) curve.Scalar {
	return challenge(transcript, group, points...)
}

// NewEqualityProof proves knowledge of x given X = x·G0 and Y = x·base.
func NewEqualityProof(transcript *hash.Hash, base, X, Y curve.Point, x curve.Scalar) *EqualityProof {
	group := X.Curve()
	a := sample.Scalar(rand.Reader, group)
	A := a.ActOnBase()
	B := a.Act(base)

	e := equalityChallenge(transcript, group, A, B, X, Y)
	z := group.NewScalar().Set(e)
	z.Mul(x)
	z.Add(a)

	return &EqualityProof{A: A, B: B, Z: z}
}

// Verify checks that p proves X and Y share a discrete log relative to
// G0 and base respectively.
func (p *EqualityProof) Verify(transcript *hash.Hash, base, X, Y curve.Point) bool {
	if p == nil || p.A == nil || p.B == nil || p.Z == nil || X == nil || Y == nil {
		return false
	}
	if p.A.IsIdentity() || p.B.IsIdentity() || X.IsIdentity() || Y.IsIdentity() {
		return false
	}

	group := X.Curve()
	e := equalityChallenge(transcript, group, p.A, p.B, X, Y)

	lhsG := p.Z.ActOnBase()
	rhsG := e.Act(X)
	rhsG.Add(p.A)
	if !lhsG.Equal(rhsG) {
		return false
	}

	lhsF := p.Z.Act(base)
	rhsF := e.Act(Y)
	rhsF.Add(p.B)
	return lhsF.Equal(rhsF)
}
