package maurer

import (
	"testing"

	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/hash"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/math/sample"
	"github.com/stretchr/testify/require"
	"crypto/rand"
)

var group = curve.Secp256k1{}

func TestProofRoundTrip(t *testing.T) {
	x := sample.Scalar(rand.Reader, group)
	X := x.ActOnBase()

	proof := NewProof(hash.New(), X, x)
	require.True(t, proof.Verify(hash.New(), X))
}

func TestProofRejectsWrongStatement(t *testing.T) {
	x := sample.Scalar(rand.Reader, group)
	X := x.ActOnBase()
	other := sample.Scalar(rand.Reader, group).ActOnBase()

	proof := NewProof(hash.New(), X, x)
	require.False(t, proof.Verify(hash.New(), other))
}

func TestProofRejectsMismatchedTranscript(t *testing.T) {
	x := sample.Scalar(rand.Reader, group)
	X := x.ActOnBase()

	h1 := hash.New()
	_ = h1.WriteAny([]byte("session one"))
	h2 := hash.New()
	_ = h2.WriteAny([]byte("session two"))

	proof := NewProof(h1, X, x)
	require.False(t, proof.Verify(h2, X))
}

func TestEqualityProofRoundTrip(t *testing.T) {
	x := sample.Scalar(rand.Reader, group)
	base := sample.Scalar(rand.Reader, group).ActOnBase()

	X := x.ActOnBase()
	Y := x.Act(base)

	proof := NewEqualityProof(hash.New(), base, X, Y, x)
	require.True(t, proof.Verify(hash.New(), base, X, Y))
}

func TestEqualityProofRejectsUnrelatedY(t *testing.T) {
	x := sample.Scalar(rand.Reader, group)
	base := sample.Scalar(rand.Reader, group).ActOnBase()

	X := x.ActOnBase()
	notY := sample.Scalar(rand.Reader, group).Act(base)

	proof := NewEqualityProof(hash.New(), base, X, notY, x)
	require.False(t, proof.Verify(hash.New(), base, X, notY))
}
