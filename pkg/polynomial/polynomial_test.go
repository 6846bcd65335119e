package polynomial

import (
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/math/sample"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
	"github.com/stretchr/testify/require"
	"crypto/rand"
)

var group = curve.Secp256k1{}

func TestEvaluateMatchesConstantAtDegreeZero(t *testing.T) {
	secret := sample.Scalar(rand.Reader, group)
	p := NewPolynomial(group, 0, secret)

	require.True(t, p.Constant().Equal(secret))
	one := group.NewScalar().SetNat(new(saferith.Nat).SetUint64(1))
	require.True(t, p.Evaluate(one).Equal(secret))
}

func TestThresholdReconstruction(t *testing.T) {
	const degree = 2
	secret := sample.Scalar(rand.Reader, group)
	p := NewPolynomial(group, degree, secret)

	quorum := party.IDSlice{1, 3, 4}

	shares := map[party.ID]curve.Scalar{}
	for _, id := range quorum {
		shares[id] = p.Evaluate(id.Scalar(group))
	}

	reconstructed := group.NewScalar()
	for _, id := range quorum {
		coeff := quorum.Lagrange(group, id)
		term := group.NewScalar().Set(coeff)
		term.Mul(shares[id])
		reconstructed.Add(term)
	}

	require.True(t, reconstructed.Equal(secret))
}

func TestExponentMatchesScalarEvaluation(t *testing.T) {
	secret := sample.Scalar(rand.Reader, group)
	p := NewPolynomial(group, 2, secret)
	e := NewExponent(p)

	require.True(t, e.Constant().Equal(secret.ActOnBase()))

	x := sample.Scalar(rand.Reader, group)
	require.True(t, e.Evaluate(x).Equal(p.Evaluate(x).ActOnBase()))
}

func TestSumExponents(t *testing.T) {
	a := NewPolynomial(group, 1, sample.Scalar(rand.Reader, group))
	b := NewPolynomial(group, 1, sample.Scalar(rand.Reader, group))

	ea, eb := NewExponent(a), NewExponent(b)
	sum, err := SumExponents(group, []*Exponent{ea, eb})
	require.NoError(t, err)

	x := sample.Scalar(rand.Reader, group)
	expected := a.Evaluate(x)
	expected.Add(b.Evaluate(x))

	require.True(t, sum.Evaluate(x).Equal(expected.ActOnBase()))
}
