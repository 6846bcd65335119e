package polynomial

import (
	"crypto/rand"
	"testing"

	"github.com/cait-sith-go/threshold-ecdsa/pkg/math/sample"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
	"github.com/stretchr/testify/require"
)

func TestLagrangeReconstructsSecret(t *testing.T) {
	const degree = 3
	secret := sample.Scalar(rand.Reader, group)
	p := NewPolynomial(group, degree, secret)

	domain := []party.ID{1, 2, 3, 4, 5}
	coeffs := Lagrange(group, domain)

	reconstructed := group.NewScalar()
	for _, id := range domain {
		share := p.Evaluate(id.Scalar(group))
		term := group.NewScalar().Set(coeffs[id])
		term.Mul(share)
		reconstructed.Add(term)
	}

	require.True(t, reconstructed.Equal(secret))
}

func TestLagrangeSingleMatchesFor(t *testing.T) {
	domain := []party.ID{1, 2, 3}
	full := LagrangeFor(group, domain, domain...)
	for _, id := range domain {
		require.True(t, full[id].Equal(LagrangeSingle(group, domain, id)))
	}
}
