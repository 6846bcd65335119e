// Package polynomial implements the scalar polynomials used for
// Shamir-style threshold secret sharing, together with their "in the
// exponent" image (Exponent, §C9/§C10's public commitments) and the
// Lagrange coefficients that linearize a threshold sharing into an
// additive one over a specific quorum.
package polynomial

import (
	"crypto/rand"

	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/math/sample"
)

// Polynomial represents f(X) = a0 + a1·X + ... + at·X^t over a group's
// scalar field.
type Polynomial struct {
	group        curve.Curve
	coefficients []curve.Scalar
}

// NewPolynomial generates a random polynomial of the given degree, with
// constant term fixed to constant (the secret being shared). If constant
// is nil, the constant term is zero.
func NewPolynomial(group curve.Curve, degree int, constant curve.Scalar) *Polynomial {
	p := &Polynomial{group: group, coefficients: make([]curve.Scalar, degree+1)}

	if constant == nil {
		p.coefficients[0] = group.NewScalar()
	} else {
		p.coefficients[0] = group.NewScalar().Set(constant)
	}

	for i := 1; i <= degree; i++ {
		p.coefficients[i] = sample.Scalar(rand.Reader, group)
	}

	return p
}

// Evaluate computes f(index) by Horner's method. index must be nonzero:
// f(0) is the secret itself, and evaluating there would simply hand it
// out.
func (p *Polynomial) Evaluate(index curve.Scalar) curve.Scalar {
	if index.IsZero() {
		panic("polynomial: attempt to evaluate at 0, which would leak the secret")
	}

	result := p.group.NewScalar()
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		result.Mul(index)
		result.Add(p.coefficients[i])
	}
	return result
}

// Constant returns the polynomial's constant term, f(0).
func (p *Polynomial) Constant() curve.Scalar {
	return p.coefficients[0]
}

// Degree is the highest power appearing in p.
func (p *Polynomial) Degree() int {
	return len(p.coefficients) - 1
}

// Exponent is a polynomial's image under the group's exponentiation map:
// F(X) = f(X)·G0, represented directly by its point coefficients so it
// can be published and evaluated without revealing f.
type Exponent struct {
	group        curve.Curve
	coefficients []curve.Point
}

// NewExponent lifts p into the exponent: coefficient ai becomes ai·G0.
func NewExponent(p *Polynomial) *Exponent {
	e := &Exponent{group: p.group, coefficients: make([]curve.Point, len(p.coefficients))}
	for i, a := range p.coefficients {
		e.coefficients[i] = a.ActOnBase()
	}
	return e
}

// NewExponentFromPoints builds an Exponent directly from its published
// coefficients, for a party that only ever sees the other side's public
// polynomial commitment and never holds the underlying Polynomial.
func NewExponentFromPoints(group curve.Curve, coefficients []curve.Point) *Exponent {
	return &Exponent{group: group, coefficients: coefficients}
}

// Evaluate computes F(index) by Horner's method, entirely in the group
// (no scalar corresponding to the result is ever materialized).
func (e *Exponent) Evaluate(index curve.Scalar) curve.Point {
	result := e.group.NewPoint()
	for i := len(e.coefficients) - 1; i >= 0; i-- {
		result = index.Act(result)
		result.Add(e.coefficients[i])
	}
	return result
}

// Degree is the highest power appearing in e.
func (e *Exponent) Degree() int {
	return len(e.coefficients) - 1
}

// Constant returns F(0) = e's constant coefficient.
func (e *Exponent) Constant() curve.Point {
	return e.coefficients[0]
}

// Coefficients returns e's coefficients, in ascending order of degree.
func (e *Exponent) Coefficients() []curve.Point {
	return e.coefficients
}

// SumExponents adds a batch of same-degree Exponents coefficient-wise,
// combining independent parties' public polynomial commitments into the
// joint polynomial's commitment during key generation.
func SumExponents(group curve.Curve, exponents []*Exponent) (*Exponent, error) {
	if len(exponents) == 0 {
		return nil, errPolynomial("SumExponents: no exponents given")
	}
	degree := exponents[0].Degree()
	sum := make([]curve.Point, degree+1)
	for i := range sum {
		sum[i] = group.NewPoint()
	}

	for _, e := range exponents {
		if e.Degree() != degree {
			return nil, errPolynomial("SumExponents: mismatched degrees")
		}
		for i, c := range e.coefficients {
			sum[i].Add(c)
		}
	}

	return &Exponent{group: group, coefficients: sum}, nil
}

type polynomialError string

func (e polynomialError) Error() string { return string(e) }

func errPolynomial(msg string) error { return polynomialError(msg) }
