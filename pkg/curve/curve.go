// Package curve defines the group interface every protocol in this module
// is written against, together with a secp256k1 implementation. Protocols
// never depend on a concrete curve; they are written against Curve, Scalar,
// and Point so that a different group could be substituted by implementing
// these three interfaces.
package curve

import (
	"encoding"

	"github.com/cronokirby/saferith"
)

// Curve is a prime-order group in which the ECDSA equations make sense.
type Curve interface {
	// NewPoint returns the identity element of the group.
	NewPoint() Point
	// NewBasePoint returns the fixed generator G0 of the group.
	NewBasePoint() Point
	// NewScalar returns the additive identity of the scalar field.
	NewScalar() Scalar
	// Name identifies the curve, for domain separation.
	Name() string
	// SafeScalarBytes is the number of bytes needed to encode a scalar
	// with no risk of reduction bias when sampling uniformly from them.
	SafeScalarBytes() int
	// ScalarBits is the bit length of the scalar field's order.
	ScalarBits() int
	// Order is the order of the scalar field.
	Order() *saferith.Modulus
}

// Scalar is an element of a Curve's scalar field.
type Scalar interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler

	Curve() Curve
	Add(Scalar) Scalar
	Sub(Scalar) Scalar
	Negate() Scalar
	Mul(Scalar) Scalar
	Invert() Scalar
	Equal(Scalar) bool
	IsZero() bool
	Set(Scalar) Scalar
	SetNat(*saferith.Nat) Scalar
	// Act returns s * p, the action of this scalar on a point.
	Act(p Point) Point
	// ActOnBase returns s * G0.
	ActOnBase() Point
}

// Point is an element of a Curve's group.
type Point interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler

	Curve() Curve
	Add(Point) Point
	Sub(Point) Point
	Negate() Point
	Set(Point) Point
	Equal(Point) bool
	IsIdentity() bool
	// XScalar returns the point's x-coordinate, reduced into the scalar
	// field. Used to extract the ECDSA signature's r component.
	XScalar() Scalar
}

// MakeInt returns the canonical integer representation of a scalar.
func MakeInt(s Scalar) *saferith.Int {
	bytes, err := s.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return new(saferith.Int).SetBytes(bytes)
}

// FromHash converts a hash output into a Scalar, following the same
// truncate-then-shift convention as crypto/ecdsa: the hash is truncated to
// the byte length of the group order, and any excess bits in the top byte
// are shifted away.
func FromHash(group Curve, h []byte) Scalar {
	order := group.Order()
	orderBits := order.BitLen()
	orderBytes := (orderBits + 7) / 8
	if len(h) > orderBytes {
		h = h[:orderBytes]
	}
	s := new(saferith.Nat).SetBytes(h)
	excess := len(h)*8 - orderBits
	if excess > 0 {
		s.Rsh(s, uint(excess), -1)
	}
	return group.NewScalar().SetNat(s)
}
