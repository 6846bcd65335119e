package curve

import (
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Secp256k1 is the curve used throughout the ECDSA signing pipeline.
type Secp256k1 struct{}

var secp256k1Order = func() *saferith.Modulus {
	n := secp256k1.S256().N
	return saferith.ModulusFromBytes(n.Bytes())
}()

func (Secp256k1) NewPoint() Point {
	return new(secp256k1Point)
}

func (Secp256k1) NewBasePoint() Point {
	p := new(secp256k1Point)
	one := new(secp256k1.ModNScalar).SetInt(1)
	secp256k1.ScalarBaseMultNonConst(one, &p.value)
	return p
}

func (Secp256k1) NewScalar() Scalar {
	return new(secp256k1Scalar)
}

func (Secp256k1) Name() string { return "secp256k1" }

func (Secp256k1) SafeScalarBytes() int { return 32 }

func (Secp256k1) ScalarBits() int { return 256 }

func (Secp256k1) Order() *saferith.Modulus { return secp256k1Order }

type secp256k1Scalar struct {
	value secp256k1.ModNScalar
}

func castScalar(generic Scalar) *secp256k1Scalar {
	out, ok := generic.(*secp256k1Scalar)
	if !ok {
		panic(fmt.Sprintf("curve: not a secp256k1 scalar: %T", generic))
	}
	return out
}

func (s *secp256k1Scalar) Curve() Curve { return Secp256k1{} }

func (s *secp256k1Scalar) MarshalBinary() ([]byte, error) {
	data := s.value.Bytes()
	out := make([]byte, 32)
	copy(out, data[:])
	return out, nil
}

func (s *secp256k1Scalar) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("curve: invalid length for secp256k1 scalar: %d", len(data))
	}
	var exact [32]byte
	copy(exact[:], data)
	overflow := s.value.SetBytes(&exact)
	if overflow != 0 {
		return fmt.Errorf("curve: secp256k1 scalar out of range")
	}
	return nil
}

func (s *secp256k1Scalar) Add(that Scalar) Scalar {
	other := castScalar(that)
	s.value.Add(&other.value)
	return s
}

func (s *secp256k1Scalar) Sub(that Scalar) Scalar {
	other := castScalar(that)
	var negOther secp256k1.ModNScalar
	negOther.Set(&other.value)
	negOther.Negate()
	s.value.Add(&negOther)
	return s
}

func (s *secp256k1Scalar) Mul(that Scalar) Scalar {
	other := castScalar(that)
	s.value.Mul(&other.value)
	return s
}

func (s *secp256k1Scalar) Invert() Scalar {
	s.value.InverseNonConst()
	return s
}

func (s *secp256k1Scalar) Negate() Scalar {
	s.value.Negate()
	return s
}

func (s *secp256k1Scalar) Equal(that Scalar) bool {
	other := castScalar(that)
	return s.value.Equals(&other.value)
}

func (s *secp256k1Scalar) IsZero() bool {
	return s.value.IsZero()
}

func (s *secp256k1Scalar) Set(that Scalar) Scalar {
	other := castScalar(that)
	s.value.Set(&other.value)
	return s
}

func (s *secp256k1Scalar) SetNat(x *saferith.Nat) Scalar {
	reduced := new(saferith.Nat).Mod(x, secp256k1Order)
	buf := make([]byte, 32)
	reduced.FillBytes(buf)
	var exact [32]byte
	copy(exact[:], buf)
	s.value.SetBytes(&exact)
	return s
}

func (s *secp256k1Scalar) Act(that Point) Point {
	other := castPoint(that)
	out := new(secp256k1Point)
	secp256k1.ScalarMultNonConst(&s.value, &other.value, &out.value)
	return out
}

func (s *secp256k1Scalar) ActOnBase() Point {
	out := new(secp256k1Point)
	secp256k1.ScalarBaseMultNonConst(&s.value, &out.value)
	return out
}

type secp256k1Point struct {
	value secp256k1.JacobianPoint
}

func castPoint(generic Point) *secp256k1Point {
	out, ok := generic.(*secp256k1Point)
	if !ok {
		panic(fmt.Sprintf("curve: not a secp256k1 point: %T", generic))
	}
	return out
}

func (p *secp256k1Point) Curve() Curve { return Secp256k1{} }

func (p *secp256k1Point) MarshalBinary() ([]byte, error) {
	q := p.value
	q.ToAffine()
	out := make([]byte, 33)
	if q.Z.IsZero() {
		// the identity has no standard compressed encoding; use an
		// all-zero sentinel, which is not a valid x-coordinate.
		return out, nil
	}
	out[0] = byte(q.Y.IsOddBit()) + 2
	xBytes := q.X.Bytes()
	copy(out[1:], xBytes[:])
	return out, nil
}

func (p *secp256k1Point) UnmarshalBinary(data []byte) error {
	if len(data) != 33 {
		return fmt.Errorf("curve: invalid length for secp256k1 point: %d", len(data))
	}
	allZero := true
	for _, b := range data {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		p.value = secp256k1.JacobianPoint{}
		return nil
	}
	var x secp256k1.FieldVal
	if overflow := x.SetByteSlice(data[1:]); overflow {
		return fmt.Errorf("curve: secp256k1 point x-coordinate out of range")
	}
	var y secp256k1.FieldVal
	if !secp256k1.DecompressY(&x, data[0] == 3, &y) {
		return fmt.Errorf("curve: secp256k1 point is not on the curve")
	}
	y.Normalize()
	p.value.X.Set(&x)
	p.value.Y.Set(&y)
	p.value.Z.SetInt(1)
	return nil
}

func (p *secp256k1Point) Add(that Point) Point {
	other := castPoint(that)
	var out secp256k1.JacobianPoint
	secp256k1.AddNonConst(&p.value, &other.value, &out)
	p.value = out
	return p
}

func (p *secp256k1Point) Sub(that Point) Point {
	other := castPoint(that)
	var negOther secp256k1.JacobianPoint
	negOther.Set(&other.value)
	negOther.Y.Negate(1)
	negOther.Y.Normalize()
	var out secp256k1.JacobianPoint
	secp256k1.AddNonConst(&p.value, &negOther, &out)
	p.value = out
	return p
}

func (p *secp256k1Point) Negate() Point {
	p.value.Y.Negate(1)
	p.value.Y.Normalize()
	return p
}

func (p *secp256k1Point) Set(that Point) Point {
	other := castPoint(that)
	p.value.Set(&other.value)
	return p
}

func (p *secp256k1Point) Equal(that Point) bool {
	other := castPoint(that)
	a, b := p.value, other.value
	a.ToAffine()
	b.ToAffine()
	return a.X.Equals(&b.X) && a.Y.Equals(&b.Y) && a.Z.Equals(&b.Z)
}

func (p *secp256k1Point) IsIdentity() bool {
	q := p.value
	q.ToAffine()
	return q.Z.IsZero()
}

func (p *secp256k1Point) XScalar() Scalar {
	q := p.value
	q.ToAffine()
	xBytes := q.X.Bytes()
	out := new(secp256k1Scalar)
	out.value.SetByteSlice(xBytes[:])
	return out
}

