// Package party identifies the participants in a protocol run and gives
// them the total order every protocol needs to agree on (for sorted
// broadcasts, for which side of each pair's OT setup a participant holds
// in threshold Multiplication, and for
// Lagrange-coefficient linearization).
package party

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"math/big"
	"strconv"

	"github.com/cronokirby/saferith"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
)

// ByteSize is the number of bytes used to encode an ID on the wire.
const ByteSize = 4

// ID identifies a single participant across the lifetime of a protocol
// run. It is never reused within a run and is not required to be dense or
// contiguous.
type ID uint32

// Scalar returns the group-field representation of an ID's index, used
// as the evaluation point of a participant's share of a polynomial.
func (p ID) Scalar(group curve.Curve) curve.Scalar {
	n := new(saferith.Nat).SetUint64(uint64(p))
	return group.NewScalar().SetNat(n)
}

// Bytes returns the big-endian encoding of p, of length ByteSize.
func (p ID) Bytes() []byte {
	buf := make([]byte, ByteSize)
	binary.BigEndian.PutUint32(buf, uint32(p))
	return buf
}

// WriteTo implements io.WriterTo, so an ID can be fed directly into a
// transcript hash.
func (p ID) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

func (p ID) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

// FromBytes reads the first ByteSize bytes of b as an ID.
func FromBytes(b []byte) ID {
	return ID(binary.BigEndian.Uint32(b))
}

// RandID returns a pseudo-random, nonzero ID, suitable for tests that need
// participants with arbitrary (non-contiguous) identities.
func RandID() ID {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	v := binary.BigEndian.Uint32(buf)
	if v == 0 {
		v = 1
	}
	return ID(v)
}

// bigInt returns the ID's value as a big.Int. Unused today but kept as the
// natural escape hatch for diagnostics/tests that want to print or compare
// IDs numerically without pulling in a curve.
func (p ID) bigInt() *big.Int {
	return new(big.Int).SetUint64(uint64(p))
}

func oneNat() *saferith.Nat {
	return new(saferith.Nat).SetUint64(1)
}
