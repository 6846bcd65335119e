// Package sample draws uniformly random values needed throughout the OT
// and ECDSA protocols: field scalars, and the Nat/Modulus values the
// underlying curve arithmetic is built on.
package sample

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
)

const maxIterations = 255

// ErrMaxIterations is panicked when rejection sampling fails to find a
// value in range after maxIterations tries, which should essentially
// never happen for any rand source with a non-negligible bias away from
// the top of its range.
var ErrMaxIterations = fmt.Errorf("sample: failed to generate after %d iterations", maxIterations)

func mustReadBits(rand io.Reader, buf []byte) {
	for i := 0; i < maxIterations; i++ {
		if _, err := io.ReadFull(rand, buf); err == nil {
			return
		}
	}
	panic(ErrMaxIterations)
}

// ModN samples a uniformly random element of ℤ/nℤ.
func ModN(rand io.Reader, n *saferith.Modulus) *saferith.Nat {
	out := new(saferith.Nat)
	buf := make([]byte, (n.BitLen()+7)/8)
	for i := 0; i < maxIterations; i++ {
		mustReadBits(rand, buf)
		out.SetBytes(buf)
		if _, _, lt := out.CmpMod(n); lt == 1 {
			return out
		}
	}
	panic(ErrMaxIterations)
}

// Scalar samples a uniformly random element of group's scalar field. rand
// may be any source of uniform random bytes, including a PRG digest used
// to derive a protocol transcript's challenges deterministically from
// both parties' committed randomness, not only crypto/rand.Reader.
func Scalar(rand io.Reader, group curve.Curve) curve.Scalar {
	buf := make([]byte, group.SafeScalarBytes()+8)
	mustReadBits(rand, buf)
	return curve.FromHash(group, buf)
}
