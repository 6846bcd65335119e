// Package hash implements the Fiat-Shamir transcript primitive used to turn
// the interactive parts of the protocols in this module into non-interactive
// challenges, and to derive pseudorandomness (PRG expansion,
// consistency-check challenges) from an agreed-upon session context.
package hash

import (
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// Hash is an extendable-output transcript accumulator. Writing to a Hash
// never fails except when fed a value of unsupported type; reading from the
// digest it produces can be repeated to draw as much pseudorandomness as
// needed.
type Hash struct {
	h *blake3.Hasher
}

// New creates an empty Hash, domain-separated with a fixed context string so
// that this module's transcripts never collide with an unrelated use of
// blake3 over the same bytes.
func New() *Hash {
	h := blake3.New()
	_, _ = h.Write([]byte("cait-sith-go v1"))
	return &Hash{h: h}
}

// Clone returns an independent copy of the Hash in its current state;
// writing to the clone does not affect the original.
func (hash *Hash) Clone() *Hash {
	return &Hash{h: hash.h.Clone()}
}

// Fork derives a child transcript, domain-separated from its parent by w's
// domain tag and contents. Used to give every sub-protocol (and every index
// within a batch) its own independent transcript branch.
func (hash *Hash) Fork(w WriterToWithDomain) *Hash {
	child := hash.Clone()
	_ = child.WriteAny([]byte(w.Domain()))
	_, err := w.WriteTo(child)
	if err != nil {
		panic(fmt.Errorf("hash.Fork: %w", err))
	}
	return child
}

// WriteTo lets Hash itself be written into another Hash or io.Writer,
// without exposing the underlying accumulated bytes.
func (hash *Hash) WriteTo(w io.Writer) (int64, error) {
	sum := hash.h.Sum(nil)
	n, err := w.Write(sum)
	return int64(n), err
}

// Write implements io.Writer.
func (hash *Hash) Write(data []byte) (int, error) {
	return hash.h.Write(data)
}

// WriteAny writes a sequence of values of supported types into the
// transcript. Supported types are []byte, byte, io.WriterTo (and so
// WriterToWithDomain), and anything with a MarshalBinary method; nil
// values are skipped.
func (hash *Hash) WriteAny(data ...interface{}) error {
	for _, d := range data {
		switch t := d.(type) {
		case nil:
			continue
		case []byte:
			if _, err := hash.h.Write(t); err != nil {
				return fmt.Errorf("hash.WriteAny: %w", err)
			}
		case byte:
			if _, err := hash.h.Write([]byte{t}); err != nil {
				return fmt.Errorf("hash.WriteAny: %w", err)
			}
		case io.WriterTo:
			if _, err := t.WriteTo(hash.h); err != nil {
				return fmt.Errorf("hash.WriteAny: %w", err)
			}
		case encoding_BinaryMarshaler:
			b, err := t.MarshalBinary()
			if err != nil {
				return fmt.Errorf("hash.WriteAny: %w", err)
			}
			if _, err := hash.h.Write(b); err != nil {
				return fmt.Errorf("hash.WriteAny: %w", err)
			}
		default:
			return fmt.Errorf("hash.WriteAny: unsupported type %T", t)
		}
	}
	return nil
}

// encoding_BinaryMarshaler avoids importing encoding just for this one
// interface check.
type encoding_BinaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}

// Digest returns a reader over the transcript's extendable output. Each call
// to Digest starts a fresh output stream over the current transcript state;
// reads from one Digest do not affect another, or the Hash it was drawn
// from.
func (hash *Hash) Digest() *blake3.Digest {
	return hash.h.Digest()
}

// ReadBytes fills buf (a fresh 32-byte buffer when buf is nil) with output
// from the transcript's digest and returns it. It does not mutate the
// transcript.
func (hash *Hash) ReadBytes(buf []byte) []byte {
	if buf == nil {
		buf = make([]byte, 32)
	}
	_, _ = hash.Digest().Read(buf)
	return buf
}
