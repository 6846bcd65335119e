// Package commitment implements the binding, statistically-hiding
// commitment scheme used to commit to a value before it's safe to reveal
// (the round 1 polynomial commitments of key generation and Triple
// Generation, opened in round 2). A commitment is the hash of the value together with a
// random opener; hiding follows from the opener masking the hash's input,
// binding from the hash's collision resistance.
package commitment

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/cait-sith-go/threshold-ecdsa/internal/params"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/hash"
)

// Com is a commitment to a value, safe to broadcast before the value
// itself is revealed.
type Com []byte

// Domain implements hash.WriterToWithDomain.
func (Com) Domain() string { return "Commitment.Com" }

func (c Com) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c)
	return int64(n), err
}

// Opener is revealed alongside the committed value so CheckCommit can
// verify the commitment matches.
type Opener []byte

// Domain implements hash.WriterToWithDomain.
func (Opener) Domain() string { return "Commitment.Opener" }

func (o Opener) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(o)
	return int64(n), err
}

// Commit commits to value, writing it into a clone of transcript (so the
// commitment is bound to whatever protocol context transcript represents)
// together with a freshly sampled opener. It returns the commitment and
// the opener, which the caller must keep secret until it's ready to open.
func Commit(transcript *hash.Hash, value ...interface{}) (Com, Opener, error) {
	opener := make(Opener, params.SecBytes)
	if _, err := rand.Read(opener); err != nil {
		return nil, nil, fmt.Errorf("commitment.Commit: failed to sample opener: %w", err)
	}

	h := transcript.Clone()
	for _, v := range value {
		if err := h.WriteAny(v); err != nil {
			return nil, nil, fmt.Errorf("commitment.Commit: %w", err)
		}
	}
	if err := h.WriteAny(opener); err != nil {
		return nil, nil, fmt.Errorf("commitment.Commit: %w", err)
	}

	return Com(h.ReadBytes(nil)), opener, nil
}

// CheckCommit reports whether com is a commitment, under transcript, to
// value with the given opener.
func CheckCommit(transcript *hash.Hash, com Com, opener Opener, value ...interface{}) bool {
	if len(com) == 0 || len(opener) != params.SecBytes {
		return false
	}

	h := transcript.Clone()
	for _, v := range value {
		if err := h.WriteAny(v); err != nil {
			return false
		}
	}
	if err := h.WriteAny(opener); err != nil {
		return false
	}

	recomputed := h.ReadBytes(nil)
	return subtle.ConstantTimeCompare(recomputed, com) == 1
}
