package ot

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/cait-sith-go/threshold-ecdsa/internal/params"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/hash"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
	"github.com/zeebo/blake3"
)

// wideElement holds an un-reduced element of the polynomial ring
// GF(2)[x], sized to hold the product of two params.SecBytes-sized
// operands without truncation. It backs the batch consistency check that
// turns a correlated OT extension into a *random* OT extension (§4.5):
// both sides fold every row of an inflated batch into one wideElement
// under the same random combiners, and disagreement in the final compare
// catches a cheating party with overwhelming probability without either
// side checking rows individually.
type wideElement [2 * params.SecBytes]byte

// gfMultiplyAdd computes a(x)*b(x) over GF(2)[x] — no modular reduction,
// since the accumulator is sized to never need one — and XORs the result
// into acc. It walks the bits of a from position 0 upward, doubling a
// running copy of b rather than shifting the wider accumulator; that's
// the reverse of the usual "shift the accumulator" long multiplication,
// but folds the same sum.
func gfMultiplyAdd(acc *wideElement, a, b *[params.SecBytes]byte) {
	var shifted wideElement
	copy(shifted[:params.SecBytes], b[:])

	for i := 0; i < 8*params.SecBytes; i++ {
		if bitAt(i, a[:]) == 1 {
			xorInto(acc[:], shifted[:])
		}
		shiftLeftOne(&shifted)
	}
}

// shiftLeftOne doubles a wideElement in place, byte 0 holding the least
// significant bits.
func shiftLeftOne(w *wideElement) {
	var carry byte
	for i := 0; i < len(w); i++ {
		next := w[i] >> 7
		w[i] = (w[i] << 1) | carry
		carry = next
	}
}

// constantEqual compares two wideElements without short-circuiting,
// folding every differing bit into one accumulator before the final
// comparison.
func (w wideElement) constantEqual(other wideElement) bool {
	var diff byte
	for i := range w {
		diff |= w[i] ^ other[i]
	}
	return diff == 0
}

// checkRows is how many extra correlated OT instances an extension batch
// carries purely to drive the consistency check's soundness error down,
// independent of how many output rows the caller actually asked for.
const checkRows = params.SecParam + params.StatParam

// deriveChallenges draws one wideElement-width challenge per row of an
// inflated batch from ctxHash's transcript, so both sides derive the same
// combiners after committing to the correlated OT messages already
// written into ctxHash.
func deriveChallenges(ctxHash *hash.Hash, rows int) [][params.SecBytes]byte {
	out := make([][params.SecBytes]byte, rows)
	digest := ctxHash.Digest()
	for i := range out {
		_, _ = digest.Read(out[i][:])
	}
	return out
}

// bindCorrectionRows folds the correlated OT setup's own U values into
// ctxHash before the challenge derivation above, so a party can't choose
// its correlated OT correction bits after already knowing the challenges
// that will be used to check them.
func bindCorrectionRows(ctxHash *hash.Hash, u [][params.SecBytes]byte) {
	for i := range u {
		_ = ctxHash.WriteAny(u[i][:])
	}
}

// ExtendedOTReceiveMessage is the receiver's contribution to a random OT
// extension: the underlying correlated OT message, plus the two values
// (choiceSum, rowSum) the sender needs to run the consistency check.
type ExtendedOTReceiveMessage struct {
	correMsg  *CorreOTReceiveMessage
	choiceSum [params.SecBytes]byte
	rowSum    wideElement
}

// ExtendedOTReceiveResult is what the receiver keeps: one output pad per
// requested instance, derived from its own correlated OT rows.
type ExtendedOTReceiveResult struct {
	_VChoices [][params.SecBytes]byte
}

// ExtendedOTReceive runs a batch of batchSize random OT instances (C7) on
// top of a Correlated OT Extension setup (C6). It inflates the request by
// checkRows extra instances, runs the correlated extension over the whole
// inflated batch, then folds every row — outputs and check rows alike —
// into choiceSum/rowSum under a shared set of random combiners, so the
// sender can catch a receiver that reported inconsistent correlated OT
// rows anywhere in the batch. It fails with SessionReused if ctxHash's
// transcript was already consumed by a prior call against this setup.
func ExtendedOTReceive(ctxHash *hash.Hash, setup *CorreOTReceiveSetup, choices []byte) (*ExtendedOTReceiveMessage, *ExtendedOTReceiveResult, error) {
	outputRows := 8 * len(choices)
	totalRows := outputRows + checkRows

	padded := make([]byte, (totalRows+7)/8)
	copy(padded, choices)
	_, _ = rand.Read(padded[len(choices):])

	correMsg, correResult, err := CorreOTReceive(ctxHash, setup, padded)
	if err != nil {
		return nil, nil, err
	}
	bindCorrectionRows(ctxHash, correMsg._U)
	challenges := deriveChallenges(ctxHash, totalRows)

	var choiceSum [params.SecBytes]byte
	var rowSum wideElement
	for i := 0; i < totalRows; i++ {
		if bitAt(i, padded) == 1 {
			xorInto(choiceSum[:], challenges[i][:])
		}
		gfMultiplyAdd(&rowSum, &correResult._T[i], &challenges[i])
	}

	pads := make([][params.SecBytes]byte, outputRows)
	for i := 0; i < outputRows; i++ {
		pads[i] = derivePad(i, correResult._T[i][:])
	}

	return &ExtendedOTReceiveMessage{
		correMsg:  correMsg,
		choiceSum: choiceSum,
		rowSum:    rowSum,
	}, &ExtendedOTReceiveResult{_VChoices: pads}, nil
}

// ExtendedOTSendResult is what the Δ-holding side keeps: two output pads
// per requested instance, one for each possible choice bit, since the
// sender doesn't know which one its counterpart will end up wanting.
type ExtendedOTSendResult struct {
	_V0, _V1 [][params.SecBytes]byte
}

// ExtendedOTSend completes the Δ-holder's side of a random OT extension,
// verifying the receiver's consistency proof before releasing any output
// pads, and failing with SessionReused if ctxHash's transcript was already
// consumed by a prior call against this setup. Skipping the consistency
// check would let a malicious receiver learn bits of
// Δ by reporting rows inconsistent with a single choice string.
func ExtendedOTSend(ctxHash *hash.Hash, setup *CorreOTSendSetup, batchSize int, msg *ExtendedOTReceiveMessage) (*ExtendedOTSendResult, error) {
	totalRows := batchSize + checkRows

	sendResult, err := CorreOTSend(ctxHash, setup, totalRows, msg.correMsg)
	if err != nil {
		return nil, err
	}
	bindCorrectionRows(ctxHash, msg.correMsg._U)
	challenges := deriveChallenges(ctxHash, totalRows)

	var check wideElement
	for i := 0; i < totalRows; i++ {
		gfMultiplyAdd(&check, &sendResult._Q[i], &challenges[i])
	}
	delta := (*[params.SecBytes]byte)(setup._Delta)
	gfMultiplyAdd(&check, &msg.choiceSum, delta)

	if !check.constantEqual(msg.rowSum) {
		return nil, protocol.Fail(component, protocol.ConsistencyFailed, errMonochrome)
	}

	out := &ExtendedOTSendResult{
		_V0: make([][params.SecBytes]byte, batchSize),
		_V1: make([][params.SecBytes]byte, batchSize),
	}
	for i := 0; i < batchSize; i++ {
		out._V0[i] = derivePad(i, sendResult._Q[i][:])
		var withDelta [params.SecBytes]byte
		for j := range withDelta {
			withDelta[j] = sendResult._Q[i][j] ^ setup._Delta[j]
		}
		out._V1[i] = derivePad(i, withDelta[:])
	}
	return out, nil
}

// Slice returns the sub-batch [lo, hi) of a send result, letting a single
// completed C7 batch back more than one independent C8 conversion —
// Multiplication (C9) needs exactly this to split one size-2κ extension
// into the first and last κ rows its two parallel MtA calls each expect.
func (r *ExtendedOTSendResult) Slice(lo, hi int) *ExtendedOTSendResult {
	return &ExtendedOTSendResult{_V0: r._V0[lo:hi], _V1: r._V1[lo:hi]}
}

// Slice is Slice above's receive-side counterpart.
func (r *ExtendedOTReceiveResult) Slice(lo, hi int) *ExtendedOTReceiveResult {
	return &ExtendedOTReceiveResult{_VChoices: r._VChoices[lo:hi]}
}

// derivePad hashes a row's extension output together with its index into
// one params.SecBytes pad, via a fresh blake3 instance rather than the
// shared transcript, so pads for different indices stay independent.
func derivePad(index int, row []byte) [params.SecBytes]byte {
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], uint64(index))
	h := blake3.New()
	_, _ = h.Write(row)
	_, _ = h.Write(ctr[:])
	var out [params.SecBytes]byte
	_, _ = h.Digest().Read(out[:])
	return out
}
