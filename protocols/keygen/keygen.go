// Package keygen implements threshold key generation: every participant
// samples its own Feldman-VSS polynomial, publishes a commitment to its
// point-polynomial image, then reveals and combines the results into a
// Shamir share of a jointly-generated private key and its public key. Unlike
// Triple Generation, no multiplicative-to-additive conversion is needed,
// so this protocol never touches internal/ot: it is three engine rounds
// of commit, confirm, and open.
package keygen

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cait-sith-go/threshold-ecdsa/internal/engine"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/commitment"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/hash"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/maurer"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/polynomial"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
)

func fail(kind protocol.Kind, format string, args ...interface{}) error {
	return protocol.Fail("keygen", kind, fmt.Errorf(format, args...))
}

// Output is a single participant's result from a Generate run: its
// Shamir share of the jointly-generated private key, and the public
// key every honest participant has agreed on.
type Output struct {
	PrivateShare curve.Scalar
	PublicKey    curve.Point
}

func branchDomain(name string, id party.ID) hash.BytesWithDomain {
	return hash.BytesWithDomain{TheDomain: name, Bytes: id.Bytes()}
}

func flattenPoints(e *polynomial.Exponent) []interface{} {
	out := make([]interface{}, 0, len(e.Coefficients()))
	for _, p := range e.Coefficients() {
		out = append(out, p)
	}
	return out
}

// Generate builds the engine.Protocol that runs threshold key generation
// among ids, each participant ending up with a degree-(threshold-1)
// Shamir share of the combined private key.
func Generate(group curve.Curve, ids party.IDSlice, threshold int) (engine.Protocol, error) {
	if len(ids) < 2 {
		return nil, fail(protocol.Malformed, "keygen: need at least 2 participants, got %d", len(ids))
	}
	if threshold > len(ids) {
		return nil, fail(protocol.Malformed, "keygen: threshold %d exceeds participant count %d", threshold, len(ids))
	}
	peers := ids.Copy()
	for i := 1; i < len(peers); i++ {
		if peers[i-1] == peers[i] {
			return nil, fail(protocol.Malformed, "keygen: participant list contains duplicate id %s", peers[i])
		}
	}
	degree := threshold - 1

	return func(ctx *engine.Context) (interface{}, error) {
		me := ctx.Me()
		if !peers.Contains(me) {
			return nil, fail(protocol.InvariantViolated, "keygen: %s is not a member of the participant set", me)
		}

		thresholdBytes := make([]byte, 4)
		binary.BigEndian.PutUint32(thresholdBytes, uint32(threshold))
		baseTranscript := hash.New().Fork(peers).Fork(hash.BytesWithDomain{TheDomain: "keygen.Threshold", Bytes: thresholdBytes})

		// Round 1: sample f, publish a commitment to its point-polynomial
		// image.
		f := polynomial.NewPolynomial(group, degree, nil)
		bigF := polynomial.NewExponent(f)

		com, opener, err := commitment.Commit(baseTranscript, flattenPoints(bigF)...)
		if err != nil {
			return nil, fail(protocol.InvariantViolated, "keygen: committing to round 1 polynomial: %w", err)
		}
		ctx.Shared().SendMany([]byte(com))

		coms := map[party.ID]commitment.Com{me: com}
		for i := 0; i < len(peers)-1; i++ {
			from, data := ctx.Shared().Recv()
			coms[from] = commitment.Com(data)
		}

		// Round 2: confirm every commitment was seen, then prove knowledge
		// of the polynomial's constant term and reveal it, together with
		// a private evaluation for every peer.
		confirmHash := hash.New()
		for _, id := range peers {
			if err := confirmHash.WriteAny([]byte(coms[id])); err != nil {
				return nil, fail(protocol.InvariantViolated, "keygen: hashing commitments: %w", err)
			}
		}
		confirm := confirmHash.ReadBytes(nil)
		confirmedTranscript := baseTranscript.Fork(hash.BytesWithDomain{TheDomain: "keygen.Confirm", Bytes: confirm})

		ctx.Shared().SendMany(confirm)

		confirms := map[party.ID][]byte{me: confirm}
		for i := 0; i < len(peers)-1; i++ {
			from, data := ctx.Shared().Recv()
			confirms[from] = data
		}
		for id, c := range confirms {
			if !bytes.Equal(c, confirm) {
				return nil, fail(protocol.ConsistencyFailed, "keygen: %s reported a different Confirm value", id)
			}
		}

		proof := maurer.NewProof(confirmedTranscript.Fork(branchDomain("dlog0", me)), bigF.Constant(), f.Constant())

		encodedF, err := encodeExponent(bigF)
		if err != nil {
			return nil, err
		}
		payloadProof, err := marshalProof(proof)
		if err != nil {
			return nil, err
		}
		round2Out := round2BroadcastPayload{
			Confirm: confirm,
			F:       encodedF,
			Opener:  opener,
			Proof:   payloadProof,
		}
		round2Bytes, err := encode(round2Out)
		if err != nil {
			return nil, err
		}
		ctx.Shared().SendMany(round2Bytes)

		for _, p := range peers {
			if p == me {
				continue
			}
			share := round2PrivatePayload{X: marshalScalar(f.Evaluate(p.Scalar(group)))}
			shareBytes, err := encode(share)
			if err != nil {
				return nil, err
			}
			ctx.Private(p).Send(shareBytes)
		}

		// Round 3: collect and verify every peer's polynomial, sum them
		// into the combined public key, collect private shares, and
		// finish.
		exponents := make([]*polynomial.Exponent, 0, len(peers))
		exponents = append(exponents, bigF)
		for i := 0; i < len(peers)-1; i++ {
			from, data := ctx.Shared().Recv()
			var payload round2BroadcastPayload
			if err := decode(data, &payload); err != nil {
				return nil, fail(protocol.Malformed, "keygen: decoding %s's round 2 broadcast: %w", from, err)
			}
			if !bytes.Equal(payload.Confirm, confirm) {
				return nil, fail(protocol.ConsistencyFailed, "keygen: %s's round 2 broadcast carries a mismatched Confirm", from)
			}
			theirF, err := decodeExponent(group, payload.F)
			if err != nil {
				return nil, err
			}
			if theirF.Degree() != degree {
				return nil, fail(protocol.Malformed, "keygen: %s published a polynomial of the wrong degree", from)
			}
			if !commitment.CheckCommit(baseTranscript, coms[from], commitment.Opener(payload.Opener), flattenPoints(theirF)...) {
				return nil, fail(protocol.CommitmentFailed, "keygen: %s's round 2 broadcast does not match its round 1 commitment", from)
			}
			theirProof, err := unmarshalProof(group, payload.Proof)
			if err != nil {
				return nil, err
			}
			if !theirProof.Verify(confirmedTranscript.Fork(branchDomain("dlog0", from)), theirF.Constant()) {
				return nil, fail(protocol.ProofFailed, "keygen: %s's dlog0 proof does not verify", from)
			}
			exponents = append(exponents, theirF)
		}

		combined, err := polynomial.SumExponents(group, exponents)
		if err != nil {
			return nil, fail(protocol.InvariantViolated, "keygen: summing polynomials: %w", err)
		}

		xMe := f.Evaluate(me.Scalar(group))
		for _, p := range peers {
			if p == me {
				continue
			}
			data := ctx.Private(p).Recv()
			var share round2PrivatePayload
			if err := decode(data, &share); err != nil {
				return nil, fail(protocol.Malformed, "keygen: decoding %s's share: %w", p, err)
			}
			x, err := unmarshalScalar(group, share.X)
			if err != nil {
				return nil, err
			}
			xMe.Add(x)
		}

		if !combined.Evaluate(me.Scalar(group)).Equal(xMe.ActOnBase()) {
			return nil, fail(protocol.ConsistencyFailed, "keygen: assembled private share does not match the published polynomial")
		}

		return Output{
			PrivateShare: xMe,
			PublicKey:    combined.Constant(),
		}, nil
	}, nil
}
