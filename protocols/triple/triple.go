package triple

import (
	"bytes"
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

// fail builds a *protocol.Error under the "triple" component, the way
// every failure path below reports what went wrong: a Kind a caller can
// switch on, plus the formatted detail a human reading logs wants.
func fail(kind protocol.Kind, format string, args ...interface{}) error {
	return protocol.Fail("triple", kind, fmt.Errorf(format, args...))
}

// failWrap reports err under kind unless err already carries its own
// protocol.Kind (from a sub-protocol such as Multiplication), in which
// case that Kind is preserved rather than overwritten.
func failWrap(kind protocol.Kind, context string, err error) error {
	if _, ok := protocol.FailKind(err); ok {
		return err
	}
	return protocol.Fail("triple", kind, fmt.Errorf("%s: %w", context, err))
}

// Shares is a single participant's threshold-t share of a Beaver triple.
type Shares struct {
	A, B, C curve.Scalar
}

// Public is the triple's public commitment, checkable against Shares by
// anyone holding only the published points, together with the threshold
// the shares were dealt at: a consumer combining shares from several
// triples needs to know they all agree on the quorum size.
type Public struct {
	A, B, C   curve.Point
	Threshold int
}

// Result is Triple Generation's output: this participant's shares,
// together with the triple's public commitment.
type Result struct {
	Shares Shares
	Public Public
}

func branchDomain(name string, id party.ID) hash.BytesWithDomain {
	return hash.BytesWithDomain{TheDomain: name, Bytes: id.Bytes()}
}

func flattenPoints(exponents ...*polynomial.Exponent) []interface{} {
	out := make([]interface{}, 0)
	for _, e := range exponents {
		for _, p := range e.Coefficients() {
			out = append(out, p)
		}
	}
	return out
}

// GenerateTriple builds the engine.Protocol that runs Triple Generation
// among ids, producing a threshold-t Beaver triple. setups must carry a
// PairSetup for every other participant in ids: whichever half (Send
// against a higher ID, Receive against a lower one) this run's
// Multiplication step will need.
func GenerateTriple(group curve.Curve, ids party.IDSlice, threshold int, setups map[party.ID]*PairSetup) engine.Protocol {
	peers := ids.Copy()
	degree := threshold - 1

	return func(ctx *engine.Context) (interface{}, error) {
		me := ctx.Me()
		if !peers.Contains(me) {
			return nil, fail(protocol.InvariantViolated, "%s is not a member of the participant set", me)
		}

		baseTranscript := hash.New().Fork(peers)

		// Round 1: sample e, f, l; publish committed point-polynomials.
		e := polynomial.NewPolynomial(group, degree, nil)
		f := polynomial.NewPolynomial(group, degree, nil)
		l := polynomial.NewPolynomial(group, degree, group.NewScalar())

		eE := polynomial.NewExponent(e)
		eF := polynomial.NewExponent(f)
		eL := polynomial.NewExponent(l)

		com, opener, err := commitment.Commit(baseTranscript, flattenPoints(eE, eF, eL)...)
		if err != nil {
			return nil, fail(protocol.InvariantViolated, "committing to round 1 polynomials: %w", err)
		}

		ctx.Shared().SendMany([]byte(com))

		coms := map[party.ID]commitment.Com{me: com}
		for i := 0; i < len(peers)-1; i++ {
			from, data := ctx.Shared().Recv()
			coms[from] = commitment.Com(data)
		}

		// Round 2: confirm every commitment was seen, fork the multiplication
		// sub-protocol off in the background, prove the two published
		// constant terms, and share this party's polynomials with everyone.
		confirmHash := hash.New()
		for _, id := range peers {
			if err := confirmHash.WriteAny([]byte(coms[id])); err != nil {
				return nil, fail(protocol.InvariantViolated, "hashing commitments: %w", err)
			}
		}
		confirm := confirmHash.ReadBytes(nil)
		confirmedTranscript := baseTranscript.Fork(hash.BytesWithDomain{TheDomain: "triple.Confirm", Bytes: confirm})

		joinMultiply := ctx.Spawn(func(childCtx *engine.Context) (interface{}, error) {
			multiplyHash := confirmedTranscript.Fork(hash.BytesWithDomain{TheDomain: "triple.Multiply session"})
			return multiply(childCtx, multiplyHash, setups, me, peers, e.Constant(), f.Constant())
		})

		ctx.Shared().SendMany(confirm)

		confirms := map[party.ID][]byte{me: confirm}
		for i := 0; i < len(peers)-1; i++ {
			from, data := ctx.Shared().Recv()
			confirms[from] = data
		}
		for id, c := range confirms {
			if !bytes.Equal(c, confirm) {
				return nil, fail(protocol.ConsistencyFailed, "%s reported a different Confirm value", id)
			}
		}

		pi0 := maurer.NewProof(confirmedTranscript.Fork(branchDomain("dlog0", me)), eE.Constant(), e.Constant())
		pi1 := maurer.NewProof(confirmedTranscript.Fork(branchDomain("dlog1", me)), eF.Constant(), f.Constant())

		encodedE, err := encodeExponent(eE)
		if err != nil {
			return nil, err
		}
		encodedF, err := encodeExponent(eF)
		if err != nil {
			return nil, err
		}
		encodedL, err := encodeExponent(eL)
		if err != nil {
			return nil, err
		}
		payloadPi0, err := marshalProof(pi0)
		if err != nil {
			return nil, err
		}
		payloadPi1, err := marshalProof(pi1)
		if err != nil {
			return nil, err
		}
		round2Out := round2BroadcastPayload{
			Confirm: confirm,
			E:       encodedE,
			F:       encodedF,
			L:       encodedL,
			Opener:  opener,
			Pi0:     payloadPi0,
			Pi1:     payloadPi1,
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
			share := round2PrivatePayload{
				A: marshalScalar(e.Evaluate(p.Scalar(group))),
				B: marshalScalar(f.Evaluate(p.Scalar(group))),
			}
			shareBytes, err := encode(share)
			if err != nil {
				return nil, err
			}
			ctx.Private(p).Child(0).Send(shareBytes)
		}

		// Round 3: collect and verify every peer's round 2 contribution,
		// reconstruct the aggregate point-polynomials, and publish this
		// party's share of the product's constant term.
		type peerRound2 struct {
			E, F, L *polynomial.Exponent
		}
		round2s := map[party.ID]peerRound2{me: {E: eE, F: eF, L: eL}}
		for i := 0; i < len(peers)-1; i++ {
			from, data := ctx.Shared().Recv()
			var payload round2BroadcastPayload
			if err := decode(data, &payload); err != nil {
				return nil, fail(protocol.Malformed, "decoding %s's round 2 broadcast: %w", from, err)
			}
			if !bytes.Equal(payload.Confirm, confirm) {
				return nil, fail(protocol.ConsistencyFailed, "%s's round 2 broadcast carries a mismatched Confirm", from)
			}
			peerE, err := decodeExponent(group, payload.E)
			if err != nil {
				return nil, err
			}
			peerF, err := decodeExponent(group, payload.F)
			if err != nil {
				return nil, err
			}
			peerL, err := decodeExponent(group, payload.L)
			if err != nil {
				return nil, err
			}
			if peerE.Degree() != degree || peerF.Degree() != degree || peerL.Degree() != degree {
				return nil, fail(protocol.Malformed, "%s published a polynomial of the wrong degree", from)
			}
			if !peerL.Constant().IsIdentity() {
				return nil, fail(protocol.Malformed, "%s's correction polynomial has a nonzero constant term", from)
			}
			if !commitment.CheckCommit(baseTranscript, coms[from], commitment.Opener(payload.Opener), flattenPoints(peerE, peerF, peerL)...) {
				return nil, fail(protocol.CommitmentFailed, "%s's round 2 broadcast does not match its round 1 commitment", from)
			}
			peerPi0, err := unmarshalProof(group, payload.Pi0)
			if err != nil {
				return nil, err
			}
			peerPi1, err := unmarshalProof(group, payload.Pi1)
			if err != nil {
				return nil, err
			}
			if !peerPi0.Verify(confirmedTranscript.Fork(branchDomain("dlog0", from)), peerE.Constant()) {
				return nil, fail(protocol.ProofFailed, "%s's dlog0 proof does not verify", from)
			}
			if !peerPi1.Verify(confirmedTranscript.Fork(branchDomain("dlog1", from)), peerF.Constant()) {
				return nil, fail(protocol.ProofFailed, "%s's dlog1 proof does not verify", from)
			}
			round2s[from] = peerRound2{E: peerE, F: peerF, L: peerL}
		}

		aShares := map[party.ID]curve.Scalar{me: e.Evaluate(me.Scalar(group))}
		bShares := map[party.ID]curve.Scalar{me: f.Evaluate(me.Scalar(group))}
		for _, p := range peers {
			if p == me {
				continue
			}
			data := ctx.Private(p).Child(0).Recv()
			var share round2PrivatePayload
			if err := decode(data, &share); err != nil {
				return nil, fail(protocol.Malformed, "decoding %s's share: %w", p, err)
			}
			a, err := unmarshalScalar(group, share.A)
			if err != nil {
				return nil, err
			}
			b, err := unmarshalScalar(group, share.B)
			if err != nil {
				return nil, err
			}
			aShares[p] = a
			bShares[p] = b
		}

		aMe := group.NewScalar()
		bMe := group.NewScalar()
		for _, p := range peers {
			aMe.Add(aShares[p])
			bMe.Add(bShares[p])
		}

		allE := make([]*polynomial.Exponent, 0, len(peers))
		allF := make([]*polynomial.Exponent, 0, len(peers))
		allL := make([]*polynomial.Exponent, 0, len(peers))
		for _, p := range peers {
			allE = append(allE, round2s[p].E)
			allF = append(allF, round2s[p].F)
			allL = append(allL, round2s[p].L)
		}
		sumE, err := polynomial.SumExponents(group, allE)
		if err != nil {
			return nil, fail(protocol.InvariantViolated, "summing E: %w", err)
		}
		sumF, err := polynomial.SumExponents(group, allF)
		if err != nil {
			return nil, fail(protocol.InvariantViolated, "summing F: %w", err)
		}

		if !sumE.Evaluate(me.Scalar(group)).Equal(aMe.ActOnBase()) {
			return nil, fail(protocol.ConsistencyFailed, "assembled a_i does not match the published polynomial E")
		}
		if !sumF.Evaluate(me.Scalar(group)).Equal(bMe.ActOnBase()) {
			return nil, fail(protocol.ConsistencyFailed, "assembled b_i does not match the published polynomial F")
		}

		Ci := e.Constant().Act(sumF.Constant())
		piRound3 := maurer.NewEqualityProof(confirmedTranscript.Fork(branchDomain("dlogeq0", me)), sumF.Constant(), eE.Constant(), Ci, e.Constant())

		CiBytes, err := Ci.MarshalBinary()
		if err != nil {
			return nil, err
		}
		eqPayload, err := marshalEqProof(piRound3)
		if err != nil {
			return nil, err
		}
		round3Out := round3Payload{C: CiBytes, Pi: eqPayload}
		round3Bytes, err := encode(round3Out)
		if err != nil {
			return nil, err
		}
		ctx.Shared().SendMany(round3Bytes)

		// Round 4: collect everyone's C_j, verify, assemble C, wait for the
		// background multiplication to finish, and publish this party's
		// contribution to the correction polynomial's constant term.
		type peerRound3 struct {
			C curve.Point
		}
		round3s := map[party.ID]peerRound3{me: {C: Ci}}
		for i := 0; i < len(peers)-1; i++ {
			from, data := ctx.Shared().Recv()
			var payload round3Payload
			if err := decode(data, &payload); err != nil {
				return nil, fail(protocol.Malformed, "decoding %s's round 3 broadcast: %w", from, err)
			}
			Cj := group.NewPoint()
			if err := Cj.UnmarshalBinary(payload.C); err != nil {
				return nil, fail(protocol.Malformed, "decoding %s's C: %w", from, err)
			}
			piJ, err := unmarshalEqProof(group, payload.Pi)
			if err != nil {
				return nil, err
			}
			if !piJ.Verify(confirmedTranscript.Fork(branchDomain("dlogeq0", from)), sumF.Constant(), round2s[from].E.Constant(), Cj) {
				return nil, fail(protocol.ProofFailed, "%s's equality proof does not verify", from)
			}
			round3s[from] = peerRound3{C: Cj}
		}
		C := group.NewPoint()
		for _, p := range peers {
			C.Add(round3s[p].C)
		}

		multResult, err := joinMultiply()
		if err != nil {
			return nil, failWrap(protocol.InvariantViolated, "multiplication sub-protocol failed", err)
		}
		l0 := multResult.(curve.Scalar)

		CHat := l0.ActOnBase()
		piRound4 := maurer.NewProof(confirmedTranscript.Fork(branchDomain("dlog2", me)), CHat, l0)

		CHatBytes, err := CHat.MarshalBinary()
		if err != nil {
			return nil, err
		}
		payloadPiRound4, err := marshalProof(piRound4)
		if err != nil {
			return nil, err
		}
		round4Out := round4BroadcastPayload{CHat: CHatBytes, Pi: payloadPiRound4}
		round4Bytes, err := encode(round4Out)
		if err != nil {
			return nil, err
		}
		ctx.Shared().SendMany(round4Bytes)

		for _, p := range peers {
			if p == me {
				continue
			}
			cShare := l0.Curve().NewScalar().Set(l0)
			cShare.Add(l.Evaluate(p.Scalar(group)))
			payload := round4PrivatePayload{C: marshalScalar(cShare)}
			payloadBytes, err := encode(payload)
			if err != nil {
				return nil, err
			}
			ctx.Private(p).Child(1).Send(payloadBytes)
		}

		// Round 5: collect everyone's Ĉ_j, assemble the correction
		// polynomial in the exponent, collect c shares, and finish.
		type peerRound4 struct {
			CHat curve.Point
		}
		round4s := map[party.ID]peerRound4{me: {CHat: CHat}}
		for i := 0; i < len(peers)-1; i++ {
			from, data := ctx.Shared().Recv()
			var payload round4BroadcastPayload
			if err := decode(data, &payload); err != nil {
				return nil, fail(protocol.Malformed, "decoding %s's round 4 broadcast: %w", from, err)
			}
			CHatJ := group.NewPoint()
			if err := CHatJ.UnmarshalBinary(payload.CHat); err != nil {
				return nil, fail(protocol.Malformed, "decoding %s's CHat: %w", from, err)
			}
			piJ, err := unmarshalProof(group, payload.Pi)
			if err != nil {
				return nil, err
			}
			if !piJ.Verify(confirmedTranscript.Fork(branchDomain("dlog2", from)), CHatJ) {
				return nil, fail(protocol.ProofFailed, "%s's dlog2 proof does not verify", from)
			}
			round4s[from] = peerRound4{CHat: CHatJ}
		}

		CHatSum := group.NewPoint()
		for _, p := range peers {
			CHatSum.Add(round4s[p].CHat)
		}
		L, err := polynomial.SumExponents(group, allL)
		if err != nil {
			return nil, fail(protocol.InvariantViolated, "summing L: %w", err)
		}
		L.Coefficients()[0].Add(CHatSum)

		if !C.Equal(L.Constant()) {
			return nil, fail(protocol.ConsistencyFailed, "assembled C does not match the correction polynomial's constant term")
		}

		cShares := map[party.ID]curve.Scalar{me: group.NewScalar().Set(l0).Add(l.Evaluate(me.Scalar(group)))}
		for _, p := range peers {
			if p == me {
				continue
			}
			data := ctx.Private(p).Child(1).Recv()
			var payload round4PrivatePayload
			if err := decode(data, &payload); err != nil {
				return nil, fail(protocol.Malformed, "decoding %s's c share: %w", p, err)
			}
			c, err := unmarshalScalar(group, payload.C)
			if err != nil {
				return nil, err
			}
			cShares[p] = c
		}

		cMe := group.NewScalar()
		for _, p := range peers {
			cMe.Add(cShares[p])
		}

		if !L.Evaluate(me.Scalar(group)).Equal(cMe.ActOnBase()) {
			return nil, fail(protocol.ConsistencyFailed, "assembled c_i does not match the correction polynomial L")
		}

		return Result{
			Shares: Shares{A: aMe, B: bMe, C: cMe},
			Public: Public{A: sumE.Constant(), B: sumF.Constant(), C: C, Threshold: threshold},
		}, nil
	}
}
