// Package presign implements presignature generation: the message-independent
// half of a threshold ECDSA signature. Given two Beaver triples and a
// threshold keygen output, every participant derives a share of the nonce
// commitment big_R and a share sigma_i such that, once a message is known,
// summing lambda_i*(k_i*m + sigma_i) across the signing quorum yields a valid
// ECDSA s value. Consuming a presignature more than once leaks the private
// key, so a presignature is meant to be used for exactly one Sign call.
package presign

import (
	"fmt"

	"github.com/cait-sith-go/threshold-ecdsa/internal/engine"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
	"github.com/cait-sith-go/threshold-ecdsa/protocols/keygen"
	"github.com/cait-sith-go/threshold-ecdsa/protocols/triple"
)

func fail(kind protocol.Kind, format string, args ...interface{}) error {
	return protocol.Fail("presign", kind, fmt.Errorf(format, args...))
}

// Output is a single participant's presignature: the jointly-agreed nonce
// commitment, together with this participant's shares of the nonce and of
// the signature's linear term.
type Output struct {
	BigR  curve.Point
	K     curve.Scalar
	Sigma curve.Scalar
}

// Arguments bundles the triples and keygen output a presign run consumes.
// Triple0 supplies the nonce k (its A share) and the k*d cross term used to
// invert it into big_R (its C share, with D as its B share); Triple1 is
// consumed as an additive blinding triple (a, b, c) for the private-key
// term. Both triples, and this run, must share Threshold.
type Arguments struct {
	Triple0   triple.Result
	Triple1   triple.Result
	KeygenOut keygen.Output
	Threshold int
}

// Generate builds the engine.Protocol that runs presignature generation
// among ids, each participant ending up with an Output usable exactly once
// by Sign.
func Generate(group curve.Curve, ids party.IDSlice, args Arguments) (engine.Protocol, error) {
	if len(ids) < 2 {
		return nil, fail(protocol.Malformed, "presign: need at least 2 participants, got %d", len(ids))
	}
	if args.Threshold > len(ids) {
		return nil, fail(protocol.Malformed, "presign: threshold %d exceeds participant count %d", args.Threshold, len(ids))
	}
	if args.Threshold != args.Triple0.Public.Threshold || args.Threshold != args.Triple1.Public.Threshold {
		return nil, fail(protocol.Malformed, "presign: threshold %d does not match the triples' dealt threshold (%d, %d)", args.Threshold, args.Triple0.Public.Threshold, args.Triple1.Public.Threshold)
	}
	peers := ids.Copy()
	for i := 1; i < len(peers); i++ {
		if peers[i-1] == peers[i] {
			return nil, fail(protocol.Malformed, "presign: participant list contains duplicate id %s", peers[i])
		}
	}

	return func(ctx *engine.Context) (interface{}, error) {
		me := ctx.Me()
		if !peers.Contains(me) {
			return nil, fail(protocol.InvariantViolated, "presign: %s is not a member of the participant set", me)
		}

		bigK := args.Triple0.Public.A
		bigD := args.Triple0.Public.B
		bigKD := args.Triple0.Public.C

		bigX := args.KeygenOut.PublicKey

		bigA := args.Triple1.Public.A
		bigB := args.Triple1.Public.B

		lambda := peers.Lagrange(group, me)

		kI := args.Triple0.Shares.A
		kdI := group.NewScalar().Set(lambda)
		kdI.Mul(args.Triple0.Shares.C)
		kPrimeI := group.NewScalar().Set(lambda)
		kPrimeI.Mul(kI)

		aI := args.Triple1.Shares.A
		bI := args.Triple1.Shares.B
		cI := args.Triple1.Shares.C
		aPrimeI := group.NewScalar().Set(lambda)
		aPrimeI.Mul(aI)
		bPrimeI := group.NewScalar().Set(lambda)
		bPrimeI.Mul(bI)

		xPrimeI := group.NewScalar().Set(lambda)
		xPrimeI.Mul(args.KeygenOut.PrivateShare)

		// Round 1: broadcast this party's share of k*d on one subchannel,
		// and its shares of k+a and x+b on another, so the two broadcasts
		// (and their later, independent collection loops) never contend
		// for the same waitpoint.
		wait0 := ctx.Shared().Child(0)
		wait1 := ctx.Shared().Child(1)

		wait0.SendMany(marshalScalar(kdI))

		kaI := group.NewScalar().Set(kPrimeI)
		kaI.Add(aPrimeI)
		xbI := group.NewScalar().Set(xPrimeI)
		xbI.Add(bPrimeI)

		wait1.SendMany(encode(round1Wait1Payload{Ka: marshalScalar(kaI), Xb: marshalScalar(xbI)}))

		kd := group.NewScalar().Set(kdI)
		for i := 0; i < len(peers)-1; i++ {
			_, data := wait0.Recv()
			kdJ, err := unmarshalScalar(group, data)
			if err != nil {
				return nil, fail(protocol.Malformed, "presign: decoding kd share: %w", err)
			}
			kd.Add(kdJ)
		}
		if !bigKD.Equal(kd.ActOnBase()) {
			return nil, fail(protocol.ConsistencyFailed, "presign: received incorrect shares of kd")
		}

		ka := group.NewScalar().Set(kaI)
		xb := group.NewScalar().Set(xbI)
		for i := 0; i < len(peers)-1; i++ {
			_, data := wait1.Recv()
			var payload round1Wait1Payload
			if err := decode(data, &payload); err != nil {
				return nil, fail(protocol.Malformed, "presign: decoding round 1 broadcast: %w", err)
			}
			kaJ, err := unmarshalScalar(group, payload.Ka)
			if err != nil {
				return nil, err
			}
			xbJ, err := unmarshalScalar(group, payload.Xb)
			if err != nil {
				return nil, err
			}
			ka.Add(kaJ)
			xb.Add(xbJ)
		}

		bigKPlusA := group.NewPoint()
		bigKPlusA.Add(bigK)
		bigKPlusA.Add(bigA)
		if !ka.ActOnBase().Equal(bigKPlusA) {
			return nil, fail(protocol.ConsistencyFailed, "presign: received incorrect shares of the k+a additive triple phase")
		}
		bigXPlusB := group.NewPoint()
		bigXPlusB.Add(bigX)
		bigXPlusB.Add(bigB)
		if !xb.ActOnBase().Equal(bigXPlusB) {
			return nil, fail(protocol.ConsistencyFailed, "presign: received incorrect shares of the x+b additive triple phase")
		}

		kdInv := group.NewScalar().Set(kd)
		kdInv.Invert()
		bigR := kdInv.Act(bigD)
		r := bigR.XScalar()

		// This party's share of k*x, via the same Beaver-triple additive
		// conversion used above for k+a and x+b: ka and xb are the full
		// reconstructed k+a and x+b, so summing this expression across the
		// quorum with each party's own lambda-weighted share telescopes to
		// exactly k*x (see the package tests for the full derivation). The
		// signature equation needs r*k*x, not k*x alone, so that factor is
		// folded in here, once, while r is available.
		sigmaI := group.NewScalar().Set(ka)
		sigmaI.Mul(args.KeygenOut.PrivateShare)
		xbA := group.NewScalar().Set(xb)
		xbA.Mul(aI)
		sigmaI.Sub(xbA)
		sigmaI.Add(cI)
		sigmaI.Mul(r)

		return Output{BigR: bigR, K: kI, Sigma: sigmaI}, nil
	}, nil
}
