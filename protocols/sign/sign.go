// Package sign implements the message-dependent final step of threshold
// ECDSA signing: given a presignature (never to be reused) and a message
// hash, every participant contributes a share of the signature's s value,
// and the sum is verified against the public key before being returned.
package sign

import (
	"fmt"

	"github.com/cait-sith-go/threshold-ecdsa/internal/engine"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
	"github.com/cait-sith-go/threshold-ecdsa/protocols/presign"
)

func fail(kind protocol.Kind, format string, args ...interface{}) error {
	return protocol.Fail("sign", kind, fmt.Errorf(format, args...))
}

// Signature is a completed ECDSA signature, together with the full nonce
// point it was derived from (so callers needing the uncompressed r, such
// as a variant that recovers the signer's point, don't have to re-derive
// it from r alone).
type Signature struct {
	BigR curve.Point
	R    curve.Scalar
	S    curve.Scalar
}

// Generate builds the engine.Protocol that runs signing among ids, given a
// message hash already reduced into the scalar field (see curve.FromHash)
// and a presignature this run consumes exactly once.
func Generate(group curve.Curve, ids party.IDSlice, publicKey curve.Point, presig presign.Output, messageHash curve.Scalar) (engine.Protocol, error) {
	if len(ids) < 2 {
		return nil, fail(protocol.Malformed, "sign: need at least 2 participants, got %d", len(ids))
	}
	if publicKey.IsIdentity() {
		return nil, fail(protocol.Malformed, "sign: public key cannot be the identity point")
	}
	peers := ids.Copy()
	for i := 1; i < len(peers); i++ {
		if peers[i-1] == peers[i] {
			return nil, fail(protocol.Malformed, "sign: participant list contains duplicate id %s", peers[i])
		}
	}

	return func(ctx *engine.Context) (interface{}, error) {
		me := ctx.Me()
		if !peers.Contains(me) {
			return nil, fail(protocol.InvariantViolated, "sign: %s is not a member of the participant set", me)
		}

		lambda := peers.Lagrange(group, me)

		kI := group.NewScalar().Set(lambda)
		kI.Mul(presig.K)

		sigmaI := group.NewScalar().Set(lambda)
		sigmaI.Mul(presig.Sigma)

		sI := group.NewScalar().Set(messageHash)
		sI.Mul(kI)
		sI.Add(sigmaI)

		ctx.Shared().SendMany(marshalScalar(sI))

		s := group.NewScalar().Set(sI)
		for i := 0; i < len(peers)-1; i++ {
			_, data := ctx.Shared().Recv()
			sJ, err := unmarshalScalar(group, data)
			if err != nil {
				return nil, fail(protocol.Malformed, "sign: decoding s share: %w", err)
			}
			s.Add(sJ)
		}

		r := presig.BigR.XScalar()

		// s = k*(m+r*x), and big_r = k_total^-1*G, so s*big_r == m*G + r*Q
		// is the check that doesn't require inverting s to recover k.
		lhs := s.Act(presig.BigR)
		rhs := messageHash.ActOnBase()
		rhs.Add(r.Act(publicKey))
		if !lhs.Equal(rhs) {
			return nil, fail(protocol.ConsistencyFailed, "sign: assembled signature failed to verify")
		}

		return Signature{BigR: presig.BigR, R: r, S: s}, nil
	}, nil
}
