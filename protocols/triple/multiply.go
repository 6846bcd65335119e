package triple

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cait-sith-go/threshold-ecdsa/internal/engine"
	"github.com/cait-sith-go/threshold-ecdsa/internal/ot"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/hash"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
)

// pairDomain forks ctxHash into a branch specific to the unordered pair
// {me, peer}, identified by the pair's sorted IDs so both participants
// fork to the identical transcript regardless of which of them is "me".
func pairDomain(ctxHash *hash.Hash, me, peer party.ID) *hash.Hash {
	low, high := me, peer
	if peer < me {
		low, high = peer, me
	}
	return ctxHash.Fork(hash.BytesWithDomain{
		TheDomain: "triple.Multiply pair",
		Bytes:     append(low.Bytes(), high.Bytes()...),
	})
}

// multiplyPair runs the two Gilboa MtA conversions Triple Generation's
// Multiplication step needs against a single peer — one for a_me against
// the peer's b, one for b_me against the peer's a — on top of a single
// Random OT Extension batch of size 2κ shared by both, per spec.md §4.7:
// the first κ rows back the a_me/b_peer conversion, the last κ back
// b_me/a_peer. It returns this party's additive share of each product:
// gamma0 of a_me·b_peer, gamma1 of b_me·a_peer.
//
// The participant with the lower ID always plays the Δ-holder side of the
// shared extension (ot.ExtendedOTSend), since that is the role its half
// of the pair's Triple Setup (setup.Send) was built for; the higher ID
// always plays ot.ExtendedOTReceive. Both sides derive this from
// comparing IDs alone, so no negotiation message is needed.
func multiplyPair(ctx *engine.Context, ctxHash *hash.Hash, setup *PairSetup, me, peer party.ID, a, b curve.Scalar) (gamma0, gamma1 curve.Scalar, err error) {
	ch := ctx.Private(peer)
	pairHash := pairDomain(ctxHash, me, peer)
	kappa := ot.MtABatchSize(a.Curve())

	if me < peer {
		if setup.Send == nil {
			return nil, nil, fail(protocol.InvariantViolated, "multiply against %s: missing Send setup", peer)
		}
		return deltaSide(ch, pairHash, setup.Send, kappa, a, b)
	}

	if setup.Receive == nil {
		return nil, nil, fail(protocol.InvariantViolated, "multiply against %s: missing Receive setup", peer)
	}
	// Call 0 pairs the low ID's alpha=a_low with this party's beta=b_me,
	// producing a share of a_peer·b_me: the b_me·a_peer form, gamma1.
	// Call 1 pairs the low ID's alpha=b_low with this party's beta=a_me,
	// producing a share of b_peer·a_me: the a_me·b_peer form, gamma0.
	gamma1, gamma0, err = nonDeltaSide(ch, pairHash, setup.Receive, kappa, b, a)
	if err != nil {
		return nil, nil, failWrap(protocol.InvariantViolated, fmt.Sprintf("multiply against %s", peer), err)
	}
	return gamma0, gamma1, nil
}

// deltaSide runs the Δ-holder's half of multiplyPair: it waits for the
// peer's single Random OT Extension request, answers it once for the
// whole 2κ batch, then speaks first on each of the two MtA sub-channels
// with its half of the split batch.
func deltaSide(ch engine.PrivateChannel, pairHash *hash.Hash, setup *ot.CorreOTSendSetup, kappa int, a, b curve.Scalar) (gamma0, gamma1 curve.Scalar, err error) {
	otMsg := new(ot.ExtendedOTReceiveMessage)
	if err := otMsg.UnmarshalBinary(ch.Recv()); err != nil {
		return nil, nil, fail(protocol.Malformed, "decoding peer's random OT extension message: %w", err)
	}

	sendResult, err := ot.ExtendedOTSend(pairHash, setup, 2*kappa, otMsg)
	if err != nil {
		return nil, nil, err
	}

	sender0 := ot.NewMtASender(sendResult.Slice(0, kappa), a)
	sender1 := ot.NewMtASender(sendResult.Slice(kappa, 2*kappa), b)

	gamma0, err = mtaSenderCall(ch.Child(0), sender0)
	if err != nil {
		return nil, nil, failWrap(protocol.InvariantViolated, "multiply call 0", err)
	}
	gamma1, err = mtaSenderCall(ch.Child(1), sender1)
	if err != nil {
		return nil, nil, failWrap(protocol.InvariantViolated, "multiply call 1", err)
	}
	return gamma0, gamma1, nil
}

// mtaSenderCall drives one MtASender to completion over a private
// sub-channel: send the opening (C0,C1) message, then read back the
// receiver's (seed, χ_1) reply.
func mtaSenderCall(ch engine.PrivateChannel, sender *ot.MtASender) (curve.Scalar, error) {
	payload, err := ot.EncodeMtASendRound1(sender.Round1())
	if err != nil {
		return nil, fail(protocol.InvariantViolated, "encoding round 1 message: %w", err)
	}
	ch.Send(payload)

	replyMsg, err := ot.DecodeMtAReceiveRound1(sender.Curve(), ch.Recv())
	if err != nil {
		return nil, fail(protocol.Malformed, "decoding peer's round 1 response: %w", err)
	}
	return sender.Round2(replyMsg)
}

// nonDeltaSide runs the non-Δ-holder's half of multiplyPair: it samples a
// single 2κ-bit choice string, runs the shared Random OT Extension
// request once, then answers each of the two MtA sub-channels with the
// matching half of the split batch. It takes betaFirst/betaSecond in the
// same order the Δ-holder used for its two calls, so the returned shares
// (shareFirst, shareSecond) line up with the caller's gamma1/gamma0
// slots.
func nonDeltaSide(ch engine.PrivateChannel, pairHash *hash.Hash, setup *ot.CorreOTReceiveSetup, kappa int, betaFirst, betaSecond curve.Scalar) (shareFirst, shareSecond curve.Scalar, err error) {
	choices := make([]byte, (2*kappa+7)/8)
	if _, err := rand.Read(choices); err != nil {
		return nil, nil, err
	}

	otMsg, otResult, err := ot.ExtendedOTReceive(pairHash, setup, choices)
	if err != nil {
		return nil, nil, err
	}
	payload, err := otMsg.MarshalBinary()
	if err != nil {
		return nil, nil, fail(protocol.InvariantViolated, "encoding random OT extension message: %w", err)
	}
	ch.Send(payload)

	receiver0 := ot.NewMtAReceiver(otResult.Slice(0, kappa), choices, betaFirst)
	choices1 := ot.SliceBits(choices, kappa, kappa)
	receiver1 := ot.NewMtAReceiver(otResult.Slice(kappa, 2*kappa), choices1, betaSecond)

	shareFirst, err = mtaReceiverCall(ch.Child(0), receiver0)
	if err != nil {
		return nil, nil, failWrap(protocol.InvariantViolated, "multiply call 0", err)
	}
	shareSecond, err = mtaReceiverCall(ch.Child(1), receiver1)
	if err != nil {
		return nil, nil, failWrap(protocol.InvariantViolated, "multiply call 1", err)
	}
	return shareFirst, shareSecond, nil
}

// mtaReceiverCall drives one MtAReceiver to completion over a private
// sub-channel: read the sender's opening message, then answer it.
func mtaReceiverCall(ch engine.PrivateChannel, receiver *ot.MtAReceiver) (curve.Scalar, error) {
	senderMsg, err := ot.DecodeMtASendRound1(receiver.Curve(), ch.Recv())
	if err != nil {
		return nil, fail(protocol.Malformed, "decoding peer's round 1 message: %w", err)
	}

	replyMsg, share, err := receiver.Round1(senderMsg)
	if err != nil {
		return nil, err
	}

	payload, err := ot.EncodeMtAReceiveRound1(replyMsg)
	if err != nil {
		return nil, fail(protocol.InvariantViolated, "encoding round 1 response: %w", err)
	}
	ch.Send(payload)

	return share, nil
}

// multiply runs Multiplication against every other participant in peers
// and folds the results into c = a·b + Σ_peer (gamma0_peer + gamma1_peer),
// this party's additive share of the product of the two Shamir-shared
// secrets a and b.
func multiply(ctx *engine.Context, ctxHash *hash.Hash, setups map[party.ID]*PairSetup, me party.ID, peers party.IDSlice, a, b curve.Scalar) (curve.Scalar, error) {
	group := a.Curve()
	c := group.NewScalar()
	mul := group.NewScalar()
	c.Add(mul.Set(a).Mul(b))

	joins := make([]func() (interface{}, error), 0, len(peers))
	for _, peer := range peers {
		if peer == me {
			continue
		}
		peer := peer
		setup, ok := setups[peer]
		if !ok {
			return nil, fail(protocol.InvariantViolated, "no pair setup against peer %s", peer)
		}
		joinFn := ctx.Spawn(func(childCtx *engine.Context) (interface{}, error) {
			gamma0, gamma1, err := multiplyPair(childCtx, ctxHash, setup, me, peer, a, b)
			if err != nil {
				return nil, err
			}
			return [2]curve.Scalar{gamma0, gamma1}, nil
		})
		joins = append(joins, joinFn)
	}

	// Spawn already ran every pair concurrently, so the joins only collect
	// results. The group runs one join at a time: a waiting join stands in
	// for this goroutine in the engine's parked count, and two waiting at
	// once would count it twice.
	results := make([][2]curve.Scalar, len(joins))
	var eg errgroup.Group
	eg.SetLimit(1)
	for i, join := range joins {
		i, join := i, join
		eg.Go(func() error {
			value, err := join()
			if err != nil {
				return err
			}
			results[i] = value.([2]curve.Scalar)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, gammas := range results {
		c.Add(gammas[0])
		c.Add(gammas[1])
	}

	return c, nil
}
