package triple

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cait-sith-go/threshold-ecdsa/internal/engine"
	"github.com/cait-sith-go/threshold-ecdsa/internal/ot"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/hash"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/pool"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
)

// round2BroadcastWaitpoint is the waitpoint of the round 2 (E, F, L)
// broadcast on the root shared channel: every party's com (wp 0) and
// Confirm (wp 1) precede it, in that order, before GenerateTriple ever calls
// SendMany a third time.
const round2BroadcastWaitpoint = engine.Waitpoint(2)

var testGroup curve.Curve = curve.Secp256k1{}

// buildPairSetup runs a Triple Setup handshake between a lower-ID sender
// and a higher-ID receiver against a shared transcript, returning the
// long-lived state each side keeps.
func buildPairSetup(t *testing.T, pl *pool.Pool) (*ot.CorreOTSendSetup, *ot.CorreOTReceiveSetup) {
	t.Helper()
	ctxHash := hash.New()
	sender := ot.NewCorreOTSetupSender(pl, ctxHash.Clone())
	receiver := ot.NewCorreOTSetupReceiver(pl, ctxHash.Clone(), testGroup)

	msgR1 := receiver.Round1()
	msgS1, err := sender.Round1(msgR1)
	require.NoError(t, err)
	msgR2, err := receiver.Round2(msgS1)
	require.NoError(t, err)
	msgS2 := sender.Round2(msgR2)
	msgR3, receiveSetup, err := receiver.Round3(msgS2)
	require.NoError(t, err)
	sendSetup, err := sender.Round3(msgR3)
	require.NoError(t, err)
	return sendSetup, receiveSetup
}

// driveToCompletion round-robins Step across every engine, feeding
// SendMany/SendOne straight to the addressed peers' Deliver, until every
// one of them has produced a terminal action. A naive single-engine drive
// would deadlock the moment it needed a message from a peer that hasn't
// had a turn yet.
func driveToCompletion(t *testing.T, ids party.IDSlice, engines map[party.ID]*engine.Engine) map[party.ID]engine.Action {
	t.Helper()
	done := map[party.ID]engine.Action{}
	for len(done) < len(ids) {
		progressed := false
		for _, id := range ids {
			if _, ok := done[id]; ok {
				continue
			}
			e := engines[id]
			for {
				a := e.Step()
				switch a.Kind {
				case engine.KindSendMany:
					progressed = true
					raw := append(a.Header.Bytes(), a.Payload...)
					for _, other := range ids {
						if other == id {
							continue
						}
						require.NoError(t, engines[other].Deliver(id, raw))
					}
				case engine.KindSendOne:
					progressed = true
					raw := append(a.Header.Bytes(), a.Payload...)
					require.NoError(t, engines[a.To].Deliver(id, raw))
				case engine.KindWaitMore:
					goto next
				default:
					done[id] = a
					goto next
				}
			}
		next:
		}
		if !progressed && len(done) < len(ids) {
			t.Fatal("driveToCompletion: every engine is waiting and none can make progress")
		}
	}
	return done
}

// buildAllPairSetups runs a Triple Setup handshake between every unordered
// pair of ids, returning each party's view of every other party's
// PairSetup half (Send against a higher ID, Receive against a lower one).
func buildAllPairSetups(t *testing.T, pl *pool.Pool, ids party.IDSlice) map[party.ID]map[party.ID]*PairSetup {
	t.Helper()
	setupsFor := map[party.ID]map[party.ID]*PairSetup{}
	for _, id := range ids {
		setupsFor[id] = map[party.ID]*PairSetup{}
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			low, high := ids[i], ids[j]
			sendSetup, receiveSetup := buildPairSetup(t, pl)
			setupsFor[low][high] = &PairSetup{Send: sendSetup}
			setupsFor[high][low] = &PairSetup{Receive: receiveSetup}
		}
	}
	return setupsFor
}

// messageHook lets a test tamper with or drop a broadcast before it reaches
// its recipients: given the sender and the outgoing action, it returns the
// bytes to actually deliver (raw, by default) and whether to deliver them
// at all.
type messageHook func(from party.ID, a engine.Action, raw []byte) ([]byte, bool)

// driveWithHook behaves like driveToCompletion, except a dropped or
// corrupted broadcast is expected: a party stuck forever behind it never
// joins the returned map, rather than failing the test the moment nobody
// else can make progress.
func driveWithHook(t *testing.T, ids party.IDSlice, engines map[party.ID]*engine.Engine, hook messageHook) map[party.ID]engine.Action {
	t.Helper()
	final := map[party.ID]engine.Action{}
	for len(final) < len(ids) {
		progressed := false
		for _, id := range ids {
			if _, ok := final[id]; ok {
				continue
			}
			e := engines[id]
			for {
				a := e.Step()
				switch a.Kind {
				case engine.KindSendMany:
					progressed = true
					raw := append(a.Header.Bytes(), a.Payload...)
					deliver := true
					if hook != nil {
						raw, deliver = hook(id, a, raw)
					}
					if deliver {
						for _, other := range ids {
							if other == id {
								continue
							}
							require.NoError(t, engines[other].Deliver(id, raw))
						}
					}
				case engine.KindSendOne:
					progressed = true
					raw := append(a.Header.Bytes(), a.Payload...)
					require.NoError(t, engines[a.To].Deliver(id, raw))
				case engine.KindWaitMore:
					goto next
				default:
					final[id] = a
					goto next
				}
			}
		next:
		}
		if !progressed {
			break
		}
	}
	// Anyone left out of final is permanently parked: snapshot their
	// current action (necessarily WaitMore, since Done/Fail would have
	// been recorded above) so the caller can assert on it.
	for _, id := range ids {
		if _, ok := final[id]; !ok {
			final[id] = engines[id].Step()
		}
	}
	return final
}

func TestGenerateTripleHonestRun(t *testing.T) {
	group := testGroup
	ids := party.IDSlice{1, 2, 3}
	const threshold = 2

	pl := pool.NewPool(0)
	defer pl.TearDown()

	setupsFor := buildAllPairSetups(t, pl, ids)

	engines := map[party.ID]*engine.Engine{}
	for _, id := range ids {
		proto := GenerateTriple(group, ids, threshold, setupsFor[id])
		engines[id] = engine.New(id, proto)
	}

	actions := driveToCompletion(t, ids, engines)

	triples := map[party.ID]Result{}
	for _, id := range ids {
		a := actions[id]
		require.Equal(t, engine.KindDone, a.Kind, "party %s failed: %v", id, a.Err)
		res, ok := a.Value.(Result)
		require.True(t, ok)
		triples[id] = res
	}

	// Every participant must have landed on the same public commitment.
	first := triples[ids[0]]
	for _, id := range ids[1:] {
		require.True(t, triples[id].Public.A.Equal(first.Public.A))
		require.True(t, triples[id].Public.B.Equal(first.Public.B))
		require.True(t, triples[id].Public.C.Equal(first.Public.C))
	}

	// Reconstruct a, b, c from the threshold-2 shares and check a·b = c,
	// and that the reconstructed secrets match the published commitment.
	a := group.NewScalar()
	b := group.NewScalar()
	c := group.NewScalar()
	for _, id := range ids {
		coeff := ids.Lagrange(group, id)

		termA := group.NewScalar().Set(coeff)
		termA.Mul(triples[id].Shares.A)
		a.Add(termA)

		termB := group.NewScalar().Set(coeff)
		termB.Mul(triples[id].Shares.B)
		b.Add(termB)

		termC := group.NewScalar().Set(coeff)
		termC.Mul(triples[id].Shares.C)
		c.Add(termC)
	}

	ab := group.NewScalar().Set(a)
	ab.Mul(b)
	require.True(t, c.Equal(ab), "a*b must equal c")

	require.True(t, a.ActOnBase().Equal(first.Public.A))
	require.True(t, b.ActOnBase().Equal(first.Public.B))
	require.True(t, c.ActOnBase().Equal(first.Public.C))
}

// TestGenerateTripleDroppedRoundTwoBroadcastWaitsForever checks that
// silently dropping one party's round 2 broadcast on the way to its peers
// leaves those peers parked in KindWaitMore rather than failing outright
// or hanging past the point the engine can report it. The party whose
// broadcast never arrives ends parked too: it waits on its peers' round 3
// broadcasts, which they never send.
func TestGenerateTripleDroppedRoundTwoBroadcastWaitsForever(t *testing.T) {
	group := testGroup
	ids := party.IDSlice{1, 2, 3}
	const threshold = 2
	dropped := party.ID(2)

	pl := pool.NewPool(0)
	defer pl.TearDown()

	setupsFor := buildAllPairSetups(t, pl, ids)

	engines := map[party.ID]*engine.Engine{}
	for _, id := range ids {
		proto := GenerateTriple(group, ids, threshold, setupsFor[id])
		engines[id] = engine.New(id, proto)
	}

	hook := func(from party.ID, a engine.Action, raw []byte) ([]byte, bool) {
		if from == dropped && a.Header.Channel == engine.RootShared() && a.Header.Waitpoint == round2BroadcastWaitpoint {
			return nil, false
		}
		return raw, true
	}

	actions := driveWithHook(t, ids, engines, hook)

	for _, id := range ids {
		if id == dropped {
			require.Equal(t, engine.KindWaitMore, actions[id].Kind, "the party whose broadcast was dropped should be parked waiting on its peers' round 3 broadcasts, got %v", actions[id])
			continue
		}
		require.Equal(t, engine.KindWaitMore, actions[id].Kind, "party %s should be parked waiting on %s's round 2 broadcast, got %v", id, dropped, actions[id])
	}
}

// TestGenerateTripleBadCommitmentFails checks that a round 2 broadcast
// tampered with after the fact — so it no longer opens the round 1
// commitment it claims to — is rejected with a CommitmentFailed
// protocol.Error, matching the review's exact scenario.
func TestGenerateTripleBadCommitmentFails(t *testing.T) {
	group := testGroup
	ids := party.IDSlice{1, 2, 3}
	const threshold = 2
	cheater := party.ID(2)

	pl := pool.NewPool(0)
	defer pl.TearDown()

	setupsFor := buildAllPairSetups(t, pl, ids)

	engines := map[party.ID]*engine.Engine{}
	for _, id := range ids {
		proto := GenerateTriple(group, ids, threshold, setupsFor[id])
		engines[id] = engine.New(id, proto)
	}

	hook := func(from party.ID, a engine.Action, raw []byte) ([]byte, bool) {
		if from != cheater || a.Header.Channel != engine.RootShared() || a.Header.Waitpoint != round2BroadcastWaitpoint {
			return raw, true
		}
		// Flip a bit in the opener rather than one of the encoded curve
		// points: the opener is opaque randomness, so this reliably
		// desyncs the commitment check instead of risking an unrelated
		// decode failure from an invalid point encoding.
		var payload round2BroadcastPayload
		require.NoError(t, decode(a.Payload, &payload))
		payload.Opener[0] ^= 0x01
		newPayload, err := encode(payload)
		require.NoError(t, err)
		return append(a.Header.Bytes(), newPayload...), true
	}

	actions := driveWithHook(t, ids, engines, hook)

	sawCommitmentFailure := false
	for _, id := range ids {
		if id == cheater {
			continue
		}
		a := actions[id]
		if a.Kind != engine.KindFail {
			continue
		}
		kind, ok := protocol.FailKind(a.Err)
		require.True(t, ok, "party %s's failure should be a *protocol.Error, got %T: %v", id, a.Err, a.Err)
		require.Equal(t, protocol.CommitmentFailed, kind)
		sawCommitmentFailure = true
	}
	require.True(t, sawCommitmentFailure, "at least one honest party should have rejected %s's tampered round 2 broadcast", cheater)
}
