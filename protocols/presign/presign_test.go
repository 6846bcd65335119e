package presign

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cait-sith-go/threshold-ecdsa/internal/engine"
	"github.com/cait-sith-go/threshold-ecdsa/internal/ot"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/hash"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/pool"
	"github.com/cait-sith-go/threshold-ecdsa/protocols/keygen"
	"github.com/cait-sith-go/threshold-ecdsa/protocols/triple"
)

var testGroup curve.Curve = curve.Secp256k1{}

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

func runTriple(t *testing.T, ids party.IDSlice, threshold int, pl *pool.Pool) map[party.ID]triple.Result {
	t.Helper()
	setupsFor := map[party.ID]map[party.ID]*triple.PairSetup{}
	for _, id := range ids {
		setupsFor[id] = map[party.ID]*triple.PairSetup{}
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			low, high := ids[i], ids[j]
			sendSetup, receiveSetup := buildPairSetup(t, pl)
			setupsFor[low][high] = &triple.PairSetup{Send: sendSetup}
			setupsFor[high][low] = &triple.PairSetup{Receive: receiveSetup}
		}
	}

	engines := map[party.ID]*engine.Engine{}
	for _, id := range ids {
		proto := triple.GenerateTriple(testGroup, ids, threshold, setupsFor[id])
		engines[id] = engine.New(id, proto)
	}
	actions := driveToCompletion(t, ids, engines)

	results := map[party.ID]triple.Result{}
	for _, id := range ids {
		a := actions[id]
		require.Equal(t, engine.KindDone, a.Kind, "party %s failed: %v", id, a.Err)
		res, ok := a.Value.(triple.Result)
		require.True(t, ok)
		results[id] = res
	}
	return results
}

func runKeygen(t *testing.T, ids party.IDSlice, threshold int) map[party.ID]keygen.Output {
	t.Helper()
	engines := map[party.ID]*engine.Engine{}
	for _, id := range ids {
		proto, err := keygen.Generate(testGroup, ids, threshold)
		require.NoError(t, err)
		engines[id] = engine.New(id, proto)
	}
	actions := driveToCompletion(t, ids, engines)

	outputs := map[party.ID]keygen.Output{}
	for _, id := range ids {
		a := actions[id]
		require.Equal(t, engine.KindDone, a.Kind, "party %s failed: %v", id, a.Err)
		out, ok := a.Value.(keygen.Output)
		require.True(t, ok)
		outputs[id] = out
	}
	return outputs
}

func TestGenerateHonestRun(t *testing.T) {
	group := testGroup
	ids := party.IDSlice{1, 2, 3}
	const threshold = 3

	pl := pool.NewPool(0)
	defer pl.TearDown()

	triples0 := runTriple(t, ids, threshold, pl)
	triples1 := runTriple(t, ids, threshold, pl)
	keygenOut := runKeygen(t, ids, threshold)

	engines := map[party.ID]*engine.Engine{}
	for _, id := range ids {
		proto, err := Generate(group, ids, Arguments{
			Triple0:   triples0[id],
			Triple1:   triples1[id],
			KeygenOut: keygenOut[id],
			Threshold: threshold,
		})
		require.NoError(t, err)
		engines[id] = engine.New(id, proto)
	}

	actions := driveToCompletion(t, ids, engines)

	outputs := map[party.ID]Output{}
	for _, id := range ids {
		a := actions[id]
		require.Equal(t, engine.KindDone, a.Kind, "party %s failed: %v", id, a.Err)
		out, ok := a.Value.(Output)
		require.True(t, ok)
		outputs[id] = out
	}

	first := outputs[ids[0]]
	for _, id := range ids[1:] {
		require.True(t, outputs[id].BigR.Equal(first.BigR))
	}

	// Reconstruct k and verify big_r is its inverse acting on the base
	// point, and that the sigma shares telescope to r*k*x.
	k := group.NewScalar()
	sigma := group.NewScalar()
	for _, id := range ids {
		coeff := ids.Lagrange(group, id)

		termK := group.NewScalar().Set(coeff)
		termK.Mul(outputs[id].K)
		k.Add(termK)

		termSigma := group.NewScalar().Set(coeff)
		termSigma.Mul(outputs[id].Sigma)
		sigma.Add(termSigma)
	}

	kInv := group.NewScalar().Set(k)
	kInv.Invert()
	require.True(t, kInv.ActOnBase().Equal(first.BigR))

	x := group.NewScalar()
	for _, id := range ids {
		coeff := ids.Lagrange(group, id)
		term := group.NewScalar().Set(coeff)
		term.Mul(keygenOut[id].PrivateShare)
		x.Add(term)
	}

	r := first.BigR.XScalar()
	expected := group.NewScalar().Set(r)
	expected.Mul(k)
	expected.Mul(x)
	require.True(t, sigma.Equal(expected))
}

func TestGenerateRejectsTooFewParticipants(t *testing.T) {
	_, err := Generate(testGroup, party.IDSlice{1}, Arguments{Threshold: 1})
	require.Error(t, err)
}

func TestGenerateRejectsThresholdAboveParticipantCount(t *testing.T) {
	_, err := Generate(testGroup, party.IDSlice{1, 2}, Arguments{Threshold: 3})
	require.Error(t, err)
}

func TestGenerateRejectsMismatchedTripleThreshold(t *testing.T) {
	ids := party.IDSlice{1, 2, 3}
	_, err := Generate(testGroup, ids, Arguments{
		Threshold: 2,
		Triple0:   triple.Result{Public: triple.Public{Threshold: 2}},
		Triple1:   triple.Result{Public: triple.Public{Threshold: 3}},
	})
	require.Error(t, err)
}

func TestGenerateRejectsDuplicateParticipants(t *testing.T) {
	_, err := Generate(testGroup, party.IDSlice{1, 2, 2}, Arguments{Threshold: 2})
	require.Error(t, err)
}
