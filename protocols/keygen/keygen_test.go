package keygen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cait-sith-go/threshold-ecdsa/internal/engine"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
)

var testGroup curve.Curve = curve.Secp256k1{}

// driveToCompletion round-robins Step across every engine, feeding
// SendMany/SendOne straight to the addressed peers' Deliver, until every
// one of them has produced a terminal action.
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

func TestGenerateHonestRun(t *testing.T) {
	group := testGroup
	ids := party.IDSlice{1, 2, 3}
	const threshold = 3

	engines := map[party.ID]*engine.Engine{}
	for _, id := range ids {
		proto, err := Generate(group, ids, threshold)
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
		require.True(t, outputs[id].PublicKey.Equal(first.PublicKey))
	}

	x := group.NewScalar()
	for _, id := range ids {
		coeff := ids.Lagrange(group, id)
		term := group.NewScalar().Set(coeff)
		term.Mul(outputs[id].PrivateShare)
		x.Add(term)
	}

	require.True(t, x.ActOnBase().Equal(first.PublicKey))
}

func TestGenerateRejectsTooFewParticipants(t *testing.T) {
	_, err := Generate(testGroup, party.IDSlice{1}, 1)
	require.Error(t, err)
}

func TestGenerateRejectsThresholdAboveParticipantCount(t *testing.T) {
	_, err := Generate(testGroup, party.IDSlice{1, 2}, 3)
	require.Error(t, err)
}

func TestGenerateRejectsDuplicateParticipants(t *testing.T) {
	_, err := Generate(testGroup, party.IDSlice{1, 2, 2}, 2)
	require.Error(t, err)
}
