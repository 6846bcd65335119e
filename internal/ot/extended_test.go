package ot

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cait-sith-go/threshold-ecdsa/internal/params"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/hash"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/pool"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
)

func runExtendedOT(hash *hash.Hash, choices []byte, sendSetup *CorreOTSendSetup, receiveSetup *CorreOTReceiveSetup) (*ExtendedOTSendResult, *ExtendedOTReceiveResult, error) {
	msg, receiveResult, err := ExtendedOTReceive(hash.Clone(), receiveSetup, choices)
	if err != nil {
		return nil, nil, err
	}
	sendResult, err := ExtendedOTSend(hash.Clone(), sendSetup, 8*len(choices), msg)
	if err != nil {
		return nil, nil, err
	}
	return sendResult, receiveResult, nil
}

func TestExtendedOT(t *testing.T) {
	pl := pool.NewPool(0)
	defer pl.TearDown()

	sendSetup, receiveSetup, err := runCorreOTSetup(pl, hash.New())
	if err != nil {
		t.Error(err)
	}
	H := hash.New()
	for i := 0; i < 10; i++ {
		_ = H.WriteAny([]byte{byte(i)})
		choices := make([]byte, 11)
		_, _ = rand.Read(choices)
		sendResult, receiveResult, err := runExtendedOT(H, choices, sendSetup, receiveSetup)
		if err != nil {
			t.Error(err)
		}
		for i := 0; i < 8*len(choices); i++ {
			choice := bitAt(i, choices) == 1
			expected := make([]byte, params.SecBytes)
			if choice {
				copy(expected, sendResult._V1[i][:])
			} else {
				copy(expected, sendResult._V0[i][:])
			}
			if !bytes.Equal(receiveResult._VChoices[i][:], expected) {
				t.Error("incorrect Extended OT")
			}

		}
	}
}

// TestExtendedOTRejectsBitFlippedU checks that corrupting a single bit of a
// receiver's correction row U is caught by the batch consistency check
// rather than silently producing a wrong output row.
func TestExtendedOTRejectsBitFlippedU(t *testing.T) {
	pl := pool.NewPool(0)
	defer pl.TearDown()

	sendSetup, receiveSetup, err := runCorreOTSetup(pl, hash.New())
	require.NoError(t, err)

	H := hash.New()
	choices := make([]byte, 11)
	_, _ = rand.Read(choices)

	msg, _, err := ExtendedOTReceive(H.Clone(), receiveSetup, choices)
	require.NoError(t, err)
	msg.correMsg._U[0][0] ^= 0x01

	_, err = ExtendedOTSend(H.Clone(), sendSetup, 8*len(choices), msg)
	require.Error(t, err)
	kind, ok := protocol.FailKind(err)
	require.True(t, ok, "expected a *protocol.Error, got %T: %v", err, err)
	require.Equal(t, protocol.ConsistencyFailed, kind)
}

// TestExtendedOTRejectsSessionReuse checks that running two extensions
// against the same setup under the same (un-cloned) transcript hash is
// rejected rather than silently accepted a second time.
func TestExtendedOTRejectsSessionReuse(t *testing.T) {
	pl := pool.NewPool(0)
	defer pl.TearDown()

	sendSetup, receiveSetup, err := runCorreOTSetup(pl, hash.New())
	require.NoError(t, err)

	choices := make([]byte, 11)
	_, _ = rand.Read(choices)

	ctxHash := hash.New()
	_, _, err = runExtendedOT(ctxHash, choices, sendSetup, receiveSetup)
	require.NoError(t, err)

	_, _, err = CorreOTReceive(ctxHash, receiveSetup, choices)
	require.Error(t, err)
	kind, ok := protocol.FailKind(err)
	require.True(t, ok, "expected a *protocol.Error, got %T: %v", err, err)
	require.Equal(t, protocol.SessionReused, kind)
}

func BenchmarkExtendedOT(b *testing.B) {
	b.StopTimer()
	pl := pool.NewPool(0)
	defer pl.TearDown()
	sendSetup, receiveSetup, _ := runCorreOTSetup(pl, hash.New())
	choices := make([]byte, params.OTBytes)
	_, _ = rand.Read(choices)
	b.StartTimer()
	for i := 0; i < b.N; i++ {
		runExtendedOT(hash.New(), choices, sendSetup, receiveSetup)
	}
}
