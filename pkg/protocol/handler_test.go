package protocol

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cait-sith-go/threshold-ecdsa/internal/engine"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
)

// pumpNetwork routes every Message a Handler emits to the addressed
// peers' Accept, and every peer's outgoing messages back the same way,
// until all of them terminate. It mirrors example.Network/Run without
// depending on the example package (which is a separate main module
// path).
func pumpNetwork(t *testing.T, ids party.IDSlice, handlers map[party.ID]*Handler) map[party.ID]interface{} {
	t.Helper()

	inboxes := map[party.ID]chan Message{}
	for _, id := range ids {
		inboxes[id] = make(chan Message, 32)
	}
	send := func(msg Message) {
		if msg.Broadcast() {
			for _, id := range ids {
				if id == msg.From {
					continue
				}
				inboxes[id] <- msg
			}
			return
		}
		inboxes[msg.To] <- msg
	}

	results := make(map[party.ID]interface{}, len(ids))
	errs := make(map[party.ID]error, len(ids))
	var mtx sync.Mutex
	var wg sync.WaitGroup

	for _, id := range ids {
		id := id
		h := handlers[id]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case msg, ok := <-h.Listen():
					if !ok {
						res, err := h.Result()
						mtx.Lock()
						results[id], errs[id] = res, err
						mtx.Unlock()
						return
					}
					send(msg)
				case msg := <-inboxes[id]:
					h.Accept(msg)
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("pumpNetwork: handlers did not finish in time")
	}

	for id, err := range errs {
		require.NoError(t, err, "party %s", id)
	}
	return results
}

func TestHandlerEchoRoundTrip(t *testing.T) {
	ids := party.IDSlice{1, 2, 3}

	proto := func(ctx *engine.Context) (interface{}, error) {
		shared := ctx.Shared()
		shared.SendMany([]byte{byte(ctx.Me())})

		sum := 0
		seen := map[party.ID]bool{}
		for len(seen) < len(ids)-1 {
			from, data := shared.Recv()
			seen[from] = true
			sum += int(data[0])
		}
		return sum, nil
	}

	handlers := map[party.ID]*Handler{}
	for _, id := range ids {
		handlers[id] = NewHandler(id, proto)
	}

	results := pumpNetwork(t, ids, handlers)
	for _, id := range ids {
		require.Equal(t, 1+2+3-int(id), results[id])
	}
}

func TestMessageIsFor(t *testing.T) {
	broadcast := Message{From: 1, To: 0}
	require.True(t, broadcast.IsFor(2))
	require.True(t, broadcast.IsFor(3))
	require.False(t, broadcast.IsFor(1), "a message never targets its own sender")

	private := Message{From: 1, To: 2}
	require.True(t, private.IsFor(2))
	require.False(t, private.IsFor(3))
}

// TestHandlerAcceptMalformedMessageFails checks that a message too short
// to carry an engine.MessageHeader finishes the run with a Malformed
// Error instead of being silently dropped, which would otherwise leave
// the protocol parked in KindWaitMore forever.
func TestHandlerAcceptMalformedMessageFails(t *testing.T) {
	proto := func(ctx *engine.Context) (interface{}, error) {
		_, _ = ctx.Shared().Recv()
		return nil, nil
	}

	h := NewHandler(party.ID(1), proto)
	h.Accept(Message{From: party.ID(2), To: party.ID(1), Data: []byte{0x01}})

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not finish after a malformed message")
	}

	_, err := h.Result()
	require.Error(t, err)
	kind, ok := FailKind(err)
	require.True(t, ok, "expected a *Error, got %T: %v", err, err)
	require.Equal(t, Malformed, kind)
}

func TestHandlerResultBeforeDone(t *testing.T) {
	blocked := make(chan struct{})
	proto := func(ctx *engine.Context) (interface{}, error) {
		<-blocked
		return nil, nil
	}
	h := NewHandler(party.ID(1), proto)
	_, err := h.Result()
	require.Error(t, err)
	close(blocked)
}
