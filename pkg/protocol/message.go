// Package protocol wraps an internal/engine run in a host-facing API:
// a Handler that turns engine.Action values into wire Messages and takes
// wire Messages back in, so a caller never has to see the engine's
// goroutines or its Step/Deliver loop directly.
package protocol

import (
	"fmt"

	"github.com/cait-sith-go/threshold-ecdsa/internal/engine"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
)

// Message is a single unit of network traffic produced by a Handler's
// engine, ready to hand to a transport, or received from one and fed back
// into Accept.
type Message struct {
	// From is the sender's identity.
	From party.ID
	// To is the intended recipient. The zero ID means broadcast: every
	// other participant should receive this message.
	To party.ID
	// Data is the header-prefixed payload; see engine.MessageHeader.
	Data []byte
}

// Broadcast reports whether m should be delivered to every other
// participant rather than a single recipient.
func (m Message) Broadcast() bool {
	return m.To == 0
}

// IsFor reports whether m is addressed to id: true for a broadcast (as
// long as id didn't send it) or a private message naming id.
func (m Message) IsFor(id party.ID) bool {
	if m.From == id {
		return false
	}
	return m.Broadcast() || m.To == id
}

func (m Message) String() string {
	if m.Broadcast() {
		return fmt.Sprintf("message: from %s, broadcast, %d bytes", m.From, len(m.Data))
	}
	return fmt.Sprintf("message: from %s, to %s, %d bytes", m.From, m.To, len(m.Data))
}

func actionToMessage(me party.ID, a engine.Action) Message {
	raw := make([]byte, 0, len(a.Header.Bytes())+len(a.Payload))
	raw = append(raw, a.Header.Bytes()...)
	raw = append(raw, a.Payload...)
	to := party.ID(0)
	if a.Kind == engine.KindSendOne {
		to = a.To
	}
	return Message{From: me, To: to, Data: raw}
}
