package main

import (
	"sync"

	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
)

// Network is an in-process router: it does nothing but fan a broadcast
// out to every listener and steer a private message to the one it names.
// A real deployment would replace this with whatever transport carries
// Message.Data between processes.
type Network struct {
	mtx     sync.Mutex
	inboxes map[party.ID]chan protocol.Message
	parties party.IDSlice
}

// NewNetwork allocates one inbox per participant in parties.
func NewNetwork(parties party.IDSlice) *Network {
	n := &Network{
		inboxes: make(map[party.ID]chan protocol.Message, len(parties)),
		parties: parties.Copy(),
	}
	for _, id := range parties {
		n.inboxes[id] = make(chan protocol.Message, 4*len(parties))
	}
	return n
}

// Send routes msg to every inbox it is addressed to.
func (n *Network) Send(msg protocol.Message) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	if msg.Broadcast() {
		for _, id := range n.parties {
			if id == msg.From {
				continue
			}
			n.inboxes[id] <- msg
		}
		return
	}
	if c, ok := n.inboxes[msg.To]; ok {
		c <- msg
	}
}

// Inbox returns id's channel of inbound messages.
func (n *Network) Inbox(id party.ID) <-chan protocol.Message {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.inboxes[id]
}

// Run pumps h's outgoing messages onto n and n's inbound messages for id
// into h, until h finishes. It returns h's result.
func Run(id party.ID, h *protocol.Handler, n *Network) (interface{}, error) {
	inbox := n.Inbox(id)
	for {
		select {
		case msg, ok := <-h.Listen():
			if !ok {
				return h.Result()
			}
			n.Send(msg)
		case msg := <-inbox:
			h.Accept(msg)
		case <-h.Done():
			// Drain anything still queued before reading the result, so
			// a message racing the terminal action isn't dropped.
			for {
				select {
				case msg, ok := <-h.Listen():
					if !ok {
						return h.Result()
					}
					n.Send(msg)
				default:
					return h.Result()
				}
			}
		}
	}
}
