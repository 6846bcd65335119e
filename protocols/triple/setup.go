// Package triple implements Triple Generation: an n-party protocol that
// produces a Beaver triple (a, b, c) with c = a·b, each value
// Shamir-shared among the participants, together with the public
// commitments A, B, C = a·G0, b·G0, c·G0 that let anyone check a
// presignature built from the triple without learning the shares.
//
// Generating a triple needs one multiplicative-to-additive conversion
// (Multiplication, §C9) between every pair of participants, which in turn
// needs a Triple Setup (§C5/§C6) already established between that pair.
// Setup is deliberately not this package's concern: it is reusable across
// many triples and expensive enough (params.SecParam base OTs per pair)
// that a host amortizes it, so GenerateTriple takes
// the already-run setups as an argument.
package triple

import "github.com/cait-sith-go/threshold-ecdsa/internal/ot"

// PairSetup bundles whichever half of the Triple Setup handshake this
// party holds against one peer. Exactly one of Send/Receive is non-nil:
// the participant with the lower ID always ends up holding Send (the
// Δ-holder side) against the participant with the higher ID, so which
// half a party holds for a given peer is determined by comparing IDs,
// not negotiated.
type PairSetup struct {
	Send    *ot.CorreOTSendSetup
	Receive *ot.CorreOTReceiveSetup
}
