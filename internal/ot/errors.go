package ot

import "errors"

// Sentinel causes wrapped by pkg/protocol.Error values raised in this
// package. Kept distinct from their message strings so callers checking
// with errors.Is don't depend on wording.
var (
	errSetupProof     = errors.New("schnorr proof of knowledge of base OT secret did not verify")
	errBadOpening     = errors.New("base ot decommitment does not reconstruct the challenge")
	errBadResponse    = errors.New("base ot response does not match sender's commitment")
	errRowCount       = errors.New("row count does not match the expected number of rows")
	errMonochrome     = errors.New("gf(2^lambda) consistency check failed")
	errTruncatedWire  = errors.New("truncated wire message")
	errMessageMissing = errors.New("expected message missing from batch")
	errSessionReused  = errors.New("session transcript already consumed by a prior extension call")
)
