// Package params centralizes the security parameters shared by every
// protocol in this module, mirroring the single source of truth the rest of
// the corpus keeps for these constants rather than letting each package
// invent its own.
package params

const (
	// SecParam (λ) is the computational security parameter, in bits.
	SecParam = 256
	// SecBytes is SecParam in bytes.
	SecBytes = SecParam / 8

	// OTParam is a batch width, in bits, that the internal/ot tests and
	// benchmarks size their inputs by. It is not the base-OT batch width:
	// a Triple Setup runs SecParam "simplest OT" instances per pair.
	OTParam = 128
	// OTBytes is OTParam in bytes.
	OTBytes = OTParam / 8

	// StatParam is the statistical security parameter, in bits, governing
	// the soundness error of the random OT extension's consistency check
	// and of the Maurer proofs.
	StatParam = 80

	// ConsistencyCheckRows is the number of extra rows (λ+StatParam)
	// appended to a random OT extension batch to drive the GF(2^λ)
	// consistency check's soundness error down. internal/ot's extension
	// round uses its own checkRows constant, which has the same value.
	ConsistencyCheckRows = SecParam + StatParam
)
