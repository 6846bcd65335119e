package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies why a protocol run failed. Every Kind is fatal: none of
// them is retryable by resending the same message, so a Handler never
// tries to recover from one on its own — it surfaces the Error and stops.
type Kind int

const (
	// Malformed marks a message that failed to decode, or decoded into a
	// value with the wrong shape (wrong degree, wrong length, a field
	// that should be the group identity but isn't).
	Malformed Kind = iota + 1
	// ProofFailed marks a zero-knowledge proof (a Maurer Σ-protocol
	// transcript, a Schnorr proof of knowledge) that did not verify.
	ProofFailed
	// CommitmentFailed marks an opening that does not match the
	// commitment a party published in an earlier round.
	CommitmentFailed
	// ConsistencyFailed marks two values that every honest party should
	// have computed identically turning out to disagree — a broadcast
	// echo, an assembled share, a MtA correlation check.
	ConsistencyFailed
	// SessionReused marks a session or channel identifier that was
	// already spent by an earlier run.
	SessionReused
	// InvariantViolated marks a check that isn't any of the above but
	// that the protocol still cannot proceed without.
	InvariantViolated
)

func (k Kind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case ProofFailed:
		return "proof failed"
	case CommitmentFailed:
		return "commitment failed"
	case ConsistencyFailed:
		return "consistency failed"
	case SessionReused:
		return "session reused"
	case InvariantViolated:
		return "invariant violated"
	default:
		return "unknown"
	}
}

// Error is the single type every fatal protocol failure is reported as.
// It names the round or component that raised it, a Kind a caller can
// switch on without string-matching, and the underlying error it wraps.
type Error struct {
	// Component names the round or subprotocol that raised the failure,
	// e.g. "triple: round 2" or "ot: random ot extension".
	Component string
	Kind      Kind
	Err       error
}

func (e *Error) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind, so that
// errors.Is(err, protocol.Fail("", protocol.CommitmentFailed, nil)) style
// checks work without comparing the wrapped error or the component.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// Fail builds an *Error for component with the given kind, wrapping err.
// Every internal package that can fail a protocol run constructs its
// failures this way rather than returning a bare error, so a host can
// always recover the Kind with errors.As.
func Fail(component string, kind Kind, err error) *Error {
	return &Error{Component: component, Kind: kind, Err: err}
}

// FailKind reports whether err is a protocol Error and, if so, its Kind.
func FailKind(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
