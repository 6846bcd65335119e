package keygen

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/maurer"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/polynomial"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
)

// The round payloads below are plain data (byte strings and a handful of
// scalars/points, already reduced to their binary encoding) so that cbor
// can marshal and unmarshal them without needing to know how to construct
// a concrete curve.Point or curve.Scalar on its own; reconstructing those
// against this run's group happens in the decode* helpers just below each
// type.

type proofPayload struct {
	A []byte
	Z []byte
}

type round2BroadcastPayload struct {
	Confirm []byte
	F       [][]byte
	Opener  []byte
	Proof   proofPayload
}

type round2PrivatePayload struct {
	X []byte
}

func marshalPoints(points []curve.Point) ([][]byte, error) {
	out := make([][]byte, len(points))
	for i, p := range points {
		b, err := p.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func unmarshalPoints(group curve.Curve, raw [][]byte) ([]curve.Point, error) {
	out := make([]curve.Point, len(raw))
	for i, b := range raw {
		p := group.NewPoint()
		if err := p.UnmarshalBinary(b); err != nil {
			return nil, fail(protocol.Malformed, "keygen: decoding point %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

func marshalScalar(s curve.Scalar) []byte {
	b, err := s.MarshalBinary()
	if err != nil {
		panic(fmt.Errorf("keygen: marshaling scalar: %w", err))
	}
	return b
}

func unmarshalScalar(group curve.Curve, raw []byte) (curve.Scalar, error) {
	s := group.NewScalar()
	if err := s.UnmarshalBinary(raw); err != nil {
		return nil, fail(protocol.Malformed, "keygen: decoding scalar: %w", err)
	}
	return s, nil
}

func marshalProof(p *maurer.Proof) (proofPayload, error) {
	a, err := p.A.MarshalBinary()
	if err != nil {
		return proofPayload{}, err
	}
	return proofPayload{A: a, Z: marshalScalar(p.Z)}, nil
}

func unmarshalProof(group curve.Curve, p proofPayload) (*maurer.Proof, error) {
	A := group.NewPoint()
	if err := A.UnmarshalBinary(p.A); err != nil {
		return nil, fail(protocol.Malformed, "keygen: decoding proof point: %w", err)
	}
	Z, err := unmarshalScalar(group, p.Z)
	if err != nil {
		return nil, err
	}
	return &maurer.Proof{A: A, Z: Z}, nil
}

func encodeExponent(e *polynomial.Exponent) ([][]byte, error) {
	return marshalPoints(e.Coefficients())
}

func decodeExponent(group curve.Curve, raw [][]byte) (*polynomial.Exponent, error) {
	points, err := unmarshalPoints(group, raw)
	if err != nil {
		return nil, err
	}
	return polynomial.NewExponentFromPoints(group, points), nil
}

func encode(v interface{}) ([]byte, error) {
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, fail(protocol.InvariantViolated, "keygen: encoding message: %w", err)
	}
	return b, nil
}

func decode(data []byte, v interface{}) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fail(protocol.Malformed, "keygen: decoding message: %w", err)
	}
	return nil
}
