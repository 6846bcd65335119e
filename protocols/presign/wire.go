package presign

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
)

type round1Wait1Payload struct {
	Ka []byte
	Xb []byte
}

func marshalScalar(s curve.Scalar) []byte {
	b, err := s.MarshalBinary()
	if err != nil {
		panic(fmt.Errorf("presign: marshaling scalar: %w", err))
	}
	return b
}

func unmarshalScalar(group curve.Curve, raw []byte) (curve.Scalar, error) {
	s := group.NewScalar()
	if err := s.UnmarshalBinary(raw); err != nil {
		return nil, fail(protocol.Malformed, "presign: decoding scalar: %w", err)
	}
	return s, nil
}

func encode(v interface{}) []byte {
	b, err := cbor.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("presign: encoding message: %w", err))
	}
	return b
}

func decode(data []byte, v interface{}) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fail(protocol.Malformed, "presign: decoding message: %w", err)
	}
	return nil
}
