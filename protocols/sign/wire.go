package sign

import (
	"fmt"

	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
)

func marshalScalar(s curve.Scalar) []byte {
	b, err := s.MarshalBinary()
	if err != nil {
		panic(fmt.Errorf("sign: marshaling scalar: %w", err))
	}
	return b
}

func unmarshalScalar(group curve.Curve, raw []byte) (curve.Scalar, error) {
	s := group.NewScalar()
	if err := s.UnmarshalBinary(raw); err != nil {
		return nil, fail(protocol.Malformed, "sign: decoding scalar: %w", err)
	}
	return s, nil
}
