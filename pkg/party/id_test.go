package party

import (
	"testing"

	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/stretchr/testify/require"
)

func TestIDBytesRoundTrip(t *testing.T) {
	id := ID(123456)
	require.Equal(t, id, FromBytes(id.Bytes()))
	require.Len(t, id.Bytes(), ByteSize)
}

func TestIDScalarIsNonZeroForNonZeroID(t *testing.T) {
	group := curve.Secp256k1{}
	id := ID(7)
	require.False(t, id.Scalar(group).IsZero())
}

func TestRandIDIsNeverZero(t *testing.T) {
	for i := 0; i < 100; i++ {
		require.NotEqual(t, ID(0), RandID())
	}
}
