package party

import (
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/stretchr/testify/require"
)

func TestIDSliceSortAndSearch(t *testing.T) {
	ids := IDSlice{5, 1, 3}
	ids.Sort()
	require.True(t, ids.Sorted())
	require.Equal(t, IDSlice{1, 3, 5}, ids)

	idx, ok := ids.Search(3)
	require.True(t, ok)
	require.Equal(t, 1, idx)

	_, ok = ids.Search(4)
	require.False(t, ok)
}

func TestIDSliceLagrangeCoefficientsSumToOne(t *testing.T) {
	group := curve.Secp256k1{}
	ids := IDSlice{1, 2, 3}

	sum := group.NewScalar()
	for _, id := range ids {
		sum.Add(ids.Lagrange(group, id))
	}

	one := group.NewScalar().SetNat(new(saferith.Nat).SetUint64(1))
	require.True(t, sum.Equal(one))
}
