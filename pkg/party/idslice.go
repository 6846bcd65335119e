package party

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
)

// IDSlice is a set of participant IDs, kept in sorted order so that every
// participant computes the same ordering (and so the same root_private
// channel tags, and the same Lagrange coefficients) independent of message
// arrival order.
type IDSlice []ID

func (ids IDSlice) Len() int           { return len(ids) }
func (ids IDSlice) Less(i, j int) bool { return ids[i] < ids[j] }
func (ids IDSlice) Swap(i, j int)      { ids[i], ids[j] = ids[j], ids[i] }

// Sort is a convenience method: x.Sort() calls sort.Sort(x).
func (ids IDSlice) Sort() { sort.Sort(ids) }

// Sorted reports whether ids is both sorted and free of duplicates.
func (ids IDSlice) Sorted() bool {
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			return false
		}
	}
	return true
}

// Contains reports whether id appears in ids. Assumes ids is sorted.
func (ids IDSlice) Contains(id ID) bool {
	_, ok := ids.Search(id)
	return ok
}

// Search returns the index of x in ids, and whether it was found. Assumes
// ids is sorted.
func (ids IDSlice) Search(x ID) (int, bool) {
	index := sort.Search(len(ids), func(i int) bool { return ids[i] >= x })
	if index < len(ids) && ids[index] == x {
		return index, true
	}
	return 0, false
}

// Copy returns a sorted copy of ids.
func (ids IDSlice) Copy() IDSlice {
	out := make(IDSlice, len(ids))
	copy(out, ids)
	out.Sort()
	return out
}

// Lagrange returns the Lagrange coefficient λ_index such that, for any
// polynomial f of degree < len(ids) secret-shared among ids,
//
//	f(0) = Σ_{j in ids} λ_j · f(j)
//
// index must be a member of ids. Coefficients are computed over the full
// set passed in; restrict ids to the signing quorum first to linearize a
// threshold sharing into an additive one over exactly that quorum.
func (ids IDSlice) Lagrange(group curve.Curve, index ID) curve.Scalar {
	num := group.NewScalar().SetNat(oneNat())
	denom := group.NewScalar().SetNat(oneNat())

	xJ := index.Scalar(group)
	tmp := group.NewScalar()

	for _, id := range ids {
		if id == index {
			continue
		}
		xM := id.Scalar(group)

		num.Mul(xM)

		tmp.Set(xM)
		tmp.Sub(xJ)
		denom.Mul(tmp)
	}

	denom.Invert()
	num.Mul(denom)
	return num
}

// WriteTo implements io.WriterTo so an IDSlice can be fed directly into a
// transcript hash; the encoded length prevents ambiguity between, say,
// {1, 23} and {12, 3}.
func (ids IDSlice) WriteTo(w io.Writer) (int64, error) {
	if err := binary.Write(w, binary.BigEndian, uint32(len(ids))); err != nil {
		return 0, err
	}
	nAll := int64(4)
	for _, id := range ids {
		n, err := w.Write(id.Bytes())
		nAll += int64(n)
		if err != nil {
			return nAll, err
		}
	}
	return nAll, nil
}

// Domain implements hash.WriterToWithDomain.
func (IDSlice) Domain() string {
	return "IDSlice"
}
