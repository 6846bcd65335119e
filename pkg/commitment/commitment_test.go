package commitment

import (
	"testing"

	"github.com/cait-sith-go/threshold-ecdsa/internal/params"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/hash"
	"github.com/stretchr/testify/require"
)

func TestCommitRoundTrip(t *testing.T) {
	com, opener, err := Commit(hash.New(), []byte("hello"), byte(42))
	require.NoError(t, err)
	require.True(t, CheckCommit(hash.New(), com, opener, []byte("hello"), byte(42)))
}

func TestCommitRejectsWrongValue(t *testing.T) {
	com, opener, err := Commit(hash.New(), []byte("hello"))
	require.NoError(t, err)
	require.False(t, CheckCommit(hash.New(), com, opener, []byte("goodbye")))
}

func TestCommitRejectsWrongOpener(t *testing.T) {
	com, _, err := Commit(hash.New(), []byte("hello"))
	require.NoError(t, err)
	wrongOpener := make(Opener, params.SecBytes)
	require.False(t, CheckCommit(hash.New(), com, wrongOpener, []byte("hello")))
}

func TestCommitIsHidingAcrossCalls(t *testing.T) {
	com1, _, err := Commit(hash.New(), []byte("same value"))
	require.NoError(t, err)
	com2, _, err := Commit(hash.New(), []byte("same value"))
	require.NoError(t, err)
	require.NotEqual(t, com1, com2)
}
