package senderr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_UnwrapsToSentinel(t *testing.T) {
	err := Wrap("schema", ErrIOError, "reading cursor")

	require.True(t, errors.Is(err, ErrIOError))
	require.False(t, errors.Is(err, ErrDigestMismatch))
}

func TestWrap_ErrorStringIncludesPhaseAndDetail(t *testing.T) {
	err := Wrap("file:A.ts", ErrSnapshotFailed, "no such file")

	assert.Contains(t, err.Error(), "file:A.ts")
	assert.Contains(t, err.Error(), "no such file")
}

func TestWrap_EmptyDetailOmitsExtraSeparator(t *testing.T) {
	err := Wrap("connect", ErrSyncConnection, "")

	assert.NotContains(t, err.Error(), "connect: : ")
}

func TestSyncConnectionErrorf_WrapsSyncConnectionSentinel(t *testing.T) {
	err := SyncConnectionErrorf("file", "exhausted %d attempts shipping %s", 3, "A.ts")

	require.True(t, errors.Is(err, ErrSyncConnection))
	assert.Contains(t, err.Error(), "exhausted 3 attempts shipping A.ts")
}

func TestTransferError_UnwrapReturnsUnderlyingSentinel(t *testing.T) {
	var te *TransferError

	err := Wrap("check", ErrReceiverRejected, "rejected")
	require.True(t, errors.As(err, &te))
	assert.Equal(t, ErrReceiverRejected, te.Unwrap())
}

func TestWrap_DistinctSentinelsAreDistinguishable(t *testing.T) {
	ioErr := Wrap("baseline", ErrIOError, "disk full")
	digestErr := Wrap("schema", ErrDigestMismatch, "checksum differs")

	assert.True(t, errors.Is(ioErr, ErrIOError))
	assert.False(t, errors.Is(ioErr, ErrDigestMismatch))
	assert.True(t, errors.Is(digestErr, ErrDigestMismatch))
	assert.False(t, errors.Is(digestErr, ErrIOError))
}
