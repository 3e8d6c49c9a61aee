package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJournal_WriteAndAnalyze(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")

	j, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, j.BeginDeletions())
	require.NoError(t, j.Deleted("/data/g1/old.ts"))
	require.NoError(t, j.BeginTSFiles())
	require.NoError(t, j.Sent("/data/g1/new.ts"))
	require.NoError(t, j.Close())

	require.True(t, Exists(path))

	state, ok, err := Analyze(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, state.Deleted, "/data/g1/old.ts")
	require.Contains(t, state.Sent, "/data/g1/new.ts")
}

func TestAnalyze_NoJournalReturnsNotOK(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")

	state, ok, err := Analyze(path)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, state.Deleted)
	require.Empty(t, state.Sent)
}

func TestRemove_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Sent("/x"))
	require.NoError(t, j.Close())

	require.NoError(t, Remove(path))
	require.False(t, Exists(path))
	require.NoError(t, Remove(path)) // removing again must not error
}
