package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock_LockFileStaysEmptyAndSidecarCarriesPID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "daemon.lock")

	cleanup, err := acquireLock(path)
	require.NoError(t, err)
	require.NotNil(t, cleanup)

	defer cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)

	pidData, err := os.ReadFile(pidSidecarPath(path))
	require.NoError(t, err)

	pid, err := strconv.Atoi(string(pidData[:len(pidData)-1])) // trim trailing newline
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquireLock_FlockPreventsSecondAcquisition(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "daemon.lock")

	cleanup1, err := acquireLock(path)
	require.NoError(t, err)
	require.NotNil(t, cleanup1)

	defer cleanup1()

	// Second attempt should fail because the flock is held.
	cleanup2, err := acquireLock(path)
	require.Error(t, err)
	assert.Nil(t, cleanup2)
	assert.Contains(t, err.Error(), "already running")
}

func TestAcquireLock_CleanupRemovesLockAndSidecar(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "daemon.lock")

	cleanup, err := acquireLock(path)
	require.NoError(t, err)

	cleanup()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(pidSidecarPath(path))
	assert.True(t, os.IsNotExist(err))
}

func TestAcquireLock_EmptyPathReturnsError(t *testing.T) {
	t.Parallel()

	cleanup, err := acquireLock("")
	assert.Error(t, err)
	assert.Nil(t, cleanup)
	assert.Contains(t, err.Error(), "empty")
}

func TestAcquireLock_CreatesParentDirectories(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "daemon.lock")

	cleanup, err := acquireLock(path)
	require.NoError(t, err)

	defer cleanup()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestReadPIDFile_ReadsValidPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "daemon.lock")
	require.NoError(t, os.WriteFile(pidSidecarPath(lockPath), []byte("12345\n"), 0o644))

	pid, err := readPIDFile(lockPath)
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)
}

func TestReadPIDFile_InvalidContent(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "daemon.lock")
	require.NoError(t, os.WriteFile(pidSidecarPath(lockPath), []byte("not-a-pid\n"), 0o644))

	_, err := readPIDFile(lockPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PID")
}

func TestReadPIDFile_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := readPIDFile(filepath.Join(t.TempDir(), "nonexistent.lock"))
	assert.Error(t, err)
}

func TestSendSIGHUP_NoPIDFile(t *testing.T) {
	t.Parallel()

	err := sendSIGHUP(filepath.Join(t.TempDir(), "nonexistent.lock"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no running daemon")
}

func TestSendSIGHUP_StalePIDFile(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "daemon.lock")
	// PID 999999999 is almost certainly not a running process.
	require.NoError(t, os.WriteFile(pidSidecarPath(lockPath), []byte("999999999\n"), 0o644))

	err := sendSIGHUP(lockPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not running")

	// Stale sidecar should be cleaned up.
	_, statErr := os.Stat(pidSidecarPath(lockPath))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSendSIGHUP_SendsToCurrentProcess(t *testing.T) {
	t.Parallel()

	// Trap SIGHUP so it doesn't kill the test process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	defer signal.Stop(sigCh)

	lockPath := filepath.Join(t.TempDir(), "daemon.lock")
	require.NoError(t, os.WriteFile(pidSidecarPath(lockPath), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644))

	err := sendSIGHUP(lockPath)
	assert.NoError(t, err)

	// Verify the signal was delivered.
	sig := <-sigCh
	assert.Equal(t, syscall.SIGHUP, sig)
}
