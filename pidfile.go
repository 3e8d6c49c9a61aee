package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// lockFilePermissions is the lock file's own permission bits. It is never
// written to — its only purpose is to be a thing flock can be taken on — so
// read/write for the owner is enough.
const lockFilePermissions = 0o644

// lockDirPermissions matches the standard directory permissions (owner rwx, group/other rx).
const lockDirPermissions = 0o755

// pidSidecarSuffix names the companion file that records the lock holder's
// PID, since spec.md §6 mandates the lock file itself stay empty.
const pidSidecarSuffix = ".pid"

// acquireLock implements the Singleton Guard (spec.md §4.1): it ensures the
// lock file's parent directory exists, creates the (empty) lock file if
// absent, and takes a non-blocking exclusive region lock over the whole
// file — spec.md §6's "byte-range lock over [0, ∞)". Unlike the teacher's
// combined PID-content lock file, this file is never written to; the
// holding process's PID is recorded separately in a ".pid" sidecar purely
// for `status`/`reload` to read, so it carries none of the lock's
// exclusivity semantics itself (see DESIGN.md). Returns a cleanup function
// that releases the lock and removes both files. If the lock cannot be
// acquired, another instance is already running.
func acquireLock(path string) (cleanup func(), err error) {
	if path == "" {
		return nil, fmt.Errorf("lock file path is empty — cannot determine data directory")
	}

	dir := filepath.Dir(path)
	if mkdirErr := os.MkdirAll(dir, lockDirPermissions); mkdirErr != nil {
		return nil, fmt.Errorf("creating lock file directory: %w", mkdirErr)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	// Non-blocking exclusive lock over the whole file — fails immediately if
	// another process already holds it.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		return nil, fmt.Errorf("another sender instance is already running (could not lock %s)", path)
	}

	pidPath := pidSidecarPath(path)
	if err := writePIDSidecar(pidPath); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()

		return nil, err
	}

	return func() {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		os.Remove(pidPath)
		os.Remove(path)
	}, nil
}

// pidSidecarPath derives the PID sidecar's path from the lock file's path.
func pidSidecarPath(lockPath string) string {
	return lockPath + pidSidecarSuffix
}

// writePIDSidecar records the current process's PID at path, for
// `status`/`reload` to discover the running daemon without parsing the
// (intentionally empty) lock file.
func writePIDSidecar(path string) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), lockFilePermissions); err != nil {
		return fmt.Errorf("writing PID sidecar: %w", err)
	}

	return nil
}

// readPIDFile reads the PID recorded in lockPath's sidecar file. Returns 0
// and an error if no sidecar exists or its content is invalid.
func readPIDFile(lockPath string) (int, error) {
	data, err := os.ReadFile(pidSidecarPath(lockPath))
	if err != nil {
		return 0, fmt.Errorf("reading PID sidecar: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", pidSidecarPath(lockPath), err)
	}

	return pid, nil
}

// sendSIGHUP reads the PID from the daemon's PID sidecar and sends SIGHUP
// to the running daemon. If no sidecar exists or the process is not alive,
// returns a descriptive error. Stale sidecars (process dead) are cleaned up.
func sendSIGHUP(lockPath string) error {
	pid, err := readPIDFile(lockPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no running daemon found (no PID sidecar for %s)", lockPath)
		}

		return err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	// Check if the process is alive with signal 0.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		// Process is dead — clean up the stale sidecar.
		os.Remove(pidSidecarPath(lockPath))

		return fmt.Errorf("daemon (PID %d) is not running (stale PID sidecar removed)", pid)
	}

	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("sending SIGHUP to daemon (PID %d): %w", pid, err)
	}

	return nil
}
