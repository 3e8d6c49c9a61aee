// Package journal implements the Progress Journal: an append-only,
// line-oriented log of sync milestones, flushed to disk at every record
// boundary so a crashed run can be resumed or cleanly discarded (spec.md
// §4.3). Its lifecycle (open for append, write, fsync, close-on-completion)
// mirrors the teacher's SQLite-backed ledger, reimplemented as flat text
// because spec.md mandates a text on-disk format.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// Record kinds, spec.md §3.
const (
	KindBeginDeletions = "BEGIN_DELETIONS"
	KindDeleted        = "DELETED"
	KindBeginTSFiles   = "BEGIN_TSFILES"
	KindSent           = "SENT"
)

// filePermissions matches the sender's other on-disk state files.
const filePermissions = 0o644

// Journal is a single-writer, append-only log opened for the duration of
// one cycle's per-group transfer phase.
type Journal struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// Open opens (creating if absent) the journal file at path for append.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: creating directory for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermissions)
	if err != nil {
		return nil, fmt.Errorf("journal: opening %s: %w", path, err)
	}

	return &Journal{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// writeLine appends one line and flushes+fsyncs before returning, so the
// record is durable before the action it describes is considered complete.
func (j *Journal) writeLine(line string) error {
	if _, err := fmt.Fprintln(j.w, line); err != nil {
		return fmt.Errorf("journal: writing %s: %w", j.path, err)
	}

	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("journal: flushing %s: %w", j.path, err)
	}

	if err := j.f.Sync(); err != nil {
		return fmt.Errorf("journal: syncing %s: %w", j.path, err)
	}

	return nil
}

// BeginDeletions records the start of a group's deletion phase.
func (j *Journal) BeginDeletions() error {
	return j.writeLine(KindBeginDeletions)
}

// Deleted records that path was confirmed deleted by the receiver.
func (j *Journal) Deleted(path string) error {
	return j.writeLine(KindDeleted + " " + path)
}

// BeginTSFiles records the start of a group's addition phase.
func (j *Journal) BeginTSFiles() error {
	return j.writeLine(KindBeginTSFiles)
}

// Sent records that path was streamed and digest-verified by the receiver.
func (j *Journal) Sent(path string) error {
	return j.writeLine(KindSent + " " + path)
}

// Close closes the underlying file without removing it. Call Remove at the
// cycle's commit point instead (spec.md: "journal deletion is the commit
// point for I4").
func (j *Journal) Close() error {
	if err := j.w.Flush(); err != nil {
		j.f.Close()

		return fmt.Errorf("journal: flushing %s on close: %w", j.path, err)
	}

	if err := j.f.Close(); err != nil {
		return fmt.Errorf("journal: closing %s: %w", j.path, err)
	}

	return nil
}

// Exists reports whether a journal file is present at path, i.e. whether a
// prior run did not finish.
func Exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

// Remove deletes the journal file. This is the commit point for spec.md's
// invariant I4: callers must only call Remove once every group in the cycle
// has finished without a connection error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("journal: removing %s: %w", path, err)
	}

	return nil
}
