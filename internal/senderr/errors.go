// Package senderr defines the error taxonomy shared by every component of
// the sender: sentinel errors for classification with errors.Is, and a
// wrapping type that carries the phase and underlying cause for logging.
package senderr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the kinds enumerated in the sender's error taxonomy.
// Use errors.Is(err, senderr.ErrDigestMismatch) to check.
var (
	ErrIOError          = errors.New("senderr: io error")
	ErrDigestMismatch   = errors.New("senderr: digest mismatch")
	ErrReceiverRejected = errors.New("senderr: receiver rejected")
	ErrSyncConnection   = errors.New("senderr: sync connection error")
	ErrNoSuchAlgorithm  = errors.New("senderr: no such algorithm")
	ErrSnapshotFailed   = errors.New("senderr: snapshot failed")
)

// TransferError wraps a sentinel error with the phase it occurred in and a
// human-readable detail, for logging and errors.Is/errors.Unwrap.
type TransferError struct {
	Phase  string // e.g. "schema", "file:A.ts", "connect"
	Detail string
	Err    error // sentinel, for errors.Is()
}

func (e *TransferError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("senderr: %s: %s: %v", e.Phase, e.Detail, e.Err)
	}

	return fmt.Sprintf("senderr: %s: %v", e.Phase, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Wrap builds a *TransferError for the given phase, sentinel, and detail.
func Wrap(phase string, sentinel error, detail string) *TransferError {
	return &TransferError{Phase: phase, Detail: detail, Err: sentinel}
}

// SyncConnectionErrorf builds a *TransferError wrapping ErrSyncConnection,
// the error the orchestrator treats as cycle-aborting regardless of phase.
func SyncConnectionErrorf(phase, format string, args ...any) *TransferError {
	return &TransferError{Phase: phase, Detail: fmt.Sprintf(format, args...), Err: ErrSyncConnection}
}
