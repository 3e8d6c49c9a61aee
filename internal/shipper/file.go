package shipper

import (
	"crypto/md5" //nolint:gosec // mandated by spec.md §6 for receiver compatibility
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/tonimelisma/tsreplica-go/internal/inventory"
	"github.com/tonimelisma/tsreplica-go/internal/journal"
	"github.com/tonimelisma/tsreplica-go/internal/rpcclient"
	"github.com/tonimelisma/tsreplica-go/internal/senderr"
)

// deleteClient is the subset of rpcclient.Client the deletion phase needs.
type deleteClient interface {
	SyncDeletedFileName(filename string) (rpcclient.ResultStatus, error)
}

// FileShipper implements spec.md §4.7: per group, deletions then additions,
// each file streamed in fixed-size chunks with a digest-verified,
// retry-bounded transfer.
type FileShipper struct {
	Client    syncDataClient
	ChunkSize int
	MaxTry    int
}

// SyncSingleFile streams readPath under the name displayName, verifying a
// digest end-to-end. Any chunk rejection restarts the file from byte zero
// with a fresh digest (spec.md §4.7); exhausting MaxTry attempts raises
// SyncConnectionError. Grounded directly on the teacher's
// internal/sync/transfer_manager.go DownloadToFile hash-retry loop.
func (s *FileShipper) SyncSingleFile(displayName, readPath string) error {
	for attempt := 1; attempt <= s.MaxTry; attempt++ {
		ok, err := s.syncSingleFileOnce(displayName, readPath)
		if err != nil {
			return err
		}

		if ok {
			return nil
		}
	}

	return senderr.SyncConnectionErrorf("file", "exhausted %d attempts shipping %s", s.MaxTry, displayName)
}

func (s *FileShipper) syncSingleFileOnce(displayName, readPath string) (ok bool, err error) {
	if err := s.Client.InitSyncData(displayName); err != nil {
		return false, err
	}

	f, err := os.Open(readPath)
	if err != nil {
		return false, senderr.Wrap("file", senderr.ErrIOError, err.Error())
	}
	defer f.Close()

	digest := md5.New()
	chunk := make([]byte, s.ChunkSize)

	for {
		n, readErr := f.Read(chunk)
		if n > 0 {
			digest.Write(chunk[:n])

			rs, err := s.Client.SyncData(chunk[:n])
			if err != nil {
				return false, err
			}

			if !rs.Success {
				return false, nil
			}
		}

		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			return false, senderr.Wrap("file", senderr.ErrIOError, readErr.Error())
		}
	}

	digestHex := hex.EncodeToString(digest.Sum(nil))

	rs, err := s.Client.CheckDataMD5(digestHex)
	if err != nil {
		return false, err
	}

	return rs.Success && rs.Msg == digestHex, nil
}

// ShipDeletions calls syncDeletedFileName for every file in deleted. On
// success it removes the path from lastLocal (it is "shipped away": the
// receiver no longer has it, so the baseline must stop listing it, per
// spec.md §3's definition of the baseline as the set the receiver
// acknowledges) and journals it; on any error (RPC or receiver rejection)
// it collects the error into the returned multierr and skips that file
// without aborting the group (spec.md §4.7's
// explicit deletion-phase exception to the usual
// SyncConnectionError-aborts-the-cycle rule).
func (s *FileShipper) ShipDeletions(
	client deleteClient,
	deleted map[string]inventory.DataFile,
	lastLocal map[string]struct{},
	jrn *journal.Journal,
) error {
	var errs error

	for path := range deleted {
		rs, err := client.SyncDeletedFileName(filepath.Base(path))
		if err != nil {
			errs = multierr.Append(errs, err)

			continue
		}

		if !rs.Success {
			errs = multierr.Append(errs, senderr.Wrap("delete", senderr.ErrReceiverRejected, path))

			continue
		}

		delete(lastLocal, path)

		if err := jrn.Deleted(path); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// ShipAdditions streams every DataFile in toSend: sidecar then primary, via
// a hard-link snapshot that decouples transfer from concurrent compactions.
// A SnapshotFailed is skip-and-continue; any other error, including the
// SyncConnectionError raised when a file exhausts its digest retries, stops
// the group immediately and is returned to the orchestrator.
func (s *FileShipper) ShipAdditions(
	snapshotDir, group string,
	toSend map[string]inventory.DataFile,
	lastLocal map[string]struct{},
	jrn *journal.Journal,
) error {
	var errs error

	for _, df := range toSend {
		if err := s.shipOneAddition(snapshotDir, group, df, lastLocal, jrn); err != nil {
			if errors.Is(err, senderr.ErrSnapshotFailed) {
				errs = multierr.Append(errs, err)

				continue
			}

			return err
		}
	}

	return errs
}

func (s *FileShipper) shipOneAddition(
	snapshotDir, group string,
	df inventory.DataFile,
	lastLocal map[string]struct{},
	jrn *journal.Journal,
) error {
	sidecarLink, err := CreateSnapshot(snapshotDir, group, df.SidecarPath)
	if err != nil {
		return err
	}
	defer RemoveSnapshot(sidecarLink)

	primaryLink, err := CreateSnapshot(snapshotDir, group, df.Path)
	if err != nil {
		return err
	}
	defer RemoveSnapshot(primaryLink)

	if err := s.SyncSingleFile(filepath.Base(df.SidecarPath), sidecarLink); err != nil {
		return err
	}

	if err := s.SyncSingleFile(filepath.Base(df.Path), primaryLink); err != nil {
		return err
	}

	lastLocal[df.Path] = struct{}{}

	return jrn.Sent(df.Path)
}
