package shipper

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tonimelisma/tsreplica-go/internal/senderr"
)

// CreateSnapshot hard-links src into a per-group subdirectory of
// snapshotDir, returning the new link's path. The link target is always
// the original file; the link source always lives under snapshotDir — this
// is spec.md §9's resolution of the "snapshot hard-link paths" open
// question, deliberately never linking a path to itself.
func CreateSnapshot(snapshotDir, group, src string) (string, error) {
	dir := filepath.Join(snapshotDir, group)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", senderr.Wrap("snapshot", senderr.ErrSnapshotFailed, fmt.Sprintf("creating %s: %v", dir, err))
	}

	linkPath := filepath.Join(dir, filepath.Base(src))

	// A prior crash can leave a stale link behind before RemoveSnapshotDir
	// runs at finalize; clear it so this snapshot attempt doesn't fail with
	// "file exists".
	if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
		return "", senderr.Wrap("snapshot", senderr.ErrSnapshotFailed, fmt.Sprintf("clearing stale link %s: %v", linkPath, err))
	}

	if err := os.Link(src, linkPath); err != nil {
		return "", senderr.Wrap("snapshot", senderr.ErrSnapshotFailed, fmt.Sprintf("linking %s -> %s: %v", src, linkPath, err))
	}

	return linkPath, nil
}

// RemoveSnapshot removes a snapshot link. Safe to call even if the link
// was never created or was already removed (spec.md I5: removed on all
// exit paths).
func RemoveSnapshot(linkPath string) error {
	if linkPath == "" {
		return nil
	}

	if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shipper: removing snapshot %s: %w", linkPath, err)
	}

	return nil
}

// RemoveSnapshotDir recursively deletes the whole snapshot directory,
// called at finalize (spec.md §4.8).
func RemoveSnapshotDir(snapshotDir string) error {
	if err := os.RemoveAll(snapshotDir); err != nil {
		return fmt.Errorf("shipper: removing snapshot directory %s: %w", snapshotDir, err)
	}

	return nil
}
