// Package inventory models the Inventory Snapshot external contract
// (spec.md §2): "given a data directory, returns three groupings keyed by
// logical group name: files present since last run (to-send), files
// removed since last run (deleted), and the previous baseline
// (last-local)." The inventory-builder itself is out of scope; this
// package defines the Provider interface that contract requires and a
// default filesystem-walk implementation, grounded in the teacher's
// internal/sync/scanner.go walk style.
package inventory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SidecarSuffix is the fixed suffix a DataFile's companion resource file
// carries (spec.md §3); e.g. "A.ts" pairs with "A.ts.resource".
const SidecarSuffix = ".resource"

// DataFile is one immutable time-series file and its sidecar.
type DataFile struct {
	Path        string
	SidecarPath string
}

// Snapshot is one data directory's delta since the last cycle, partitioned
// by StorageGroup.
type Snapshot struct {
	AllGroups []string
	ToSend    map[string]map[string]DataFile // group -> path -> DataFile
	Deleted   map[string]map[string]DataFile // group -> path -> DataFile
}

// Provider is the Inventory Snapshot contract. Implementations decide how
// "present since last run" and "removed since last run" are computed; the
// only requirement is that ToSend and Deleted are correct relative to the
// baseline passed in.
type Provider interface {
	Snapshot(ctx context.Context, rootDir string, baseline map[string]struct{}) (*Snapshot, error)
}

// DefaultProvider implements Provider by treating each immediate
// subdirectory of rootDir as one StorageGroup and comparing its regular,
// non-sidecar files against the baseline set.
type DefaultProvider struct{}

// Snapshot walks rootDir's immediate subdirectories (one per StorageGroup)
// and diffs their on-disk DataFiles against baseline.
func (DefaultProvider) Snapshot(ctx context.Context, rootDir string, baseline map[string]struct{}) (*Snapshot, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, fmt.Errorf("inventory: reading %s: %w", rootDir, err)
	}

	snap := &Snapshot{
		ToSend:  make(map[string]map[string]DataFile),
		Deleted: make(map[string]map[string]DataFile),
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !e.IsDir() {
			continue
		}

		group := e.Name()
		groupDir := filepath.Join(rootDir, group)

		onDisk, err := scanGroupDir(groupDir)
		if err != nil {
			return nil, err
		}

		toSend, deleted := diff(onDisk, baseline, groupDir)

		snap.AllGroups = append(snap.AllGroups, group)

		if len(toSend) > 0 {
			snap.ToSend[group] = toSend
		}

		if len(deleted) > 0 {
			snap.Deleted[group] = deleted
		}
	}

	sort.Strings(snap.AllGroups)

	return snap, nil
}

// scanGroupDir returns every non-sidecar regular file directly inside dir,
// keyed by absolute path.
func scanGroupDir(dir string) (map[string]DataFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("inventory: reading group directory %s: %w", dir, err)
	}

	out := make(map[string]DataFile)

	for _, e := range entries {
		if e.IsDir() || hasSidecarSuffix(e.Name()) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		out[path] = DataFile{Path: path, SidecarPath: path + SidecarSuffix}
	}

	return out, nil
}

func hasSidecarSuffix(name string) bool {
	return len(name) > len(SidecarSuffix) && name[len(name)-len(SidecarSuffix):] == SidecarSuffix
}

// diff compares what's on disk in groupDir against the baseline's subset
// that falls under groupDir, yielding toSend (new) and deleted (gone).
func diff(onDisk map[string]DataFile, baseline map[string]struct{}, groupDir string) (toSend, deleted map[string]DataFile) {
	toSend = make(map[string]DataFile)
	deleted = make(map[string]DataFile)

	for path, df := range onDisk {
		if _, known := baseline[path]; !known {
			toSend[path] = df
		}
	}

	prefix := groupDir + string(filepath.Separator)
	for path := range baseline {
		if filepath.Dir(path)+string(filepath.Separator) != prefix {
			continue
		}

		if _, stillThere := onDisk[path]; !stillThere {
			deleted[path] = DataFile{Path: path, SidecarPath: path + SidecarSuffix}
		}
	}

	return toSend, deleted
}
