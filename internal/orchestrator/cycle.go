package orchestrator

import (
	"context"
	"errors"

	"github.com/tonimelisma/tsreplica-go/internal/baseline"
	"github.com/tonimelisma/tsreplica-go/internal/config"
	"github.com/tonimelisma/tsreplica-go/internal/history"
	"github.com/tonimelisma/tsreplica-go/internal/identity"
	"github.com/tonimelisma/tsreplica-go/internal/inventory"
	"github.com/tonimelisma/tsreplica-go/internal/journal"
	"github.com/tonimelisma/tsreplica-go/internal/senderr"
	"github.com/tonimelisma/tsreplica-go/internal/shipper"
)

// RunCycle drives exactly one sync cycle through the state machine in
// spec.md §4.8: CONNECT -> IDENTIFY -> SCHEMA -> DIR_LOOP{GROUP_LOOP{
// DELETIONS -> ADDITIONS}} -> FINALIZE. A SyncConnectionError from any
// non-finalize phase aborts the cycle and calls stop(). In finalize, a
// failing EndSync is logged and does not invalidate the cycle; a failed
// baseline promotion is logged and returned, leaving the journal in place
// for the next cycle's recovery. Overlapping
// calls (the scheduler firing while a cycle is already running) are
// dropped, guarded by syncInProgress.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if !o.syncInProgress.CompareAndSwap(false, true) {
		o.Logger.Debug("cycle already in progress, dropping overlapping trigger")

		return nil
	}
	defer o.syncInProgress.Store(false)

	var cycleID int64

	if o.History != nil {
		var err error

		cycleID, err = o.History.BeginCycle(ctx)
		if err != nil {
			o.Logger.Warn("history: failed to record cycle start", "error", err)
		}
	}

	stats := history.CycleStats{}
	err := o.runCycleLocked(ctx, &stats)

	if o.History != nil {
		if finErr := o.History.FinishCycle(ctx, cycleID, stats, err); finErr != nil {
			o.Logger.Warn("history: failed to record cycle finish", "error", finErr)
		}
	}

	return err
}

func (o *Orchestrator) runCycleLocked(ctx context.Context, stats *history.CycleStats) error {
	o.publish("CONNECT", o.Cfg.Receiver.Addr())

	client, err := o.Dial(ctx, o.Cfg.Receiver.Addr(), o.Logger)
	if err != nil {
		o.stop()

		return err
	}
	defer client.Close()

	o.publish("IDENTIFY", "")

	id, err := identity.GetOrCreateIdentity(o.Cfg.IdentityFilePath)
	if err != nil {
		o.stop()

		return senderr.Wrap("identify", senderr.ErrIOError, err.Error())
	}

	rs, err := client.Check(o.Cfg.Receiver.Host, id)
	if err != nil {
		o.stop()

		return err
	}

	if !rs.Success {
		o.Logger.Error("receiver rejected check", "error_msg", rs.ErrorMsg)

		return senderr.Wrap("check", senderr.ErrReceiverRejected, rs.ErrorMsg)
	}

	if err := client.StartSync(); err != nil {
		o.stop()

		return err
	}

	lastLocal, err := o.loadBaselineWithRecovery()
	if err != nil {
		o.stop()

		return err
	}

	jrn, err := journal.Open(o.Cfg.JournalFilePath)
	if err != nil {
		o.stop()

		return senderr.Wrap("journal", senderr.ErrIOError, err.Error())
	}
	defer jrn.Close()

	o.publish("SCHEMA", "")

	for i := range o.Cfg.Directories {
		if err := o.shipSchema(client, o.Cfg.Directories[i], stats); err != nil {
			o.stop()

			return err
		}
	}

	if err := o.runDirLoop(ctx, client, jrn, lastLocal, stats); err != nil {
		o.stop()

		return err
	}

	return o.finalize(client, lastLocal)
}

// shipSchema ships one directory's schema log, if configured, advancing its
// cursor file only on success (spec.md §4.6, I2).
func (o *Orchestrator) shipSchema(client Client, dir config.Directory, stats *history.CycleStats) error {
	if dir.SchemaLogPath == "" {
		return nil
	}

	path := cursorPath(dir.SchemaLogPath)

	before, err := shipper.ReadCursor(path)
	if err != nil {
		o.Logger.Warn("schema: could not read prior cursor", "directory", dir.Name, "error", err)
	}

	ss := &shipper.SchemaShipper{
		Client:    client,
		BatchLine: o.Cfg.BatchLine,
		MaxTry:    o.Cfg.MaxSyncFileTry,
	}

	newCursor, err := ss.Ship(dir.SchemaLogPath, path)
	if err != nil {
		return err
	}

	stats.SchemaLinesShipped += newCursor - before

	return nil
}

// cursorPath derives the schema cursor file's path from its schema log.
func cursorPath(schemaLogPath string) string {
	return schemaLogPath + ".cursor"
}

// runDirLoop implements DIR_LOOP{GROUP_LOOP{DELETIONS -> ADDITIONS}}: for
// each configured data directory, snapshot its inventory and ship every
// group's deletions before its additions (spec.md I6).
func (o *Orchestrator) runDirLoop(
	ctx context.Context, client Client, jrn *journal.Journal, lastLocal map[string]struct{}, stats *history.CycleStats,
) error {
	for i := range o.Cfg.Directories {
		dir := o.Cfg.Directories[i]

		snap, err := o.Inventory.Snapshot(ctx, dir.Path, lastLocal)
		if err != nil {
			o.Logger.Warn("inventory snapshot failed, skipping directory", "directory", dir.Name, "error", err)

			continue
		}

		if err := o.runGroupLoop(client, jrn, snap, lastLocal, stats); err != nil {
			return err
		}
	}

	return nil
}

// runGroupLoop ships deletions then additions for every group in snap.
func (o *Orchestrator) runGroupLoop(
	client Client, jrn *journal.Journal, snap *inventory.Snapshot, lastLocal map[string]struct{}, stats *history.CycleStats,
) error {
	fs := &shipper.FileShipper{
		Client:    client,
		ChunkSize: o.Cfg.DataChunkSizeBytes,
		MaxTry:    o.Cfg.MaxSyncFileTry,
	}

	for _, group := range snap.AllGroups {
		rs, err := client.Init(group)
		if err != nil {
			return err
		}

		if !rs.Success {
			o.Logger.Warn("receiver rejected group init, skipping group", "group", group, "error_msg", rs.ErrorMsg)

			continue
		}

		if err := jrn.BeginDeletions(); err != nil {
			o.Logger.Warn("journal write failed", "error", err)
		}

		deleted := snap.Deleted[group]
		if delErr := fs.ShipDeletions(client, deleted, lastLocal, jrn); delErr != nil {
			o.Logger.Warn("some deletions failed, continuing group", "group", group, "error", delErr)
		}

		stats.FilesDeleted += len(deleted)

		if err := jrn.BeginTSFiles(); err != nil {
			o.Logger.Warn("journal write failed", "error", err)
		}

		toSend := snap.ToSend[group]

		addErr := fs.ShipAdditions(o.Cfg.SnapshotDir, group, toSend, lastLocal, jrn)
		if addErr != nil {
			if errors.Is(addErr, senderr.ErrSyncConnection) {
				return addErr
			}

			o.Logger.Warn("some additions failed, continuing group", "group", group, "error", addErr)
		}

		stats.FilesShipped += len(toSend)
	}

	return nil
}

// finalize implements spec.md §4.8's Finalize: promote the baseline,
// recursively clear the snapshot directory, and delete the journal — the
// commit point for invariant I4. A failing EndSync is logged, not fatal.
func (o *Orchestrator) finalize(client Client, lastLocal map[string]struct{}) error {
	o.publish("FINALIZE", "")

	if err := baseline.Promote(o.Cfg.BaselineFilePath, lastLocal); err != nil {
		o.Logger.Error("baseline promotion failed", "error", err)

		return senderr.Wrap("finalize", senderr.ErrIOError, err.Error())
	}

	if err := shipper.RemoveSnapshotDir(o.Cfg.SnapshotDir); err != nil {
		o.Logger.Warn("snapshot directory cleanup failed", "error", err)
	}

	if err := journal.Remove(o.Cfg.JournalFilePath); err != nil {
		o.Logger.Warn("journal removal failed", "error", err)
	}

	if err := client.EndSync(); err != nil {
		o.Logger.Warn("endSync failed after a fully shipped cycle", "error", err)
	}

	o.publish("IDLE", "")

	return nil
}

// loadBaselineWithRecovery loads the on-disk baseline and, if an existing
// progress journal shows a prior run was interrupted, folds its
// receiver-confirmed deletions and sends into the in-memory baseline before
// this cycle's inventory diff runs. This is the Recovery Analyzer's chosen
// strategy (spec.md §4.4, §9): resume rather than roll back, so a crash
// right after a journal SENT record never causes that file to be reshipped
// (P7) while never promoting anything the receiver did not confirm (I3).
func (o *Orchestrator) loadBaselineWithRecovery() (map[string]struct{}, error) {
	set, err := baseline.Load(o.Cfg.BaselineFilePath)
	if err != nil {
		return nil, senderr.Wrap("baseline", senderr.ErrIOError, err.Error())
	}

	if !journal.Exists(o.Cfg.JournalFilePath) {
		return set, nil
	}

	o.Logger.Info("progress journal found, resuming interrupted cycle")

	recovered, ok, err := journal.Analyze(o.Cfg.JournalFilePath)
	if err != nil {
		return nil, senderr.Wrap("recovery", senderr.ErrIOError, err.Error())
	}

	if ok {
		for path := range recovered.Sent {
			set[path] = struct{}{}
		}

		for path := range recovered.Deleted {
			delete(set, path)
		}
	}

	if err := journal.Remove(o.Cfg.JournalFilePath); err != nil {
		o.Logger.Warn("could not remove stale journal after recovery", "error", err)
	}

	return set, nil
}
