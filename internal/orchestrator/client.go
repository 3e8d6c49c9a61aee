// Package orchestrator implements the Orchestrator: the cycle state machine
// (spec.md §4.8) that drives one sync cycle end to end, plus the periodic
// scheduler and liveness monitor that invoke it. Grounded in the teacher's
// internal/sync/orchestrator.go (per-unit work dispatch, SIGHUP-style
// reload shape simplified to this spec's single sequential cycle) and
// internal/sync/transfer.go's errgroup worker-pool idiom for the two
// scheduler workers.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/tonimelisma/tsreplica-go/internal/rpcclient"
)

// Client is the subset of rpcclient.Client the orchestrator drives
// directly (Check/StartSync/Init/EndSync); the rest of the RPC surface is
// used by internal/shipper. Defined as an interface so tests can inject a
// fake receiver without a real socket.
type Client interface {
	Close() error
	Check(host, identity string) (rpcclient.ResultStatus, error)
	StartSync() error
	Init(group string) (rpcclient.ResultStatus, error)
	InitSyncData(filename string) error
	SyncData(chunk []byte) (rpcclient.ResultStatus, error)
	CheckDataMD5(hexDigest string) (rpcclient.ResultStatus, error)
	SyncDeletedFileName(filename string) (rpcclient.ResultStatus, error)
	EndSync() error
}

// DialFunc establishes the one connection a cycle uses. The default wraps
// rpcclient.Dial; tests inject a fake.
type DialFunc func(ctx context.Context, addr string, logger *slog.Logger) (Client, error)

// dialRPC is the production DialFunc.
func dialRPC(ctx context.Context, addr string, logger *slog.Logger) (Client, error) {
	return rpcclient.Dial(ctx, addr, logger)
}
