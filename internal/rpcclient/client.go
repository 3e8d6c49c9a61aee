package rpcclient

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"

	"github.com/tonimelisma/tsreplica-go/internal/senderr"
)

// Backoff parameters for connection establishment, taken from the teacher's
// calcBackoff: base 1s, factor 2x, capped at 60s, +/-25% jitter.
const (
	backoffBase   = 1 * time.Second
	backoffMax    = 60 * time.Second
	backoffJitter = 0.25
	dialAttempts  = 5
)

// Client is a length-framed binary-protocol TCP client. One Client spans one
// logical connection for the duration of one sync cycle (spec.md §4.5); it
// is not safe for concurrent use from multiple goroutines.
type Client struct {
	conn   net.Conn
	logger *slog.Logger
}

// Dial establishes the one connection a cycle uses, retrying transient
// connection failures with exponential backoff. Once connected, no RPC-level
// retries happen here: spec.md requires any RPC failure to surface as
// SyncConnectionError to the orchestrator immediately.
func Dial(ctx context.Context, addr string, logger *slog.Logger) (*Client, error) {
	var lastErr error

	dialer := &net.Dialer{}

	for attempt := range dialAttempts {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return &Client{conn: conn, logger: logger}, nil
		}

		lastErr = err
		logger.Warn("rpc dial attempt failed", "attempt", attempt+1, "addr", addr, "error", err)

		if attempt == dialAttempts-1 {
			break
		}

		if err := waitBackoff(ctx, attempt); err != nil {
			return nil, err
		}
	}

	return nil, senderr.SyncConnectionErrorf("connect", "dialing %s: %v", addr, lastErr)
}

// waitBackoff sleeps calcBackoff(attempt), honoring context cancellation.
func waitBackoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(calcBackoff(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// calcBackoff returns base*2^attempt, capped at backoffMax, with +/-25%
// jitter, exactly as the teacher's graph client computes retry delays.
func calcBackoff(attempt int) time.Duration {
	d := backoffBase << attempt
	if d > backoffMax || d <= 0 {
		d = backoffMax
	}

	jitter := 1 + (rand.Float64()*2-1)*backoffJitter
	scaled := time.Duration(float64(d) * jitter)

	if scaled < 0 {
		scaled = backoffMax
	}

	return scaled
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Check performs the cycle-opening handshake: identity, receiver may reject.
func (c *Client) Check(host, identity string) (ResultStatus, error) {
	if err := writeRequest(c.conn, opCheck, encodeStrings(host, identity)); err != nil {
		return ResultStatus{}, wrapSyncErr("check", err)
	}

	payload, err := readResponse(c.conn)
	if err != nil {
		return ResultStatus{}, wrapSyncErr("check", err)
	}

	rs, err := decodeResultStatus(payload)
	if err != nil {
		return ResultStatus{}, wrapSyncErr("check", err)
	}

	return rs, nil
}

// StartSync announces the beginning of a cycle.
func (c *Client) StartSync() error {
	if err := writeRequest(c.conn, opStartSync, nil); err != nil {
		return wrapSyncErr("startSync", err)
	}

	if _, err := readResponse(c.conn); err != nil {
		return wrapSyncErr("startSync", err)
	}

	return nil
}

// Init announces the per-group preamble.
func (c *Client) Init(group string) (ResultStatus, error) {
	if err := writeRequest(c.conn, opInit, encodeStrings(group)); err != nil {
		return ResultStatus{}, wrapSyncErr("init", err)
	}

	payload, err := readResponse(c.conn)
	if err != nil {
		return ResultStatus{}, wrapSyncErr("init", err)
	}

	return decodeResultStatus(payload)
}

// InitSyncData begins streaming one file (the schema log or a DataFile).
func (c *Client) InitSyncData(filename string) error {
	if err := writeRequest(c.conn, opInitSyncData, encodeStrings(filename)); err != nil {
		return wrapSyncErr("initSyncData", err)
	}

	if _, err := readResponse(c.conn); err != nil {
		return wrapSyncErr("initSyncData", err)
	}

	return nil
}

// SyncData appends a chunk to the file currently being streamed.
func (c *Client) SyncData(chunk []byte) (ResultStatus, error) {
	if err := writeRequest(c.conn, opSyncData, chunk); err != nil {
		return ResultStatus{}, wrapSyncErr("syncData", err)
	}

	payload, err := readResponse(c.conn)
	if err != nil {
		return ResultStatus{}, wrapSyncErr("syncData", err)
	}

	return decodeResultStatus(payload)
}

// CheckDataMD5 ends a file's transfer, asking the receiver to confirm its
// computed digest matches hexDigest. ResultStatus.Msg echoes the
// receiver-computed digest; the caller must compare it to hexDigest itself
// (spec.md: "pass iff success ∧ msg == input").
func (c *Client) CheckDataMD5(hexDigest string) (ResultStatus, error) {
	if err := writeRequest(c.conn, opCheckDataMD5, encodeStrings(hexDigest)); err != nil {
		return ResultStatus{}, wrapSyncErr("checkDataMD5", err)
	}

	payload, err := readResponse(c.conn)
	if err != nil {
		return ResultStatus{}, wrapSyncErr("checkDataMD5", err)
	}

	return decodeResultStatusWithMsg(payload)
}

// SyncDeletedFileName tells the receiver filename was removed locally.
func (c *Client) SyncDeletedFileName(filename string) (ResultStatus, error) {
	if err := writeRequest(c.conn, opSyncDeletedFileName, encodeStrings(filename)); err != nil {
		return ResultStatus{}, wrapSyncErr("syncDeletedFileName", err)
	}

	payload, err := readResponse(c.conn)
	if err != nil {
		return ResultStatus{}, wrapSyncErr("syncDeletedFileName", err)
	}

	return decodeResultStatus(payload)
}

// EndSync announces the end of a cycle. Per spec.md §7, a failure here is
// logged but does not invalidate an otherwise-successful cycle; callers
// should not treat this error as cycle-aborting.
func (c *Client) EndSync() error {
	if err := writeRequest(c.conn, opEndSync, nil); err != nil {
		return wrapSyncErr("endSync", err)
	}

	if _, err := readResponse(c.conn); err != nil {
		return wrapSyncErr("endSync", err)
	}

	return nil
}

func wrapSyncErr(phase string, err error) error {
	return senderr.SyncConnectionErrorf(phase, "%v", err)
}
