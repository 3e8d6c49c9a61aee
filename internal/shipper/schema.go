// Package shipper implements the Schema Shipper and File Shipper (spec.md
// §4.6, §4.7): the retry-bounded, digest-verified streaming of the schema
// log and of data files over the RPC client. The retry-from-scratch-on-
// mismatch loop is grounded directly on the teacher's
// internal/sync/transfer_manager.go DownloadToFile hash-retry loop.
package shipper

import (
	"bufio"
	"crypto/md5" //nolint:gosec // mandated by spec.md §6 for receiver compatibility
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tonimelisma/tsreplica-go/internal/rpcclient"
	"github.com/tonimelisma/tsreplica-go/internal/senderr"
)

// syncDataClient is the subset of rpcclient.Client the shippers need;
// defined here so tests can supply a fake receiver without a real socket.
type syncDataClient interface {
	InitSyncData(filename string) error
	SyncData(chunk []byte) (rpcclient.ResultStatus, error)
	CheckDataMD5(hexDigest string) (rpcclient.ResultStatus, error)
}

// SchemaShipper ships the unshipped suffix of a schema log, digest-verified
// and retry-bounded (spec.md §4.6).
type SchemaShipper struct {
	Client    syncDataClient
	BatchLine int
	MaxTry    int
}

// Ship ships every line of schemaLogPath beyond the persisted cursor,
// advancing the cursor file only once the receiver confirms the digest.
// On success it returns the new cursor value.
func (s *SchemaShipper) Ship(schemaLogPath, cursorPath string) (newCursor int, err error) {
	cursor, err := readCursor(cursorPath)
	if err != nil {
		return 0, err
	}

	filename := filepath.Base(schemaLogPath)

	for attempt := 1; attempt <= s.MaxTry; attempt++ {
		linesShipped, digest, ok, shipErr := s.shipOnce(schemaLogPath, filename, cursor)
		if shipErr != nil {
			return 0, shipErr
		}

		if !ok {
			continue // digest mismatch or a syncData rejection; retry from cursor.
		}

		if err := writeCursor(cursorPath, cursor+linesShipped); err != nil {
			return 0, err
		}

		return cursor + linesShipped, nil
	}

	return 0, senderr.SyncConnectionErrorf("schema", "exhausted %d attempts shipping %s", s.MaxTry, schemaLogPath)
}

// shipOnce streams the suffix once and asks the receiver to confirm the
// digest. ok=false means a retriable mismatch or rejection, not a fatal
// error; err is only set for unrecoverable I/O or connection failures.
func (s *SchemaShipper) shipOnce(schemaLogPath, filename string, cursor int) (linesShipped int, digestHex string, ok bool, err error) {
	if err := s.Client.InitSyncData(filename); err != nil {
		return 0, "", false, err
	}

	f, err := os.Open(schemaLogPath)
	if err != nil {
		return 0, "", false, senderr.Wrap("schema", senderr.ErrIOError, err.Error())
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if err := skipLines(scanner, cursor); err != nil {
		return 0, "", false, senderr.Wrap("schema", senderr.ErrIOError, err.Error())
	}

	digest := md5.New()

	var buf strings.Builder

	lineCount := 0

	flush := func() (bool, error) {
		if buf.Len() == 0 {
			return true, nil
		}

		chunk := []byte(buf.String())
		digest.Write(chunk)

		rs, err := s.Client.SyncData(chunk)
		if err != nil {
			return false, err
		}

		buf.Reset()

		return rs.Success, nil
	}

	for scanner.Scan() {
		// Open question resolution: re-emit "\n" after every line, since the
		// receiver's reconstruction from raw bytes is not otherwise visible.
		buf.WriteString(scanner.Text())
		buf.WriteByte('\n')
		lineCount++

		if lineCount%s.BatchLine == 0 {
			success, err := flush()
			if err != nil {
				return 0, "", false, err
			}

			if !success {
				return 0, "", false, nil
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return 0, "", false, senderr.Wrap("schema", senderr.ErrIOError, err.Error())
	}

	success, err := flush()
	if err != nil {
		return 0, "", false, err
	}

	if !success {
		return 0, "", false, nil
	}

	digestHex = hex.EncodeToString(digest.Sum(nil))

	rs, err := s.Client.CheckDataMD5(digestHex)
	if err != nil {
		return 0, "", false, err
	}

	if !rs.Success || rs.Msg != digestHex {
		return 0, "", false, nil
	}

	return lineCount, digestHex, true, nil
}

// skipLines advances scanner past exactly n lines, per spec.md's resolved
// definition of schemaCursor as "number of lines already committed".
func skipLines(scanner *bufio.Scanner, n int) error {
	for range n {
		if !scanner.Scan() {
			return scanner.Err()
		}
	}

	return nil
}

// ReadCursor reads the schema cursor file at path; a missing file reads as
// 0. Exported for callers (e.g. the orchestrator) that report how many
// lines a Ship call advanced without Ship itself returning a delta.
func ReadCursor(path string) (int, error) {
	return readCursor(path)
}

// readCursor reads the schema cursor file; absent means 0.
func readCursor(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, senderr.Wrap("schema", senderr.ErrIOError, err.Error())
	}

	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, senderr.Wrap("schema", senderr.ErrIOError, fmt.Sprintf("invalid cursor in %s: %v", path, err))
	}

	return n, nil
}

// writeCursor persists the new schema cursor. An I/O failure here is
// returned by Ship as an error; the orchestrator handles it like any other
// schema-phase error, so it aborts the cycle rather than being logged and
// skipped, and the cursor stays at its previous value.
func writeCursor(path string, n int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return senderr.Wrap("schema", senderr.ErrIOError, err.Error())
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(n)), 0o644); err != nil {
		return senderr.Wrap("schema", senderr.ErrIOError, err.Error())
	}

	return nil
}

