// Package rpcclient implements the length-framed binary-protocol TCP client
// spec.md §4.5 requires: one logical connection per cycle, each request
// framed as an opcode byte plus a length-prefixed payload, each response
// framed as a length-prefixed payload. The framing technique (explicit
// length prefixes, no delimiters) follows the streaming-transport idiom
// read from the retrieval pack's AIStore reference material; the retry
// wrapper around Dial follows the teacher's internal/graph/client.go
// backoff shape.
package rpcclient

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Opcodes, one per operation in spec.md's RPC table.
const (
	opCheck                byte = 1
	opStartSync            byte = 2
	opInit                 byte = 3
	opInitSyncData         byte = 4
	opSyncData             byte = 5
	opCheckDataMD5         byte = 6
	opSyncDeletedFileName  byte = 7
	opEndSync              byte = 8
)

// maxFrameSize bounds a single frame so a corrupt length prefix can't make
// the client allocate unbounded memory.
const maxFrameSize = 64 << 20 // 64 MiB; comfortably above DATA_CHUNK_SIZE

// ResultStatus is the wire-level result shape spec.md §6 defines:
// {success, errorMsg, msg}.
type ResultStatus struct {
	Success  bool
	ErrorMsg string
	Msg      string
}

// writeRequest writes one opcode-tagged, length-prefixed frame.
func writeRequest(w io.Writer, op byte, payload []byte) error {
	header := make([]byte, 5)
	header[0] = op
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("rpcclient: writing frame header: %w", err)
	}

	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("rpcclient: writing frame payload: %w", err)
		}
	}

	return nil
}

// readResponse reads one length-prefixed response payload.
func readResponse(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, fmt.Errorf("rpcclient: reading response length: %w", err)
	}

	n := binary.BigEndian.Uint32(lenBuf)
	if n > maxFrameSize {
		return nil, fmt.Errorf("rpcclient: response frame of %d bytes exceeds maximum %d", n, maxFrameSize)
	}

	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("rpcclient: reading response payload: %w", err)
		}
	}

	return payload, nil
}

// encodeStrings packs a sequence of strings as [uint32 len][bytes]... .
func encodeStrings(fields ...string) []byte {
	out := make([]byte, 0, 32)

	for _, f := range fields {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f)))
		out = append(out, lenBuf[:]...)
		out = append(out, f...)
	}

	return out
}

// decodeStrings unpacks count strings encoded by encodeStrings.
func decodeStrings(payload []byte, count int) ([]string, error) {
	out := make([]string, 0, count)

	for range count {
		if len(payload) < 4 {
			return nil, fmt.Errorf("rpcclient: truncated field length")
		}

		n := binary.BigEndian.Uint32(payload[:4])
		payload = payload[4:]

		if uint32(len(payload)) < n {
			return nil, fmt.Errorf("rpcclient: truncated field body")
		}

		out = append(out, string(payload[:n]))
		payload = payload[n:]
	}

	return out, nil
}

// decodeResultStatus decodes {success byte}{errorMsg} responses.
func decodeResultStatus(payload []byte) (ResultStatus, error) {
	if len(payload) < 1 {
		return ResultStatus{}, fmt.Errorf("rpcclient: empty ResultStatus payload")
	}

	success := payload[0] != 0

	fields, err := decodeStrings(payload[1:], 1)
	if err != nil {
		return ResultStatus{}, err
	}

	return ResultStatus{Success: success, ErrorMsg: fields[0]}, nil
}

// decodeResultStatusWithMsg decodes {success byte}{errorMsg}{msg} responses,
// used only by checkDataMD5 where msg echoes the receiver-computed digest.
func decodeResultStatusWithMsg(payload []byte) (ResultStatus, error) {
	if len(payload) < 1 {
		return ResultStatus{}, fmt.Errorf("rpcclient: empty ResultStatus payload")
	}

	success := payload[0] != 0

	fields, err := decodeStrings(payload[1:], 2)
	if err != nil {
		return ResultStatus{}, err
	}

	return ResultStatus{Success: success, ErrorMsg: fields[0], Msg: fields[1]}, nil
}
