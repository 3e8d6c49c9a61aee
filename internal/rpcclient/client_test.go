package rpcclient

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeReceiver is a minimal in-process stand-in for the receiver side of
// the protocol, just enough to exercise Client's framing and decoding.
func fakeReceiver(t *testing.T, ln net.Listener, scripted map[byte]ResultStatus) {
	t.Helper()

	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		header := make([]byte, 5)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}

		op := header[0]
		n := binary.BigEndian.Uint32(header[1:])

		payload := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(conn, payload); err != nil {
				return
			}
		}

		rs := scripted[op]

		var resp []byte

		switch op {
		case opStartSync, opEndSync, opInitSyncData:
			resp = []byte{}
		case opCheckDataMD5:
			resp = append([]byte{boolByte(rs.Success)}, encodeStrings(rs.ErrorMsg, rs.Msg)...)
		default:
			resp = append([]byte{boolByte(rs.Success)}, encodeStrings(rs.ErrorMsg)...)
		}

		lenBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBuf, uint32(len(resp)))

		if _, err := conn.Write(lenBuf); err != nil {
			return
		}

		if len(resp) > 0 {
			if _, err := conn.Write(resp); err != nil {
				return
			}
		}
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}

	return 0
}

func TestClient_FullCycleRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	scripted := map[byte]ResultStatus{
		opCheck:               {Success: true},
		opInit:                {Success: true},
		opSyncData:            {Success: true},
		opCheckDataMD5:        {Success: true, Msg: "d41d8cd98f00b204e9800998ecf8427e"},
		opSyncDeletedFileName: {Success: true},
	}

	go fakeReceiver(t, ln, scripted)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	c, err := Dial(context.Background(), ln.Addr().String(), logger)
	require.NoError(t, err)
	defer c.Close()

	rs, err := c.Check("host", "identity")
	require.NoError(t, err)
	require.True(t, rs.Success)

	require.NoError(t, c.StartSync())

	rs, err = c.Init("group1")
	require.NoError(t, err)
	require.True(t, rs.Success)

	require.NoError(t, c.InitSyncData("schema.log"))

	rs, err = c.SyncData([]byte("hello"))
	require.NoError(t, err)
	require.True(t, rs.Success)

	rs, err = c.CheckDataMD5("d41d8cd98f00b204e9800998ecf8427e")
	require.NoError(t, err)
	require.True(t, rs.Success)
	require.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", rs.Msg)

	rs, err = c.SyncDeletedFileName("gone.ts")
	require.NoError(t, err)
	require.True(t, rs.Success)

	require.NoError(t, c.EndSync())
}

func TestDial_FailsWhenNothingIsListening(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// The address of an already-closed listener: nothing is listening. The
	// short deadline ends Dial during its first backoff wait.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = Dial(ctx, addr, logger)
	require.Error(t, err)
}
