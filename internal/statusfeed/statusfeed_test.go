package statusfeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	return port
}

func TestFeed_PublishReachesSubscriber(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(&testLogWriter{t: t}, nil))
	addr := "127.0.0.1:" + strconv.Itoa(freePort(t))

	f := New(addr, logger)
	require.NoError(t, f.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Cleanup(func() { require.NoError(t, f.Stop(context.Background())) })

	var conn *websocket.Conn

	require.Eventually(t, func() bool {
		c, _, err := websocket.Dial(ctx, "ws://"+addr+"/status", nil)
		if err != nil {
			return false
		}

		conn = c

		return true
	}, 2*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		f.mu.Lock()
		n := len(f.subs)
		f.mu.Unlock()

		return n == 1
	}, time.Second, 10*time.Millisecond)

	f.Publish(Event{State: "CONNECT", Detail: "dialing receiver", Timestamp: time.Now()})

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	require.Equal(t, "CONNECT", ev.State)
	require.Equal(t, "dialing receiver", ev.Detail)

	conn.Close(websocket.StatusNormalClosure, "")
}

type testLogWriter struct{ t *testing.T }

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))

	return len(p), nil
}
