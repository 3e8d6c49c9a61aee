// Package statusfeed broadcasts the orchestrator's cycle-state transitions
// over a loopback websocket so a local operator tool can watch a cycle
// progress live, without polling the history database or tailing logs. It
// is purely additive observability: nothing in the sync protocol depends on
// a client being connected, and a broadcast that finds no subscribers is a
// silent no-op.
package statusfeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Event is one state transition broadcast to subscribers.
type Event struct {
	State     string    `json:"state"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Feed accepts websocket connections on a loopback address and fan-outs
// Publish calls to every currently-connected subscriber.
type Feed struct {
	logger *slog.Logger
	server *http.Server

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
}

// New creates a Feed listening on addr (e.g. "127.0.0.1:7777"). Start must
// be called to begin serving.
func New(addr string, logger *slog.Logger) *Feed {
	f := &Feed{
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", f.handleStatus)

	f.server = &http.Server{Addr: addr, Handler: mux}

	return f
}

// Start begins serving in a background goroutine. Returns once the
// listener is bound so callers know the address is ready, or an error if
// binding failed.
func (f *Feed) Start() error {
	ln, err := net.Listen("tcp", f.server.Addr)
	if err != nil {
		return err
	}

	go func() {
		if err := f.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			f.logger.Warn("status feed server error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the feed down, closing every open subscriber connection.
func (f *Feed) Stop(ctx context.Context) error {
	f.mu.Lock()
	for sub := range f.subs {
		sub.conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
	f.mu.Unlock()

	return f.server.Shutdown(ctx)
}

// Publish broadcasts ev to every connected subscriber. If a subscriber's
// buffer is full, ev is dropped for that subscriber (which stays connected)
// rather than blocking the publisher — this feed is
// advisory, never a dependency of the sync cycle it reports on.
func (f *Feed) Publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subs {
		select {
		case sub.send <- ev:
		default:
			f.logger.Warn("status feed subscriber too slow, dropping event")
		}
	}
}

func (f *Feed) handleStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		f.logger.Warn("status feed accept failed", "error", err)

		return
	}

	sub := &subscriber{conn: conn, send: make(chan Event, 8)}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.subs, sub)
		f.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	f.writeLoop(r.Context(), sub)
}

func (f *Feed) writeLoop(ctx context.Context, sub *subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.send:
			if !ok {
				return
			}

			payload, err := json.Marshal(ev)
			if err != nil {
				f.logger.Warn("status feed marshal failed", "error", err)

				continue
			}

			if err := sub.conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return
			}
		}
	}
}
