package engine

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	broadcastPongWait   = 60 * time.Second
	broadcastPingPeriod = (broadcastPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// activityEvent is one JSON message pushed to every activity subscriber
// after a request completes.
type activityEvent struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	Duration  int64  `json:"duration"`
	Timestamp string `json:"timestamp"`
}

// broadcaster fans out activityEvents to every currently subscribed
// WebSocket connection. Sends are best-effort: a failing subscriber is
// dropped and never fails the originating request.
type broadcaster struct {
	mu   sync.Mutex
	subs map[*websocket.Conn]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*websocket.Conn]struct{})}
}

// Subscribe upgrades r to a WebSocket, registers it, and blocks (running a
// ping/pong keepalive loop and draining incoming frames, which are
// otherwise ignored) until the connection closes or errors, at which point
// it is unregistered.
func (b *broadcaster) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("activity websocket upgrade failed", slog.Any("err", err))
		return
	}

	b.mu.Lock()
	b.subs[conn] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subs, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(broadcastPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(broadcastPongWait))
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(broadcastPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			b.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			b.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Publish sends event as JSON to every subscriber, dropping any connection
// whose write fails.
func (b *broadcaster) Publish(event activityEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.subs {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(b.subs, conn)
			conn.Close()
		}
	}
}
