package web

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	ws "github.com/coder/websocket"

	appLog "schedview/internal/log"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// streamMessage is what viewers of a session receive over the websocket.
type streamMessage struct {
	Type  string `json:"type"`
	HTML  string `json:"html,omitempty"`
	Ready bool   `json:"ready,omitempty"`
}

// stream fans the renders of one widget session out to its websocket
// viewers. Slow viewers drop messages instead of blocking the widget.
type stream struct {
	mu      sync.Mutex
	clients map[*viewer]struct{}
	last    []byte
	closed  bool
}

func newStream() *stream {
	return &stream{clients: make(map[*viewer]struct{})}
}

// viewer is a single websocket connection.
type viewer struct {
	conn *ws.Conn
	send chan []byte
}

// register adds v and queues the latest render for it. It reports false
// once the stream is closed.
func (s *stream) register(v *viewer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[v] = struct{}{}
	if s.last != nil {
		v.send <- s.last
	}
	return true
}

func (s *stream) unregister(v *viewer) {
	s.mu.Lock()
	if _, ok := s.clients[v]; ok {
		delete(s.clients, v)
		close(v.send)
	}
	s.mu.Unlock()
}

// publish sends msg to every viewer without blocking.
func (s *stream) publish(msg streamMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		appLog.Error("marshal stream message", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if msg.Type == "render" {
		s.last = data
	}
	for v := range s.clients {
		select {
		case v.send <- data:
		default:
		}
	}
}

// close tells viewers the session is gone and disconnects them.
func (s *stream) close() {
	data, _ := json.Marshal(streamMessage{Type: "closed"})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for v := range s.clients {
		select {
		case v.send <- data:
		default:
		}
		delete(s.clients, v)
		close(v.send)
	}
}

func (s *stream) viewers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// run serves one connection until it closes or the stream drops it.
func (s *stream) run(ctx context.Context, conn *ws.Conn) {
	v := &viewer{conn: conn, send: make(chan []byte, sendBufferSize)}
	if !s.register(v) {
		_ = conn.Close(ws.StatusGoingAway, "session closed")
		return
	}
	defer s.unregister(v)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		v.writePump(ctx)
		cancel()
	}()
	v.readPump(ctx)
	_ = conn.Close(ws.StatusNormalClosure, "")
}

// readPump discards incoming messages; actions arrive over HTTP.
func (v *viewer) readPump(ctx context.Context) {
	for {
		if _, _, err := v.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (v *viewer) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-v.send:
			if !ok {
				return
			}
			if err := v.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := v.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
