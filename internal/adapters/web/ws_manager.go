// Package web serves the HTTP API and the live WebSocket feed.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/telemetry"
)

// Message types on the live feed.
const (
	MessageCapture = "capture"
	MessageStation = "station"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts requests without an Origin header or whose Origin host
// matches the request host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// WSManager fans capture records and station events out to WebSocket
// clients. It is both a CaptureSink and a StationEventSink.
type WSManager struct {
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
	outbound chan WSMessage
	logger   *slog.Logger
}

func NewWSManager(logger *slog.Logger) *WSManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSManager{
		clients:  make(map[*websocket.Conn]struct{}),
		outbound: make(chan WSMessage, 256),
		logger:   logger,
	}
}

// Start runs the broadcaster until ctx is cancelled, then closes all clients.
func (m *WSManager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				m.closeAll()
				return
			case msg := <-m.outbound:
				m.broadcastMessage(msg)
			}
		}
	}()
}

// Publish queues a capture record for broadcast.
func (m *WSManager) Publish(c domain.Capture) {
	m.enqueue(WSMessage{Type: MessageCapture, Payload: c})
}

// HandleStationEvent queues a station event for broadcast.
func (m *WSManager) HandleStationEvent(ev domain.StationEvent) {
	m.enqueue(WSMessage{Type: MessageStation, Payload: ev})
}

func (m *WSManager) enqueue(msg WSMessage) {
	select {
	case m.outbound <- msg:
	default:
		telemetry.CapturesDropped.WithLabelValues("websocket").Inc()
	}
}

// ClientCount returns the number of connected clients.
func (m *WSManager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	m.mu.Lock()
	m.clients[conn] = struct{}{}
	m.mu.Unlock()
	m.logger.Info("websocket connected", "remote", r.RemoteAddr)

	// The feed is one-way; reading only detects the disconnect.
	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.clients, conn)
			m.mu.Unlock()
			conn.Close()
			m.logger.Info("websocket disconnected", "remote", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (m *WSManager) broadcastMessage(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error("websocket marshal failed", "type", msg.Type, "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(m.clients, conn)
		}
	}
}

func (m *WSManager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(m.clients, conn)
	}
}
