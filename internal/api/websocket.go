package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tank-arena/internal/config"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// Input messages per second per connection when the hub has no Throttle
	wsInputPerSec = 60

	writeWait = 2 * time.Second
)

// wsClient tracks a WebSocket connection with its source IP
type wsClient struct {
	conn *websocket.Conn
	ip   string
}

// wsMessage is a client-to-server frame. Only "input" is understood.
type wsMessage struct {
	Type string `json:"type"`
	InputRequest
}

// WebSocketHub manages all WebSocket connections with DoS protection.
// It pushes snapshots out and feeds input messages into the engine.
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex

	engine   EngineInterface
	upgrader websocket.Upgrader
	logger   *zap.Logger
	rejects  RejectRecorder

	// Connection limiting per IP and the shared input budget
	conns    *connLimit
	throttle *Throttle
}

// HubOptions configures NewWebSocketHub.
type HubOptions struct {
	Engine   EngineInterface
	Origins  []string // accepted in addition to localhost
	MaxPerIP int      // concurrent connections per client, default 10
	Throttle *Throttle
	Rejects  RejectRecorder
	Logger   *zap.Logger
}

// NewWebSocketHub creates a new hub with connection limiting. Input messages
// draw from the Throttle's per-client input bucket; without one each
// connection gets its own limiter.
func NewWebSocketHub(opts HubOptions) *WebSocketHub {
	if opts.MaxPerIP <= 0 {
		opts.MaxPerIP = config.DefaultServer().MaxWSPerIP
	}
	if opts.Rejects == nil {
		opts.Rejects = nopRejects{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	origins := opts.Origins
	h := &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		engine:     opts.Engine,
		logger:     opts.Logger.Named("ws"),
		rejects:    opts.Rejects,
		conns:      newConnLimit(opts.MaxPerIP),
		throttle:   opts.Throttle,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if IsAllowedOrigin(origin, origins) {
				return true
			}
			// Log rejected origin for security monitoring
			h.logger.Warn("connection rejected", zap.String("origin", origin))
			h.rejects.Rejected(RejectOrigin)
			return false
		},
	}
	return h
}

// Run owns the client set until ctx is cancelled, then closes every connection.
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn, client := range h.clients {
				h.conns.release(client.ip)
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			updateWSConnections(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client connected", zap.String("ip", client.ip), zap.Int("total", count))
			updateWSConnections(count)

		case conn := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[conn]
			if ok {
				h.removeLocked(conn)
			}
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				h.logger.Info("client disconnected", zap.Int("remaining", count))
			}
			updateWSConnections(count)

		case message := <-h.broadcast:
			var failed []*websocket.Conn
			h.mu.RLock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()

			if len(failed) > 0 {
				h.mu.Lock()
				for _, conn := range failed {
					h.removeLocked(conn)
				}
				updateWSConnections(len(h.clients))
				h.mu.Unlock()
			}
			incrementWSMessages()
		}
	}
}

// removeLocked drops conn and frees its IP slot. Caller holds h.mu.
func (h *WebSocketHub) removeLocked(conn *websocket.Conn) {
	if client, ok := h.clients[conn]; ok {
		h.conns.release(client.ip)
		delete(h.clients, conn)
	}
	conn.Close()
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	msg := map[string]interface{}{
		"event": event,
		"data":  data,
	}

	jsonBytes, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("broadcast encode failed", zap.String("event", event), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
		// Channel full, skip (backpressure)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastLoop pushes the latest snapshot hz times per second until ctx is done.
func (h *WebSocketHub) BroadcastLoop(ctx context.Context, hz int) {
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.ClientCount() == 0 {
				continue
			}
			snap := h.engine.GetSnapshot()
			if snap.Sequence == lastSeq {
				continue
			}
			lastSeq = snap.Sequence
			h.Broadcast("game:state", snap)
		}
	}
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Get client IP for rate limiting
	ip := clientIP(r)

	// Check total connection limit
	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		h.logger.Warn("connection rejected: total limit reached", zap.Int("total", total))
		h.rejects.Rejected(RejectWSTotalLimit)
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	// Check per-IP connection limit
	if !h.conns.acquire(ip) {
		h.logger.Warn("connection rejected: per-IP limit reached", zap.String("ip", ip))
		h.rejects.Rejected(RejectWSIPLimit)
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	// Upgrade to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", zap.Error(err))
		h.conns.release(ip) // Release the slot we reserved
		return
	}

	// Register the connection
	select {
	case h.register <- &wsClient{conn: conn, ip: ip}:
	case <-h.done:
		h.conns.release(ip)
		conn.Close()
		return
	}

	// Read input messages from the client
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()

		conn.SetReadLimit(1024)
		allow := h.inputGate(ip)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var msg wsMessage
			if err := json.Unmarshal(message, &msg); err != nil || msg.Type != "input" {
				continue
			}
			if !allow() {
				continue
			}
			msg.InputRequest.apply(h.engine)
		}
	}()
}

// inputGate returns the rate check for one connection's input messages.
func (h *WebSocketHub) inputGate(ip string) func() bool {
	if h.throttle != nil {
		return func() bool { return h.throttle.AllowInput(ip) }
	}
	limiter := rate.NewLimiter(wsInputPerSec, wsInputPerSec)
	return limiter.Allow
}

// ConnectionsFrom returns the open connections for one client address.
func (h *WebSocketHub) ConnectionsFrom(ip string) int {
	return h.conns.count(ip)
}
