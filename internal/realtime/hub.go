package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/gabarita-ai/gabarita/internal/domain"
	"github.com/gabarita-ai/gabarita/internal/identity"
)

const (
	defaultPingInterval = 30 * time.Second
	writeTimeout        = 5 * time.Second
)

// Hub tracks achievement sockets per user and delivers bus events to them.
type Hub struct {
	mu             sync.RWMutex
	conns          map[string]map[int64]*websocket.Conn // userID -> connID -> conn
	nextID         int64
	bus            Bus
	originPatterns []string
	pingInterval   time.Duration
	logger         *slog.Logger
}

// NewHub creates a hub publishing through bus. originPatterns follows
// websocket.AcceptOptions; "*" accepts any origin.
func NewHub(bus Bus, originPatterns []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if bus == nil {
		bus = NewMemoryBus()
	}
	return &Hub{
		conns:          make(map[string]map[int64]*websocket.Conn),
		bus:            bus,
		originPatterns: originPatterns,
		pingInterval:   defaultPingInterval,
		logger:         logger,
	}
}

// Start subscribes the hub to the bus. Delivery stops when ctx is done.
func (h *Hub) Start(ctx context.Context) error {
	if err := h.bus.StartForwarder(ctx, h.deliver); err != nil {
		return fmt.Errorf("start achievement forwarder: %w", err)
	}
	return nil
}

// PublishUnlock implements gamification.Publisher.
func (h *Hub) PublishUnlock(ctx context.Context, userID string, a domain.Achievement) error {
	return h.bus.Publish(ctx, NewUnlockEvent(userID, a))
}

// ConnectionCount returns how many sockets userID has open.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

func (h *Hub) register(userID string, conn *websocket.Conn) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	if _, ok := h.conns[userID]; !ok {
		h.conns[userID] = make(map[int64]*websocket.Conn)
	}
	h.conns[userID][id] = conn
	return id
}

func (h *Hub) unregister(userID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if userConns, ok := h.conns[userID]; ok {
		delete(userConns, id)
		if len(userConns) == 0 {
			delete(h.conns, userID)
		}
	}
}

func (h *Hub) deliver(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to marshal achievement event", "error", err)
		return
	}

	// Snapshot connections so writes happen without the lock.
	h.mu.RLock()
	userConns := h.conns[ev.UserID]
	conns := make([]*websocket.Conn, 0, len(userConns))
	for _, c := range userConns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			h.logger.Debug("WebSocket write error", "error", err, "user_id", ev.UserID)
		}
		cancel()
	}
}

// ServeHTTP upgrades GET /ws/achievements and holds the socket open until the
// client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}
	if userID == "" || !identity.ValidUserID(userID) {
		http.Error(w, `{"error": "userId is required"}`, http.StatusBadRequest)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	connID := h.register(userID, ws)
	defer h.unregister(userID, connID)
	h.logger.Info("Achievement stream connected", "user_id", userID, "conn_id", connID)

	// The client never sends data; CloseRead services control frames and
	// cancels ctx once the peer goes away.
	ctx := ws.CloseRead(r.Context())

	keepalive := time.NewTicker(h.pingInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Achievement stream disconnected", "user_id", userID, "conn_id", connID)
			return
		case <-keepalive.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := ws.Ping(pingCtx)
			cancel()
			if err != nil {
				h.logger.Warn("Achievement stream ping failed", "error", err, "user_id", userID)
				return
			}
		}
	}
}

// RegisterRoutes registers the achievement WebSocket endpoint.
func (h *Hub) RegisterRoutes(r chi.Router) {
	r.Get("/ws/achievements", h.ServeHTTP)
}
