package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ft-lockup/backend/internal/auth"
	"github.com/ft-lockup/backend/internal/config"
	"github.com/ft-lockup/backend/internal/events"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WSHub pushes ledger events to the websocket connections of the account
// they concern.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[string][]*wsConn
}

// wsConn serializes writes: gorilla-style connections allow one writer at a time.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[string][]*wsConn),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.StreamLockup, h.dispatch)
}

func (h *WSHub) dispatch(event events.Event) {
	account := event.Account()
	if account == "" {
		return
	}
	h.SendToAccount(account, event)
}

func (h *WSHub) SendToAccount(accountID string, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	conns := append([]*wsConn(nil), h.connections[accountID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.log.Debug("ws write failed", zap.String("account_id", accountID), zap.Error(err))
		}
	}
}

func (h *WSHub) register(accountID string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[accountID] = append(h.connections[accountID], c)
}

func (h *WSHub) unregister(accountID string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.connections[accountID]
	for i, existing := range conns {
		if existing == c {
			h.connections[accountID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.connections[accountID]) == 0 {
		delete(h.connections, accountID)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	// Extract token from query
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	accountID := claims.AccountID
	c := &wsConn{conn: conn}
	h.register(accountID, c)
	defer func() {
		h.unregister(accountID, c)
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
