package websocket

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict origins once the web client domain is configurable
	CheckOrigin: func(r *http.Request) bool { return true },
}

type RateLimitConfig struct {
	Enabled          bool
	ConnectionsPerIP int
}

// WebSocketHandler upgrades authenticated requests and hands the connection
// to the gateway. Nothing is registered until the client sends register.
type WebSocketHandler struct {
	gateway       Dispatcher
	authenticator AuthenticatorFunc

	MaxConnections int
	RateLimit      RateLimitConfig

	active      atomic.Int64
	connPerIP   map[string]int
	connPerIPMu sync.Mutex
}

func NewWebSocketHandler(gateway Dispatcher, authenticator AuthenticatorFunc) *WebSocketHandler {
	return &WebSocketHandler{
		gateway:       gateway,
		authenticator: authenticator,
		connPerIP:     make(map[string]int),
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, err := h.authenticateConnection(r)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("ws: authentication failed")
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	if h.MaxConnections > 0 && h.active.Load() >= int64(h.MaxConnections) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	clientIP := h.getClientIP(r)
	if !h.acquireIP(clientIP) {
		log.Warn().Str("ip", clientIP).Msg("ws: connection limit per ip reached")
		http.Error(w, "too many connections from this address", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.releaseIP(clientIP)
		// Upgrade already wrote the error response
		log.Error().Err(err).Msg("ws: upgrade failed")
		return
	}

	client := NewClient(principal, conn)
	h.active.Add(1)
	h.gateway.Connect(client)

	client.Start(h.gateway, func() {
		h.active.Add(-1)
		h.releaseIP(clientIP)
	})

	log.Info().Str("clientID", client.ID).Str("userID", principal.UserID).Str("ip", clientIP).Msg("ws: connection established")
}

func (h *WebSocketHandler) ActiveConnections() int64 {
	return h.active.Load()
}
