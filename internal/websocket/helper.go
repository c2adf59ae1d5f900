package websocket

import (
	"net/http"
	"strings"
)

func (h *WebSocketHandler) authenticateConnection(r *http.Request) (Principal, error) {
	if h.authenticator == nil {
		// Default authentication - extract from query param
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			return Principal{}, &AuthError{Message: "user_id is required"}
		}
		return Principal{UserID: userID}, nil
	}

	return h.authenticator(r)
}

func (h *WebSocketHandler) getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}

	return ip
}

func (h *WebSocketHandler) acquireIP(clientIP string) bool {
	if !h.RateLimit.Enabled || h.RateLimit.ConnectionsPerIP <= 0 {
		return true
	}

	h.connPerIPMu.Lock()
	defer h.connPerIPMu.Unlock()

	if h.connPerIP[clientIP] >= h.RateLimit.ConnectionsPerIP {
		return false
	}
	h.connPerIP[clientIP]++
	return true
}

func (h *WebSocketHandler) releaseIP(clientIP string) {
	if !h.RateLimit.Enabled || h.RateLimit.ConnectionsPerIP <= 0 {
		return
	}

	h.connPerIPMu.Lock()
	h.connPerIP[clientIP]--
	if h.connPerIP[clientIP] <= 0 {
		delete(h.connPerIP, clientIP)
	}
	h.connPerIPMu.Unlock()
}
