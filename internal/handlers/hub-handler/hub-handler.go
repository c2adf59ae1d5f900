package hub_handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	"github.com/quocdatk18/appchat-sub000/internal/handlers"
	"github.com/quocdatk18/appchat-sub000/internal/presence"
	"github.com/quocdatk18/appchat-sub000/internal/websocket"
)

type HubHandler struct {
	Hub      *websocket.Hub
	Presence *presence.Table
}

func NewHubHandler(hub *websocket.Hub, table *presence.Table) *HubHandler {
	return &HubHandler{
		Hub:      hub,
		Presence: table,
	}
}

func (h *HubHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	handlers.Respond(w, r, http.StatusOK, "ok", map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "websocket-server",
	})
}

type hubStatsResponse struct {
	websocket.HubStats
	OnlineUsers int `json:"online_users"`
}

func (h *HubHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	resp := hubStatsResponse{HubStats: h.Hub.GetHubStats()}
	if h.Presence != nil {
		resp.OnlineUsers = h.Presence.OnlineCount()
	}
	handlers.Respond(w, r, http.StatusOK, "get websocket stats", resp)
	return nil
}

// Room handlers

func (h *HubHandler) HandleGetRoomStats(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		return app_error.Validation("room id is required", "roomId")
	}
	handlers.Respond(w, r, http.StatusOK, "get websocket room stats", h.Hub.GetRoomStats(roomID))
	return nil
}

func (h *HubHandler) HandleGetRoomClients(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	roomID := chi.URLParam(r, "roomId")
	clients := h.Hub.GetRoomClients(roomID)

	type ClientInfo struct {
		ID          string    `json:"id"`
		UserID      string    `json:"user_id"`
		ConnectedAt time.Time `json:"connected_at"`
		LastSeen    time.Time `json:"last_seen"`
	}

	clientList := make([]ClientInfo, 0, len(clients))
	for _, client := range clients {
		clientList = append(clientList, ClientInfo{
			ID:          client.ID,
			UserID:      client.UserID,
			ConnectedAt: client.ConnectedAt,
			LastSeen:    client.GetLastSeen(),
		})
	}

	handlers.Respond(w, r, http.StatusOK, "successfully get rooms client", map[string]any{
		"room_id": roomID,
		"count":   len(clientList),
		"clients": clientList,
	})
	return nil
}
