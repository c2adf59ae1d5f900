package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Hub struct {
	// Room management
	rooms map[string]map[*Client]struct{}
	mu    sync.RWMutex

	// User tracking
	userClients map[string][]*Client // userID -> [clients]
	userMu      sync.RWMutex

	// Hub lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	// Metrics
	stats   HubStats
	statsMu sync.RWMutex

	// Cleanup
	cleanupTicker     *time.Ticker
	inactiveThreshold time.Duration
}

type HubStats struct {
	TotalRooms       int       `json:"total_rooms"`
	TotalClients     int       `json:"total_clients"`
	TotalConnections int64     `json:"total_connections"`
	MessageSent      int64     `json:"message_sent"`
	MessageDropped   int64     `json:"message_dropped"`
	LastReset        time.Time `json:"last_reset"`
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	hub := &Hub{
		rooms:       make(map[string]map[*Client]struct{}),
		userClients: make(map[string][]*Client),
		ctx:         ctx,
		cancel:      cancel,
		stats: HubStats{
			LastReset: time.Now(),
		},
		cleanupTicker:     time.NewTicker(1 * time.Minute),
		inactiveThreshold: 2 * time.Minute,
	}

	// Start cleanup routine
	go hub.cleanupRoutine()

	return hub
}

// Attach tracks a freshly upgraded connection. It joins no room.
func (h *Hub) Attach(client *Client) {
	h.userMu.Lock()
	h.userClients[client.UserID] = append(h.userClients[client.UserID], client)
	h.userMu.Unlock()

	h.updateStats(func(stats *HubStats) {
		stats.TotalConnections++
	})

	log.Info().Str("clientID", client.ID).Str("userID", client.UserID).Msg("ws: client attached")
}

// Detach forgets the connection. Rooms must be left first with LeaveAll.
func (h *Hub) Detach(client *Client) {
	h.userMu.Lock()
	userClients := h.userClients[client.UserID]
	for i, c := range userClients {
		if c == client {
			h.userClients[client.UserID] = append(userClients[:i:i], userClients[i+1:]...)
			break
		}
	}
	if len(h.userClients[client.UserID]) == 0 {
		delete(h.userClients, client.UserID)
	}
	h.userMu.Unlock()

	log.Info().Str("clientID", client.ID).Str("userID", client.UserID).Msg("ws: client detached")
}

// Join adds a client to a room. It reports false when the client was already in it.
func (h *Hub) Join(roomID string, client *Client) bool {
	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	if _, ok := h.rooms[roomID][client]; ok {
		h.mu.Unlock()
		return false
	}
	h.rooms[roomID][client] = struct{}{}
	size := len(h.rooms[roomID])
	h.mu.Unlock()

	client.mu.Lock()
	client.rooms[roomID] = struct{}{}
	client.mu.Unlock()

	log.Debug().Str("roomID", roomID).Str("clientID", client.ID).Str("userID", client.UserID).Int("roomSize", size).Msg("ws: client joined room")
	return true
}

func (h *Hub) Leave(roomID string, client *Client) {
	h.mu.Lock()
	if clients, ok := h.rooms[roomID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()

	client.mu.Lock()
	delete(client.rooms, roomID)
	client.mu.Unlock()
}

// LeaveAll removes the client from every room and returns the rooms it was in.
func (h *Hub) LeaveAll(client *Client) []string {
	rooms := client.Rooms()
	for _, roomID := range rooms {
		h.Leave(roomID, client)
	}
	return rooms
}

// BroadcastToRoom sends a message to all clients in a room and returns how
// many connections accepted it.
func (h *Hub) BroadcastToRoom(roomID string, message OutgoingMessage) int {
	message.RoomID = roomID
	return h.deliver(message, h.collect([]string{roomID}, ""))
}

// BroadcastToRoomExceptUser skips every connection of exceptUserID.
func (h *Hub) BroadcastToRoomExceptUser(roomID string, message OutgoingMessage, exceptUserID string) int {
	message.RoomID = roomID
	return h.deliver(message, h.collect([]string{roomID}, exceptUserID))
}

// BroadcastToRooms delivers one frame to the union of the rooms' clients.
// A connection present in several rooms receives it once.
func (h *Hub) BroadcastToRooms(message OutgoingMessage, roomIDs ...string) int {
	return h.deliver(message, h.collect(roomIDs, ""))
}

// BroadcastToUser sends a message to all connections of a specific user
func (h *Hub) BroadcastToUser(userID string, message OutgoingMessage) int {
	return h.deliver(message, h.GetUserClients(userID))
}

// collect snapshots the active targets under the read lock.
func (h *Hub) collect(roomIDs []string, exceptUserID string) []*Client {
	seen := make(map[*Client]struct{})
	var targets []*Client

	h.mu.RLock()
	for _, roomID := range roomIDs {
		for client := range h.rooms[roomID] {
			if _, dup := seen[client]; dup {
				continue
			}
			seen[client] = struct{}{}
			if exceptUserID != "" && client.UserID == exceptUserID {
				continue
			}
			if client.IsClientActive() {
				targets = append(targets, client)
			}
		}
	}
	h.mu.RUnlock()

	return targets
}

func (h *Hub) deliver(message OutgoingMessage, targets []*Client) int {
	if len(targets) == 0 {
		return 0
	}

	data, err := encodeFrame(message)
	if err != nil {
		log.Error().Err(err).Str("roomID", message.RoomID).Msg("ws: failed to marshal broadcast message")
		return 0
	}

	sent := 0
	for _, c := range targets {
		if c.trySend(data) {
			sent++
			continue
		}
		if c.IsClientActive() {
			// Client buffer full - slow consumer
			log.Warn().Str("roomID", message.RoomID).Str("clientID", c.ID).Msg("ws: slow consumer, dropping connection")
			c.Close()
		}
	}

	h.updateStats(func(stats *HubStats) {
		stats.MessageSent += int64(sent)
		stats.MessageDropped += int64(len(targets) - sent)
	})

	log.Debug().Str("event", message.Event).Int("targets", len(targets)).Int("sent", sent).Msg("ws: broadcast completed")
	return sent
}

// Utility methods

// GetRoomClients return all active clients in a room
func (h *Hub) GetRoomClients(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var clients []*Client
	for client := range h.rooms[roomID] {
		if client.IsClientActive() {
			clients = append(clients, client)
		}
	}
	return clients
}

// GetUserClients returns all active clients for a user
func (h *Hub) GetUserClients(userID string) []*Client {
	h.userMu.RLock()
	defer h.userMu.RUnlock()

	var activeClients []*Client
	for _, client := range h.userClients[userID] {
		if client.IsClientActive() {
			activeClients = append(activeClients, client)
		}
	}
	return activeClients
}

// IsUserOnlineInRoom checks if a user has any active connections in a room
func (h *Hub) IsUserOnlineInRoom(roomID, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		if client.UserID == userID && client.IsClientActive() {
			return true
		}
	}
	return false
}

type RoomStats struct {
	RoomID            string `json:"room_id"`
	Exists            bool   `json:"exists"`
	TotalConnections  int    `json:"total_connections"`
	ActiveConnections int    `json:"active_connections"`
	UniqueUsers       int    `json:"unique_users"`
}

// GetRoomStats returns statistics for a room
func (h *Hub) GetRoomStats(roomID string) RoomStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := RoomStats{RoomID: roomID}
	clients, ok := h.rooms[roomID]
	if !ok {
		return stats
	}

	uniqueUsers := make(map[string]struct{})
	for client := range clients {
		if client.IsClientActive() {
			stats.ActiveConnections++
			uniqueUsers[client.UserID] = struct{}{}
		}
	}
	stats.Exists = true
	stats.TotalConnections = len(clients)
	stats.UniqueUsers = len(uniqueUsers)
	return stats
}

// GetHubStats returns overall hub statistics
func (h *Hub) GetHubStats() HubStats {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()

	h.mu.RLock()
	h.stats.TotalRooms = len(h.rooms)
	h.mu.RUnlock()

	h.userMu.RLock()
	totalClients := 0
	for _, clients := range h.userClients {
		for _, client := range clients {
			if client.IsClientActive() {
				totalClients++
			}
		}
	}
	h.userMu.RUnlock()
	h.stats.TotalClients = totalClients

	return h.stats
}

func (h *Hub) updateStats(fn func(*HubStats)) {
	h.statsMu.Lock()
	fn(&h.stats)
	h.statsMu.Unlock()
}

func (h *Hub) cleanupRoutine() {
	defer h.cleanupTicker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.cleanupTicker.C:
			h.performCleanup(time.Now())
		}
	}
}

// performCleanup closes connections that stopped answering pings. Their read
// pump then runs the normal disconnect path.
func (h *Hub) performCleanup(now time.Time) int {
	var toRemove []*Client

	h.userMu.RLock()
	for _, clients := range h.userClients {
		for _, client := range clients {
			if !client.IsClientActive() || now.Sub(client.GetLastSeen()) > h.inactiveThreshold {
				toRemove = append(toRemove, client)
			}
		}
	}
	h.userMu.RUnlock()

	for _, client := range toRemove {
		log.Info().
			Str("clientID", client.ID).
			Str("userID", client.UserID).
			Msg("ws: cleaning up inactive client")
		client.Close()
	}

	log.Debug().Int("cleaned", len(toRemove)).Msg("ws: cleanup routine completed")
	return len(toRemove)
}

// Close gracefully shuts down the hub
func (h *Hub) Close() {
	log.Info().Msg("ws: shutting down hub")

	h.cancel()

	h.userMu.RLock()
	var allClients []*Client
	for _, clients := range h.userClients {
		allClients = append(allClients, clients...)
	}
	h.userMu.RUnlock()

	for _, client := range allClients {
		client.Close()
	}

	log.Info().Int("clients", len(allClients)).Msg("ws: hub shutdown completed")
}
