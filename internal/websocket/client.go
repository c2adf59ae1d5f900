package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MB
	sendBuffer     = 256
)

// Dispatcher consumes inbound frames of one connection, in arrival order.
type Dispatcher interface {
	Connect(c *Client)
	Dispatch(ctx context.Context, c *Client, raw []byte)
	Disconnect(c *Client)
}

type Client struct {
	// ID is the connection handle; it is never reused.
	ID          string
	UserID      string
	Username    string
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu         sync.RWMutex
	lastSeen   time.Time
	registered bool
	rooms      map[string]struct{}
}

func NewClient(principal Principal, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	return &Client{
		ID:          uuid.NewString(),
		UserID:      principal.UserID,
		Username:    principal.Username,
		Conn:        conn,
		Send:        make(chan []byte, sendBuffer),
		ConnectedAt: now,
		ctx:         ctx,
		cancel:      cancel,
		lastSeen:    now,
		rooms:       make(map[string]struct{}),
	}
}

// Start runs the pumps. onDone runs once after the dispatcher saw the disconnect.
func (c *Client) Start(d Dispatcher, onDone ...func()) {
	go c.writePump()
	go c.readPump(d, onDone)
}

// Close is safe to call any number of times from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

func (c *Client) Context() context.Context { return c.ctx }

func (c *Client) IsClientActive() bool {
	return c.ctx.Err() == nil
}

func (c *Client) GetLastSeen() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeen
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *Client) Registered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registered
}

func (c *Client) markRegistered() {
	c.mu.Lock()
	c.registered = true
	c.mu.Unlock()
}

func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

func (c *Client) InRoom(roomID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rooms[roomID]
	return ok
}

// trySend queues a frame without blocking. A full buffer means a slow
// consumer; the frame is dropped and the caller decides what to do.
func (c *Client) trySend(data []byte) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) SendMessage(msg OutgoingMessage) bool {
	data, err := encodeFrame(msg)
	if err != nil {
		log.Error().Err(err).Str("clientID", c.ID).Msg("ws: failed to marshal message")
		return false
	}
	return c.trySend(data)
}

// writePump: take data from c.Send and send to socket + ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				_ = w.Close()
				return
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump: read inbound frames and hand them to the dispatcher + handle pong for keep-alive
func (c *Client) readPump(d Dispatcher, onDone []func()) {
	defer func() {
		c.Close()
		d.Disconnect(c)
		for _, fn := range onDone {
			fn()
		}
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.touch()
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("clientID", c.ID).Msg("ws: unexpected close")
			}
			return
		}
		c.touch()
		d.Dispatch(c.ctx, c, data)
	}
}
