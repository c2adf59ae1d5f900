package syncclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/quocdatk18/appchat-sub000/internal/dtos/chat_dto"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	"github.com/quocdatk18/appchat-sub000/internal/timeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrClosed = errors.New("syncclient: session closed")

const (
	writeWait     = 10 * time.Second
	eventsBuffer  = 64
	defaultAckTTL = 10 * time.Second
)

type Options struct {
	// URL of the gateway endpoint, e.g. ws://host/ws.
	URL string
	// Header carries credentials: Authorization or the trusted user header.
	Header http.Header
	UserID string

	MatchWindow time.Duration
	AckTimeout  time.Duration
	// RecallWindow is the server policy, exposed for UI hints only.
	RecallWindow time.Duration

	Dialer *websocket.Dialer
}

type Presence struct {
	Online   bool
	LastSeen *time.Time
}

// Session is one client connection to the gateway. It keeps a timeline view
// per joined conversation and applies inbound events to it.
type Session struct {
	UserID string
	opts   Options
	conn   *websocket.Conn
	views  *timeline.Store

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan chat_dto.AckData

	presenceMu sync.RWMutex
	presence   map[string]Presence

	events    chan chat_dto.WSOutgoingFrame
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects and starts the read loop. The caller still has to Register.
func Dial(ctx context.Context, opts Options) (*Session, error) {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = defaultAckTTL
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, opts.URL, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", opts.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}

	s := &Session{
		UserID:   opts.UserID,
		opts:     opts,
		conn:     conn,
		views:    timeline.NewStore(timeline.Options{MatchWindow: opts.MatchWindow}),
		pending:  make(map[string]chan chat_dto.AckData),
		presence: make(map[string]Presence),
		events:   make(chan chat_dto.WSOutgoingFrame, eventsBuffer),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *Session) Register(ctx context.Context) error {
	_, err := s.request(ctx, chat_dto.EventRegister, chat_dto.RegisterData{UserID: s.UserID})
	return err
}

// Join subscribes to a conversation and opens its view. history seeds the
// view, typically from the REST message list.
func (s *Session) Join(ctx context.Context, conversationID string, history ...*chat_dto.MessageResponse) (*timeline.View, error) {
	view := s.views.Open(conversationID)
	for _, msg := range history {
		view.Reconcile(msg.ToEntity())
	}
	if _, err := s.request(ctx, chat_dto.EventJoinConversation, chat_dto.JoinConversationData{ConversationID: conversationID}); err != nil {
		s.views.Close(conversationID)
		return nil, err
	}
	return view, nil
}

// Send posts text to a joined conversation. The optimistic entry shows up in
// the view at once and is settled by the ack or the broadcast, whichever
// arrives first.
func (s *Session) Send(ctx context.Context, conversationID, content string) (*chat_dto.AckData, error) {
	view := s.views.Open(conversationID)
	localID := timeline.NewLocalID()
	view.AddOptimistic(localID, content, s.UserID)

	ack, err := s.request(ctx, chat_dto.EventSendMessage, chat_dto.SendMessageData{
		ConversationID: conversationID,
		Content:        content,
		LocalID:        localID,
	})
	if err != nil {
		view.Discard(localID)
		return ack, err
	}
	if ack.Status == chat_dto.AckIgnored || ack.Message == nil {
		view.Discard(localID)
		return ack, nil
	}
	view.Confirm(localID, ack.Message.ToEntity())
	return ack, nil
}

// SendDirect messages a peer. The conversation is only known after the ack,
// so there is no optimistic entry.
func (s *Session) SendDirect(ctx context.Context, toUserID, content string) (*chat_dto.AckData, error) {
	ack, err := s.request(ctx, chat_dto.EventSendMessage, chat_dto.SendMessageData{
		ToUserID: toUserID,
		Content:  content,
	})
	if err != nil {
		return ack, err
	}
	if ack.Message != nil {
		s.views.Open(ack.ConversationID).Reconcile(ack.Message.ToEntity())
	}
	return ack, nil
}

func (s *Session) MarkSeen(ctx context.Context, conversationID, messageID string) error {
	_, err := s.request(ctx, chat_dto.EventSeenMessage, chat_dto.SeenMessageData{MessageID: messageID, ConversationID: conversationID})
	return err
}

func (s *Session) Recall(ctx context.Context, messageID string) error {
	_, err := s.request(ctx, chat_dto.EventRecallMessage, chat_dto.MessageMutationData{MessageID: messageID})
	return err
}

func (s *Session) DeleteForMe(ctx context.Context, messageID string) error {
	_, err := s.request(ctx, chat_dto.EventDeleteMessage, chat_dto.MessageMutationData{MessageID: messageID})
	return err
}

func (s *Session) DeleteForAll(ctx context.Context, messageID string) error {
	_, err := s.request(ctx, chat_dto.EventDeleteMessageForAll, chat_dto.MessageMutationData{MessageID: messageID})
	return err
}

func (s *Session) View(conversationID string) (*timeline.View, bool) {
	return s.views.View(conversationID)
}

func (s *Session) PresenceOf(userID string) (Presence, bool) {
	s.presenceMu.RLock()
	defer s.presenceMu.RUnlock()
	p, ok := s.presence[userID]
	return p, ok
}

func (s *Session) RecallWindow() time.Duration {
	return s.opts.RecallWindow
}

// Events yields every inbound frame after it has been applied to the views.
// Frames are dropped when nobody reads.
func (s *Session) Events() <-chan chat_dto.WSOutgoingFrame {
	return s.events
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Close() error {
	err := s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	s.shutdown()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}

func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// request writes one event and waits for its ack. An error ack comes back as
// an *app_error.AppError carrying the server kind.
func (s *Session) request(ctx context.Context, event string, data any) (*chat_dto.AckData, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	opID := uuid.NewString()
	ch := make(chan chat_dto.AckData, 1)

	s.pendingMu.Lock()
	s.pending[opID] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, opID)
		s.pendingMu.Unlock()
	}()

	if err := s.write(chat_dto.WSIncomingMessage{Event: event, OpID: opID, Data: raw}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(s.opts.AckTimeout)
	defer timer.Stop()

	select {
	case ack := <-ch:
		if ack.Status == chat_dto.AckError && ack.Error != nil {
			return &ack, &app_error.AppError{
				Kind:    app_error.Kind(ack.Error.Kind),
				Message: ack.Error.Message,
				Field:   ack.Error.Field,
			}
		}
		return &ack, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("syncclient: no ack for %s within %s", event, s.opts.AckTimeout)
	case <-s.done:
		return nil, ErrClosed
	}
}

func (s *Session) write(in chat_dto.WSIncomingMessage) error {
	frame, err := json.Marshal(in)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *Session) readLoop() {
	defer s.shutdown()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("userID", s.UserID).Msg("syncclient: connection lost")
			}
			return
		}

		var frame chat_dto.WSOutgoingFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Warn().Err(err).Msg("syncclient: undecodable frame")
			continue
		}
		if err := s.apply(frame); err != nil {
			log.Warn().Err(err).Str("event", frame.Event).Msg("syncclient: bad event payload")
		}

		select {
		case s.events <- frame:
		default:
		}
	}
}
