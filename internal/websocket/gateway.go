package websocket

import (
	"context"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/quocdatk18/appchat-sub000/internal/dtos/chat_dto"
	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	"github.com/quocdatk18/appchat-sub000/internal/events"
	"github.com/quocdatk18/appchat-sub000/internal/idem"
	"github.com/quocdatk18/appchat-sub000/internal/metrics"
	"github.com/quocdatk18/appchat-sub000/internal/presence"
	"github.com/quocdatk18/appchat-sub000/internal/ratelimit"
	conversation_service "github.com/quocdatk18/appchat-sub000/internal/use-case/conversation-case"
	message_service "github.com/quocdatk18/appchat-sub000/internal/use-case/message-case"
	user_service "github.com/quocdatk18/appchat-sub000/internal/use-case/user-case"
	"github.com/quocdatk18/appchat-sub000/internal/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const ackCachePrefix = "ack:"

type GatewayDeps struct {
	Hub           *Hub
	Presence      *presence.Table
	Conversations conversation_service.ConversationServiceContract
	Messages      message_service.MessageServiceContract
	Users         user_service.UserServiceContract
	Events        events.Publisher
	Metrics       *metrics.Collector
	// Redis backs idempotent sends and the send rate limit. Both are
	// skipped when it is nil.
	Redis *redis.Client
}

type Options struct {
	SendRateLimit  int64
	SendRateWindow time.Duration
	IdempotencyTTL time.Duration
}

type eventHandler func(ctx context.Context, c *Client, in chat_dto.WSIncomingMessage) (*chat_dto.AckData, *app_error.AppError)

// Gateway turns client frames into service calls and fans the results out
// through the hub.
type Gateway struct {
	hub           *Hub
	presence      *presence.Table
	conversations conversation_service.ConversationServiceContract
	messages      message_service.MessageServiceContract
	users         user_service.UserServiceContract
	events        events.Publisher
	metrics       *metrics.Collector

	redis   *redis.Client
	idem    idem.Store
	limiter *ratelimit.Limiter

	// held around persist+broadcast so fan-out order equals persistence order
	convLock *utils.KeyLock
	opts     Options
	routes   map[string]eventHandler
}

func NewGateway(deps GatewayDeps, opts Options) *Gateway {
	if opts.SendRateWindow <= 0 {
		opts.SendRateWindow = time.Second
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 10 * time.Minute
	}

	g := &Gateway{
		hub:           deps.Hub,
		presence:      deps.Presence,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		users:         deps.Users,
		events:        deps.Events,
		metrics:       deps.Metrics,
		redis:         deps.Redis,
		convLock:      utils.NewKeyLock(),
		opts:          opts,
	}
	if g.events == nil {
		g.events = events.NopPublisher{}
	}
	if deps.Redis != nil {
		g.idem = idem.New(deps.Redis)
		g.limiter = ratelimit.New(deps.Redis)
	}

	g.routes = map[string]eventHandler{
		chat_dto.EventRegister:            g.handleRegister,
		chat_dto.EventJoinConversation:    g.handleJoinConversation,
		chat_dto.EventSendMessage:         g.handleSendMessage,
		chat_dto.EventSeenMessage:         g.handleSeenMessage,
		chat_dto.EventRecallMessage:       g.handleRecallMessage,
		chat_dto.EventDeleteMessage:       g.handleDeleteMessage,
		chat_dto.EventDeleteMessageForAll: g.handleDeleteMessageForAll,
	}
	return g
}

func (g *Gateway) Connect(c *Client) {
	g.hub.Attach(c)
	g.metrics.ConnectionOpened()
}

func (g *Gateway) Dispatch(ctx context.Context, c *Client, raw []byte) {
	var in chat_dto.WSIncomingMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		log.Warn().Err(err).Str("clientID", c.ID).Msg("ws: malformed frame")
		g.finish(c, in, nil, app_error.Validation("malformed frame", "event"))
		return
	}

	if in.Event != chat_dto.EventRegister && !c.Registered() {
		g.finish(c, in, nil, app_error.Unauthorized("register before sending "+in.Event, "event"))
		return
	}

	handler, ok := g.routes[in.Event]
	if !ok {
		g.finish(c, in, nil, app_error.Validation("unknown event "+in.Event, "event"))
		return
	}

	ack, appErr := handler(ctx, c, in)
	g.finish(c, in, ack, appErr)
}

// finish acks successes when the client asked for it with an opId. Failures
// are always reported to the invoking connection.
func (g *Gateway) finish(c *Client, in chat_dto.WSIncomingMessage, ack *chat_dto.AckData, appErr *app_error.AppError) {
	if appErr != nil {
		log.Warn().Str("event", in.Event).Str("userID", c.UserID).Str("kind", string(appErr.Kind)).Msg(appErr.Message)
		ack = &chat_dto.AckData{
			Status: chat_dto.AckError,
			Error: &chat_dto.AckFailure{
				Kind:    string(appErr.Kind),
				Message: appErr.Message,
				Field:   appErr.Field,
			},
		}
	} else if ack == nil {
		ack = &chat_dto.AckData{Status: chat_dto.AckOK}
	}

	g.metrics.ObserveEvent(in.Event, ack.Status)

	if in.OpID == "" && appErr == nil {
		return
	}
	ack.OpID = in.OpID
	c.SendMessage(NewEvent(chat_dto.EventAck, "", ack))
}

func decodeData[T any](raw []byte) (T, *app_error.AppError) {
	var data T
	if len(raw) == 0 {
		return data, app_error.Validation("data is required", "data")
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, app_error.Validation("invalid data payload", "data")
	}
	return data, nil
}

func (g *Gateway) handleRegister(ctx context.Context, c *Client, in chat_dto.WSIncomingMessage) (*chat_dto.AckData, *app_error.AppError) {
	data, appErr := decodeData[chat_dto.RegisterData](in.Data)
	if appErr != nil {
		return nil, appErr
	}
	if data.UserID == "" {
		return nil, app_error.Validation("userId is required", "userId")
	}
	if data.UserID != c.UserID {
		return nil, app_error.Permission("cannot register as another user", "userId")
	}

	if err := g.users.SyncProfile(ctx, entity.PublicProfile{ID: c.UserID, Username: c.Username}); err != nil {
		log.Error().Err(err).Str("userID", c.UserID).Msg("ws: failed to sync profile")
	}

	if err := g.presence.Register(ctx, c.UserID, c.ID); err != nil {
		return nil, err
	}
	g.hub.Join(PersonalRoom(c.UserID), c)
	c.markRegistered()
	g.metrics.SetOnlineUsers(g.presence.OnlineCount())

	log.Info().Str("clientID", c.ID).Str("userID", c.UserID).Msg("ws: user registered")
	return nil, nil
}

func (g *Gateway) handleJoinConversation(ctx context.Context, c *Client, in chat_dto.WSIncomingMessage) (*chat_dto.AckData, *app_error.AppError) {
	data, appErr := decodeData[chat_dto.JoinConversationData](in.Data)
	if appErr != nil {
		return nil, appErr
	}
	if data.ConversationID == "" {
		return nil, app_error.Validation("conversationId is required", "conversationId")
	}
	if _, err := g.conversations.RequireMember(ctx, c.UserID, data.ConversationID); err != nil {
		return nil, err
	}

	room := ConversationRoom(data.ConversationID)
	present := g.hub.IsUserOnlineInRoom(room, c.UserID)
	if g.hub.Join(room, c) && !present {
		status := chat_dto.UserStatusData{UserID: c.UserID, IsOnline: true}
		g.hub.BroadcastToRoomExceptUser(room, NewEvent(chat_dto.EventUserStatus, room, status), c.UserID)
	}

	return &chat_dto.AckData{Status: chat_dto.AckOK, ConversationID: data.ConversationID}, nil
}

func (g *Gateway) handleSendMessage(ctx context.Context, c *Client, in chat_dto.WSIncomingMessage) (*chat_dto.AckData, *app_error.AppError) {
	data, appErr := decodeData[chat_dto.SendMessageData](in.Data)
	if appErr != nil {
		return nil, appErr
	}
	if strings.TrimSpace(data.Content) == "" && strings.TrimSpace(data.MediaURL) == "" {
		return &chat_dto.AckData{Status: chat_dto.AckIgnored, LocalID: data.LocalID}, nil
	}

	// a retried opId is answered from the first send and costs no send budget
	idemKey := ""
	if in.OpID != "" && g.idem != nil {
		key := c.UserID + ":" + in.OpID
		claimed, err := g.idem.PutNX(ctx, key, g.opts.IdempotencyTTL)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("opId", in.OpID).Msg("ws: idempotency store unavailable")
		case !claimed:
			return g.replayAck(ctx, key, data.LocalID), nil
		default:
			idemKey = key
		}
	}

	appErr = g.allowSend(ctx, c.UserID)
	var ack *chat_dto.AckData
	if appErr == nil {
		ack, appErr = g.sendMessage(ctx, c, data)
	}
	if appErr != nil {
		if idemKey != "" {
			if err := g.idem.Release(ctx, idemKey); err != nil {
				log.Warn().Err(err).Str("opId", in.OpID).Msg("ws: failed to release idempotency claim")
			}
		}
		return nil, appErr
	}

	if idemKey != "" {
		if err := utils.SetCacheData(ctx, g.redis, ackCachePrefix+idemKey, ack, g.opts.IdempotencyTTL); err != nil {
			log.Warn().Err(err).Str("opId", in.OpID).Msg("ws: failed to cache ack")
		}
	}
	return ack, nil
}

func (g *Gateway) allowSend(ctx context.Context, userID string) *app_error.AppError {
	if g.limiter == nil || g.opts.SendRateLimit <= 0 {
		return nil
	}
	ok, n, err := g.limiter.AllowSliding(ctx, "send:"+userID, g.opts.SendRateLimit, g.opts.SendRateWindow)
	if err != nil {
		// fail open
		log.Warn().Err(err).Str("userID", userID).Msg("ws: rate limiter unavailable")
		return nil
	}
	if !ok {
		log.Warn().Str("userID", userID).Int64("count", n).Msg("ws: send rate limited")
		return app_error.RateLimited("too many messages, slow down", "rate-limit")
	}
	return nil
}

// replayAck answers a repeated opId with the first send's result without
// persisting again.
func (g *Gateway) replayAck(ctx context.Context, key, localID string) *chat_dto.AckData {
	cached, err := utils.GetCacheData[chat_dto.AckData](ctx, g.redis, ackCachePrefix+key)
	if err != nil || cached == nil {
		// the first send is still in flight or its ack expired
		return &chat_dto.AckData{Status: chat_dto.AckDuplicate, LocalID: localID}
	}
	cached.Status = chat_dto.AckDuplicate
	return cached
}

func (g *Gateway) sendMessage(ctx context.Context, c *Client, data chat_dto.SendMessageData) (*chat_dto.AckData, *app_error.AppError) {
	conv, appErr := g.resolveTarget(ctx, c.UserID, data)
	if appErr != nil {
		return nil, appErr
	}

	msgType := entity.MessageType(data.Type)
	if msgType == "" {
		msgType = entity.MessageTypeText
	}
	payload := entity.MessagePayload{
		Content:      data.Content,
		Type:         msgType,
		MediaURL:     data.MediaURL,
		Mimetype:     data.Mimetype,
		OriginalName: data.OriginalName,
	}

	unlock := g.convLock.Lock(conv.ID)
	view, appErr := g.messages.Create(ctx, c.UserID, conv.ID, payload)
	if appErr != nil {
		unlock()
		return nil, appErr
	}
	resp := chat_dto.NewMessageViewResponse(view)
	room := ConversationRoom(conv.ID)
	sent := g.hub.BroadcastToRooms(NewEvent(chat_dto.EventMessageReceived, room, resp), Audience(conv)...)
	unlock()

	g.metrics.AddBroadcasts(sent)
	g.publish(ctx, events.MessageEvent{
		Type:           events.MessageCreated,
		MessageID:      view.ID,
		ConversationID: conv.ID,
		SenderID:       c.UserID,
		Recipients:     recipients(conv, c.UserID),
		Content:        view.Content,
		MessageType:    string(view.Type),
		OccurredAt:     view.CreatedAt,
	})

	return &chat_dto.AckData{
		Status:         chat_dto.AckOK,
		MessageID:      view.ID,
		ConversationID: conv.ID,
		LocalID:        data.LocalID,
		Message:        resp,
	}, nil
}

func (g *Gateway) resolveTarget(ctx context.Context, userID string, data chat_dto.SendMessageData) (*entity.Conversation, *app_error.AppError) {
	switch {
	case data.ConversationID != "":
		return g.conversations.RequireMember(ctx, userID, data.ConversationID)
	case data.ToUserID != "":
		return g.conversations.ResolveOrCreateDirect(ctx, userID, data.ToUserID)
	default:
		return nil, app_error.Validation("conversationId or toUserId is required", "conversationId")
	}
}

func (g *Gateway) handleSeenMessage(ctx context.Context, c *Client, in chat_dto.WSIncomingMessage) (*chat_dto.AckData, *app_error.AppError) {
	data, appErr := decodeData[chat_dto.SeenMessageData](in.Data)
	if appErr != nil {
		return nil, appErr
	}
	if data.MessageID == "" {
		return nil, app_error.Validation("messageId is required", "messageId")
	}

	msg, appErr := g.messages.MarkSeen(ctx, data.MessageID, c.UserID)
	if appErr != nil {
		return nil, appErr
	}

	room := ConversationRoom(msg.ConversationID)
	seen := chat_dto.MessageSeenData{MessageID: msg.ID, ConversationID: msg.ConversationID, UserID: c.UserID}
	g.metrics.AddBroadcasts(g.hub.BroadcastToRoom(room, NewEvent(chat_dto.EventMessageSeen, room, seen)))

	return &chat_dto.AckData{Status: chat_dto.AckOK, MessageID: msg.ID, ConversationID: msg.ConversationID}, nil
}

func (g *Gateway) handleRecallMessage(ctx context.Context, c *Client, in chat_dto.WSIncomingMessage) (*chat_dto.AckData, *app_error.AppError) {
	data, appErr := decodeData[chat_dto.MessageMutationData](in.Data)
	if appErr != nil {
		return nil, appErr
	}
	if data.MessageID == "" {
		return nil, app_error.Validation("messageId is required", "messageId")
	}

	msg, appErr := g.messages.Recall(ctx, data.MessageID, c.UserID)
	if appErr != nil {
		return nil, appErr
	}

	recalled := chat_dto.MessageRecalledData{MessageID: msg.ID, ConversationID: msg.ConversationID}
	if msg.RecallAt != nil {
		recalled.RecallAt = msg.RecallAt.UnixMilli()
	}
	g.fanOut(ctx, c.UserID, msg.ConversationID, chat_dto.EventMessageRecalled, recalled)
	g.publish(ctx, events.MessageEvent{
		Type:           events.MessageRecalled,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		OccurredAt:     time.UnixMilli(recalled.RecallAt).UTC(),
	})

	return &chat_dto.AckData{Status: chat_dto.AckOK, MessageID: msg.ID, ConversationID: msg.ConversationID}, nil
}

func (g *Gateway) handleDeleteMessage(ctx context.Context, c *Client, in chat_dto.WSIncomingMessage) (*chat_dto.AckData, *app_error.AppError) {
	data, appErr := decodeData[chat_dto.MessageMutationData](in.Data)
	if appErr != nil {
		return nil, appErr
	}
	if data.MessageID == "" {
		return nil, app_error.Validation("messageId is required", "messageId")
	}

	msg, appErr := g.messages.DeleteForUser(ctx, data.MessageID, c.UserID)
	if appErr != nil {
		return nil, appErr
	}

	// only the requester's own connections learn about a delete-for-me
	deleted := chat_dto.MessageDeletedData{MessageID: msg.ID, ConversationID: msg.ConversationID, UserID: c.UserID}
	g.metrics.AddBroadcasts(g.hub.BroadcastToUser(c.UserID, NewEvent(chat_dto.EventMessageDeleted, PersonalRoom(c.UserID), deleted)))

	return &chat_dto.AckData{Status: chat_dto.AckOK, MessageID: msg.ID, ConversationID: msg.ConversationID}, nil
}

func (g *Gateway) handleDeleteMessageForAll(ctx context.Context, c *Client, in chat_dto.WSIncomingMessage) (*chat_dto.AckData, *app_error.AppError) {
	data, appErr := decodeData[chat_dto.MessageMutationData](in.Data)
	if appErr != nil {
		return nil, appErr
	}
	if data.MessageID == "" {
		return nil, app_error.Validation("messageId is required", "messageId")
	}

	msg, appErr := g.messages.DeleteForAll(ctx, data.MessageID, c.UserID)
	if appErr != nil {
		return nil, appErr
	}

	deleted := chat_dto.MessageDeletedForAllData{
		MessageID:       msg.ID,
		ConversationID:  msg.ConversationID,
		DeletedForAllBy: msg.DeletedForAllBy,
	}
	if msg.DeletedForAllAt != nil {
		deleted.DeletedForAllAt = msg.DeletedForAllAt.UnixMilli()
	}
	g.fanOut(ctx, c.UserID, msg.ConversationID, chat_dto.EventMessageDeletedForAll, deleted)
	g.publish(ctx, events.MessageEvent{
		Type:           events.MessageDeletedForAll,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		OccurredAt:     time.UnixMilli(deleted.DeletedForAllAt).UTC(),
	})

	return &chat_dto.AckData{Status: chat_dto.AckOK, MessageID: msg.ID, ConversationID: msg.ConversationID}, nil
}

// fanOut delivers a lifecycle event to the conversation room and to every
// member's personal room, once per connection.
func (g *Gateway) fanOut(ctx context.Context, userID, conversationID, event string, data any) {
	room := ConversationRoom(conversationID)
	rooms := []string{room}
	if conv, err := g.conversations.RequireMember(ctx, userID, conversationID); err == nil {
		rooms = Audience(conv)
	} else {
		log.Warn().Str("conversationID", conversationID).Str("kind", string(err.Kind)).Msg("ws: fan-out limited to conversation room")
	}

	unlock := g.convLock.Lock(conversationID)
	sent := g.hub.BroadcastToRooms(NewEvent(event, room, data), rooms...)
	unlock()
	g.metrics.AddBroadcasts(sent)
}

// Broadcast is used by background jobs that carry an already encoded payload.
func (g *Gateway) Broadcast(event string, data any, roomIDs ...string) int {
	if len(roomIDs) == 0 {
		return 0
	}
	sent := g.hub.BroadcastToRooms(NewEvent(event, roomIDs[0], data), roomIDs...)
	g.metrics.AddBroadcasts(sent)
	return sent
}

func (g *Gateway) publish(ctx context.Context, ev events.MessageEvent) {
	if err := g.events.PublishMessageEvent(ctx, ev); err != nil {
		log.Error().Err(err).Str("type", ev.Type).Str("messageID", ev.MessageID).Msg("ws: failed to publish message event")
	}
}

func (g *Gateway) Disconnect(c *Client) {
	rooms := g.hub.LeaveAll(c)
	g.hub.Detach(c)
	g.metrics.ConnectionClosed()

	if !c.Registered() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	userID, wentOffline := g.presence.Unregister(ctx, c.ID)
	g.metrics.SetOnlineUsers(g.presence.OnlineCount())
	if !wentOffline {
		return
	}

	status := chat_dto.UserStatusData{UserID: userID, IsOnline: false}
	if lastSeen := g.presence.LastSeenOf(userID); lastSeen != nil {
		ms := lastSeen.UnixMilli()
		status.LastSeen = &ms
	}
	for _, room := range rooms {
		if isConversationRoom(room) {
			g.hub.BroadcastToRoomExceptUser(room, NewEvent(chat_dto.EventUserStatus, room, status), userID)
		}
	}

	log.Info().Str("clientID", c.ID).Str("userID", userID).Msg("ws: user went offline")
}

// Audience is the conversation room plus every member's personal room.
func Audience(conv *entity.Conversation) []string {
	rooms := make([]string, 0, len(conv.Members)+1)
	rooms = append(rooms, ConversationRoom(conv.ID))
	for _, member := range conv.Members {
		rooms = append(rooms, PersonalRoom(member))
	}
	return rooms
}

func recipients(conv *entity.Conversation, senderID string) []string {
	out := make([]string, 0, len(conv.Members))
	for _, member := range conv.Members {
		if member != senderID {
			out = append(out, member)
		}
	}
	return out
}
