package conversation_repo

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
)

// MemoryRepo keeps conversations in process. It enforces the same pair-key
// uniqueness as the Mongo index so resolution races behave identically.
type MemoryRepo struct {
	mu            sync.RWMutex
	conversations map[string]*entity.Conversation
	pairs         map[string]string
	overlays      map[string]*entity.UserConversation
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		conversations: make(map[string]*entity.Conversation),
		pairs:         make(map[string]string),
		overlays:      make(map[string]*entity.UserConversation),
	}
}

func overlayKey(userID, conversationID string) string {
	return userID + "|" + conversationID
}

func (r *MemoryRepo) FindDirect(_ context.Context, pairKey string) (*entity.Conversation, *app_error.AppError) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.pairs[pairKey]
	if !ok {
		return nil, app_error.NotFound("conversation not found", "pair-key")
	}
	return r.conversations[id].Clone(), nil
}

func (r *MemoryRepo) Insert(_ context.Context, conv *entity.Conversation) *app_error.AppError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[conv.ID]; exists {
		return app_error.Conflict("duplicate conversation id", "conversation-id")
	}
	if conv.PairKey != "" {
		if _, taken := r.pairs[conv.PairKey]; taken {
			return app_error.Conflict("duplicate conversation", "pair-key")
		}
		r.pairs[conv.PairKey] = conv.ID
	}
	r.conversations[conv.ID] = conv.Clone()
	return nil
}

func (r *MemoryRepo) FindByID(_ context.Context, conversationID string) (*entity.Conversation, *app_error.AppError) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[conversationID]
	if !ok {
		return nil, app_error.NotFound("conversation not found", "conversation-id")
	}
	return conv.Clone(), nil
}

func (r *MemoryRepo) FindByMember(_ context.Context, userID string) ([]*entity.Conversation, *app_error.AppError) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entity.Conversation
	for _, conv := range r.conversations {
		if conv.IsMember(userID) {
			out = append(out, conv.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *MemoryRepo) UpdateLastMessage(_ context.Context, conversationID, content string, msgType entity.MessageType, senderID string, at time.Time) *app_error.AppError {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[conversationID]
	if !ok {
		return app_error.NotFound("conversation not found", "conversation-id")
	}
	conv.LastMessage = content
	conv.LastMessageType = msgType
	conv.LastMessageSenderID = senderID
	conv.UpdatedAt = at
	return nil
}

func (r *MemoryRepo) AddMembers(_ context.Context, conversationID string, memberIDs []string, at time.Time) (*entity.Conversation, *app_error.AppError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[conversationID]
	if !ok || !conv.IsGroup {
		return nil, app_error.NotFound("group conversation not found", "conversation-id")
	}
	for _, id := range memberIDs {
		if !slices.Contains(conv.Members, id) {
			conv.Members = append(conv.Members, id)
		}
	}
	conv.UpdatedAt = at
	return conv.Clone(), nil
}

func (r *MemoryRepo) RemoveMembers(_ context.Context, conversationID string, memberIDs []string, at time.Time) (*entity.Conversation, *app_error.AppError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[conversationID]
	if !ok || !conv.IsGroup {
		return nil, app_error.NotFound("group conversation not found", "conversation-id")
	}
	conv.Members = slices.DeleteFunc(conv.Members, func(m string) bool {
		return slices.Contains(memberIDs, m)
	})
	conv.UpdatedAt = at
	return conv.Clone(), nil
}

// overlay returns the stored overlay, creating it on first write. Callers hold r.mu.
func (r *MemoryRepo) overlay(userID, conversationID string) *entity.UserConversation {
	key := overlayKey(userID, conversationID)
	o, ok := r.overlays[key]
	if !ok {
		o = &entity.UserConversation{UserID: userID, ConversationID: conversationID}
		r.overlays[key] = o
	}
	return o
}

func (r *MemoryRepo) FindOverlay(_ context.Context, userID, conversationID string) (*entity.UserConversation, *app_error.AppError) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if o, ok := r.overlays[overlayKey(userID, conversationID)]; ok {
		return o.Clone(), nil
	}
	return &entity.UserConversation{UserID: userID, ConversationID: conversationID}, nil
}

func (r *MemoryRepo) FindOverlays(_ context.Context, userID string) (map[string]*entity.UserConversation, *app_error.AppError) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*entity.UserConversation)
	for _, o := range r.overlays {
		if o.UserID == userID {
			out[o.ConversationID] = o.Clone()
		}
	}
	return out, nil
}

func (r *MemoryRepo) HideForUser(_ context.Context, userID, conversationID string, at time.Time) *app_error.AppError {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[conversationID]
	if !ok {
		return app_error.NotFound("conversation not found", "conversation-id")
	}
	o := r.overlay(userID, conversationID)
	o.IsDeleted = true
	o.LastDeletedAt = &at
	o.HiddenThroughSeq = conv.Seq
	o.UnreadCount = 0
	return nil
}

func (r *MemoryRepo) NextSeq(_ context.Context, conversationID string) (int64, *app_error.AppError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[conversationID]
	if !ok {
		return 0, app_error.NotFound("conversation not found", "conversation-id")
	}
	conv.Seq++
	return conv.Seq, nil
}

func (r *MemoryRepo) RestoreForUser(_ context.Context, userID, conversationID string) *app_error.AppError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o, ok := r.overlays[overlayKey(userID, conversationID)]; ok {
		o.IsDeleted = false
	}
	return nil
}

func (r *MemoryRepo) IncrementUnread(_ context.Context, conversationID string, userIDs []string) *app_error.AppError {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, userID := range userIDs {
		o := r.overlay(userID, conversationID)
		o.UnreadCount++
		o.IsDeleted = false
	}
	return nil
}

func (r *MemoryRepo) MarkRead(_ context.Context, userID, conversationID string, at time.Time) *app_error.AppError {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := r.overlay(userID, conversationID)
	o.UnreadCount = 0
	o.LastReadAt = &at
	return nil
}

func (r *MemoryRepo) SetOverlayFlags(_ context.Context, userID, conversationID string, pinned, muted *bool) (*entity.UserConversation, *app_error.AppError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := r.overlay(userID, conversationID)
	if pinned != nil {
		o.IsPinned = *pinned
	}
	if muted != nil {
		o.IsMuted = *muted
	}
	return o.Clone(), nil
}
