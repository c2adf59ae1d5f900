package message_repo

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
)

type MemoryRepo struct {
	mu       sync.RWMutex
	messages map[string]*entity.Message
	// seq keeps insertion order for messages sharing a createdAt
	seq   map[string]int
	count int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		messages: make(map[string]*entity.Message),
		seq:      make(map[string]int),
	}
}

func (r *MemoryRepo) Insert(_ context.Context, msg *entity.Message) *app_error.AppError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.messages[msg.ID]; exists {
		return app_error.Conflict("duplicate message id", "message-id")
	}
	stored := msg.Clone()
	if stored.DeletedBy == nil {
		stored.DeletedBy = []string{}
	}
	if stored.SeenBy == nil {
		stored.SeenBy = []string{}
	}
	r.messages[msg.ID] = stored
	r.count++
	r.seq[msg.ID] = r.count
	return nil
}

func (r *MemoryRepo) FindByID(_ context.Context, messageID string) (*entity.Message, *app_error.AppError) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.messages[messageID]
	if !ok {
		return nil, app_error.NotFound("message not found", "message-id")
	}
	return msg.Clone(), nil
}

func (r *MemoryRepo) ListByConversation(_ context.Context, conversationID, viewerID string, afterSeq int64) ([]*entity.Message, *app_error.AppError) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*entity.Message{}
	for _, msg := range r.messages {
		if msg.ConversationID != conversationID || msg.HiddenFor(viewerID) {
			continue
		}
		if afterSeq > 0 && msg.Seq <= afterSeq {
			continue
		}
		out = append(out, msg.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return r.seq[out[i].ID] < r.seq[out[j].ID]
	})
	return out, nil
}

func (r *MemoryRepo) Transition(_ context.Context, messageID string, to entity.MessageStatus, actorID string, at time.Time) (*entity.Message, *app_error.AppError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[messageID]
	if !ok {
		return nil, app_error.NotFound("message not found", "message-id")
	}
	if msg.Status != entity.MessageActive {
		return nil, app_error.Conflict("message is no longer active", "status")
	}

	switch to {
	case entity.MessageRecalled:
		msg.RecallAt = &at
	case entity.MessageDeletedForAll:
		msg.DeletedForAllAt = &at
		msg.DeletedForAllBy = actorID
	default:
		return nil, app_error.Validation("unsupported message status", "status")
	}
	msg.Status = to
	return msg.Clone(), nil
}

func (r *MemoryRepo) AddDeletedBy(_ context.Context, messageID, userID string) (*entity.Message, *app_error.AppError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[messageID]
	if !ok {
		return nil, app_error.NotFound("message not found", "message-id")
	}
	if !slices.Contains(msg.DeletedBy, userID) {
		msg.DeletedBy = append(msg.DeletedBy, userID)
	}
	return msg.Clone(), nil
}

func (r *MemoryRepo) AddSeenBy(_ context.Context, messageID, userID string) (*entity.Message, *app_error.AppError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[messageID]
	if !ok {
		return nil, app_error.NotFound("message not found", "message-id")
	}
	if !slices.Contains(msg.SeenBy, userID) {
		msg.SeenBy = append(msg.SeenBy, userID)
	}
	return msg.Clone(), nil
}
