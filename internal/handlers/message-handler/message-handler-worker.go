package message_handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quocdatk18/appchat-sub000/internal/events"
	"github.com/quocdatk18/appchat-sub000/internal/queue"
	"github.com/quocdatk18/appchat-sub000/internal/utils/types"
)

func (h *MessageHandler) enqueueBroadcast(ctx context.Context, event string, data any, rooms []string) {
	jobPayload := &types.BroadcastPayload{
		Event: event,
		Rooms: rooms,
		Data:  queue.MustMarshal(data),
	}

	now := time.Now()
	job := queue.Job{
		ID:        uuid.New().String(),
		Type:      queue.JobBroadcastEvent,
		Payload:   queue.MustMarshal(jobPayload),
		Priority:  queue.PriorityHigh,
		Retry:     0,
		MaxRetry:  3,
		CreatedAt: now.Unix(),
		RunAt:     now.Unix(),
		ExpireAt:  now.Add(1 * time.Minute).Unix(),
	}

	if err := h.Producer.Enqueue(ctx, job); err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to enqueue broadcast job")
		return
	}

	log.Debug().Str("job_id", job.ID).Str("event", event).Msg("Broadcast job enqueued successfully")
}

func (h *MessageHandler) publishEvent(ctx context.Context, ev events.MessageEvent) {
	if err := h.Events.PublishMessageEvent(ctx, ev); err != nil {
		log.Error().Err(err).Str("type", ev.Type).Str("message_id", ev.MessageID).Msg("Failed to publish message event")
	}
}
