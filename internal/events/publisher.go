package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	MessageCreated       = "message.created"
	MessageRecalled      = "message.recalled"
	MessageDeletedForAll = "message.deleted_for_all"
)

// MessageEvent is published for downstream consumers such as push
// notifications. Recipients excludes the sender.
type MessageEvent struct {
	Type           string    `json:"type"`
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Recipients     []string  `json:"recipients,omitempty"`
	Content        string    `json:"content,omitempty"`
	MessageType    string    `json:"message_type,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishMessageEvent(ctx context.Context, ev MessageEvent) error
	Close() error
}

type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Int("count", len(messages)).Msg("events: kafka delivery failed")
			}
		},
	}
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) PublishMessageEvent(ctx context.Context, ev MessageEvent) error {
	msg, err := toKafkaMessage(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// toKafkaMessage keys by conversation so one conversation's events stay on a
// single partition, in order.
func toKafkaMessage(ev MessageEvent) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.ConversationID),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}, nil
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishMessageEvent(context.Context, MessageEvent) error { return nil }
func (NopPublisher) Close() error                                           { return nil }
