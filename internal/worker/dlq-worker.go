package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/quocdatk18/appchat-sub000/internal/queue"
)

// DeadLetterSink keeps jobs that exhausted their retries for later audit.
type DeadLetterSink interface {
	Store(ctx context.Context, job queue.Job) error
}

type LogSink struct{}

func (LogSink) Store(_ context.Context, job queue.Job) error {
	log.Error().
		Str("job_id", job.ID).
		Str("type", job.Type).
		Str("error", job.ErrorMsg).
		Msg("DLQ Job detected")
	return nil
}

type deadJob struct {
	JobID              string          `bson:"job_id"`
	Type               string          `bson:"type"`
	Payload            json.RawMessage `bson:"payload"`
	OriginalRetryCount int             `bson:"original_retry_count"`
	ErrorMsg           string          `bson:"error_msg"`
	CreatedAt          time.Time       `bson:"created_at"`
	ExpireAt           time.Time       `bson:"expire_at"`
}

// MongoSink persists dead jobs in a collection with a seven day horizon.
type MongoSink struct {
	Collection *mongo.Collection
}

func NewMongoSink(db *mongo.Database) *MongoSink {
	return &MongoSink{Collection: db.Collection("dead_jobs")}
}

func (s *MongoSink) Store(ctx context.Context, job queue.Job) error {
	doc := deadJob{
		JobID:              job.ID,
		Type:               job.Type,
		Payload:            job.Payload,
		OriginalRetryCount: job.Retry,
		ErrorMsg:           job.ErrorMsg,
		CreatedAt:          time.Now().UTC(),
		ExpireAt:           time.Now().Add(7 * 24 * time.Hour).UTC(),
	}
	_, err := s.Collection.InsertOne(ctx, doc)
	return err
}

func (wp *WorkerPool) StartDLQWorker(ctx context.Context) {
	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()

		log.Info().Msg("DLQ worker started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("DLQ worker stopping")
				return
			default:
				wp.drainDeadLetter(ctx, 10*time.Second)
			}
		}
	}()
}

// drainDeadLetter moves one job from the Redis DLQ into the sink. A job the
// sink rejects goes back to the list.
func (wp *WorkerPool) drainDeadLetter(ctx context.Context, wait time.Duration) bool {
	result, err := wp.Redis.BLPop(ctx, wait, queue.DeadLetterKey).Result()
	if err == redis.Nil {
		return false
	} else if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("DLQWorker pop failed")
		}
		return false
	}

	payload := result[1]
	var job queue.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		log.Warn().Err(err).Msg("DLQWorker invalid job payload")
		return false
	}

	if err := wp.Sink.Store(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to persist DLQ job")

		// fallback: put back to Redis DLQ
		wp.Redis.RPush(ctx, queue.DeadLetterKey, payload)
		select {
		case <-ctx.Done():
		case <-time.After(wp.opts.PollInterval):
		}
		return false
	}
	return true
}
