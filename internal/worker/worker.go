package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/quocdatk18/appchat-sub000/internal/metrics"
	"github.com/quocdatk18/appchat-sub000/internal/queue"
	worker_handler "github.com/quocdatk18/appchat-sub000/internal/worker/worker-handler"
)

type Options struct {
	WorkerNum    int
	PollInterval time.Duration
	// RetryBase is the first backoff step; it doubles per attempt.
	RetryBase time.Duration
	// AlertCooldown throttles dead letter alerts per job type.
	AlertCooldown time.Duration
}

type WorkerPool struct {
	Redis      *redis.Client
	WorkerNum  int
	JobChannel chan string
	Sink       DeadLetterSink
	wg         sync.WaitGroup
	handler    *worker_handler.WorkerHandler
	metrics    *metrics.Collector
	opts       Options
	now        func() time.Time

	dlaMu    sync.Mutex
	dlaCache map[string]time.Time
}

func NewWorkerPool(redis *redis.Client, handler *worker_handler.WorkerHandler, m *metrics.Collector, opts Options) *WorkerPool {
	if opts.WorkerNum <= 0 {
		opts.WorkerNum = 4
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 5 * time.Second
	}
	if opts.AlertCooldown <= 0 {
		opts.AlertCooldown = 10 * time.Minute
	}
	return &WorkerPool{
		Redis:      redis,
		WorkerNum:  opts.WorkerNum,
		JobChannel: make(chan string, 100), // Buffered channel to hold jobs
		Sink:       LogSink{},
		handler:    handler,
		metrics:    m,
		opts:       opts,
		now:        time.Now,
		dlaCache:   make(map[string]time.Time),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	log.Info().Msgf("Starting worker pool with %d workers", wp.WorkerNum)

	for i := 0; i < wp.WorkerNum; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		defer close(wp.JobChannel)
		for {
			payload, ok, err := wp.claimDue(ctx)
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Worker: failed to pop job")
			}
			if !ok {
				select {
				case <-ctx.Done():
					log.Info().Msg("Stopping worker pool")
					return
				case <-time.After(wp.opts.PollInterval):
				}
				continue
			}

			select {
			case wp.JobChannel <- payload:
			case <-ctx.Done():
				// hand it back so it is not lost on shutdown
				wp.requeueRaw(context.Background(), payload)
				return
			}
		}
	}()
}

// claimDue takes the first due job. ZRem decides ownership when several
// pollers race for the same member.
func (wp *WorkerPool) claimDue(ctx context.Context) (string, bool, error) {
	result, err := wp.Redis.ZRangeByScore(ctx, queue.PriorityQueueKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%f", queue.DueScore(wp.now().Unix())),
		Offset: 0,
		Count:  1,
	}).Result()
	if err != nil {
		return "", false, err
	}
	if len(result) == 0 {
		return "", false, nil
	}

	removed, err := wp.Redis.ZRem(ctx, queue.PriorityQueueKey, result[0]).Result()
	if err != nil || removed == 0 {
		return "", false, err
	}
	return result[0], true, nil
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log.Info().Msgf("Worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("Worker %d stopping", id)
			return
		case payload, ok := <-wp.JobChannel:
			if !ok {
				return
			}
			wp.process(ctx, payload)
		}
	}
}

// process runs one job and schedules a retry or dead-letters it on failure.
func (wp *WorkerPool) process(ctx context.Context, payload string) {
	var job queue.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		log.Warn().Err(err).Msg("Worker: failed to unmarshal job payload")
		wp.metrics.ObserveJob("unknown", "invalid")
		return
	}

	err := HandleJob(ctx, job, wp.handler)
	if err == nil {
		wp.metrics.ObserveJob(job.Type, "ok")
		return
	}

	job.Retry++
	job.ErrorMsg = err.Error()

	now := wp.now()
	if job.Retry >= job.MaxRetry || (job.ExpireAt > 0 && now.Unix() > job.ExpireAt) {
		log.Error().Str("job_id", job.ID).Msg("Job moved to DLQ")
		dlqBytes, _ := json.Marshal(job)
		if err := wp.Redis.RPush(ctx, queue.DeadLetterKey, dlqBytes).Err(); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to push job to DLQ")
		}
		wp.metrics.ObserveJob(job.Type, "dead")

		// Dead Letter Alert
		wp.sendDLA(job)
		return
	}

	// retry with backoff
	delay := wp.opts.RetryBase * time.Duration(1<<job.Retry)
	job.RunAt = now.Add(delay).Unix()

	jobBytes, _ := json.Marshal(job)
	if err := wp.Redis.ZAdd(ctx, queue.PriorityQueueKey, redis.Z{
		Score:  queue.Score(job.RunAt, job.Priority),
		Member: jobBytes,
	}).Err(); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to schedule retry")
	}
	wp.metrics.ObserveJob(job.Type, "retry")
	log.Warn().Str("job_id", job.ID).Msgf("Retrying in %v seconds (%d/%d)", delay.Seconds(), job.Retry, job.MaxRetry)
}

func (wp *WorkerPool) requeueRaw(ctx context.Context, payload string) {
	var job queue.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return
	}
	if err := wp.Redis.ZAdd(ctx, queue.PriorityQueueKey, redis.Z{
		Score:  queue.Score(job.RunAt, job.Priority),
		Member: payload,
	}).Err(); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to requeue job on shutdown")
	}
}

func (wp *WorkerPool) sendDLA(job queue.Job) bool {
	wp.dlaMu.Lock()
	defer wp.dlaMu.Unlock()

	now := wp.now()
	lastAlert, ok := wp.dlaCache[job.Type]
	if ok && now.Sub(lastAlert) < wp.opts.AlertCooldown {
		return false
	}

	log.Error().Str("job_id", job.ID).Str("type", job.Type).Str("error", job.ErrorMsg).Msg("Dead Letter Alert: Job failed permanently")

	wp.dlaCache[job.Type] = now
	return true
}

func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
	log.Info().Msg("All workers have stopped")
}
