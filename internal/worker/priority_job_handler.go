package worker

import (
	"context"
	"fmt"

	"github.com/quocdatk18/appchat-sub000/internal/queue"
	worker_handler "github.com/quocdatk18/appchat-sub000/internal/worker/worker-handler"
)

func HandleJob(ctx context.Context, job queue.Job, wh *worker_handler.WorkerHandler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch job.Type {
	case queue.JobBroadcastEvent:
		return wh.HandleBroadcastEvent(job.Payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}
