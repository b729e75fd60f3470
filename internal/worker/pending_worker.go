package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ricirt/chatpulse/internal/domain"
	"github.com/ricirt/chatpulse/internal/queue"
	"github.com/ricirt/chatpulse/internal/repository"
)

// PendingWorker polls the durable queue for pending jobs that are due and
// unclaimed, and re-feeds them to the in-memory queue. It recovers jobs
// whose hand-off was dropped, whose retry came due, or whose dispatcher
// died holding a lease.
type PendingWorker struct {
	repo     repository.NotificationRepository
	q        *queue.PriorityQueue
	interval time.Duration
	limit    int
	logger   *zap.Logger
}

func NewPendingWorker(
	repo repository.NotificationRepository,
	q *queue.PriorityQueue,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) *PendingWorker {
	return &PendingWorker{repo: repo, q: q, interval: interval, limit: limit, logger: logger}
}

// Run ticks every interval. Stops cleanly when ctx is cancelled.
func (pw *PendingWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	pw.logger.Info("pending worker started", zap.Duration("interval", pw.interval))

	for {
		select {
		case <-ctx.Done():
			pw.logger.Info("pending worker stopping")
			return
		case <-ticker.C:
			pw.Poll(ctx)
		}
	}
}

// Poll re-feeds one page of due jobs and returns how many were queued.
func (pw *PendingWorker) Poll(ctx context.Context) int {
	jobs, err := pw.repo.PollPending(ctx, time.Now().UTC(), pw.limit)
	if err != nil {
		pw.logger.Error("pending poll error", zap.Error(err))
		return 0
	}

	queued := 0
	for _, j := range jobs {
		err := pw.q.Enqueue(queue.Item{JobID: j.ID, Priority: j.Priority})
		if errors.Is(err, domain.ErrQueueFull) {
			pw.logger.Warn("queue full; remaining pending jobs wait for the next tick",
				zap.Int("left", len(jobs)-queued))
			break
		}
		if err != nil {
			pw.logger.Warn("could not re-enqueue job", zap.String("job_id", j.ID), zap.Error(err))
			continue
		}
		queued++
	}

	if queued > 0 {
		pw.logger.Info("re-enqueued pending jobs", zap.Int("count", queued))
	}
	return queued
}
