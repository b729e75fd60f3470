package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/ricirt/chatpulse/internal/queue"
)

// Worker is a single goroutine that pulls job ids from the priority queue
// and hands each to the dispatcher.
type Worker struct {
	id         int
	q          *queue.PriorityQueue
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewWorker(id int, q *queue.PriorityQueue, d *Dispatcher, logger *zap.Logger) *Worker {
	return &Worker{id: id, q: q, dispatcher: d, logger: logger}
}

// Run blocks until ctx is cancelled, processing one queue item per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		item, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		if err := w.dispatcher.Dispatch(ctx, item.JobID); err != nil && ctx.Err() == nil {
			w.logger.Error("dispatch failed",
				zap.String("job_id", item.JobID),
				zap.String("priority", string(item.Priority)),
				zap.Error(err),
			)
		}
	}
}
