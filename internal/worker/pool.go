package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ricirt/chatpulse/internal/queue"
)

// Pool manages the lifecycle of all dispatch workers.
// All workers share the same priority queue; the queue's double-select
// pattern handles priority ordering internally.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

func NewPool(size int, q *queue.PriorityQueue, d *Dispatcher, logger *zap.Logger) *Pool {
	workers := make([]*Worker, size)
	for i := range workers {
		workers[i] = NewWorker(i, q, d, logger.With(zap.Int("worker_id", i)))
	}
	return &Pool{workers: workers}
}

// Start launches all workers. Cancelling ctx shuts the pool down.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
func (p *Pool) Wait() {
	p.wg.Wait()
}
