package worker

import (
	"context"
	"sync"
)

// Group tracks the ticker loops (pending poller, sweeps) so shutdown can
// wait for an in-flight poll or batch before the store is closed.
type Group struct {
	wg sync.WaitGroup
}

// Go runs loop in its own goroutine.
func (g *Group) Go(ctx context.Context, loop func(context.Context)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		loop(ctx)
	}()
}

// Wait blocks until every loop has returned after ctx is cancelled.
func (g *Group) Wait() {
	g.wg.Wait()
}
