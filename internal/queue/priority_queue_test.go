package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ricirt/chatpulse/internal/domain"
	"github.com/ricirt/chatpulse/internal/queue"
)

func item(id string, p domain.Priority) queue.Item {
	return queue.Item{JobID: id, Priority: p}
}

func TestPriorityQueue_BasicEnqueueDequeue(t *testing.T) {
	q := queue.New()
	ctx := context.Background()

	if err := q.Enqueue(item("1", domain.PriorityNormal)); err != nil {
		t.Fatal(err)
	}

	got, ok := q.Dequeue(ctx)
	if !ok {
		t.Fatal("expected item, got nothing")
	}
	if got.JobID != "1" {
		t.Fatalf("expected id=1, got %s", got.JobID)
	}
}

// A call notification enqueued after a chat message is still served first.
func TestPriorityQueue_HighBeforeNormal(t *testing.T) {
	q := queue.New()
	ctx := context.Background()

	_ = q.Enqueue(item("normal", domain.PriorityNormal))
	_ = q.Enqueue(item("high", domain.PriorityHigh))

	first, _ := q.Dequeue(ctx)
	if first.JobID != "high" {
		t.Fatalf("expected high to be dequeued first, got %q", first.JobID)
	}
}

func TestPriorityQueue_ContextCancellation(t *testing.T) {
	q := queue.New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(ctx)
		done <- ok
	}()

	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected ok=false after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after context cancellation")
	}
}

func TestPriorityQueue_ErrQueueFull(t *testing.T) {
	q := queue.NewWithCapacity(1, 1)

	if err := q.Enqueue(item("a", domain.PriorityNormal)); err != nil {
		t.Fatalf("unexpected error on empty lane: %v", err)
	}
	if err := q.Enqueue(item("b", domain.PriorityNormal)); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	// The other lane is unaffected.
	if err := q.Enqueue(item("c", domain.PriorityHigh)); err != nil {
		t.Fatalf("high lane should accept: %v", err)
	}
}

func TestPriorityQueue_UnknownPriority(t *testing.T) {
	q := queue.New()
	if err := q.Enqueue(item("x", domain.Priority("low"))); err == nil {
		t.Fatal("expected error for unknown priority")
	}
}

func TestPriorityQueue_ConcurrentEnqueueDequeue(t *testing.T) {
	q := queue.New()

	const producers = 5
	const itemsPerProducer = 100
	const total = producers * itemsPerProducer

	received := make(chan struct{}, total)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var consumerDone sync.WaitGroup
	consumerDone.Add(1)
	go func() {
		defer consumerDone.Done()
		for {
			_, ok := q.Dequeue(ctx)
			if !ok {
				return
			}
			received <- struct{}{}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := domain.PriorityNormal
			if i%2 == 0 {
				p = domain.PriorityHigh
			}
			for j := 0; j < itemsPerProducer; j++ {
				_ = q.Enqueue(item("id", p))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < total; i++ {
		select {
		case <-received:
		case <-ctx.Done():
			t.Fatalf("timeout: only received %d/%d items", i, total)
		}
	}
	cancel()
	consumerDone.Wait()
}

func TestPriorityQueue_Depths(t *testing.T) {
	q := queue.New()

	_ = q.Enqueue(item("h", domain.PriorityHigh))
	_ = q.Enqueue(item("n1", domain.PriorityNormal))
	_ = q.Enqueue(item("n2", domain.PriorityNormal))

	high, normal := q.Depths()
	if high != 1 || normal != 2 {
		t.Fatalf("unexpected depths: high=%d normal=%d", high, normal)
	}
}
