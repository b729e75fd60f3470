package queue

import (
	"context"
	"fmt"

	"github.com/ricirt/chatpulse/internal/domain"
)

// Default lane capacities.
const (
	DefaultHighCapacity   = 1000
	DefaultNormalCapacity = 5000
)

// PriorityQueue is the in-memory hand-off between fan-out and the
// dispatchers. Call notifications go to the high lane, chat messages to
// the normal lane.
//
// Workers dequeue via the double-select pattern, which guarantees that
// high-priority items are always served before normal ones.
type PriorityQueue struct {
	high   chan Item
	normal chan Item
}

func New() *PriorityQueue {
	return NewWithCapacity(DefaultHighCapacity, DefaultNormalCapacity)
}

func NewWithCapacity(high, normal int) *PriorityQueue {
	return &PriorityQueue{
		high:   make(chan Item, high),
		normal: make(chan Item, normal),
	}
}

// Enqueue places an item on the lane for its priority.
// It is non-blocking: a full lane returns ErrQueueFull and the job is left
// for the pending poller.
func (q *PriorityQueue) Enqueue(item Item) error {
	if !item.Priority.IsValid() {
		return fmt.Errorf("unknown priority %q", item.Priority)
	}
	lane := q.normal
	if item.Priority == domain.PriorityHigh {
		lane = q.high
	}
	select {
	case lane <- item:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until an item is available or ctx is cancelled.
//
//  1. A non-blocking select drains the high lane first.
//  2. Only when high is empty does the goroutine block on both lanes plus
//     the done signal, so it sleeps instead of spinning.
//
// Returns (Item{}, false) when ctx is cancelled.
func (q *PriorityQueue) Dequeue(ctx context.Context) (Item, bool) {
	select {
	case item := <-q.high:
		return item, true
	default:
	}

	select {
	case item := <-q.high:
		return item, true
	case item := <-q.normal:
		return item, true
	case <-ctx.Done():
		return Item{}, false
	}
}

// Depths returns the number of items waiting in each lane.
func (q *PriorityQueue) Depths() (high, normal int) {
	return len(q.high), len(q.normal)
}
