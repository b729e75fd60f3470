package queue

import "github.com/ricirt/chatpulse/internal/domain"

// Item is the minimal data placed on the queue.
// Dispatchers load the full job from the store by ID, so the durable
// queue stays authoritative and a lost Item only delays delivery.
type Item struct {
	JobID    string
	Priority domain.Priority
}
