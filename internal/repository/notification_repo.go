package repository

import (
	"context"
	"time"

	"github.com/ricirt/chatpulse/internal/domain"
)

// NotificationRepository is the durable notification queue.
// The pgx implementation is in pg_notification_repo.go.
// Tests use the in-memory store (memory_store.go).
type NotificationRepository interface {
	// Enqueue persists every job of one fan-out atomically and returns the
	// ids of the rows it inserted. Jobs whose (event key, target) already
	// exist are skipped.
	Enqueue(ctx context.Context, jobs []*domain.NotificationJob) ([]string, error)
	GetByID(ctx context.Context, id string) (*domain.NotificationJob, error)
	// PollPending returns pending jobs that are due and not currently claimed.
	PollPending(ctx context.Context, now time.Time, limit int) ([]*domain.NotificationJob, error)
	// Claim takes a lease on a pending job. It reports false when the job is
	// no longer pending or another dispatcher holds an unexpired lease.
	Claim(ctx context.Context, id string, now time.Time, lease time.Duration) (bool, error)
	MarkSent(ctx context.Context, id, providerMsgID string, at time.Time) error
	MarkFailed(ctx context.Context, id string, jobErr domain.JobError, at time.Time) error
	// ScheduleRetry keeps the job pending, releases the lease and pushes
	// next_attempt_at out.
	ScheduleRetry(ctx context.Context, id string, attempts int, next time.Time, jobErr domain.JobError) error

	ListExpiredJobIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	// DeleteJobs removes ids in a single commit. Missing ids are no-ops.
	DeleteJobs(ctx context.Context, ids []string) (int, error)
}
