package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ricirt/chatpulse/internal/domain"
)

// TimeoutStore bounds every repository call with a deadline. A call that
// runs out of time surfaces as domain.ErrStoreUnavailable, so a hung
// connection costs one tick instead of a goroutine.
type TimeoutStore struct {
	jobs       NotificationRepository
	containers ContainerRepository
	messages   MessageRepository
	users      UserRepository
	timeout    time.Duration
}

func NewTimeoutStore(
	jobs NotificationRepository,
	containers ContainerRepository,
	messages MessageRepository,
	users UserRepository,
	timeout time.Duration,
) *TimeoutStore {
	return &TimeoutStore{jobs: jobs, containers: containers, messages: messages, users: users, timeout: timeout}
}

var (
	_ NotificationRepository = (*TimeoutStore)(nil)
	_ ContainerRepository    = (*TimeoutStore)(nil)
	_ MessageRepository      = (*TimeoutStore)(nil)
	_ UserRepository         = (*TimeoutStore)(nil)
)

func bounded[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := op(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrStoreUnavailable) {
		err = fmt.Errorf("store deadline: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return v, err
}

func boundedErr(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	_, err := bounded(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// ---- notification jobs ----

func (s *TimeoutStore) Enqueue(ctx context.Context, jobs []*domain.NotificationJob) ([]string, error) {
	return bounded(ctx, s.timeout, func(ctx context.Context) ([]string, error) {
		return s.jobs.Enqueue(ctx, jobs)
	})
}

func (s *TimeoutStore) GetByID(ctx context.Context, id string) (*domain.NotificationJob, error) {
	return bounded(ctx, s.timeout, func(ctx context.Context) (*domain.NotificationJob, error) {
		return s.jobs.GetByID(ctx, id)
	})
}

func (s *TimeoutStore) PollPending(ctx context.Context, now time.Time, limit int) ([]*domain.NotificationJob, error) {
	return bounded(ctx, s.timeout, func(ctx context.Context) ([]*domain.NotificationJob, error) {
		return s.jobs.PollPending(ctx, now, limit)
	})
}

func (s *TimeoutStore) Claim(ctx context.Context, id string, now time.Time, lease time.Duration) (bool, error) {
	return bounded(ctx, s.timeout, func(ctx context.Context) (bool, error) {
		return s.jobs.Claim(ctx, id, now, lease)
	})
}

func (s *TimeoutStore) MarkSent(ctx context.Context, id, providerMsgID string, at time.Time) error {
	return boundedErr(ctx, s.timeout, func(ctx context.Context) error {
		return s.jobs.MarkSent(ctx, id, providerMsgID, at)
	})
}

func (s *TimeoutStore) MarkFailed(ctx context.Context, id string, jobErr domain.JobError, at time.Time) error {
	return boundedErr(ctx, s.timeout, func(ctx context.Context) error {
		return s.jobs.MarkFailed(ctx, id, jobErr, at)
	})
}

func (s *TimeoutStore) ScheduleRetry(ctx context.Context, id string, attempts int, next time.Time, jobErr domain.JobError) error {
	return boundedErr(ctx, s.timeout, func(ctx context.Context) error {
		return s.jobs.ScheduleRetry(ctx, id, attempts, next, jobErr)
	})
}

func (s *TimeoutStore) ListExpiredJobIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return bounded(ctx, s.timeout, func(ctx context.Context) ([]string, error) {
		return s.jobs.ListExpiredJobIDs(ctx, cutoff, limit)
	})
}

func (s *TimeoutStore) DeleteJobs(ctx context.Context, ids []string) (int, error) {
	return bounded(ctx, s.timeout, func(ctx context.Context) (int, error) {
		return s.jobs.DeleteJobs(ctx, ids)
	})
}

// ---- containers ----

func (s *TimeoutStore) GetContainer(ctx context.Context, id string) (*domain.Container, error) {
	return bounded(ctx, s.timeout, func(ctx context.Context) (*domain.Container, error) {
		return s.containers.GetContainer(ctx, id)
	})
}

func (s *TimeoutStore) ListRetentionContainers(ctx context.Context) ([]*domain.Container, error) {
	return bounded(ctx, s.timeout, s.containers.ListRetentionContainers)
}

func (s *TimeoutStore) UpdateLastMessage(ctx context.Context, id, preview string, typ domain.MessageType) error {
	return boundedErr(ctx, s.timeout, func(ctx context.Context) error {
		return s.containers.UpdateLastMessage(ctx, id, preview, typ)
	})
}

// ---- messages ----

func (s *TimeoutStore) ListExpiredMessageIDs(ctx context.Context, containerID string, cutoff time.Time, limit int) ([]string, error) {
	return bounded(ctx, s.timeout, func(ctx context.Context) ([]string, error) {
		return s.messages.ListExpiredMessageIDs(ctx, containerID, cutoff, limit)
	})
}

func (s *TimeoutStore) DeleteMessages(ctx context.Context, containerID string, ids []string) (int, error) {
	return bounded(ctx, s.timeout, func(ctx context.Context) (int, error) {
		return s.messages.DeleteMessages(ctx, containerID, ids)
	})
}

func (s *TimeoutStore) LatestMessage(ctx context.Context, containerID string) (*domain.Message, error) {
	return bounded(ctx, s.timeout, func(ctx context.Context) (*domain.Message, error) {
		return s.messages.LatestMessage(ctx, containerID)
	})
}

// ---- users ----

func (s *TimeoutStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return bounded(ctx, s.timeout, func(ctx context.Context) (*domain.User, error) {
		return s.users.GetUser(ctx, id)
	})
}

func (s *TimeoutStore) ClearDeliveryToken(ctx context.Context, userID, token string) (bool, error) {
	return bounded(ctx, s.timeout, func(ctx context.Context) (bool, error) {
		return s.users.ClearDeliveryToken(ctx, userID, token)
	})
}

func (s *TimeoutStore) ListChatHistoryIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	return bounded(ctx, s.timeout, func(ctx context.Context) ([]string, error) {
		return s.users.ListChatHistoryIDs(ctx, userID, limit)
	})
}

func (s *TimeoutStore) DeleteChatHistory(ctx context.Context, userID string, ids []string) (int, error) {
	return bounded(ctx, s.timeout, func(ctx context.Context) (int, error) {
		return s.users.DeleteChatHistory(ctx, userID, ids)
	})
}

func (s *TimeoutStore) DeleteUser(ctx context.Context, userID string) error {
	return boundedErr(ctx, s.timeout, func(ctx context.Context) error {
		return s.users.DeleteUser(ctx, userID)
	})
}
