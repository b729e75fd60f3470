// Package sweeper deletes time-expired records in bounded batches and keeps
// the denormalized container summary consistent afterwards.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ricirt/chatpulse/internal/domain"
	"github.com/ricirt/chatpulse/internal/repository"
)

// Sweep names used in logs and metrics.
const (
	SweepMessages      = "messages"
	SweepNotifications = "notifications"
	SweepAccounts      = "accounts"
)

// Config bounds every sweep.
type Config struct {
	// MaxBatch is the most deletions issued in one commit.
	MaxBatch int
	// NotificationRetention is the age after which jobs are purged.
	NotificationRetention time.Duration
	// NotificationPurgeLimit caps the jobs deleted per run.
	NotificationPurgeLimit int
}

// MessagePurgeReport summarizes one message purge run.
type MessagePurgeReport struct {
	ContainersScanned int      `json:"containers_scanned"`
	ContainersPurged  int      `json:"containers_purged"`
	MessagesDeleted   int      `json:"messages_deleted"`
	Commits           int      `json:"commits"`
	Failures          int      `json:"failures"`
	FailedContainers  []string `json:"failed_containers,omitempty"`
}

// NotificationPurgeReport summarizes one notification-queue purge run.
type NotificationPurgeReport struct {
	JobsDeleted int `json:"jobs_deleted"`
	Commits     int `json:"commits"`
}

type Sweeper struct {
	containers repository.ContainerRepository
	messages   repository.MessageRepository
	jobs       repository.NotificationRepository
	users      repository.UserRepository
	cfg        Config
	logger     *zap.Logger

	// OnSweep is called after every run with its totals.
	OnSweep func(sweep string, deleted, commits, failures int)
	now     func() time.Time
}

func New(
	containers repository.ContainerRepository,
	messages repository.MessageRepository,
	jobs repository.NotificationRepository,
	users repository.UserRepository,
	cfg Config,
	logger *zap.Logger,
) *Sweeper {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 450
	}
	return &Sweeper{
		containers: containers,
		messages:   messages,
		jobs:       jobs,
		users:      users,
		cfg:        cfg,
		logger:     logger,
		OnSweep:    func(string, int, int, int) {},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests only.
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

// PurgeMessages deletes expired messages from every container with an
// active retention policy. A failing container is logged and skipped. If
// any failure was a store outage, that error is returned after every
// container has been tried.
func (s *Sweeper) PurgeMessages(ctx context.Context) (*MessagePurgeReport, error) {
	list, err := s.containers.ListRetentionContainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list retention containers: %w", err)
	}

	report := &MessagePurgeReport{}
	var outage error
	for _, c := range list {
		if !c.Retention.Active() {
			continue
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.ContainersScanned++

		deleted, commits, err := s.purgeContainer(ctx, c)
		report.MessagesDeleted += deleted
		report.Commits += commits
		if deleted > 0 {
			report.ContainersPurged++
		}
		if err != nil {
			report.Failures++
			report.FailedContainers = append(report.FailedContainers, c.ID)
			s.logger.Error("message purge failed for container",
				zap.String("container_id", c.ID), zap.Error(err))
			if outage == nil && errors.Is(err, domain.ErrStoreUnavailable) {
				outage = err
			}
		}
	}

	s.OnSweep(SweepMessages, report.MessagesDeleted, report.Commits, report.Failures)
	s.logger.Info("message purge complete",
		zap.Int("containers", report.ContainersScanned),
		zap.Int("deleted", report.MessagesDeleted),
		zap.Int("commits", report.Commits),
		zap.Int("failures", report.Failures),
	)
	return report, outage
}

// purgeContainer deletes in MaxBatch chunks, committing each before
// selecting the next. Once anything has been deleted the summary is
// refreshed, on the error paths too.
func (s *Sweeper) purgeContainer(ctx context.Context, c *domain.Container) (deleted, commits int, err error) {
	cutoff := s.now().Add(-time.Duration(c.Retention.DurationMinutes) * time.Minute)
	defer func() {
		if deleted > 0 {
			s.refreshSummary(ctx, c.ID)
		}
	}()

	for {
		ids, err := s.messages.ListExpiredMessageIDs(ctx, c.ID, cutoff, s.cfg.MaxBatch)
		if err != nil {
			return deleted, commits, fmt.Errorf("select expired: %w", err)
		}
		if len(ids) == 0 {
			return deleted, commits, nil
		}
		n, err := s.messages.DeleteMessages(ctx, c.ID, ids)
		if err != nil {
			return deleted, commits, fmt.Errorf("delete batch: %w", err)
		}
		commits++
		deleted += n
		// A concurrent sweep removed this page; leave the rest to the next tick.
		if n == 0 {
			return deleted, commits, nil
		}
	}
}

// refreshSummary points the container's last-message summary at the newest
// surviving message, or resets it when none remain. Failures are logged.
func (s *Sweeper) refreshSummary(ctx context.Context, containerID string) {
	preview, typ := "", domain.MessageText

	latest, err := s.messages.LatestMessage(ctx, containerID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		s.logger.Error("failed to load latest message",
			zap.String("container_id", containerID), zap.Error(err))
		return
	default:
		preview = latest.Body
		if latest.Type.IsValid() {
			typ = latest.Type
		}
	}

	if err := s.containers.UpdateLastMessage(ctx, containerID, preview, typ); err != nil {
		s.logger.Error("failed to update last message",
			zap.String("container_id", containerID), zap.Error(err))
	}
}

// PurgeNotifications deletes at most NotificationPurgeLimit jobs older than
// NotificationRetention, committed in MaxBatch chunks. Anything beyond the
// limit waits for the next run.
func (s *Sweeper) PurgeNotifications(ctx context.Context) (*NotificationPurgeReport, error) {
	cutoff := s.now().Add(-s.cfg.NotificationRetention)
	ids, err := s.jobs.ListExpiredJobIDs(ctx, cutoff, s.cfg.NotificationPurgeLimit)
	if err != nil {
		return nil, fmt.Errorf("list expired jobs: %w", err)
	}

	report := &NotificationPurgeReport{}
	for _, chunk := range chunks(ids, s.cfg.MaxBatch) {
		n, err := s.jobs.DeleteJobs(ctx, chunk)
		if err != nil {
			s.OnSweep(SweepNotifications, report.JobsDeleted, report.Commits, 1)
			return report, fmt.Errorf("delete jobs: %w", err)
		}
		report.Commits++
		report.JobsDeleted += n
	}

	s.OnSweep(SweepNotifications, report.JobsDeleted, report.Commits, 0)
	s.logger.Info("notification purge complete",
		zap.Int("deleted", report.JobsDeleted),
		zap.Int("commits", report.Commits),
		zap.Time("cutoff", cutoff),
	)
	return report, nil
}

// CleanupUser removes the user's chat history in MaxBatch chunks and then
// the profile itself. Re-running it for a removed user is a no-op.
func (s *Sweeper) CleanupUser(ctx context.Context, userID string) error {
	log := s.logger.With(zap.String("user_id", userID))

	deleted, commits := 0, 0
	for {
		ids, err := s.users.ListChatHistoryIDs(ctx, userID, s.cfg.MaxBatch)
		if err != nil {
			return fmt.Errorf("list chat history: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		n, err := s.users.DeleteChatHistory(ctx, userID, ids)
		if err != nil {
			return fmt.Errorf("delete chat history: %w", err)
		}
		commits++
		deleted += n
		if n == 0 {
			break
		}
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.OnSweep(SweepAccounts, deleted, commits, 0)
	log.Info("user data cleaned up", zap.Int("history_deleted", deleted))
	return nil
}

func chunks(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
