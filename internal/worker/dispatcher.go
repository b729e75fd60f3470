package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ricirt/chatpulse/internal/domain"
	"github.com/ricirt/chatpulse/internal/provider"
	"github.com/ricirt/chatpulse/internal/ratelimiter"
	"github.com/ricirt/chatpulse/internal/repository"
)

// Android notification channel used for urgent pushes.
const highImportanceChannel = "high_importance_channel"

// CodeInternal marks a job that failed for a reason other than the transport.
const CodeInternal = "internal"

// MetricHooks carries the metric callbacks injected by main.
// Nil fields are no-ops.
type MetricHooks struct {
	OnSent         func(p domain.Priority, latency time.Duration)
	OnFailed       func(p domain.Priority, code string)
	OnRetry        func(p domain.Priority)
	OnTokenCleared func()
}

func (h *MetricHooks) fill() {
	if h.OnSent == nil {
		h.OnSent = func(domain.Priority, time.Duration) {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func(domain.Priority, string) {}
	}
	if h.OnRetry == nil {
		h.OnRetry = func(domain.Priority) {}
	}
	if h.OnTokenCleared == nil {
		h.OnTokenCleared = func() {}
	}
}

// DispatcherConfig bounds a single delivery.
type DispatcherConfig struct {
	Backoff     []time.Duration
	MaxAttempts int
	ClaimLease  time.Duration
	Timeout     time.Duration
}

// Dispatcher delivers one pending job to the push transport and records a
// terminal outcome on it.
type Dispatcher struct {
	jobs    repository.NotificationRepository
	users   repository.UserRepository
	prov    provider.Provider
	limiter *ratelimiter.PriorityLimiters
	cfg     DispatcherConfig
	hooks   MetricHooks
	logger  *zap.Logger
	now     func() time.Time
}

func NewDispatcher(
	jobs repository.NotificationRepository,
	users repository.UserRepository,
	prov provider.Provider,
	limiter *ratelimiter.PriorityLimiters,
	cfg DispatcherConfig,
	hooks MetricHooks,
	logger *zap.Logger,
) *Dispatcher {
	hooks.fill()
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = []time.Duration{time.Minute}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Dispatcher{
		jobs: jobs, users: users, prov: prov, limiter: limiter,
		cfg: cfg, hooks: hooks, logger: logger,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch delivers job id. Jobs that are missing, already terminal or
// claimed by another dispatcher are skipped. The returned error is non-nil
// only when the outcome could not be recorded or ctx ended; the job then
// stays pending and its lease expires.
func (d *Dispatcher) Dispatch(ctx context.Context, id string) error {
	log := d.logger.With(zap.String("job_id", id))

	job, err := d.jobs.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		log.Debug("job not found; skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Terminal() {
		log.Debug("job already terminal", zap.String("status", string(job.Status)))
		return nil
	}

	start := d.now()
	claimed, err := d.jobs.Claim(ctx, id, start, d.cfg.ClaimLease)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if !claimed {
		log.Debug("job claimed elsewhere")
		return nil
	}

	if err := d.limiter.Wait(ctx, job.Priority); err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	resp, sendErr := d.prov.Send(sendCtx, pushMessageFor(job))
	cancel()

	if sendErr != nil && ctx.Err() != nil {
		// Shutting down: leave the job to the next claimant.
		return ctx.Err()
	}

	log = log.With(zap.String("user_id", job.TargetUserID))
	now := d.now()
	if sendErr == nil {
		if err := d.jobs.MarkSent(ctx, id, resp.MessageID, now); err != nil {
			return fmt.Errorf("mark sent: %w", err)
		}
		latency := now.Sub(start)
		d.hooks.OnSent(job.Priority, latency)
		log.Info("notification sent",
			zap.String("provider_msg_id", resp.MessageID),
			zap.Duration("latency", latency),
		)
		return nil
	}

	if te, ok := domain.AsTransportError(sendErr); ok {
		return d.fail(ctx, log, job, domain.JobError{Code: te.Code, Message: te.Message}, te.IsInvalidToken())
	}

	if errors.Is(sendErr, domain.ErrTransportUnavailable) || errors.Is(sendErr, context.DeadlineExceeded) {
		return d.retryOrFail(ctx, log, job, sendErr)
	}

	return d.fail(ctx, log, job, domain.JobError{Code: CodeInternal, Message: sendErr.Error()}, false)
}

func (d *Dispatcher) fail(ctx context.Context, log *zap.Logger, job *domain.NotificationJob, jobErr domain.JobError, invalidToken bool) error {
	if err := d.jobs.MarkFailed(ctx, job.ID, jobErr, d.now()); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	d.hooks.OnFailed(job.Priority, jobErr.Code)
	log.Warn("notification failed",
		zap.String("code", jobErr.Code),
		zap.String("message", jobErr.Message),
	)

	if invalidToken {
		d.invalidateToken(ctx, log, job)
	}
	return nil
}

// invalidateToken clears the recipient's token only if it still equals the
// token the job was sent to, so a token refreshed meanwhile survives.
// Best effort: a failure is logged and not retried.
func (d *Dispatcher) invalidateToken(ctx context.Context, log *zap.Logger, job *domain.NotificationJob) {
	cleared, err := d.users.ClearDeliveryToken(ctx, job.TargetUserID, job.Token)
	if err != nil {
		log.Error("failed to clear delivery token", zap.Error(err))
		return
	}
	if cleared {
		d.hooks.OnTokenCleared()
		log.Info("cleared invalid delivery token")
	}
}

func (d *Dispatcher) retryOrFail(ctx context.Context, log *zap.Logger, job *domain.NotificationJob, sendErr error) error {
	attempts := job.Attempts + 1
	jobErr := domain.JobError{Code: domain.CodeUnavailable, Message: sendErr.Error()}

	if attempts >= d.cfg.MaxAttempts {
		return d.fail(ctx, log, job, jobErr, false)
	}

	next := d.now().Add(d.backoff(attempts))
	if err := d.jobs.ScheduleRetry(ctx, job.ID, attempts, next, jobErr); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	d.hooks.OnRetry(job.Priority)
	log.Warn("transport unavailable; retry scheduled",
		zap.Int("attempts", attempts),
		zap.Time("next_attempt_at", next),
		zap.Error(sendErr),
	)
	return nil
}

// backoff returns the delay after the given attempt count:
//
//	attempt 1 -> Backoff[0]
//	attempt 2 -> Backoff[1]
//	attempt N >= len(Backoff) -> last entry
func (d *Dispatcher) backoff(attempts int) time.Duration {
	idx := attempts - 1
	if idx >= len(d.cfg.Backoff) {
		idx = len(d.cfg.Backoff) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return d.cfg.Backoff[idx]
}

func pushMessageFor(job *domain.NotificationJob) *domain.PushMessage {
	hints := domain.DeliveryHints{
		Priority:       job.Priority,
		Sound:          "default",
		BadgeIncrement: 1,
	}
	if job.Priority == domain.PriorityHigh {
		hints.AndroidChannel = highImportanceChannel
	}
	return &domain.PushMessage{
		Token: job.Token,
		Title: job.Title,
		Body:  job.Body,
		Data:  job.Payload,
		Hints: hints,
	}
}
