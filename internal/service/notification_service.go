package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/ricirt/chatpulse/internal/domain"
	"github.com/ricirt/chatpulse/internal/normalizer"
	"github.com/ricirt/chatpulse/internal/queue"
	"github.com/ricirt/chatpulse/internal/repository"
	"github.com/ricirt/chatpulse/internal/resolver"
)

// Dispatcher delivers one persisted job synchronously.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// FanoutResult describes what one event produced.
type FanoutResult struct {
	EventID string   `json:"event_id"`
	Jobs    int      `json:"jobs"`
	JobIDs  []string `json:"job_ids,omitempty"`
}

// NotificationService turns create-events into durable notification jobs
// and hands them to the dispatcher queue.
// HTTP handlers depend on this service, not on the repositories.
type NotificationService struct {
	containers repository.ContainerRepository
	jobs       repository.NotificationRepository
	resolver   *resolver.Resolver
	q          *queue.PriorityQueue
	logger     *zap.Logger

	// OnEnqueued is called with the number of newly persisted jobs.
	OnEnqueued func(domain.Priority, int)
	now        func() time.Time
}

func NewNotificationService(
	containers repository.ContainerRepository,
	jobs repository.NotificationRepository,
	res *resolver.Resolver,
	q *queue.PriorityQueue,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		containers: containers,
		jobs:       jobs,
		resolver:   res,
		q:          q,
		logger:     logger,
		OnEnqueued: func(domain.Priority, int) {},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// HandleMessage fans out a new chat message.
func (s *NotificationService) HandleMessage(ctx context.Context, raw domain.RawEvent) (*FanoutResult, error) {
	raw.Kind = domain.EventMessage
	return s.fanout(ctx, raw)
}

// HandleCall fans out an incoming call at high priority.
func (s *NotificationService) HandleCall(ctx context.Context, raw domain.RawEvent) (*FanoutResult, error) {
	raw.Kind = domain.EventCall
	return s.fanout(ctx, raw)
}

// SendNow fans out raw and dispatches the new jobs inline instead of
// waiting for a worker. Delivery failures are recorded on the jobs, not
// returned.
func (s *NotificationService) SendNow(ctx context.Context, raw domain.RawEvent, d Dispatcher) (*FanoutResult, error) {
	res, err := s.persist(ctx, raw)
	if err != nil || res.Jobs == 0 {
		return res, err
	}
	for _, id := range res.JobIDs {
		if err := d.Dispatch(ctx, id); err != nil {
			s.logger.Warn("direct dispatch failed; job left for the pending poller",
				zap.String("job_id", id), zap.Error(err))
		}
	}
	return res, nil
}

func (s *NotificationService) GetJob(ctx context.Context, id string) (*domain.NotificationJob, error) {
	return s.jobs.GetByID(ctx, id)
}

func (s *NotificationService) fanout(ctx context.Context, raw domain.RawEvent) (*FanoutResult, error) {
	res, err := s.persist(ctx, raw)
	if err != nil || res.Jobs == 0 {
		return res, err
	}
	s.handoff(res.JobIDs, priorityOf(raw.Kind))
	return res, nil
}

// persist runs normalize -> container lookup -> resolve -> enqueue.
// Malformed events, unknown or invalid containers and events without
// recipients are logged no-ops. Only store failures are returned.
func (s *NotificationService) persist(ctx context.Context, raw domain.RawEvent) (*FanoutResult, error) {
	if raw.ID == "" {
		raw.ID = uuid.NewString()
	}
	if raw.Kind == "" {
		raw.Kind = domain.EventMessage
	}
	res := &FanoutResult{EventID: raw.ID}
	log := s.logger.With(
		zap.String("event_id", raw.ID),
		zap.String("container_id", raw.ContainerID),
		zap.String("kind", string(raw.Kind)),
	)

	ev, err := normalizer.Normalize(raw, s.now())
	if err != nil {
		log.Warn("dropping malformed event", zap.Error(err))
		return res, nil
	}

	c, err := s.containers.GetContainer(ctx, ev.ContainerID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info("container not found; nothing to notify")
		return res, nil
	}
	if errors.Is(err, domain.ErrInvalidContainer) {
		log.Warn("dropping event for invalid container", zap.Error(err))
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load container: %w", err)
	}

	recipients, err := s.resolver.Resolve(ctx, ev, c)
	if errors.Is(err, domain.ErrNoRecipient) {
		log.Info("no recipient resolved", zap.String("sender_id", ev.SenderID))
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	if len(recipients) == 0 {
		log.Debug("no reachable recipient")
		return res, nil
	}

	jobs := s.buildJobs(ev, c, recipients)
	inserted, err := s.jobs.Enqueue(ctx, jobs)
	if err != nil {
		return nil, fmt.Errorf("enqueue jobs: %w", err)
	}
	if len(inserted) < len(jobs) {
		log.Info("redelivered event; existing jobs kept",
			zap.Int("new", len(inserted)), zap.Int("total", len(jobs)))
	}
	s.OnEnqueued(ev.Priority(), len(inserted))

	res.Jobs = len(inserted)
	res.JobIDs = inserted
	return res, nil
}

func (s *NotificationService) buildJobs(ev *domain.Event, c *domain.Container, recipients []resolver.Recipient) []*domain.NotificationJob {
	now := s.now()
	title := titleFor(ev, c)
	body := normalizer.Preview(ev, c.Kind)
	if body == "" {
		body = normalizer.FallbackBody
	}
	key := eventKey(ev)

	jobs := make([]*domain.NotificationJob, len(recipients))
	for i, r := range recipients {
		jobs[i] = &domain.NotificationJob{
			ID:            ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
			EventKey:      key,
			TargetUserID:  r.UserID,
			SenderID:      ev.SenderID,
			Token:         r.Token,
			Title:         title,
			Body:          body,
			Payload:       payloadFor(ev),
			Priority:      ev.Priority(),
			Status:        domain.StatusPending,
			NextAttemptAt: now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	return jobs
}

// handoff offers jobs to the in-memory queue. A full lane leaves the job
// pending for the poller.
func (s *NotificationService) handoff(ids []string, p domain.Priority) {
	for _, id := range ids {
		if err := s.q.Enqueue(queue.Item{JobID: id, Priority: p}); err != nil {
			s.logger.Warn("queue full: job will remain pending",
				zap.String("job_id", id), zap.Error(err))
		}
	}
}

func eventKey(ev *domain.Event) string {
	return string(ev.Kind) + ":" + ev.ContainerID + ":" + ev.ID
}

func priorityOf(k domain.EventKind) domain.Priority {
	if k == domain.EventCall {
		return domain.PriorityHigh
	}
	return domain.PriorityNormal
}

func titleFor(ev *domain.Event, c *domain.Container) string {
	name := ev.SenderName
	switch {
	case name == "" && ev.Kind == domain.EventCall:
		name = "Incoming call"
	case name == "":
		name = "New Message"
	}
	if c.Kind == domain.ContainerGroup && c.Name != "" {
		return name + " @ " + c.Name
	}
	return name
}

func payloadFor(ev *domain.Event) map[string]string {
	typ := "chat"
	if ev.Kind == domain.EventCall {
		typ = "call"
	}
	p := map[string]string{
		"type":     typ,
		"chatId":   ev.ContainerID,
		"senderId": ev.SenderID,
		"eventId":  ev.ID,
	}
	for k, v := range ev.Metadata {
		if _, reserved := p[k]; !reserved {
			p[k] = v
		}
	}
	return p
}
