package resolver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ricirt/chatpulse/internal/domain"
	"github.com/ricirt/chatpulse/internal/repository"
)

// Recipient is a user who should receive a push for an event.
type Recipient struct {
	UserID      string
	DisplayName string
	Token       string
}

// Resolver computes the target set of an event from its container.
type Resolver struct {
	users       repository.UserRepository
	concurrency int
	logger      *zap.Logger
}

func New(users repository.UserRepository, concurrency int, logger *zap.Logger) *Resolver {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Resolver{users: users, concurrency: concurrency, logger: logger}
}

// Resolve returns the reachable recipients of ev in member order.
// The sender is never a recipient. It returns domain.ErrNoRecipient when the
// container has nobody besides the sender, and an error wrapping
// domain.ErrStoreUnavailable when any profile read fails for a reason other
// than the profile being absent.
func (r *Resolver) Resolve(ctx context.Context, ev *domain.Event, c *domain.Container) ([]Recipient, error) {
	candidates := candidatesFor(ev.SenderID, c.Participants())
	if len(candidates) == 0 {
		return nil, fmt.Errorf("container %q: %w", c.ID, domain.ErrNoRecipient)
	}

	profiles := make([]*domain.User, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, uid := range candidates {
		g.Go(func() error {
			u, err := r.users.GetUser(gctx, uid)
			if errors.Is(err, domain.ErrNotFound) {
				r.logger.Debug("recipient profile missing",
					zap.String("user_id", uid),
					zap.String("container_id", c.ID),
				)
				return nil
			}
			if err != nil {
				if !errors.Is(err, domain.ErrStoreUnavailable) {
					err = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
				}
				return fmt.Errorf("get user %q: %w", uid, err)
			}
			profiles[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recipients := make([]Recipient, 0, len(profiles))
	for _, u := range profiles {
		if u == nil || !u.Reachable() {
			continue
		}
		recipients = append(recipients, Recipient{
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			Token:       *u.DeliveryToken,
		})
	}
	return recipients, nil
}

// candidatesFor drops the sender and duplicate ids, keeping member order.
func candidatesFor(senderID string, members []string) []string {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m == "" || m == senderID {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
