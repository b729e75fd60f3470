package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/ricirt/chatpulse/internal/domain"
)

// PriorityLimiters holds one token bucket per priority lane so a burst of
// chat messages cannot starve call notifications of transport capacity.
// Burst equals the rate: no saved-up capacity above the per-second maximum.
type PriorityLimiters struct {
	limiters map[domain.Priority]*rate.Limiter
}

// New creates limiters granting ratePerSec sends per second per lane.
func New(ratePerSec int) *PriorityLimiters {
	r := rate.Limit(ratePerSec)
	return &PriorityLimiters{
		limiters: map[domain.Priority]*rate.Limiter{
			domain.PriorityHigh:   rate.NewLimiter(r, ratePerSec),
			domain.PriorityNormal: rate.NewLimiter(r, ratePerSec),
		},
	}
}

// Wait blocks until the lane's limiter grants a token. Unknown priorities
// share the normal lane. Returns an error only if ctx ends while waiting.
func (pl *PriorityLimiters) Wait(ctx context.Context, p domain.Priority) error {
	l, ok := pl.limiters[p]
	if !ok {
		l = pl.limiters[domain.PriorityNormal]
	}
	return l.Wait(ctx)
}
