package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricirt/chatpulse/internal/domain"
	"github.com/ricirt/chatpulse/internal/ratelimiter"
)

func TestPriorityLimiters_LanesAreIndependent(t *testing.T) {
	l := ratelimiter.New(1)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, domain.PriorityNormal))

	// The normal bucket is empty now; the high lane must still pass at once.
	start := time.Now()
	require.NoError(t, l.Wait(ctx, domain.PriorityHigh))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPriorityLimiters_CancelledWhileWaiting(t *testing.T) {
	l := ratelimiter.New(1)
	require.NoError(t, l.Wait(context.Background(), domain.PriorityNormal))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, domain.PriorityNormal))
}
