package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricirt/chatpulse/internal/domain"
	"github.com/ricirt/chatpulse/internal/metrics"
)

func TestWorkerHooks(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	onSent, onFailed, onRetry, onTokenCleared := m.WorkerHooks()

	onSent(domain.PriorityHigh, 20*time.Millisecond)
	onFailed(domain.PriorityNormal, domain.CodeUnregistered)
	onRetry(domain.PriorityNormal)
	onTokenCleared()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsSent.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsFailed.WithLabelValues("normal", domain.CodeUnregistered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsRetried))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensInvalidated))
}

func TestOnSweep(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.OnSweep("messages", 901, 3, 0)

	assert.Equal(t, 901.0, testutil.ToFloat64(m.SweepDeleted.WithLabelValues("messages")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweepCommits.WithLabelValues("messages")))
}

func TestRegisterQueueDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.RegisterQueueDepth(reg, func() (int, int) { return 2, 7 })

	n, err := testutil.GatherAndCount(reg, "queue_depth_high", "queue_depth_normal")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
