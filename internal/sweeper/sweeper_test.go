package sweeper_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ricirt/chatpulse/internal/domain"
	"github.com/ricirt/chatpulse/internal/repository"
	"github.com/ricirt/chatpulse/internal/sweeper"
)

const maxBatch = 450

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newSweeper(store *repository.MemoryStore) *sweeper.Sweeper {
	s := sweeper.New(store, store, store, store, sweeper.Config{
		MaxBatch:               maxBatch,
		NotificationRetention:  7 * 24 * time.Hour,
		NotificationPurgeLimit: 500,
	}, zap.NewNop())
	s.SetClock(func() time.Time { return now })
	return s
}

func retained(id string, minutes int) *domain.Container {
	return &domain.Container{
		ID:                 id,
		Kind:               domain.ContainerGroup,
		Retention:          domain.RetentionPolicy{Enabled: true, DurationMinutes: minutes},
		LastMessagePreview: "stale",
		LastMessageType:    domain.MessageImage,
	}
}

// seedMessages adds n messages created age ago, one second apart.
func seedMessages(store *repository.MemoryStore, containerID string, n int, age time.Duration, typ domain.MessageType) {
	for i := 0; i < n; i++ {
		msg := &domain.Message{
			ID:          fmt.Sprintf("%s-%s-%d", containerID, age, i),
			ContainerID: containerID,
			SenderID:    "u1",
			CreatedAt:   now.Add(-age).Add(time.Duration(i) * time.Second),
			Type:        typ,
		}
		if typ == domain.MessageText {
			msg.Body = fmt.Sprintf("msg %d", i)
		}
		store.PutMessage(msg)
	}
}

func TestPurgeMessages_ThreeCommitsForTwoBatchesPlusOne(t *testing.T) {
	store := repository.NewMemoryStore()
	store.PutContainer(retained("c1", 60))
	seedMessages(store, "c1", 2*maxBatch+1, 2*time.Hour, domain.MessageText)

	report, err := newSweeper(store).PurgeMessages(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{maxBatch, maxBatch, 1}, store.MessageDeleteBatches["c1"])
	assert.Equal(t, 3, report.Commits)
	assert.Equal(t, 2*maxBatch+1, report.MessagesDeleted)
	assert.Zero(t, store.MessageCount("c1"))
}

func TestPurgeMessages_BatchesNeverExceedMax(t *testing.T) {
	store := repository.NewMemoryStore()
	store.PutContainer(retained("c1", 1))
	seedMessages(store, "c1", 1234, time.Hour, domain.MessageText)

	_, err := newSweeper(store).PurgeMessages(context.Background())
	require.NoError(t, err)

	for _, size := range store.MessageDeleteBatches["c1"] {
		assert.LessOrEqual(t, size, maxBatch)
	}
}

func TestPurgeMessages_InactivePolicySkipped(t *testing.T) {
	store := repository.NewMemoryStore()
	zero := retained("zero", 0)
	store.PutContainer(zero)
	negative := retained("negative", -10)
	store.PutContainer(negative)
	disabled := retained("disabled", 1)
	disabled.Retention.Enabled = false
	store.PutContainer(disabled)
	for _, id := range []string{"zero", "negative", "disabled"} {
		seedMessages(store, id, 5, 48*time.Hour, domain.MessageText)
	}

	report, err := newSweeper(store).PurgeMessages(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.MessagesDeleted)
	for _, id := range []string{"zero", "negative", "disabled"} {
		assert.Equal(t, 5, store.MessageCount(id), id)
	}
}

func TestPurgeMessages_AllGoneResetsSummary(t *testing.T) {
	store := repository.NewMemoryStore()
	store.PutContainer(retained("c1", 60))
	seedMessages(store, "c1", 3, 2*time.Hour, domain.MessageImage)

	_, err := newSweeper(store).PurgeMessages(context.Background())
	require.NoError(t, err)

	c, _ := store.GetContainer(context.Background(), "c1")
	assert.Equal(t, "", c.LastMessagePreview)
	assert.Equal(t, domain.MessageText, c.LastMessageType)
}

func TestPurgeMessages_SummaryFromNewestSurvivor(t *testing.T) {
	store := repository.NewMemoryStore()
	store.PutContainer(retained("c1", 60))
	seedMessages(store, "c1", 3, 2*time.Hour, domain.MessageText)
	store.PutMessage(&domain.Message{ID: "old-fresh", ContainerID: "c1", CreatedAt: now.Add(-20 * time.Minute), Type: domain.MessageText, Body: "older survivor"})
	store.PutMessage(&domain.Message{ID: "new-fresh", ContainerID: "c1", CreatedAt: now.Add(-10 * time.Minute), Type: domain.MessageText, Body: "newest survivor"})

	_, err := newSweeper(store).PurgeMessages(context.Background())
	require.NoError(t, err)

	c, _ := store.GetContainer(context.Background(), "c1")
	assert.Equal(t, "newest survivor", c.LastMessagePreview)
	assert.Equal(t, domain.MessageText, c.LastMessageType)
	assert.Equal(t, 2, store.MessageCount("c1"))
}

func TestPurgeMessages_UnknownSurvivorTypeStoredAsText(t *testing.T) {
	store := repository.NewMemoryStore()
	store.PutContainer(retained("c1", 60))
	seedMessages(store, "c1", 2, 2*time.Hour, domain.MessageText)
	store.PutMessage(&domain.Message{ID: "sticker", ContainerID: "c1", CreatedAt: now.Add(-time.Minute), Type: "sticker"})

	_, err := newSweeper(store).PurgeMessages(context.Background())
	require.NoError(t, err)

	c, _ := store.GetContainer(context.Background(), "c1")
	assert.Equal(t, domain.MessageText, c.LastMessageType)
}

func TestPurgeMessages_NothingExpiredLeavesSummary(t *testing.T) {
	store := repository.NewMemoryStore()
	store.PutContainer(retained("c1", 60))
	seedMessages(store, "c1", 2, 10*time.Minute, domain.MessageText)

	report, err := newSweeper(store).PurgeMessages(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Commits)
	c, _ := store.GetContainer(context.Background(), "c1")
	assert.Equal(t, "stale", c.LastMessagePreview)
}

// selectFailsAfter lets the first n expired-message selects through and
// fails every later one.
type selectFailsAfter struct {
	*repository.MemoryStore
	n     int
	calls int
}

func (s *selectFailsAfter) ListExpiredMessageIDs(ctx context.Context, containerID string, cutoff time.Time, limit int) ([]string, error) {
	s.calls++
	if s.calls > s.n {
		return nil, fmt.Errorf("select: %w", domain.ErrStoreUnavailable)
	}
	return s.MemoryStore.ListExpiredMessageIDs(ctx, containerID, cutoff, limit)
}

func TestPurgeMessages_SummaryRefreshedWhenLaterBatchFails(t *testing.T) {
	store := repository.NewMemoryStore()
	store.PutContainer(retained("c1", 60))
	seedMessages(store, "c1", maxBatch, 2*time.Hour, domain.MessageImage)
	store.PutMessage(&domain.Message{ID: "fresh", ContainerID: "c1", CreatedAt: now.Add(-time.Minute), Type: domain.MessageText, Body: "hello"})

	messages := &selectFailsAfter{MemoryStore: store, n: 1}
	s := sweeper.New(store, messages, store, store, sweeper.Config{
		MaxBatch:               maxBatch,
		NotificationRetention:  7 * 24 * time.Hour,
		NotificationPurgeLimit: 500,
	}, zap.NewNop())
	s.SetClock(func() time.Time { return now })

	report, err := s.PurgeMessages(context.Background())
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, maxBatch, report.MessagesDeleted)
	assert.Equal(t, 1, report.Failures)

	c, _ := store.GetContainer(context.Background(), "c1")
	assert.Equal(t, "hello", c.LastMessagePreview)
	assert.Equal(t, domain.MessageText, c.LastMessageType)

	// Nothing is left to expire, so a second run must not be needed to fix
	// the summary.
	report, err = newSweeper(store).PurgeMessages(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.MessagesDeleted)
	c, _ = store.GetContainer(context.Background(), "c1")
	assert.Equal(t, "hello", c.LastMessagePreview)
}

type hungMessages struct {
	*repository.MemoryStore
}

func (hungMessages) ListExpiredMessageIDs(ctx context.Context, _ string, _ time.Time, _ int) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPurgeMessages_HungStoreTimesOutAsOutage(t *testing.T) {
	store := repository.NewMemoryStore()
	store.PutContainer(retained("c1", 60))
	store.PutContainer(retained("c2", 60))
	ts := repository.NewTimeoutStore(store, store, hungMessages{store}, store, 20*time.Millisecond)

	s := sweeper.New(ts, ts, ts, ts, sweeper.Config{
		MaxBatch:               maxBatch,
		NotificationRetention:  7 * 24 * time.Hour,
		NotificationPurgeLimit: 500,
	}, zap.NewNop())
	s.SetClock(func() time.Time { return now })

	report, err := s.PurgeMessages(context.Background())
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 2, report.Failures)
}

func TestPurgeMessages_FailureIsolatedPerContainer(t *testing.T) {
	store := repository.NewMemoryStore()
	store.PutContainer(retained("bad", 60))
	store.PutContainer(retained("good", 60))
	seedMessages(store, "bad", 3, 2*time.Hour, domain.MessageText)
	seedMessages(store, "good", 3, 2*time.Hour, domain.MessageText)
	store.DeleteMessagesErr["bad"] = errors.New("permission denied")

	report, err := newSweeper(store).PurgeMessages(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, []string{"bad"}, report.FailedContainers)
	assert.Zero(t, store.MessageCount("good"))
	assert.Equal(t, 3, store.MessageCount("bad"))
}

func TestPurgeMessages_StoreOutageReportedAfterAllContainers(t *testing.T) {
	store := repository.NewMemoryStore()
	store.PutContainer(retained("a-down", 60))
	store.PutContainer(retained("b-up", 60))
	seedMessages(store, "a-down", 3, 2*time.Hour, domain.MessageText)
	seedMessages(store, "b-up", 3, 2*time.Hour, domain.MessageText)
	store.DeleteMessagesErr["a-down"] = fmt.Errorf("delete: %w", domain.ErrStoreUnavailable)

	report, err := newSweeper(store).PurgeMessages(context.Background())
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
	require.NotNil(t, report)
	assert.Zero(t, store.MessageCount("b-up"))
}

func TestPurgeMessages_ListFailureAborts(t *testing.T) {
	store := repository.NewMemoryStore()
	store.GetContainerErr = domain.ErrStoreUnavailable

	_, err := newSweeper(store).PurgeMessages(context.Background())
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}

func seedJobs(store *repository.MemoryStore, n int, age time.Duration, prefix string) {
	for i := 0; i < n; i++ {
		created := now.Add(-age).Add(time.Duration(i) * time.Second)
		store.PutJob(&domain.NotificationJob{
			ID:           fmt.Sprintf("%s-%d", prefix, i),
			EventKey:     fmt.Sprintf("message:c1:%s-%d", prefix, i),
			TargetUserID: "bob",
			Status:       domain.StatusSent,
			Priority:     domain.PriorityNormal,
			CreatedAt:    created,
		})
	}
}

func TestPurgeNotifications_CapAndChunks(t *testing.T) {
	store := repository.NewMemoryStore()
	seedJobs(store, 620, 8*24*time.Hour, "old")
	seedJobs(store, 10, time.Hour, "new")

	s := newSweeper(store)
	report, err := s.PurgeNotifications(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 500, report.JobsDeleted)
	assert.Equal(t, []int{maxBatch, 50}, store.JobDeleteBatches)
	assert.Equal(t, 130, store.JobCount())

	report, err = s.PurgeNotifications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, report.JobsDeleted)
	assert.Equal(t, 10, store.JobCount())
}

func TestPurgeNotifications_SecondRunDeletesZero(t *testing.T) {
	store := repository.NewMemoryStore()
	seedJobs(store, 30, 10*24*time.Hour, "old")
	s := newSweeper(store)

	first, err := s.PurgeNotifications(context.Background())
	require.NoError(t, err)
	second, err := s.PurgeNotifications(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 30, first.JobsDeleted)
	assert.Zero(t, second.JobsDeleted)
	assert.Zero(t, second.Commits)
}

func TestPurgeNotifications_StoreOutage(t *testing.T) {
	store := repository.NewMemoryStore()
	store.ListJobsErr = domain.ErrStoreUnavailable

	_, err := newSweeper(store).PurgeNotifications(context.Background())
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}

func TestCleanupUser(t *testing.T) {
	store := repository.NewMemoryStore()
	store.PutUser(&domain.User{ID: "gone", NotificationsEnabled: true})
	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = fmt.Sprintf("h-%04d", i)
	}
	store.PutChatHistory("gone", ids...)

	s := newSweeper(store)
	require.NoError(t, s.CleanupUser(context.Background(), "gone"))

	assert.Zero(t, store.ChatHistoryCount("gone"))
	assert.Equal(t, []int{maxBatch, maxBatch, 100}, store.HistoryDeleteBatches)
	_, err := store.GetUser(context.Background(), "gone")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	// Idempotent.
	require.NoError(t, s.CleanupUser(context.Background(), "gone"))
}
