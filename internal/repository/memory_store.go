package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ricirt/chatpulse/internal/domain"
)

// MemoryStore is a hand-written, in-memory implementation of every
// repository interface. It backs the unit tests and the local "memory"
// store mode. No mock-generation library needed.
type MemoryStore struct {
	mu         sync.RWMutex
	containers map[string]*domain.Container
	messages   map[string]map[string]*domain.Message
	users      map[string]*domain.User
	history    map[string]map[string]struct{}
	jobs       map[string]*domain.NotificationJob
	jobKeys    map[string]string

	// Commit sizes, recorded per delete call so tests can assert batching.
	MessageDeleteBatches map[string][]int
	JobDeleteBatches     []int
	HistoryDeleteBatches []int

	// Optional error overrides. Set in tests to simulate failure paths.
	EnqueueErr      error
	GetContainerErr error
	GetUserErr      error
	ListJobsErr     error
	// DeleteMessagesErr fails deletes for the listed container ids only.
	DeleteMessagesErr map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		containers:           make(map[string]*domain.Container),
		messages:             make(map[string]map[string]*domain.Message),
		users:                make(map[string]*domain.User),
		history:              make(map[string]map[string]struct{}),
		jobs:                 make(map[string]*domain.NotificationJob),
		jobKeys:              make(map[string]string),
		MessageDeleteBatches: make(map[string][]int),
		DeleteMessagesErr:    make(map[string]error),
	}
}

var (
	_ NotificationRepository = (*MemoryStore)(nil)
	_ ContainerRepository    = (*MemoryStore)(nil)
	_ MessageRepository      = (*MemoryStore)(nil)
	_ UserRepository         = (*MemoryStore)(nil)
)

// ---- seeding ----

func (m *MemoryStore) PutContainer(c *domain.Container) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	clone.Members = append([]string(nil), c.Members...)
	m.containers[c.ID] = &clone
}

func (m *MemoryStore) PutMessage(msg *domain.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.messages[msg.ContainerID]
	if !ok {
		byID = make(map[string]*domain.Message)
		m.messages[msg.ContainerID] = byID
	}
	clone := *msg
	byID[msg.ID] = &clone
}

func (m *MemoryStore) PutUser(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *u
	if u.DeliveryToken != nil {
		tok := *u.DeliveryToken
		clone.DeliveryToken = &tok
	}
	m.users[u.ID] = &clone
}

func (m *MemoryStore) PutChatHistory(userID string, ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.history[userID]
	if !ok {
		set = make(map[string]struct{})
		m.history[userID] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// PutJob stores a job as-is, bypassing idempotency checks.
func (m *MemoryStore) PutJob(j *domain.NotificationJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *j
	m.jobs[j.ID] = &clone
	m.jobKeys[jobKey(j)] = j.ID
}

func (m *MemoryStore) MessageCount(containerID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[containerID])
}

func (m *MemoryStore) ChatHistoryCount(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history[userID])
}

func (m *MemoryStore) JobCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// ---- NotificationRepository ----

func jobKey(j *domain.NotificationJob) string {
	return j.EventKey + "\x00" + j.TargetUserID
}

func (m *MemoryStore) Enqueue(_ context.Context, jobs []*domain.NotificationJob) ([]string, error) {
	if m.EnqueueErr != nil {
		return nil, m.EnqueueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var inserted []string
	for _, j := range jobs {
		key := jobKey(j)
		if _, exists := m.jobKeys[key]; exists {
			continue
		}
		clone := *j
		m.jobs[j.ID] = &clone
		m.jobKeys[key] = j.ID
		inserted = append(inserted, j.ID)
	}
	return inserted, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*domain.NotificationJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *j
	return &clone, nil
}

func (m *MemoryStore) PollPending(_ context.Context, now time.Time, limit int) ([]*domain.NotificationJob, error) {
	if m.ListJobsErr != nil {
		return nil, m.ListJobsErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []*domain.NotificationJob
	for _, j := range m.jobs {
		if j.Status != domain.StatusPending || j.NextAttemptAt.After(now) {
			continue
		}
		if j.ClaimedUntil != nil && !j.ClaimedUntil.Before(now) {
			continue
		}
		clone := *j
		due = append(due, &clone)
	}
	sort.Slice(due, func(a, b int) bool { return due[a].NextAttemptAt.Before(due[b].NextAttemptAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MemoryStore) Claim(_ context.Context, id string, now time.Time, lease time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != domain.StatusPending {
		return false, nil
	}
	if j.ClaimedUntil != nil && !j.ClaimedUntil.Before(now) {
		return false, nil
	}
	until := now.Add(lease)
	j.ClaimedUntil = &until
	j.UpdatedAt = now
	return true, nil
}

func (m *MemoryStore) MarkSent(_ context.Context, id, providerMsgID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.Status == domain.StatusPending {
		j.Status = domain.StatusSent
		j.ProviderMsgID = &providerMsgID
		j.Attempts++
		j.ClaimedUntil = nil
		j.LastError = nil
		j.UpdatedAt = at
	}
	return nil
}

func (m *MemoryStore) MarkFailed(_ context.Context, id string, jobErr domain.JobError, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.Status == domain.StatusPending {
		j.Status = domain.StatusFailed
		j.Attempts++
		j.ClaimedUntil = nil
		j.LastError = &jobErr
		j.UpdatedAt = at
	}
	return nil
}

func (m *MemoryStore) ScheduleRetry(_ context.Context, id string, attempts int, next time.Time, jobErr domain.JobError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.Status == domain.StatusPending {
		j.Attempts = attempts
		j.NextAttemptAt = next
		j.ClaimedUntil = nil
		j.LastError = &jobErr
	}
	return nil
}

func (m *MemoryStore) ListExpiredJobIDs(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	if m.ListJobsErr != nil {
		return nil, m.ListJobsErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var expired []*domain.NotificationJob
	for _, j := range m.jobs {
		if j.CreatedAt.Before(cutoff) {
			expired = append(expired, j)
		}
	}
	sort.Slice(expired, func(a, b int) bool { return expired[a].CreatedAt.Before(expired[b].CreatedAt) })
	ids := make([]string, 0, len(expired))
	for _, j := range expired {
		if len(ids) == limit {
			break
		}
		ids = append(ids, j.ID)
	}
	return ids, nil
}

func (m *MemoryStore) DeleteJobs(_ context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.JobDeleteBatches = append(m.JobDeleteBatches, len(ids))
	n := 0
	for _, id := range ids {
		if j, ok := m.jobs[id]; ok {
			delete(m.jobKeys, jobKey(j))
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}

// ---- ContainerRepository ----

func (m *MemoryStore) GetContainer(_ context.Context, id string) (*domain.Container, error) {
	if m.GetContainerErr != nil {
		return nil, m.GetContainerErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.containers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !c.Kind.IsValid() {
		return nil, invalidKind(c)
	}
	clone := *c
	clone.Members = append([]string(nil), c.Members...)
	return &clone, nil
}

func (m *MemoryStore) ListRetentionContainers(_ context.Context) ([]*domain.Container, error) {
	if m.GetContainerErr != nil {
		return nil, m.GetContainerErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Container
	for _, c := range m.containers {
		if c.Retention.Enabled {
			clone := *c
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(a, b int) bool { return result[a].ID < result[b].ID })
	return result, nil
}

func (m *MemoryStore) UpdateLastMessage(_ context.Context, id, preview string, typ domain.MessageType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.containers[id]; ok {
		c.LastMessagePreview = preview
		c.LastMessageType = typ
	}
	return nil
}

// ---- MessageRepository ----

func (m *MemoryStore) ListExpiredMessageIDs(_ context.Context, containerID string, cutoff time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var expired []*domain.Message
	for _, msg := range m.messages[containerID] {
		if msg.CreatedAt.Before(cutoff) {
			expired = append(expired, msg)
		}
	}
	sort.Slice(expired, func(a, b int) bool { return expired[a].CreatedAt.Before(expired[b].CreatedAt) })
	ids := make([]string, 0, len(expired))
	for _, msg := range expired {
		if len(ids) == limit {
			break
		}
		ids = append(ids, msg.ID)
	}
	return ids, nil
}

func (m *MemoryStore) DeleteMessages(_ context.Context, containerID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := m.DeleteMessagesErr[containerID]; err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessageDeleteBatches[containerID] = append(m.MessageDeleteBatches[containerID], len(ids))
	n := 0
	for _, id := range ids {
		if _, ok := m.messages[containerID][id]; ok {
			delete(m.messages[containerID], id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) LatestMessage(_ context.Context, containerID string) (*domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.Message
	for _, msg := range m.messages[containerID] {
		if latest == nil || msg.CreatedAt.After(latest.CreatedAt) {
			latest = msg
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	clone := *latest
	return &clone, nil
}

// ---- UserRepository ----

func (m *MemoryStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	if m.GetUserErr != nil {
		return nil, m.GetUserErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *u
	if u.DeliveryToken != nil {
		tok := *u.DeliveryToken
		clone.DeliveryToken = &tok
	}
	return &clone, nil
}

func (m *MemoryStore) ClearDeliveryToken(_ context.Context, userID, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.DeliveryToken == nil || *u.DeliveryToken != token {
		return false, nil
	}
	u.DeliveryToken = nil
	return true, nil
}

func (m *MemoryStore) ListChatHistoryIDs(_ context.Context, userID string, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, limit)
	for id := range m.history[userID] {
		if len(ids) == limit {
			break
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) DeleteChatHistory(_ context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HistoryDeleteBatches = append(m.HistoryDeleteBatches, len(ids))
	n := 0
	for _, id := range ids {
		if _, ok := m.history[userID][id]; ok {
			delete(m.history[userID], id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}
