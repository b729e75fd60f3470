package resolver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ricirt/chatpulse/internal/domain"
	"github.com/ricirt/chatpulse/internal/repository"
	"github.com/ricirt/chatpulse/internal/resolver"
)

func strPtr(s string) *string { return &s }

func seedUser(store *repository.MemoryStore, id string, token *string, enabled bool) {
	store.PutUser(&domain.User{ID: id, DisplayName: id, DeliveryToken: token, NotificationsEnabled: enabled})
}

func newResolver(store *repository.MemoryStore) *resolver.Resolver {
	return resolver.New(store, 4, zap.NewNop())
}

func userIDs(rs []resolver.Recipient) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.UserID
	}
	return ids
}

func TestResolve_GroupSkipsSenderAndTokenless(t *testing.T) {
	store := repository.NewMemoryStore()
	seedUser(store, "S", strPtr("tok-s"), true)
	seedUser(store, "A", strPtr("tok-a"), true)
	seedUser(store, "B", nil, true)
	seedUser(store, "C", strPtr("tok-c"), true)

	c := &domain.Container{ID: "g1", Kind: domain.ContainerGroup, Members: []string{"S", "A", "B", "C"}}
	ev := &domain.Event{SenderID: "S"}

	got, err := newResolver(store).Resolve(context.Background(), ev, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, userIDs(got))
	assert.Equal(t, "tok-a", got[0].Token)
}

func TestResolve_OptedOutExcluded(t *testing.T) {
	store := repository.NewMemoryStore()
	seedUser(store, "A", strPtr("tok-a"), false)
	seedUser(store, "C", strPtr("tok-c"), true)

	c := &domain.Container{ID: "g1", Kind: domain.ContainerGroup, Members: []string{"S", "A", "C"}}
	got, err := newResolver(store).Resolve(context.Background(), &domain.Event{SenderID: "S"}, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, userIDs(got))
}

func TestResolve_DirectRecipientWithoutToken(t *testing.T) {
	store := repository.NewMemoryStore()
	seedUser(store, "bob", nil, true)

	c := &domain.Container{ID: "alice_bob", Kind: domain.ContainerDirect, Members: []string{"alice", "bob"}}
	got, err := newResolver(store).Resolve(context.Background(), &domain.Event{SenderID: "alice"}, c)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolve_DirectLegacyIDFallback(t *testing.T) {
	store := repository.NewMemoryStore()
	seedUser(store, "bob", strPtr("tok-b"), true)

	c := &domain.Container{ID: "alice_bob", Kind: domain.ContainerDirect}
	got, err := newResolver(store).Resolve(context.Background(), &domain.Event{SenderID: "alice"}, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, userIDs(got))
}

func TestResolve_NoCandidateIsNoRecipient(t *testing.T) {
	store := repository.NewMemoryStore()
	c := &domain.Container{ID: "solo", Kind: domain.ContainerGroup, Members: []string{"S"}}

	_, err := newResolver(store).Resolve(context.Background(), &domain.Event{SenderID: "S"}, c)
	assert.True(t, errors.Is(err, domain.ErrNoRecipient))
}

func TestResolve_MissingProfileExcludedOnly(t *testing.T) {
	store := repository.NewMemoryStore()
	seedUser(store, "C", strPtr("tok-c"), true)

	c := &domain.Container{ID: "g1", Kind: domain.ContainerGroup, Members: []string{"S", "ghost", "C"}}
	got, err := newResolver(store).Resolve(context.Background(), &domain.Event{SenderID: "S"}, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, userIDs(got))
}

func TestResolve_StoreFailureAborts(t *testing.T) {
	store := repository.NewMemoryStore()
	store.GetUserErr = errors.New("connection reset")

	c := &domain.Container{ID: "g1", Kind: domain.ContainerGroup, Members: []string{"S", "A"}}
	_, err := newResolver(store).Resolve(context.Background(), &domain.Event{SenderID: "S"}, c)
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable), "got %v", err)
}

func TestResolve_DuplicateMembersCollapsed(t *testing.T) {
	store := repository.NewMemoryStore()
	seedUser(store, "A", strPtr("tok-a"), true)

	c := &domain.Container{ID: "g1", Kind: domain.ContainerGroup, Members: []string{"A", "S", "A"}}
	got, err := newResolver(store).Resolve(context.Background(), &domain.Event{SenderID: "S"}, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, userIDs(got))
}
