package repository

import (
	"context"
	"time"

	"github.com/ricirt/chatpulse/internal/domain"
)

// ContainerRepository reads conversation scopes and maintains their
// denormalized last-message summary.
type ContainerRepository interface {
	GetContainer(ctx context.Context, id string) (*domain.Container, error)
	ListRetentionContainers(ctx context.Context) ([]*domain.Container, error)
	UpdateLastMessage(ctx context.Context, id, preview string, typ domain.MessageType) error
}

// MessageRepository exposes the range query and batched delete the
// retention sweep needs.
type MessageRepository interface {
	ListExpiredMessageIDs(ctx context.Context, containerID string, cutoff time.Time, limit int) ([]string, error)
	// DeleteMessages removes ids in a single commit. Missing ids are no-ops.
	DeleteMessages(ctx context.Context, containerID string, ids []string) (int, error)
	// LatestMessage returns domain.ErrNotFound when the container is empty.
	LatestMessage(ctx context.Context, containerID string) (*domain.Message, error)
}

// UserRepository reads profiles and performs the few mutations the core
// owns: clearing a dead token and account cleanup.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	// ClearDeliveryToken nulls the token only if it still equals token and
	// reports whether a row changed.
	ClearDeliveryToken(ctx context.Context, userID, token string) (bool, error)
	ListChatHistoryIDs(ctx context.Context, userID string, limit int) ([]string, error)
	DeleteChatHistory(ctx context.Context, userID string, ids []string) (int, error)
	DeleteUser(ctx context.Context, userID string) error
}
