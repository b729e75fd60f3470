package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ricirt/chatpulse/internal/domain"
)

const containerColumns = `
	id, kind, name, members, retention_enabled, retention_minutes,
	last_message_preview, last_message_type`

// PgChatStore implements ContainerRepository, MessageRepository and
// UserRepository over the chat tables shared with the messaging app.
type PgChatStore struct {
	pool *pgxpool.Pool
}

func NewPgChatStore(pool *pgxpool.Pool) *PgChatStore {
	return &PgChatStore{pool: pool}
}

var (
	_ ContainerRepository = (*PgChatStore)(nil)
	_ MessageRepository   = (*PgChatStore)(nil)
	_ UserRepository      = (*PgChatStore)(nil)
)

// ---- containers ----

func (s *PgChatStore) GetContainer(ctx context.Context, id string) (*domain.Container, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+containerColumns+` FROM containers WHERE id = $1`, id)
	c, err := scanContainer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get container", err)
	}
	if !c.Kind.IsValid() {
		return nil, invalidKind(c)
	}
	return c, nil
}

func (s *PgChatStore) ListRetentionContainers(ctx context.Context) ([]*domain.Container, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+containerColumns+`
		FROM containers
		WHERE retention_enabled = TRUE
		ORDER BY id`)
	if err != nil {
		return nil, storeErr("list retention containers", err)
	}
	defer rows.Close()

	var result []*domain.Container
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, storeErr("scan container", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate containers", err)
	}
	return result, nil
}

func (s *PgChatStore) UpdateLastMessage(ctx context.Context, id, preview string, typ domain.MessageType) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE containers
		SET last_message_preview = $1, last_message_type = $2
		WHERE id = $3`, preview, typ, id)
	if err != nil {
		return storeErr("update last message", err)
	}
	return nil
}

// invalidKind rejects a container whose kind fan-out cannot title or
// truncate for.
func invalidKind(c *domain.Container) error {
	return fmt.Errorf("container %s has kind %q: %w", c.ID, c.Kind, domain.ErrInvalidContainer)
}

func scanContainer(row pgx.Row) (*domain.Container, error) {
	var c domain.Container
	err := row.Scan(
		&c.ID, &c.Kind, &c.Name, &c.Members,
		&c.Retention.Enabled, &c.Retention.DurationMinutes,
		&c.LastMessagePreview, &c.LastMessageType,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ---- messages ----

func (s *PgChatStore) ListExpiredMessageIDs(ctx context.Context, containerID string, cutoff time.Time, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM messages
		WHERE container_id = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`, containerID, cutoff, limit)
	if err != nil {
		return nil, storeErr("list expired messages", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *PgChatStore) DeleteMessages(ctx context.Context, containerID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM messages WHERE container_id = $1 AND id = ANY($2)`, containerID, ids)
	if err != nil {
		return 0, storeErr("delete messages", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgChatStore) LatestMessage(ctx context.Context, containerID string) (*domain.Message, error) {
	var m domain.Message
	err := s.pool.QueryRow(ctx, `
		SELECT id, container_id, sender_id, created_at, type, body, encrypted
		FROM messages
		WHERE container_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, containerID).Scan(
		&m.ID, &m.ContainerID, &m.SenderID, &m.CreatedAt, &m.Type, &m.Body, &m.Encrypted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("latest message", err)
	}
	return &m, nil
}

// ---- users ----

func (s *PgChatStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, display_name, delivery_token, notifications_enabled
		FROM users WHERE id = $1`, id).Scan(
		&u.ID, &u.DisplayName, &u.DeliveryToken, &u.NotificationsEnabled,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return &u, nil
}

func (s *PgChatStore) ClearDeliveryToken(ctx context.Context, userID, token string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET delivery_token = NULL
		WHERE id = $1 AND delivery_token = $2`, userID, token)
	if err != nil {
		return false, storeErr("clear delivery token", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgChatStore) ListChatHistoryIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM chat_history WHERE user_id = $1 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, storeErr("list chat history", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *PgChatStore) DeleteChatHistory(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM chat_history WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return 0, storeErr("delete chat history", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgChatStore) DeleteUser(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return storeErr("delete user", err)
	}
	return nil
}
