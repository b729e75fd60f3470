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

const jobColumns = `
	id, event_key, target_user_id, sender_id, token, title, body, payload,
	priority, status, attempts, next_attempt_at, claimed_until,
	provider_msg_id, error_code, error_message, created_at, updated_at`

type pgNotificationRepository struct {
	pool *pgxpool.Pool
}

// NewPgNotificationRepository returns a NotificationRepository backed by PostgreSQL.
func NewPgNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &pgNotificationRepository{pool: pool}
}

func (r *pgNotificationRepository) Enqueue(ctx context.Context, jobs []*domain.NotificationJob) ([]string, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin enqueue", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var inserted []string
	for _, j := range jobs {
		tag, err := tx.Exec(ctx, `
			INSERT INTO notification_jobs
				(id, event_key, target_user_id, sender_id, token, title, body, payload,
				 priority, status, attempts, next_attempt_at, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			ON CONFLICT (event_key, target_user_id) DO NOTHING`,
			j.ID, j.EventKey, j.TargetUserID, j.SenderID, j.Token, j.Title, j.Body, j.Payload,
			j.Priority, j.Status, j.Attempts, j.NextAttemptAt, j.CreatedAt, j.UpdatedAt,
		)
		if err != nil {
			return nil, storeErr("insert notification job", err)
		}
		if tag.RowsAffected() == 1 {
			inserted = append(inserted, j.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("commit enqueue", err)
	}
	return inserted, nil
}

func (r *pgNotificationRepository) GetByID(ctx context.Context, id string) (*domain.NotificationJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM notification_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get notification job", err)
	}
	return j, nil
}

func (r *pgNotificationRepository) PollPending(ctx context.Context, now time.Time, limit int) ([]*domain.NotificationJob, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM notification_jobs
		WHERE status = 'pending'
		  AND next_attempt_at <= $1
		  AND (claimed_until IS NULL OR claimed_until < $1)
		ORDER BY next_attempt_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, storeErr("poll pending", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *pgNotificationRepository) Claim(ctx context.Context, id string, now time.Time, lease time.Duration) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET claimed_until = $2, updated_at = $3
		WHERE id = $1
		  AND status = 'pending'
		  AND (claimed_until IS NULL OR claimed_until < $3)`, id, now.Add(lease), now)
	if err != nil {
		return false, storeErr("claim notification job", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgNotificationRepository) MarkSent(ctx context.Context, id, providerMsgID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'sent', provider_msg_id = $1, attempts = attempts + 1,
		    claimed_until = NULL, error_code = NULL, error_message = NULL, updated_at = $2
		WHERE id = $3 AND status = 'pending'`, providerMsgID, at, id)
	if err != nil {
		return storeErr("mark sent", err)
	}
	return nil
}

func (r *pgNotificationRepository) MarkFailed(ctx context.Context, id string, jobErr domain.JobError, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'failed', attempts = attempts + 1, claimed_until = NULL,
		    error_code = $1, error_message = $2, updated_at = $3
		WHERE id = $4 AND status = 'pending'`, jobErr.Code, jobErr.Message, at, id)
	if err != nil {
		return storeErr("mark failed", err)
	}
	return nil
}

func (r *pgNotificationRepository) ScheduleRetry(ctx context.Context, id string, attempts int, next time.Time, jobErr domain.JobError) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET attempts = $1, next_attempt_at = $2, claimed_until = NULL,
		    error_code = $3, error_message = $4, updated_at = NOW()
		WHERE id = $5 AND status = 'pending'`, attempts, next, jobErr.Code, jobErr.Message, id)
	if err != nil {
		return storeErr("schedule retry", err)
	}
	return nil
}

func (r *pgNotificationRepository) ListExpiredJobIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM notification_jobs
		WHERE created_at < $1
		ORDER BY created_at
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, storeErr("list expired jobs", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *pgNotificationRepository) DeleteJobs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM notification_jobs WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, storeErr("delete notification jobs", err)
	}
	return int(tag.RowsAffected()), nil
}

// ---- helpers ----

// scanJob reads a single job row from any pgx row type.
func scanJob(row pgx.Row) (*domain.NotificationJob, error) {
	var (
		j       domain.NotificationJob
		errCode *string
		errMsg  *string
	)
	err := row.Scan(
		&j.ID, &j.EventKey, &j.TargetUserID, &j.SenderID, &j.Token,
		&j.Title, &j.Body, &j.Payload, &j.Priority, &j.Status,
		&j.Attempts, &j.NextAttemptAt, &j.ClaimedUntil,
		&j.ProviderMsgID, &errCode, &errMsg, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if errCode != nil {
		j.LastError = &domain.JobError{Code: *errCode}
		if errMsg != nil {
			j.LastError.Message = *errMsg
		}
	}
	return &j, nil
}

func scanJobs(rows pgx.Rows) ([]*domain.NotificationJob, error) {
	var result []*domain.NotificationJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, storeErr("scan notification job", err)
		}
		result = append(result, j)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate notification jobs", err)
	}
	return result, nil
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeErr("scan ids", err)
	}
	return ids, nil
}

// storeErr tags any database failure as domain.ErrStoreUnavailable so the
// callers can tell an outage from an expected domain condition.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
