package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openatelier/server/internal/realtime"
	"github.com/openatelier/server/internal/storage"
)

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const getUserQuery = `
SELECT id, username, email, suspended, created_at
FROM users
WHERE id = $1`

func (r *UserRepository) GetByID(ctx context.Context, id string) (storage.User, error) {
	var row pgx.Row
	if r.tx != nil {
		row = r.tx.QueryRow(ctx, getUserQuery, id)
	} else {
		row = r.pool.QueryRow(ctx, getUserQuery, id)
	}

	var user storage.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Suspended, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.User{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

const setSuspendedQuery = `
UPDATE users
SET suspended = $2, updated_at = now()
WHERE id = $1`

// SetSuspended updates the suspension flag and issues pg_notify on the
// moderation channel inside the same transaction, so the change feed only
// ever reports committed state.
func (r *UserRepository) SetSuspended(ctx context.Context, id string, suspended bool) error {
	payload, err := json.Marshal(map[string]any{
		"userId":    id,
		"suspended": suspended,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encode moderation notice: %w", err)
	}

	apply := func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, setSuspendedQuery, id, suspended)
		if err != nil {
			return fmt.Errorf("update suspension: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}

		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, realtime.ModerationChannel, string(payload)); err != nil {
			return fmt.Errorf("notify moderation channel: %w", err)
		}
		return nil
	}

	if r.tx != nil {
		return apply(r.tx)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := apply(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
