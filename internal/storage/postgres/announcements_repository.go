package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openatelier/server/internal/storage"
)

type AnnouncementRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const createAnnouncementQuery = `
INSERT INTO announcements (id, message, created_by, created_at)
VALUES ($1, $2, $3, $4)`

func (r *AnnouncementRepository) Create(ctx context.Context, announcement storage.Announcement) error {
	var err error
	if r.tx != nil {
		_, err = r.tx.Exec(ctx, createAnnouncementQuery, announcement.ID, announcement.Message, announcement.CreatedBy, announcement.CreatedAt)
	} else {
		_, err = r.pool.Exec(ctx, createAnnouncementQuery, announcement.ID, announcement.Message, announcement.CreatedBy, announcement.CreatedAt)
	}
	if err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

const removeAnnouncementQuery = `
UPDATE announcements
SET removed_at = now()
WHERE id = $1 AND removed_at IS NULL`

func (r *AnnouncementRepository) Remove(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	var err error
	if r.tx != nil {
		tag, err = r.tx.Exec(ctx, removeAnnouncementQuery, id)
	} else {
		tag, err = r.pool.Exec(ctx, removeAnnouncementQuery, id)
	}
	if err != nil {
		return fmt.Errorf("remove announcement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const listActiveQuery = `
SELECT id, message, created_by, created_at
FROM announcements
WHERE removed_at IS NULL
ORDER BY created_at DESC`

func (r *AnnouncementRepository) ListActive(ctx context.Context) ([]storage.Announcement, error) {
	var rows pgx.Rows
	var err error
	if r.tx != nil {
		rows, err = r.tx.Query(ctx, listActiveQuery)
	} else {
		rows, err = r.pool.Query(ctx, listActiveQuery)
	}
	if err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	defer rows.Close()

	announcements := make([]storage.Announcement, 0)
	for rows.Next() {
		var a storage.Announcement
		if err := rows.Scan(&a.ID, &a.Message, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		announcements = append(announcements, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate announcements: %w", err)
	}
	return announcements, nil
}
