// Package storage defines the persistence interfaces for the realtime
// core: the user rows whose suspension flag feeds the change feed, and the
// announcements distributed through the broadcast channel.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type User struct {
	ID        string
	Username  string
	Email     string
	Suspended bool
	CreatedAt time.Time
}

type Announcement struct {
	ID        string
	Message   string
	CreatedBy string
	CreatedAt time.Time
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (User, error)
	// SetSuspended flips the suspension flag and emits the change-feed
	// notification in the same transaction, so a committed mutation is
	// always observed by listeners.
	SetSuspended(ctx context.Context, id string, suspended bool) error
}

type AnnouncementRepository interface {
	Create(ctx context.Context, announcement Announcement) error
	Remove(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]Announcement, error)
}

type Repository interface {
	Users() UserRepository
	Announcements() AnnouncementRepository
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}
