package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openatelier/server/internal/cache"
	"github.com/openatelier/server/internal/realtime"
	"github.com/openatelier/server/internal/storage"
)

// fakeRepo is an in-memory storage.Repository for handler tests.
type fakeRepo struct {
	mu            sync.Mutex
	users         map[string]*storage.User
	announcements map[string]storage.Announcement
	listCalls     int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:         make(map[string]*storage.User),
		announcements: make(map[string]storage.Announcement),
	}
}

func (f *fakeRepo) Users() storage.UserRepository                 { return fakeUserRepo{f} }
func (f *fakeRepo) Announcements() storage.AnnouncementRepository { return fakeAnnouncementRepo{f} }
func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, storage.Repository) error) error {
	return fn(ctx, f)
}

type fakeUserRepo struct{ repo *fakeRepo }

func (r fakeUserRepo) GetByID(ctx context.Context, id string) (storage.User, error) {
	r.repo.mu.Lock()
	defer r.repo.mu.Unlock()
	if user, ok := r.repo.users[id]; ok {
		return *user, nil
	}
	return storage.User{}, storage.ErrNotFound
}

func (r fakeUserRepo) SetSuspended(ctx context.Context, id string, suspended bool) error {
	r.repo.mu.Lock()
	defer r.repo.mu.Unlock()
	user, ok := r.repo.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	user.Suspended = suspended
	return nil
}

type fakeAnnouncementRepo struct{ repo *fakeRepo }

func (r fakeAnnouncementRepo) Create(ctx context.Context, a storage.Announcement) error {
	r.repo.mu.Lock()
	defer r.repo.mu.Unlock()
	r.repo.announcements[a.ID] = a
	return nil
}

func (r fakeAnnouncementRepo) Remove(ctx context.Context, id string) error {
	r.repo.mu.Lock()
	defer r.repo.mu.Unlock()
	if _, ok := r.repo.announcements[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.repo.announcements, id)
	return nil
}

func (r fakeAnnouncementRepo) ListActive(ctx context.Context) ([]storage.Announcement, error) {
	r.repo.mu.Lock()
	defer r.repo.mu.Unlock()
	r.repo.listCalls++
	out := make([]storage.Announcement, 0, len(r.repo.announcements))
	for _, a := range r.repo.announcements {
		out = append(out, a)
	}
	return out, nil
}

// testRedis gives each test an isolated miniredis-backed client.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testCache(t *testing.T) *cache.Service {
	t.Helper()
	return cache.NewService(testRedis(t), zerolog.Nop())
}

// noDBConnector is a change-feed connector for tests with no database.
func noDBConnector(ctx context.Context) (realtime.ListenerConn, error) {
	return nil, errors.New("no database in test")
}
