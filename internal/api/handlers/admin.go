package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/openatelier/server/internal/api/middleware"
	"github.com/openatelier/server/internal/api/problem"
	"github.com/openatelier/server/internal/cache"
	"github.com/openatelier/server/internal/realtime"
	"github.com/openatelier/server/internal/storage"
)

// announcementsCacheKey caches the active announcement list; both mutation
// paths below delete it in the same logical operation.
const announcementsCacheKey = "announcements:active"

// AdminHandler implements the admin moderation surface: announcements and
// user suspension. These are the two write paths feeding the realtime core.
type AdminHandler struct {
	repo        storage.Repository
	cache       *cache.Service
	broadcaster *realtime.Broadcaster
	env         string
}

func NewAdminHandler(repo storage.Repository, cacheService *cache.Service, broadcaster *realtime.Broadcaster, env string) *AdminHandler {
	return &AdminHandler{
		repo:        repo,
		cache:       cacheService,
		broadcaster: broadcaster,
		env:         env,
	}
}

type createAnnouncementRequest struct {
	Message string `json:"message"`
}

type announcementResponse struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateAnnouncement persists the announcement, invalidates the cached
// list, and publishes the global event so every instance fans it out.
func (h *AdminHandler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req createAnnouncementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, "about:blank", "Invalid request body", err, h.env)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		problem.Write(w, r, http.StatusBadRequest, "about:blank", "Invalid request body", nil, h.env,
			problem.WithDetail("message is required"))
		return
	}

	announcement := storage.Announcement{
		ID:        ulid.Make().String(),
		Message:   req.Message,
		CreatedBy: middleware.AdminSubject(r.Context()),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.Announcements().Create(r.Context(), announcement); err != nil {
		problem.Write(w, r, http.StatusInternalServerError, "about:blank", "Create failed", err, h.env)
		return
	}

	h.cache.Del(r.Context(), announcementsCacheKey)

	payload, _ := json.Marshal(announcementResponse{
		ID:        announcement.ID,
		Message:   announcement.Message,
		CreatedAt: announcement.CreatedAt,
	})
	if err := h.broadcaster.Publish(r.Context(), realtime.EventAnnouncementCreated, payload); err != nil {
		// the row is committed; connected clients just miss the live event
		zlogFrom(r).Error().Err(err).Str("announcement_id", announcement.ID).Msg("broadcast publish failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(announcementResponse{
		ID:        announcement.ID,
		Message:   announcement.Message,
		CreatedAt: announcement.CreatedAt,
	})
}

// RemoveAnnouncement soft-deletes, invalidates, and broadcasts the removal.
func (h *AdminHandler) RemoveAnnouncement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := h.repo.Announcements().Remove(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		problem.Write(w, r, http.StatusNotFound, "about:blank", "Not Found", err, h.env)
		return
	}
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, "about:blank", "Remove failed", err, h.env)
		return
	}

	h.cache.Del(r.Context(), announcementsCacheKey)

	payload, _ := json.Marshal(map[string]string{"id": id})
	if err := h.broadcaster.Publish(r.Context(), realtime.EventAnnouncementRemoved, payload); err != nil {
		zlogFrom(r).Error().Err(err).Str("announcement_id", id).Msg("broadcast publish failed")
	}

	w.WriteHeader(http.StatusNoContent)
}

type suspendRequest struct {
	Suspended bool `json:"suspended"`
}

// SuspendUser flips the suspension flag. The repository emits the
// change-feed notification in the same transaction; by the time this
// returns 204, every instance's listener is about to see it.
func (h *AdminHandler) SuspendUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req suspendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, "about:blank", "Invalid request body", err, h.env)
		return
	}

	err := h.repo.Users().SetSuspended(r.Context(), id, req.Suspended)
	if errors.Is(err, storage.ErrNotFound) {
		problem.Write(w, r, http.StatusNotFound, "about:blank", "Not Found", err, h.env)
		return
	}
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, "about:blank", "Suspension update failed", err, h.env)
		return
	}

	// every cached view of this user is now stale
	h.cache.InvalidatePattern(r.Context(), fmt.Sprintf("user:%s:*", id))

	w.WriteHeader(http.StatusNoContent)
}
