package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/openatelier/server/internal/api/problem"
	"github.com/openatelier/server/internal/cache"
	"github.com/openatelier/server/internal/storage"
)

// AnnouncementsHandler serves the public read side of announcements,
// read-through cached under announcementsCacheKey.
type AnnouncementsHandler struct {
	repo  storage.Repository
	cache *cache.Service
	env   string
}

func NewAnnouncementsHandler(repo storage.Repository, cacheService *cache.Service, env string) *AnnouncementsHandler {
	return &AnnouncementsHandler{repo: repo, cache: cacheService, env: env}
}

func (h *AnnouncementsHandler) List(w http.ResponseWriter, r *http.Request) {
	body, err := h.cache.GetOrSet(r.Context(), announcementsCacheKey, func(ctx context.Context) ([]byte, error) {
		announcements, err := h.repo.Announcements().ListActive(ctx)
		if err != nil {
			return nil, err
		}

		items := make([]announcementResponse, 0, len(announcements))
		for _, a := range announcements {
			items = append(items, announcementResponse{
				ID:        a.ID,
				Message:   a.Message,
				CreatedAt: a.CreatedAt,
			})
		}
		return json.Marshal(items)
	})
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, "about:blank", "List failed", err, h.env)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// zlogFrom pulls the request-scoped logger installed by the correlation
// middleware.
func zlogFrom(r *http.Request) *zerolog.Logger {
	return zerolog.Ctx(r.Context())
}
