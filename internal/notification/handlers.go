package notification

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bandspace/internal/api"
)

type Handlers struct {
	Repo  *Repository
	Badge *Badge
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())
	unread := r.URL.Query().Get("unread") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := h.Repo.ListForUser(r.Context(), s.UserID, unread, limit)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) BadgeCount(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	n, err := h.Badge.Count(r.Context(), s.UserID, func(ctx context.Context) (int64, error) {
		return h.Repo.UnreadCount(ctx, s.UserID)
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"unread": n})
}

func (h Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	if err := h.Repo.MarkRead(r.Context(), chi.URLParam(r, "id"), s.UserID); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	_ = h.Badge.Invalidate(r.Context(), s.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h Handlers) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	n, err := h.Repo.MarkAllRead(r.Context(), s.UserID)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	_ = h.Badge.Invalidate(r.Context(), s.UserID)
	api.WriteJSON(w, http.StatusOK, map[string]any{"updated": n})
}
