package loan

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bandspace/internal/api"
)

type Handlers struct {
	Service *Service
	Loans   *Repository
}

func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	var req CreateRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	l, err := h.Service.Create(r.Context(), s.UserID, req)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"loan": l})
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{ItemID: q.Get("itemId"), LenderID: q.Get("lenderId")}
	if v := q.Get("state"); v != "" {
		st, err := ParseState(v)
		if err != nil {
			api.WriteAppError(w, r, err)
			return
		}
		f.State = st
	}
	items, err := h.Loans.List(r.Context(), f)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.Loans.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"loan": l})
}

func (h Handlers) Return(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	l, err := h.Service.Return(r.Context(), chi.URLParam(r, "id"), s.UserID)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"loan": l})
}

func (h Handlers) Overdue(w http.ResponseWriter, r *http.Request) {
	items, err := h.Loans.ListOverdue(r.Context(), time.Now().UTC())
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) RefreshOverdue(w http.ResponseWriter, r *http.Request) {
	flagged, err := h.Service.RefreshOverdue(r.Context())
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"updated": len(flagged), "items": flagged})
}
