package item

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bandspace/internal/api"
	"bandspace/internal/apperr"
	"bandspace/internal/party"
	"bandspace/pkg/db"
)

type Handlers struct {
	DB    *pgxpool.Pool
	Items *Repository
}

type CreateItemRequest struct {
	Description string       `json:"description"`
	Quantity    int          `json:"quantity"`
	VenueID     string       `json:"venueId"`
	Owner       *party.Party `json:"owner,omitempty"`
}

// normalize fills defaults and validates. Without an explicit owner the
// caller owns the item.
func (req *CreateItemRequest) normalize(callerID string) error {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return apperr.Validation("description is required")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return apperr.Validation("quantity must be > 0")
	}
	if req.VenueID == "" {
		return apperr.Validation("venueId is required")
	}
	if req.Owner == nil || req.Owner.IsZero() {
		owner := party.User(callerID)
		req.Owner = &owner
	}
	if req.Owner.IsUser() && req.Owner.ID() != callerID {
		return apperr.Forbidden("items can only be registered for yourself or your band")
	}
	return nil
}

func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	var req CreateItemRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if err := req.normalize(s.UserID); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	it := &Item{Description: req.Description, Quantity: req.Quantity, Owner: *req.Owner, OriginalVenueID: req.VenueID}
	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		ok, err := CanManage(r.Context(), tx, it, s.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Forbidden("only band members can register band items")
		}
		return Create(r.Context(), tx, it)
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"item": it})
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	venueID := r.URL.Query().Get("venueId")
	if venueID == "" {
		api.WriteAppError(w, r, apperr.Validation("venueId is required"))
		return
	}
	items, err := h.Items.ListByVenue(r.Context(), venueID)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := api.RequireSelf(api.SessionFromContext(r.Context()), userID); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	items, err := h.Items.ListForUser(r.Context(), userID)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	it, err := h.Items.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"item": it})
}

type UpdateItemRequest struct {
	Description *string `json:"description"`
	Quantity    *int    `json:"quantity"`
}

func (h Handlers) Update(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	var req UpdateItemRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	var out *Item
	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		it, err := managedLocked(r, tx, s.UserID)
		if err != nil {
			return err
		}
		if req.Description != nil {
			it.Description = strings.TrimSpace(*req.Description)
		}
		if req.Quantity != nil {
			it.Quantity = *req.Quantity
		}
		if it.Description == "" || it.Quantity <= 0 {
			return apperr.Validation("description is required and quantity must be > 0")
		}
		out = it
		return Update(r.Context(), tx, it)
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"item": out})
}

func (h Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		it, err := managedLocked(r, tx, s.UserID)
		if err != nil {
			return err
		}
		return Delete(r.Context(), tx, it.ID)
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func managedLocked(r *http.Request, tx pgx.Tx, userID string) (*Item, error) {
	it, err := GetForUpdate(r.Context(), tx, chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	ok, err := CanManage(r.Context(), tx, it, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("only the owner can change this item")
	}
	return it, nil
}
