package booking

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bandspace/internal/api"
	"bandspace/internal/apperr"
)

type Handlers struct {
	Engine   *Engine
	Queries  *Queries
	Location *time.Location
}

type CreateBookingRequest struct {
	VenueID  string    `json:"venueId"`
	BandID   *string   `json:"bandId,omitempty"`
	Type     string    `json:"type"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
	FullDay  bool      `json:"fullDay"`
	Notes    string    `json:"notes"`
}

func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	var req CreateBookingRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	t, err := ParseEventType(req.Type)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	res, err := h.Engine.CreateBooking(r.Context(), CreateRequest{
		VenueID:     req.VenueID,
		BandID:      req.BandID,
		RequesterID: s.UserID,
		Type:        t,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		FullDay:     req.FullDay,
		Notes:       req.Notes,
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, res)
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.Engine.Visible(r.Context(), id, api.SessionFromContext(r.Context()).UserID)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	approvals, err := h.Queries.ApprovalsForBooking(r.Context(), id)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"booking": b, "approvals": approvals})
}

type UpdateBookingRequest struct {
	StartsAt *time.Time `json:"startsAt,omitempty"`
	EndsAt   *time.Time `json:"endsAt,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
}

func (h Handlers) Update(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	var req UpdateBookingRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	b, err := h.Engine.UpdateBooking(r.Context(), chi.URLParam(r, "id"), UpdateRequest(req), s.UserID)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"booking": b})
}

func (h Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	res, err := h.Engine.CancelBooking(r.Context(), chi.URLParam(r, "id"), s.UserID)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}

func (h Handlers) Approvals(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Engine.Visible(r.Context(), id, api.SessionFromContext(r.Context()).UserID); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	items, err := h.Queries.ApprovalsForBooking(r.Context(), id)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Timeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Engine.Visible(r.Context(), id, api.SessionFromContext(r.Context()).UserID); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	items, err := h.Queries.Timeline(r.Context(), id)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

type RespondRequest struct {
	Approved *bool `json:"approved"`
}

func (h Handlers) Respond(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	var req RespondRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if req.Approved == nil {
		api.WriteAppError(w, r, apperr.Validation("approved is required"))
		return
	}

	res, err := h.Engine.RespondToApproval(r.Context(), chi.URLParam(r, "id"), *req.Approved, s.UserID)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}

func (h Handlers) PendingForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := api.RequireSelf(api.SessionFromContext(r.Context()), userID); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	items, err := h.Queries.PendingApprovalsForUser(r.Context(), userID)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) SharedForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := api.RequireSelf(api.SessionFromContext(r.Context()), userID); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	items, err := h.Queries.SharedBookingsForUser(r.Context(), userID)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// CalendarForUser serves ?year=2025&month=3, defaulting to the current month.
func (h Handlers) CalendarForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := api.RequireSelf(api.SessionFromContext(r.Context()), userID); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now().In(loc)
	year, month := now.Year(), now.Month()
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1970 || n > 9999 {
			api.WriteAppError(w, r, apperr.Validation("invalid year"))
			return
		}
		year = n
	}
	if v := r.URL.Query().Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			api.WriteAppError(w, r, apperr.Validation("invalid month"))
			return
		}
		month = time.Month(n)
	}

	items, err := h.Queries.CalendarForUser(r.Context(), userID, year, month, loc)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"year": year, "month": int(month), "items": items})
}
