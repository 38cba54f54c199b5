package venue

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bandspace/internal/api"
	"bandspace/internal/apperr"
	"bandspace/internal/audit"
	"bandspace/internal/notification"
	"bandspace/pkg/db"
)

// Notifier sends in-app notifications.
type Notifier interface {
	Send(ctx context.Context, ns ...notification.Notification) error
}

type Handlers struct {
	DB     *pgxpool.Pool
	Venues *Repository
	Notify Notifier
}

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidColor reports whether c is a #RRGGBB color.
func ValidColor(c string) bool {
	return colorPattern.MatchString(c)
}

type VenueRequest struct {
	Name       *string          `json:"name"`
	Color      *string          `json:"color"`
	MonthlyFee *decimal.Decimal `json:"monthlyFee"`
}

func (req VenueRequest) apply(v *Venue) error {
	if req.Name != nil {
		v.Name = strings.TrimSpace(*req.Name)
	}
	if req.Color != nil {
		v.Color = *req.Color
	}
	if req.MonthlyFee != nil {
		v.MonthlyFee = req.MonthlyFee.Round(2)
	}
	if v.Name == "" {
		return apperr.Validation("name is required")
	}
	if !ValidColor(v.Color) {
		return apperr.Validation("color must look like #RRGGBB")
	}
	if v.MonthlyFee.IsNegative() {
		return apperr.Validation("monthlyFee must be >= 0")
	}
	return nil
}

func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	var req VenueRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	v := &Venue{Color: DefaultColor, AdminID: s.UserID, MonthlyFee: decimal.Zero}
	if err := req.apply(v); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		if err := Create(r.Context(), tx, v); err != nil {
			return err
		}
		return audit.Insert(r.Context(), tx, &v.ID, "venue", v.ID, "VENUE_CREATED", s.UserID, map[string]any{"name": v.Name})
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"venue": v})
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	items, err := h.Venues.ListForUser(r.Context(), s.UserID)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.Venues.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"venue": v})
}

func (h Handlers) Update(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	var req VenueRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	var out *Venue
	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		v, err := adminLocked(r.Context(), tx, chi.URLParam(r, "id"), s.UserID)
		if err != nil {
			return err
		}
		before := *v
		if err := req.apply(v); err != nil {
			return err
		}
		if err := Update(r.Context(), tx, v); err != nil {
			return err
		}
		out = v
		return audit.Insert(r.Context(), tx, &v.ID, "venue", v.ID, "VENUE_UPDATED", s.UserID, map[string]any{
			"from": map[string]any{"name": before.Name, "color": before.Color, "monthlyFee": before.MonthlyFee},
			"to":   map[string]any{"name": v.Name, "color": v.Color, "monthlyFee": v.MonthlyFee},
		})
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"venue": out})
}

func (h Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		v, err := adminLocked(r.Context(), tx, chi.URLParam(r, "id"), s.UserID)
		if err != nil {
			return err
		}
		return Delete(r.Context(), tx, v.ID)
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handlers) Members(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Venues.Get(r.Context(), id); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	items, err := h.Venues.Members(r.Context(), id)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) AddMember(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())
	userID := chi.URLParam(r, "userId")

	var name string
	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		v, err := adminLocked(r.Context(), tx, chi.URLParam(r, "id"), s.UserID)
		if err != nil {
			return err
		}
		name = v.Name
		if err := AddMember(r.Context(), tx, v.ID, userID); err != nil {
			return err
		}
		return audit.Insert(r.Context(), tx, &v.ID, "venue", v.ID, "MEMBER_ADDED", s.UserID, map[string]any{"userId": userID})
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	h.notify(r, notification.Notification{
		UserID:    userID,
		Type:      notification.TypeMemberAdded,
		Title:     "Added to venue",
		Message:   "You are now a member of " + name + ".",
		ActionURL: "/venues/" + chi.URLParam(r, "id"),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())
	userID := chi.URLParam(r, "userId")

	var name string
	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		v, err := adminLocked(r.Context(), tx, chi.URLParam(r, "id"), s.UserID)
		if err != nil {
			return err
		}
		if userID == v.AdminID {
			return apperr.InvalidState("the venue admin cannot be removed")
		}
		name = v.Name
		removed, err := RemoveMember(r.Context(), tx, v.ID, userID)
		if err != nil {
			return err
		}
		if !removed {
			return apperr.NotFound("user %s is not a member", userID)
		}
		return audit.Insert(r.Context(), tx, &v.ID, "venue", v.ID, "MEMBER_REMOVED", s.UserID, map[string]any{"userId": userID})
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	h.notify(r, notification.Notification{
		UserID:  userID,
		Type:    notification.TypeMemberRemoved,
		Title:   "Removed from venue",
		Message: "You are no longer a member of " + name + ".",
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h Handlers) AuditLog(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	v, err := h.Venues.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if v.AdminID != s.UserID {
		api.WriteAppError(w, r, apperr.Forbidden("only the venue admin can read the audit log"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := audit.ListByVenue(r.Context(), h.DB, v.ID, limit)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) notify(r *http.Request, n notification.Notification) {
	if h.Notify == nil {
		return
	}
	if err := h.Notify.Send(r.Context(), n); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("type", string(n.Type)).Msg("send notification")
	}
}

func adminLocked(ctx context.Context, tx pgx.Tx, venueID, userID string) (*Venue, error) {
	v, err := GetForUpdate(ctx, tx, venueID)
	if err != nil {
		return nil, err
	}
	if v.AdminID != userID {
		return nil, apperr.Forbidden("only the venue admin can do this")
	}
	return v, nil
}
