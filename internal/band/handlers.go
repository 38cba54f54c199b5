package band

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"bandspace/internal/api"
	"bandspace/internal/apperr"
	"bandspace/internal/audit"
	"bandspace/internal/notification"
	"bandspace/internal/venue"
	"bandspace/pkg/db"
)

type Handlers struct {
	DB     *pgxpool.Pool
	Bands  *Repository
	Notify venue.Notifier
}

type BandRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	VenueID     string  `json:"venueId,omitempty"`
}

func (req BandRequest) apply(b *Band) error {
	if req.Name != nil {
		b.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		b.Description = *req.Description
	}
	if req.Color != nil {
		b.Color = *req.Color
	}
	if b.Name == "" {
		return apperr.Validation("name is required")
	}
	if b.Color != "" && !venue.ValidColor(b.Color) {
		return apperr.Validation("color must look like #RRGGBB")
	}
	return nil
}

// Create registers a band at a venue. The creator becomes its first member
// and joins the venue.
func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	var req BandRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if req.VenueID == "" {
		api.WriteAppError(w, r, apperr.Validation("venueId is required"))
		return
	}
	b := &Band{VenueID: req.VenueID}
	if err := req.apply(b); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		if err := Create(r.Context(), tx, b); err != nil {
			return err
		}
		if err := AddMember(r.Context(), tx, b.ID, s.UserID); err != nil {
			return err
		}
		return venue.AddMember(r.Context(), tx, b.VenueID, s.UserID)
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"band": b})
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.Bands.List(r.Context(), q.Get("venueId"), strings.TrimSpace(q.Get("q")))
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
	items, err := h.Bands.ListForUser(r.Context(), userID)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.Bands.Get(r.Context(), id)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	members, err := h.Bands.Members(r.Context(), id)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"band": b, "members": members})
}

func (h Handlers) Update(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	var req BandRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	var out *Band
	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		b, err := managedLocked(r.Context(), tx, chi.URLParam(r, "id"), s.UserID)
		if err != nil {
			return err
		}
		if err := req.apply(b); err != nil {
			return err
		}
		out = b
		return Update(r.Context(), tx, b)
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"band": out})
}

func (h Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		b, err := managedLocked(r.Context(), tx, chi.URLParam(r, "id"), s.UserID)
		if err != nil {
			return err
		}
		if err := Delete(r.Context(), tx, b.ID); err != nil {
			return err
		}
		return audit.Insert(r.Context(), tx, &b.VenueID, "band", b.ID, "BAND_DELETED", s.UserID, map[string]any{"name": b.Name})
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMember lets a band member (or the venue admin) add someone. The new
// member also joins the band's venue.
func (h Handlers) AddMember(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())
	h.addMember(w, r, chi.URLParam(r, "userId"), func(ctx context.Context, tx pgx.Tx, bandID string) (*Band, error) {
		return managedLocked(ctx, tx, bandID, s.UserID)
	})
}

// Join adds the caller to the band and its venue.
func (h Handlers) Join(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())
	h.addMember(w, r, s.UserID, func(ctx context.Context, tx pgx.Tx, bandID string) (*Band, error) {
		return GetForUpdate(ctx, tx, bandID)
	})
}

func (h Handlers) addMember(w http.ResponseWriter, r *http.Request, userID string, load func(context.Context, pgx.Tx, string) (*Band, error)) {
	s := api.SessionFromContext(r.Context())

	var b *Band
	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		var err error
		b, err = load(r.Context(), tx, chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		if err := AddMember(r.Context(), tx, b.ID, userID); err != nil {
			return err
		}
		if err := venue.AddMember(r.Context(), tx, b.VenueID, userID); err != nil {
			return err
		}
		return audit.Insert(r.Context(), tx, &b.VenueID, "band", b.ID, "MEMBER_ADDED", s.UserID, map[string]any{"userId": userID})
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	if userID != s.UserID {
		h.notify(r, notification.Notification{
			UserID:    userID,
			Type:      notification.TypeMemberAdded,
			Title:     "Added to band",
			Message:   "You are now a member of " + b.Name + ".",
			ActionURL: "/bands/" + b.ID,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember lets members leave and lets band members or the venue admin
// remove others. Venue membership is left untouched.
func (h Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())
	userID := chi.URLParam(r, "userId")

	var b *Band
	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		var err error
		if userID == s.UserID {
			b, err = GetForUpdate(r.Context(), tx, chi.URLParam(r, "id"))
		} else {
			b, err = managedLocked(r.Context(), tx, chi.URLParam(r, "id"), s.UserID)
		}
		if err != nil {
			return err
		}
		removed, err := RemoveMember(r.Context(), tx, b.ID, userID)
		if err != nil {
			return err
		}
		if !removed {
			return apperr.NotFound("user %s is not in the band", userID)
		}
		return audit.Insert(r.Context(), tx, &b.VenueID, "band", b.ID, "MEMBER_REMOVED", s.UserID, map[string]any{"userId": userID})
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	if userID != s.UserID {
		h.notify(r, notification.Notification{
			UserID:  userID,
			Type:    notification.TypeMemberRemoved,
			Title:   "Removed from band",
			Message: "You are no longer a member of " + b.Name + ".",
		})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handlers) notify(r *http.Request, n notification.Notification) {
	if h.Notify == nil {
		return
	}
	if err := h.Notify.Send(r.Context(), n); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("type", string(n.Type)).Msg("send notification")
	}
}

// managedLocked loads and locks a band that userID may manage: band members
// and the admin of the band's venue.
func managedLocked(ctx context.Context, tx pgx.Tx, bandID, userID string) (*Band, error) {
	b, err := GetForUpdate(ctx, tx, bandID)
	if err != nil {
		return nil, err
	}
	ok, err := IsMember(ctx, tx, b.ID, userID)
	if err != nil {
		return nil, err
	}
	if ok {
		return b, nil
	}
	var adminID string
	if err := tx.QueryRow(ctx, `SELECT admin_id FROM venues WHERE id = $1`, b.VenueID).Scan(&adminID); err != nil {
		return nil, err
	}
	if adminID != userID {
		return nil, apperr.Forbidden("only band members or the venue admin can do this")
	}
	return b, nil
}
