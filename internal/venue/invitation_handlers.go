package venue

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"bandspace/internal/api"
	"bandspace/internal/apperr"
	"bandspace/internal/audit"
	"bandspace/internal/notification"
	"bandspace/pkg/db"
)

func (h Handlers) Invite(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	var req InviteRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	inv := &Invitation{FromUserID: s.UserID, ToUserID: req.UserID}
	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		v, err := adminLocked(r.Context(), tx, chi.URLParam(r, "id"), s.UserID)
		if err != nil {
			return err
		}
		member, err := IsMember(r.Context(), tx, v.ID, req.UserID)
		if err != nil {
			return err
		}
		if err := CanInvite(v, req.UserID, member); err != nil {
			return err
		}
		inv.VenueID, inv.VenueName = v.ID, v.Name
		if err := InsertInvitation(r.Context(), tx, inv); err != nil {
			return err
		}
		return audit.Insert(r.Context(), tx, &v.ID, "venue", v.ID, "MEMBER_INVITED", s.UserID, map[string]any{"userId": req.UserID, "invitationId": inv.ID})
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	h.notify(r, notification.Notification{
		UserID:    inv.ToUserID,
		Type:      notification.TypeVenueInvitation,
		Title:     "Venue invitation",
		Message:   "You were invited to join " + inv.VenueName + ".",
		ActionURL: "/invitations/" + inv.ID,
	})
	api.WriteJSON(w, http.StatusCreated, map[string]any{"invitation": inv})
}

// VenueInvitations lists every invitation a venue sent. Admin only.
func (h Handlers) VenueInvitations(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())

	v, err := h.Venues.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if v.AdminID != s.UserID {
		api.WriteAppError(w, r, apperr.Forbidden("only the venue admin can list invitations"))
		return
	}
	items, err := h.Venues.InvitationsForVenue(r.Context(), v.ID)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// InvitationsForUser serves ?state=PENDING; without it every invitation is
// listed.
func (h Handlers) InvitationsForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := api.RequireSelf(api.SessionFromContext(r.Context()), userID); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	var state InvitationState
	if v := r.URL.Query().Get("state"); v != "" {
		st, err := ParseInvitationState(v)
		if err != nil {
			api.WriteAppError(w, r, err)
			return
		}
		state = st
	}
	items, err := h.Venues.InvitationsForUser(r.Context(), userID, state)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

func (h Handlers) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

// respond settles the invitation and, on accept, enrolls the invitee in the
// same transaction.
func (h Handlers) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	s := api.SessionFromContext(r.Context())

	var inv *Invitation
	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		var err error
		inv, err = InvitationForUpdate(r.Context(), tx, chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		if err := inv.Respond(s.UserID, accept, time.Now().UTC()); err != nil {
			return err
		}
		if err := SaveInvitation(r.Context(), tx, inv); err != nil {
			return err
		}
		action := "INVITATION_DECLINED"
		if accept {
			action = "MEMBER_ADDED"
			if err := AddMember(r.Context(), tx, inv.VenueID, inv.ToUserID); err != nil {
				return err
			}
		}
		return audit.Insert(r.Context(), tx, &inv.VenueID, "venue", inv.VenueID, action, s.UserID, map[string]any{"userId": inv.ToUserID, "invitationId": inv.ID})
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	h.notify(r, notification.Notification{
		UserID:    inv.FromUserID,
		Type:      notification.TypeInvitationAnswered,
		Title:     "Invitation " + strings.ToLower(string(inv.State)),
		Message:   "Your invitation to " + inv.VenueName + " was " + strings.ToLower(string(inv.State)) + ".",
		ActionURL: "/venues/" + inv.VenueID,
	})
	api.WriteJSON(w, http.StatusOK, map[string]any{"invitation": inv})
}
