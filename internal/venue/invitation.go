package venue

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"bandspace/internal/apperr"
)

type InvitationState string

const (
	InvitationPending  InvitationState = "PENDING"
	InvitationAccepted InvitationState = "ACCEPTED"
	InvitationDeclined InvitationState = "DECLINED"
)

func ParseInvitationState(s string) (InvitationState, error) {
	switch st := InvitationState(strings.ToUpper(strings.TrimSpace(s))); st {
	case InvitationPending, InvitationAccepted, InvitationDeclined:
		return st, nil
	}
	return "", apperr.Validation("unknown invitation state %q", s)
}

// Invitation asks a user to join a venue. Accepting it makes them a member.
type Invitation struct {
	ID          string          `json:"id"`
	VenueID     string          `json:"venueId"`
	VenueName   string          `json:"venueName,omitempty"`
	FromUserID  string          `json:"fromUserId"`
	ToUserID    string          `json:"toUserId"`
	State       InvitationState `json:"state"`
	CreatedAt   time.Time       `json:"createdAt"`
	RespondedAt *time.Time      `json:"respondedAt,omitempty"`
}

// Respond settles a pending invitation on behalf of userID.
func (inv *Invitation) Respond(userID string, accept bool, now time.Time) error {
	if inv.ToUserID != userID {
		return apperr.Forbidden("invitation %s was sent to another user", inv.ID)
	}
	if inv.State != InvitationPending {
		return apperr.InvalidState("invitation %s was already %s", inv.ID, strings.ToLower(string(inv.State)))
	}
	inv.State = InvitationDeclined
	if accept {
		inv.State = InvitationAccepted
	}
	inv.RespondedAt = &now
	return nil
}

type InviteRequest struct {
	UserID string `json:"userId"`
}

func (req InviteRequest) Validate() error {
	if strings.TrimSpace(req.UserID) == "" {
		return apperr.Validation("userId is required")
	}
	if err := uuid.Validate(req.UserID); err != nil {
		return apperr.Validation("invalid userId %q", req.UserID)
	}
	return nil
}

// CanInvite refuses invitations to people who already belong to v.
func CanInvite(v *Venue, userID string, alreadyMember bool) error {
	if userID == v.AdminID || alreadyMember {
		return apperr.InvalidState("user %s is already a member of %s", userID, v.Name)
	}
	return nil
}
