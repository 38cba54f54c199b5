// Package loan tracks equipment lent between users, bands and venues.
package loan

import (
	"strings"
	"time"

	"bandspace/internal/apperr"
	"bandspace/internal/party"
)

type State string

const (
	StateActive   State = "ACTIVE"
	StateReturned State = "RETURNED"
	StateOverdue  State = "OVERDUE"
)

func ParseState(s string) (State, error) {
	switch st := State(strings.ToUpper(strings.TrimSpace(s))); st {
	case StateActive, StateReturned, StateOverdue:
		return st, nil
	}
	return "", apperr.Validation("unknown loan state %q", s)
}

type Loan struct {
	ID                 string      `json:"id"`
	ItemID             string      `json:"itemId"`
	LenderID           string      `json:"lenderId"`
	Recipient          party.Party `json:"recipient"`
	OriginVenueID      string      `json:"originVenueId"`
	DestinationVenueID string      `json:"destinationVenueId"`
	State              State       `json:"state"`
	Notes              string      `json:"notes"`
	LentAt             time.Time   `json:"lentAt"`
	DueAt              time.Time   `json:"dueAt"`
	ReturnedAt         *time.Time  `json:"returnedAt,omitempty"`
}

// Open reports whether the item is still out.
func (l Loan) Open() bool {
	return l.State == StateActive || l.State == StateOverdue
}

// Moved reports whether the loan took the item to another venue.
func (l Loan) Moved() bool {
	return l.DestinationVenueID != l.OriginVenueID
}

// MarkReturned closes an open loan.
func (l *Loan) MarkReturned(now time.Time) error {
	if !l.Open() {
		return apperr.InvalidState("loan %s is not active", l.ID)
	}
	l.State = StateReturned
	l.ReturnedAt = &now
	return nil
}

type CreateRequest struct {
	ItemID             string       `json:"itemId"`
	Recipient          *party.Party `json:"recipient"`
	DestinationVenueID string       `json:"destinationVenueId,omitempty"`
	DueAt              time.Time    `json:"dueAt"`
	Notes              string       `json:"notes,omitempty"`
}

func (req CreateRequest) Validate(now time.Time) error {
	if req.ItemID == "" {
		return apperr.Validation("itemId is required")
	}
	if req.Recipient == nil || req.Recipient.IsZero() {
		return apperr.Validation("a recipient user or band is required")
	}
	if req.DueAt.IsZero() || !req.DueAt.After(now) {
		return apperr.Validation("dueAt must be in the future")
	}
	return nil
}

type Filter struct {
	State    State
	ItemID   string
	LenderID string
}
