// Package booking implements venue bookings and the multi-party approval
// workflow that gates full-day rehearsals.
package booking

import (
	"strings"
	"time"

	"bandspace/internal/apperr"
)

type EventType string

const (
	EventRehearsal EventType = "REHEARSAL"
	EventBandShow  EventType = "BAND_SHOW"
	EventSoloShow  EventType = "SOLO_SHOW"
)

func ParseEventType(s string) (EventType, error) {
	switch t := EventType(strings.ToUpper(strings.TrimSpace(s))); t {
	case EventRehearsal, EventBandShow, EventSoloShow:
		return t, nil
	}
	return "", apperr.Validation("unknown event type %q", s)
}

type State string

const (
	StatePendingApprovals State = "PENDING_APPROVALS"
	StateConfirmed        State = "CONFIRMED"
	// StateApproved is accepted from older rows; new bookings resolve to CONFIRMED.
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StateCancelled State = "CANCELLED"
)

var allowedTransitions = map[State]map[State]bool{
	StatePendingApprovals: {StateConfirmed: true, StateRejected: true, StateCancelled: true},
	StateConfirmed:        {StateCancelled: true},
	StateApproved:         {StateCancelled: true},
	StateRejected:         {StateCancelled: true},
	StateCancelled:        {},
}

func CanTransition(from, to State) bool {
	m, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return m[to]
}

type Booking struct {
	ID          string    `json:"id"`
	VenueID     string    `json:"venueId"`
	BandID      *string   `json:"bandId,omitempty"`
	RequesterID string    `json:"requesterId"`
	Type        EventType `json:"type"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt"`
	FullDay     bool      `json:"fullDay"`
	State       State     `json:"state"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsFullDayRehearsal reports whether the booking needs the approval ledger.
func (b Booking) IsFullDayRehearsal() bool {
	return b.Type == EventRehearsal && b.FullDay
}

// Validate checks the schedule and type invariants of a new or edited booking.
func (b Booking) Validate() error {
	if strings.TrimSpace(b.VenueID) == "" {
		return apperr.Validation("venueId is required")
	}
	if strings.TrimSpace(b.RequesterID) == "" {
		return apperr.Validation("requester is required")
	}
	if _, err := ParseEventType(string(b.Type)); err != nil {
		return err
	}
	if err := validateSchedule(b.StartsAt, b.EndsAt); err != nil {
		return err
	}
	if b.FullDay && b.Type != EventRehearsal {
		return apperr.Validation("only rehearsals can be booked for a full day")
	}
	if b.Type == EventBandShow && (b.BandID == nil || *b.BandID == "") {
		return apperr.Validation("a band show needs a band")
	}
	return nil
}

func validateSchedule(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Validation("startsAt and endsAt are required")
	}
	if !end.After(start) {
		return apperr.Validation("endsAt must be after startsAt")
	}
	return nil
}

// ColorFor picks the calendar color of a booking.
func ColorFor(t EventType, bandColor, venueColor string) string {
	switch t {
	case EventRehearsal:
		if bandColor != "" {
			return bandColor
		}
		if venueColor != "" {
			return venueColor
		}
		return "#4CAF50"
	case EventBandShow:
		if bandColor != "" {
			return bandColor
		}
		return "#2196F3"
	case EventSoloShow:
		return "#9C27B0"
	}
	return "#757575"
}
