package booking

import (
	"context"
	"time"

	"bandspace/internal/events"
)

// Queries is the read side used by the API and the notification layer.
type Queries struct {
	store Store
}

func NewQueries(store Store) *Queries {
	return &Queries{store: store}
}

// PendingApprovalsForUser lists the undecided approvals userID still owes on
// bookings that are waiting for them.
func (q *Queries) PendingApprovalsForUser(ctx context.Context, userID string) ([]PendingApproval, error) {
	return q.store.PendingApprovals(ctx, userID)
}

func (q *Queries) ApprovalsForBooking(ctx context.Context, bookingID string) ([]Approval, error) {
	if _, err := q.store.Booking(ctx, bookingID); err != nil {
		return nil, err
	}
	return q.store.Approvals(ctx, bookingID)
}

func (q *Queries) SharedBookingsForUser(ctx context.Context, userID string) ([]View, error) {
	return q.store.SharedBookings(ctx, userID, time.Time{}, time.Time{})
}

func (q *Queries) Timeline(ctx context.Context, bookingID string) ([]events.Event, error) {
	if _, err := q.store.Booking(ctx, bookingID); err != nil {
		return nil, err
	}
	return q.store.Timeline(ctx, bookingID)
}

type CalendarEvent struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	AllDay  bool      `json:"allDay"`
	Color   string    `json:"color"`
	Type    EventType `json:"type"`
	State   State     `json:"state"`
	VenueID string    `json:"venueId"`
	BandID  *string   `json:"bandId,omitempty"`
}

// CalendarForUser renders the user's shared bookings overlapping the given
// month in loc. Cancelled bookings are omitted.
func (q *Queries) CalendarForUser(ctx context.Context, userID string, year int, month time.Month, loc *time.Location) ([]CalendarEvent, error) {
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 1, 0)

	views, err := q.store.SharedBookings(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	out := make([]CalendarEvent, 0, len(views))
	for _, v := range views {
		if v.State == StateCancelled {
			continue
		}
		out = append(out, CalendarEvent{
			ID:      v.ID,
			Title:   calendarTitle(v),
			Start:   v.StartsAt,
			End:     v.EndsAt,
			AllDay:  v.FullDay,
			Color:   ColorFor(v.Type, v.BandColor, v.VenueColor),
			Type:    v.Type,
			State:   v.State,
			VenueID: v.VenueID,
			BandID:  v.BandID,
		})
	}
	return out, nil
}

func calendarTitle(v View) string {
	switch v.Type {
	case EventRehearsal:
		if v.BandName != "" {
			return "Rehearsal: " + v.BandName
		}
		return "Rehearsal at " + v.VenueName
	case EventBandShow:
		return "Show: " + v.BandName
	case EventSoloShow:
		return "Solo show"
	}
	return string(v.Type)
}
