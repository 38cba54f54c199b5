package booking

import (
	"context"
	"time"

	"bandspace/internal/events"
)

// Tx is the transactional view of booking storage. Row reads ending in
// ForUpdate hold a lock on the row until the transaction ends.
type Tx interface {
	InsertBooking(ctx context.Context, b *Booking) error
	BookingForUpdate(ctx context.Context, id string) (*Booking, error)
	SaveBooking(ctx context.Context, b *Booking) error

	InsertApprovals(ctx context.Context, rows []Approval) error
	ApprovalForUpdate(ctx context.Context, id string) (*Approval, error)
	SaveApproval(ctx context.Context, a *Approval) error
	Approvals(ctx context.Context, bookingID string) ([]Approval, error)

	AppendTimeline(ctx context.Context, bookingID string, e TimelineEntry) error
	Audit(ctx context.Context, b *Booking, action, actor string, metadata any) error
}

// Store is booking persistence. InTx commits when fn returns nil.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error

	Booking(ctx context.Context, id string) (*Booking, error)
	Approvals(ctx context.Context, bookingID string) ([]Approval, error)
	PendingApprovals(ctx context.Context, userID string) ([]PendingApproval, error)
	// SharedBookings returns bookings requested by userID or by any band
	// userID plays in, overlapping [from, to). Zero bounds are open.
	SharedBookings(ctx context.Context, userID string, from, to time.Time) ([]View, error)
	Timeline(ctx context.Context, bookingID string) ([]events.Event, error)
}

// VenueMembers is a point-in-time snapshot of who shares a venue.
type VenueMembers struct {
	VenueID string
	AdminID string
	// Members are direct members plus members of bands hosted at the venue.
	Members []string
}

func (v VenueMembers) Includes(userID string) bool {
	if v.AdminID == userID {
		return true
	}
	for _, m := range v.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Membership resolves venue membership. Unknown venues yield a NotFound error.
type Membership interface {
	VenueMembers(ctx context.Context, venueID string) (*VenueMembers, error)
}

// Notifier receives workflow events after their transaction committed.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

type TimelineEntry struct {
	Type    string
	Summary string
	Actor   string
	At      time.Time
	Data    any
}

type PendingApproval struct {
	Approval Approval `json:"approval"`
	Booking  Booking  `json:"booking"`
}

// View is a booking joined with the display data of its venue and band.
type View struct {
	Booking
	VenueName  string `json:"venueName"`
	VenueColor string `json:"venueColor"`
	BandName   string `json:"bandName,omitempty"`
	BandColor  string `json:"bandColor,omitempty"`
}
