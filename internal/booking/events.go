package booking

import "time"

type EventKind string

const (
	KindApprovalsRequested EventKind = "ApprovalsRequested"
	KindBookingConfirmed   EventKind = "BookingConfirmed"
	KindBookingRejected    EventKind = "BookingRejected"
	KindBookingCancelled   EventKind = "BookingCancelled"
)

// Event is emitted by the workflow engine. Approvers carries the ledger's
// approver set when one exists.
type Event struct {
	Kind      EventKind `json:"kind"`
	BookingID string    `json:"bookingId"`
	Booking   Booking   `json:"-"`
	Approvers []string  `json:"approvers,omitempty"`
	Actor     string    `json:"actor"`
	At        time.Time `json:"at"`
}
