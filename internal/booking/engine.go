package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bandspace/internal/apperr"
	"bandspace/internal/metrics"
)

// Engine drives bookings through their lifecycle. Every state change runs in
// one transaction holding the booking row lock, so responses to the same
// booking are applied one at a time.
type Engine struct {
	store    Store
	members  Membership
	notifier Notifier
	log      zerolog.Logger

	now   func() time.Time
	newID func() string
}

func NewEngine(store Store, members Membership, notifier Notifier, log zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		members:  members,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

type CreateRequest struct {
	VenueID     string
	BandID      *string
	RequesterID string
	Type        EventType
	StartsAt    time.Time
	EndsAt      time.Time
	FullDay     bool
	Notes       string
}

type UpdateRequest struct {
	StartsAt *time.Time
	EndsAt   *time.Time
	Notes    *string
}

// Result is what a workflow operation changed and the events it emitted.
type Result struct {
	Booking   *Booking   `json:"booking"`
	Approval  *Approval  `json:"approval,omitempty"`
	Approvals []Approval `json:"approvals,omitempty"`
	Events    []Event    `json:"events,omitempty"`
}

// CreateBooking validates and persists a booking. Full-day rehearsals with at
// least one other venue member start in PENDING_APPROVALS with one ledger row
// per member; everything else is confirmed immediately.
func (e *Engine) CreateBooking(ctx context.Context, req CreateRequest) (*Result, error) {
	now := e.now()
	b := &Booking{
		ID:          e.newID(),
		VenueID:     req.VenueID,
		BandID:      req.BandID,
		RequesterID: req.RequesterID,
		Type:        req.Type,
		StartsAt:    req.StartsAt.UTC(),
		EndsAt:      req.EndsAt.UTC(),
		FullDay:     req.FullDay,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	snap, err := e.members.VenueMembers(ctx, b.VenueID)
	if err != nil {
		return nil, err
	}
	if !snap.Includes(b.RequesterID) {
		return nil, apperr.Forbidden("only members of the venue can book it")
	}

	var approvers []string
	if b.IsFullDayRehearsal() {
		for _, m := range snap.Members {
			if m != b.RequesterID {
				approvers = append(approvers, m)
			}
		}
	}

	res := &Result{Booking: b}
	err = e.store.InTx(ctx, func(tx Tx) error {
		if len(approvers) == 0 {
			b.State = StateConfirmed
		} else {
			b.State = StatePendingApprovals
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}

		if b.State == StatePendingApprovals {
			rows, err := e.ledger(tx).CreateFor(ctx, b, approvers)
			if err != nil {
				return err
			}
			res.Approvals = rows
			res.Events = []Event{e.event(KindApprovalsRequested, b, approverIDs(rows), b.RequesterID)}
		} else {
			res.Events = []Event{e.event(KindBookingConfirmed, b, nil, b.RequesterID)}
		}

		return tx.AppendTimeline(ctx, b.ID, TimelineEntry{
			Type:    "BOOKING_CREATED",
			Summary: "Booking requested",
			Actor:   b.RequesterID,
			At:      now,
			Data:    map[string]any{"state": b.State, "approvers": len(res.Approvals)},
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.BookingCreated(string(b.Type), string(b.State))
	e.publish(ctx, res.Events)
	return res, nil
}

// RespondToApproval records actingUserID's vote on approvalID and resolves
// the booking once the outcome is known. The first rejection resolves it
// immediately; approval needs every ledger row approved.
func (e *Engine) RespondToApproval(ctx context.Context, approvalID string, approved bool, actingUserID string) (*Result, error) {
	decision := DecisionRejected
	if approved {
		decision = DecisionApproved
	}

	res := &Result{}
	err := e.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.ApprovalForUpdate(ctx, approvalID)
		if err != nil {
			return err
		}
		if a.ApproverID != actingUserID {
			return apperr.Forbidden("approval %s belongs to another user", approvalID)
		}

		b, err := tx.BookingForUpdate(ctx, a.BookingID)
		if err != nil {
			return err
		}
		if b.State != StatePendingApprovals {
			return apperr.InvalidState("booking %s is %s and no longer takes responses", b.ID, b.State)
		}

		a, err = e.ledger(tx).RecordDecision(ctx, a, decision)
		if err != nil {
			return err
		}
		res.Approval = a
		res.Booking = b

		rows, err := tx.Approvals(ctx, b.ID)
		if err != nil {
			return err
		}

		next := b.State
		var kind EventKind
		switch {
		case AnyRejected(rows):
			next, kind = StateRejected, KindBookingRejected
		case AllApproved(rows):
			next, kind = StateConfirmed, KindBookingConfirmed
		}

		if err := tx.AppendTimeline(ctx, b.ID, TimelineEntry{
			Type:    "APPROVAL_" + string(decision),
			Summary: fmt.Sprintf("Approval %s", decisionVerb(decision)),
			Actor:   actingUserID,
			At:      *a.RespondedAt,
			Data:    map[string]any{"approvalId": a.ID},
		}); err != nil {
			return err
		}

		if next == b.State {
			return nil
		}
		if err := e.transition(ctx, tx, b, next, actingUserID); err != nil {
			return err
		}
		res.Events = []Event{e.event(kind, b, approverIDs(rows), actingUserID)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApprovalDecided(string(decision))
	if len(res.Events) > 0 {
		metrics.BookingResolved(string(res.Booking.State))
	}
	e.publish(ctx, res.Events)
	return res, nil
}

// UpdateBooking edits the schedule or notes of a booking still waiting for
// approvals. Only the requester may do so.
func (e *Engine) UpdateBooking(ctx context.Context, bookingID string, req UpdateRequest, actingUserID string) (*Booking, error) {
	var out *Booking
	err := e.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.RequesterID != actingUserID {
			return apperr.Forbidden("only the requester can edit a booking")
		}
		if b.State != StatePendingApprovals {
			return apperr.InvalidState("booking %s is %s and can no longer be edited", b.ID, b.State)
		}

		start, end := b.StartsAt, b.EndsAt
		if req.StartsAt != nil {
			start = req.StartsAt.UTC()
		}
		if req.EndsAt != nil {
			end = req.EndsAt.UTC()
		}
		if err := validateSchedule(start, end); err != nil {
			return err
		}

		b.StartsAt, b.EndsAt = start, end
		if req.Notes != nil {
			b.Notes = *req.Notes
		}
		b.UpdatedAt = e.now()
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		out = b
		return tx.AppendTimeline(ctx, b.ID, TimelineEntry{
			Type:    "BOOKING_UPDATED",
			Summary: "Booking details changed",
			Actor:   actingUserID,
			At:      b.UpdatedAt,
			Data:    map[string]any{"startsAt": b.StartsAt, "endsAt": b.EndsAt},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelBooking withdraws a booking. The requester and the venue admin may
// cancel; undecided ledger rows are left in place and can no longer be
// answered.
func (e *Engine) CancelBooking(ctx context.Context, bookingID, actingUserID string) (*Result, error) {
	res := &Result{}
	err := e.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}

		byAdmin := false
		if b.RequesterID != actingUserID {
			snap, err := e.members.VenueMembers(ctx, b.VenueID)
			if err != nil {
				return err
			}
			if snap.AdminID != actingUserID {
				return apperr.Forbidden("only the requester or the venue admin can cancel")
			}
			byAdmin = true
		}

		if !CanTransition(b.State, StateCancelled) {
			return apperr.InvalidState("booking %s is already %s", b.ID, b.State)
		}

		rows, err := tx.Approvals(ctx, b.ID)
		if err != nil {
			return err
		}
		from := b.State
		if err := e.transition(ctx, tx, b, StateCancelled, actingUserID); err != nil {
			return err
		}
		if byAdmin {
			if err := tx.Audit(ctx, b, "BOOKING_CANCELLED", actingUserID, map[string]any{"from": from}); err != nil {
				return err
			}
		}

		res.Booking = b
		res.Events = []Event{e.event(KindBookingCancelled, b, approverIDs(rows), actingUserID)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BookingResolved(string(StateCancelled))
	e.publish(ctx, res.Events)
	return res, nil
}

func (e *Engine) transition(ctx context.Context, tx Tx, b *Booking, next State, actor string) error {
	if !CanTransition(b.State, next) {
		return apperr.InvalidState("booking %s cannot move from %s to %s", b.ID, b.State, next)
	}
	from := b.State
	b.State = next
	b.UpdatedAt = e.now()
	if err := tx.SaveBooking(ctx, b); err != nil {
		return err
	}
	return tx.AppendTimeline(ctx, b.ID, TimelineEntry{
		Type:    "STATE_CHANGED",
		Summary: "Booking " + string(next),
		Actor:   actor,
		At:      b.UpdatedAt,
		Data:    map[string]any{"from": from, "to": next},
	})
}

// Visible loads booking id for userID. Only the requester and members of
// the booking's venue may read it, its approvals or its timeline.
func (e *Engine) Visible(ctx context.Context, id, userID string) (*Booking, error) {
	b, err := e.store.Booking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.RequesterID == userID {
		return b, nil
	}
	snap, err := e.members.VenueMembers(ctx, b.VenueID)
	if err != nil {
		return nil, err
	}
	if !snap.Includes(userID) {
		return nil, apperr.Forbidden("booking %s belongs to another venue", id)
	}
	return b, nil
}

func (e *Engine) ledger(tx Tx) Ledger {
	return Ledger{tx: tx, now: e.now, newID: e.newID}
}

func (e *Engine) event(kind EventKind, b *Booking, approvers []string, actor string) Event {
	return Event{
		Kind:      kind,
		BookingID: b.ID,
		Booking:   *b,
		Approvers: approvers,
		Actor:     actor,
		At:        e.now(),
	}
}

// publish hands committed events to the notifier. Delivery problems are
// logged; the write they describe already succeeded.
func (e *Engine) publish(ctx context.Context, evs []Event) {
	if e.notifier == nil {
		return
	}
	for _, ev := range evs {
		if err := e.notifier.Publish(ctx, ev); err != nil {
			e.log.Warn().Err(err).
				Str("kind", string(ev.Kind)).
				Str("booking_id", ev.BookingID).
				Msg("notify booking event")
		}
	}
}

func decisionVerb(d Decision) string {
	if d == DecisionApproved {
		return "granted"
	}
	return "denied"
}
