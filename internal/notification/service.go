package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bandspace/internal/booking"
	"bandspace/internal/metrics"
)

// Store persists notification rows.
type Store interface {
	Insert(ctx context.Context, ns []Notification) error
}

type Service struct {
	store     Store
	badge     *Badge
	publisher Publisher
	log       zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewService wires the delivery channels. badge and publisher may be nil.
func NewService(store Store, badge *Badge, publisher Publisher, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		badge:     badge,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Send persists ns and then refreshes badges and publishes to the broker.
// Only the database write can fail the call.
func (s *Service) Send(ctx context.Context, ns ...Notification) error {
	if len(ns) == 0 {
		return nil
	}
	now := s.now()
	users := make([]string, 0, len(ns))
	for i := range ns {
		if ns[i].ID == "" {
			ns[i].ID = s.newID()
		}
		if ns[i].Priority == "" {
			ns[i].Priority = PriorityNormal
		}
		if ns[i].CreatedAt.IsZero() {
			ns[i].CreatedAt = now
		}
		users = append(users, ns[i].UserID)
	}

	if err := s.store.Insert(ctx, ns); err != nil {
		metrics.NotificationSent(string(ns[0].Type), "inapp", err)
		return fmt.Errorf("store notifications: %w", err)
	}
	for _, n := range ns {
		metrics.NotificationSent(string(n.Type), "inapp", nil)
	}

	if err := s.badge.Invalidate(ctx, users...); err != nil {
		s.log.Warn().Err(err).Msg("invalidate unread badges")
	}

	if s.publisher != nil {
		for _, n := range ns {
			body, err := json.Marshal(n)
			if err == nil {
				err = s.publisher.Publish(ctx, "notifications."+string(n.Type), body)
			}
			metrics.NotificationSent(string(n.Type), "broker", err)
			if err != nil {
				s.log.Warn().Err(err).Str("type", string(n.Type)).Str("user_id", n.UserID).Msg("publish notification")
			}
		}
	}
	return nil
}

// Publish turns a booking workflow event into notifications for the people
// it concerns. It implements booking.Notifier.
func (s *Service) Publish(ctx context.Context, ev booking.Event) error {
	return s.Send(ctx, ForBookingEvent(ev)...)
}

// ForBookingEvent builds the notifications for ev. The acting user is never
// notified about their own action.
func ForBookingEvent(ev booking.Event) []Notification {
	b := ev.Booking
	when := b.StartsAt.Format("Mon 2 Jan 2006")
	url := "/bookings/" + ev.BookingID

	var (
		to       []string
		typ      Type
		title    string
		message  string
		priority = PriorityNormal
	)
	switch ev.Kind {
	case booking.KindApprovalsRequested:
		to, typ, priority = ev.Approvers, TypeBookingPendingApproval, PriorityHigh
		title = "Approval needed"
		message = fmt.Sprintf("A full-day rehearsal on %s needs your approval.", when)
	case booking.KindBookingConfirmed:
		to, typ = []string{b.RequesterID}, TypeBookingApproved
		title = "Booking confirmed"
		message = fmt.Sprintf("Your booking on %s is confirmed.", when)
	case booking.KindBookingRejected:
		to, typ, priority = []string{b.RequesterID}, TypeBookingRejected, PriorityHigh
		title = "Booking rejected"
		message = fmt.Sprintf("Your full-day rehearsal on %s was rejected by a venue member.", when)
	case booking.KindBookingCancelled:
		to, typ = append([]string{b.RequesterID}, ev.Approvers...), TypeBookingCancelled
		title = "Booking cancelled"
		message = fmt.Sprintf("The booking on %s was cancelled.", when)
	default:
		return nil
	}

	seen := map[string]bool{ev.Actor: true}
	var out []Notification
	for _, u := range to {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, Notification{
			UserID:    u,
			Type:      typ,
			Title:     title,
			Message:   message,
			ActionURL: url,
			Priority:  priority,
		})
	}
	return out
}
