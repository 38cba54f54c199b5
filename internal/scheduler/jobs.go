package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bandspace/internal/booking"
	"bandspace/internal/dues"
	"bandspace/internal/loan"
	"bandspace/internal/notification"
	"bandspace/internal/venue"
)

type BookingSource interface {
	StartingBetween(ctx context.Context, t booking.EventType, from, to time.Time) ([]booking.Booking, error)
}

type BandMembers interface {
	MemberIDs(ctx context.Context, bandID string) ([]string, error)
}

type LoanService interface {
	RemindDue(ctx context.Context, from, to time.Time) (int, error)
	RefreshOverdue(ctx context.Context) ([]loan.Loan, error)
}

type VenueSource interface {
	ListWithFees(ctx context.Context) ([]venue.Venue, error)
	MemberIDs(ctx context.Context, venueID string) ([]string, error)
}

type Notifier interface {
	Send(ctx context.Context, ns ...notification.Notification) error
}

type Deps struct {
	Bookings BookingSource
	Bands    BandMembers
	Loans    LoanService
	Venues   VenueSource
	Notify   Notifier
}

// Jobs returns the standard job set.
func Jobs(d Deps) []Job {
	return []Job{
		{Name: "rehearsal_reminders", Hour: 18, Run: d.rehearsalReminders},
		{Name: "loan_reminders", Hour: 9, Run: d.loanReminders},
		{Name: "overdue_sweep", Minute: 5, Run: d.overdueSweep},
		{Name: "monthly_dues", DayOfMonth: 4, Hour: 10, Run: d.monthlyDues},
	}
}

// tomorrow returns the calendar day after at, in at's location.
func tomorrow(at time.Time) (time.Time, time.Time) {
	y, m, d := at.Date()
	from := time.Date(y, m, d+1, 0, 0, 0, 0, at.Location())
	return from, from.AddDate(0, 0, 1)
}

func (d Deps) rehearsalReminders(ctx context.Context, at time.Time) error {
	from, to := tomorrow(at)
	bookings, err := d.Bookings.StartingBetween(ctx, booking.EventRehearsal, from, to)
	if err != nil {
		return err
	}

	var errs []error
	for _, b := range bookings {
		users := []string{b.RequesterID}
		if b.BandID != nil {
			members, err := d.Bands.MemberIDs(ctx, *b.BandID)
			if err != nil {
				errs = append(errs, fmt.Errorf("band %s: %w", *b.BandID, err))
				continue
			}
			users = members
		}
		ns := make([]notification.Notification, 0, len(users))
		for _, u := range users {
			ns = append(ns, notification.Notification{
				UserID:    u,
				Type:      notification.TypeRehearsalReminder,
				Title:     "Rehearsal tomorrow",
				Message:   "You have a rehearsal tomorrow at " + b.StartsAt.In(at.Location()).Format("15:04") + ".",
				ActionURL: "/bookings/" + b.ID,
			})
		}
		if err := d.Notify.Send(ctx, ns...); err != nil {
			errs = append(errs, fmt.Errorf("booking %s: %w", b.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (d Deps) loanReminders(ctx context.Context, at time.Time) error {
	from, to := tomorrow(at)
	_, err := d.Loans.RemindDue(ctx, from, to)
	return err
}

func (d Deps) overdueSweep(ctx context.Context, at time.Time) error {
	_, err := d.Loans.RefreshOverdue(ctx)
	return err
}

func (d Deps) monthlyDues(ctx context.Context, at time.Time) error {
	venues, err := d.Venues.ListWithFees(ctx)
	if err != nil {
		return err
	}

	period := at.Format("January 2006")
	var errs []error
	for _, v := range venues {
		members, err := d.Venues.MemberIDs(ctx, v.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("venue %s: %w", v.ID, err))
			continue
		}
		if len(members) == 0 {
			continue
		}
		shares, err := dues.Assign(v.MonthlyFee, members)
		if err != nil {
			errs = append(errs, fmt.Errorf("venue %s: %w", v.ID, err))
			continue
		}
		ns := make([]notification.Notification, 0, len(shares))
		for _, s := range shares {
			ns = append(ns, duesNotice(v, s, period))
		}
		if err := d.Notify.Send(ctx, ns...); err != nil {
			errs = append(errs, fmt.Errorf("venue %s: %w", v.ID, err))
		}
	}
	return errors.Join(errs...)
}

func duesNotice(v venue.Venue, s dues.Assignment, period string) notification.Notification {
	return notification.Notification{
		UserID:    s.UserID,
		Type:      notification.TypePaymentReminder,
		Title:     "Monthly dues",
		Message:   fmt.Sprintf("Your share of %s at %s for %s is %s.", v.MonthlyFee.StringFixed(2), v.Name, period, s.Amount.StringFixed(2)),
		ActionURL: "/venues/" + v.ID,
		Priority:  notification.PriorityHigh,
	}
}
