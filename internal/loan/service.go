package loan

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"bandspace/internal/apperr"
	"bandspace/internal/audit"
	"bandspace/internal/item"
	"bandspace/internal/notification"
	"bandspace/pkg/db"
)

type Notifier interface {
	Send(ctx context.Context, ns ...notification.Notification) error
}

type Service struct {
	db     *pgxpool.Pool
	loans  *Repository
	notify Notifier
	log    zerolog.Logger

	now func() time.Time
}

func NewService(pool *pgxpool.Pool, loans *Repository, notify Notifier, log zerolog.Logger) *Service {
	return &Service{
		db:     pool,
		loans:  loans,
		notify: notify,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create lends an item. The item row is locked so two concurrent loans on
// the same item cannot both pass the open-loan check.
func (s *Service) Create(ctx context.Context, lenderID string, req CreateRequest) (*Loan, error) {
	now := s.now()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	var (
		l      *Loan
		it     *item.Item
		owners []string
	)
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		if it, err = item.GetForUpdate(ctx, tx, req.ItemID); err != nil {
			return err
		}
		open, err := OpenForItem(ctx, tx, it.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return apperr.InvalidState("item %s is already on loan", it.ID)
		}

		l = &Loan{
			ItemID:             it.ID,
			LenderID:           lenderID,
			Recipient:          *req.Recipient,
			OriginVenueID:      it.CurrentVenueID,
			DestinationVenueID: req.DestinationVenueID,
			State:              StateActive,
			Notes:              req.Notes,
			LentAt:             now,
			DueAt:              req.DueAt.UTC(),
		}
		if l.DestinationVenueID == "" {
			l.DestinationVenueID = it.CurrentVenueID
		}
		if err := Insert(ctx, tx, l); err != nil {
			return err
		}
		if l.Moved() {
			if err := item.SetCurrentVenue(ctx, tx, it.ID, l.DestinationVenueID); err != nil {
				return err
			}
		}
		if owners, err = RecipientUserIDs(ctx, tx, it.Owner); err != nil {
			return err
		}
		return audit.Insert(ctx, tx, &l.OriginVenueID, "loan", l.ID, "LOAN_CREATED", lenderID, map[string]any{
			"itemId": it.ID, "recipient": l.Recipient, "dueAt": l.DueAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.send(ctx, notification.TypeItemLoanRequest, without(owners, lenderID), notification.Notification{
		Title:     "Item lent",
		Message:   fmt.Sprintf("%s was lent out until %s.", it.Description, l.DueAt.Format("2006-01-02")),
		ActionURL: "/loans/" + l.ID,
	})
	return l, nil
}

// Return closes an ACTIVE or OVERDUE loan and moves the item back to its
// home venue. The lender, the recipient and the item's owners may return.
func (s *Service) Return(ctx context.Context, id, userID string) (*Loan, error) {
	var (
		l      *Loan
		it     *item.Item
		owners []string
	)
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		if l, err = GetForUpdate(ctx, tx, id); err != nil {
			return err
		}
		if it, err = item.GetForUpdate(ctx, tx, l.ItemID); err != nil {
			return err
		}
		if owners, err = RecipientUserIDs(ctx, tx, it.Owner); err != nil {
			return err
		}
		recipients, err := RecipientUserIDs(ctx, tx, l.Recipient)
		if err != nil {
			return err
		}
		if userID != l.LenderID && !slices.Contains(owners, userID) && !slices.Contains(recipients, userID) {
			return apperr.Forbidden("only the lender, the recipient or the owner can return this loan")
		}

		if err := l.MarkReturned(s.now()); err != nil {
			return err
		}
		if err := Save(ctx, tx, l); err != nil {
			return err
		}
		if it.Away() {
			if err := item.SetCurrentVenue(ctx, tx, it.ID, it.OriginalVenueID); err != nil {
				return err
			}
		}
		return audit.Insert(ctx, tx, &it.OriginalVenueID, "loan", l.ID, "LOAN_RETURNED", userID, nil)
	})
	if err != nil {
		return nil, err
	}

	s.send(ctx, notification.TypeItemReturned, without(owners, userID), notification.Notification{
		Title:     "Item returned",
		Message:   it.Description + " was returned.",
		ActionURL: "/loans/" + l.ID,
	})
	return l, nil
}

// RefreshOverdue flags ACTIVE loans past due and tells the item owners.
func (s *Service) RefreshOverdue(ctx context.Context) ([]Loan, error) {
	var flagged []Loan
	notices := map[string][]string{}
	descriptions := map[string]string{}

	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		if flagged, err = MarkOverdue(ctx, tx, s.now()); err != nil {
			return err
		}
		for _, l := range flagged {
			const q = `SELECT description, owner_user_id FROM items WHERE id = $1`
			var desc string
			var ownerUser *string
			if err := tx.QueryRow(ctx, q, l.ItemID).Scan(&desc, &ownerUser); err != nil {
				return err
			}
			descriptions[l.ID] = desc
			if ownerUser != nil {
				notices[l.ID] = []string{*ownerUser}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, l := range flagged {
		s.send(ctx, notification.TypeItemOverdue, notices[l.ID], notification.Notification{
			Title:     "Item overdue",
			Message:   fmt.Sprintf("%s was due back on %s.", descriptions[l.ID], l.DueAt.Format("2006-01-02")),
			ActionURL: "/loans/" + l.ID,
			Priority:  notification.PriorityHigh,
		})
	}
	return flagged, nil
}

// RemindDue notifies recipients of ACTIVE loans due in [from, to).
func (s *Service) RemindDue(ctx context.Context, from, to time.Time) (int, error) {
	due, err := s.loans.DueBetween(ctx, from, to)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, l := range due {
		users, err := RecipientUserIDs(ctx, s.db, l.Recipient)
		if err != nil {
			return sent, err
		}
		s.send(ctx, notification.TypeReturnItemReminder, users, notification.Notification{
			Title:     "Return reminder",
			Message:   "A borrowed item is due back on " + l.DueAt.Format("2006-01-02") + ".",
			ActionURL: "/loans/" + l.ID,
		})
		sent += len(users)
	}
	return sent, nil
}

func (s *Service) send(ctx context.Context, t notification.Type, users []string, tmpl notification.Notification) {
	if s.notify == nil || len(users) == 0 {
		return
	}
	ns := make([]notification.Notification, 0, len(users))
	for _, u := range users {
		n := tmpl
		n.UserID = u
		n.Type = t
		ns = append(ns, n)
	}
	if err := s.notify.Send(ctx, ns...); err != nil {
		s.log.Warn().Err(err).Str("type", string(t)).Msg("send loan notification")
	}
}

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
