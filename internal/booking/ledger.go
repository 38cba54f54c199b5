package booking

import (
	"context"
	"time"

	"bandspace/internal/apperr"
)

type Decision string

const (
	DecisionUndecided Decision = "UNDECIDED"
	DecisionApproved  Decision = "APPROVED"
	DecisionRejected  Decision = "REJECTED"
)

// Approval is one approver's vote on one full-day booking. Once decided it
// never changes.
type Approval struct {
	ID          string     `json:"id"`
	BookingID   string     `json:"bookingId"`
	ApproverID  string     `json:"approverId"`
	Decision    Decision   `json:"decision"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (a Approval) Decided() bool {
	return a.Decision != DecisionUndecided
}

// Ledger creates and decides approval rows within a single transaction.
type Ledger struct {
	tx    Tx
	now   func() time.Time
	newID func() string
}

// CreateFor inserts one undecided row per distinct approver of b.
func (l Ledger) CreateFor(ctx context.Context, b *Booking, approvers []string) ([]Approval, error) {
	if !b.IsFullDayRehearsal() {
		return nil, apperr.Validation("approvals only apply to full-day rehearsals")
	}

	seen := make(map[string]bool, len(approvers))
	now := l.now()
	rows := make([]Approval, 0, len(approvers))
	for _, id := range approvers {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, Approval{
			ID:         l.newID(),
			BookingID:  b.ID,
			ApproverID: id,
			Decision:   DecisionUndecided,
			CreatedAt:  now,
		})
	}
	if len(rows) == 0 {
		return nil, apperr.Validation("approver set is empty")
	}

	if err := l.tx.InsertApprovals(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// RecordDecision stamps a, which the caller loaded and locked in the same
// transaction, with d. a itself is left untouched.
func (l Ledger) RecordDecision(ctx context.Context, a *Approval, d Decision) (*Approval, error) {
	if d != DecisionApproved && d != DecisionRejected {
		return nil, apperr.Validation("decision must be APPROVED or REJECTED")
	}
	if a.Decided() {
		return nil, apperr.InvalidState("approval %s was already answered", a.ID)
	}

	now := l.now()
	out := *a
	out.Decision = d
	out.RespondedAt = &now
	if err := l.tx.SaveApproval(ctx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func AllDecided(rows []Approval) bool {
	for _, r := range rows {
		if !r.Decided() {
			return false
		}
	}
	return true
}

func AnyRejected(rows []Approval) bool {
	for _, r := range rows {
		if r.Decision == DecisionRejected {
			return true
		}
	}
	return false
}

// AllApproved is false for an empty ledger.
func AllApproved(rows []Approval) bool {
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		if r.Decision != DecisionApproved {
			return false
		}
	}
	return true
}

func approverIDs(rows []Approval) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ApproverID)
	}
	return out
}
