package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"bandspace/internal/apperr"
	"bandspace/internal/events"
)

// memStore is an in-memory Store. InTx holds a single mutex for the whole
// transaction and restores a snapshot when fn fails.
type memStore struct {
	mu sync.Mutex

	bookings      map[string]Booking
	approvals     map[string]Approval
	approvalOrder []string
	timeline      map[string][]TimelineEntry
	audits        []string

	// bandMembers and venue display data feed SharedBookings.
	bandMembers map[string][]string
	venueColor  map[string]string
	bandColor   map[string]string
	bandName    map[string]string

	failInsertApprovals error

	// approvalLookups counts ApprovalForUpdate calls.
	approvalLookups int
}

func newMemStore() *memStore {
	return &memStore{
		bookings:    map[string]Booking{},
		approvals:   map[string]Approval{},
		timeline:    map[string][]TimelineEntry{},
		bandMembers: map[string][]string{},
		venueColor:  map[string]string{},
		bandColor:   map[string]string{},
		bandName:    map[string]string{},
	}
}

type memSnapshot struct {
	bookings      map[string]Booking
	approvals     map[string]Approval
	approvalOrder []string
	timeline      map[string][]TimelineEntry
	audits        []string
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		bookings:      make(map[string]Booking, len(m.bookings)),
		approvals:     make(map[string]Approval, len(m.approvals)),
		approvalOrder: append([]string(nil), m.approvalOrder...),
		timeline:      make(map[string][]TimelineEntry, len(m.timeline)),
		audits:        append([]string(nil), m.audits...),
	}
	for k, v := range m.bookings {
		s.bookings[k] = v
	}
	for k, v := range m.approvals {
		s.approvals[k] = v
	}
	for k, v := range m.timeline {
		s.timeline[k] = append([]TimelineEntry(nil), v...)
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.bookings = s.bookings
	m.approvals = s.approvals
	m.approvalOrder = s.approvalOrder
	m.timeline = s.timeline
	m.audits = s.audits
}

func (m *memStore) InTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(memTx{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) Booking(ctx context.Context, id string) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.booking(id)
}

func (m *memStore) Approvals(ctx context.Context, bookingID string) ([]Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.approvalsFor(bookingID), nil
}

func (m *memStore) PendingApprovals(ctx context.Context, userID string) ([]PendingApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []PendingApproval{}
	for _, id := range m.approvalOrder {
		a := m.approvals[id]
		b := m.bookings[a.BookingID]
		if a.ApproverID == userID && !a.Decided() && b.State == StatePendingApprovals {
			out = append(out, PendingApproval{Approval: a, Booking: b})
		}
	}
	return out, nil
}

func (m *memStore) SharedBookings(ctx context.Context, userID string, from, to time.Time) ([]View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []View{}
	for _, b := range m.bookings {
		if !m.sharedWith(b, userID) {
			continue
		}
		if !from.IsZero() && !b.EndsAt.After(from) {
			continue
		}
		if !to.IsZero() && !b.StartsAt.Before(to) {
			continue
		}
		v := View{Booking: b, VenueName: "venue " + b.VenueID, VenueColor: m.venueColor[b.VenueID]}
		if b.BandID != nil {
			v.BandName = m.bandName[*b.BandID]
			v.BandColor = m.bandColor[*b.BandID]
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (m *memStore) Timeline(ctx context.Context, bookingID string) ([]events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []events.Event{}
	for _, e := range m.timeline[bookingID] {
		out = append(out, events.Event{BookingID: bookingID, EventType: e.Type, Summary: e.Summary, Actor: e.Actor, OccurredAt: e.At})
	}
	return out, nil
}

func (m *memStore) sharedWith(b Booking, userID string) bool {
	if b.RequesterID == userID {
		return true
	}
	if b.BandID == nil {
		return false
	}
	for _, u := range m.bandMembers[*b.BandID] {
		if u == userID {
			return true
		}
	}
	return false
}

func (m *memStore) booking(id string) (*Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, apperr.NotFound("booking %s not found", id)
	}
	return &b, nil
}

func (m *memStore) approvalsFor(bookingID string) []Approval {
	out := []Approval{}
	for _, id := range m.approvalOrder {
		if a := m.approvals[id]; a.BookingID == bookingID {
			out = append(out, a)
		}
	}
	return out
}

type memTx struct {
	m *memStore
}

func (t memTx) InsertBooking(ctx context.Context, b *Booking) error {
	t.m.bookings[b.ID] = *b
	return nil
}

func (t memTx) BookingForUpdate(ctx context.Context, id string) (*Booking, error) {
	return t.m.booking(id)
}

func (t memTx) SaveBooking(ctx context.Context, b *Booking) error {
	if _, ok := t.m.bookings[b.ID]; !ok {
		return apperr.NotFound("booking %s not found", b.ID)
	}
	t.m.bookings[b.ID] = *b
	return nil
}

func (t memTx) InsertApprovals(ctx context.Context, rows []Approval) error {
	for _, a := range rows {
		t.m.approvals[a.ID] = a
		t.m.approvalOrder = append(t.m.approvalOrder, a.ID)
	}
	// Fail after writing so the test can observe the rollback.
	return t.m.failInsertApprovals
}

func (t memTx) ApprovalForUpdate(ctx context.Context, id string) (*Approval, error) {
	t.m.approvalLookups++
	a, ok := t.m.approvals[id]
	if !ok {
		return nil, apperr.NotFound("approval %s not found", id)
	}
	return &a, nil
}

func (t memTx) SaveApproval(ctx context.Context, a *Approval) error {
	if cur := t.m.approvals[a.ID]; cur.Decided() {
		return apperr.InvalidState("approval %s was already answered", a.ID)
	}
	t.m.approvals[a.ID] = *a
	return nil
}

func (t memTx) Approvals(ctx context.Context, bookingID string) ([]Approval, error) {
	return t.m.approvalsFor(bookingID), nil
}

func (t memTx) AppendTimeline(ctx context.Context, bookingID string, e TimelineEntry) error {
	t.m.timeline[bookingID] = append(t.m.timeline[bookingID], e)
	return nil
}

func (t memTx) Audit(ctx context.Context, b *Booking, action, actor string, metadata any) error {
	t.m.audits = append(t.m.audits, action+":"+b.ID+":"+actor)
	return nil
}

type fakeMembership map[string]VenueMembers

func (f fakeMembership) VenueMembers(ctx context.Context, venueID string) (*VenueMembers, error) {
	v, ok := f[venueID]
	if !ok {
		return nil, apperr.NotFound("venue %s not found", venueID)
	}
	v.Members = append([]string(nil), v.Members...)
	return &v, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (n *recordingNotifier) Publish(ctx context.Context, ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) kinds() []EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EventKind, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}
