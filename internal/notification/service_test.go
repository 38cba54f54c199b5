package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandspace/internal/booking"
)

type memStore struct {
	rows []Notification
	err  error
}

func (m *memStore) Insert(ctx context.Context, ns []Notification) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, ns...)
	return nil
}

type published struct {
	key  string
	body []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(ctx context.Context, key string, body []byte) error {
	p.msgs = append(p.msgs, published{key: key, body: body})
	return p.err
}

func pendingEvent() booking.Event {
	b := booking.Booking{
		ID:          "b1",
		RequesterID: "u1",
		Type:        booking.EventRehearsal,
		FullDay:     true,
		StartsAt:    time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	}
	return booking.Event{
		Kind:      booking.KindApprovalsRequested,
		BookingID: b.ID,
		Booking:   b,
		Approvers: []string{"u2", "u3"},
		Actor:     "u1",
	}
}

func TestForBookingEvent_ApprovalsRequested(t *testing.T) {
	ns := ForBookingEvent(pendingEvent())
	require.Len(t, ns, 2)
	for _, n := range ns {
		assert.Equal(t, TypeBookingPendingApproval, n.Type)
		assert.Equal(t, PriorityHigh, n.Priority)
		assert.Equal(t, "/bookings/b1", n.ActionURL)
	}
	assert.Equal(t, "u2", ns[0].UserID)
	assert.Equal(t, "u3", ns[1].UserID)
}

func TestForBookingEvent_SkipsActor(t *testing.T) {
	ev := pendingEvent()
	ev.Kind = booking.KindBookingConfirmed

	// Confirmed at creation by the requester: nobody to tell.
	assert.Empty(t, ForBookingEvent(ev))

	// Confirmed by the last approver: the requester hears about it.
	ev.Actor = "u3"
	ns := ForBookingEvent(ev)
	require.Len(t, ns, 1)
	assert.Equal(t, "u1", ns[0].UserID)
	assert.Equal(t, TypeBookingApproved, ns[0].Type)
}

func TestForBookingEvent_CancelledByAdmin(t *testing.T) {
	ev := pendingEvent()
	ev.Kind = booking.KindBookingCancelled
	ev.Actor = "admin"

	ns := ForBookingEvent(ev)
	var users []string
	for _, n := range ns {
		users = append(users, n.UserID)
	}
	assert.Equal(t, []string{"u1", "u2", "u3"}, users)
}

func TestService_SendPersistsAndFansOut(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectDel(badgeKey("u2"), badgeKey("u3")).SetVal(2)

	store := &memStore{}
	pub := &fakePublisher{}
	svc := NewService(store, NewBadge(rdb), pub, zerolog.Nop())

	require.NoError(t, svc.Publish(context.Background(), pendingEvent()))

	require.Len(t, store.rows, 2)
	assert.NotEmpty(t, store.rows[0].ID)
	assert.False(t, store.rows[0].CreatedAt.IsZero())

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "notifications.BOOKING_PENDING_APPROVAL", pub.msgs[0].key)
	var n Notification
	require.NoError(t, json.Unmarshal(pub.msgs[0].body, &n))
	assert.Equal(t, "u2", n.UserID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_BrokerFailureIsNotFatal(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, nil, &fakePublisher{err: errors.New("connection reset")}, zerolog.Nop())

	require.NoError(t, svc.Send(context.Background(), Notification{UserID: "u1", Type: TypeMemberAdded, Title: "t", Message: "m"}))
	require.Len(t, store.rows, 1)
	assert.Equal(t, PriorityNormal, store.rows[0].Priority)
}

func TestService_StoreFailureIsReturned(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewService(&memStore{err: errors.New("db down")}, nil, pub, zerolog.Nop())

	err := svc.Send(context.Background(), Notification{UserID: "u1", Type: TypeMemberAdded})
	assert.Error(t, err)
	assert.Empty(t, pub.msgs)
}
