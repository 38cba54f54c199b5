package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandspace/internal/apperr"
)

func TestPendingApprovalsForUser_OnlyOpenBookings(t *testing.T) {
	ctx := context.Background()
	f := newBareFixture("u1", "u2", "u3")
	q := NewQueries(f.store)

	open, err := f.engine.CreateBooking(ctx, fullDay("u1"))
	require.NoError(t, err)

	other := fullDay("u1")
	other.StartsAt = day.Add(72 * time.Hour)
	other.EndsAt = other.StartsAt.Add(24 * time.Hour)
	closed, err := f.engine.CreateBooking(ctx, other)
	require.NoError(t, err)
	_, err = f.engine.RespondToApproval(ctx, approvalOf(t, closed.Approvals, "u2").ID, false, "u2")
	require.NoError(t, err)

	pending, err := q.PendingApprovalsForUser(ctx, "u3")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, open.Booking.ID, pending[0].Booking.ID)

	none, err := q.PendingApprovalsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestApprovalsForBooking_UnknownBooking(t *testing.T) {
	q := NewQueries(newMemStore())
	_, err := q.ApprovalsForBooking(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSharedBookingsForUser_IncludesBandBookings(t *testing.T) {
	ctx := context.Background()
	f := newBareFixture("u1", "u2", "u3")
	band := "band-1"
	f.store.bandMembers[band] = []string{"u2", "u3"}
	q := NewQueries(f.store)

	show := CreateRequest{
		VenueID: venueID, BandID: &band, RequesterID: "u2", Type: EventBandShow,
		StartsAt: day.Add(20 * time.Hour), EndsAt: day.Add(23 * time.Hour),
	}
	_, err := f.engine.CreateBooking(ctx, show)
	require.NoError(t, err)

	solo := CreateRequest{
		VenueID: venueID, RequesterID: "u1", Type: EventSoloShow,
		StartsAt: day.Add(10 * time.Hour), EndsAt: day.Add(11 * time.Hour),
	}
	_, err = f.engine.CreateBooking(ctx, solo)
	require.NoError(t, err)

	u3, err := q.SharedBookingsForUser(ctx, "u3")
	require.NoError(t, err)
	require.Len(t, u3, 1)
	assert.Equal(t, EventBandShow, u3[0].Type)

	u1, err := q.SharedBookingsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, u1, 1)
	assert.Equal(t, EventSoloShow, u1[0].Type)
}

func TestCalendarForUser(t *testing.T) {
	ctx := context.Background()
	f := newBareFixture("u1")
	band := "band-1"
	f.store.bandMembers[band] = []string{"u1"}
	f.store.bandColor[band] = "#FF0000"
	f.store.bandName[band] = "The Amps"
	q := NewQueries(f.store)

	rehearsal := CreateRequest{
		VenueID: venueID, BandID: &band, RequesterID: "u1", Type: EventRehearsal,
		StartsAt: day.Add(18 * time.Hour), EndsAt: day.Add(20 * time.Hour),
	}
	_, err := f.engine.CreateBooking(ctx, rehearsal)
	require.NoError(t, err)

	nextMonth := rehearsal
	nextMonth.StartsAt = day.AddDate(0, 1, 0)
	nextMonth.EndsAt = nextMonth.StartsAt.Add(time.Hour)
	_, err = f.engine.CreateBooking(ctx, nextMonth)
	require.NoError(t, err)

	cancelled := rehearsal
	cancelled.StartsAt = day.Add(40 * time.Hour)
	cancelled.EndsAt = cancelled.StartsAt.Add(time.Hour)
	c, err := f.engine.CreateBooking(ctx, cancelled)
	require.NoError(t, err)
	_, err = f.engine.CancelBooking(ctx, c.Booking.ID, "u1")
	require.NoError(t, err)

	items, err := q.CalendarForUser(ctx, "u1", 2025, time.March, time.UTC)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "#FF0000", items[0].Color)
	assert.Equal(t, "Rehearsal: The Amps", items[0].Title)
}
