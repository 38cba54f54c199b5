package loan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandspace/internal/apperr"
	"bandspace/internal/party"
)

var now = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func TestCreateRequest_Validate(t *testing.T) {
	band := party.Band("b1")
	ok := CreateRequest{ItemID: "i1", Recipient: &band, DueAt: now.Add(24 * time.Hour)}
	require.NoError(t, ok.Validate(now))

	cases := map[string]CreateRequest{
		"no item":      {Recipient: &band, DueAt: now.Add(time.Hour)},
		"no recipient": {ItemID: "i1", DueAt: now.Add(time.Hour)},
		"due now":      {ItemID: "i1", Recipient: &band, DueAt: now},
		"due past":     {ItemID: "i1", Recipient: &band, DueAt: now.Add(-time.Hour)},
		"no due":       {ItemID: "i1", Recipient: &band},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, apperr.Is(req.Validate(now), apperr.KindValidation))
		})
	}
}

func TestMarkReturned(t *testing.T) {
	for _, st := range []State{StateActive, StateOverdue} {
		l := Loan{ID: "l1", State: st}
		require.NoError(t, l.MarkReturned(now))
		assert.Equal(t, StateReturned, l.State)
		require.NotNil(t, l.ReturnedAt)
		assert.Equal(t, now, *l.ReturnedAt)
	}

	l := Loan{ID: "l1", State: StateReturned}
	err := l.MarkReturned(now)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestMoved(t *testing.T) {
	assert.False(t, Loan{OriginVenueID: "v1", DestinationVenueID: "v1"}.Moved())
	assert.True(t, Loan{OriginVenueID: "v1", DestinationVenueID: "v2"}.Moved())
}

func TestParseState(t *testing.T) {
	st, err := ParseState(" overdue ")
	require.NoError(t, err)
	assert.Equal(t, StateOverdue, st)

	_, err = ParseState("LOST")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestWithout(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, without([]string{"a", "b", "c"}, "b"))
	assert.Empty(t, without([]string{"b"}, "b"))
}
