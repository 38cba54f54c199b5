package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandspace/internal/apperr"
	"bandspace/internal/party"
)

func TestCreateItemRequest_DefaultsToCaller(t *testing.T) {
	req := CreateItemRequest{Description: " Bass amp ", VenueID: "v1"}
	require.NoError(t, req.normalize("u1"))

	assert.Equal(t, "Bass amp", req.Description)
	assert.Equal(t, 1, req.Quantity)
	require.NotNil(t, req.Owner)
	assert.True(t, req.Owner.IsUser())
	assert.Equal(t, "u1", req.Owner.ID())
}

func TestCreateItemRequest_BandOwnerKept(t *testing.T) {
	owner := party.Band("b1")
	req := CreateItemRequest{Description: "PA", VenueID: "v1", Quantity: 2, Owner: &owner}
	require.NoError(t, req.normalize("u1"))
	assert.True(t, req.Owner.IsBand())
}

func TestCreateItemRequest_Rejects(t *testing.T) {
	someoneElse := party.User("u2")
	cases := map[string]struct {
		req  CreateItemRequest
		kind apperr.Kind
	}{
		"no description":   {CreateItemRequest{VenueID: "v1"}, apperr.KindValidation},
		"negative qty":     {CreateItemRequest{Description: "x", VenueID: "v1", Quantity: -1}, apperr.KindValidation},
		"no venue":         {CreateItemRequest{Description: "x"}, apperr.KindValidation},
		"other user owner": {CreateItemRequest{Description: "x", VenueID: "v1", Owner: &someoneElse}, apperr.KindForbidden},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := tc.req
			err := req.normalize("u1")
			assert.True(t, apperr.Is(err, tc.kind), "got %v", err)
		})
	}
}

func TestItemAway(t *testing.T) {
	assert.False(t, Item{OriginalVenueID: "v1", CurrentVenueID: "v1"}.Away())
	assert.True(t, Item{OriginalVenueID: "v1", CurrentVenueID: "v2"}.Away())
}
