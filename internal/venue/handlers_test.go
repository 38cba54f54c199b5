package venue

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandspace/internal/apperr"
)

func ptr[T any](v T) *T { return &v }

func TestVenueRequestApply(t *testing.T) {
	v := &Venue{Color: DefaultColor, MonthlyFee: decimal.Zero}

	err := VenueRequest{Name: ptr("  Sala Norte "), MonthlyFee: ptr(decimal.RequireFromString("120.456"))}.apply(v)
	require.NoError(t, err)
	assert.Equal(t, "Sala Norte", v.Name)
	assert.Equal(t, "120.46", v.MonthlyFee.StringFixed(2))
	assert.Equal(t, DefaultColor, v.Color)
}

func TestVenueRequestApply_Rejects(t *testing.T) {
	cases := map[string]VenueRequest{
		"blank name":   {Name: ptr("   ")},
		"bad color":    {Name: ptr("Sala"), Color: ptr("green")},
		"negative fee": {Name: ptr("Sala"), MonthlyFee: ptr(decimal.NewFromInt(-5))},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			v := &Venue{Color: DefaultColor}
			err := req.apply(v)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestValidColor(t *testing.T) {
	assert.True(t, ValidColor("#4CAF50"))
	assert.True(t, ValidColor("#abcdef"))
	assert.False(t, ValidColor("4CAF50"))
	assert.False(t, ValidColor("#4CAF5"))
}
