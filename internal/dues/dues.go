// Package dues splits a venue's monthly fee across its members.
package dues

import (
	"github.com/shopspring/decimal"

	"bandspace/internal/apperr"
)

// DefaultScale is the number of decimal places kept on each share.
const DefaultScale int32 = 2

// Split divides total into n equal shares rounded to scale.
//
// The shares always sum to total rounded to scale: any rounding delta is
// added to the last share.
func Split(total decimal.Decimal, n int, scale int32) ([]decimal.Decimal, error) {
	if n <= 0 {
		return nil, apperr.Validation("cannot split dues across %d members", n)
	}
	if total.IsNegative() {
		return nil, apperr.Validation("dues total must be >= 0")
	}
	if scale <= 0 {
		scale = DefaultScale
	}

	share := total.DivRound(decimal.NewFromInt(int64(n)), scale)
	out := make([]decimal.Decimal, n)
	sum := decimal.Zero
	for i := range out {
		out[i] = share
		sum = sum.Add(share)
	}

	if delta := total.Round(scale).Sub(sum); !delta.IsZero() {
		out[n-1] = out[n-1].Add(delta).Round(scale)
	}
	return out, nil
}

// Assignment pairs a member with the share they owe.
type Assignment struct {
	UserID string
	Amount decimal.Decimal
}

// Assign splits total across userIDs in the given order.
func Assign(total decimal.Decimal, userIDs []string) ([]Assignment, error) {
	shares, err := Split(total, len(userIDs), DefaultScale)
	if err != nil {
		return nil, err
	}
	out := make([]Assignment, len(userIDs))
	for i, id := range userIDs {
		out[i] = Assignment{UserID: id, Amount: shares[i]}
	}
	return out, nil
}
