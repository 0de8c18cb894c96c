package analytics

import "github.com/shopspring/decimal"

// percentPlaces is the display precision for percentages (66.7, not 66.666...).
const percentPlaces = 1

var hundred = decimal.NewFromInt(100)

// Share returns count/total as a percentage in [0, 100], rounded to one
// decimal place. A zero total yields 0 rather than an error, so an empty
// decision point renders as all-zero shares.
func Share(count, total int64) decimal.Decimal {
	if total <= 0 || count <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(count).
		Mul(hundred).
		Div(decimal.NewFromInt(total)).
		Round(percentPlaces)
}
