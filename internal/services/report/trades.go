package report

import (
	"github.com/shopspring/decimal"

	"PVResonance/internal/domain/models"
)

const returnPlaces = 6

// RoundTrips pairs each executed BUY with the next executed SELL and prices
// both legs at the bar's open. A SELL without a preceding BUY in the range
// and a BUY still open at the end are skipped. The second result is the
// compounded gross return of all trips.
func RoundTrips(points []models.SignalPoint) ([]models.RoundTrip, string) {
	var trips []models.RoundTrip
	growth := decimal.NewFromInt(1)
	entry := -1
	for i, p := range points {
		switch p.Sig {
		case models.SignalBuy:
			entry = i
		case models.SignalSell:
			if entry < 0 {
				continue
			}
			in, out := points[entry], p
			ret := tripReturn(in.Open, out.Open)
			growth = growth.Mul(decimal.NewFromInt(1).Add(ret))
			trips = append(trips, models.RoundTrip{
				EntryTime:  in.DateTime,
				EntryPrice: decimal.NewFromFloat(in.Open).String(),
				ExitTime:   out.DateTime,
				ExitPrice:  decimal.NewFromFloat(out.Open).String(),
				Return:     ret.StringFixed(returnPlaces),
				Bars:       i - entry,
			})
			entry = -1
		}
	}
	return trips, growth.Sub(decimal.NewFromInt(1)).StringFixed(returnPlaces)
}

func tripReturn(entry, exit float64) decimal.Decimal {
	in := decimal.NewFromFloat(entry)
	if in.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(exit).Sub(in).DivRound(in, 12)
}
