package signal

import (
	"cmp"
	"math"
	"slices"

	"PVResonance/internal/domain/models"
)

// NorthFactor is the north-bound flow factor of one trading day.
type NorthFactor struct {
	Date   int
	Factor float64
	// Inflow is Factor / (buy + sell); NaN when the day has no flow row.
	Inflow float64
}

// NorthFactors computes, per date, sum(delta_oi * close) / sum(amount) over all
// components, where delta_oi is the change of a component's holding since its
// previous observation (zero on its first one). Dates with no traded amount
// are skipped. The second return lists dates whose flow row is missing.
func NorthFactors(quotes []models.ComponentQuote, flows []models.NorthFlow) ([]NorthFactor, []int) {
	sorted := slices.Clone(quotes)
	slices.SortStableFunc(sorted, func(a, b models.ComponentQuote) int {
		if c := cmp.Compare(a.Code, b.Code); c != 0 {
			return c
		}
		return cmp.Compare(a.Date, b.Date)
	})

	type acc struct{ num, amount float64 }
	byDate := make(map[int]*acc)
	for i, q := range sorted {
		delta := 0.0
		if i > 0 && sorted[i-1].Code == q.Code {
			delta = q.OI - sorted[i-1].OI
		}
		a, ok := byDate[q.Date]
		if !ok {
			a = &acc{}
			byDate[q.Date] = a
		}
		a.num += delta * q.Close
		a.amount += q.Amount
	}

	flowByDate := make(map[int]models.NorthFlow, len(flows))
	for _, f := range flows {
		flowByDate[f.Date] = f
	}

	dates := make([]int, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	out := make([]NorthFactor, 0, len(dates))
	var missing []int
	for _, d := range dates {
		a := byDate[d]
		if a.amount == 0 {
			continue
		}
		nf := NorthFactor{Date: d, Factor: a.num / a.amount, Inflow: math.NaN()}
		if f, ok := flowByDate[d]; ok && f.Buy+f.Sell != 0 {
			nf.Inflow = nf.Factor / (f.Buy + f.Sell)
		} else {
			missing = append(missing, d)
		}
		out = append(out, nf)
	}
	return out, missing
}
