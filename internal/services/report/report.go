package report

import (
	"PVResonance/internal/domain/models"
	"PVResonance/pkg/util"
)

// Filter returns the points whose date lies within [start, end].
func Filter(points []models.SignalPoint, start, end int) []models.SignalPoint {
	out := make([]models.SignalPoint, 0, len(points))
	for _, p := range points {
		if util.InDateRange(p.Date, start, end) {
			out = append(out, p)
		}
	}
	return out
}

// Markers places a BUY or SELL marker on the open price of every bar with an
// executed signal.
func Markers(points []models.SignalPoint) []models.Marker {
	var out []models.Marker
	for _, p := range points {
		if p.Sig == models.SignalFlat {
			continue
		}
		out = append(out, models.Marker{DateTime: p.DateTime, Price: p.Open, Side: p.Sig})
	}
	return out
}

// Build renders a run over [start, end]: the open price line, markers and
// the round trips that open and close inside the range.
func Build(runID string, points []models.SignalPoint, start, end int) (*models.Report, error) {
	if end < start {
		return nil, models.NewConfigurationError("end", "", "end date precedes start date")
	}
	in := Filter(points, start, end)
	rep := &models.Report{
		RunID:   runID,
		Start:   start,
		End:     end,
		Points:  in,
		Markers: Markers(in),
	}
	for _, m := range rep.Markers {
		if m.Side == models.SignalBuy {
			rep.Buys++
		} else {
			rep.Sells++
		}
	}
	trips, total := RoundTrips(in)
	rep.RoundTrips = trips
	rep.TotalRet = total
	return rep, nil
}
