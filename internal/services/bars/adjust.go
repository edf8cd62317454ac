package bars

import "PVResonance/internal/domain/models"

// ApplyFactors joins bars with adjustment factors on date and fills the
// r_* prices. Bars without a factor are dropped and counted.
func ApplyFactors(in []models.Bar, factors []models.AdjFactor) ([]models.Bar, int) {
	byDate := make(map[int]float64, len(factors))
	for _, f := range factors {
		byDate[f.Date] = f.Factor
	}
	out := make([]models.Bar, 0, len(in))
	dropped := 0
	for _, b := range in {
		f, ok := byDate[b.Date]
		if !ok {
			dropped++
			continue
		}
		b.Factor = f
		out = append(out, scale(b))
	}
	return out, dropped
}

// ScaleOwnFactor fills the r_* prices of bars that already carry a factor,
// as daily series do.
func ScaleOwnFactor(in []models.Bar) []models.Bar {
	out := make([]models.Bar, len(in))
	for i, b := range in {
		out[i] = scale(b)
	}
	return out
}

func scale(b models.Bar) models.Bar {
	b.ROpen = b.Open * b.Factor
	b.RHigh = b.High * b.Factor
	b.RLow = b.Low * b.Factor
	b.RClose = b.Close * b.Factor
	return b
}
