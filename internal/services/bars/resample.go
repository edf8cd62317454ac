package bars

import (
	"math"

	"PVResonance/internal/domain/models"
	"PVResonance/internal/domain/repository"
)

// DefaultMultiplier is the index points per IC contract.
const DefaultMultiplier = 200

// Resampled is the outcome of aggregating minute bars.
type Resampled struct {
	Bars []models.Bar
	// GapDays lists dates dropped because one of their buckets had no volume.
	GapDays []int
}

// Resample aggregates 1-minute bars into bars of freq minutes. Within each
// date, consecutive groups of freq bars form one bucket: open is the first
// open, high the max, low the min, close the last close, volume and turnover
// are summed and the bucket carries the first bar's time. A date with any
// zero-volume bucket is dropped whole. freq 1 returns the input unchanged.
func Resample(minute []models.Bar, freq repository.Frequency, multiplier float64) (*Resampled, error) {
	if err := repository.ValidateFrequency(freq); err != nil {
		return nil, err
	}
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}
	if freq == 1 {
		return &Resampled{Bars: minute}, nil
	}

	out := &Resampled{Bars: make([]models.Bar, 0, len(minute)/int(freq)+1)}
	size := int(freq)
	for start := 0; start < len(minute); {
		end := start
		for end < len(minute) && minute[end].Date == minute[start].Date {
			end++
		}
		day, gap := aggregateDay(minute[start:end], size, multiplier)
		if gap {
			out.GapDays = append(out.GapDays, minute[start].Date)
		} else {
			out.Bars = append(out.Bars, day...)
		}
		start = end
	}
	return out, nil
}

func aggregateDay(day []models.Bar, size int, multiplier float64) ([]models.Bar, bool) {
	out := make([]models.Bar, 0, len(day)/size+1)
	for i := 0; i < len(day); i += size {
		bucket := day[i:min(i+size, len(day))]
		b := models.Bar{
			Date:   bucket[0].Date,
			Time:   bucket[0].Time,
			Open:   bucket[0].Open,
			High:   math.Inf(-1),
			Low:    math.Inf(1),
			Close:  bucket[len(bucket)-1].Close,
			Factor: bucket[0].Factor,
		}
		for _, m := range bucket {
			b.High = math.Max(b.High, m.High)
			b.Low = math.Min(b.Low, m.Low)
			b.Volume += m.Volume
			b.Turnover += m.Turnover
		}
		if b.Volume == 0 {
			return nil, true
		}
		b.AvgPrice = b.Turnover / b.Volume / multiplier
		out = append(out, b)
	}
	return out, false
}
