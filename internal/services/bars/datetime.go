package bars

import (
	"fmt"
	"time"

	"PVResonance/internal/domain/models"
	"PVResonance/internal/domain/repository"
	"PVResonance/pkg/util"
)

// Exchange is the time zone bar timestamps are built in.
var Exchange = loadExchange()

func loadExchange() *time.Location {
	if loc, err := time.LoadLocation("Asia/Shanghai"); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*60*60)
}

// DateTime builds a bar timestamp. Daily bars are stamped at the session
// close, intraday bars at their own HHMM.
func DateTime(date, hhmm int, freq repository.Frequency) (time.Time, error) {
	if freq.IsDaily() {
		hhmm = util.SessionClose
	}
	return util.CombineDateTime(date, hhmm, Exchange)
}

// Stamp sets DateTime on every bar and verifies the resulting order.
func Stamp(in []models.Bar, freq repository.Frequency) ([]models.Bar, error) {
	if err := repository.ValidateFrequency(freq); err != nil {
		return nil, err
	}
	out := make([]models.Bar, len(in))
	for i, b := range in {
		dt, err := DateTime(b.Date, b.Time, freq)
		if err != nil {
			return nil, models.NewConfigurationError("bars", fmt.Sprintf("%d/%04d", b.Date, b.Time), err.Error())
		}
		b.DateTime = dt
		out[i] = b
	}
	if err := models.CheckOrdered(out); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeTime accepts HHMM or the vendor's HHMMSSmmm clock and returns HHMM.
func NormalizeTime(raw int) int {
	if raw > 2359 {
		return raw / 100000
	}
	return raw
}
