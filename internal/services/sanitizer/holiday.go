package sanitizer

import (
	"time"

	"PVResonance/pkg/util"
)

// HolidayDrop is a pair removed because its BUY would execute across a holiday.
type HolidayDrop struct {
	Buy       int
	Sell      int
	Generated time.Time
	Executed  time.Time
	GapDays   int
}

// DropHolidayCrossings removes every pair whose BUY, generated at bar i and
// executed at bar i+1, spans more than maxGapDays calendar days. The paired
// SELL goes with it. A BUY on the last bar has no execution bar and is kept.
func DropHolidayCrossings(p Pairs, times []time.Time, maxGapDays int) (Pairs, []HolidayDrop) {
	kept := Pairs{
		Buys:  make([]int, 0, p.Len()),
		Sells: make([]int, 0, p.Len()),
	}
	var drops []HolidayDrop
	for i := 0; i < p.Len(); i++ {
		b, s := p.Buys[i], p.Sells[i]
		if b+1 < len(times) {
			gap := util.CalendarDaysBetween(times[b], times[b+1])
			if gap > maxGapDays {
				drops = append(drops, HolidayDrop{
					Buy: b, Sell: s,
					Generated: times[b], Executed: times[b+1],
					GapDays: gap,
				})
				continue
			}
		}
		kept.Buys = append(kept.Buys, b)
		kept.Sells = append(kept.Sells, s)
	}
	return kept, drops
}
