package sanitizer

import (
	"fmt"
	"strconv"
	"time"

	"PVResonance/internal/domain/models"
	"PVResonance/internal/services/signal"
)

// EndAdjustment names the end-of-series rule applied to a run.
type EndAdjustment string

const (
	EndNone      EndAdjustment = "none"
	EndPromoted  EndAdjustment = "promoted"  // final SELL moved one bar earlier
	EndCancelled EndAdjustment = "cancelled" // BUY on the second-to-last bar dropped with the final SELL
)

// Correction is an audit record of a silent change made while sanitizing.
type Correction struct {
	Kind   string
	Index  int
	Detail string
}

// Options tune the sanitizer.
type Options struct {
	// MaxGapDays is the largest calendar gap allowed between a BUY and its execution bar.
	MaxGapDays int
}

// DefaultOptions allows executions on the next calendar day only.
func DefaultOptions() Options { return Options{MaxGapDays: 1} }

// Result is a sanitized signal series.
type Result struct {
	Alternation  *Alternation
	Accepted     Pairs
	HolidayDrops []HolidayDrop
	EndOfSeries  EndAdjustment
	// Signals holds executed signals: a signal generated at bar i sits at i+1.
	Signals     []models.Signal
	Positions   []int
	Corrections []Correction
}

// Trades returns the number of executed BUY/SELL pairs.
func (r *Result) Trades() int {
	n := 0
	for _, s := range r.Signals {
		if s == models.SignalBuy {
			n++
		}
	}
	return n
}

// Sanitize turns a raw BUY/SELL/FLAT stream into an alternating, holiday-safe
// series executed one bar after generation, with cumulative positions.
func Sanitize(raw []models.Signal, times []time.Time, opts Options) (*Result, error) {
	if len(raw) != len(times) {
		return nil, models.NewConfigurationError("times", strconv.Itoa(len(times)),
			"signal and timestamp columns must have equal length")
	}
	if opts.MaxGapDays < 0 {
		return nil, models.NewConfigurationError("max_gap_days", strconv.Itoa(opts.MaxGapDays), "must be >= 0")
	}

	buys, sells := signal.Indices(raw)
	alt, err := Alternate(buys, sells)
	if err != nil {
		return nil, err
	}
	res := &Result{Alternation: alt}
	for _, i := range alt.DiscardedBuys {
		res.Corrections = append(res.Corrections, Correction{Kind: "discard_buy", Index: i, Detail: "BUY while already long"})
	}
	for _, i := range alt.DiscardedSells {
		res.Corrections = append(res.Corrections, Correction{Kind: "discard_sell", Index: i, Detail: "SELL while flat"})
	}
	for _, i := range alt.TruncatedBuys {
		res.Corrections = append(res.Corrections, Correction{Kind: "truncate_buy", Index: i, Detail: "unmatched BUY at end of sequence"})
	}
	for _, i := range alt.TruncatedSells {
		res.Corrections = append(res.Corrections, Correction{Kind: "truncate_sell", Index: i, Detail: "unmatched SELL at end of sequence"})
	}

	accepted, drops := DropHolidayCrossings(alt.Pairs, times, opts.MaxGapDays)
	res.Accepted = accepted
	res.HolidayDrops = drops
	for _, d := range drops {
		res.Corrections = append(res.Corrections, Correction{
			Kind:  "holiday_drop",
			Index: d.Buy,
			Detail: fmt.Sprintf("buy %s executes %s (%d days), dropped with sell at %d",
				d.Generated.Format("2006-01-02"), d.Executed.Format("2006-01-02"), d.GapDays, d.Sell),
		})
	}

	sig := Place(len(raw), accepted)
	sig, res.EndOfSeries = ApplyEndOfSeries(sig)
	switch res.EndOfSeries {
	case EndPromoted:
		res.Corrections = append(res.Corrections, Correction{Kind: "end_promote", Index: len(sig) - 2, Detail: "final SELL moved one bar earlier"})
	case EndCancelled:
		res.Corrections = append(res.Corrections, Correction{Kind: "end_cancel", Index: len(sig) - 2, Detail: "same-bar BUY and SELL cancelled"})
	}

	res.Signals = Shift(sig)
	pos, err := Positions(res.Signals)
	if err != nil {
		return nil, err
	}
	res.Positions = pos
	if err := CheckAlternation(res.Signals); err != nil {
		return nil, err
	}
	return res, nil
}

// Place writes accepted pairs into a FLAT series of length n.
func Place(n int, p Pairs) []models.Signal {
	sig := make([]models.Signal, n)
	for i := 0; i < p.Len(); i++ {
		sig[p.Buys[i]] = models.SignalBuy
		sig[p.Sells[i]] = models.SignalSell
	}
	return sig
}

// ApplyEndOfSeries keeps a SELL on the last bar from being shifted away.
// If the second-to-last bar is not a BUY it becomes the SELL; if it is a BUY
// the trade would open and close on one bar, so the BUY is cancelled and the
// final SELL falls off with the shift. The input is not modified.
func ApplyEndOfSeries(sig []models.Signal) ([]models.Signal, EndAdjustment) {
	out := append([]models.Signal(nil), sig...)
	n := len(out)
	if n < 2 || out[n-1] != models.SignalSell {
		return out, EndNone
	}
	if out[n-2] != models.SignalBuy {
		out[n-2] = models.SignalSell
		return out, EndPromoted
	}
	out[n-2] = models.SignalFlat
	return out, EndCancelled
}

// Shift moves every signal one bar later. The first bar is FLAT and the
// signal on the last bar is dropped.
func Shift(sig []models.Signal) []models.Signal {
	out := make([]models.Signal, len(sig))
	if len(sig) > 1 {
		copy(out[1:], sig[:len(sig)-1])
	}
	return out
}

// Positions is the running sum of executed signals. With long-only
// alternation every position is 0 or 1; anything else is an error.
func Positions(sig []models.Signal) ([]int, error) {
	pos := make([]int, len(sig))
	acc := 0
	for i, s := range sig {
		acc += int(s)
		if acc < 0 || acc > 1 {
			return nil, fmt.Errorf("position %d at bar %d outside {0,1}", acc, i)
		}
		pos[i] = acc
	}
	return pos, nil
}

// CheckAlternation verifies that the non-FLAT entries read +1,-1,+1,... with
// equal counts.
func CheckAlternation(sig []models.Signal) error {
	want := models.SignalBuy
	for i, s := range sig {
		if s == models.SignalFlat {
			continue
		}
		if s != want {
			return fmt.Errorf("signal %s at bar %d breaks alternation", s, i)
		}
		want = -want
	}
	if want != models.SignalBuy {
		return fmt.Errorf("unmatched BUY at end of series")
	}
	return nil
}
