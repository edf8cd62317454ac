package sanitizer

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"PVResonance/internal/domain/models"
	"PVResonance/pkg/util"
)

func sigs(v ...int) []models.Signal {
	out := make([]models.Signal, len(v))
	for i, x := range v {
		out[i] = models.Signal(x)
	}
	return out
}

// consecutive calendar days starting on a Monday
func dailyTimes(n int) []time.Time {
	start := time.Date(2021, 3, 1, 15, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func TestAlternateDiscardsAndTruncates(t *testing.T) {
	alt, err := Alternate([]int{1, 4, 5}, []int{3, 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(alt.Buys, []int{1, 4}) || !reflect.DeepEqual(alt.Sells, []int{3, 6}) {
		t.Fatalf("got buys=%v sells=%v", alt.Buys, alt.Sells)
	}
	if !reflect.DeepEqual(alt.DiscardedBuys, []int{5}) {
		t.Fatalf("expected buy 5 discarded, got %v", alt.DiscardedBuys)
	}

	alt, err = Alternate([]int{0, 1, 5, 8}, []int{2, 3, 4, 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(alt.Buys, []int{0, 5}) || !reflect.DeepEqual(alt.Sells, []int{2, 6}) {
		t.Fatalf("got buys=%v sells=%v", alt.Buys, alt.Sells)
	}
	if !reflect.DeepEqual(alt.TruncatedBuys, []int{8}) {
		t.Fatalf("expected trailing buy 8 truncated, got %v", alt.TruncatedBuys)
	}
	if !reflect.DeepEqual(alt.DiscardedSells, []int{3, 4}) {
		t.Fatalf("expected sells 3,4 discarded, got %v", alt.DiscardedSells)
	}
}

func TestAlternateLeadingSellsAreSkipped(t *testing.T) {
	alt, err := Alternate([]int{3}, []int{0, 1, 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(alt.Buys, []int{3}) || !reflect.DeepEqual(alt.Sells, []int{5}) {
		t.Fatalf("got buys=%v sells=%v", alt.Buys, alt.Sells)
	}
}

func TestAlternateLeavesInputsUntouched(t *testing.T) {
	buys, sells := []int{1, 2, 3}, []int{4}
	if _, err := Alternate(buys, sells); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(buys, []int{1, 2, 3}) || !reflect.DeepEqual(sells, []int{4}) {
		t.Fatalf("inputs were modified: %v %v", buys, sells)
	}
}

func TestSanitizeScenario(t *testing.T) {
	raw := sigs(0, 1, 0, -1, 1, 1, -1, 0)
	res, err := Sanitize(raw, dailyTimes(len(raw)), DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(res.Accepted.Buys, []int{1, 4}) || !reflect.DeepEqual(res.Accepted.Sells, []int{3, 6}) {
		t.Fatalf("accepted buys=%v sells=%v", res.Accepted.Buys, res.Accepted.Sells)
	}
	if want := sigs(0, 0, 1, 0, -1, 1, 0, -1); !reflect.DeepEqual(res.Signals, want) {
		t.Fatalf("signals got %v want %v", res.Signals, want)
	}
	if want := []int{0, 0, 1, 1, 0, 1, 1, 0}; !reflect.DeepEqual(res.Positions, want) {
		t.Fatalf("positions got %v want %v", res.Positions, want)
	}
	if res.EndOfSeries != EndNone {
		t.Fatalf("expected no end adjustment, got %s", res.EndOfSeries)
	}
	if res.Trades() != 2 {
		t.Fatalf("expected 2 trades, got %d", res.Trades())
	}
	if len(res.Corrections) != 1 || res.Corrections[0].Kind != "discard_buy" || res.Corrections[0].Index != 5 {
		t.Fatalf("unexpected corrections: %+v", res.Corrections)
	}
}

func TestSanitizeAllFlatIsNoSignal(t *testing.T) {
	raw := sigs(0, 0, 0, 0)
	_, err := Sanitize(raw, dailyTimes(4), DefaultOptions())
	if !errors.Is(err, models.ErrNoSignal) {
		t.Fatalf("expected ErrNoSignal, got %v", err)
	}
	var ns *models.NoSignalError
	if !errors.As(err, &ns) || ns.Missing != models.SignalBuy {
		t.Fatalf("expected missing BUY, got %v", err)
	}
}

func TestSanitizeLengthMismatch(t *testing.T) {
	_, err := Sanitize(sigs(1, -1), dailyTimes(3), DefaultOptions())
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSanitizeExecutionLag(t *testing.T) {
	raw := sigs(1, 0, -1, 0, 0)
	res, err := Sanitize(raw, dailyTimes(len(raw)), DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(raw); i++ {
		if raw[i-1] != res.Signals[i] {
			t.Fatalf("bar %d: executed %v, generated %v", i, res.Signals[i], raw[i-1])
		}
	}
	if res.Signals[0] != models.SignalFlat {
		t.Fatalf("first bar must be FLAT")
	}
}

func TestSanitizeHolidayDrop(t *testing.T) {
	// Thu, Fri, Mon, Tue, Wed, Thu
	loc := time.UTC
	times := []time.Time{
		time.Date(2021, 3, 4, 15, 0, 0, 0, loc),
		time.Date(2021, 3, 5, 15, 0, 0, 0, loc),
		time.Date(2021, 3, 8, 15, 0, 0, 0, loc),
		time.Date(2021, 3, 9, 15, 0, 0, 0, loc),
		time.Date(2021, 3, 10, 15, 0, 0, 0, loc),
		time.Date(2021, 3, 11, 15, 0, 0, 0, loc),
	}
	raw := sigs(0, 1, -1, 1, -1, 0)
	res, err := Sanitize(raw, times, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.HolidayDrops) != 1 || res.HolidayDrops[0].Buy != 1 || res.HolidayDrops[0].Sell != 2 {
		t.Fatalf("expected pair (1,2) dropped, got %+v", res.HolidayDrops)
	}
	if res.HolidayDrops[0].GapDays != 3 {
		t.Fatalf("expected 3-day gap, got %d", res.HolidayDrops[0].GapDays)
	}
	if want := sigs(0, 0, 0, 0, 1, -1); !reflect.DeepEqual(res.Signals, want) {
		t.Fatalf("signals got %v want %v", res.Signals, want)
	}

	// a wider tolerance keeps the weekend trade
	res, err = Sanitize(raw, times, Options{MaxGapDays: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.HolidayDrops) != 0 || res.Trades() != 2 {
		t.Fatalf("expected both trades kept, got drops=%v trades=%d", res.HolidayDrops, res.Trades())
	}
}

func TestSanitizeAllPairsDroppedIsFlat(t *testing.T) {
	times := []time.Time{
		time.Date(2021, 2, 10, 15, 0, 0, 0, time.UTC),
		time.Date(2021, 2, 18, 15, 0, 0, 0, time.UTC),
		time.Date(2021, 2, 19, 15, 0, 0, 0, time.UTC),
	}
	res, err := Sanitize(sigs(1, -1, 0), times, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, p := range res.Positions {
		if p != 0 {
			t.Fatalf("bar %d: expected flat position, got %d", i, p)
		}
	}
}

// A SELL on the last bar is pulled one bar earlier so it survives the shift.
// This reproduces the backtest's original end-of-series handling.
func TestSanitizeEndOfSeriesPromote(t *testing.T) {
	raw := sigs(0, 1, 0, 0, -1)
	res, err := Sanitize(raw, dailyTimes(len(raw)), DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.EndOfSeries != EndPromoted {
		t.Fatalf("expected promotion, got %s", res.EndOfSeries)
	}
	if want := sigs(0, 0, 1, 0, -1); !reflect.DeepEqual(res.Signals, want) {
		t.Fatalf("signals got %v want %v", res.Signals, want)
	}
	if res.Positions[len(res.Positions)-1] != 0 {
		t.Fatalf("expected flat at the end, got %v", res.Positions)
	}
}

// A BUY on the second-to-last bar paired with a SELL on the last bar is
// cancelled outright and no trade is opened.
func TestSanitizeEndOfSeriesCancel(t *testing.T) {
	raw := sigs(1, -1, 0, 1, -1)
	res, err := Sanitize(raw, dailyTimes(len(raw)), DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.EndOfSeries != EndCancelled {
		t.Fatalf("expected cancellation, got %s", res.EndOfSeries)
	}
	if want := sigs(0, 1, -1, 0, 0); !reflect.DeepEqual(res.Signals, want) {
		t.Fatalf("signals got %v want %v", res.Signals, want)
	}
	if res.Trades() != 1 {
		t.Fatalf("expected 1 trade, got %d", res.Trades())
	}
}

func TestApplyEndOfSeriesCopies(t *testing.T) {
	in := sigs(1, 0, -1)
	out, adj := ApplyEndOfSeries(in)
	if adj != EndPromoted || out[1] != models.SignalSell {
		t.Fatalf("got %v %s", out, adj)
	}
	if in[1] != models.SignalFlat {
		t.Fatalf("input was modified")
	}
}

func TestPositionsRejectsOutOfRange(t *testing.T) {
	if _, err := Positions(sigs(1, 1)); err == nil {
		t.Fatalf("expected error for double BUY")
	}
	if _, err := Positions(sigs(-1)); err == nil {
		t.Fatalf("expected error for leading SELL")
	}
}

func TestCheckAlternation(t *testing.T) {
	if err := CheckAlternation(sigs(0, 1, 0, -1, 1, -1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckAlternation(sigs(1, 0, 1)); err == nil {
		t.Fatalf("expected error for repeated BUY")
	}
	if err := CheckAlternation(sigs(1, 0)); err == nil {
		t.Fatalf("expected error for open BUY")
	}
}

func TestSanitizeRandomStreams(t *testing.T) {
	rng := rand.New(rand.NewSource(20210301))
	// mostly next-day bars with weekends and holiday breaks mixed in
	gaps := []int{1, 1, 1, 1, 1, 1, 2, 3, 4, 7, 10}

	for iter := 0; iter < 2000; iter++ {
		n := 2 + rng.Intn(60)
		raw := make([]models.Signal, n)
		times := make([]time.Time, n)
		ts := time.Date(2021, 1, 4, 15, 0, 0, 0, time.UTC)
		for i := range raw {
			raw[i] = models.Signal(rng.Intn(3) - 1)
			if i > 0 {
				ts = ts.AddDate(0, 0, gaps[rng.Intn(len(gaps))])
			}
			times[i] = ts
		}
		opts := Options{MaxGapDays: rng.Intn(5)}

		res, err := Sanitize(raw, times, opts)
		if errors.Is(err, models.ErrNoSignal) {
			continue
		}
		if err != nil {
			t.Fatalf("iter %d raw=%v: %v", iter, raw, err)
		}
		if len(res.Signals) != n || len(res.Positions) != n {
			t.Fatalf("iter %d: lengths signals=%d positions=%d, want %d", iter, len(res.Signals), len(res.Positions), n)
		}
		if err := CheckAlternation(res.Signals); err != nil {
			t.Fatalf("iter %d raw=%v: %v", iter, raw, err)
		}
		for i, p := range res.Positions {
			if p != 0 && p != 1 {
				t.Fatalf("iter %d: position %d at bar %d", iter, p, i)
			}
		}
		if res.Positions[n-1] != 0 {
			t.Fatalf("iter %d raw=%v: final position %d, want flat", iter, raw, res.Positions[n-1])
		}
		if res.Signals[0] != models.SignalFlat {
			t.Fatalf("iter %d: executed signal on the first bar", iter)
		}
		for i, s := range res.Signals {
			if s != models.SignalBuy {
				continue
			}
			if gap := util.CalendarDaysBetween(times[i-1], times[i]); gap > opts.MaxGapDays {
				t.Fatalf("iter %d: BUY executed at bar %d across %d days, max %d", iter, i, gap, opts.MaxGapDays)
			}
		}
		for _, d := range res.HolidayDrops {
			if d.GapDays <= opts.MaxGapDays {
				t.Fatalf("iter %d: drop %+v within max gap %d", iter, d, opts.MaxGapDays)
			}
		}
	}
}
