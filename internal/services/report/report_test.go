package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"PVResonance/internal/domain/models"
)

func points() []models.SignalPoint {
	start := time.Date(2021, 3, 1, 15, 0, 0, 0, time.UTC)
	sig := []models.Signal{0, 0, 1, 0, -1, 1, 0, -1}
	open := []float64{100, 101, 100, 102, 110, 99, 90, 88}
	out := make([]models.SignalPoint, len(sig))
	pos := 0
	for i := range sig {
		pos += int(sig[i])
		dt := start.AddDate(0, 0, i)
		out[i] = models.SignalPoint{
			Date:     20210301 + i,
			DateTime: dt,
			Open:     open[i],
			Close:    open[i] + 1,
			Factor:   1.2,
			FactorOK: i > 0,
			Sig:      sig[i],
			Pos:      pos,
		}
	}
	return out
}

func TestBuildFullRange(t *testing.T) {
	rep, err := Build("run-1", points(), 20210301, 20210331)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Buys != 2 || rep.Sells != 2 || len(rep.Markers) != 4 {
		t.Fatalf("unexpected marker counts: %+v", rep)
	}
	if rep.Markers[0].Price != 100 || rep.Markers[0].Side != models.SignalBuy {
		t.Fatalf("first marker should be a BUY at the open: %+v", rep.Markers[0])
	}
	if len(rep.RoundTrips) != 2 {
		t.Fatalf("expected 2 round trips, got %d", len(rep.RoundTrips))
	}
	first := rep.RoundTrips[0]
	if first.Return != "0.100000" || first.Bars != 2 || first.EntryPrice != "100" || first.ExitPrice != "110" {
		t.Fatalf("unexpected first trip: %+v", first)
	}
	if rep.RoundTrips[1].Return != "-0.111111" {
		t.Fatalf("unexpected second trip return: %s", rep.RoundTrips[1].Return)
	}
	// 1.1 * (88/99) - 1
	if rep.TotalRet != "-0.022222" {
		t.Fatalf("unexpected total return: %s", rep.TotalRet)
	}
}

func TestBuildSubRangeSkipsOrphans(t *testing.T) {
	rep, err := Build("run-1", points(), 20210305, 20210306)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rep.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(rep.Points))
	}
	if rep.Buys != 1 || rep.Sells != 1 {
		t.Fatalf("unexpected counts: buys=%d sells=%d", rep.Buys, rep.Sells)
	}
	// the SELL at 0305 closes a trade opened before the range
	if len(rep.RoundTrips) != 0 || rep.TotalRet != "0.000000" {
		t.Fatalf("expected no complete trips, got %+v %s", rep.RoundTrips, rep.TotalRet)
	}
}

func TestBuildRejectsInvertedRange(t *testing.T) {
	_, err := Build("run-1", points(), 20210310, 20210301)
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, points()[:3]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %d lines", len(lines))
	}
	if lines[0] != "date_time,date,open,close,factor,regime,raw_sig,sig,pos" {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if lines[1] != "2021-03-01 15:00:00,20210301,100,101,,UNKNOWN,0,0,0" {
		t.Fatalf("unexpected first row: %s", lines[1])
	}
	if lines[3] != "2021-03-03 15:00:00,20210303,100,101,1.2,UNKNOWN,0,1,1" {
		t.Fatalf("unexpected third row: %s", lines[3])
	}
}
