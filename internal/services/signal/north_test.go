package signal

import (
	"math"
	"testing"

	"PVResonance/internal/domain/models"
)

func TestNorthFactors(t *testing.T) {
	quotes := []models.ComponentQuote{
		{Date: 20200102, Code: "600000.SH", Close: 10, Amount: 1000, OI: 100},
		{Date: 20200102, Code: "000001.SZ", Close: 20, Amount: 3000, OI: 50},
		{Date: 20200103, Code: "600000.SH", Close: 11, Amount: 1000, OI: 130},
		{Date: 20200103, Code: "000001.SZ", Close: 19, Amount: 1000, OI: 40},
	}
	flows := []models.NorthFlow{{Date: 20200103, Buy: 60, Sell: 40}}

	got, missing := NorthFactors(quotes, flows)
	if len(got) != 2 {
		t.Fatalf("expected 2 dates got %d", len(got))
	}
	// first observation of each code has zero delta
	if got[0].Date != 20200102 || got[0].Factor != 0 {
		t.Fatalf("first date got %+v", got[0])
	}
	if !math.IsNaN(got[0].Inflow) {
		t.Fatalf("missing flow must give NaN inflow")
	}
	// (30*11 + -10*19) / 2000 = 0.07
	if math.Abs(got[1].Factor-0.07) > 1e-12 {
		t.Fatalf("factor got %v", got[1].Factor)
	}
	if math.Abs(got[1].Inflow-0.0007) > 1e-12 {
		t.Fatalf("inflow got %v", got[1].Inflow)
	}
	if len(missing) != 1 || missing[0] != 20200102 {
		t.Fatalf("missing dates got %v", missing)
	}
}

func TestNorthFactorsSkipsZeroAmount(t *testing.T) {
	quotes := []models.ComponentQuote{{Date: 20200102, Code: "a", Close: 1, Amount: 0, OI: 1}}
	got, _ := NorthFactors(quotes, nil)
	if len(got) != 0 {
		t.Fatalf("expected no factor for zero amount, got %v", got)
	}
}
