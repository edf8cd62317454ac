package signal

import (
	"errors"
	"math"
	"testing"

	"PVResonance/internal/domain/models"
)

var th = Thresholds{
	Buy:  1.15,
	Bull: 1.1, Bear: 1.3,
	FactorBuy: 10, FactorSell: 0, InflowBuy: 0.03, InflowSell: -0.02,
}

func TestClassifyV1(t *testing.T) {
	cases := []struct {
		factor float64
		want   models.Signal
	}{
		{1.2, models.SignalBuy},
		{1.15, models.SignalSell}, // not strictly greater
		{0.5, models.SignalSell},
	}
	for _, c := range cases {
		got := Classify(models.VariantV1, Inputs{Factor: c.factor, FactorOK: true}, models.RegimeUnknown, th)
		if got != c.want {
			t.Fatalf("v1 factor=%v got %v want %v", c.factor, got, c.want)
		}
	}
}

func TestClassifyV2(t *testing.T) {
	cases := []struct {
		factor float64
		regime models.Regime
		want   models.Signal
	}{
		{1.2, models.RegimeBull, models.SignalBuy},
		{1.1, models.RegimeBull, models.SignalSell},
		{1.2, models.RegimeBear, models.SignalSell},
		{1.31, models.RegimeBear, models.SignalBuy},
		{5, models.RegimeUnknown, models.SignalFlat},
	}
	for _, c := range cases {
		got := Classify(models.VariantV2, Inputs{Factor: c.factor, FactorOK: true}, c.regime, th)
		if got != c.want {
			t.Fatalf("v2 factor=%v regime=%v got %v want %v", c.factor, c.regime, got, c.want)
		}
	}
}

func TestClassifyNorth(t *testing.T) {
	cases := []struct {
		factor, inflow float64
		want           models.Signal
	}{
		{11, 0.04, models.SignalBuy},
		{11, 0.01, models.SignalFlat},
		{-1, -0.03, models.SignalSell},
		{-1, 0, models.SignalFlat},
		{5, 0.5, models.SignalFlat},
		{11, math.NaN(), models.SignalFlat},
	}
	for _, c := range cases {
		got := Classify(models.VariantNorth, Inputs{Factor: c.factor, FactorOK: true, Inflow: c.inflow}, models.RegimeUnknown, th)
		if got != c.want {
			t.Fatalf("north factor=%v inflow=%v got %v want %v", c.factor, c.inflow, got, c.want)
		}
	}
}

func TestClassifyUndefinedFactorIsFlat(t *testing.T) {
	for _, v := range []models.Variant{models.VariantV1, models.VariantV2, models.VariantNorth} {
		if got := Classify(v, Inputs{Factor: 100}, models.RegimeBull, th); got != models.SignalFlat {
			t.Fatalf("%s: undefined factor got %v", v, got)
		}
	}
}

func TestGenerateAllFlatRaisesNoSignal(t *testing.T) {
	inputs := make([]Inputs, 5)
	_, err := Generate(models.VariantV1, inputs, nil, th)
	if !errors.Is(err, models.ErrNoSignal) {
		t.Fatalf("expected no-signal error, got %v", err)
	}
	var nse *models.NoSignalError
	if !errors.As(err, &nse) || nse.Missing != models.SignalBuy {
		t.Fatalf("expected missing BUY, got %v", err)
	}
}

func TestGenerateOnlyBuysRaisesNoSignal(t *testing.T) {
	inputs := []Inputs{{Factor: 2, FactorOK: true}, {Factor: 3, FactorOK: true}}
	_, err := Generate(models.VariantV1, inputs, nil, th)
	var nse *models.NoSignalError
	if !errors.As(err, &nse) || nse.Missing != models.SignalSell {
		t.Fatalf("expected missing SELL, got %v", err)
	}
}

func TestGenerateV2NeedsRegimes(t *testing.T) {
	_, err := Generate(models.VariantV2, []Inputs{{Factor: 2, FactorOK: true}}, nil, th)
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestGenerateAndIndices(t *testing.T) {
	inputs := []Inputs{
		{}, {Factor: 2, FactorOK: true}, {Factor: 1, FactorOK: true}, {Factor: 1.16, FactorOK: true},
	}
	sig, err := Generate(models.VariantV1, inputs, nil, th)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	buys, sells := Indices(sig)
	if len(buys) != 2 || buys[0] != 1 || buys[1] != 3 {
		t.Fatalf("buys got %v", buys)
	}
	if len(sells) != 1 || sells[0] != 2 {
		t.Fatalf("sells got %v", sells)
	}
}
