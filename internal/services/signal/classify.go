package signal

import (
	"fmt"
	"math"

	"PVResonance/internal/domain/models"
)

// Thresholds holds the factor levels of every variant.
type Thresholds struct {
	Buy float64 // v1: BUY above, SELL otherwise

	Bull float64 // v2 level in a bull regime
	Bear float64 // v2 level in a bear regime

	FactorBuy  float64 // north: factor must exceed to BUY
	FactorSell float64 // north: factor must stay below to SELL
	InflowBuy  float64 // north: inflow tension must exceed to BUY
	InflowSell float64 // north: inflow tension must stay below to SELL
}

// Describe renders the thresholds a variant uses, for error messages.
func (th Thresholds) Describe(v models.Variant) string {
	switch v {
	case models.VariantV2:
		return fmt.Sprintf("{bull=%g, bear=%g}", th.Bull, th.Bear)
	case models.VariantNorth:
		return fmt.Sprintf("{s1=%g, s_1=%g, s2=%g, s_2=%g}", th.FactorBuy, th.FactorSell, th.InflowBuy, th.InflowSell)
	default:
		return fmt.Sprintf("{s=%g}", th.Buy)
	}
}

// Inputs are the per-bar values a classifier reads.
type Inputs struct {
	Factor   float64
	FactorOK bool
	Inflow   float64 // north variant only, NaN when unknown
}

// ClassifyV1 never returns FLAT: a factor not strictly above the level is a SELL.
func ClassifyV1(factor float64, th Thresholds) models.Signal {
	if factor > th.Buy {
		return models.SignalBuy
	}
	return models.SignalSell
}

// ClassifyV2 compares the factor with the level of the current regime.
func ClassifyV2(factor float64, regime models.Regime, th Thresholds) models.Signal {
	var level float64
	switch regime {
	case models.RegimeBull:
		level = th.Bull
	case models.RegimeBear:
		level = th.Bear
	default:
		return models.SignalFlat
	}
	if factor > level {
		return models.SignalBuy
	}
	return models.SignalSell
}

// ClassifyNorth requires both the flow factor and the inflow tension to agree.
func ClassifyNorth(factor, inflow float64, th Thresholds) models.Signal {
	if math.IsNaN(inflow) || math.IsNaN(factor) {
		return models.SignalFlat
	}
	switch {
	case factor > th.FactorBuy && inflow > th.InflowBuy:
		return models.SignalBuy
	case factor < th.FactorSell && inflow < th.InflowSell:
		return models.SignalSell
	default:
		return models.SignalFlat
	}
}

// Classify is the total per-bar rule. Bars without a factor are FLAT.
func Classify(v models.Variant, in Inputs, regime models.Regime, th Thresholds) models.Signal {
	if !in.FactorOK {
		return models.SignalFlat
	}
	switch v {
	case models.VariantV1:
		return ClassifyV1(in.Factor, th)
	case models.VariantV2:
		return ClassifyV2(in.Factor, regime, th)
	case models.VariantNorth:
		return ClassifyNorth(in.Factor, in.Inflow, th)
	default:
		return models.SignalFlat
	}
}
