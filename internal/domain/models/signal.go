package models

import "time"

// Signal is a trade instruction attached to a bar.
type Signal int

const (
	SignalSell Signal = -1
	SignalFlat Signal = 0
	SignalBuy  Signal = 1
)

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return "FLAT"
	}
}

// Regime is the bull/bear label derived from a fast and a slow moving average.
type Regime int

const (
	RegimeBear    Regime = -1
	RegimeUnknown Regime = 0
	RegimeBull    Regime = 1
)

func (r Regime) String() string {
	switch r {
	case RegimeBull:
		return "BULL"
	case RegimeBear:
		return "BEAR"
	default:
		return "UNKNOWN"
	}
}

// Variant selects the raw signal rule.
type Variant string

const (
	VariantV1    Variant = "v1"    // factor above one threshold
	VariantV2    Variant = "v2"    // regime-aware thresholds
	VariantNorth Variant = "north" // north-bound flow factor and inflow tension
)

// IsValid reports whether v is a known variant.
func (v Variant) IsValid() bool {
	switch v {
	case VariantV1, VariantV2, VariantNorth:
		return true
	default:
		return false
	}
}

// SignalPoint is one row of a sanitized run. Sig is the executed signal,
// already shifted to the bar after generation.
type SignalPoint struct {
	Date     int       `json:"date"`
	DateTime time.Time `json:"date_time"`
	Open     float64   `json:"open"`
	Close    float64   `json:"close"`
	Factor   float64   `json:"factor"`
	FactorOK bool      `json:"factor_ok"`
	Regime   Regime    `json:"regime"`
	RawSig   Signal    `json:"raw_sig"`
	Sig      Signal    `json:"sig"`
	Pos      int       `json:"pos"`
}
