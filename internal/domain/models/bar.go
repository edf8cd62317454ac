package models

import (
	"fmt"
	"time"
)

// Bar is one row of an instrument's price series.
// Time is HHMM for intraday bars and zero for daily bars.
type Bar struct {
	Date     int       `json:"date"`
	Time     int       `json:"time,omitempty"`
	DateTime time.Time `json:"date_time"`

	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`

	ROpen  float64 `json:"r_open"`
	RHigh  float64 `json:"r_high"`
	RLow   float64 `json:"r_low"`
	RClose float64 `json:"r_close"`

	Volume   float64 `json:"volume"`
	Turnover float64 `json:"turnover"`
	AvgPrice float64 `json:"average_price"`
	Factor   float64 `json:"factor"`
}

// AdjFactor is the price adjustment factor of a trading day.
type AdjFactor struct {
	Date   int     `json:"date"`
	Factor float64 `json:"factor"`
}

// NorthFlow is the north-bound buy and sell money flow of a trading day.
type NorthFlow struct {
	Date int     `json:"date"`
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
}

// ComponentQuote is a daily quote of one index component open to the stock connect.
type ComponentQuote struct {
	Date   int     `json:"date"`
	Code   string  `json:"code"`
	Close  float64 `json:"close"`
	Amount float64 `json:"amount"`
	OI     float64 `json:"oi"`
}

// Field names a numeric column of a Bar.
type Field string

const (
	FieldOpen     Field = "open"
	FieldClose    Field = "close"
	FieldROpen    Field = "r_open"
	FieldRClose   Field = "r_close"
	FieldVolume   Field = "volume"
	FieldTurnover Field = "turnover"
)

// IsValid reports whether f names a supported column.
func (f Field) IsValid() bool {
	switch f {
	case FieldOpen, FieldClose, FieldROpen, FieldRClose, FieldVolume, FieldTurnover:
		return true
	default:
		return false
	}
}

// Value returns the column f of b.
func (b Bar) Value(f Field) float64 {
	switch f {
	case FieldOpen:
		return b.Open
	case FieldClose:
		return b.Close
	case FieldROpen:
		return b.ROpen
	case FieldRClose:
		return b.RClose
	case FieldVolume:
		return b.Volume
	case FieldTurnover:
		return b.Turnover
	default:
		return 0
	}
}

// Column extracts column f from bars.
func Column(bars []Bar, f Field) ([]float64, error) {
	if !f.IsValid() {
		return nil, NewConfigurationError("field", string(f), "unknown bar column")
	}
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Value(f)
	}
	return out, nil
}

// CheckOrdered verifies bars are strictly increasing by DateTime.
func CheckOrdered(bars []Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].DateTime.After(bars[i-1].DateTime) {
			return NewConfigurationError("bars", fmt.Sprintf("%d/%04d", bars[i].Date, bars[i].Time),
				"bars must be strictly ordered by date_time")
		}
	}
	return nil
}
