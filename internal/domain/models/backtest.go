package models

import "time"

// IndexCodes maps a stock-index future to the index it tracks.
var IndexCodes = map[string]string{
	"IC": "000905.SH",
	"IF": "000300.SH",
	"IH": "000016.SH",
}

// RunParams are the recognized parameters of one backtest run.
// The same struct is read from YAML, bound from HTTP bodies and handed
// to the pipeline.
type RunParams struct {
	Instrument string  `yaml:"instrument" json:"instrument" default:"IC" validate:"required,oneof=IC IF IH"`
	Frequency  int     `yaml:"frequency" json:"frequency" default:"240" validate:"gte=1,lte=240"`
	Variant    Variant `yaml:"variant" json:"variant" default:"v1" validate:"oneof=v1 v2 north"`

	ShortWindow int   `yaml:"ama_short_window" json:"ama_short_window" default:"5" validate:"gte=1"`
	LongWindow  int   `yaml:"ama_long_window" json:"ama_long_window" default:"100" validate:"gte=1"`
	MAWindow    int   `yaml:"ma_window" json:"ma_window" default:"50" validate:"gte=1"`
	FastLen     int   `yaml:"ama_fast_len" json:"ama_fast_len" default:"2" validate:"gte=1"`
	SlowLen     int   `yaml:"ama_slow_len" json:"ama_slow_len" default:"30" validate:"gte=1"`
	PriceField  Field `yaml:"price_field" json:"price_field" default:"r_close" validate:"oneof=open close r_open r_close"`
	VolumeField Field `yaml:"volume_field" json:"volume_field" default:"volume" validate:"oneof=volume turnover"`

	BuyThreshold  float64 `yaml:"buy_threshold" json:"buy_threshold" default:"1.15"`
	BullThreshold float64 `yaml:"bull_threshold" json:"bull_threshold" default:"1.15"`
	BearThreshold float64 `yaml:"bear_threshold" json:"bear_threshold" default:"1.25"`
	RegimeFastMA  int     `yaml:"regime_fast_ma" json:"regime_fast_ma" default:"5" validate:"gte=1"`
	RegimeSlowMA  int     `yaml:"regime_slow_ma" json:"regime_slow_ma" default:"90" validate:"gte=1"`

	NorthBuyThreshold   float64 `yaml:"north_buy_threshold" json:"north_buy_threshold" default:"10"`
	SellThreshold       float64 `yaml:"sell_threshold" json:"sell_threshold" default:"0"`
	InflowBuyThreshold  float64 `yaml:"inflow_buy_threshold" json:"inflow_buy_threshold" default:"0.03"`
	InflowSellThreshold float64 `yaml:"inflow_sell_threshold" json:"inflow_sell_threshold" default:"-0.02"`

	MaxGapDays int     `yaml:"max_gap_days" json:"max_gap_days" default:"1" validate:"gte=0"`
	Multiplier float64 `yaml:"contract_multiplier" json:"contract_multiplier" default:"200" validate:"gt=0"`
	Start      int     `yaml:"start" json:"start" default:"20170101" validate:"gte=19900101"`
	End        int     `yaml:"end" json:"end" default:"20210617" validate:"gtefield=Start"`
}

// RunSummary describes the outcome of a backtest run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	RunKey     string    `json:"run_key"`
	Instrument string    `json:"instrument"`
	IndexCode  string    `json:"index_code"`
	Variant    Variant   `json:"variant"`
	Frequency  int       `json:"frequency"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`

	Bars             int `json:"bars"`
	HistoryBars      int `json:"history_bars"`
	FactorBars       int `json:"factor_bars"`
	DroppedUndefined int `json:"dropped_undefined"`
	DroppedGapDays   int `json:"dropped_gap_days"`

	RawBuys       int    `json:"raw_buys"`
	RawSells      int    `json:"raw_sells"`
	Trades        int    `json:"trades"`
	TruncatedBuy  int    `json:"truncated_buy"`
	TruncatedSell int    `json:"truncated_sell"`
	HolidayDrops  int    `json:"holiday_drops"`
	EndOfSeries   string `json:"end_of_series"`
	FinalPos      int    `json:"final_pos"`
}

// Run is a completed backtest: parameters, summary and per-bar points.
type Run struct {
	Params  RunParams     `json:"params"`
	Summary RunSummary    `json:"summary"`
	Points  []SignalPoint `json:"points"`
}

// Marker is a BUY or SELL overlay on the report price line.
type Marker struct {
	DateTime time.Time `json:"date_time"`
	Price    float64   `json:"price"`
	Side     Signal    `json:"side"`
}

// RoundTrip is one executed BUY followed by its SELL.
type RoundTrip struct {
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice string    `json:"entry_price"`
	ExitTime   time.Time `json:"exit_time"`
	ExitPrice  string    `json:"exit_price"`
	Return     string    `json:"return"`
	Bars       int       `json:"bars"`
}

// Report is a run rendered over a date range.
type Report struct {
	RunID      string        `json:"run_id"`
	Start      int           `json:"start"`
	End        int           `json:"end"`
	Points     []SignalPoint `json:"points"`
	Markers    []Marker      `json:"markers"`
	RoundTrips []RoundTrip   `json:"round_trips"`
	Buys       int           `json:"buys"`
	Sells      int           `json:"sells"`
	TotalRet   string        `json:"total_return"`
}
