package usecase

import (
	"math"
	"sort"
	"time"

	"PVResonance/internal/domain/models"
	"PVResonance/internal/domain/repository"
	"PVResonance/internal/services/bars"
	"PVResonance/internal/services/indicator"
	"PVResonance/internal/services/sanitizer"
	"PVResonance/internal/services/signal"
)

// Pipeline stage names carried by models.StageError.
const (
	StageLoad      = "load"
	StagePrepare   = "prepare"
	StageIndicator = "indicator"
	StageClassify  = "classify"
	StageSanitize  = "sanitize"
	StageReport    = "report"
)

// PipelineConfig is everything a run needs besides its data.
type PipelineConfig struct {
	Params models.RunParams
}

// PipelineInput holds the raw tables of one run. Daily is read at the daily
// frequency and Minute otherwise; Factors only apply to minute bars and the
// north tables only to the north variant.
type PipelineInput struct {
	Daily   []models.Bar
	Minute  []models.Bar
	Factors []models.AdjFactor
	Flows   []models.NorthFlow
	Quotes  []models.ComponentQuote
}

// PipelineResult is a completed, sanitized run. Bars, Raw and Sanitized
// cover the whole history up to End; Points only the bars from Start.
type PipelineResult struct {
	Bars        []models.Bar
	Points      []models.SignalPoint
	Raw         []models.Signal
	Sanitized   *sanitizer.Result
	GapDays     []int
	MissingFlow []int
	Summary     models.RunSummary
}

// RunPipeline prepares bars, computes the factor, classifies raw signals and
// sanitizes them. It is synchronous and never returns partial results: on
// error the result is nil and the error names the failing stage.
func RunPipeline(cfg PipelineConfig, in PipelineInput) (*PipelineResult, error) {
	p := cfg.Params
	if err := repository.ValidateParams(p); err != nil {
		return nil, models.WrapStage(StagePrepare, err)
	}
	freq := repository.Frequency(p.Frequency)

	var prepared *bars.Prepared
	var err error
	if freq.IsDaily() {
		prepared, err = bars.PrepareDaily(in.Daily)
	} else {
		prepared, err = bars.PrepareIntraday(in.Minute, in.Factors, freq, p.Multiplier)
	}
	if err != nil {
		return nil, models.WrapStage(StagePrepare, err)
	}
	// Indicators, classification and sanitizing run over the whole history
	// up to End; Start only bounds the reported points.
	series := upTo(prepared.Bars, p.End)
	first := firstOnOrAfter(series, p.Start)
	if first == len(series) {
		return nil, models.WrapStage(StagePrepare,
			models.NewConfigurationError("bars", "", "no bars between start and end"))
	}

	res := &PipelineResult{Bars: series, GapDays: prepared.GapDays}
	res.Summary = models.RunSummary{
		Instrument:     p.Instrument,
		IndexCode:      models.IndexCodes[p.Instrument],
		Variant:        p.Variant,
		Frequency:      p.Frequency,
		Bars:           len(series) - first,
		HistoryBars:    len(series),
		DroppedGapDays: len(prepared.GapDays),
	}

	inputs, regimes, err := buildInputs(p, in, series, res)
	if err != nil {
		return nil, models.WrapStage(StageIndicator, err)
	}

	th := ThresholdsFor(p)
	raw, err := signal.Generate(p.Variant, inputs, regimes, th)
	if err != nil {
		return nil, models.WrapStage(StageClassify, err)
	}
	res.Raw = raw

	times := make([]time.Time, len(series))
	for i := range series {
		times[i] = series[i].DateTime
	}
	san, err := sanitizer.Sanitize(raw, times, sanitizer.Options{MaxGapDays: p.MaxGapDays})
	if err != nil {
		return nil, models.WrapStage(StageSanitize, err)
	}
	res.Sanitized = san
	res.Summary.TruncatedBuy = len(san.Alternation.TruncatedBuys)
	res.Summary.TruncatedSell = len(san.Alternation.TruncatedSells)
	res.Summary.HolidayDrops = len(san.HolidayDrops)
	res.Summary.EndOfSeries = string(san.EndOfSeries)
	res.Summary.FinalPos = san.Positions[len(san.Positions)-1]

	res.Points = make([]models.SignalPoint, 0, len(series)-first)
	for i := first; i < len(series); i++ {
		b := series[i]
		pt := models.SignalPoint{
			Date:     b.Date,
			DateTime: b.DateTime,
			Open:     b.Open,
			Close:    b.Close,
			Factor:   inputs[i].Factor,
			FactorOK: inputs[i].FactorOK,
			RawSig:   raw[i],
			Sig:      san.Signals[i],
			Pos:      san.Positions[i],
		}
		if regimes != nil {
			pt.Regime = regimes[i]
		}
		switch raw[i] {
		case models.SignalBuy:
			res.Summary.RawBuys++
		case models.SignalSell:
			res.Summary.RawSells++
		}
		if pt.Sig == models.SignalBuy {
			res.Summary.Trades++
		}
		res.Points = append(res.Points, pt)
	}
	return res, nil
}

// ThresholdsFor maps run parameters onto classifier thresholds.
func ThresholdsFor(p models.RunParams) signal.Thresholds {
	return signal.Thresholds{
		Buy:        p.BuyThreshold,
		Bull:       p.BullThreshold,
		Bear:       p.BearThreshold,
		FactorBuy:  p.NorthBuyThreshold,
		FactorSell: p.SellThreshold,
		InflowBuy:  p.InflowBuyThreshold,
		InflowSell: p.InflowSellThreshold,
	}
}

// buildInputs computes the per-bar classifier inputs. The resonance variants
// also return regimes when v2 needs them; north aligns the daily north-bound
// factor on bar dates.
func buildInputs(p models.RunParams, in PipelineInput, series []models.Bar, res *PipelineResult) ([]signal.Inputs, []models.Regime, error) {
	n := len(series)
	inputs := make([]signal.Inputs, n)

	if p.Variant == models.VariantNorth {
		factors, missing := signal.NorthFactors(in.Quotes, in.Flows)
		res.MissingFlow = missing
		byDate := make(map[int]signal.NorthFactor, len(factors))
		for _, f := range factors {
			byDate[f.Date] = f
		}
		for i, b := range series {
			inputs[i].Inflow = math.NaN()
			if f, ok := byDate[b.Date]; ok {
				inputs[i] = signal.Inputs{Factor: f.Factor, FactorOK: true, Inflow: f.Inflow}
				res.Summary.FactorBars++
			}
		}
		res.Summary.DroppedUndefined = n - res.Summary.FactorBars
		return inputs, nil, nil
	}

	prices, err := models.Column(series, p.PriceField)
	if err != nil {
		return nil, nil, err
	}
	volumes, err := models.Column(series, p.VolumeField)
	if err != nil {
		return nil, nil, err
	}
	rr, err := indicator.Resonance(prices, volumes, indicator.ResonanceConfig{
		ShortWindow: p.ShortWindow,
		LongWindow:  p.LongWindow,
		MAWindow:    p.MAWindow,
		FastLen:     p.FastLen,
		SlowLen:     p.SlowLen,
	})
	if err != nil {
		return nil, nil, err
	}
	vals, ok := rr.Aligned(n)
	for i := range inputs {
		inputs[i] = signal.Inputs{Factor: vals[i], FactorOK: ok[i], Inflow: math.NaN()}
	}
	res.Summary.FactorBars = len(rr.Points)
	res.Summary.DroppedUndefined = rr.Undefined

	if p.Variant != models.VariantV2 {
		return inputs, nil, nil
	}
	regimes, err := indicator.Regimes(prices, p.RegimeFastMA, p.RegimeSlowMA)
	if err != nil {
		return nil, nil, err
	}
	return inputs, regimes, nil
}

// upTo returns the ordered bars dated on or before end.
func upTo(in []models.Bar, end int) []models.Bar {
	n := sort.Search(len(in), func(i int) bool { return in[i].Date > end })
	return in[:n]
}

func firstOnOrAfter(in []models.Bar, start int) int {
	return sort.Search(len(in), func(i int) bool { return in[i].Date >= start })
}
