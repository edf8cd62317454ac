package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"PVResonance/internal/domain/models"
	domrepo "PVResonance/internal/domain/repository"
	"PVResonance/internal/services/sanitizer"
	"PVResonance/pkg/cache"
	applogger "PVResonance/pkg/logger"
)

// ErrRunInProgress is returned when an identical run is already executing.
var ErrRunInProgress = errors.New("identical run in progress")

// HistoryStart is the first date loaded for every run. The AMA recursion and
// the moving averages depend on all earlier bars, so history before the
// run's Start is read and only the reported points are cut to [Start, End].
const HistoryStart = 19900101

const (
	runKeyPrefix = "run"
	runIDPrefix  = "runid"
	lockPrefix   = "lock"
)

// BacktestUseCase loads a run's tables, executes the pipeline and records
// the outcome. Identical parameter sets are served from the cache.
type BacktestUseCase struct {
	bars    domrepo.BarStore
	north   domrepo.NorthFlowStore
	runs    domrepo.RunStore
	pub     domrepo.SignalPublisher
	cache   cache.Service
	metrics domrepo.Metrics
	log     *applogger.Logger

	cacheTTL time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewBacktestUseCase wires the use case. runs and pub may be nil: the run is
// then kept in the cache only and nothing is published.
func NewBacktestUseCase(
	bars domrepo.BarStore,
	north domrepo.NorthFlowStore,
	runs domrepo.RunStore,
	pub domrepo.SignalPublisher,
	c cache.Service,
	m domrepo.Metrics,
	log *applogger.Logger,
) *BacktestUseCase {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	if m == nil {
		m = nopMetrics{}
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &BacktestUseCase{
		bars:     bars,
		north:    north,
		runs:     runs,
		pub:      pub,
		cache:    c,
		metrics:  m,
		log:      log,
		cacheTTL: 24 * time.Hour,
		timeout:  2 * time.Minute,
		now:      time.Now,
	}
}

// RunKey identifies a parameter set over one version of the stored bars.
func RunKey(p models.RunParams, v domrepo.DataVersion) (string, error) {
	return cache.HashJSON(struct {
		Params models.RunParams    `json:"params"`
		Data   domrepo.DataVersion `json:"data"`
	}{p, v})
}

// dataVersion asks the bar store for the version of the bars the run reads.
// Stores that cannot tell report the zero version.
func (uc *BacktestUseCase) dataVersion(ctx context.Context, p models.RunParams) (domrepo.DataVersion, error) {
	vs, ok := uc.bars.(domrepo.VersionedBarStore)
	if !ok {
		return domrepo.DataVersion{}, nil
	}
	daily := domrepo.Frequency(p.Frequency).IsDaily()
	return vs.BarVersion(ctx, p.Instrument, daily, HistoryStart, p.End)
}

// Run executes a backtest, or returns the cached run for the same parameters.
func (uc *BacktestUseCase) Run(ctx context.Context, p models.RunParams) (*models.Run, error) {
	if err := domrepo.ValidateParams(p); err != nil {
		uc.metrics.RecordError("configuration")
		return nil, err
	}
	version, err := uc.dataVersion(ctx, p)
	if err != nil {
		uc.fail(uc.log, p, StageLoad, err)
		return nil, models.WrapStage(StageLoad, err)
	}
	key, err := RunKey(p, version)
	if err != nil {
		return nil, fmt.Errorf("run key: %w", err)
	}
	log := uc.log.With(
		applogger.String("run_key", key[:12]),
		applogger.String("instrument", p.Instrument),
		applogger.String("variant", string(p.Variant)),
		applogger.Int("frequency", p.Frequency),
	)

	if run, err := cache.GetTyped[models.Run](ctx, uc.cache, cache.GenerateKey(runKeyPrefix, key)); err == nil {
		log.Debug("run served from cache", applogger.String("run_id", run.Summary.RunID))
		return &run, nil
	}

	lockKey := cache.GenerateKey(lockPrefix, key)
	ok, err := uc.cache.TryLock(ctx, lockKey, uc.timeout)
	if err != nil {
		return nil, fmt.Errorf("lock run: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	defer func() { _ = uc.cache.Unlock(context.WithoutCancel(ctx), lockKey) }()

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	started := uc.now()
	in, err := uc.loadInputs(ctx, p)
	if err != nil {
		uc.fail(log, p, StageLoad, err)
		return nil, models.WrapStage(StageLoad, err)
	}
	uc.metrics.RecordLatency("load", time.Since(started).Seconds())

	pipeStart := time.Now()
	res, err := RunPipeline(PipelineConfig{Params: p}, in)
	uc.metrics.RecordLatency("pipeline", time.Since(pipeStart).Seconds())
	if err != nil {
		uc.fail(log, p, "", err)
		return nil, err
	}

	run := &models.Run{Params: p, Summary: res.Summary, Points: res.Points}
	run.Summary.RunID = uuid.NewString()
	run.Summary.RunKey = key
	run.Summary.StartedAt = started
	run.Summary.DurationMs = uc.now().Sub(started).Milliseconds()
	log = log.With(applogger.String("run_id", run.Summary.RunID))

	uc.audit(log, res)

	if uc.runs != nil {
		if err := uc.runs.SaveRun(ctx, run); err != nil {
			uc.fail(log, p, "persist", err)
			return nil, fmt.Errorf("save run: %w", err)
		}
	}
	if err := uc.cache.Set(ctx, cache.GenerateKey(runKeyPrefix, key), run, uc.cacheTTL); err != nil {
		log.Warn("cache run failed", applogger.Error(err))
	}
	if err := uc.cache.Set(ctx, cache.GenerateKey(runIDPrefix, run.Summary.RunID), run, uc.cacheTTL); err != nil {
		log.Warn("cache run by id failed", applogger.Error(err))
	}
	if uc.pub != nil {
		if err := uc.pub.PublishRun(ctx, run); err != nil {
			uc.metrics.RecordError("publish")
			log.Error("publish run failed", applogger.Error(err))
		}
	}

	uc.metrics.RecordRun(p.Instrument, string(p.Variant), "ok")
	uc.metrics.RecordSignals(p.Instrument, models.SignalBuy.String(), run.Summary.Trades)
	uc.metrics.RecordSignals(p.Instrument, models.SignalSell.String(), run.Summary.Trades)
	log.Info("backtest finished",
		applogger.Int("bars", run.Summary.Bars),
		applogger.Int("factor_bars", run.Summary.FactorBars),
		applogger.Int("raw_buys", run.Summary.RawBuys),
		applogger.Int("raw_sells", run.Summary.RawSells),
		applogger.Int("trades", run.Summary.Trades),
		applogger.Int("final_pos", run.Summary.FinalPos),
		applogger.Int64("duration_ms", run.Summary.DurationMs),
	)
	return run, nil
}

// audit logs every silent change the run made to its data or signals.
func (uc *BacktestUseCase) audit(log *applogger.Logger, res *PipelineResult) {
	if len(res.GapDays) > 0 {
		log.Warn("zero-volume days dropped", applogger.Ints("dates", res.GapDays))
		uc.metrics.RecordCorrection("gap_day", len(res.GapDays))
	}
	if len(res.MissingFlow) > 0 {
		log.Warn("north-bound flow missing", applogger.Ints("dates", res.MissingFlow))
	}
	counts := make(map[string]int)
	for _, c := range res.Sanitized.Corrections {
		counts[c.Kind]++
		fields := []applogger.Field{
			applogger.String("kind", c.Kind),
			applogger.Int("index", c.Index),
			applogger.String("detail", c.Detail),
		}
		if c.Index >= 0 && c.Index < len(res.Bars) {
			fields = append(fields, applogger.Time("date_time", res.Bars[c.Index].DateTime))
		}
		log.Warn("signal corrected", fields...)
	}
	for kind, n := range counts {
		uc.metrics.RecordCorrection(kind, n)
	}
	if res.Sanitized.EndOfSeries != sanitizer.EndNone {
		log.Warn("end-of-series rule applied", applogger.String("rule", string(res.Sanitized.EndOfSeries)))
	}
}

func (uc *BacktestUseCase) fail(log *applogger.Logger, p models.RunParams, stage string, err error) {
	status := "error"
	switch {
	case errors.Is(err, models.ErrNoSignal):
		status = "no_signal"
	case errors.Is(err, models.ErrConfiguration):
		status = "configuration"
	}
	var se *models.StageError
	if stage == "" && errors.As(err, &se) {
		stage = se.Stage
	}
	uc.metrics.RecordRun(p.Instrument, string(p.Variant), status)
	uc.metrics.RecordError(status)
	log.Error("backtest failed", applogger.String("stage", stage), applogger.String("status", status), applogger.Error(err))
}

type loadItem struct {
	name string
	run  func(context.Context) error
}

// loadInputs fetches the tables a run needs concurrently.
func (uc *BacktestUseCase) loadInputs(ctx context.Context, p models.RunParams) (PipelineInput, error) {
	var in PipelineInput
	if uc.bars == nil {
		return in, errors.New("no bar store configured")
	}
	var items []loadItem
	if domrepo.Frequency(p.Frequency).IsDaily() {
		items = append(items, loadItem{"daily", func(ctx context.Context) (err error) {
			in.Daily, err = uc.bars.GetDailyBars(ctx, p.Instrument, HistoryStart, p.End)
			return err
		}})
	} else {
		items = append(items,
			loadItem{"minute", func(ctx context.Context) (err error) {
				in.Minute, err = uc.bars.GetMinuteBars(ctx, p.Instrument, HistoryStart, p.End)
				return err
			}},
			loadItem{"factors", func(ctx context.Context) (err error) {
				in.Factors, err = uc.bars.GetFactors(ctx, p.Instrument, HistoryStart, p.End)
				return err
			}},
		)
	}
	if p.Variant == models.VariantNorth {
		if uc.north == nil {
			return in, errors.New("north variant needs a north-flow store")
		}
		items = append(items,
			loadItem{"north_flows", func(ctx context.Context) (err error) {
				in.Flows, err = uc.north.GetNorthFlows(ctx, HistoryStart, p.End)
				return err
			}},
			loadItem{"component_quotes", func(ctx context.Context) (err error) {
				in.Quotes, err = uc.north.GetComponentQuotes(ctx, models.IndexCodes[p.Instrument], HistoryStart, p.End)
				return err
			}},
		)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errs := make(chan error, len(items))
	var wg sync.WaitGroup
	for _, it := range items {
		wg.Add(1)
		go func(it loadItem) {
			defer wg.Done()
			if err := it.run(ctx); err != nil {
				cancel()
				errs <- fmt.Errorf("%s: %w", it.name, err)
			}
		}(it)
	}
	wg.Wait()
	close(errs)
	if err, ok := <-errs; ok {
		return PipelineInput{}, err
	}
	return in, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordRun(string, string, string)  {}
func (nopMetrics) RecordSignals(string, string, int) {}
func (nopMetrics) RecordCorrection(string, int)      {}
func (nopMetrics) RecordError(string)                {}
func (nopMetrics) RecordLatency(string, float64)     {}
