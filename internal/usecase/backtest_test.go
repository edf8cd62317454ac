package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"PVResonance/internal/domain/models"
	domrepo "PVResonance/internal/domain/repository"
	"PVResonance/pkg/cache"
)

type fakeBars struct {
	mu    sync.Mutex
	loads int
	err   error
}

func (f *fakeBars) GetDailyBars(context.Context, string, int, int) ([]models.Bar, error) {
	f.mu.Lock()
	f.loads++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return dailyBars(), nil
}

func (f *fakeBars) GetMinuteBars(context.Context, string, int, int) ([]models.Bar, error) {
	return nil, nil
}

func (f *fakeBars) GetFactors(context.Context, string, int, int) ([]models.AdjFactor, error) {
	return nil, nil
}

type fakeRuns struct {
	mu   sync.Mutex
	runs map[string]*models.Run
}

func newFakeRuns() *fakeRuns { return &fakeRuns{runs: map[string]*models.Run{}} }

func (f *fakeRuns) SaveRun(_ context.Context, run *models.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.Summary.RunID] = run
	return nil
}

func (f *fakeRuns) GetRun(_ context.Context, id string) (*models.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, domrepo.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeRuns) Health(context.Context) error { return nil }

type fakePublisher struct {
	published []string
}

func (f *fakePublisher) PublishRun(_ context.Context, run *models.Run) error {
	f.published = append(f.published, run.Summary.RunID)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeMetrics struct {
	mu          sync.Mutex
	runs        map[string]int
	corrections map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{runs: map[string]int{}, corrections: map[string]int{}}
}

func (f *fakeMetrics) RecordRun(_, _, status string) {
	f.mu.Lock()
	f.runs[status]++
	f.mu.Unlock()
}
func (f *fakeMetrics) RecordSignals(string, string, int) {}
func (f *fakeMetrics) RecordCorrection(kind string, n int) {
	f.mu.Lock()
	f.corrections[kind] += n
	f.mu.Unlock()
}
func (f *fakeMetrics) RecordError(string)            {}
func (f *fakeMetrics) RecordLatency(string, float64) {}

type fixture struct {
	bars    *fakeBars
	runs    *fakeRuns
	pub     *fakePublisher
	metrics *fakeMetrics
	cache   *cache.MemoryCache
	uc      *BacktestUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bars:    &fakeBars{},
		runs:    newFakeRuns(),
		pub:     &fakePublisher{},
		metrics: newFakeMetrics(),
		cache:   cache.NewMemoryCache(),
	}
	t.Cleanup(func() { _ = f.cache.Close() })
	f.uc = NewBacktestUseCase(f.bars, nil, f.runs, f.pub, f.cache, f.metrics, nil)
	return f
}

func TestBacktestRunPersistsAndCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := baseParams(t)

	run, err := f.uc.Run(ctx, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Summary.RunID == "" || len(run.Summary.RunKey) != 64 {
		t.Fatalf("missing identifiers: %+v", run.Summary)
	}
	if _, err := f.runs.GetRun(ctx, run.Summary.RunID); err != nil {
		t.Fatalf("run not persisted: %v", err)
	}
	if len(f.pub.published) != 1 || f.pub.published[0] != run.Summary.RunID {
		t.Fatalf("run not published: %v", f.pub.published)
	}
	if f.metrics.runs["ok"] != 1 {
		t.Fatalf("expected one ok run, got %v", f.metrics.runs)
	}

	again, err := f.uc.Run(ctx, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Summary.RunID != run.Summary.RunID || f.bars.loads != 1 {
		t.Fatalf("expected cached run, got id=%s loads=%d", again.Summary.RunID, f.bars.loads)
	}
}

type versionedBars struct {
	fakeBars
	version domrepo.DataVersion
}

func (v *versionedBars) BarVersion(context.Context, string, bool, int, int) (domrepo.DataVersion, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version, nil
}

func TestBacktestRunCacheFollowsDataVersion(t *testing.T) {
	f := newFixture(t)
	bars := &versionedBars{version: domrepo.DataVersion{Rows: 18, LastDate: 20210318}}
	f.uc = NewBacktestUseCase(bars, nil, f.runs, f.pub, f.cache, f.metrics, nil)
	ctx := context.Background()
	p := baseParams(t)

	first, err := f.uc.Run(ctx, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	same, err := f.uc.Run(ctx, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if same.Summary.RunID != first.Summary.RunID || bars.loads != 1 {
		t.Fatalf("unchanged data should hit the cache: loads=%d", bars.loads)
	}

	bars.mu.Lock()
	bars.version = domrepo.DataVersion{Rows: 19, LastDate: 20210319}
	bars.mu.Unlock()
	fresh, err := f.uc.Run(ctx, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh.Summary.RunID == first.Summary.RunID || fresh.Summary.RunKey == first.Summary.RunKey || bars.loads != 2 {
		t.Fatalf("appended bars must not be served from the cache: loads=%d", bars.loads)
	}
}

func TestBacktestRunNoSignal(t *testing.T) {
	f := newFixture(t)
	p := baseParams(t)
	p.BuyThreshold = 1e9
	_, err := f.uc.Run(context.Background(), p)
	if !errors.Is(err, models.ErrNoSignal) {
		t.Fatalf("expected ErrNoSignal, got %v", err)
	}
	if len(f.runs.runs) != 0 || len(f.pub.published) != 0 {
		t.Fatalf("failed run must not be stored or published")
	}
	if f.metrics.runs["no_signal"] != 1 {
		t.Fatalf("expected no_signal status, got %v", f.metrics.runs)
	}
}

func TestBacktestRunConfigurationError(t *testing.T) {
	f := newFixture(t)
	p := baseParams(t)
	p.Frequency = 45
	if _, err := f.uc.Run(context.Background(), p); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if f.bars.loads != 0 {
		t.Fatalf("invalid parameters must not hit the store")
	}
}

func TestBacktestRunLoadError(t *testing.T) {
	f := newFixture(t)
	f.bars.err = errors.New("clickhouse down")
	_, err := f.uc.Run(context.Background(), baseParams(t))
	var se *models.StageError
	if !errors.As(err, &se) || se.Stage != StageLoad {
		t.Fatalf("expected load stage error, got %v", err)
	}
}

func TestBacktestRunInProgress(t *testing.T) {
	f := newFixture(t)
	p := baseParams(t)
	key, err := RunKey(p, domrepo.DataVersion{})
	if err != nil {
		t.Fatalf("run key: %v", err)
	}
	_, _ = f.cache.TryLock(context.Background(), cache.GenerateKey(lockPrefix, key), time.Minute)
	if _, err := f.uc.Run(context.Background(), p); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestReportFromStoreAndCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run, err := f.uc.Run(ctx, baseParams(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// store only
	ru := NewReportUseCase(f.runs, nil, nil)
	rep, err := ru.Report(ctx, models.ReportRequest{RunID: run.Summary.RunID, Start: 20210301, End: 20210331})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rep.Points) != len(run.Points) || rep.Buys != run.Summary.Trades {
		t.Fatalf("unexpected report: points=%d buys=%d", len(rep.Points), rep.Buys)
	}

	// cache only
	ru = NewReportUseCase(nil, f.cache, nil)
	if _, err := ru.GetRun(ctx, run.Summary.RunID); err != nil {
		t.Fatalf("expected cached run: %v", err)
	}
	if _, err := ru.GetRun(ctx, "missing"); !errors.Is(err, domrepo.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}

	var buf bytes.Buffer
	if err := ru.WriteCSV(ctx, models.ReportRequest{RunID: run.Summary.RunID, Start: 20210301, End: 20210305}, &buf); err != nil {
		t.Fatalf("csv: %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 6 {
		t.Fatalf("expected header and 5 rows, got %d lines", n)
	}
}

func TestReportStreamChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run, err := f.uc.Run(ctx, baseParams(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ru := NewReportUseCase(f.runs, f.cache, nil)
	var sizes []int
	err = ru.Stream(ctx, models.ReportStreamRequest{RunID: run.Summary.RunID, Start: 20210301, End: 20210331, Chunk: 5},
		func(pts []models.SignalPoint) error {
			sizes = append(sizes, len(pts))
			return nil
		})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(sizes) != 4 || sizes[0] != 5 || sizes[3] != 3 {
		t.Fatalf("unexpected chunk sizes %v", sizes)
	}
}
