package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"PVResonance/internal/domain/models"
	domrepo "PVResonance/internal/domain/repository"
	"PVResonance/internal/service/ratelimit"
	"PVResonance/internal/usecase"
	applogger "PVResonance/pkg/logger"

	"github.com/labstack/echo/v4"
)

var volumes = []float64{100, 120, 90, 110, 100, 95, 105, 300, 400, 500, 100, 50, 40, 30, 60, 45, 35, 20}

type stubBars struct{}

func (stubBars) GetDailyBars(context.Context, string, int, int) ([]models.Bar, error) {
	out := make([]models.Bar, len(volumes))
	for i, v := range volumes {
		px := 5000 + float64(i*10)
		out[i] = models.Bar{Date: 20210301 + i, Open: px, High: px + 5, Low: px - 5, Close: px + 2, Volume: v, Factor: 1}
	}
	return out, nil
}

func (stubBars) GetMinuteBars(context.Context, string, int, int) ([]models.Bar, error) {
	return nil, nil
}

func (stubBars) GetFactors(context.Context, string, int, int) ([]models.AdjFactor, error) {
	return nil, nil
}

type memRuns struct {
	mu   sync.Mutex
	runs map[string]*models.Run
}

func (m *memRuns) SaveRun(_ context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.Summary.RunID] = run
	return nil
}

func (m *memRuns) GetRun(_ context.Context, id string) (*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[id]; ok {
		return run, nil
	}
	return nil, domrepo.ErrRunNotFound
}

func (m *memRuns) Health(context.Context) error { return nil }

const runBody = `{"instrument":"IC","frequency":240,"variant":"v1",
"ama_short_window":2,"ama_long_window":5,"ma_window":2,"buy_threshold":1.0,
"start":20210301,"end":20210318}`

func newTestEcho(t *testing.T, limiter *ratelimit.Limiter) *echo.Echo {
	t.Helper()
	runs := &memRuns{runs: map[string]*models.Run{}}
	bt := usecase.NewBacktestUseCase(stubBars{}, nil, runs, nil, nil, nil, applogger.Nop())
	rep := usecase.NewReportUseCase(runs, nil, applogger.Nop())
	e := echo.New()
	NewBacktestHandler(applogger.Nop(), bt, rep, runs, limiter).RegisterRoutes(e)
	NewReportStreamHandler(applogger.Nop(), rep).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func TestBacktestThenReport(t *testing.T) {
	e := newTestEcho(t, nil)

	rec := do(e, http.MethodPost, "/api/backtest", runBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("backtest status = %d body=%s", rec.Code, rec.Body.String())
	}
	var sum models.RunSummary
	decode(t, rec, &sum)
	if sum.RunID == "" || sum.Bars != len(volumes) || sum.Trades == 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	rec = do(e, http.MethodGet, "/api/report?run_id="+sum.RunID+"&start=20210301&end=20210318", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d body=%s", rec.Code, rec.Body.String())
	}
	var rep models.Report
	decode(t, rec, &rep)
	if len(rep.Points) != len(volumes) || rep.Buys == 0 || len(rep.Markers) != rep.Buys+rep.Sells {
		t.Fatalf("unexpected report: points=%d buys=%d markers=%d", len(rep.Points), rep.Buys, len(rep.Markers))
	}

	rec = do(e, http.MethodGet, "/api/report/csv?run_id="+sum.RunID+"&start=20210301&end=20210305", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "date_time,date,") {
		t.Fatalf("csv status = %d body=%s", rec.Code, rec.Body.String())
	}
	if n := strings.Count(rec.Body.String(), "\n"); n != 6 {
		t.Fatalf("csv lines = %d, want header plus 5 rows", n)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, sum.RunID) {
		t.Fatalf("content disposition = %q", cd)
	}

	rec = do(e, http.MethodGet, "/api/runs/"+sum.RunID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
}

func TestBacktestErrors(t *testing.T) {
	e := newTestEcho(t, nil)
	cases := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{"unknown variant", http.MethodPost, "/api/backtest", `{"variant":"v9"}`, http.StatusBadRequest, "ERR_ONEOF"},
		{"frequency does not divide session", http.MethodPost, "/api/backtest", `{"frequency":7}`, http.StatusBadRequest, "ERR_CONFIGURATION"},
		{"north needs daily bars", http.MethodPost, "/api/backtest", `{"variant":"north","frequency":30}`, http.StatusBadRequest, "ERR_CONFIGURATION"},
		{"no signal", http.MethodPost, "/api/backtest", strings.Replace(runBody, `"buy_threshold":1.0`, `"buy_threshold":50`, 1), http.StatusUnprocessableEntity, "ERR_NO_SIGNAL"},
		{"missing run", http.MethodGet, "/api/report?run_id=nope", "", http.StatusNotFound, "ERR_NOT_FOUND"},
		{"missing run id", http.MethodGet, "/api/report", "", http.StatusBadRequest, "ERR_REQUIRED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(e, tc.method, tc.target, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			var errs []struct {
				Code string `json:"code"`
			}
			decode(t, rec, &errs)
			if len(errs) == 0 || errs[0].Code != tc.code {
				t.Fatalf("codes = %+v, want %s", errs, tc.code)
			}
		})
	}
}

func TestBacktestRateLimited(t *testing.T) {
	e := newTestEcho(t, ratelimit.New(1, 0))
	if rec := do(e, http.MethodPost, "/api/backtest", runBody); rec.Code != http.StatusCreated {
		t.Fatalf("first status = %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/api/backtest", runBody); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	e := newTestEcho(t, nil)
	rec := do(e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"run_store":"ok"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}
