package kafka

import (
	"context"
	"errors"
	"testing"

	"PVResonance/internal/domain/models"
	"PVResonance/internal/usecase"
	pkgkafka "PVResonance/pkg/kafka"
	applogger "PVResonance/pkg/logger"
)

type runnerFunc func(context.Context, models.RunParams) (*models.Run, error)

func (f runnerFunc) Run(ctx context.Context, p models.RunParams) (*models.Run, error) {
	return f(ctx, p)
}

func TestBacktestRequestHandler(t *testing.T) {
	var got models.RunParams
	ok := runnerFunc(func(_ context.Context, p models.RunParams) (*models.Run, error) {
		got = p
		return &models.Run{Summary: models.RunSummary{RunID: "r1"}}, nil
	})
	h := NewBacktestRequestHandler("pvr.backtest.requests", ok, applogger.Nop())
	if h.Topic() != "pvr.backtest.requests" {
		t.Fatalf("topic = %s", h.Topic())
	}
	if err := h.Handle(context.Background(), []byte(`{"instrument":"IF","variant":"v2"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got.Instrument != "IF" || got.Variant != models.VariantV2 || got.Frequency != 240 || got.LongWindow != 100 {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

func TestBacktestRequestHandlerErrors(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		err       error
		permanent bool
	}{
		{"malformed json", `{`, nil, true},
		{"configuration", `{}`, models.NewConfigurationError("frequency", "7", "bad"), true},
		{"no signal", `{}`, &models.NoSignalError{Missing: models.SignalSell}, true},
		{"in progress", `{}`, usecase.ErrRunInProgress, false},
		{"store down", `{}`, errors.New("clickhouse unavailable"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewBacktestRequestHandler("req", runnerFunc(func(context.Context, models.RunParams) (*models.Run, error) {
				return nil, tc.err
			}), nil)
			err := h.Handle(context.Background(), []byte(tc.body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if pkgkafka.IsPermanent(err) != tc.permanent {
				t.Fatalf("permanent = %v, want %v (%v)", pkgkafka.IsPermanent(err), tc.permanent, err)
			}
		})
	}
}
