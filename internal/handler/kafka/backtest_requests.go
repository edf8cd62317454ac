package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"PVResonance/internal/domain/models"
	"PVResonance/internal/usecase"
	pkgkafka "PVResonance/pkg/kafka"
	applogger "PVResonance/pkg/logger"

	"github.com/creasty/defaults"
)

// Runner executes a backtest.
type Runner interface {
	Run(ctx context.Context, p models.RunParams) (*models.Run, error)
}

// BacktestRequestHandler runs backtests submitted as JSON run parameters.
// Results reach consumers through the run and signal topics.
type BacktestRequestHandler struct {
	topic  string
	runner Runner
	log    *applogger.Logger
}

var _ pkgkafka.MessageHandler = (*BacktestRequestHandler)(nil)

func NewBacktestRequestHandler(topic string, runner Runner, log *applogger.Logger) *BacktestRequestHandler {
	if log == nil {
		log = applogger.Nop()
	}
	return &BacktestRequestHandler{topic: topic, runner: runner, log: log}
}

func (h *BacktestRequestHandler) Topic() string { return h.topic }

// Handle decodes and runs one request. Malformed parameters and series
// without signals are permanent failures; a concurrent identical run is
// retried.
func (h *BacktestRequestHandler) Handle(ctx context.Context, data []byte) error {
	var p models.RunParams
	if err := json.Unmarshal(data, &p); err != nil {
		return pkgkafka.Permanent(fmt.Errorf("decode run params: %w", err))
	}
	if err := defaults.Set(&p); err != nil {
		return pkgkafka.Permanent(fmt.Errorf("apply defaults: %w", err))
	}

	run, err := h.runner.Run(ctx, p)
	switch {
	case err == nil:
		h.log.Info("queued backtest finished",
			applogger.String("run_id", run.Summary.RunID),
			applogger.String("instrument", p.Instrument),
			applogger.Int("trades", run.Summary.Trades))
		return nil
	case errors.Is(err, models.ErrConfiguration), errors.Is(err, models.ErrNoSignal):
		return pkgkafka.Permanent(err)
	case errors.Is(err, usecase.ErrRunInProgress):
		return err
	default:
		return fmt.Errorf("run %s/%s: %w", p.Instrument, p.Variant, err)
	}
}
