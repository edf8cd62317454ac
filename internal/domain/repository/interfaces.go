package repository

import (
	"context"
	"errors"

	"PVResonance/internal/domain/models"
)

// ErrRunNotFound is returned by RunStore when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// BarStore provides read-only access to instrument bars and adjustment factors.
// Dates are YYYYMMDD and both bounds are inclusive.
type BarStore interface {
	GetDailyBars(ctx context.Context, instrument string, from, to int) ([]models.Bar, error)
	GetMinuteBars(ctx context.Context, instrument string, from, to int) ([]models.Bar, error)
	GetFactors(ctx context.Context, instrument string, from, to int) ([]models.AdjFactor, error)
}

// DataVersion summarizes the bars a run reads. It changes when bars are
// appended or rewritten, so it is part of the run cache key.
type DataVersion struct {
	Rows     int64 `json:"rows"`
	LastDate int   `json:"last_date"`
}

// VersionedBarStore is a BarStore that can report the DataVersion of a bar
// range without reading the bars.
type VersionedBarStore interface {
	BarVersion(ctx context.Context, instrument string, daily bool, from, to int) (DataVersion, error)
}

// NorthFlowStore provides the inputs of the north-bound flow factor.
type NorthFlowStore interface {
	GetNorthFlows(ctx context.Context, from, to int) ([]models.NorthFlow, error)
	GetComponentQuotes(ctx context.Context, indexCode string, from, to int) ([]models.ComponentQuote, error)
}

// RunStore persists completed runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	Health(ctx context.Context) error
}

// SignalPublisher emits executed signals of a run to downstream consumers.
type SignalPublisher interface {
	PublishRun(ctx context.Context, run *models.Run) error
	Close() error
}

type Metrics interface {
	RecordRun(instrument, variant, status string)
	RecordSignals(instrument, side string, n int)
	RecordCorrection(kind string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
