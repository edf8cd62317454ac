package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"PVResonance/internal/domain/models"
	domrepo "PVResonance/internal/domain/repository"
	"PVResonance/internal/services/report"
	"PVResonance/pkg/cache"
	applogger "PVResonance/pkg/logger"
)

// ReportUseCase renders stored runs.
type ReportUseCase struct {
	runs  domrepo.RunStore
	cache cache.Service
	log   *applogger.Logger
}

func NewReportUseCase(runs domrepo.RunStore, c cache.Service, log *applogger.Logger) *ReportUseCase {
	if log == nil {
		log = applogger.Nop()
	}
	return &ReportUseCase{runs: runs, cache: c, log: log}
}

// GetRun looks a run up in the cache first and then in the run store.
func (uc *ReportUseCase) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	if runID == "" {
		return nil, models.NewConfigurationError("run_id", "", "required")
	}
	if uc.cache != nil {
		if run, err := cache.GetTyped[models.Run](ctx, uc.cache, cache.GenerateKey(runIDPrefix, runID)); err == nil {
			return &run, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			uc.log.Warn("run cache read failed", applogger.String("run_id", runID), applogger.Error(err))
		}
	}
	if uc.runs == nil {
		return nil, domrepo.ErrRunNotFound
	}
	run, err := uc.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Report renders a run over the requested date range.
func (uc *ReportUseCase) Report(ctx context.Context, req models.ReportRequest) (*models.Report, error) {
	run, err := uc.GetRun(ctx, req.RunID)
	if err != nil {
		return nil, err
	}
	rep, err := report.Build(run.Summary.RunID, run.Points, req.Start, req.End)
	if err != nil {
		return nil, models.WrapStage(StageReport, err)
	}
	return rep, nil
}

// WriteCSV writes the run's points in range as CSV.
func (uc *ReportUseCase) WriteCSV(ctx context.Context, req models.ReportRequest, w io.Writer) error {
	run, err := uc.GetRun(ctx, req.RunID)
	if err != nil {
		return err
	}
	if req.End < req.Start {
		return models.NewConfigurationError("end", fmt.Sprint(req.End), "end date precedes start date")
	}
	return report.WriteCSV(w, report.Filter(run.Points, req.Start, req.End))
}

// Stream hands the run's points in range to emit in chunks of req.Chunk.
// It stops at the first emit error or when ctx is done.
func (uc *ReportUseCase) Stream(ctx context.Context, req models.ReportStreamRequest, emit func([]models.SignalPoint) error) error {
	run, err := uc.GetRun(ctx, req.RunID)
	if err != nil {
		return err
	}
	points := report.Filter(run.Points, req.Start, req.End)
	chunk := req.Chunk
	if chunk <= 0 {
		chunk = 500
	}
	for start := 0; start < len(points); start += chunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(points[start:min(start+chunk, len(points))]); err != nil {
			return err
		}
	}
	return nil
}
