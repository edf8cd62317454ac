package api

import (
	"context"
	"errors"

	"PVResonance/internal/domain/models"
	domrepo "PVResonance/internal/domain/repository"
	"PVResonance/internal/usecase"
	xhttp "PVResonance/pkg/http"
)

// toAppError maps domain errors to HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var ce *models.ConfigurationError
	var ns *models.NoSignalError
	var se *models.StageError
	stage := ""
	if errors.As(err, &se) {
		stage = se.Stage
	}

	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &ce):
		appErr = xhttp.ConfigurationError(ce.Field, ce.Error())
		if ce.Value != "" {
			appErr.WithParam("value", ce.Value)
		}
	case errors.As(err, &ns):
		appErr = xhttp.NoSignalError(ns.Error()).
			WithParam("missing", ns.Missing.String()).
			WithParam("thresholds", ns.Thresholds)
	case errors.Is(err, domrepo.ErrRunNotFound):
		appErr = xhttp.NotFoundError("run not found")
	case errors.Is(err, usecase.ErrRunInProgress):
		appErr = xhttp.ConflictError("an identical run is in progress")
	case errors.Is(err, context.DeadlineExceeded):
		appErr = xhttp.TimeoutError("run timed out")
	default:
		appErr = xhttp.InternalError("backtest failed")
	}
	if stage != "" {
		appErr.WithParam("stage", stage)
	}
	return appErr.WithError(err)
}
