package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"PVResonance/internal/domain/models"
	domrepo "PVResonance/internal/domain/repository"
	"PVResonance/internal/service/ratelimit"
	"PVResonance/internal/usecase"
	xhttp "PVResonance/pkg/http"
	applogger "PVResonance/pkg/logger"

	"github.com/labstack/echo/v4"
)

// BacktestHandler serves run submission, reports and health.
type BacktestHandler struct {
	log      *applogger.Logger
	backtest *usecase.BacktestUseCase
	reports  *usecase.ReportUseCase
	runs     domrepo.RunStore
	limiter  *ratelimit.Limiter
}

func NewBacktestHandler(
	log *applogger.Logger,
	backtest *usecase.BacktestUseCase,
	reports *usecase.ReportUseCase,
	runs domrepo.RunStore,
	limiter *ratelimit.Limiter,
) *BacktestHandler {
	if log == nil {
		log = applogger.Nop()
	}
	return &BacktestHandler{log: log, backtest: backtest, reports: reports, runs: runs, limiter: limiter}
}

func (h *BacktestHandler) RegisterRoutes(e *echo.Echo) {
	var mw []echo.MiddlewareFunc
	if h.limiter != nil {
		mw = append(mw, h.limiter.Middleware())
	}
	g := e.Group("/api")
	g.POST("/backtest", h.Backtest, mw...)
	g.GET("/runs/:id", h.Summary)
	g.GET("/report", h.Report)
	g.GET("/report/csv", h.ReportCSV)
	e.GET("/healthz", h.Health)
}

// Backtest runs the posted parameters and returns the run summary.
func (h *BacktestHandler) Backtest(c echo.Context) error {
	req := &models.RunParams{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	run, err := h.backtest.Run(c.Request().Context(), *req)
	if err != nil {
		h.log.Warn("backtest rejected",
			applogger.String("instrument", req.Instrument),
			applogger.String("variant", string(req.Variant)),
			applogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.CreatedResponse(c, run.Summary)
}

// Summary returns the summary of a stored run.
func (h *BacktestHandler) Summary(c echo.Context) error {
	run, err := h.reports.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, run.Summary)
}

// Report renders a stored run over [start, end].
func (h *BacktestHandler) Report(c echo.Context) error {
	req := &models.ReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rep, err := h.reports.Report(c.Request().Context(), *req)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.SuccessResponse(c, rep)
}

// ReportCSV downloads the points of a stored run over [start, end].
func (h *BacktestHandler) ReportCSV(c echo.Context) error {
	req := &models.ReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var buf bytes.Buffer
	if err := h.reports.WriteCSV(c.Request().Context(), *req, &buf); err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	name := fmt.Sprintf("%s_%d_%d.csv", req.RunID, req.Start, req.End)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Health reports whether the run store answers.
func (h *BacktestHandler) Health(c echo.Context) error {
	status := map[string]string{"status": "ok"}
	if h.runs != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.runs.Health(ctx); err != nil {
			h.log.Warn("health check failed", applogger.Error(err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "run_store": err.Error()})
		}
		status["run_store"] = "ok"
	}
	return c.JSON(http.StatusOK, status)
}
