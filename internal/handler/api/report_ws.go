package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"PVResonance/internal/domain/models"
	"PVResonance/internal/usecase"
	xhttp "PVResonance/pkg/http"
	applogger "PVResonance/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const wsWriteWait = 10 * time.Second

// StreamFrame is one WebSocket message of a report stream. A stream is a
// sequence of "points" frames followed by one "report" frame, or an "error"
// frame.
type StreamFrame struct {
	Type   string               `json:"type"`
	Seq    int                  `json:"seq,omitempty"`
	Points []models.SignalPoint `json:"points,omitempty"`
	Report *models.Report       `json:"report,omitempty"`
	Error  *xhttp.AppError      `json:"error,omitempty"`
}

// ReportStreamHandler streams stored runs over WebSocket.
type ReportStreamHandler struct {
	log      *applogger.Logger
	reports  *usecase.ReportUseCase
	upgrader websocket.Upgrader
}

func NewReportStreamHandler(log *applogger.Logger, reports *usecase.ReportUseCase) *ReportStreamHandler {
	if log == nil {
		log = applogger.Nop()
	}
	return &ReportStreamHandler{
		log:     log,
		reports: reports,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *ReportStreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/report", h.Stream)
}

// Stream validates the query before upgrading, then sends points in chunks
// and closes with the rendered report. Markers and round trips are in the
// final frame.
func (h *ReportStreamHandler) Stream(c echo.Context) error {
	req := &models.ReportStreamRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	// the client sends nothing; a read error means it went away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log := h.log.With(applogger.String("run_id", req.RunID))
	seq := 0
	err = h.reports.Stream(ctx, *req, func(points []models.SignalPoint) error {
		seq++
		return writeFrame(conn, StreamFrame{Type: "points", Seq: seq, Points: points})
	})
	if err == nil {
		var rep *models.Report
		rep, err = h.reports.Report(ctx, models.ReportRequest{RunID: req.RunID, Start: req.Start, End: req.End})
		if err == nil {
			rep.Points = nil
			err = writeFrame(conn, StreamFrame{Type: "report", Seq: seq + 1, Report: rep})
		}
	}

	closeCode, closeText := websocket.CloseNormalClosure, ""
	if err != nil {
		if errors.Is(err, context.Canceled) || websocket.IsUnexpectedCloseError(err) {
			log.Info("report stream aborted by client", applogger.Int("frames", seq))
			return nil
		}
		log.Warn("report stream failed", applogger.Int("frames", seq), applogger.Error(err))
		_ = writeFrame(conn, StreamFrame{Type: "error", Error: toAppError(err)})
		closeCode, closeText = websocket.CloseInternalServerErr, "stream failed"
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCode, closeText), time.Now().Add(wsWriteWait))
	return nil
}

func writeFrame(conn *websocket.Conn, f StreamFrame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(f)
}
