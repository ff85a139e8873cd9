package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	apierrors "github.com/narvanalabs/codebuild-runner/internal/api/errors"
	"github.com/narvanalabs/codebuild-runner/internal/api/middleware"
	"github.com/narvanalabs/codebuild-runner/internal/logs"
	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// Stream tuning.
const (
	backlogLines = 500
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// LineSubscriber delivers log lines published by runners in other processes.
type LineSubscriber interface {
	SubscribeLines(ctx context.Context, buildID string) (<-chan string, error)
}

// LogStreamHandler streams build log lines over a websocket.
type LogStreamHandler struct {
	reports  *ReportHandler
	broker   *logs.Broker
	lines    LineSubscriber
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewLogStreamHandler creates a log stream handler. Lines come from the
// in-process broker when set, otherwise from lines.
func NewLogStreamHandler(reports *ReportHandler, broker *logs.Broker, lines LineSubscriber, logger *slog.Logger) *LogStreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogStreamHandler{
		reports: reports,
		broker:  broker,
		lines:   lines,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Stream handles GET /v1/reports/{buildID}/logs/stream. Each websocket text
// message is one JSON encoded models.LogLine.
func (h *LogStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	buildID := chi.URLParam(r, "buildID")
	if buildID == "" {
		writeError(w, r, apierrors.InvalidRequest("Build ID is required"))
		return
	}
	if h.broker == nil && h.lines == nil {
		writeError(w, r, apierrors.Unavailable("Log streaming is not configured"))
		return
	}
	if !h.authorize(w, r, buildID) {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	// Reads only detect the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Info("log stream started", "build_id", buildID)
	defer h.logger.Info("log stream closed", "build_id", buildID)

	if h.broker != nil {
		h.streamBroker(ctx, conn, buildID)
		return
	}
	h.streamSubscriber(ctx, conn, buildID)
}

// authorize checks the caller may read buildID. Without a report backend
// the project is unknown and only unscoped tokens are accepted.
func (h *LogStreamHandler) authorize(w http.ResponseWriter, r *http.Request, buildID string) bool {
	if h.reports != nil && h.reports.hasBackend() {
		if _, apiErr := h.reports.lookup(r.Context(), buildID); apiErr != nil {
			writeError(w, r, apiErr)
			return false
		}
		return true
	}
	if claims := middleware.GetClaims(r.Context()); claims != nil && claims.Project != "" {
		writeError(w, r, apierrors.Forbidden("Access denied"))
		return false
	}
	return true
}

func (h *LogStreamHandler) streamBroker(ctx context.Context, conn *websocket.Conn, buildID string) {
	sub := h.broker.Subscribe(buildID)
	defer h.broker.Unsubscribe(sub)

	last := -1
	for _, line := range h.broker.Recent(buildID, backlogLines) {
		if err := h.send(conn, line); err != nil {
			return
		}
		last = line.Sequence
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case line, ok := <-sub.Ch:
			if !ok {
				return
			}
			// The backlog may already hold lines published after Subscribe.
			if line.Sequence <= last {
				continue
			}
			if err := h.send(conn, line); err != nil {
				return
			}
			last = line.Sequence
		}
	}
}

// streamSubscriber forwards lines from another process. Sequences count
// from the start of this stream.
func (h *LogStreamHandler) streamSubscriber(ctx context.Context, conn *websocket.Conn, buildID string) {
	ch, err := h.lines.SubscribeLines(ctx, buildID)
	if err != nil {
		h.logger.Error("failed to subscribe to log lines", "error", err, "build_id", buildID)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeTimeout))
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			line := &models.LogLine{BuildID: buildID, Sequence: seq, Message: msg, Timestamp: time.Now()}
			if err := h.send(conn, line); err != nil {
				return
			}
			seq++
		}
	}
}

func (h *LogStreamHandler) send(conn *websocket.Conn, line *models.LogLine) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(line); err != nil {
		h.logger.Debug("log stream write failed", "error", err, "build_id", line.BuildID)
		return err
	}
	return nil
}
