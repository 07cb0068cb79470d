// Package server exposes a board over HTTP: JSON endpoints for every board
// operation, a server-sent event stream of state changes and a small drag
// and drop page.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nick-dorsch/swimlane/embed/web"
	"github.com/nick-dorsch/swimlane/internal/board"
	"github.com/nick-dorsch/swimlane/internal/drag"
	"github.com/nick-dorsch/swimlane/internal/metrics"
	"github.com/nick-dorsch/swimlane/pkg/models"
)

const keepAliveInterval = 30 * time.Second

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGatherer enables GET /metrics for the given registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

type Server struct {
	board    board.Controller
	echo     *echo.Echo
	logger   *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

func NewServer(ctrl board.Controller, opts ...Option) *Server {
	s := &Server{
		board:  ctrl,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLog)

	s.echo = e
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")
	api.GET("/board", s.handleBoard)
	api.GET("/stream", s.handleStream)
	api.POST("/reset", s.handleReset)
	api.POST("/stages/:stage/tasks", s.handleAddTask)
	api.DELETE("/stages/:stage/tasks/:id", s.handleDeleteTask)
	api.POST("/stages/:stage/tasks/:id/drag", s.handleDragStart)
	api.POST("/stages/:stage/drop", s.handleDrop)

	if s.gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	s.echo.GET("/*", echo.WrapHandler(http.FileServer(http.FS(web.Assets))))
}

func (s *Server) requestLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		s.logger.Debug("http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		return err
	}
}

// ServeHTTP lets tests and embedding callers drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting http server", zap.String("addr", addr))
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

type HealthResponse struct {
	Status string `json:"status"`
}

type AddTaskRequest struct {
	Title string `json:"title"`
}

type DragResponse struct {
	Payload string `json:"payload"`
	Effect  string `json:"effect"`
}

type DropRequest struct {
	Payload string `json:"payload"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleBoard(c echo.Context) error {
	return c.JSON(http.StatusOK, s.board.State())
}

func (s *Server) handleAddTask(c echo.Context) error {
	stage, err := stageParam(c)
	if err != nil {
		return err
	}
	var req AddTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	task, ok := s.board.Add(stage, req.Title)
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusCreated, task)
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	stage, err := stageParam(c)
	if err != nil {
		return err
	}
	s.board.Remove(stage, c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDragStart(c echo.Context) error {
	stage, err := stageParam(c)
	if err != nil {
		return err
	}
	payload, err := drag.Start(c.Param("id"), stage)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, DragResponse{Payload: payload, Effect: drag.EffectMove})
}

// handleDrop answers 202 when the payload is ignored so that browsers treat
// a bad drop as a completed gesture rather than an error.
func (s *Server) handleDrop(c echo.Context) error {
	stage, err := stageParam(c)
	if err != nil {
		return err
	}
	var req DropRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if !drag.Drop(s.board, req.Payload, stage) {
		s.metrics.DropIgnored()
		s.logger.Debug("ignoring drop with malformed payload", zap.String("stage", string(stage)))
		return c.NoContent(http.StatusAccepted)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReset(c echo.Context) error {
	if err := s.board.Reset(c.Request().Context()); err != nil {
		s.logger.Warn("reset failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "reset failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// handleStream sends the full board once on connect and again after every
// change until the client goes away.
func (s *Server) handleStream(c echo.Context) error {
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}

	changes, stop := s.board.Watch()
	defer stop()

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().WriteHeader(http.StatusOK)

	if err := s.writeState(c); err != nil {
		return nil
	}
	flusher.Flush()

	ctx := c.Request().Context()
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := s.writeState(c); err != nil {
				return nil
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := c.Response().Write([]byte(":keepalive\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Server) writeState(c echo.Context) error {
	data, err := json.Marshal(s.board.State())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.Response(), "data: %s\n\n", data)
	return err
}

func stageParam(c echo.Context) (models.Stage, error) {
	stage, err := models.ParseStage(c.Param("stage"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return stage, nil
}
