package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/commitd/internal/errs"
	"github.com/fyrsmithlabs/commitd/internal/logging"
	"github.com/fyrsmithlabs/commitd/internal/patterns"
	"github.com/fyrsmithlabs/commitd/internal/tasks"
	"github.com/fyrsmithlabs/commitd/internal/workflow"
)

// CallProcessor runs the pipeline for one call.
type CallProcessor interface {
	ProcessCall(ctx context.Context, callID string) (*workflow.Result, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides HTTP endpoints for commitd.
type Server struct {
	echo      *echo.Echo
	processor CallProcessor
	tracker   *tasks.Tracker
	catalog   *patterns.Catalog
	logger    *logging.Logger
	config    *Config
}

// NewServer creates the HTTP server.
func NewServer(processor CallProcessor, tracker *tasks.Tracker, catalog *patterns.Catalog, logger *logging.Logger, cfg *Config) (*Server, error) {
	if processor == nil {
		return nil, fmt.Errorf("call processor cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8085,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		processor: processor,
		tracker:   tracker,
		catalog:   catalog,
		logger:    logger,
		config:    cfg,
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	s.echo.POST("/webhooks/calls", s.handleCallWebhook)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/tasks/:id", s.handleGetTask)
	v1.GET("/patterns/stats", s.handlePatternStats)
}

// CallWebhookRequest is the request body for POST /webhooks/calls.
type CallWebhookRequest struct {
	CallID string `json:"call_id"`
	Event  string `json:"event,omitempty"`
}

// CallWebhookResponse is the response body for POST /webhooks/calls.
type CallWebhookResponse struct {
	Status string `json:"status"`
	CallID string `json:"call_id"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleCallWebhook accepts a call-completed event and processes the call in
// the background. Delivery is acknowledged immediately with 202 so the
// webhook sender never times out on a slow pipeline run.
func (s *Server) handleCallWebhook(c echo.Context) error {
	var req CallWebhookRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid call webhook", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.CallID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "call_id field is required")
	}

	go func() {
		// Detached from the request; the orchestrator applies its own
		// call timeout.
		if _, err := s.processor.ProcessCall(context.Background(), req.CallID); err != nil {
			s.logger.Error("webhook call processing failed",
				zap.String("call_id", req.CallID),
				zap.Error(err),
			)
		}
	}()

	return c.JSON(http.StatusAccepted, CallWebhookResponse{
		Status: "accepted",
		CallID: req.CallID,
	})
}

// handleGetTask returns a task's status record and history.
func (s *Server) handleGetTask(c echo.Context) error {
	if s.tracker == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "task tracking not enabled")
	}
	rec, err := s.tracker.Get(c.Param("id"))
	if err != nil {
		var nf *errs.TaskNotFoundError
		if errors.As(err, &nf) {
			return echo.NewHTTPError(http.StatusNotFound, nf.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "task lookup failed")
	}
	return c.JSON(http.StatusOK, rec)
}

// PatternStatsResponse is the response body for GET /api/v1/patterns/stats.
type PatternStatsResponse struct {
	Underperforming []string `json:"underperforming"`
}

func (s *Server) handlePatternStats(c echo.Context) error {
	if s.catalog == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "pattern catalog not enabled")
	}
	return c.JSON(http.StatusOK, PatternStatsResponse{
		Underperforming: s.catalog.DefaultUnderperforming(),
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
