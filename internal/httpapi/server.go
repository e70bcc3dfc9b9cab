// Package httpapi serves the webhook ingestion endpoint and the read-only incident API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"horse.fit/tariqi/internal/db"
	"horse.fit/tariqi/internal/globaltime"
	"horse.fit/tariqi/internal/metrics"
)

const (
	defaultLatestLimit = 5
	defaultSearchLimit = 3
	maxQueryLimit      = 50
	maxWebhookBody     = "1M"
)

type Options struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
	WebhookSecretHash string
}

type incidentStore interface {
	Ping(ctx context.Context) error
	LatestIncidents(ctx context.Context, limit int) ([]db.IncidentRow, error)
	SearchIncidentsByLocation(ctx context.Context, query string, limit int) ([]db.IncidentRow, error)
	IncidentSources(ctx context.Context, incidentID string) ([]db.IncidentSourceRef, error)
}

type Server struct {
	pool      *db.Pool
	incidents incidentStore
	ingester  updateIngester
	logger    zerolog.Logger
	opts      Options
}

func NewServer(pool *db.Pool, ingester updateIngester, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8080
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		pool:     pool,
		ingester: ingester,
		logger:   logger,
		opts: Options{
			Host:              host,
			Port:              port,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			ShutdownTimeout:   shutdownTimeout,
			WebhookSecretHash: strings.TrimSpace(opts.WebhookSecretHash),
		},
	}
}

func (s *Server) incidentDataStore() incidentStore {
	if s.incidents != nil {
		return s.incidents
	}
	if s.pool == nil {
		return nil
	}
	return s.pool
}

// Handler builds the echo router. Start serves it.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:     true,
		LogURI:        true,
		LogMethod:     true,
		LogLatency:    true,
		LogRemoteIP:   true,
		LogRequestID:  true,
		LogError:      true,
		LogValuesFunc: s.logRequest,
	}))

	metrics.Register()

	e.GET("/", s.handleRoot)
	e.POST("/webhook/telegram", s.handleTelegramWebhook, middleware.BodyLimit(maxWebhookBody))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/incidents/latest", s.handleLatestIncidents)
	api.GET("/incidents/search", s.handleSearchIncidents)
	api.GET("/incidents/:id/sources", s.handleIncidentSources)

	return e
}

// logRequest writes one access line per request. Successful webhook deliveries log at debug.
func (s *Server) logRequest(_ echo.Context, v middleware.RequestLoggerValues) error {
	event := s.logger.Info()
	switch {
	case v.Error != nil || v.Status >= http.StatusInternalServerError:
		event = s.logger.Error().Err(v.Error)
	case v.Status >= http.StatusBadRequest:
		event = s.logger.Warn()
	case strings.HasPrefix(v.URI, "/webhook/"):
		event = s.logger.Debug()
	}
	event.
		Str("request_id", v.RequestID).
		Str("route", v.Method+" "+v.URI).
		Int("status", v.Status).
		Int64("latency_ms", v.Latency.Milliseconds()).
		Str("remote_ip", v.RemoteIP).
		Msg("request handled")
	return nil
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.incidentDataStore() == nil || s.ingester == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().
		Str("addr", addr).
		Bool("webhook_secret", s.opts.WebhookSecretHash != "").
		Msg("tariqi server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("tariqi server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if v, ok := he.Message.(string); ok && strings.TrimSpace(v) != "" {
			message = v
		} else if text := strings.TrimSpace(http.StatusText(status)); text != "" {
			message = text
		}
	}

	if status >= 500 {
		s.logger.Error().Err(err).Int("status", status).Msg("unhandled request error")
		_ = serverError(c, status)
		return
	}
	_ = fail(c, status, message)
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Tariqi API is running",
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	store := s.incidentDataStore()
	if store == nil {
		return serverError(c, http.StatusInternalServerError)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		s.logger.Error().Err(err).Msg("health check ping failed")
		return serverError(c, http.StatusServiceUnavailable)
	}
	return success(c, map[string]any{
		"service": "tariqi",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleLatestIncidents(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultLatestLimit, 1, maxQueryLimit)
	if err != nil {
		return failFields(c, map[string]string{"limit": err.Error()})
	}

	rows, err := s.incidentDataStore().LatestIncidents(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Int("limit", limit).Msg("query latest incidents failed")
		return serverError(c, http.StatusInternalServerError)
	}
	return success(c, map[string]any{
		"items": rows,
		"limit": limit,
	})
}

func (s *Server) handleSearchIncidents(c echo.Context) error {
	location := strings.TrimSpace(c.QueryParam("location"))
	if location == "" {
		return failFields(c, map[string]string{"location": "is required"})
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultSearchLimit, 1, maxQueryLimit)
	if err != nil {
		return failFields(c, map[string]string{"limit": err.Error()})
	}

	rows, err := s.incidentDataStore().SearchIncidentsByLocation(c.Request().Context(), location, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("location", location).Msg("search incidents failed")
		return serverError(c, http.StatusInternalServerError)
	}
	return success(c, map[string]any{
		"items":    rows,
		"location": location,
		"limit":    limit,
	})
}

func (s *Server) handleIncidentSources(c echo.Context) error {
	id, err := parseUUID(c.Param("id"))
	if err != nil {
		return failFields(c, map[string]string{"id": "must be a UUID"})
	}

	sources, err := s.incidentDataStore().IncidentSources(c.Request().Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Str("incident_id", id).Msg("query incident sources failed")
		return serverError(c, http.StatusInternalServerError)
	}
	if len(sources) == 0 {
		return fail(c, http.StatusNotFound, "Incident not found")
	}
	return success(c, map[string]any{
		"incident_id": id,
		"items":       sources,
	})
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
