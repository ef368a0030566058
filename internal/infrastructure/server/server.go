package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	httpHandlers "github.com/pipeboard/core/internal/adapters/http"
	"github.com/pipeboard/core/internal/adapters/repository"
	"github.com/pipeboard/core/internal/application/services"
	"github.com/pipeboard/core/internal/infrastructure/config"
	"github.com/pipeboard/core/internal/infrastructure/database"
	"github.com/pipeboard/core/internal/infrastructure/logger"
	"github.com/pipeboard/core/internal/ports"
)

// Server represents the HTTP server
type Server struct {
	echo    *echo.Echo
	config  *config.Config
	logger  *logger.Logger
	db      *database.DB
	session *services.BoardSession
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New creates a new server instance
func New(cfg *config.Config, db *database.DB, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()

	e.Validator = &CustomValidator{validator: validator.New()}
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	// Remote store and optional cache
	store := repository.NewRemoteStore(db)

	var cache ports.CacheRepository
	if cfg.Redis.Enabled {
		var err error
		cache, err = repository.NewCacheRepository(cfg.Redis)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", "error", err)
			cache = nil
		}
	}

	// Board session
	metrics := services.NewBoardMetrics()
	session := services.NewBoardSession(store, cache, services.BoardOptions{
		ProtectedColumns: cfg.Board.ProtectedColumns,
		TerminalStatuses: cfg.Board.TerminalStatuses,
		CollapseIfEmpty:  cfg.Board.CollapseIfEmpty,
	}, metrics, appLogger)

	// Handlers
	boardHandler := httpHandlers.NewBoardHandler(session, appLogger)
	columnHandler := httpHandlers.NewColumnHandler(session, appLogger)

	server := &Server{
		echo:    e,
		config:  cfg,
		logger:  appLogger,
		db:      db,
		session: session,
	}

	server.setupMiddleware()
	server.setupRoutes(boardHandler, columnHandler)

	if cfg.Metrics.Enabled {
		server.setupMetrics(metrics)
	}

	return server, nil
}

// Session exposes the board session for initial loading.
func (s *Server) Session() *services.BoardSession {
	return s.session
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
				"user_agent", values.UserAgent,
			}

			if values.Error != nil {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Errorw("HTTP request failed", fields...)
			} else {
				s.logger.Infow("HTTP request", fields...)
			}

			return nil
		},
	}))

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(s.config.Security.CORSAllowedOrigins, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.PATCH, echo.POST, echo.DELETE},
	}))

	s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{Rate: rate.Limit(s.config.Security.RateLimitRequests), Burst: s.config.Security.RateLimitRequests, ExpiresIn: s.config.Security.RateLimitWindow},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(http.StatusForbidden, map[string]string{"message": "rate limit exceeded"})
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(http.StatusTooManyRequests, map[string]string{"message": "rate limit exceeded"})
		},
	}))

	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))

	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 30 * time.Second,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(boardHandler *httpHandlers.BoardHandler, columnHandler *httpHandlers.ColumnHandler) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Board routes
	v1.GET("/board", boardHandler.GetBoard)
	v1.POST("/board/refresh", boardHandler.Refresh)
	v1.GET("/notices", boardHandler.GetNotices)

	// Item routes
	v1.GET("/items", boardHandler.ListItems)
	v1.GET("/items/:id", boardHandler.GetItem)
	v1.POST("/items/:id/status", boardHandler.ChangeStatus)

	// Column routes
	v1.GET("/columns", columnHandler.ListColumns)
	v1.POST("/columns", columnHandler.CreateColumn)
	v1.PUT("/columns/:id", columnHandler.RenameColumn)
	v1.DELETE("/columns/:id", columnHandler.DeleteColumn)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics(boardMetrics *services.BoardMetrics) {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(requestsTotal, requestDuration)
	registry.MustRegister(boardMetrics.Collectors()...)

	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start)
			status := c.Response().Status

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(duration.Seconds())

			return err
		}
	})

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	if err := s.db.HealthCheck(); err != nil {
		status = "error"
		checks["database"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["database"] = map[string]interface{}{
			"status": "ok",
			"stats":  s.db.GetConnectionInfo(),
		}
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if err := s.db.Ping(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "database_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Info("Starting server", "address", address)
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = he.Message
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		} else if e, ok := err.(validator.ValidationErrors); ok {
			code = http.StatusBadRequest
			msg = map[string]string{"message": "validation failed", "details": e.Error()}
		} else {
			msg = map[string]string{"message": http.StatusText(code)}
		}

		if code == http.StatusInternalServerError {
			logger.Error("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		if !c.Response().Committed {
			if c.Request().Method == echo.HEAD {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				logger.Error("Error sending response", "error", err)
			}
		}
	}
}
