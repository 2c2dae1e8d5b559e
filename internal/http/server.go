// Package http serves the campusconnect JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/campusconnect/internal/campus"
	"github.com/fyrsmithlabs/campusconnect/internal/config"
	"github.com/fyrsmithlabs/campusconnect/internal/credentials"
	"github.com/fyrsmithlabs/campusconnect/internal/logging"
	"github.com/fyrsmithlabs/campusconnect/internal/matching"
	"github.com/fyrsmithlabs/campusconnect/internal/retry"
)

// Matcher is the slice of matching.Service the API needs.
type Matcher interface {
	GetQuickGreeting(ctx context.Context, user campus.User) (string, error)
	GetSmartMatches(ctx context.Context, user campus.User, activities []campus.Activity) ([]campus.MatchSuggestion, error)
	Insights(ctx context.Context, user campus.User, activities []campus.Activity) (matching.Insights, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	ServiceName     string
}

// Options carries the server's collaborators.
type Options struct {
	Matcher Matcher
	Keys    *credentials.Store
	Logger  *logging.Logger

	// Meter receives HTTP metrics; nil uses the global provider.
	Meter metric.Meter

	// Metrics serves GET /metrics; nil uses promhttp.Handler().
	Metrics http.Handler
}

// Server is the campusconnect HTTP API.
type Server struct {
	echo    *echo.Echo
	matcher Matcher
	keys    *credentials.Store
	logger  *logging.Logger
	config  *Config
}

type requestValidator struct {
	validate *validator.Validate
}

func (v requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// NewServer builds the server and registers its routes.
func NewServer(opts Options, cfg *Config) (*Server, error) {
	if opts.Matcher == nil {
		return nil, errors.New("matcher cannot be nil")
	}
	if opts.Keys == nil {
		return nil, errors.New("key store cannot be nil")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9090, ShutdownTimeout: 10 * time.Second}
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = requestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
	e.HTTPErrorHandler = errorHandler(opts.Logger)

	s := &Server{
		echo:    e,
		matcher: opts.Matcher,
		keys:    opts.Keys,
		logger:  opts.Logger,
		config:  cfg,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(s.requestLogger())
	e.Use(NewHTTPMetrics(opts.Meter, opts.Logger).Middleware())

	s.registerRoutes(opts.Metrics)
	return s, nil
}

// FromConfig converts the application server settings.
func FromConfig(c config.Config) *Config {
	return &Config{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		ShutdownTimeout: c.Server.ShutdownTimeout.Duration(),
		ServiceName:     c.Observability.ServiceName,
	}
}

func (s *Server) registerRoutes(metrics http.Handler) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(metrics))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/greeting", s.handleGreeting)
	v1.POST("/matches", s.handleMatches)
	v1.POST("/insights", s.handleInsights)

	keys := v1.Group("/users/:id/api-key")
	keys.GET("", s.handleKeyStatus)
	keys.PUT("", s.handleSetKey)
	keys.DELETE("", s.handleClearKey)
}

// requestLogger attaches a request-scoped logger to the request context and
// logs one line per request once the status is final.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid := c.Response().Header().Get(echo.HeaderXRequestID)

			// The request id reaches log lines through the context fields.
			ctx := logging.WithRequestID(req.Context(), rid)
			ctx = logging.WithLogger(ctx, s.logger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			s.logger.Info(ctx, "http request",
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: s.config.ServiceName})
}

func (s *Server) handleGreeting(c echo.Context) error {
	var req GreetingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	greeting, err := s.matcher.GetQuickGreeting(c.Request().Context(), req.User)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, GreetingResponse{Greeting: greeting})
}

func (s *Server) handleMatches(c echo.Context) error {
	var req MatchesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	matches, err := s.matcher.GetSmartMatches(c.Request().Context(), req.User, req.Activities)
	if err != nil {
		return err
	}
	if matches == nil {
		matches = []campus.MatchSuggestion{}
	}
	return c.JSON(http.StatusOK, MatchesResponse{Matches: matches})
}

func (s *Server) handleInsights(c echo.Context) error {
	var req MatchesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	in, err := s.matcher.Insights(c.Request().Context(), req.User, req.Activities)
	if err != nil {
		return err
	}
	if in.Matches == nil {
		in.Matches = []campus.MatchSuggestion{}
	}
	return c.JSON(http.StatusOK, InsightsResponse{
		Greeting:       in.Greeting,
		Matches:        in.Matches,
		QuotaExhausted: in.QuotaExhausted,
	})
}

func (s *Server) handleKeyStatus(c echo.Context) error {
	id := c.Param("id")
	return c.JSON(http.StatusOK, APIKeyStatus{UserID: id, HasPersonalKey: s.keys.Has(id)})
}

func (s *Server) handleSetKey(c echo.Context) error {
	var req APIKeyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	id := c.Param("id")
	key := config.Secret(req.APIKey)
	if err := s.keys.Set(id, key); err != nil {
		if errors.Is(err, credentials.ErrKeysUnsupported) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	logging.FromContext(ctx).Info(ctx, "personal api key registered",
		zap.String("user_id", id),
		zap.String("key_fingerprint", credentials.Fingerprint(key)),
		logging.Secret("api_key", key),
	)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClearKey(c echo.Context) error {
	s.keys.Clear(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag())
}

// errorHandler renders every failure as ErrorResponse. Quota exhaustion maps
// to 429 so clients can prompt for a personal key.
func errorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := ErrorResponse{Error: "internal_error", Message: "internal server error"}

		var he *echo.HTTPError
		switch {
		case retry.IsQuotaExhausted(err):
			status = http.StatusTooManyRequests
			body = ErrorResponse{
				Error:   "quota_exhausted",
				Message: "remote quota exhausted; register a personal API key to continue",
			}
		case errors.As(err, &he):
			status = he.Code
			body = ErrorResponse{Error: errorCode(he.Code), Message: fmt.Sprint(he.Message)}
		default:
			ctx := c.Request().Context()
			logger.Error(ctx, "unhandled request error", zap.Error(err))
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Underlying().Warn("writing error response", zap.Error(werr))
		}
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "quota_exhausted"
	default:
		return "http_" + strconv.Itoa(status)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down within the configured
// timeout. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	s.logger.Info(ctx, "starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info(shutdownCtx, "shutting down http server")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
