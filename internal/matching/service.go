// Package matching produces activity suggestions and welcome greetings for a
// campus user.
//
// Both producers call a remote generator through the retry dispatcher. A
// quota failure is always returned to the caller so it can ask the user for
// a personal key. Every other failure is absorbed: matches come from the
// local scorer and greetings from a fixed template.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/campusconnect/internal/campus"
	"github.com/fyrsmithlabs/campusconnect/internal/genai"
	"github.com/fyrsmithlabs/campusconnect/internal/logging"
	"github.com/fyrsmithlabs/campusconnect/internal/retry"
	"github.com/fyrsmithlabs/campusconnect/internal/secrets"
)

const (
	opMatches  = "matches"
	opGreeting = "greeting"
)

// Service produces suggestions and greetings.
type Service struct {
	source   genai.Source
	policy   retry.Policy
	scrubber secrets.Scrubber
	logger   *logging.Logger
	tracer   trace.Tracer
	metrics  *Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the retry policy. The default is retry.NewPolicy().
func WithPolicy(p retry.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithScrubber redacts free text before it is placed in a prompt.
func WithScrubber(sc secrets.Scrubber) Option {
	return func(s *Service) {
		if sc != nil {
			s.scrubber = sc
		}
	}
}

// WithLogger sets the logger used when the request context carries none.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService returns a Service that obtains generators from source.
func NewService(source genai.Source, opts ...Option) *Service {
	s := &Service{
		source:   source,
		policy:   retry.NewPolicy(),
		scrubber: secrets.NoopScrubber{},
		tracer:   otel.Tracer("github.com/fyrsmithlabs/campusconnect/internal/matching"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.source == nil {
		s.source = genai.StaticSource{}
	}
	return s
}

// GetSmartMatches ranks activities for user. It returns a
// *retry.QuotaExhaustedError when the remote quota is spent and otherwise
// never fails: on any other problem the local scorer answers instead.
func (s *Service) GetSmartMatches(ctx context.Context, user campus.User, activities []campus.Activity) ([]campus.MatchSuggestion, error) {
	ctx = s.withLogger(ctx, user)
	ctx, span := s.tracer.Start(ctx, "matching.GetSmartMatches", trace.WithAttributes(
		attribute.Int("activities.count", len(activities)),
	))
	defer span.End()

	if len(activities) == 0 {
		span.SetAttributes(attribute.String("matches.source", "empty"))
		return []campus.MatchSuggestion{}, nil
	}

	req := genai.Request{
		Prompt: s.matchPrompt(user, activities),
		Schema: suggestionSchema(),
	}
	text, err := s.generate(ctx, opMatches, user.ID, req)
	if err == nil {
		var matches []campus.MatchSuggestion
		if matches, err = parseSuggestions(text); err == nil {
			span.SetAttributes(
				attribute.String("matches.source", "remote"),
				attribute.Int("matches.count", len(matches)),
			)
			return matches, nil
		}
		err = fmt.Errorf("parsing suggestions: %w", err)
	}

	if retry.IsQuotaExhausted(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quota exhausted")
		return nil, err
	}

	matches := LocalMatches(user, activities)
	s.fallback(ctx, opMatches, err)
	span.SetAttributes(
		attribute.String("matches.source", "local"),
		attribute.Int("matches.count", len(matches)),
	)
	return matches, nil
}

// GetQuickGreeting returns a short welcome line for user. Only quota
// exhaustion is reported as an error.
func (s *Service) GetQuickGreeting(ctx context.Context, user campus.User) (string, error) {
	ctx = s.withLogger(ctx, user)
	ctx, span := s.tracer.Start(ctx, "matching.GetQuickGreeting")
	defer span.End()

	text, err := s.generate(ctx, opGreeting, user.ID, genai.Request{Prompt: s.greetingPrompt(user)})
	if err != nil {
		if retry.IsQuotaExhausted(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "quota exhausted")
			return "", err
		}
		s.fallback(ctx, opGreeting, err)
		span.SetAttributes(attribute.String("greeting.source", "local"))
		return FallbackGreeting(user), nil
	}

	if greeting := strings.TrimSpace(text); greeting != "" {
		span.SetAttributes(attribute.String("greeting.source", "remote"))
		return greeting, nil
	}

	s.fallback(ctx, opGreeting, errEmptyText)
	span.SetAttributes(attribute.String("greeting.source", "local"))
	return FallbackGreeting(user), nil
}

var errEmptyText = errors.New("remote returned empty text")

// FallbackGreeting is the template used when no remote greeting is available.
func FallbackGreeting(user campus.User) string {
	if first := user.FirstName(); first != "" {
		return "Welcome, " + first + "!"
	}
	return "Welcome!"
}

// generate acquires a generator for userID and runs req under the retry
// policy.
func (s *Service) generate(ctx context.Context, op, userID string, req genai.Request) (string, error) {
	gen, err := s.source.Generator(ctx, userID)
	if err != nil {
		s.metrics.observeRequest(op, "unavailable", 0)
		return "", fmt.Errorf("acquiring generator: %w", err)
	}

	policy := s.policy.With(
		retry.WithName("retry."+op),
		retry.WithOnRetry(func(_ int, class retry.Class, _ time.Duration, _ error) {
			s.metrics.observeRetry(op, class)
		}),
	)

	log := logging.FromContext(ctx)
	log.Trace(ctx, "remote prompt",
		zap.String("operation", op),
		zap.String("prompt", req.Prompt),
	)

	start := time.Now()
	resp, err := retry.Do(ctx, policy, func(ctx context.Context) (*genai.Response, error) {
		return gen.Generate(ctx, req)
	})
	elapsed := time.Since(start)

	switch {
	case err == nil:
		s.metrics.observeRequest(op, "success", elapsed)
	case retry.IsQuotaExhausted(err):
		s.metrics.observeRequest(op, "quota_exhausted", elapsed)
		return "", err
	default:
		s.metrics.observeRequest(op, "error", elapsed)
		return "", err
	}

	if resp == nil {
		return "", nil
	}
	log.Trace(ctx, "remote response",
		zap.String("operation", op),
		zap.Int("bytes", len(resp.Text)),
		zap.Duration("elapsed", elapsed),
	)
	return resp.Text, nil
}

func (s *Service) fallback(ctx context.Context, op string, cause error) {
	reason := "error"
	switch {
	case errors.Is(cause, genai.ErrDisabled):
		reason = "disabled"
	case errors.Is(cause, errEmptyText):
		reason = "empty"
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		reason = "cancelled"
	case errors.Is(cause, errParse):
		reason = "parse"
	}
	s.metrics.observeFallback(op, reason)

	logging.FromContext(ctx).Info(ctx, "using local result",
		zap.String("operation", op),
		zap.String("reason", reason),
		zap.Error(cause),
	)
}

// withLogger makes the service logger visible to the retry loop unless the
// caller already attached one.
func (s *Service) withLogger(ctx context.Context, user campus.User) context.Context {
	if _, ok := logging.LoggerFromContext(ctx); !ok && s.logger != nil {
		ctx = logging.WithLogger(ctx, s.logger)
	}
	if user.ID != "" && logging.UserIDFromContext(ctx) == "" {
		ctx = logging.WithUserID(ctx, user.ID)
	}
	return ctx
}
