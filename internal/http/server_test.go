package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/campusconnect/internal/campus"
	"github.com/fyrsmithlabs/campusconnect/internal/config"
	"github.com/fyrsmithlabs/campusconnect/internal/credentials"
	"github.com/fyrsmithlabs/campusconnect/internal/genai"
	"github.com/fyrsmithlabs/campusconnect/internal/logging"
	"github.com/fyrsmithlabs/campusconnect/internal/matching"
	"github.com/fyrsmithlabs/campusconnect/internal/retry"
	"github.com/fyrsmithlabs/campusconnect/internal/telemetry"
)

type stubMatcher struct {
	greeting    string
	greetingErr error
	matches     []campus.MatchSuggestion
	matchesErr  error
	insights    matching.Insights

	lastUser       campus.User
	lastActivities []campus.Activity
	lastRequestID  string
}

func (m *stubMatcher) GetQuickGreeting(ctx context.Context, user campus.User) (string, error) {
	m.lastUser = user
	m.lastRequestID = logging.RequestIDFromContext(ctx)
	return m.greeting, m.greetingErr
}

func (m *stubMatcher) GetSmartMatches(_ context.Context, user campus.User, acts []campus.Activity) ([]campus.MatchSuggestion, error) {
	m.lastUser, m.lastActivities = user, acts
	return m.matches, m.matchesErr
}

func (m *stubMatcher) Insights(context.Context, campus.User, []campus.Activity) (matching.Insights, error) {
	return m.insights, nil
}

var quotaErr = &retry.QuotaExhaustedError{Attempts: 5, Err: errors.New("429")}

type testServer struct {
	srv     *Server
	matcher *stubMatcher
	keys    *credentials.Store
	logs    *logging.TestLogger
	tel     *telemetry.TestTelemetry
}

func setupTestServer(t *testing.T, m *stubMatcher) *testServer {
	t.Helper()
	if m == nil {
		m = &stubMatcher{}
	}
	ts := &testServer{
		matcher: m,
		keys:    credentials.NewStore(),
		logs:    logging.NewTestLogger(),
		tel:     telemetry.NewTestTelemetry(),
	}
	srv, err := NewServer(Options{
		Matcher: m,
		Keys:    ts.keys,
		Logger:  ts.logs.Logger,
		Meter:   ts.tel.Meter("http"),
		Metrics: promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}),
	}, &Config{Host: "127.0.0.1", Port: 0, ServiceName: "campusconnect"})
	require.NoError(t, err)
	ts.srv = srv
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const alexJSON = `{"id":"u1","name":"Alex Johnson","interests":["Basketball"],"major":"Computer Science"}`

func TestNewServer(t *testing.T) {
	keys := credentials.NewStore()
	logger := logging.NewTestLogger().Logger

	t.Run("defaults config", func(t *testing.T) {
		srv, err := NewServer(Options{Matcher: &stubMatcher{}, Keys: keys, Logger: logger}, nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", srv.config.Host)
		assert.Equal(t, 9090, srv.config.Port)
	})

	t.Run("requires matcher", func(t *testing.T) {
		_, err := NewServer(Options{Keys: keys, Logger: logger}, nil)
		assert.ErrorContains(t, err, "matcher")
	})

	t.Run("requires key store", func(t *testing.T) {
		_, err := NewServer(Options{Matcher: &stubMatcher{}, Logger: logger}, nil)
		assert.ErrorContains(t, err, "key store")
	})

	t.Run("requires logger", func(t *testing.T) {
		_, err := NewServer(Options{Matcher: &stubMatcher{}, Keys: keys}, nil)
		assert.ErrorContains(t, err, "logger is required")
	})
}

func TestHandleHealth(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "campusconnect", resp.Service)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandleGreeting(t *testing.T) {
	t.Run("returns greeting", func(t *testing.T) {
		ts := setupTestServer(t, &stubMatcher{greeting: "Let's go, Alex!"})

		rec := ts.do(t, http.MethodPost, "/api/v1/greeting", `{"user":`+alexJSON+`}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Let's go, Alex!", decode[GreetingResponse](t, rec).Greeting)
		assert.Equal(t, "Alex Johnson", ts.matcher.lastUser.Name)
		assert.Equal(t, rec.Header().Get("X-Request-Id"), ts.matcher.lastRequestID)
	})

	t.Run("quota maps to 429", func(t *testing.T) {
		ts := setupTestServer(t, &stubMatcher{greetingErr: quotaErr})

		rec := ts.do(t, http.MethodPost, "/api/v1/greeting", `{"user":`+alexJSON+`}`)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "quota_exhausted", decode[ErrorResponse](t, rec).Error)
	})

	t.Run("missing name rejected", func(t *testing.T) {
		ts := setupTestServer(t, nil)

		rec := ts.do(t, http.MethodPost, "/api/v1/greeting", `{"user":{"id":"u1"}}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, "bad_request", resp.Error)
		assert.Contains(t, resp.Message, "Name")
	})

	t.Run("malformed json rejected", func(t *testing.T) {
		ts := setupTestServer(t, nil)

		rec := ts.do(t, http.MethodPost, "/api/v1/greeting", `{"user":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unexpected error is 500 and logged", func(t *testing.T) {
		ts := setupTestServer(t, &stubMatcher{greetingErr: errors.New("boom")})

		rec := ts.do(t, http.MethodPost, "/api/v1/greeting", `{"user":`+alexJSON+`}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "boom")
		ts.logs.AssertLogged(t, zapcore.ErrorLevel, "unhandled request error")
	})
}

func TestHandleMatches(t *testing.T) {
	t.Run("returns matches", func(t *testing.T) {
		ts := setupTestServer(t, &stubMatcher{matches: []campus.MatchSuggestion{
			{ActivityID: "a1", Reason: "hoops", CompatibilityScore: 75},
		}})

		body := `{"user":` + alexJSON + `,"activities":[{"id":"a1","title":"3v3 Basketball Scrimmage","category":"Sports"}]}`
		rec := ts.do(t, http.MethodPost, "/api/v1/matches", body)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[MatchesResponse](t, rec)
		require.Len(t, resp.Matches, 1)
		assert.Equal(t, "a1", resp.Matches[0].ActivityID)
		assert.Contains(t, rec.Body.String(), `"compatibilityScore":75`)
		require.Len(t, ts.matcher.lastActivities, 1)
		assert.Equal(t, campus.CategorySports, ts.matcher.lastActivities[0].Category)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		ts := setupTestServer(t, &stubMatcher{})

		rec := ts.do(t, http.MethodPost, "/api/v1/matches", `{"user":`+alexJSON+`}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"matches":[]}`, rec.Body.String())
	})

	t.Run("activity without id rejected", func(t *testing.T) {
		ts := setupTestServer(t, nil)

		rec := ts.do(t, http.MethodPost, "/api/v1/matches", `{"user":`+alexJSON+`,"activities":[{"title":"x"}]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("quota maps to 429", func(t *testing.T) {
		ts := setupTestServer(t, &stubMatcher{matchesErr: quotaErr})

		rec := ts.do(t, http.MethodPost, "/api/v1/matches", `{"user":`+alexJSON+`}`)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})
}

func TestHandleInsights(t *testing.T) {
	ts := setupTestServer(t, &stubMatcher{insights: matching.Insights{
		Greeting:       "Welcome back, Alex!",
		QuotaExhausted: true,
	}})

	rec := ts.do(t, http.MethodPost, "/api/v1/insights", `{"user":`+alexJSON+`}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"greeting":"Welcome back, Alex!","matches":[],"quota_exhausted":true}`, rec.Body.String())
}

func TestAPIKeyRoutes(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/users/u1/api-key", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[APIKeyStatus](t, rec).HasPersonalKey)

	rec = ts.do(t, http.MethodPut, "/api/v1/users/u1/api-key", `{"api_key":"AIzaSyExample"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, ts.keys.Has("u1"))

	rec = ts.do(t, http.MethodGet, "/api/v1/users/u1/api-key", "")
	status := decode[APIKeyStatus](t, rec)
	assert.True(t, status.HasPersonalKey)
	assert.Equal(t, "u1", status.UserID)
	assert.NotContains(t, rec.Body.String(), "AIzaSyExample")

	rec = ts.do(t, http.MethodPut, "/api/v1/users/u1/api-key", `{"api_key":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/users/u1/api-key", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, ts.keys.Has("u1"))

	for _, entry := range ts.logs.All() {
		for _, f := range entry.Context {
			assert.NotContains(t, f.String, "AIzaSyExample")
		}
	}
	registered := ts.logs.FilterMessage("personal api key registered").All()
	require.Len(t, registered, 1)
	fields := registered[0].ContextMap()
	assert.Equal(t, map[string]interface{}{"api_key": "[REDACTED:13]"}, fields["api_key"])
	assert.Len(t, fields["key_fingerprint"], 16)
}

func TestAPIKeyRoutes_RefusedWhenProviderTakesNoKey(t *testing.T) {
	ts := setupTestServer(t, nil)
	credentials.NewSource(ts.keys, genai.Config{Provider: config.ProviderHeuristic}, nil)

	rec := ts.do(t, http.MethodPut, "/api/v1/users/u1/api-key", `{"api_key":"AIzaSyExample"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode[ErrorResponse](t, rec).Error)
	assert.False(t, ts.keys.Has("u1"))
}

func TestUnknownRoute(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Error)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogAndMetrics(t *testing.T) {
	ts := setupTestServer(t, &stubMatcher{greeting: "hi"})

	ts.do(t, http.MethodPost, "/api/v1/greeting", `{"user":`+alexJSON+`}`)

	ts.logs.AssertLogged(t, zapcore.InfoLevel, "http request")
	ts.logs.AssertField(t, "http request", "route", "/api/v1/greeting")
	ts.logs.AssertField(t, "http request", "status", 200)

	rm, err := ts.tel.Collect(context.Background())
	require.NoError(t, err)
	_, ok := telemetry.Metric(rm, "campusconnect.http.requests_total")
	assert.True(t, ok)
}

func TestServer_WithMatchingService(t *testing.T) {
	gen := genai.GeneratorFunc(func(context.Context, genai.Request) (*genai.Response, error) {
		return nil, errors.New("connection refused")
	})
	svc := matching.NewService(genai.StaticSource{G: gen},
		matching.WithPolicy(retry.NewPolicy(retry.WithSleeper(func(context.Context, time.Duration) error { return nil }))),
		matching.WithMetrics(matching.NewMetricsWith(prometheus.NewRegistry())),
	)

	srv, err := NewServer(Options{
		Matcher: svc,
		Keys:    credentials.NewStore(),
		Logger:  logging.NewTestLogger().Logger,
		Metrics: http.NotFoundHandler(),
	}, nil)
	require.NoError(t, err)

	body := `{"user":{"id":"u1","name":"Alex Johnson","interests":["Basketball"]},"activities":[` +
		`{"id":"a1","title":"3v3 Basketball Scrimmage","category":"Sports"},` +
		`{"id":"a2","title":"Chess Club","category":"Clubs"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/insights", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[InsightsResponse](t, rec)
	assert.Equal(t, "Welcome, Alex!", resp.Greeting)
	require.Len(t, resp.Matches, 2)
	assert.Equal(t, "a1", resp.Matches[0].ActivityID)
	assert.Equal(t, 75.0, resp.Matches[0].CompatibilityScore)
	assert.False(t, resp.QuotaExhausted)
}

func TestServer_StartAndShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	srv, err := NewServer(Options{
		Matcher: &stubMatcher{},
		Keys:    credentials.NewStore(),
		Logger:  logging.NewTestLogger().Logger,
	}, &Config{Host: "127.0.0.1", Port: port, ShutdownTimeout: time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
