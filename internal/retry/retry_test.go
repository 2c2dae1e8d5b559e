package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/fyrsmithlabs/campusconnect/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type statusError struct {
	status int
}

func (e *statusError) Error() string       { return fmt.Sprintf("remote returned %d", e.status) }
func (e *statusError) HTTPStatusCode() int { return e.status }

type bodyCodeError struct {
	code int
}

func (e *bodyCodeError) Error() string  { return "remote error" }
func (e *bodyCodeError) ErrorCode() int { return e.code }

// recordingSleeper returns immediately and remembers every requested delay.
type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func testPolicy(s *recordingSleeper, opts ...Option) Policy {
	return NewPolicy(append([]Option{WithSleeper(s.sleep)}, opts...)...)
}

func TestDo_RateLimitedExhaustsToQuotaError(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 4} {
		t.Run(fmt.Sprintf("max_retries=%d", maxRetries), func(t *testing.T) {
			s := &recordingSleeper{}
			calls := 0
			cause := &statusError{status: 429}

			_, err := Do(context.Background(), testPolicy(s, WithMaxRetries(maxRetries)), func(context.Context) (string, error) {
				calls++
				return "", cause
			})

			require.Error(t, err)
			assert.Equal(t, maxRetries+1, calls)
			assert.True(t, errors.Is(err, ErrQuotaExhausted))
			assert.True(t, IsQuotaExhausted(err))

			var qe *QuotaExhaustedError
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, maxRetries+1, qe.Attempts)
			assert.Same(t, cause, errors.Unwrap(err))
		})
	}
}

func TestDo_DefaultScheduleDoublesFromThreeSeconds(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0

	_, err := Do(context.Background(), testPolicy(s), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("429 Too Many Requests")
	})

	require.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, 5, calls)
	assert.Equal(t, []time.Duration{
		3 * time.Second,
		6 * time.Second,
		12 * time.Second,
		24 * time.Second,
	}, s.delays)
}

func TestDo_ServerErrorThenSuccess(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0

	got, err := Do(context.Background(), testPolicy(s), func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", &statusError{status: 503}
		}
		return "hello", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, 3, calls)
	assert.Len(t, s.delays, 2)
}

func TestDo_ServerErrorExhaustedReturnsOriginal(t *testing.T) {
	s := &recordingSleeper{}
	cause := &statusError{status: 500}
	calls := 0

	_, err := Do(context.Background(), testPolicy(s, WithMaxRetries(2)), func(context.Context) (string, error) {
		calls++
		return "", cause
	})

	assert.Same(t, cause, err)
	assert.False(t, errors.Is(err, ErrQuotaExhausted))
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "plain error", err: errors.New("connection refused")},
		{name: "bad request", err: &statusError{status: 400}},
		{name: "bad gateway is not retried", err: &statusError{status: 502}},
		{name: "parse failure", err: fmt.Errorf("decode suggestions: %w", errors.New("unexpected end of JSON input"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &recordingSleeper{}
			calls := 0

			_, err := Do(context.Background(), testPolicy(s), func(context.Context) (string, error) {
				calls++
				return "", tt.err
			})

			assert.Same(t, tt.err, err)
			assert.Equal(t, 1, calls)
			assert.Empty(t, s.delays)
		})
	}
}

func TestDo_SuccessFirstTry(t *testing.T) {
	s := &recordingSleeper{}
	got, err := Do(context.Background(), testPolicy(s), func(context.Context) ([]int, error) {
		return []int{1, 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
	assert.Empty(t, s.delays)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	p := NewPolicy(WithSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return SleepContext(ctx, d)
	}))

	_, err := Do(ctx, p, func(context.Context) (string, error) {
		calls++
		return "", &statusError{status: 429}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsQuotaExhausted(err))
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryObserver(t *testing.T) {
	s := &recordingSleeper{}
	var classes []Class
	var attempts []int

	p := testPolicy(s, WithMaxRetries(2), WithInitialDelay(time.Millisecond), WithOnRetry(func(attempt int, class Class, delay time.Duration, err error) {
		attempts = append(attempts, attempt)
		classes = append(classes, class)
	}))

	calls := 0
	_, _ = Do(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &statusError{status: 503}
		}
		return "", &statusError{status: 429}
	})

	assert.Equal(t, []int{0, 1}, attempts)
	assert.Equal(t, []Class{ClassServerError, ClassRateLimited}, classes)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, s.delays)
}

func TestDo_LogsThroughContextLogger(t *testing.T) {
	tl := logging.NewTestLogger()
	ctx := logging.WithLogger(context.Background(), tl.Logger)
	s := &recordingSleeper{}

	_, _ = Do(ctx, testPolicy(s, WithMaxRetries(1), WithName("greeting")), func(context.Context) (string, error) {
		return "", &statusError{status: 429}
	})

	tl.AssertLogged(t, zapcore.WarnLevel, "backing off")
	tl.AssertLogged(t, zapcore.WarnLevel, "quota exhausted")
}

func TestDo_ZeroPolicySingleAttempt(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, func(context.Context) (string, error) {
		calls++
		return "", &statusError{status: 429}
	})
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, 1, calls)
}

func TestDelay(t *testing.T) {
	tests := []struct {
		initial time.Duration
		attempt int
		want    time.Duration
	}{
		{initial: 3 * time.Second, attempt: 0, want: 3 * time.Second},
		{initial: 3 * time.Second, attempt: 1, want: 6 * time.Second},
		{initial: 3 * time.Second, attempt: 3, want: 24 * time.Second},
		{initial: time.Millisecond, attempt: 10, want: 1024 * time.Millisecond},
		{initial: 0, attempt: 2, want: 0},
		{initial: time.Second, attempt: -1, want: 0},
		{initial: time.Hour, attempt: 61, want: time.Duration(math.MaxInt64)},
		{initial: time.Second, attempt: 100, want: time.Duration(math.MaxInt64)},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s*2^%d", tt.initial, tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.want, Delay(tt.initial, tt.attempt))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{name: "nil", err: nil, want: ClassOther},
		{name: "status 429", err: &statusError{status: 429}, want: ClassRateLimited},
		{name: "wrapped status 429", err: fmt.Errorf("generate: %w", &statusError{status: 429}), want: ClassRateLimited},
		{name: "status 500", err: &statusError{status: 500}, want: ClassServerError},
		{name: "status 503", err: &statusError{status: 503}, want: ClassServerError},
		{name: "status 404", err: &statusError{status: 404}, want: ClassOther},
		{name: "embedded body code", err: &bodyCodeError{code: 429}, want: ClassRateLimited},
		{name: "embedded server code", err: &bodyCodeError{code: 503}, want: ClassServerError},
		{name: "text 429", err: errors.New("API returned unexpected status code: 429"), want: ClassRateLimited},
		{name: "text too many requests", err: errors.New("Too Many Requests"), want: ClassRateLimited},
		{name: "text resource exhausted", err: errors.New("RESOURCE_EXHAUSTED: quota"), want: ClassRateLimited},
		{name: "plain", err: errors.New("dial tcp: connection refused"), want: ClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClass_String(t *testing.T) {
	assert.Equal(t, "rate_limited", ClassRateLimited.String())
	assert.Equal(t, "server_error", ClassServerError.String())
	assert.Equal(t, "other", ClassOther.String())
}

func TestNewPolicy(t *testing.T) {
	p := NewPolicy()
	assert.Equal(t, 4, p.MaxRetries())
	assert.Equal(t, 3*time.Second, p.InitialDelay())

	p = NewPolicy(WithMaxRetries(-3), WithInitialDelay(-time.Second))
	assert.Equal(t, 0, p.MaxRetries())
	assert.Equal(t, 3*time.Second, p.InitialDelay())

	q := p.With(WithMaxRetries(2))
	assert.Equal(t, 2, q.MaxRetries())
	assert.Equal(t, 0, p.MaxRetries(), "With does not mutate the receiver")
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
