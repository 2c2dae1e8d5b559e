// Package retry runs remote calls under an exponential backoff policy and
// classifies the terminal failure.
//
// Rate-limit failures (HTTP 429 or an equivalent marker) are retried and,
// once attempts run out, reported as *QuotaExhaustedError. Server failures
// (500, 503) are retried with the same schedule and then returned unchanged.
// Anything else is returned after the first attempt.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/fyrsmithlabs/campusconnect/internal/logging"
)

const (
	DefaultMaxRetries   = 4
	DefaultInitialDelay = 3 * time.Second
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// RetryFunc observes a retry about to happen. attempt is zero-based and
// refers to the attempt that just failed.
type RetryFunc func(attempt int, class Class, delay time.Duration, err error)

// Policy is an immutable retry configuration. Build it with NewPolicy.
type Policy struct {
	maxRetries   int
	initialDelay time.Duration
	sleep        Sleeper
	onRetry      RetryFunc
	name         string
}

// Option configures a Policy.
type Option func(*Policy)

// WithMaxRetries sets the number of retries after the first attempt.
// Negative values are treated as zero.
func WithMaxRetries(n int) Option {
	return func(p *Policy) {
		if n < 0 {
			n = 0
		}
		p.maxRetries = n
	}
}

// WithInitialDelay sets the wait before the first retry. Non-positive values
// keep the default.
func WithInitialDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.initialDelay = d
		}
	}
}

// WithSleeper replaces the timer-based wait, typically in tests.
func WithSleeper(s Sleeper) Option {
	return func(p *Policy) {
		if s != nil {
			p.sleep = s
		}
	}
}

// WithOnRetry registers an observer called before every backoff wait.
func WithOnRetry(fn RetryFunc) Option {
	return func(p *Policy) {
		p.onRetry = fn
	}
}

// WithName labels log lines emitted by the policy.
func WithName(name string) Option {
	return func(p *Policy) {
		p.name = name
	}
}

// NewPolicy returns a policy with 4 retries and a 3s initial delay unless
// overridden.
func NewPolicy(opts ...Option) Policy {
	p := Policy{
		maxRetries:   DefaultMaxRetries,
		initialDelay: DefaultInitialDelay,
		sleep:        SleepContext,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// With returns a copy of p with opts applied.
func (p Policy) With(opts ...Option) Policy {
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p Policy) MaxRetries() int            { return p.maxRetries }
func (p Policy) InitialDelay() time.Duration { return p.initialDelay }

// Delay returns initial * 2^attempt, saturating at the maximum duration.
func Delay(initial time.Duration, attempt int) time.Duration {
	if initial <= 0 || attempt < 0 {
		return 0
	}
	if attempt >= 62 {
		return time.Duration(math.MaxInt64)
	}
	factor := time.Duration(1) << uint(attempt)
	if initial > time.Duration(math.MaxInt64)/factor {
		return time.Duration(math.MaxInt64)
	}
	return initial * factor
}

// SleepContext waits on a timer and returns ctx.Err() if ctx ends first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p Policy) logger(ctx context.Context) *logging.Logger {
	l := logging.FromContext(ctx)
	if p.name != "" {
		return l.Named(p.name)
	}
	return l
}
