package retry

import (
	"context"

	"go.uber.org/zap"
)

// Do runs op until it succeeds or the policy gives up. The successful result
// is returned unmodified. Each call owns its attempt counter; nothing is
// shared between calls. The zero Policy makes a single attempt.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.sleep == nil {
		p.sleep = SleepContext
	}

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		class := Classify(err)
		if class == ClassOther {
			return zero, err
		}

		if attempt >= p.maxRetries {
			if class == ClassRateLimited {
				p.logger(ctx).Warn(ctx, "rate limit persisted, quota exhausted",
					zap.Int("attempts", attempt+1),
					zap.Error(err),
				)
				return zero, &QuotaExhaustedError{Attempts: attempt + 1, Err: err}
			}
			return zero, err
		}

		delay := Delay(p.initialDelay, attempt)
		p.logger(ctx).Warn(ctx, "remote call failed, backing off",
			zap.Stringer("class", class),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if p.onRetry != nil {
			p.onRetry(attempt, class, delay, err)
		}

		if err := p.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}
