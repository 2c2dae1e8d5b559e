package retry

import (
	"errors"
	"fmt"
)

// ErrQuotaExhausted matches any *QuotaExhaustedError under errors.Is.
var ErrQuotaExhausted = errors.New("API quota exhausted")

// QuotaExhaustedError reports that the remote service kept rate limiting
// until every permitted attempt was used.
type QuotaExhaustedError struct {
	Attempts int
	Err      error
}

func (e *QuotaExhaustedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s after %d attempts", ErrQuotaExhausted, e.Attempts)
	}
	return fmt.Sprintf("%s after %d attempts: %v", ErrQuotaExhausted, e.Attempts, e.Err)
}

func (e *QuotaExhaustedError) Unwrap() error {
	return e.Err
}

func (e *QuotaExhaustedError) Is(target error) bool {
	return target == ErrQuotaExhausted
}

// IsQuotaExhausted reports whether err is, or wraps, a quota exhaustion.
func IsQuotaExhausted(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}
