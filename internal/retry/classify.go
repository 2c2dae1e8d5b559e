package retry

import (
	"errors"
	"net/http"
	"strings"
)

// Class is the retry classification of a failed attempt.
type Class int

const (
	// ClassOther failures are returned immediately.
	ClassOther Class = iota
	// ClassRateLimited failures are retried, then reported as quota exhaustion.
	ClassRateLimited
	// ClassServerError failures are retried, then returned unchanged.
	ClassServerError
)

func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassServerError:
		return "server_error"
	default:
		return "other"
	}
}

// HTTPStatusCoder is implemented by errors that carry an HTTP status.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// ErrorCoder is implemented by errors that carry a numeric code from the
// remote error body, which can differ from the transport status.
type ErrorCoder interface {
	ErrorCode() int
}

// rateLimitMarkers are matched case-insensitively against the error text when
// no status is available.
var rateLimitMarkers = []string{
	"429",
	"too many requests",
	"resource_exhausted",
}

// Classify inspects err for a status code, then an embedded error code, then
// a textual rate-limit marker.
func Classify(err error) Class {
	if err == nil {
		return ClassOther
	}
	return classifyStatus(StatusOf(err))
}

// StatusOf returns the status carried by err, falling back to 429 when only
// a textual rate-limit marker is present. It returns 0 when nothing is found.
func StatusOf(err error) int {
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		if code := sc.HTTPStatusCode(); code != 0 {
			return code
		}
	}

	var ec ErrorCoder
	if errors.As(err, &ec) {
		if code := ec.ErrorCode(); code != 0 {
			return code
		}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return http.StatusTooManyRequests
		}
	}
	return 0
}

func classifyStatus(status int) Class {
	switch status {
	case http.StatusTooManyRequests:
		return ClassRateLimited
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return ClassServerError
	default:
		return ClassOther
	}
}
