package genai

import "fmt"

// APIError is a non-200 reply from a provider. StatusCode is the transport
// status; Code and Status come from the error body when one was returned.
type APIError struct {
	Provider   string
	StatusCode int
	Code       int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s API error (status %d, %s): %s", e.Provider, e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// HTTPStatusCode returns the transport status.
func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// ErrorCode returns the code embedded in the error body.
func (e *APIError) ErrorCode() int {
	return e.Code
}
