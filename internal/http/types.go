package http

import "github.com/fyrsmithlabs/campusconnect/internal/campus"

// GreetingRequest is the body of POST /api/v1/greeting.
type GreetingRequest struct {
	User campus.User `json:"user"`
}

// GreetingResponse is returned by POST /api/v1/greeting.
type GreetingResponse struct {
	Greeting string `json:"greeting"`
}

// MatchesRequest is the body of POST /api/v1/matches and /api/v1/insights.
type MatchesRequest struct {
	User       campus.User       `json:"user"`
	Activities []campus.Activity `json:"activities" validate:"dive"`
}

// MatchesResponse is returned by POST /api/v1/matches.
type MatchesResponse struct {
	Matches []campus.MatchSuggestion `json:"matches"`
}

// InsightsResponse is returned by POST /api/v1/insights.
type InsightsResponse struct {
	Greeting       string                   `json:"greeting"`
	Matches        []campus.MatchSuggestion `json:"matches"`
	QuotaExhausted bool                     `json:"quota_exhausted"`
}

// APIKeyRequest is the body of PUT /api/v1/users/:id/api-key.
type APIKeyRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

// APIKeyStatus is returned by GET /api/v1/users/:id/api-key. The key itself
// is never echoed back.
type APIKeyStatus struct {
	UserID         string `json:"user_id"`
	HasPersonalKey bool   `json:"has_personal_key"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
