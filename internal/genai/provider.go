package genai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/campusconnect/internal/config"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultGeminiURL   = "https://generativelanguage.googleapis.com"
	defaultGeminiModel = "gemini-3-flash-preview"
	defaultOpenAIModel = "gpt-4o-mini"
)

// Config configures a provider.
type Config struct {
	Provider    string
	Model       string
	APIKey      config.Secret
	BaseURL     string
	Timeout     time.Duration
	RateLimit   float64 // requests per second; 0 disables limiting
	Burst       int
	Temperature float64

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// FromConfig converts the loaded application config.
func FromConfig(c config.GenAIConfig) Config {
	return Config{
		Provider:    c.Provider,
		Model:       c.Model,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Timeout:     c.Timeout.Duration(),
		RateLimit:   c.RateLimit,
		Burst:       c.Burst,
		Temperature: c.Temperature,
	}
}

// WithAPIKey returns a copy of c using key.
func (c Config) WithAPIKey(key config.Secret) Config {
	c.APIKey = key
	return c
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// New builds a Generator for cfg.Provider.
//
//   - "gemini": Google Generative Language REST API
//   - "openai": any OpenAI-compatible chat endpoint
//   - "disabled", "heuristic", "": every call fails with ErrDisabled, so
//     callers always take their local path
func New(cfg Config) (Generator, error) {
	switch cfg.Provider {
	case "", config.ProviderDisabled, config.ProviderHeuristic:
		return disabled{}, nil
	case config.ProviderGemini:
		g, err := newGemini(cfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.ProviderOpenAI:
		o, err := newOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// UsesAPIKey reports whether the configured provider authenticates with an API
// key. The disabled and heuristic providers never call out.
func (c Config) UsesAPIKey() bool {
	return c.Provider == config.ProviderGemini || c.Provider == config.ProviderOpenAI
}

type disabled struct{}

func (disabled) Generate(context.Context, Request) (*Response, error) {
	return nil, ErrDisabled
}

var _ Generator = disabled{}
