// Package config provides configuration loading for campusconnect.
//
// Values come from an optional YAML file, then CAMPUS_* environment
// variables, on top of the defaults returned by Default.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Remote generation providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderDisabled  = "disabled"
	ProviderHeuristic = "heuristic"
)

// Config holds the complete campusconnect configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
	GenAI         GenAIConfig         `koanf:"genai"`
	Retry         RetryConfig         `koanf:"retry"`
	Scrub         ScrubConfig         `koanf:"scrub"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds OpenTelemetry export settings.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	OTLPProtocol    string `koanf:"otlp_protocol"`
	OTLPInsecure    bool   `koanf:"otlp_insecure"`
}

// LoggingConfig holds the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// GenAIConfig selects and configures the remote text-generation provider.
type GenAIConfig struct {
	Provider    string   `koanf:"provider"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	BaseURL     string   `koanf:"base_url"`
	Timeout     Duration `koanf:"timeout"`
	RateLimit   float64  `koanf:"rate_limit"` // requests per second, 0 disables limiting
	Burst       int      `koanf:"burst"`
	Temperature float64  `koanf:"temperature"`
}

// RetryConfig controls the backoff policy around remote calls.
type RetryConfig struct {
	MaxRetries   int      `koanf:"max_retries"`
	InitialDelay Duration `koanf:"initial_delay"`
}

// ScrubConfig controls prompt scrubbing before text leaves the process.
type ScrubConfig struct {
	Enabled bool `koanf:"enabled"`
	Deep    bool `koanf:"deep"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9090,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Observability: ObservabilityConfig{
			ServiceName:  "campusconnect",
			OTLPEndpoint: "localhost:4317",
			OTLPProtocol: "grpc",
			OTLPInsecure: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		GenAI: GenAIConfig{
			Provider:    ProviderGemini,
			Model:       "gemini-3-flash-preview",
			BaseURL:     "https://generativelanguage.googleapis.com",
			Timeout:     Duration(30 * time.Second),
			RateLimit:   1.0,
			Burst:       5,
			Temperature: 0.7,
		},
		Retry: RetryConfig{
			MaxRetries:   4,
			InitialDelay: Duration(3 * time.Second),
		},
		Scrub: ScrubConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.http_port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	switch c.GenAI.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderDisabled, ProviderHeuristic:
	default:
		errs = append(errs, fmt.Errorf("genai.provider %q is not one of gemini, openai, disabled, heuristic", c.GenAI.Provider))
	}
	if c.GenAI.RateLimit < 0 {
		errs = append(errs, errors.New("genai.rate_limit cannot be negative"))
	}
	if c.GenAI.RateLimit > 0 && c.GenAI.Burst < 1 {
		errs = append(errs, errors.New("genai.burst must be at least 1 when rate limiting"))
	}

	if c.Retry.MaxRetries < 0 || c.Retry.MaxRetries > 10 {
		errs = append(errs, fmt.Errorf("retry.max_retries must be between 0 and 10, got %d", c.Retry.MaxRetries))
	}
	if c.Retry.InitialDelay.Duration() <= 0 {
		errs = append(errs, errors.New("retry.initial_delay must be positive"))
	}

	return errors.Join(errs...)
}

// RemoteEnabled reports whether a remote provider is selected.
func (c GenAIConfig) RemoteEnabled() bool {
	return c.Provider == ProviderGemini || c.Provider == ProviderOpenAI
}
