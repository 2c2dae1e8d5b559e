// Campusd serves the campusconnect match and greeting API over HTTP.
//
// Configuration is read from ~/.config/campusconnect/config.yaml (or the
// file named by -config) and CAMPUS_* environment variables. See
// internal/config for details.
//
// Usage:
//
//	# Start with defaults
//	campusd
//
//	# Use a specific file and provider
//	CAMPUS_GENAI_PROVIDER=openai campusd -config /etc/campusconnect/config.yaml
//
//	campusd version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/campusconnect/internal/config"
	"github.com/fyrsmithlabs/campusconnect/internal/credentials"
	"github.com/fyrsmithlabs/campusconnect/internal/genai"
	apihttp "github.com/fyrsmithlabs/campusconnect/internal/http"
	"github.com/fyrsmithlabs/campusconnect/internal/logging"
	"github.com/fyrsmithlabs/campusconnect/internal/matching"
	"github.com/fyrsmithlabs/campusconnect/internal/retry"
	"github.com/fyrsmithlabs/campusconnect/internal/secrets"
	"github.com/fyrsmithlabs/campusconnect/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  campusd [-config path]   Start the API server\n")
			fmt.Fprintf(os.Stderr, "  campusd version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("campusd: %v", err)
	}
}

func printVersion() {
	fmt.Printf("campusd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires every component and serves until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	ctx = logging.WithLogger(ctx, logger)

	if err := tel.Degraded(); err != nil {
		logger.Warn(ctx, "telemetry degraded, continuing without export", zap.Error(err))
	}

	logger.Info(ctx, "starting campusd",
		zap.String("version", version),
		zap.String("provider", cfg.GenAI.Provider),
		zap.String("model", cfg.GenAI.Model),
		zap.Int("port", cfg.Server.Port),
		zap.Int("max_retries", cfg.Retry.MaxRetries),
		zap.Duration("initial_delay", cfg.Retry.InitialDelay.Duration()),
	)

	svc, keys, err := buildService(ctx, cfg, tel, logger)
	if err != nil {
		return err
	}

	srv, err := apihttp.NewServer(apihttp.Options{
		Matcher: svc,
		Keys:    keys,
		Logger:  logger,
		Meter:   tel.Meter("github.com/fyrsmithlabs/campusconnect/internal/http"),
	}, apihttp.FromConfig(*cfg))
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info(context.Background(), "campusd stopped")
	return nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	lc.Level = level
	if cfg.Logging.Format != "" {
		lc.Format = cfg.Logging.Format
	}
	return logging.NewLogger(lc, nil)
}

// buildService assembles the matching service. A remote provider without a
// shared key still starts: users without a personal key get local results.
func buildService(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry, logger *logging.Logger) (*matching.Service, *credentials.Store, error) {
	base := genai.FromConfig(cfg.GenAI)

	fallback, err := genai.New(base)
	switch {
	case errors.Is(err, genai.ErrMissingAPIKey):
		logger.Warn(ctx, "no shared api key configured; remote generation only for users with a personal key",
			zap.String("provider", cfg.GenAI.Provider))
	case err != nil:
		return nil, nil, fmt.Errorf("creating %s generator: %w", cfg.GenAI.Provider, err)
	}

	scrubCfg := secrets.DefaultConfig()
	scrubCfg.Enabled = cfg.Scrub.Enabled
	scrubCfg.Deep = cfg.Scrub.Deep
	scrubber, err := secrets.New(scrubCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating scrubber: %w", err)
	}

	keys := credentials.NewStore()
	source := credentials.NewSource(keys, base, fallback)

	policy := retry.NewPolicy(
		retry.WithMaxRetries(cfg.Retry.MaxRetries),
		retry.WithInitialDelay(cfg.Retry.InitialDelay.Duration()),
	)

	svc := matching.NewService(source,
		matching.WithPolicy(policy),
		matching.WithScrubber(scrubber),
		matching.WithLogger(logger),
		matching.WithTracer(tel.Tracer("github.com/fyrsmithlabs/campusconnect/internal/matching")),
		matching.WithMetrics(matching.NewMetrics()),
	)
	return svc, keys, nil
}
