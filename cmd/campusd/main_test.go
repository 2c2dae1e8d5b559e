package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/campusconnect/internal/config"
	"github.com/fyrsmithlabs/campusconnect/internal/credentials"
	"github.com/fyrsmithlabs/campusconnect/internal/telemetry"
)

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "console"

	logger, err := newLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.Logging.Level = "loud"
	_, err = newLogger(cfg)
	assert.Error(t, err)
}

func TestBuildService_WithoutSharedKey(t *testing.T) {
	cfg := config.Default()
	cfg.GenAI.APIKey = ""

	logger, err := newLogger(cfg)
	require.NoError(t, err)

	svc, keys, err := buildService(context.Background(), cfg, nil, logger)
	require.NoError(t, err)
	assert.NotNil(t, svc)
	require.NotNil(t, keys)
	assert.NoError(t, keys.Set("u1", "personal-key"))
}

func TestBuildService_HeuristicRefusesPersonalKeys(t *testing.T) {
	cfg := config.Default()
	cfg.GenAI.Provider = config.ProviderHeuristic

	logger, err := newLogger(cfg)
	require.NoError(t, err)

	_, keys, err := buildService(context.Background(), cfg, nil, logger)
	require.NoError(t, err)
	assert.ErrorIs(t, keys.Set("u1", "personal-key"), credentials.ErrKeysUnsupported)
}

func TestBuildService_UnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.GenAI.Provider = "palm"

	logger, err := newLogger(cfg)
	require.NoError(t, err)

	_, _, err = buildService(context.Background(), cfg, (*telemetry.Telemetry)(nil), logger)
	assert.Error(t, err)
}

func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "campusconnect")
	require.NoError(t, os.MkdirAll(dir, 0o700))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	path := filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf("server:\n  http_host: 127.0.0.1\n  http_port: %d\ngenai:\n  provider: heuristic\n", port)
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, path) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
