// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

gateway:
  request_timeout: "8s"
  referer: "https://example.com/watch"
  strip_markdown: true

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("expected http_addr '0.0.0.0:8080', got %q", cfg.Server.HTTPAddr)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("expected database path './test.db', got %q", cfg.Database.Path)
	}
	if cfg.Gateway.RequestTimeout != 8*time.Second {
		t.Errorf("expected request_timeout 8s, got %v", cfg.Gateway.RequestTimeout)
	}
	assert.Equal(t, "https://example.com/watch", cfg.Gateway.Referer)
	assert.True(t, cfg.Gateway.StripMarkdown)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", "database:\n  path: gw.db\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.Server.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.Gateway.RequestTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoad_TOML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "gateway.toml", `
[server]
http_addr = "127.0.0.1:9000"

[database]
path = "/tmp/spark.db"

[gateway]
request_timeout = "3s"

[tailscale]
enabled = true
hostname = "spark"
`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/spark.db", cfg.Database.Path)
	assert.Equal(t, 3*time.Second, cfg.Gateway.RequestTimeout)
	assert.True(t, cfg.Tailscale.Enabled)
	assert.Equal(t, "spark", cfg.Tailscale.Hostname)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("SPARK_TEST_SECRET", "s3cret")
	t.Setenv("SPARK_TEST_DB", "/var/lib/spark/gw.db")

	cfg, err := Load(writeConfig(t, "config.yaml", `
database:
  path: "${SPARK_TEST_DB}"
auth:
  jwt_secret: "${SPARK_TEST_SECRET}"
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/spark/gw.db", cfg.Database.Path)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	_, err := Load(writeConfig(t, "config.yaml", `
database:
  path: "${SPARK_TEST_DEFINITELY_UNSET}"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path is required")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"missing database", "c.yaml", "server:\n  http_addr: x\n", "database.path is required"},
		{"bad duration", "c.yaml", "database:\n  path: a\ngateway:\n  request_timeout: soon\n", "parsing request_timeout"},
		{"bad format", "c.yaml", "database:\n  path: a\nlogging:\n  format: xml\n", "logging.format"},
		{"tailscale without hostname", "c.yaml", "database:\n  path: a\ntailscale:\n  enabled: true\n", "tailscale.hostname"},
		{"invalid yaml", "c.yaml", "database: [", "parsing config file"},
		{"invalid toml", "c.toml", "[database\npath=", "parsing config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.content))
			require.Error(t, err)
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("SPARK_CONFIG", "/etc/spark.yaml")
	assert.Equal(t, "/etc/spark.yaml", DefaultPath())

	t.Setenv("SPARK_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "spark", "gateway.yaml"), DefaultPath())
}
