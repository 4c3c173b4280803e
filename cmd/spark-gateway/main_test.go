// ABOUTME: Tests for CLI helpers and the watch simulator
// ABOUTME: Runs the chat loop end to end against an in-process gateway and fake provider

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/spark-gateway/internal/config"
	"github.com/2389/spark-gateway/internal/gateway"
	"github.com/2389/spark-gateway/internal/settings"
	"github.com/2389/spark-gateway/internal/store"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
}

func TestParseAssignments(t *testing.T) {
	update, err := parseAssignments([]string{"provider=grok", "api_key=xai=with=equals", "model="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"provider": "grok",
		"api_key":  "xai=with=equals",
		"model":    "",
	}, update)

	_, err = parseAssignments([]string{"provider"})
	assert.ErrorContains(t, err, "expected key=value")

	_, err = parseAssignments([]string{"temperature=1"})
	assert.ErrorContains(t, err, "unknown setting")
}

func TestRenderConfig_Loads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	content := renderConfig(initAnswers{
		HTTPAddr:       "127.0.0.1:9999",
		DBPath:         "/tmp/spark/gateway.db",
		JWTSecret:      "c2VjcmV0",
		RequestTimeout: "7s",
		StripMarkdown:  true,
		LogLevel:       "debug",
		LogFormat:      "json",
	})
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/spark/gateway.db", cfg.Database.Path)
	assert.Equal(t, "c2VjcmV0", cfg.Auth.JWTSecret)
	assert.Equal(t, 7*time.Second, cfg.Gateway.RequestTimeout)
	assert.True(t, cfg.Gateway.StripMarkdown)
	assert.False(t, cfg.Tailscale.Enabled)
}

func TestRenderConfig_Tailscale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	content := renderConfig(initAnswers{
		Tailscale:      true,
		TSHostname:     "spark",
		TSFunnel:       true,
		DBPath:         "gw.db",
		RequestTimeout: "5s",
		LogLevel:       "info",
		LogFormat:      "text",
	})
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Tailscale.Enabled)
	assert.True(t, cfg.Tailscale.Funnel)
	assert.Equal(t, "spark", cfg.Tailscale.Hostname)
	assert.Empty(t, cfg.Server.HTTPAddr)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestReadReply(t *testing.T) {
	stream := "event: RESPONSE_TEXT\ndata: {\"RESPONSE_TEXT\":\"Hi there\"}\n\nevent: RESPONSE_END\ndata: {\"RESPONSE_END\":1}\n\n"
	text, err := readReply(strings.NewReader(stream))
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)

	_, err = readReply(strings.NewReader("event: RESPONSE_TEXT\ndata: {\"RESPONSE_TEXT\":\"cut\"}\n\n"))
	assert.ErrorContains(t, err, "before RESPONSE_END")

	_, err = readReply(strings.NewReader("data: {\"RESPONSE_END\":1}\n\n"))
	assert.ErrorContains(t, err, "without text")
}

// newTestServer runs a gateway in-process against a fake OpenAI-dialect provider
// that echoes how many messages it received.
func newTestServer(t *testing.T) (*httptest.Server, *[]int) {
	t.Helper()

	var counts []int
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []map[string]string `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		counts = append(counts, len(body.Messages))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"reply"}}]}`))
	}))
	t.Cleanup(provider.Close)

	s := store.NewMockStore()
	require.NoError(t, s.ApplySettings(context.Background(), map[string]string{
		settings.KeyProvider: "custom",
		settings.KeyAPIKey:   "sk",
		settings.KeyBaseURL:  provider.URL,
	}, nil))

	cfg := &config.Config{Gateway: config.GatewayConfig{RequestTimeout: 2 * time.Second}}
	gw := gateway.NewWithStore(cfg, s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	return srv, &counts
}

func TestChatLoop_KeepsRollingHistory(t *testing.T) {
	srv, counts := newTestServer(t)
	c := &apiClient{baseURL: srv.URL, http: srv.Client()}

	var input strings.Builder
	for i := 0; i < 7; i++ {
		input.WriteString("question\n")
	}
	input.WriteString("\n")

	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), c, strings.NewReader(input.String()), &out))

	assert.Equal(t, 7, strings.Count(out.String(), "reply"))
	// One system message plus 1, 3, 5, 7, 9, then capped at 10 turns.
	assert.Equal(t, []int{2, 4, 6, 8, 10, 11, 11}, *counts)
}

func TestAPIClient_SettingsRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	c := &apiClient{baseURL: srv.URL, http: srv.Client()}
	ctx := context.Background()

	var status map[string]any
	require.NoError(t, c.call(ctx, http.MethodPost, "/api/settings", map[string]string{
		"provider_name": "Buddy",
	}, &status))
	assert.Equal(t, float64(0), status["READY_STATUS"])
	assert.Equal(t, "Buddy", status["PROVIDER_NAME"])

	var persisted map[string]string
	require.NoError(t, c.call(ctx, http.MethodGet, "/api/settings", nil, &persisted))
	assert.Equal(t, map[string]string{"provider_name": "Buddy"}, persisted)
}

func TestAPIClient_ErrorBody(t *testing.T) {
	srv, _ := newTestServer(t)
	c := &apiClient{baseURL: srv.URL, http: srv.Client()}

	err := c.call(context.Background(), http.MethodGet, "/api/exchanges?limit=x", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit must be a non-negative integer")
}
