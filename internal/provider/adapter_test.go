// ABOUTME: Tests for provider request building and response parsing
// ABOUTME: Covers both dialects, auth headers, web search tools, and error envelopes

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/spark-gateway/internal/transcript"
)

func testConfig(kind Kind) Config {
	key := "sk-test"
	p := ProfileFor(kind)
	return Config{
		Provider:      kind,
		ProviderName:  p.DisplayName,
		APIKey:        &key,
		BaseURL:       p.BaseURL,
		Model:         p.Model,
		SystemMessage: "be brief",
	}
}

var hello = []transcript.Message{
	{Role: transcript.RoleUser, Content: "Hi"},
	{Role: transcript.RoleAssistant, Content: "Hello"},
	{Role: transcript.RoleUser, Content: "Weather?"},
}

func decodeBody(t *testing.T, req *Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &body))
	return body
}

func TestAnthropic_BuildRequest(t *testing.T) {
	reg := NewRegistry(Options{})
	req, err := reg.For(Claude).BuildRequest(hello, testConfig(Claude))
	require.NoError(t, err)

	assert.Equal(t, "https://api.anthropic.com/v1/messages", req.URL)
	assert.Equal(t, "sk-test", req.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", req.Header.Get("anthropic-version"))
	assert.Empty(t, req.Header.Get("Authorization"))

	body := decodeBody(t, req)
	assert.Equal(t, "claude-haiku-4-5", body["model"])
	assert.Equal(t, float64(256), body["max_tokens"])
	assert.Equal(t, "be brief", body["system"])
	assert.NotContains(t, body, "tools")

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, map[string]any{"role": "user", "content": "Hi"}, msgs[0])
}

func TestAnthropic_BuildRequest_WebSearch(t *testing.T) {
	cfg := testConfig(Claude)
	cfg.WebSearchEnabled = true

	req, err := NewRegistry(Options{}).For(Claude).BuildRequest(hello, cfg)
	require.NoError(t, err)

	body := decodeBody(t, req)
	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, map[string]any{
		"type":     "web_search_20250305",
		"name":     "web_search",
		"max_uses": float64(5),
	}, tools[0])
}

func TestAnthropic_BuildRequest_EmptyTranscript(t *testing.T) {
	req, err := NewRegistry(Options{}).For(Claude).BuildRequest(nil, testConfig(Claude))
	require.NoError(t, err)
	assert.Contains(t, string(req.Body), `"messages":[]`)
}

func TestAnthropic_ParseResponse(t *testing.T) {
	a := NewRegistry(Options{}).For(Claude)

	text, err := a.ParseResponse(200, []byte(`{"content":[{"type":"text","text":"Hello"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)

	text, err = a.ParseResponse(200, []byte(`{"content":[
		{"type":"text","text":"Let me check."},
		{"type":"server_tool_use","id":"x","name":"web_search"},
		{"type":"web_search_tool_result","content":[]},
		{"type":"text","text":"It is sunny."}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, "Let me check.\n\nIt is sunny.", text)

	text, err = a.ParseResponse(200, []byte(`{"content":[{"type":"server_tool_use"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "\n\n", text)
	assert.Empty(t, strings.TrimSpace(text))

	text, err = a.ParseResponse(200, []byte(`{"content":[]}`))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestOpenAI_BuildRequest(t *testing.T) {
	for _, kind := range []Kind{OpenAI, Grok, Custom} {
		t.Run(string(kind), func(t *testing.T) {
			req, err := NewRegistry(Options{}).For(kind).BuildRequest(hello, testConfig(kind))
			require.NoError(t, err)

			assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
			assert.Empty(t, req.Header.Get("HTTP-Referer"))
			assert.Empty(t, req.Header.Get("x-api-key"))

			body := decodeBody(t, req)
			assert.Equal(t, float64(256), body["max_tokens"])
			assert.NotContains(t, body, "system")
			assert.NotContains(t, body, "tools")

			msgs := body["messages"].([]any)
			require.Len(t, msgs, 4)
			assert.Equal(t, map[string]any{"role": "system", "content": "be brief"}, msgs[0])
			assert.Equal(t, map[string]any{"role": "user", "content": "Weather?"}, msgs[3])
		})
	}
}

func TestOpenAI_WebSearchIgnored(t *testing.T) {
	cfg := testConfig(OpenAI)
	cfg.WebSearchEnabled = true
	req, err := NewRegistry(Options{}).For(OpenAI).BuildRequest(hello, cfg)
	require.NoError(t, err)
	assert.NotContains(t, decodeBody(t, req), "tools")
}

func TestOpenRouter_Referer(t *testing.T) {
	req, err := NewRegistry(Options{}).For(OpenRouter).BuildRequest(hello, testConfig(OpenRouter))
	require.NoError(t, err)
	assert.Equal(t, DefaultReferer, req.Header.Get("HTTP-Referer"))
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))

	req, err = NewRegistry(Options{Referer: "https://example.com/app"}).For(OpenRouter).BuildRequest(hello, testConfig(OpenRouter))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/app", req.Header.Get("HTTP-Referer"))
}

func TestOpenAI_ParseResponse(t *testing.T) {
	a := NewRegistry(Options{}).For(OpenAI)

	text, err := a.ParseResponse(200, []byte(`{"choices":[{"message":{"role":"assistant","content":"Hi!"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Hi!", text)

	text, err = a.ParseResponse(200, []byte(`{"choices":[]}`))
	require.NoError(t, err)
	assert.Empty(t, text)

	text, err = a.ParseResponse(200, []byte(`{"choices":[{"message":{"content":null}}]}`))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestParseResponse_Malformed(t *testing.T) {
	reg := NewRegistry(Options{})
	for _, kind := range Kinds() {
		_, err := reg.For(kind).ParseResponse(200, []byte("<html>oops</html>"))
		assert.ErrorIs(t, err, ErrMalformedResponse, "kind %s", kind)
	}
}

func TestParseResponse_APIError(t *testing.T) {
	a := NewRegistry(Options{}).For(Claude)

	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error envelope", 401, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, "Error 401: invalid x-api-key"},
		{"plain body", 502, "Bad Gateway", "Error 502: Bad Gateway"},
		{"json without message", 429, `{"error":"slow down"}`, `Error 429: {"error":"slow down"}`},
		{"empty message", 500, `{"error":{"message":""}}`, `Error 500: {"error":{"message":""}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.ParseResponse(tt.status, []byte(tt.body))
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Error())
		})
	}
}

func TestRequest_NewHTTPRequest(t *testing.T) {
	req, err := NewRegistry(Options{}).For(Grok).BuildRequest(hello, testConfig(Grok))
	require.NoError(t, err)

	httpReq, err := req.NewHTTPRequest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "POST", httpReq.Method)
	assert.Equal(t, "https://api.x.ai/v1/chat/completions", httpReq.URL.String())
	assert.Equal(t, "application/json", httpReq.Header.Get("Content-Type"))
	assert.Equal(t, "Bearer sk-test", httpReq.Header.Get("Authorization"))
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("openrouter")
	assert.True(t, ok)
	assert.Equal(t, OpenRouter, k)

	k, ok = ParseKind("mistral")
	assert.False(t, ok)
	assert.Equal(t, Custom, k)
}

func TestProfiles_OnePerKind(t *testing.T) {
	for _, k := range Kinds() {
		p := ProfileFor(k)
		assert.Equal(t, k, p.Kind)
		if k == Custom {
			assert.Empty(t, p.BaseURL)
			assert.Empty(t, p.Model)
			continue
		}
		assert.NotEmpty(t, p.BaseURL)
		assert.NotEmpty(t, p.Model)
		assert.NotEmpty(t, p.DisplayName)
	}
}

func TestConfig_LogValueHidesKey(t *testing.T) {
	cfg := testConfig(Claude)

	var buf bytes.Buffer
	slog.New(slog.NewJSONHandler(&buf, nil)).Info("resolved", "config", cfg)

	assert.NotContains(t, buf.String(), "sk-test")
	assert.Contains(t, buf.String(), `"has_api_key":true`)
	assert.Equal(t, "sk-test", cfg.Key())

	cfg.APIKey = nil
	assert.False(t, cfg.HasAPIKey())
	assert.Equal(t, "", cfg.Key())
}
