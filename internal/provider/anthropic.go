// ABOUTME: Anthropic Messages API dialect used by the claude provider
// ABOUTME: Top-level system field, x-api-key auth, optional server-side web search tool

package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/2389/spark-gateway/internal/transcript"
)

const (
	anthropicVersion = "2023-06-01"

	webSearchToolType = "web_search_20250305"
	webSearchToolName = "web_search"
	webSearchMaxUses  = 5
)

type anthropicTool struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	MaxUses int    `json:"max_uses"`
}

type anthropicRequest struct {
	Model     string               `json:"model"`
	MaxTokens int                  `json:"max_tokens"`
	System    string               `json:"system,omitempty"`
	Messages  []transcript.Message `json:"messages"`
	Tools     []anthropicTool      `json:"tools,omitempty"`
}

type anthropicAdapter struct{}

func (a *anthropicAdapter) BuildRequest(msgs []transcript.Message, cfg Config) (*Request, error) {
	body := anthropicRequest{
		Model:     cfg.Model,
		MaxTokens: MaxTokens,
		System:    cfg.SystemMessage,
		Messages:  nonNil(msgs),
	}
	if cfg.WebSearchEnabled {
		body.Tools = []anthropicTool{{
			Type:    webSearchToolType,
			Name:    webSearchToolName,
			MaxUses: webSearchMaxUses,
		}}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling anthropic request: %w", err)
	}

	header := http.Header{}
	header.Set("x-api-key", cfg.Key())
	header.Set("anthropic-version", anthropicVersion)

	return &Request{URL: cfg.BaseURL, Header: header, Body: data}, nil
}

// ParseResponse concatenates the text blocks of the content array. A server
// tool call splits the answer around it, so it contributes a paragraph break.
func (a *anthropicAdapter) ParseResponse(status int, body []byte) (string, error) {
	if err := checkStatus(status, body); err != nil {
		return "", err
	}

	var b strings.Builder
	gjson.GetBytes(body, "content").ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			b.WriteString(block.Get("text").String())
		case "server_tool_use":
			b.WriteString("\n\n")
		}
		return true
	})
	return b.String(), nil
}

func nonNil(msgs []transcript.Message) []transcript.Message {
	if msgs == nil {
		return []transcript.Message{}
	}
	return msgs
}
