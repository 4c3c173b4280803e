// ABOUTME: OpenAI chat-completions dialect shared by openai, grok, openrouter and custom
// ABOUTME: Bearer auth, system prompt as the leading message, reply from choices[0]

package provider

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/2389/spark-gateway/internal/transcript"
)

type openAIRequest struct {
	Model     string               `json:"model"`
	MaxTokens int                  `json:"max_tokens"`
	Messages  []transcript.Message `json:"messages"`
}

type openAIAdapter struct {
	referer string
}

func (a *openAIAdapter) BuildRequest(msgs []transcript.Message, cfg Config) (*Request, error) {
	messages := make([]transcript.Message, 0, len(msgs)+1)
	if cfg.SystemMessage != "" {
		messages = append(messages, transcript.Message{Role: transcript.RoleSystem, Content: cfg.SystemMessage})
	}
	messages = append(messages, msgs...)

	data, err := json.Marshal(openAIRequest{
		Model:     cfg.Model,
		MaxTokens: MaxTokens,
		Messages:  messages,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling chat completion request: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.Key())
	if a.referer != "" {
		header.Set("HTTP-Referer", a.referer)
	}

	return &Request{URL: cfg.BaseURL, Header: header, Body: data}, nil
}

func (a *openAIAdapter) ParseResponse(status int, body []byte) (string, error) {
	if err := checkStatus(status, body); err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "choices.0.message.content").String(), nil
}
