// ABOUTME: Adapter contract shared by every provider dialect plus the request/error types
// ABOUTME: Registry maps each Kind to the adapter that speaks its wire protocol

package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/2389/spark-gateway/internal/transcript"
)

// MaxTokens caps every completion; replies must fit on a watch screen.
const MaxTokens = 256

// ErrMalformedResponse is returned when a successful response body is not valid JSON.
var ErrMalformedResponse = errors.New("malformed provider response")

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.Status, e.Message)
}

// Request is a provider call ready to be sent.
type Request struct {
	URL    string
	Header http.Header
	Body   []byte
}

// NewHTTPRequest builds the POST request bound to ctx.
func (r *Request) NewHTTPRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("creating provider request: %w", err)
	}
	req.Header = r.Header.Clone()
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Adapter translates between the transcript and one provider dialect.
type Adapter interface {
	// BuildRequest produces the HTTP call for msgs under cfg.
	BuildRequest(msgs []transcript.Message, cfg Config) (*Request, error)
	// ParseResponse extracts reply text. Non-2xx statuses yield *APIError and
	// undecodable bodies yield ErrMalformedResponse. The text may be empty.
	ParseResponse(status int, body []byte) (string, error)
}

// Options tune adapter construction.
type Options struct {
	// Referer is sent as HTTP-Referer to OpenRouter to identify the client app.
	Referer string
}

// DefaultReferer identifies this gateway to OpenRouter.
const DefaultReferer = "https://github.com/breitburg/claude-for-pebble"

// Registry holds one adapter per provider.
type Registry struct {
	adapters map[Kind]Adapter
}

// NewRegistry builds adapters for every Kind.
func NewRegistry(opts Options) *Registry {
	if opts.Referer == "" {
		opts.Referer = DefaultReferer
	}

	chat := &openAIAdapter{}
	return &Registry{
		adapters: map[Kind]Adapter{
			Claude:     &anthropicAdapter{},
			OpenAI:     chat,
			Grok:       chat,
			Custom:     chat,
			OpenRouter: &openAIAdapter{referer: opts.Referer},
		},
	}
}

// For returns the adapter for k. Unknown kinds use the Custom adapter.
func (r *Registry) For(k Kind) Adapter {
	if a, ok := r.adapters[k]; ok {
		return a
	}
	return r.adapters[Custom]
}

// checkStatus converts a non-2xx response into an *APIError and rejects
// bodies that are not JSON.
func checkStatus(status int, body []byte) error {
	if status < 200 || status > 299 {
		return &APIError{Status: status, Message: errorMessage(body)}
	}
	if !gjson.ValidBytes(body) {
		return ErrMalformedResponse
	}
	return nil
}

// errorMessage prefers error.message from a JSON error envelope, otherwise
// the raw body text.
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		msg := gjson.GetBytes(body, "error.message")
		if msg.Type == gjson.String && msg.Str != "" {
			return msg.Str
		}
	}
	return string(body)
}
