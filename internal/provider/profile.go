// ABOUTME: Provider identities, their built-in defaults, and the resolved per-request config
// ABOUTME: One Profile per Kind; Config is the value every adapter builds requests from

package provider

import (
	"log/slog"
	"strings"
)

// Kind identifies a supported provider.
type Kind string

const (
	Claude     Kind = "claude"
	OpenAI     Kind = "openai"
	OpenRouter Kind = "openrouter"
	Grok       Kind = "grok"
	Custom     Kind = "custom"
)

// DefaultKind is selected when no provider has been persisted.
const DefaultKind = Claude

// Dialect is the wire protocol family a provider speaks.
type Dialect string

const (
	DialectAnthropic Dialect = "anthropic"
	DialectOpenAI    Dialect = "openai"
)

// Profile holds the static facts about a provider.
type Profile struct {
	Kind        Kind
	DisplayName string
	BaseURL     string
	Model       string
	Dialect     Dialect
	// SupportsWebSearch reports whether WebSearchEnabled changes the request.
	SupportsWebSearch bool
}

var profiles = map[Kind]Profile{
	Claude: {
		Kind:              Claude,
		DisplayName:       "Claude",
		BaseURL:           "https://api.anthropic.com/v1/messages",
		Model:             "claude-haiku-4-5",
		Dialect:           DialectAnthropic,
		SupportsWebSearch: true,
	},
	OpenAI: {
		Kind:        OpenAI,
		DisplayName: "ChatGPT",
		BaseURL:     "https://api.openai.com/v1/chat/completions",
		Model:       "gpt-4o-mini",
		Dialect:     DialectOpenAI,
	},
	OpenRouter: {
		Kind:        OpenRouter,
		DisplayName: "OpenRouter",
		BaseURL:     "https://openrouter.ai/api/v1/chat/completions",
		Model:       "anthropic/claude-3.5-haiku",
		Dialect:     DialectOpenAI,
	},
	Grok: {
		Kind:        Grok,
		DisplayName: "Grok",
		BaseURL:     "https://api.x.ai/v1/chat/completions",
		Model:       "grok-2-latest",
		Dialect:     DialectOpenAI,
	},
	// Custom endpoints must supply everything themselves.
	Custom: {
		Kind:    Custom,
		Dialect: DialectOpenAI,
	},
}

// Kinds lists every supported provider in display order.
func Kinds() []Kind {
	return []Kind{Claude, OpenAI, OpenRouter, Grok, Custom}
}

// ParseKind maps a persisted provider string to a Kind. Unknown values map
// to Custom and report false.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.TrimSpace(s))
	if _, ok := profiles[k]; ok {
		return k, true
	}
	return Custom, false
}

// ProfileFor returns the built-in profile for k, falling back to Custom.
func ProfileFor(k Kind) Profile {
	if p, ok := profiles[k]; ok {
		return p
	}
	return profiles[Custom]
}

// Config is the effective configuration for one request, resolved from
// persisted settings and built-in defaults.
type Config struct {
	Provider     Kind
	ProviderName string
	// APIKey is nil when no key was persisted. An absent key never becomes "".
	APIKey           *string
	BaseURL          string
	Model            string
	SystemMessage    string
	WebSearchEnabled bool
}

// HasAPIKey reports whether a key is configured.
func (c Config) HasAPIKey() bool {
	return c.APIKey != nil
}

// Key returns the API key or "" when absent.
func (c Config) Key() string {
	if c.APIKey == nil {
		return ""
	}
	return *c.APIKey
}

// LogValue implements slog.LogValuer so the key never reaches the logs.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", string(c.Provider)),
		slog.String("provider_name", c.ProviderName),
		slog.Bool("has_api_key", c.HasAPIKey()),
		slog.String("base_url", c.BaseURL),
		slog.String("model", c.Model),
		slog.Bool("web_search", c.WebSearchEnabled),
	)
}
