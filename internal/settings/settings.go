// ABOUTME: Resolves persisted key-value settings into the per-request provider config
// ABOUTME: Also derives watch readiness and normalizes settings updates from the config page

package settings

import (
	"strings"

	"github.com/2389/spark-gateway/internal/provider"
	"github.com/2389/spark-gateway/internal/watch"
)

// Persisted setting keys.
const (
	KeyProvider         = "provider"
	KeyProviderName     = "provider_name"
	KeyAPIKey           = "api_key"
	KeyBaseURL          = "base_url"
	KeyModel            = "model"
	KeySystemMessage    = "system_message"
	KeyWebSearchEnabled = "web_search_enabled"
)

// Keys lists every persisted setting key.
var Keys = []string{
	KeyProvider,
	KeyProviderName,
	KeyAPIKey,
	KeyBaseURL,
	KeyModel,
	KeySystemMessage,
	KeyWebSearchEnabled,
}

// DefaultSystemMessage is used when no system message is persisted.
const DefaultSystemMessage = "You're running on a Pebble smartwatch. Please respond in plain text without any formatting, keeping your responses within 1-3 sentences."

// DefaultProviderName labels the provider when neither the user nor the
// profile names it.
const DefaultProviderName = "AI"

// SelectedKind returns the persisted provider, defaulting to claude. The
// bool is false when a value was persisted but is not a known provider.
func SelectedKind(persisted map[string]string) (provider.Kind, bool) {
	raw := persisted[KeyProvider]
	if raw == "" {
		return provider.DefaultKind, true
	}
	return provider.ParseKind(raw)
}

// Resolve computes the effective config for kind. Each field takes the
// persisted value when non-empty, then the provider default, then the
// global default.
func Resolve(persisted map[string]string, kind provider.Kind) provider.Config {
	profile := provider.ProfileFor(kind)

	cfg := provider.Config{
		Provider:         kind,
		ProviderName:     firstNonEmpty(persisted[KeyProviderName], profile.DisplayName, DefaultProviderName),
		BaseURL:          firstNonEmpty(persisted[KeyBaseURL], profile.BaseURL),
		Model:            firstNonEmpty(persisted[KeyModel], profile.Model),
		SystemMessage:    firstNonEmpty(persisted[KeySystemMessage], DefaultSystemMessage),
		WebSearchEnabled: persisted[KeyWebSearchEnabled] == "true",
	}
	if key, ok := persisted[KeyAPIKey]; ok && key != "" {
		cfg.APIKey = &key
	}
	return cfg
}

// Readiness derives the status sent to the watch. The gateway is ready once
// a non-blank API key is stored.
func Readiness(persisted map[string]string) watch.Status {
	return watch.Status{
		Ready:        strings.TrimSpace(persisted[KeyAPIKey]) != "",
		ProviderName: firstNonEmpty(persisted[KeyProviderName], DefaultProviderName),
	}
}

// Normalize applies the config page rules to an update: every known key
// with a non-blank value is stored verbatim, and every other known key is
// cleared. Unknown keys are ignored.
func Normalize(update map[string]string) (set map[string]string, clear []string) {
	set = make(map[string]string)
	for _, key := range Keys {
		value, ok := update[key]
		if ok && strings.TrimSpace(value) != "" {
			set[key] = value
			continue
		}
		clear = append(clear, key)
	}
	return set, clear
}

// Redact returns a copy of persisted safe to show or log.
func Redact(persisted map[string]string) map[string]string {
	out := make(map[string]string, len(persisted))
	for k, v := range persisted {
		if k == KeyAPIKey && v != "" {
			v = redactKey(v)
		}
		out[k] = v
	}
	return out
}

func redactKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
