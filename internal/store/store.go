// ABOUTME: Store interfaces and data types for spark-gateway persistence
// ABOUTME: Defines the settings key-value store and the chat exchange audit log

package store

import (
	"context"
	"time"
)

// SettingsStore persists the flat key-value settings produced by the config page.
type SettingsStore interface {
	// GetSettings returns every persisted setting. An empty store yields an empty map.
	GetSettings(ctx context.Context) (map[string]string, error)

	// ApplySettings stores set and removes clear in a single transaction.
	ApplySettings(ctx context.Context, set map[string]string, clear []string) error
}

// Outcome classifies how a chat exchange ended.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeEmpty        Outcome = "empty"
	OutcomeHTTPError    Outcome = "http_error"
	OutcomeParseError   Outcome = "parse_error"
	OutcomeNetworkError Outcome = "network_error"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeNoAPIKey     Outcome = "no_api_key"
)

// Exchange records the metadata of one chat request. Transcript and reply
// text are never stored.
type Exchange struct {
	ID           string
	Provider     string
	Model        string
	MessageCount int
	Outcome      Outcome
	StatusCode   int // 0 when no HTTP response was received
	ReplyChars   int
	DurationMS   int64
	CreatedAt    time.Time
}

// ExchangeFilter narrows exchange queries. Nil fields are ignored.
type ExchangeFilter struct {
	Provider *string
	Since    *time.Time
	Until    *time.Time
}

// ExchangeStats aggregates exchanges by outcome.
type ExchangeStats struct {
	Total         int64
	ByOutcome     map[Outcome]int64
	AvgDurationMS float64
}

// ExchangeStore records and queries chat exchanges.
type ExchangeStore interface {
	SaveExchange(ctx context.Context, ex *Exchange) error
	ListExchanges(ctx context.Context, limit int) ([]*Exchange, error)
	GetExchangeStats(ctx context.Context, filter ExchangeFilter) (*ExchangeStats, error)
}

// Store combines every persistence concern of the gateway.
type Store interface {
	SettingsStore
	ExchangeStore
	Close() error
}
