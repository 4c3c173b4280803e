// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu        sync.RWMutex
	settings  map[string]string
	exchanges []*Exchange

	// GetSettingsErr, when set, is returned by GetSettings.
	GetSettingsErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		settings: make(map[string]string),
	}
}

// GetSettings returns a copy of the stored settings.
func (m *MockStore) GetSettings(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetSettingsErr != nil {
		return nil, m.GetSettingsErr
	}

	out := make(map[string]string, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out, nil
}

// ApplySettings stores set and removes clear.
func (m *MockStore) ApplySettings(ctx context.Context, set map[string]string, clear []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range set {
		m.settings[k] = v
	}
	for _, k := range clear {
		delete(m.settings, k)
	}
	return nil
}

// SaveExchange records an exchange.
func (m *MockStore) SaveExchange(ctx context.Context, ex *Exchange) error {
	if ex == nil {
		return errors.New("nil exchange")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Make a copy to avoid external modification
	e := *ex
	m.exchanges = append(m.exchanges, &e)
	return nil
}

// ListExchanges returns exchanges newest first.
func (m *MockStore) ListExchanges(ctx context.Context, limit int) ([]*Exchange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Exchange, len(m.exchanges))
	copy(out, m.exchanges)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetExchangeStats aggregates stored exchanges.
func (m *MockStore) GetExchangeStats(ctx context.Context, filter ExchangeFilter) (*ExchangeStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &ExchangeStats{ByOutcome: make(map[Outcome]int64)}
	var totalDuration int64
	for _, ex := range m.exchanges {
		if filter.Provider != nil && ex.Provider != *filter.Provider {
			continue
		}
		if filter.Since != nil && ex.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && !ex.CreatedAt.Before(*filter.Until) {
			continue
		}
		stats.ByOutcome[ex.Outcome]++
		stats.Total++
		totalDuration += ex.DurationMS
	}
	if stats.Total > 0 {
		stats.AvgDurationMS = float64(totalDuration) / float64(stats.Total)
	}
	return stats, nil
}

// Exchanges returns every recorded exchange in insertion order.
func (m *MockStore) Exchanges() []*Exchange {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Exchange, len(m.exchanges))
	copy(out, m.exchanges)
	return out
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store interface
var _ Store = (*MockStore)(nil)
