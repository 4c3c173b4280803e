// ABOUTME: SQLite implementation for the chat exchange audit log
// ABOUTME: Stores per-request outcome metadata and aggregates it for the stats endpoint

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// exchangeTimeFormat is fixed width so created_at sorts lexicographically.
const exchangeTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SaveExchange stores an exchange record.
func (s *SQLiteStore) SaveExchange(ctx context.Context, ex *Exchange) error {
	query := `
		INSERT INTO exchanges (
			id, provider, model, message_count, outcome,
			status_code, reply_chars, duration_ms, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		ex.ID,
		ex.Provider,
		ex.Model,
		ex.MessageCount,
		string(ex.Outcome),
		ex.StatusCode,
		ex.ReplyChars,
		ex.DurationMS,
		ex.CreatedAt.UTC().Format(exchangeTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting exchange: %w", err)
	}

	s.logger.Debug("saved exchange",
		"id", ex.ID,
		"provider", ex.Provider,
		"outcome", ex.Outcome,
		"duration_ms", ex.DurationMS,
	)
	return nil
}

// ListExchanges returns the most recent exchanges, newest first.
// If limit is 0 or negative, a default limit of 50 is used.
func (s *SQLiteStore) ListExchanges(ctx context.Context, limit int) ([]*Exchange, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, provider, model, message_count, outcome,
		       status_code, reply_chars, duration_ms, created_at
		FROM exchanges
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying exchanges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var exchanges []*Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		exchanges = append(exchanges, ex)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating exchange rows: %w", err)
	}

	return exchanges, nil
}

// GetExchangeStats returns exchange counts per outcome with optional filters.
func (s *SQLiteStore) GetExchangeStats(ctx context.Context, filter ExchangeFilter) (*ExchangeStats, error) {
	query := `
		SELECT outcome, COUNT(*), COALESCE(SUM(duration_ms), 0)
		FROM exchanges
		WHERE 1=1
	`
	args := []any{}

	if filter.Provider != nil {
		query += " AND provider = ?"
		args = append(args, *filter.Provider)
	}
	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC().Format(exchangeTimeFormat))
	}
	if filter.Until != nil {
		query += " AND created_at < ?"
		args = append(args, filter.Until.UTC().Format(exchangeTimeFormat))
	}
	query += " GROUP BY outcome"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying exchange stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := &ExchangeStats{ByOutcome: make(map[Outcome]int64)}
	var totalDuration int64
	for rows.Next() {
		var outcome string
		var count, duration int64
		if err := rows.Scan(&outcome, &count, &duration); err != nil {
			return nil, fmt.Errorf("scanning exchange stats: %w", err)
		}
		stats.ByOutcome[Outcome(outcome)] = count
		stats.Total += count
		totalDuration += duration
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating exchange stats: %w", err)
	}

	if stats.Total > 0 {
		stats.AvgDurationMS = float64(totalDuration) / float64(stats.Total)
	}
	return stats, nil
}

func scanExchange(rows *sql.Rows) (*Exchange, error) {
	var ex Exchange
	var outcome, createdAt string

	if err := rows.Scan(
		&ex.ID,
		&ex.Provider,
		&ex.Model,
		&ex.MessageCount,
		&outcome,
		&ex.StatusCode,
		&ex.ReplyChars,
		&ex.DurationMS,
		&createdAt,
	); err != nil {
		return nil, fmt.Errorf("scanning exchange row: %w", err)
	}

	ex.Outcome = Outcome(outcome)

	var err error
	ex.CreatedAt, err = time.Parse(exchangeTimeFormat, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &ex, nil
}
