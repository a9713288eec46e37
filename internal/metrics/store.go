package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"recipe-swiper/internal/query"

	"go.uber.org/zap"
)

// Store handles persistence of call records to SQLite.
type Store struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log, now: time.Now}
}

// Record saves a call to the database.
func (s *Store) Record(ctx context.Context, c Call) error {
	ts := c.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_calls (call_id, endpoint, cache_key, cached, failed, latency_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Endpoint, c.Key, boolToInt(c.Cached), boolToInt(c.Error != ""), c.Latency.Milliseconds(), ts.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record api call: %w", err)
	}
	return nil
}

// ObserveCall implements query.Observer. Failures are logged.
func (s *Store) ObserveCall(e query.CallEvent) {
	c := Call{ID: e.ID, Endpoint: e.Endpoint, Key: e.Key, Cached: e.Cached, Latency: e.Latency, Timestamp: e.At}
	if e.Err != nil {
		c.Error = e.Err.Error()
	}
	if err := s.Record(context.Background(), c); err != nil {
		s.log.Warn("failed to persist api call", zap.String("endpoint", e.Endpoint), zap.Error(err))
	}
}

// DailyUsage represents call totals for a single day.
type DailyUsage struct {
	Date     string `json:"date"`
	Total    int    `json:"total"`
	Cached   int    `json:"cached"`
	API      int    `json:"api"`
	Failed   int    `json:"failed"`
	AvgLatMS int    `json:"avgLatencyMs"`
}

// GetDailyUsage retrieves usage for the last N days, newest day first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := s.now().AddDate(0, 0, -days).UnixMilli()
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(timestamp / 1000, 'unixepoch') AS day,
		       COUNT(*),
		       SUM(cached),
		       SUM(failed),
		       CAST(COALESCE(AVG(CASE WHEN cached = 0 THEN latency_ms END), 0) AS INTEGER)
		FROM api_calls
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.Total, &u.Cached, &u.Failed, &u.AvgLatMS); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		u.API = u.Total - u.Cached
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := s.now().AddDate(0, 0, -olderThanDays).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_calls WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup api calls: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
