// Package storage persists per-user workflow state.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Key names a persisted value of a user.
type Key string

const (
	KeyIngredients    Key = "availableIngredients"
	KeyPreferences    Key = "dietaryPreferences"
	KeySavedRecipes   Key = "savedRecipes"
	KeySkippedRecipes Key = "skippedRecipes"
	KeyBudget         Key = "userBudget"
)

// StateStore keeps JSON values per (user, key) in the user_state table.
type StateStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewStateStore creates a store on an already migrated database.
func NewStateStore(db *sql.DB) *StateStore {
	return &StateStore{db: db, now: time.Now}
}

// Load decodes the stored value into dst and reports whether one existed.
func (s *StateStore) Load(ctx context.Context, user string, key Key, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM user_state WHERE user_id = ? AND key = ?`, user, string(key),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Save encodes v and stores it.
func (s *StateStore) Save(ctx context.Context, user string, key Key, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.SaveRaw(ctx, user, key, raw)
}

// SaveRaw stores an already encoded value.
func (s *StateStore) SaveRaw(ctx context.Context, user string, key Key, raw []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_state (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		user, string(key), string(raw), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Delete removes a stored value.
func (s *StateStore) Delete(ctx context.Context, user string, key Key) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_state WHERE user_id = ? AND key = ?`, user, string(key)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
