// Package storage provides cart persistence backends.
//
// The durable backend is a SQLite database holding a single cart record:
// one fixed-key row whose payload is the JSON-encoded line items. SQLite
// gives the embedded client durable local state without running a server.
// Memory is an in-memory backend for tests and ephemeral sessions.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mkellner/storefront-engine/cart"
)

// cartRecordKey is the fixed key of the single persisted cart record.
const cartRecordKey = "cart_state"

// SQLite persists the cart to a local SQLite database file.
type SQLite struct {
	db *sql.DB
}

// Compile-time check that SQLite implements cart.Repository.
var _ cart.Repository = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at path and prepares the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS kv_state (
		key        TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare storage schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Save writes the cart record, replacing any previous state.
func (s *SQLite) Save(items []cart.LineItem) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode cart state: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO kv_state (key, payload, updated_at)
	VALUES (?, ?, datetime('now'))
	`
	_, err = s.db.Exec(query, cartRecordKey, string(payload))
	return err
}

// Load reads the persisted cart record. An absent record yields an empty
// cart; an undecodable payload is reported as cart.ErrCorrupt so the store
// can reset to empty.
func (s *SQLite) Load() ([]cart.LineItem, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM kv_state WHERE key = ?`, cartRecordKey,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var items []cart.LineItem
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", cart.ErrCorrupt, err)
	}
	return items, nil
}
