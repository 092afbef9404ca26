package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for index snapshots.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS sources (
  id              INTEGER PRIMARY KEY,
  key             TEXT NOT NULL UNIQUE,
  kind            TEXT NOT NULL,
  path            TEXT,
  exported_at     TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
  id                   INTEGER PRIMARY KEY,
  source_id            INTEGER NOT NULL REFERENCES sources(id),
  identifier           TEXT NOT NULL,
  signature            TEXT NOT NULL,
  category             TEXT NOT NULL,
  description          TEXT,
  is_static            BOOLEAN DEFAULT FALSE,
  available_range      TEXT,
  available_note       TEXT,
  deprecated_range     TEXT,
  deprecated_note      TEXT,
  start_line           INTEGER,
  start_col            INTEGER,
  end_line             INTEGER,
  end_col              INTEGER
);

CREATE TABLE IF NOT EXISTS overloads (
  id                   INTEGER PRIMARY KEY,
  item_id              INTEGER NOT NULL REFERENCES items(id),
  ordinal              INTEGER NOT NULL,
  signature            TEXT NOT NULL,
  description          TEXT,
  available_range      TEXT,
  available_note       TEXT,
  deprecated_range     TEXT,
  deprecated_note      TEXT
);

CREATE TABLE IF NOT EXISTS symbols (
  id               INTEGER PRIMARY KEY,
  source_id        INTEGER NOT NULL REFERENCES sources(id),
  name             TEXT NOT NULL,
  kind             INTEGER NOT NULL,
  start_line       INTEGER,
  start_col        INTEGER,
  end_line         INTEGER,
  end_col          INTEGER,
  parent_symbol_id INTEGER REFERENCES symbols(id)
);

CREATE TABLE IF NOT EXISTS diagnostics (
  id              INTEGER PRIMARY KEY,
  source_id       INTEGER NOT NULL REFERENCES sources(id),
  severity        INTEGER NOT NULL,
  message         TEXT NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT
);

CREATE INDEX IF NOT EXISTS idx_items_source ON items(source_id);
CREATE INDEX IF NOT EXISTS idx_items_identifier ON items(identifier);
CREATE INDEX IF NOT EXISTS idx_overloads_item ON overloads(item_id);
CREATE INDEX IF NOT EXISTS idx_symbols_source ON symbols(source_id);
CREATE INDEX IF NOT EXISTS idx_symbols_parent ON symbols(parent_symbol_id);
CREATE INDEX IF NOT EXISTS idx_diagnostics_source ON diagnostics(source_id);
`

// DeleteSourceData transactionally removes a source and everything recorded
// for it. Deletes in reverse-dependency order to respect FK constraints.
func (s *Store) DeleteSourceData(sourceID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT id FROM items WHERE source_id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("query items: %w", err)
	}
	var itemIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan item id: %w", err)
		}
		itemIDs = append(itemIDs, id)
	}
	rows.Close()

	if len(itemIDs) > 0 {
		q := "DELETE FROM overloads WHERE item_id IN (" + placeholderList(len(itemIDs)) + ")"
		if _, err := tx.Exec(q, int64sToArgs(itemIDs)...); err != nil {
			return fmt.Errorf("delete overloads: %w", err)
		}
	}

	// Children first so parent_symbol_id never dangles.
	if _, err := tx.Exec("DELETE FROM symbols WHERE source_id = ? AND parent_symbol_id IS NOT NULL", sourceID); err != nil {
		return fmt.Errorf("delete child symbols: %w", err)
	}
	for _, q := range []string{
		"DELETE FROM symbols WHERE source_id = ?",
		"DELETE FROM items WHERE source_id = ?",
		"DELETE FROM diagnostics WHERE source_id = ?",
		"DELETE FROM sources WHERE id = ?",
	} {
		if _, err := tx.Exec(q, sourceID); err != nil {
			return fmt.Errorf("delete source data: %w", err)
		}
	}
	return tx.Commit()
}

// GetMetadata returns the value stored under key, or "" when unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}
