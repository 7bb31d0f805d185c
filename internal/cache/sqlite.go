package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"grocat/backend"
)

// SQLiteStore keeps every snapshot document in a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and initializes the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates the snapshots table if it doesn't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			cache_key TEXT PRIMARY KEY,
			list_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			document TEXT NOT NULL,
			saved_at TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the snapshot for key; ok is false when no row exists.
func (s *SQLiteStore) Load(key Key) (*backend.Snapshot, bool, error) {
	var doc string
	err := s.db.QueryRow("SELECT document FROM snapshots WHERE cache_key = ?", key.String()).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var snap backend.Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return nil, false, fmt.Errorf("%w: invalid snapshot document for %s: %v", ErrCorrupt, key, err)
	}
	if snap.List.Items == nil {
		snap.List.Items = []backend.Item{}
	}
	return &snap, true, nil
}

// Save replaces the row for key.
func (s *SQLiteStore) Save(key Key, snap *backend.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO snapshots (cache_key, list_id, kind, document, saved_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET document = excluded.document, saved_at = excluded.saved_at`,
		key.String(), key.ListID, string(key.Kind), string(doc), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Delete removes the row for key.
func (s *SQLiteStore) Delete(key Key) error {
	_, err := s.db.Exec("DELETE FROM snapshots WHERE cache_key = ?", key.String())
	return err
}

// Clear removes every snapshot.
func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM snapshots")
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
