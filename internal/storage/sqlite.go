package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cartsync/internal/logging"

	_ "modernc.org/sqlite" // registers the pure-Go "sqlite" driver
)

// DefaultDriver is the pure-Go SQLite driver name.
const DefaultDriver = "sqlite"

// Options configures a SQLiteStore.
type Options struct {
	Driver     string // "sqlite" (modernc) or "sqlite3" (mattn, cgo builds only)
	QuotaBytes int64  // per namespace, 0 = unlimited
}

// SQLiteStore implements KV on a single SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	path   string
	quota  int64
	closed bool
}

// NewSQLiteStore opens (or creates) the database at path and ensures the schema.
// path may be ":memory:".
func NewSQLiteStore(path string, opts Options) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryStorage, "NewSQLiteStore")
	defer timer.Stop()

	driver := opts.Driver
	if driver == "" {
		driver = DefaultDriver
	}

	logging.Storage("Opening guest storage at %s (driver=%s)", path, driver)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StorageDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StorageDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &SQLiteStore{db: db, path: path, quota: opts.QuotaBytes}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.StorageDebug("Guest storage schema ready")
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY(namespace, key)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}
	return nil
}

// Get returns the stored value or ErrNotFound.
func (s *SQLiteStore) Get(namespace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrUnavailable
	}

	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE namespace = ? AND key = ?", namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s/%s: %v", ErrUnavailable, namespace, key, err)
	}
	return value, nil
}

// Set upserts value, enforcing the namespace quota.
func (s *SQLiteStore) Set(namespace, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrUnavailable
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	if s.quota > 0 {
		var used int64
		err := tx.QueryRow(
			"SELECT COALESCE(SUM(LENGTH(value)), 0) FROM kv WHERE namespace = ? AND key != ?",
			namespace, key,
		).Scan(&used)
		if err != nil {
			return fmt.Errorf("%w: quota check: %v", ErrUnavailable, err)
		}
		if used+int64(len(value)) > s.quota {
			logging.StorageWarn("Quota exceeded for namespace %s: %d + %d > %d", namespace, used, len(value), s.quota)
			return ErrQuotaExceeded
		}
	}

	_, err = tx.Exec(
		`INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		namespace, key, value,
	)
	if err != nil {
		return fmt.Errorf("%w: set %s/%s: %v", ErrUnavailable, namespace, key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}

	logging.StorageDebug("Stored %s/%s (%d bytes)", namespace, key, len(value))
	return nil
}

// Delete removes the key; deleting an absent key is not an error.
func (s *SQLiteStore) Delete(namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrUnavailable
	}

	if _, err := s.db.Exec("DELETE FROM kv WHERE namespace = ? AND key = ?", namespace, key); err != nil {
		return fmt.Errorf("%w: delete %s/%s: %v", ErrUnavailable, namespace, key, err)
	}
	logging.StorageDebug("Deleted %s/%s", namespace, key)
	return nil
}

// Keys lists the keys of a namespace in order.
func (s *SQLiteStore) Keys(namespace string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrUnavailable
	}

	rows, err := s.db.Query("SELECT key FROM kv WHERE namespace = ? ORDER BY key", namespace)
	if err != nil {
		return nil, fmt.Errorf("%w: keys %s: %v", ErrUnavailable, namespace, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Path returns the database location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
