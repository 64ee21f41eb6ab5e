package store

import (
	"database/sql"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db   *sql.DB
	cfg  config
	once sync.Once
}

var _ Store = (*sqliteStore)(nil)

// NewSQLite returns a Store backed by SQLite.
// If dbPath is empty or ":memory:", an in-memory database is used.
func NewSQLite(dbPath string, opts ...Option) (Store, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrent performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db, cfg: applyOptions(opts)}, nil
}

func (s *sqliteStore) Put(key string, value []byte) error {
	if s.cfg.maxBytes > 0 {
		var used int64
		err := s.db.QueryRow(
			`SELECT COALESCE(SUM(length(key) + length(value)), 0) FROM kv WHERE key != ?`, key,
		).Scan(&used)
		if err != nil {
			return err
		}
		if used+int64(len(key)+len(value)) > s.cfg.maxBytes {
			return ErrQuotaExceeded
		}
	}
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	)
	return err
}

func (s *sqliteStore) Get(key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *sqliteStore) Delete(key string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *sqliteStore) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT key FROM kv WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *sqliteStore) Len() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&n)
	return n, err
}

func (s *sqliteStore) Close() error {
	var dbErr error
	s.once.Do(func() {
		dbErr = s.db.Close()
	})
	return dbErr
}
