package cache

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

const memoryFilename = "file::memory:?cache=shared"

type SQLiteStorage struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStorage opens the storage with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteStorage(filename string) (SQLiteStorage, error) {
	if filename == "" {
		filename = memoryFilename
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return SQLiteStorage{}, fmt.Errorf("open %s: %w", filename, err)
	}
	// the in-memory db only lives as long as a connection uses it
	if filename == memoryFilename {
		db.SetMaxOpenConns(1)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS stores (
			name TEXT PRIMARY KEY,
			created_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			store TEXT NOT NULL,
			key TEXT NOT NULL,
			requested_at INTEGER,
			received_at INTEGER,
			bytes BLOB,
			PRIMARY KEY (store, key)
		)`,
		"PRAGMA journal_mode=WAL",
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return SQLiteStorage{}, fmt.Errorf("init schema: %w", err)
		}
	}
	return SQLiteStorage{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s SQLiteStorage) Open(name string) (Store, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("INSERT OR IGNORE INTO stores (name, created_at) VALUES (?, ?)", name, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", name, err)
	}
	return sqliteStore{storage: s, name: name}, nil
}

func (s SQLiteStorage) Has(name string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM stores WHERE name = ?", name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (s SQLiteStorage) Delete(name string) (bool, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM entries WHERE store = ?", name); err != nil {
		return false, err
	}
	result, err := tx.Exec("DELETE FROM stores WHERE name = ?", name)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, tx.Commit()
}

func (s SQLiteStorage) Names() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM stores ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

type sqliteStore struct {
	storage SQLiteStorage
	name    string
}

func (s sqliteStore) Name() string {
	return s.name
}

func (s sqliteStore) exists() error {
	if ok, err := s.storage.Has(s.name); err != nil {
		return err
	} else if !ok {
		return ErrNoSuchStore
	}
	return nil
}

func (s sqliteStore) All(prefix string) ([]CacheEntry, error) {
	if err := s.exists(); err != nil {
		return nil, err
	}
	entries := make([]CacheEntry, 0)
	rows, err := s.storage.db.Query(`SELECT
		key, requested_at, received_at, bytes
		FROM entries WHERE store = ? AND key LIKE ? ESCAPE '\' ORDER BY key`,
		s.name, escapeLike(prefix)+"%")
	if err != nil {
		return entries, err
	}
	defer rows.Close()
	for rows.Next() {
		var entry CacheEntry
		var req, rec int64
		if err := rows.Scan(&entry.Key, &req, &rec, &entry.Bytes); err != nil {
			return entries, err
		}
		// LIKE is case-insensitive, keys are not
		if !strings.HasPrefix(entry.Key, prefix) {
			continue
		}
		entry.RequestedAt = time.Unix(req, 0)
		entry.ReceivedAt = time.Unix(rec, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s sqliteStore) PutAll(entries []CacheEntry) error {
	if err := s.exists(); err != nil {
		return err
	}
	s.storage.writeMutex.Lock()
	defer s.storage.writeMutex.Unlock()
	tx, err := s.storage.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, ce := range entries {
		_, err := tx.Exec(`INSERT OR REPLACE INTO entries
			(store, key, requested_at, received_at, bytes) VALUES (?, ?, ?, ?, ?)`,
			s.name, ce.Key, ce.RequestedAt.Unix(), ce.ReceivedAt.Unix(), ce.Bytes)
		if err != nil {
			return fmt.Errorf("put %s: %w", ce.Key, err)
		}
	}
	return tx.Commit()
}

func (s sqliteStore) AllKeys(prefix string, cb func(string)) error {
	rows, err := s.storage.db.Query(
		`SELECT key FROM entries WHERE store = ? AND key LIKE ? ESCAPE '\' ORDER BY key`,
		s.name, escapeLike(prefix)+"%")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		if strings.HasPrefix(key, prefix) {
			cb(key)
		}
	}
	return rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
