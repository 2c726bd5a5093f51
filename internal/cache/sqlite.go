package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/greenledger/verifier/internal/models"
)

// Entry is one cached verification result with its storage timestamp.
type Entry struct {
	TokenID  string
	Result   models.VerificationResult
	CachedAt time.Time
}

// Store is the offline verification cache. Every operation on a Store whose
// backing database failed to open is a silent no-op; verification must keep
// working without the cache, it just loses its offline fallback.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS verifications (
	token_id  TEXT PRIMARY KEY,
	result    TEXT NOT NULL,
	cached_at INTEGER NOT NULL
);`

// Open opens (creating if necessary) the cache database at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the cache database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores a verification result snapshot keyed by token id. A second Put
// for the same token id overwrites the first; last write wins.
func (s *Store) Put(tokenID string, result models.VerificationResult) {
	if s == nil || s.db == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		return
	}

	s.db.Exec(
		`INSERT INTO verifications (token_id, result, cached_at) VALUES (?, ?, ?)
		 ON CONFLICT(token_id) DO UPDATE SET result = excluded.result, cached_at = excluded.cached_at`,
		tokenID, string(data), time.Now().Unix())
}

// Get returns the cached entry for a token id, or nil if absent or the cache
// is unavailable.
func (s *Store) Get(tokenID string) *Entry {
	if s == nil || s.db == nil {
		return nil
	}

	var data string
	var cachedAt int64
	err := s.db.QueryRow(
		"SELECT result, cached_at FROM verifications WHERE token_id = ?",
		tokenID).Scan(&data, &cachedAt)
	if err != nil {
		return nil
	}

	var result models.VerificationResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil
	}

	return &Entry{
		TokenID:  tokenID,
		Result:   result,
		CachedAt: time.Unix(cachedAt, 0),
	}
}

// IsFresh reports whether an entry is within the freshness window. Freshness
// policy lives here so every caller applies the same rule.
func IsFresh(e *Entry, maxAge time.Duration) bool {
	if e == nil {
		return false
	}
	return time.Since(e.CachedAt) <= maxAge
}

// Prune deletes entries older than maxAge and returns how many were removed.
func (s *Store) Prune(maxAge time.Duration) int {
	if s == nil || s.db == nil {
		return 0
	}

	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := s.db.Exec("DELETE FROM verifications WHERE cached_at < ?", cutoff)
	if err != nil {
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

// List returns all cached entries, newest first.
func (s *Store) List() []Entry {
	if s == nil || s.db == nil {
		return nil
	}

	rows, err := s.db.Query(
		"SELECT token_id, result, cached_at FROM verifications ORDER BY cached_at DESC")
	if err != nil {
		return nil
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var tokenID, data string
		var cachedAt int64
		if err := rows.Scan(&tokenID, &data, &cachedAt); err != nil {
			continue
		}
		var result models.VerificationResult
		if err := json.Unmarshal([]byte(data), &result); err != nil {
			continue
		}
		entries = append(entries, Entry{
			TokenID:  tokenID,
			Result:   result,
			CachedAt: time.Unix(cachedAt, 0),
		})
	}
	return entries
}
