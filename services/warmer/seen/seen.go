// Package seen records which article URLs the warmer has already published.
package seen

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating seen dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening seen db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS seen (
			url        TEXT PRIMARY KEY,
			first_seen INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_seen_first_seen ON seen(first_seen);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Unseen returns the URLs not recorded yet, in input order and without duplicates.
func (s *Store) Unseen(urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(urls)), ",")
	args := make([]interface{}, len(urls))
	for i, u := range urls {
		args[i] = u
	}
	rows, err := s.db.Query(`SELECT url FROM seen WHERE url IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying seen urls: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scanning seen url: %w", err)
		}
		known[u] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []string
	for _, u := range urls {
		if !known[u] {
			known[u] = true
			out = append(out, u)
		}
	}
	return out, nil
}

// Mark records urls as published. Already recorded URLs keep their first-seen time.
func (s *Store) Mark(urls []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO seen (url, first_seen) VALUES (?, ?) ON CONFLICT(url) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := s.now().Unix()
	for _, u := range urls {
		if _, err := stmt.Exec(u, now); err != nil {
			return fmt.Errorf("marking %s: %w", u, err)
		}
	}
	return tx.Commit()
}

// Prune forgets URLs first seen more than olderThan ago and returns how many went.
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).Unix()
	res, err := s.db.Exec(`DELETE FROM seen WHERE first_seen < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning seen urls: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM seen`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting seen urls: %w", err)
	}
	return n, nil
}
