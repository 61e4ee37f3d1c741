// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cachepurge

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jeranaias/rigchat/internal/storage"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	namespace TEXT NOT NULL,
	url TEXT NOT NULL,
	size INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, url)
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_ns ON cache_entries(namespace);`

// SQLiteCache is an artifact cache kept in a SQLite database. Namespaces
// exist for as long as they hold at least one entry.
type SQLiteCache struct {
	db *sql.DB
}

var _ Cache = (*SQLiteCache)(nil)

// NewSQLiteCache opens the cache database at path.
func NewSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := storage.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

// Put records an artifact under namespace.
func (c *SQLiteCache) Put(ctx context.Context, namespace, url string, size int64) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache_entries (namespace, url, size, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, url) DO UPDATE SET size = excluded.size`,
		namespace, url, size, time.Now().Unix(),
	)
	return err
}

// ListNamespaces returns every namespace holding entries, sorted by name.
func (c *SQLiteCache) ListNamespaces(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT DISTINCT namespace FROM cache_entries ORDER BY namespace")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

// ListEntries returns the entries of namespace, sorted by URL.
func (c *SQLiteCache) ListEntries(ctx context.Context, namespace string) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT url FROM cache_entries WHERE namespace = ? ORDER BY url", namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.URL); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEntry removes one entry.
func (c *SQLiteCache) DeleteEntry(ctx context.Context, namespace, url string) (bool, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE namespace = ? AND url = ?", namespace, url)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
