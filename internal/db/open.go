// Package db caches the folded room state in SQLite for offline queries.
// The cache is always reproducible from the view; dropping the file loses
// nothing.
package db

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// DBTX is the common surface of *sql.DB and *sql.Tx.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// OpenCache opens (creating if needed) the room's SQLite cache file.
func OpenCache(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := initSchema(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}
