// Package db owns the Catalog Store's physical SQLite connection,
// schema migrations, and the transaction manager that hands out
// tx-scoped catalog.Queries to callers.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// maxOpenConns bounds the pool small per the concurrency model: SQLite
// serializes writers internally, and the uniqueness constraint on
// (package_name, version_code) is the actual arbiter of the concurrent
// upload race, not the pool size.
const maxOpenConns = 5

// Open opens the SQLite database at path (a plain filesystem path, not
// a URL) and applies pool limits appropriate for a single-file,
// single-writer database.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	return db, nil
}
