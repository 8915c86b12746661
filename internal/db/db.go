// Package db opens the search index's SQLite database and applies its
// schema. It is grounded on the teacher's internal/db package (the
// sqlx.DB wrapper, connection lifecycle, startup schema application
// shape) with the driver and migration mechanism swapped: the teacher
// runs golang-migrate against Postgres, but Locomote Server's only
// persistent store is the FTS5 search index, which the pack's own
// inful-docbuilder/internal/eventstore.SQLiteStore initializes with a
// plain embedded `CREATE TABLE IF NOT EXISTS` schema rather than a
// migration framework — the same shape this package follows.
package db

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "modernc.org/sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// DB wraps a sqlx connection to the search SQLite database.
type DB struct {
	*sqlx.DB
}

// Open connects to the SQLite database at path (accepts ":memory:") and
// applies every embedded schema file, in name order, idempotently.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY under concurrent callers

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("db: ping %s: %w", path, err)
	}

	d := &DB{DB: conn}
	if err := d.applySchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) applySchema() error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("db: read embedded schema: %w", err)
	}
	for _, e := range entries {
		raw, err := schemaFS.ReadFile("schema/" + e.Name())
		if err != nil {
			return fmt.Errorf("db: read schema %s: %w", e.Name(), err)
		}
		if _, err := d.Exec(string(raw)); err != nil {
			return fmt.Errorf("db: apply schema %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Close releases the underlying connection.
func (d *DB) Close() error { return d.DB.Close() }
