// Package postgres provides PostgreSQL implementations of the document and
// index store ports. Chunk vectors are stored in pgvector columns.
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

//go:embed schema.sql
var schema string

// Store is a PostgreSQL database shared by the document and index stores.
type Store struct {
	db *sqlx.DB
}

// Open connects to dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", domain.ErrConfiguration)
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: connecting to postgres: %w", domain.ErrUpstream, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DocumentStore returns a DocumentStore backed by this database.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{db: s.db}
}

// IndexStore returns an IndexStore backed by this database.
func (s *Store) IndexStore(factory driven.VectorIndexFactory) driven.IndexStore {
	return &indexStore{db: s.db, factory: factory}
}

// rebind turns a builder query with "?" placeholders into a PostgreSQL query.
func rebind(query string, args []any) (string, []any) {
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}
