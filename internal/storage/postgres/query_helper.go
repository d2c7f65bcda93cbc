package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lugondev/go-zion/internal/storage"
)

// queryOne runs a single-row query. No rows maps to storage.ErrNotFound.
func queryOne[T any](ctx context.Context, pool *pgxpool.Pool, query string, scan func(pgx.Row) (*T, error), args ...any) (*T, error) {
	item, err := scan(pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return item, err
}

// queryMany collects every row of query.
func queryMany[T any](ctx context.Context, pool *pgxpool.Pool, query string, scan func(pgx.Row) (*T, error), args ...any) ([]*T, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*T, error) {
		return scan(row)
	})
}
