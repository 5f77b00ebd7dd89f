// Package repository holds the database/sql helpers shared by the Postgres
// repositories: transactions with retry on serialization failures, typed row
// scanning and single-row statement checks.
package repository

import (
	"context"
	"database/sql"
	"errors"
)

// txAttempts bounds how often WithTx reruns fn after a serialization failure.
const txAttempts = 3

// Querier is implemented by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor is implemented by *sql.DB, *sql.Tx and *sql.Conn.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Scanner is a row or a rows cursor.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanFunc reads one entity from a row.
type ScanFunc[T any] func(Scanner) (T, error)

// WithTx runs fn in a transaction and commits when it succeeds. A transaction
// that fails with a serialization error is rolled back and fn is run again, up
// to txAttempts times, so fn must not have side effects outside tx.
func WithTx[T any](ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	for range txAttempts {
		result, err = runTx(ctx, db, fn)
		if !IsRetryable(err) || ctx.Err() != nil {
			break
		}
	}
	return result, err
}

func runTx[T any](ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) (T, error)) (T, error) {
	var zero T

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return zero, err
	}

	result, err := fn(tx)
	if err != nil {
		if rbErr := rollback(tx); rbErr != nil {
			return zero, errors.Join(err, rbErr)
		}
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, err
	}
	return result, nil
}

func rollback(tx *sql.Tx) error {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// Do is WithTx for statements that produce no result.
func Do(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	_, err := WithTx(ctx, db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, fn(tx)
	})
	return err
}

// QueryOne scans the single row returned by query. A missing row surfaces as
// sql.ErrNoRows for MapError to translate.
func QueryOne[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) (T, error) {
	return scan(q.QueryRowContext(ctx, query, args...))
}

// QueryMany scans every row returned by query. No rows yields an empty, non-nil slice.
func QueryMany[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ExecExpectOne runs a statement that must touch exactly one row and reports
// sql.ErrNoRows when it touched none.
func ExecExpectOne(ctx context.Context, e Executor, query string, args ...any) error {
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
