package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is the subset of database operations shared by *sql.DB and
// *sql.Tx. Repositories run all statements through a Querier so the same
// code works inside and outside an explicit transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type contextKey string

const txKey contextKey = "taskhiveTx"

// QuerierFrom returns the ambient transaction from ctx if one is open,
// otherwise the raw database handle.
func (db *DB) QuerierFrom(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return db.DB
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey).(*sql.Tx)
	return ok
}

// WithTx runs fn inside a transaction stored in the context handed to fn.
// Repository calls made with that context join the transaction. Nested
// WithTx calls join the ambient transaction instead of opening a new one;
// commit and rollback then remain the outermost caller's responsibility.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
