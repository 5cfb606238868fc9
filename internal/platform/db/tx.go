package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner starts transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

var _ TxBeginner = (*pgxpool.Pool)(nil)

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
// Serialization failures are reported as shared.ErrConflict.
func WithTx(ctx context.Context, pool TxBeginner, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return Classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		if cerr := Classify(err); cerr != err {
			return cerr
		}
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// SQLSTATE codes that indicate the transaction lost a race.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

// SQLSTATE codes for rows the schema refused.
const (
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// Classify converts concurrency failures raised by Postgres into shared.ErrConflict,
// dangling references into shared.ErrRecordNotFound and check violations into
// shared.ErrValidation. Other errors are returned untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return shared.Wrap(shared.KindConflict, err, "concurrent modification detected, retry the operation")
	case codeUniqueViolation:
		return shared.Wrap(shared.KindConflict, err, fmt.Sprintf("duplicate value violates %s", pgErr.ConstraintName))
	case codeForeignKeyViolation:
		return shared.Wrap(shared.KindRecordNotFound, err, fmt.Sprintf("referenced record missing for %s", pgErr.ConstraintName))
	case codeCheckViolation:
		return shared.Wrap(shared.KindValidation, err, fmt.Sprintf("value rejected by %s", pgErr.ConstraintName))
	}
	return err
}

// RetryOnConflict runs fn until it succeeds, fails with a non-conflict error,
// or the retry budget is exhausted.
func RetryOnConflict(ctx context.Context, retries int, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, shared.ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return err
		}
	}
	return err
}
