// Package libdbexec abstracts SQL execution over Postgres and SQLite so the
// stores above it stay driver-agnostic. Driver errors are translated into the
// sentinel errors below; callers match with errors.Is.
package libdbexec

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrNotFound            = errors.New("libdb: not found")
	ErrTxFailed            = errors.New("libdb: transaction failed")
	ErrQueryCanceled       = errors.New("libdb: query canceled")
	ErrUniqueViolation     = errors.New("libdb: unique constraint violation")
	ErrForeignKeyViolation = errors.New("libdb: foreign key violation")
	ErrNotNullViolation    = errors.New("libdb: not null violation")
	ErrConstraintViolation = errors.New("libdb: constraint violation")
	ErrUndefinedTable      = errors.New("libdb: undefined table")
	ErrDeadlockDetected    = errors.New("libdb: deadlock detected")
	ErrMaxRowsReached      = errors.New("libdb: maximum row count reached")
)

// QueryRower mirrors *sql.Row with error translation applied on Scan.
type QueryRower interface {
	Scan(dest ...any) error
}

// Exec is the execution surface handed to stores. It is satisfied both by a
// transaction-bound executor and by the bare connection pool.
type Exec interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) QueryRower
}

// CommitTx commits the transaction. The context is checked before the commit
// is attempted.
type CommitTx func(ctx context.Context) error

// ReleaseTx rolls the transaction back unless it was committed. Safe to defer
// after a successful commit.
type ReleaseTx func() error

// DBManager owns a database connection and hands out executors.
type DBManager interface {
	WithoutTransaction() Exec
	WithTransaction(ctx context.Context, onRollback ...func()) (Exec, CommitTx, ReleaseTx, error)
	Close() error
}
