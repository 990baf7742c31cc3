package libdbexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// postgresDBManager implements the DBManager interface for PostgreSQL.
type postgresDBManager struct {
	dbInstance *sql.DB
}

// NewPostgresDBManager opens a connection pool using the provided DSN, pings
// the database to verify connectivity, and optionally executes an initial
// schema setup query. The schema must be idempotent (CREATE IF NOT EXISTS)
// since it runs on every process start.
func NewPostgresDBManager(ctx context.Context, dsn string, schema string) (DBManager, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", translateError(err))
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database connection failed: %w", translateError(err))
	}

	if schema != "" {
		if _, err = db.ExecContext(ctx, schema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", translateError(err))
		}
	}

	return &postgresDBManager{dbInstance: db}, nil
}

// WithoutTransaction returns an executor that operates directly on the connection pool.
func (sm *postgresDBManager) WithoutTransaction() Exec {
	return &txAwareDB{db: sm.dbInstance, errTranslate: translateError}
}

// WithTransaction starts a PostgreSQL transaction and returns the associated
// executor, commit function, and release function.
func (sm *postgresDBManager) WithTransaction(ctx context.Context, onRollback ...func()) (Exec, CommitTx, ReleaseTx, error) {
	tx, err := sm.dbInstance.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, func() error { return nil }, fmt.Errorf("%w: begin transaction failed: %w", ErrTxFailed, translateError(err))
	}

	store := &txAwareDB{tx: tx, errTranslate: translateError}
	committed := false
	rollback := func() {
		for _, f := range onRollback {
			if f != nil {
				f()
			}
		}
	}

	commitFn := func(commitCtx context.Context) error {
		if ctxErr := commitCtx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: context error before commit: %w", ErrTxFailed, ctxErr)
		}
		err := tx.Commit()
		if err != nil {
			return fmt.Errorf("%w: commit failed: %w", ErrTxFailed, translateError(err))
		}
		committed = true
		return nil
	}

	releaseFn := func() error {
		rollbackErr := tx.Rollback()
		if !committed {
			rollback()
		}
		// Rollback is often called via defer, even after a successful commit.
		// sql.ErrTxDone means the transaction is already finalized.
		if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			return fmt.Errorf("%w: rollback failed: %w", ErrTxFailed, translateError(rollbackErr))
		}
		return nil
	}

	return store, commitFn, releaseFn, nil
}

// Close shuts down the underlying database connection pool.
func (sm *postgresDBManager) Close() error {
	if sm.dbInstance != nil {
		return sm.dbInstance.Close()
	}
	return nil
}

// translateError translates common sql and pq errors into package-defined errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrQueryCanceled, context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrQueryCanceled, context.DeadlineExceeded)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// pqErr.Code is the SQLSTATE code (e.g. "23505").
		switch pqErr.Code {
		case "23505":
			return ErrUniqueViolation
		case "23503":
			return ErrForeignKeyViolation
		case "23502":
			return ErrNotNullViolation
		case "40P01":
			return ErrDeadlockDetected
		case "57014": // query_canceled
			return fmt.Errorf("%w: %s", ErrQueryCanceled, pqErr.Message)
		case "42P01": // undefined_table
			return ErrUndefinedTable
		default:
			// Class 23 — integrity constraint violation
			if pqErr.Code.Class() == "23" {
				return fmt.Errorf("%w: %s", ErrConstraintViolation, pqErr.Message)
			}
			return fmt.Errorf("libdb: postgres error: code=%s detail=%q message=%q: %w",
				pqErr.Code, pqErr.Detail, pqErr.Message, err)
		}
	}

	return fmt.Errorf("libdb: unexpected database error: %w", err)
}
