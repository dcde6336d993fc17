// Package pg persists every collection in PostgreSQL through database/sql
// and the pgx stdlib driver. Uniqueness, tenant-scoped filtering, and
// transactional boundaries all live here.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every store method can
// run inside or outside a transaction unchanged.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB owns the connection pool. Auth() and CRM() hand out subsystem facades
// over the same pool.
type DB struct {
	db *sql.DB
}

// Open connects to PostgreSQL with tuned pool defaults.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &DB{db: db}, nil
}

// NewWithDB wraps an existing handle; used by tests with sqlmock.
func NewWithDB(db *sql.DB) *DB { return &DB{db: db} }

func (d *DB) Close() error { return d.db.Close() }

// SQL exposes the raw handle for readiness pings and migrations.
func (d *DB) SQL() *sql.DB { return d.db }

// inTx begins a transaction unless q is already transactional, in which case
// fn joins the ongoing unit of work.
func inTx(ctx context.Context, db *sql.DB, q querier, fn func(querier) error) error {
	if _, ok := q.(*sql.Tx); ok {
		return fn(q)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// translateErr folds storage-level failures into the shared taxonomy so raw
// driver errors never leak upward.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return apperr.ErrConflict
		case pgErrForeignKeyViolation:
			return apperr.ErrBadRequest
		}
	}
	return err
}

// nullTime converts a nullable column to *time.Time.
func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// nullString converts an optional string to its nullable column form.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
