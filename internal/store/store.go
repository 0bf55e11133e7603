package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Store owns the database handle and hands out executors. Repositories
// hold a *Store and choose per statement whether it is owner-scoped
// (Scoped) or one of the few read-open / pre-auth operations (Public).
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the raw handle for lifecycle management (Close, Ping). It is
// not meant for running queries; use Scoped or Public.
func (s *Store) DB() *sql.DB { return s.db }

// Scoped returns the owner-scoped executor over the pooled connection.
func (s *Store) Scoped() *Scope { return NewScope(s.db) }

// Public returns the unscoped executor. Its use is confined to the user
// registry (globally readable by design) and the credential entry points
// that run before an identity exists: register, the login lookup, and the
// refresh-secret lookup by hash.
func (s *Store) Public() *Public { return &Public{q: s.db} }

// InTx runs fn inside a transaction and hands it a scoped executor bound
// to that transaction. The transaction commits only if fn returns nil;
// any error (including a cancelled context) rolls the whole operation
// back, so a request abandoned mid-flight leaves no partial state.
func (s *Store) InTx(ctx context.Context, fn func(sc *Scope) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(NewScope(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Public executes the handful of statements that are deliberately not
// owner-scoped. Keeping it a distinct type makes every unscoped call
// site visible at a glance.
type Public struct {
	q Querier
}

func (p *Public) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.q.ExecContext(ctx, query, args...)
}

func (p *Public) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return p.q.QueryContext(ctx, query, args...)
}

func (p *Public) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.q.QueryRowContext(ctx, query, args...)
}
