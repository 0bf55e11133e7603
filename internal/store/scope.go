// Package store is the storage boundary of the service. All SQL runs
// through one of two executors: a Scope, which enforces tenant isolation
// by binding the ambient acting user into every statement, or a Public
// executor reserved for the read-open and pre-authentication entry
// points. Repositories never touch *sql.DB directly, so no call site can
// forget the owner predicate.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// OwnerMarker is the placeholder repositories write wherever a statement
// constrains or assigns the owning user. A Scope rewrites each occurrence
// to a driver placeholder bound to the ambient actor; it refuses to run
// statements that do not contain the marker at all.
const OwnerMarker = ":owner"

var (
	// ErrUnauthorized is returned when an owner-scoped statement runs in a
	// context with no resolved acting user.
	ErrUnauthorized = errors.New("unauthorized: no acting user in context")

	// ErrUnscopedQuery is returned when a statement reaches a Scope without
	// the owner marker. It indicates a programming error in a repository,
	// not a caller mistake, and is deliberately loud.
	ErrUnscopedQuery = errors.New("store: owner-scoped statement is missing the :owner marker")
)

// Querier is the subset of *sql.DB and *sql.Tx the executors need.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Scope executes owner-scoped statements. It is cheap to construct and
// carries no identity itself: the actor is read from the context on every
// call so a Scope can never outlive the request that created it.
type Scope struct {
	q Querier
}

// NewScope wraps a database handle or transaction in a scoped executor.
func NewScope(q Querier) *Scope { return &Scope{q: q} }

// Exec runs an owner-scoped statement.
func (s *Scope) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	q, bound, err := bindOwner(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return s.q.ExecContext(ctx, q, bound...)
}

// Query runs an owner-scoped query returning multiple rows.
func (s *Scope) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	q, bound, err := bindOwner(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return s.q.QueryContext(ctx, q, bound...)
}

// QueryRow runs an owner-scoped single-row query. Unlike database/sql
// it returns binding errors directly, so a refused statement is
// distinguishable from an empty result before any Scan.
func (s *Scope) QueryRow(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	q, bound, err := bindOwner(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return s.q.QueryRowContext(ctx, q, bound...), nil
}

// bindOwner rewrites every :owner marker to a positional placeholder and
// splices the ambient actor into the argument list at the matching
// position. The rewrite is a single pass over the statement, so argument
// order is preserved no matter where markers appear.
func bindOwner(ctx context.Context, query string, args []any) (string, []any, error) {
	if !containsMarker(query) {
		return "", nil, ErrUnscopedQuery
	}
	actor, ok := ActorFrom(ctx)
	if !ok {
		return "", nil, ErrUnauthorized
	}

	var out strings.Builder
	out.Grow(len(query))
	bound := make([]any, 0, len(args)+2)
	argIdx := 0
	for i := 0; i < len(query); {
		if hasMarkerAt(query, i) {
			out.WriteByte('?')
			bound = append(bound, actor.String())
			i += len(OwnerMarker)
			continue
		}
		c := query[i]
		if c == '?' {
			if argIdx >= len(args) {
				return "", nil, fmt.Errorf("store: statement has more placeholders than arguments: %q", query)
			}
			bound = append(bound, args[argIdx])
			argIdx++
		}
		out.WriteByte(c)
		i++
	}
	if argIdx != len(args) {
		return "", nil, fmt.Errorf("store: statement has %d unused arguments: %q", len(args)-argIdx, query)
	}
	return out.String(), bound, nil
}

func containsMarker(query string) bool {
	for i := 0; i < len(query); i++ {
		if hasMarkerAt(query, i) {
			return true
		}
	}
	return false
}

// hasMarkerAt reports whether the marker occurs at offset i and is not a
// prefix of a longer identifier (":ownership" must not match).
func hasMarkerAt(query string, i int) bool {
	if !strings.HasPrefix(query[i:], OwnerMarker) {
		return false
	}
	next := i + len(OwnerMarker)
	if next >= len(query) {
		return true
	}
	c := query[next]
	return !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'))
}
