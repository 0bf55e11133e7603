package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// ApplySchema creates the tables and constraints if they do not exist.
// Statements are idempotent (CREATE TABLE IF NOT EXISTS) so the function
// is safe to run on every startup. The uniqueness constraints declared
// here are load-bearing: duplicate email registration, refresh-secret
// collisions and concurrent rate-limit window creation all resolve
// through them rather than through application-level checks.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
