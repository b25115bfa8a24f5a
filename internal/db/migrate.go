package db

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionsMigration = `
CREATE TABLE IF NOT EXISTS storefront_sessions (
    session_id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    session_key char(64) NOT NULL,
    session_value text NOT NULL,
    session_expiry bigint NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS storefront_sessions_key_unique
ON storefront_sessions (session_key);

CREATE INDEX IF NOT EXISTS storefront_sessions_expiry_idx
ON storefront_sessions (session_expiry);
`

// Migrator applies the sessions schema and records completion, so
// maintenance jobs can refuse to run against a half-installed database.
type Migrator struct {
	done atomic.Bool
}

func NewMigrator() *Migrator {
	return &Migrator{}
}

// Run applies the schema migration and marks the store ready.
func (m *Migrator) Run(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, sessionsMigration); err != nil {
		return fmt.Errorf("failed to migrate sessions schema: %w", err)
	}

	m.done.Store(true)
	return nil
}

// Ready reports whether the schema migration has completed.
func (m *Migrator) Ready() bool {
	return m.done.Load()
}
