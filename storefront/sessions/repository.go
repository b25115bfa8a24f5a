package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repository struct {
	db *pgxpool.Pool
}

// NewRepository creates the Postgres-backed durable store.
func NewRepository(db *pgxpool.Pool) Store {
	return &repository{db: db}
}

// retrieves the serialized payload for a session key
func (r *repository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := r.db.QueryRow(ctx, queryGetSession, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("failed to get session %s: %w", key, err)
	}

	return value, true, nil
}

// inserts or replaces the record for a session key
func (r *repository) Upsert(ctx context.Context, key, value string, expiry int64) error {
	_, err := r.db.Exec(ctx, queryUpsertSession, key, value, expiry)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", key, err)
	}

	return nil
}

// renews only the expiry timestamp for a session key
func (r *repository) UpdateExpiry(ctx context.Context, key string, expiry int64) error {
	_, err := r.db.Exec(ctx, queryUpdateSessionExpiry, expiry, key)
	if err != nil {
		return fmt.Errorf("failed to update session expiry for %s: %w", key, err)
	}

	return nil
}

// removes the record for a session key
func (r *repository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, queryDeleteSession, key)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", key, err)
	}

	return nil
}

// lists sessions whose expiry precedes the given epoch second
func (r *repository) ListExpired(ctx context.Context, now int64) ([]ExpiredSession, error) {
	rows, err := r.db.Query(ctx, queryListExpiredSessions, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}

	defer rows.Close()
	var expired []ExpiredSession

	for rows.Next() {
		var e ExpiredSession
		if err := rows.Scan(&e.ID, &e.Key); err != nil {
			return nil, fmt.Errorf("failed to scan expired session: %w", err)
		}

		expired = append(expired, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read expired sessions: %w", err)
	}

	return expired, nil
}

// deletes sessions by surrogate id in a single statement
func (r *repository) DeleteBatch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.Exec(ctx, queryDeleteSessionBatch, ids)
	if err != nil {
		return fmt.Errorf("failed to delete session batch: %w", err)
	}

	return nil
}
