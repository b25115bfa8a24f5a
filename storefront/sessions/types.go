package sessions

import (
	"context"
	"time"
)

// default expiration windows for visitor sessions
const (
	// hard expiration for a session record
	DefaultExpiration = 48 * time.Hour

	// soft window: sessions older than this get their expiry renewed
	DefaultExpiring = 47 * time.Hour
)

// CookieName is the cookie carrying the signed session token.
const CookieName = "storefront_session"

// identifies an expired row for the sweeper: cache eviction goes by
// session key, durable deletion goes by surrogate id
type ExpiredSession struct {
	ID  int64
	Key string
}

// store interface for durable session persistence
type Store interface {
	// returns the serialized payload for a session key, found=false on absence
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// inserts or replaces the record for a session key (last writer wins)
	Upsert(ctx context.Context, key, value string, expiry int64) error

	// renews only the expiry column, leaving the payload untouched
	UpdateExpiry(ctx context.Context, key string, expiry int64) error

	// removes the record for a session key
	Delete(ctx context.Context, key string) error

	// lists all records whose expiry precedes the given epoch second
	ListExpired(ctx context.Context, now int64) ([]ExpiredSession, error)

	// deletes records by surrogate id in one statement
	DeleteBatch(ctx context.Context, ids []int64) error
}

// cache interface for the best-effort read-through tier; a miss is
// (_, false, nil), an unreachable backend is an error
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// reports the authenticated user for the current request, if any
type UserProvider interface {
	IsAuthenticated() bool
	UserID() string
}

// cookie transport consumed by the manager; the HTTP layer adapts its
// request/response pair to this
type CookieTransport interface {
	Cookie(name string) (string, bool)
	SetCookie(name, value string, expires time.Time, secure bool)
}

// anonymousUser is the provider used when no auth layer is wired
type anonymousUser struct{}

func (anonymousUser) IsAuthenticated() bool { return false }
func (anonymousUser) UserID() string        { return "" }
