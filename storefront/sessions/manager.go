package sessions

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"codeberg.org/storefront/server/internal/logger"
)

// Deps carries everything a per-request Manager needs. Store and Codec are
// required; Cache defaults to a no-op tier, User to an anonymous visitor.
type Deps struct {
	Codec *Codec
	Store Store
	Cache Cache
	User  UserProvider

	// transport for reading/writing the session cookie
	Cookies CookieTransport

	// invoked during Destroy so the cart empties alongside the session
	ClearCart func()

	// zero values fall back to the package defaults
	Expiration time.Duration
	Expiring   time.Duration

	// whether issued cookies get the secure flag
	SecureCookie bool

	// test hook, defaults to time.Now
	Now func() time.Time
}

// Manager owns a single request's session: identity resolution, payload
// dirty tracking, and coordination of the cache and durable tiers. One
// instance per request; concurrent requests for the same visitor coordinate
// only through the shared tiers (last write wins).
type Manager struct {
	codec   *Codec
	store   Store
	cache   Cache
	user    UserProvider
	cookies CookieTransport

	clearCart    func()
	expiration   time.Duration
	expiring     time.Duration
	secureCookie bool
	now          func() time.Time

	identity          string
	sessionExpiration int64
	sessionExpiring   int64
	hasCookie         bool
	data              map[string]any
	dirty             bool
}

func NewManager(deps Deps) *Manager {
	m := &Manager{
		codec:        deps.Codec,
		store:        deps.Store,
		cache:        deps.Cache,
		user:         deps.User,
		cookies:      deps.Cookies,
		clearCart:    deps.ClearCart,
		expiration:   deps.Expiration,
		expiring:     deps.Expiring,
		secureCookie: deps.SecureCookie,
		now:          deps.Now,
		data:         map[string]any{},
	}

	if m.cache == nil {
		m.cache = NoopCache{}
	}

	if m.user == nil {
		m.user = anonymousUser{}
	}

	if m.expiration <= 0 {
		m.expiration = DefaultExpiration
	}

	if m.expiring <= 0 {
		m.expiring = DefaultExpiring
	}

	if m.now == nil {
		m.now = time.Now
	}

	return m
}

// recomputes both expiry timestamps from the current time
func (m *Manager) setExpiration() {
	now := m.now()
	m.sessionExpiring = now.Add(m.expiring).Unix()
	m.sessionExpiration = now.Add(m.expiration).Unix()
}

// Resolve establishes the session identity for this request. A valid cookie
// is adopted (renewing the expiry window in the store when past the soft
// threshold); anything else gets a fresh identity and window. Invalid
// cookies are never an error: the visitor is simply treated as new.
func (m *Manager) Resolve(ctx context.Context) error {
	var raw string
	if m.cookies != nil {
		raw, _ = m.cookies.Cookie(CookieName)
	}

	if identity, expiration, expiring, ok := m.codec.Validate(raw); ok {
		m.identity = identity
		m.sessionExpiration = expiration
		m.sessionExpiring = expiring
		m.hasCookie = true

		// sliding-window renewal: close to expiring, push the window out
		// and persist only the timestamp
		if m.now().Unix() > expiring {
			m.setExpiration()

			if err := m.store.UpdateExpiry(ctx, m.identity, m.sessionExpiration); err != nil {
				return fmt.Errorf("failed to renew session expiry: %w", err)
			}
		}

		return nil
	}

	m.setExpiration()

	identity, err := m.generateIdentity()
	if err != nil {
		return err
	}

	m.identity = identity
	return nil
}

// returns a stable id for logged-in users, a fresh random one otherwise
func (m *Manager) generateIdentity() (string, error) {
	if m.user.IsAuthenticated() {
		return m.user.UserID(), nil
	}

	return GenerateIdentity()
}

// HasSession reports whether the visitor has an active session worth
// loading or persisting: a presented cookie, one issued during this
// request, or an authenticated user.
func (m *Manager) HasSession() bool {
	return m.hasCookie || m.user.IsAuthenticated()
}

// Identity returns the current session identity.
func (m *Manager) Identity() string {
	return m.identity
}

// IdentityForNonce returns the session identity when a session is present,
// so logged-out visitors get nonce seeds stable across requests. Without a
// session the caller's fallback applies.
func (m *Manager) IdentityForNonce(fallback string) string {
	if m.HasSession() && m.identity != "" {
		return m.identity
	}

	return fallback
}

// Load populates the in-memory payload: cache first, durable store on miss,
// empty when the visitor has no session at all.
func (m *Manager) Load(ctx context.Context) error {
	if !m.HasSession() {
		m.data = map[string]any{}
		return nil
	}

	raw, err := m.readThrough(ctx, m.identity, "")
	if err != nil {
		return err
	}

	m.data = deserializePayload(raw)
	return nil
}

// read path shared by Load: whatever the cache holds is authoritative for
// this read, including a previously cached default. On a cache miss the
// durable store answers, and the result (or the default) repopulates the
// cache with a TTL from the caller's own expiration window - cache lifetime
// deliberately tracks the requesting session's renewal cadence, not the
// stored record's expiry.
func (m *Manager) readThrough(ctx context.Context, key, defaultValue string) (string, error) {
	cached, found, err := m.cache.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to read session from cache: %w", err)
	}

	if found {
		return cached, nil
	}

	value, found, err := m.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to read session from store: %w", err)
	}

	if !found {
		value = defaultValue
	}

	if ttl := m.cacheTTL(); ttl > 0 {
		if err := m.cache.Set(ctx, key, value, ttl); err != nil {
			return "", fmt.Errorf("failed to populate session cache: %w", err)
		}
	}

	return value, nil
}

// remaining lifetime of the current expiration window, clamped at zero
func (m *Manager) cacheTTL() time.Duration {
	ttl := time.Unix(m.sessionExpiration, 0).Sub(m.now())
	if ttl < 0 {
		return 0
	}

	return ttl
}

// Get returns a payload value.
func (m *Manager) Get(key string) (any, bool) {
	value, ok := m.data[key]
	return value, ok
}

// Set stores a payload value, marking the session dirty only when the
// value actually changed.
func (m *Manager) Set(key string, value any) {
	if existing, ok := m.data[key]; ok && reflect.DeepEqual(existing, value) {
		return
	}

	m.data[key] = value
	m.dirty = true
}

// Unset removes a payload value.
func (m *Manager) Unset(key string) {
	if _, ok := m.data[key]; !ok {
		return
	}

	delete(m.data, key)
	m.dirty = true
}

// Dirty reports whether the payload has unsaved mutations.
func (m *Manager) Dirty() bool {
	return m.dirty
}

// Persist writes the payload to the durable store if anything changed this
// request. The cache entry is invalidated and then repopulated with the new
// value so a fresh read within the TTL window sees the write. Clean or
// session-less requests write nothing at all.
func (m *Manager) Persist(ctx context.Context) error {
	if !m.dirty || !m.HasSession() {
		return nil
	}

	raw, err := serializePayload(m.data)
	if err != nil {
		return fmt.Errorf("failed to serialize session payload: %w", err)
	}

	if err := m.store.Upsert(ctx, m.identity, raw, m.sessionExpiration); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	// delete before set so the cache cannot keep a value that predates a
	// concurrent invalidation
	if err := m.cache.Delete(ctx, m.identity); err != nil {
		return fmt.Errorf("failed to invalidate session cache: %w", err)
	}

	if ttl := m.cacheTTL(); ttl > 0 {
		if err := m.cache.Set(ctx, m.identity, raw, ttl); err != nil {
			return fmt.Errorf("failed to repopulate session cache: %w", err)
		}
	}

	m.dirty = false
	return nil
}

// Destroy tears the session down: expires the cookie, deletes the record
// and cache entry, clears the cart, and re-identifies the request with a
// fresh anonymous identity so later code never sees the destroyed one.
func (m *Manager) Destroy(ctx context.Context) error {
	if m.cookies != nil {
		m.cookies.SetCookie(CookieName, "", m.now().Add(-365*24*time.Hour), m.secureCookie)
	}

	if err := m.deleteSession(ctx, m.identity); err != nil {
		return err
	}

	if m.clearCart != nil {
		m.clearCart()
	}

	m.data = map[string]any{}
	m.dirty = false
	m.hasCookie = false

	identity, err := m.generateIdentity()
	if err != nil {
		return err
	}

	m.identity = identity
	return nil
}

// removes a session from the cache first, then the durable store, keeping
// the stale-cache window after a logical delete as small as possible
func (m *Manager) deleteSession(ctx context.Context, key string) error {
	if err := m.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to evict session from cache: %w", err)
	}

	if err := m.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// SetCookieIfRequested issues the session cookie when the collaborator asks
// for it, typically once per response after the cart first changes. Issuing
// the cookie marks the session active for the rest of the request.
func (m *Manager) SetCookieIfRequested(set bool) {
	if !set || m.cookies == nil {
		return
	}

	token := m.codec.Issue(m.identity, m.sessionExpiration, m.sessionExpiring)
	m.cookies.SetCookie(CookieName, token, time.Unix(m.sessionExpiration, 0), m.secureCookie)
	m.hasCookie = true

	logger.Debug("session cookie issued", "identity", m.identity)
}
