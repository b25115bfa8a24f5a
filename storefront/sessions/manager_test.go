package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

type managerFixture struct {
	manager *Manager
	store   *memoryStore
	cache   *memoryCache
	cookies *fakeCookies
}

type fixtureOption func(*Deps)

func withUser(u UserProvider) fixtureOption {
	return func(d *Deps) { d.User = u }
}

func withClearCart(f func()) fixtureOption {
	return func(d *Deps) { d.ClearCart = f }
}

func newFixture(t *testing.T, opts ...fixtureOption) *managerFixture {
	t.Helper()

	store := newMemoryStore()
	cache := newMemoryCache()
	cookies := newFakeCookies()

	deps := Deps{
		Codec:   testCodec(),
		Store:   store,
		Cache:   cache,
		Cookies: cookies,
		Now:     func() time.Time { return testNow },
	}

	for _, opt := range opts {
		opt(&deps)
	}

	return &managerFixture{
		manager: NewManager(deps),
		store:   store,
		cache:   cache,
		cookies: cookies,
	}
}

// issues a cookie for an existing session and stores its payload
func (f *managerFixture) seedSession(t *testing.T, identity, payload string) {
	t.Helper()

	expiration := testNow.Add(DefaultExpiration).Unix()
	expiring := testNow.Add(DefaultExpiring).Unix()

	f.cookies.incoming[CookieName] = testCodec().Issue(identity, expiration, expiring)

	if payload != "" {
		require.NoError(t, f.store.Upsert(context.Background(), identity, payload, expiration))
	}
}

func TestManager_Resolve_FreshVisitor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.manager.Resolve(ctx))

	assert.Len(t, f.manager.Identity(), 64, "anonymous identity should be a fixed-length digest")
	assert.False(t, f.manager.HasSession())
	assert.False(t, f.manager.Dirty())

	require.NoError(t, f.manager.Load(ctx))

	_, ok := f.manager.Get("cart")
	assert.False(t, ok, "fresh visitor should have an empty payload")

	// no cookie, no session: nothing may touch the storage tiers
	assert.Zero(t, f.store.gets)
	assert.Zero(t, f.cache.sets)
}

func TestManager_Resolve_ValidCookie(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSession(t, "customer-42", "")

	require.NoError(t, f.manager.Resolve(ctx))

	assert.Equal(t, "customer-42", f.manager.Identity())
	assert.True(t, f.manager.HasSession())
	assert.Empty(t, f.store.expiryUpdates, "a fresh window needs no renewal")
}

func TestManager_Resolve_TamperedCookie(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSession(t, "customer-42", "")
	f.cookies.incoming[CookieName] += "x"

	require.NoError(t, f.manager.Resolve(ctx), "a bad cookie is never a request error")

	assert.NotEqual(t, "customer-42", f.manager.Identity())
	assert.Len(t, f.manager.Identity(), 64)
	assert.False(t, f.manager.HasSession())
}

func TestManager_Resolve_SoftExpiryRenewal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// hard expiration one hour out, soft window already passed
	expiration := testNow.Add(time.Hour).Unix()
	expiring := testNow.Add(-time.Minute).Unix()
	f.cookies.incoming[CookieName] = testCodec().Issue("customer-42", expiration, expiring)

	require.NoError(t, f.manager.Resolve(ctx))

	assert.Equal(t, "customer-42", f.manager.Identity(), "renewal keeps the identity")
	require.Len(t, f.store.expiryUpdates, 1, "renewal persists the new expiry")
	assert.Equal(t, testNow.Add(DefaultExpiration).Unix(), f.store.expiryUpdates[0])
}

func TestManager_Resolve_AuthenticatedUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withUser(fakeUser{authenticated: true, id: "customer-7"}))

	require.NoError(t, f.manager.Resolve(ctx))

	assert.Equal(t, "customer-7", f.manager.Identity(), "logged-in visitors use their stable id")
	assert.True(t, f.manager.HasSession(), "authentication counts as a session even without a cookie")
}

func TestManager_Load_ReadThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSession(t, "customer-42", `{"cart":["sku-1"]}`)

	require.NoError(t, f.manager.Resolve(ctx))
	require.NoError(t, f.manager.Load(ctx))

	cart, ok := f.manager.Get("cart")
	require.True(t, ok)
	assert.Equal(t, []any{"sku-1"}, cart)

	// the miss populated the cache with the stored value and a TTL from
	// the caller's own expiration window
	cached, found, err := f.cache.Get(ctx, "customer-42")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"cart":["sku-1"]}`, cached)
	assert.Equal(t, DefaultExpiration, f.cache.ttls["customer-42"])
}

func TestManager_Load_CacheHit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSession(t, "customer-42", `{"cart":["stale"]}`)

	require.NoError(t, f.cache.Set(ctx, "customer-42", `{"cart":["cached"]}`, time.Hour))

	require.NoError(t, f.manager.Resolve(ctx))
	require.NoError(t, f.manager.Load(ctx))

	cart, _ := f.manager.Get("cart")
	assert.Equal(t, []any{"cached"}, cart, "whatever the cache returns is authoritative for a read")
	assert.Zero(t, f.store.gets, "a cache hit never reaches the durable store")
}

func TestManager_Load_MissCachesDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSession(t, "customer-42", "")

	require.NoError(t, f.manager.Resolve(ctx))
	require.NoError(t, f.manager.Load(ctx))

	_, ok := f.manager.Get("cart")
	assert.False(t, ok, "a store miss yields an empty payload, not an error")

	// the default itself is cached, so repeat reads skip the store
	_, found, err := f.cache.Get(ctx, "customer-42")
	require.NoError(t, err)
	assert.True(t, found, "the miss default should be cached")
}

func TestManager_Load_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSession(t, "customer-42", "{{{not json")

	require.NoError(t, f.manager.Resolve(ctx))
	require.NoError(t, f.manager.Load(ctx), "a corrupt record must not break loads")

	_, ok := f.manager.Get("cart")
	assert.False(t, ok)
}

func TestManager_DirtyTracking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSession(t, "customer-42", `{"cart":["sku-1"]}`)

	require.NoError(t, f.manager.Resolve(ctx))
	require.NoError(t, f.manager.Load(ctx))
	assert.False(t, f.manager.Dirty(), "a freshly loaded session is clean")

	f.manager.Set("cart", []any{"sku-1"})
	assert.False(t, f.manager.Dirty(), "writing the identical value stays clean")

	f.manager.Set("cart", []any{"sku-1", "sku-2"})
	assert.True(t, f.manager.Dirty())
}

func TestManager_Unset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSession(t, "customer-42", `{"cart":["sku-1"]}`)

	require.NoError(t, f.manager.Resolve(ctx))
	require.NoError(t, f.manager.Load(ctx))

	f.manager.Unset("nonexistent")
	assert.False(t, f.manager.Dirty(), "removing an absent key stays clean")

	f.manager.Unset("cart")
	assert.True(t, f.manager.Dirty())

	_, ok := f.manager.Get("cart")
	assert.False(t, ok)
}

func TestManager_Persist_CleanIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSession(t, "customer-42", `{"cart":["sku-1"]}`)

	require.NoError(t, f.manager.Resolve(ctx))
	require.NoError(t, f.manager.Load(ctx))

	cacheSets := f.cache.sets

	require.NoError(t, f.manager.Persist(ctx))

	assert.Zero(t, f.store.upserts, "a clean session writes nothing")
	assert.Equal(t, cacheSets, f.cache.sets)
	assert.Zero(t, f.cache.deletes)
}

func TestManager_Persist_NoSessionIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.manager.Resolve(ctx))
	require.NoError(t, f.manager.Load(ctx))

	f.manager.Set("cart", []any{"sku-1"})
	require.True(t, f.manager.Dirty())

	require.NoError(t, f.manager.Persist(ctx), "dirty but session-less: nothing to persist")
	assert.Zero(t, f.store.upserts)
}

func TestManager_Persist_WritesAndRefreshesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSession(t, "customer-42", "")

	require.NoError(t, f.manager.Resolve(ctx))
	require.NoError(t, f.manager.Load(ctx))

	f.manager.Set("cart", []any{"sku-1"})
	require.NoError(t, f.manager.Persist(ctx))

	assert.False(t, f.manager.Dirty(), "persist clears the dirty flag")
	assert.Equal(t, 1, f.store.upserts)
	assert.GreaterOrEqual(t, f.cache.deletes, 1, "the stale cache entry is invalidated before repopulation")

	value, found, err := f.store.Get(ctx, "customer-42")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"cart":["sku-1"]}`, value)

	cached, found, err := f.cache.Get(ctx, "customer-42")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"cart":["sku-1"]}`, cached, "the cache holds the persisted value")

	// a second manager for the same identity sees the persisted payload
	followUp := newFixture(t)
	followUp.store.records = f.store.records
	followUp.cache.entries = f.cache.entries
	followUp.cookies.incoming[CookieName] = f.cookies.incoming[CookieName]

	require.NoError(t, followUp.manager.Resolve(ctx))
	require.NoError(t, followUp.manager.Load(ctx))

	cart, ok := followUp.manager.Get("cart")
	require.True(t, ok)
	assert.Equal(t, []any{"sku-1"}, cart)
}

func TestManager_Destroy(t *testing.T) {
	ctx := context.Background()
	cartCleared := false

	f := newFixture(t, withClearCart(func() { cartCleared = true }))
	f.seedSession(t, "customer-42", `{"cart":["sku-1"]}`)

	require.NoError(t, f.manager.Resolve(ctx))
	require.NoError(t, f.manager.Load(ctx))
	f.manager.Set("cart", []any{"sku-1", "sku-2"})

	require.NoError(t, f.manager.Destroy(ctx))

	assert.True(t, cartCleared, "destroy clears the cart")
	assert.False(t, f.manager.Dirty())
	assert.False(t, f.manager.HasSession())
	assert.NotEqual(t, "customer-42", f.manager.Identity(), "destroy re-identifies the request")
	assert.Len(t, f.manager.Identity(), 64)

	_, ok := f.manager.Get("cart")
	assert.False(t, ok, "destroy empties the payload")

	// record and cache entry are gone
	_, found, err := f.store.Get(ctx, "customer-42")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = f.cache.Get(ctx, "customer-42")
	require.NoError(t, err)
	assert.False(t, found)

	// the cookie was expired in the past
	require.NotEmpty(t, f.cookies.written)
	last := f.cookies.last()
	assert.Equal(t, CookieName, last.name)
	assert.Empty(t, last.value)
	assert.True(t, last.expires.Before(testNow))
}

func TestManager_SetCookieIfRequested(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.manager.Resolve(ctx))

	f.manager.SetCookieIfRequested(false)
	assert.Empty(t, f.cookies.written, "no cookie unless requested")
	assert.False(t, f.manager.HasSession())

	f.manager.SetCookieIfRequested(true)
	require.Len(t, f.cookies.written, 1)
	assert.True(t, f.manager.HasSession(), "issuing the cookie activates the session")

	// the issued token validates back to the manager's identity
	issued := f.cookies.last()
	assert.Equal(t, CookieName, issued.name)

	identity, expiration, _, ok := testCodec().Validate(issued.value)
	require.True(t, ok)
	assert.Equal(t, f.manager.Identity(), identity)
	assert.Equal(t, testNow.Add(DefaultExpiration).Unix(), expiration)
	assert.Equal(t, time.Unix(expiration, 0), issued.expires)
}

func TestManager_IdentityForNonce(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	require.NoError(t, f.manager.Resolve(ctx))
	assert.Equal(t, "fallback", f.manager.IdentityForNonce("fallback"), "no session means the caller's fallback")

	withCookie := newFixture(t)
	withCookie.seedSession(t, "customer-42", "")
	require.NoError(t, withCookie.manager.Resolve(ctx))
	assert.Equal(t, "customer-42", withCookie.manager.IdentityForNonce("fallback"))
}

func TestManager_FirstVisitCartFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// no cookie: fresh identity, empty payload, no record anywhere
	require.NoError(t, f.manager.Resolve(ctx))
	require.NoError(t, f.manager.Load(ctx))
	require.Empty(t, f.store.records)

	// adding to the cart dirties the session and requests the cookie
	f.manager.Set("cart", []any{"sku-1"})
	f.manager.SetCookieIfRequested(true)
	require.True(t, f.manager.Dirty())

	// end of request: record upserted, cache populated for the full window
	require.NoError(t, f.manager.Persist(ctx))

	value, found, err := f.store.Get(ctx, f.manager.Identity())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"cart":["sku-1"]}`, value)
	assert.Equal(t, DefaultExpiration, f.cache.ttls[f.manager.Identity()])

	identity, _, _, ok := testCodec().Validate(f.cookies.last().value)
	require.True(t, ok)
	assert.Equal(t, f.manager.Identity(), identity)
}
