package sessions

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errTestBatch = errors.New("batch delete failed")

// in-memory Store fake tracking call counts, shaped after the durable
// repository's observable behavior
type memoryStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[string]*memoryRecord

	gets    int
	upserts int
	deletes int

	expiryUpdates []int64

	// when set, DeleteBatch fails for the batch containing this id
	failBatchContaining int64
}

type memoryRecord struct {
	id     int64
	value  string
	expiry int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]*memoryRecord{}}
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets++

	record, ok := s.records[key]
	if !ok {
		return "", false, nil
	}

	return record.value, true, nil
}

func (s *memoryStore) Upsert(ctx context.Context, key, value string, expiry int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upserts++

	if record, ok := s.records[key]; ok {
		record.value = value
		record.expiry = expiry
		return nil
	}

	s.nextID++
	s.records[key] = &memoryRecord{id: s.nextID, value: value, expiry: expiry}
	return nil
}

func (s *memoryStore) UpdateExpiry(ctx context.Context, key string, expiry int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expiryUpdates = append(s.expiryUpdates, expiry)

	if record, ok := s.records[key]; ok {
		record.expiry = expiry
	}

	return nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes++
	delete(s.records, key)
	return nil
}

func (s *memoryStore) ListExpired(ctx context.Context, now int64) ([]ExpiredSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []ExpiredSession

	for key, record := range s.records {
		if record.expiry < now {
			expired = append(expired, ExpiredSession{ID: record.id, Key: key})
		}
	}

	return expired, nil
}

func (s *memoryStore) DeleteBatch(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failBatchContaining != 0 {
		for _, id := range ids {
			if id == s.failBatchContaining {
				return errTestBatch
			}
		}
	}

	for _, id := range ids {
		for key, record := range s.records {
			if record.id == id {
				delete(s.records, key)
			}
		}
	}

	return nil
}

// in-memory Cache fake recording the TTL of the last Set per key
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
	ttls    map[string]time.Duration

	sets    int
	deletes int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		entries: map[string]string{},
		ttls:    map[string]time.Duration{},
	}
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.entries[key]
	return value, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sets++
	c.entries[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deletes++
	delete(c.entries, key)
	delete(c.ttls, key)
	return nil
}

// cookie transport fake: one incoming cookie, every outgoing write recorded
type fakeCookies struct {
	incoming map[string]string
	written  []writtenCookie
}

type writtenCookie struct {
	name    string
	value   string
	expires time.Time
	secure  bool
}

func newFakeCookies() *fakeCookies {
	return &fakeCookies{incoming: map[string]string{}}
}

func (f *fakeCookies) Cookie(name string) (string, bool) {
	value, ok := f.incoming[name]
	return value, ok
}

func (f *fakeCookies) SetCookie(name, value string, expires time.Time, secure bool) {
	f.written = append(f.written, writtenCookie{name, value, expires, secure})
}

func (f *fakeCookies) last() writtenCookie {
	return f.written[len(f.written)-1]
}

type fakeUser struct {
	authenticated bool
	id            string
}

func (u fakeUser) IsAuthenticated() bool { return u.authenticated }
func (u fakeUser) UserID() string        { return u.id }
