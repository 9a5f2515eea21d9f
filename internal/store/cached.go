package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"pivotlp/internal/core"
)

// CachedStore is a read-through decorator that keeps recently loaded records
// in process memory. Share links are read many times right after creation, so
// a short-lived cache absorbs most backend round trips. Misses always fall
// through to the backend.
type CachedStore struct {
	backend Store
	cache   *gocache.Cache
}

// NewCachedStore wraps backend with an in-memory cache. A zero ttl defaults
// to five minutes.
func NewCachedStore(backend Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{
		backend: backend,
		cache:   gocache.New(ttl, 2*ttl),
	}
}

func (s *CachedStore) Save(ctx context.Context, page core.LandingPage) (string, error) {
	id, err := s.backend.Save(ctx, page)
	if err != nil {
		return "", err
	}
	// The saver usually opens the share link immediately; warm the cache.
	s.cache.SetDefault(id, &Record{Page: page, CreatedAt: time.Now().UTC()})
	return id, nil
}

func (s *CachedStore) Load(ctx context.Context, id string) (*Record, error) {
	if cached, found := s.cache.Get(id); found {
		return cached.(*Record), nil
	}

	record, err := s.backend.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(id, record)
	return record, nil
}

func (s *CachedStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *CachedStore) Close() error {
	s.cache.Flush()
	return s.backend.Close()
}
