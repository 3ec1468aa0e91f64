package form

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"regform/pkg/platform/sentinel"
)

const (
	DefaultSessionTTL      = 30 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
)

// Sessions holds live forms keyed by ID. Forms expire after the TTL unless
// touched; every Get extends the lease.
type Sessions struct {
	cache *gocache.Cache
	ttl   time.Duration
}

type SessionsOption func(*sessionsConfig)

type sessionsConfig struct {
	ttl       time.Duration
	cleanup   time.Duration
	onEvicted func(id string)
}

func WithTTL(ttl time.Duration) SessionsOption {
	return func(c *sessionsConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithCleanupInterval(d time.Duration) SessionsOption {
	return func(c *sessionsConfig) {
		c.cleanup = d
	}
}

// WithOnEvicted registers a hook run when a form expires or is deleted.
func WithOnEvicted(fn func(id string)) SessionsOption {
	return func(c *sessionsConfig) {
		c.onEvicted = fn
	}
}

func NewSessions(opts ...SessionsOption) *Sessions {
	cfg := sessionsConfig{ttl: DefaultSessionTTL, cleanup: DefaultCleanupInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	cache := gocache.New(cfg.ttl, cfg.cleanup)
	if cfg.onEvicted != nil {
		cache.OnEvicted(func(key string, _ any) {
			cfg.onEvicted(key)
		})
	}
	return &Sessions{cache: cache, ttl: cfg.ttl}
}

// Create opens a new form under a fresh ID.
func (s *Sessions) Create() *Form {
	f := New(uuid.NewString())
	s.cache.Set(f.ID(), f, s.ttl)
	return f
}

// Get returns the live form for id and refreshes its expiry.
func (s *Sessions) Get(id string) (*Form, error) {
	v, found := s.cache.Get(id)
	if !found {
		return nil, fmt.Errorf("form %s: %w", id, sentinel.ErrNotFound)
	}
	f, ok := v.(*Form)
	if !ok {
		return nil, fmt.Errorf("form %s: unexpected cache entry %T", id, v)
	}
	s.cache.Set(id, f, s.ttl)
	return f, nil
}

func (s *Sessions) Delete(id string) {
	s.cache.Delete(id)
}

// Count returns the number of live forms, expired-but-unswept included.
func (s *Sessions) Count() int {
	return s.cache.ItemCount()
}
