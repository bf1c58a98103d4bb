package local_cache

import (
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

type Options struct {
	NumCounters int64 // number of counters (10x your max items is a good start)
	MaxCost     int64 // total cost capacity (sum of item costs)
	BufferItems int64 // number of keys per Get buffer
	Metrics     bool
	OnEvict     func(item *ristretto.Item)
}

type Option func(*Options)

func WithNumCounters(n int64) Option {
	return func(o *Options) {
		o.NumCounters = n
	}
}

func WithMaxCost(c int64) Option {
	return func(o *Options) {
		o.MaxCost = c
	}
}

func WithBufferItems(n int64) Option {
	return func(o *Options) {
		o.BufferItems = n
	}
}

func WithMetrics() Option {
	return func(o *Options) {
		o.Metrics = true
	}
}

func WithOnEvict(f func(item *ristretto.Item)) Option {
	return func(o *Options) {
		o.OnEvict = f
	}
}

// defaultOptions set default values. Entries are package share paths and
// parsed sensor inventories, so the cache stays small.
func defaultOptions() Options {
	return Options{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
		Metrics:     false,
	}
}

// New builds an independent cache.
func New(opts ...Option) (*ristretto.Cache, error) {
	conf := defaultOptions()
	for _, fn := range opts {
		fn(&conf)
	}
	return ristretto.NewCache(&ristretto.Config{
		NumCounters: conf.NumCounters,
		MaxCost:     conf.MaxCost,
		BufferItems: conf.BufferItems,
		Metrics:     conf.Metrics,
		OnEvict:     conf.OnEvict,
	})
}

var (
	once    sync.Once
	cache   *ristretto.Cache
	initErr error
)

// NewLocalCache builds (or returns) the singleton. The first successful call fixes config.
func NewLocalCache(opts ...Option) error {
	once.Do(func() {
		cache, initErr = New(opts...)
	})
	return initErr
}

// Cache returns the singleton, nil when NewLocalCache was never called.
func Cache() *ristretto.Cache {
	return cache
}

// GetString reads a string entry from c. A nil cache always misses.
func GetString(c *ristretto.Cache, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// SetString stores a unit-cost string entry with a ttl; zero ttl never expires.
func SetString(c *ristretto.Cache, key, value string, ttl time.Duration) bool {
	if c == nil {
		return false
	}
	ok := c.SetWithTTL(key, value, 1, ttl)
	c.Wait()
	return ok
}
