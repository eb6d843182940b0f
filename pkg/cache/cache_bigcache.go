package cache

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/allegro/bigcache"
	"github.com/cespare/xxhash"
	"github.com/pkg/errors"
)

// expiry header prepended to every entry: unix nanoseconds, big endian
const headerSize = 8

// Config of the bigcache backed cache
type Config struct {
	Shards    int
	MaxSizeMB int
	TTL       time.Duration
}

// DefaultConfig returns a config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		Shards:    64,
		MaxSizeMB: 64,
		TTL:       DefaultTTL,
	}
}

// xxhasher is a bigcache.Hasher based on xxhash
type xxhasher struct{}

func (xxhasher) Sum64(key string) uint64 {
	return xxhash.Sum64String(key)
}

// BigCache stores entries in bigcache. Bigcache only knows a single,
// global life window, so every entry carries its own expiry time and
// expired entries are treated as misses.
type BigCache struct {
	backend *bigcache.BigCache
	now     func() time.Time
}

// NewBigCache initializes a bigcache backed cache
func NewBigCache(conf Config) (*BigCache, error) {
	if conf.TTL <= 0 {
		conf.TTL = DefaultTTL
	}

	bc := bigcache.DefaultConfig(conf.TTL)
	bc.Hasher = xxhasher{}
	bc.Verbose = false

	if conf.Shards > 0 {
		bc.Shards = conf.Shards
	}

	if conf.MaxSizeMB > 0 {
		bc.HardMaxCacheSize = conf.MaxSizeMB
	}

	backend, err := bigcache.NewBigCache(bc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize default cache")
	}

	return newBigCache(backend, time.Now)
}

func newBigCache(backend *bigcache.BigCache, now func() time.Time) (*BigCache, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}

	return &BigCache{backend: backend, now: now}, nil
}

func (c *BigCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if ctx.Err() != nil || key == "" {
		return nil, false
	}

	raw, err := c.backend.Get(key)
	if err != nil || len(raw) < headerSize {
		return nil, false
	}

	expiresAt := int64(binary.BigEndian.Uint64(raw[:headerSize]))
	if c.now().UnixNano() >= expiresAt {
		_ = c.backend.Delete(key)
		return nil, false
	}

	return append([]byte(nil), raw[headerSize:]...), true
}

func (c *BigCache) Set(ctx context.Context, key string, entry []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if key == "" {
		return ErrEmptyKey
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	raw := make([]byte, headerSize+len(entry))
	binary.BigEndian.PutUint64(raw[:headerSize], uint64(c.now().Add(ttl).UnixNano()))
	copy(raw[headerSize:], entry)

	return errors.Wrapf(c.backend.Set(key, raw), "failed to cache entry %s", key)
}

func (c *BigCache) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.backend.Delete(key); err != nil && err != bigcache.ErrEntryNotFound {
		return errors.Wrapf(err, "failed to remove cached entry %s", key)
	}

	return nil
}

// Close stops the backend's cleanup routine
func (c *BigCache) Close() error {
	return c.backend.Close()
}
