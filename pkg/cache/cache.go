// Package cache is the document cache port shared by every repository.
// A failing cache is never fatal: a read error is a miss, write errors
// are reported to the caller who is free to ignore them.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultTTL is the absolute lifetime of a cached document
const DefaultTTL = 12 * time.Hour

// errors
var (
	ErrNilBackend = errors.New("cache backend is nil")
	ErrEmptyKey   = errors.New("cache key is empty")
)

// Cache holds raw document bodies
type Cache interface {
	Get(ctx context.Context, key string) (entry []byte, ok bool)
	Set(ctx context.Context, key string, entry []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// Key builds a cache key out of the store name, container and document id
func Key(store, container, id string) string {
	return strings.Join([]string{store, container, id}, ":")
}

// Nop caches nothing
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Nop) Remove(context.Context, string) error { return nil }
