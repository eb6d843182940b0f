package cache

import (
	"time"

	"github.com/allegro/bigcache"
)

// NewBigCacheWithClock is NewBigCache with a controllable clock
func NewBigCacheWithClock(conf Config, now func() time.Time) (*BigCache, error) {
	backend, err := bigcache.NewBigCache(bigcache.DefaultConfig(conf.TTL))
	if err != nil {
		return nil, err
	}

	return newBigCache(backend, now)
}
