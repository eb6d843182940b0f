package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agubarev/chapi/internal/config"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	a := assert.New(t)

	c, err := config.Decode(config.New())
	a.NoError(err)
	a.NotNil(c)

	a.Equal(config.BackendBolt, c.Store.Backend)
	a.Equal(filepath.Join("data", "chapi.db"), filepath.Clean(c.Store.Path))
	a.Equal("chapi", c.Store.Name)
	a.True(c.Cache.Enabled)
	a.Equal(12*time.Hour, c.Cache.TTL)
	a.Equal(64, c.Cache.Shards)
	a.Equal(64, c.Cache.MaxSizeMB)
	a.Equal(8, c.Engine.ValidationConcurrency)
	a.Equal(64, c.Engine.MaxParentDepth)
	a.False(c.Log.Debug)
	a.Empty(c.Log.Dir)

	a.Equal(c.Cache.TTL, c.CacheConfig().TTL)
	a.Equal(8, c.EngineConfig().ValidationConcurrency)
}

func TestLoadFile(t *testing.T) {
	a := assert.New(t)

	file := filepath.Join(t.TempDir(), "chapi.yaml")
	a.NoError(os.WriteFile(file, []byte(`
store:
  backend: memory
  name: test
cache:
  ttl: 30m
engine:
  max_parent_depth: 3
log:
  debug: true
`), 0600))

	c, err := config.Load(config.New(), file)
	a.NoError(err)
	a.NotNil(c)

	a.Equal(config.BackendMemory, c.Store.Backend)
	a.Equal("test", c.Store.Name)
	a.Equal(30*time.Minute, c.Cache.TTL)
	a.Equal(3, c.Engine.MaxParentDepth)
	a.Equal(8, c.Engine.ValidationConcurrency)
	a.True(c.Log.Debug)

	_, err = config.Load(config.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	a.Error(err)
}

func TestEnvironmentOverrides(t *testing.T) {
	a := assert.New(t)

	t.Setenv("CHAPI_STORE_BACKEND", "badger")
	t.Setenv("CHAPI_ENGINE_VALIDATION_CONCURRENCY", "2")

	c, err := config.Decode(config.New())
	a.NoError(err)
	a.NotNil(c)

	a.Equal(config.BackendBadger, c.Store.Backend)
	a.Equal(2, c.Engine.ValidationConcurrency)
}

func TestValidate(t *testing.T) {
	a := assert.New(t)

	valid := func() *config.Config {
		c, err := config.Decode(config.New())
		if err != nil {
			t.Fatal(err)
		}

		return c
	}

	c := valid()
	c.Store.Backend = "cosmos"
	a.True(errors.Is(c.Validate(), config.ErrUnknownBackend))

	c = valid()
	c.Store.Path = " "
	a.True(errors.Is(c.Validate(), config.ErrEmptyPath))

	// memory needs no path
	c.Store.Backend = config.BackendMemory
	a.NoError(c.Validate())

	c = valid()
	c.Store.Name = ""
	a.True(errors.Is(c.Validate(), config.ErrEmptyName))

	c = valid()
	c.Cache.Shards = 0
	a.True(errors.Is(c.Validate(), config.ErrInvalidValue))

	// cache sizes are irrelevant when it is off
	c.Cache.Enabled = false
	a.NoError(c.Validate())

	c = valid()
	c.Engine.MaxParentDepth = -1
	a.True(errors.Is(c.Validate(), config.ErrInvalidValue))
}
