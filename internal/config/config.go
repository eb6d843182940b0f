package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/agubarev/chapi/pkg/cache"
	"github.com/agubarev/chapi/pkg/engine"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// errors
var (
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrEmptyPath      = errors.New("store path is empty")
	ErrEmptyName      = errors.New("store name is empty")
	ErrInvalidValue   = errors.New("value must be positive")
)

// supported store backends
const (
	BackendBolt   = "bolt"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// EnvPrefix prefixes every environment override, i.e. CHAPI_STORE_BACKEND
const EnvPrefix = "CHAPI"

// DefaultFile is looked up in the home directory when no file is given
const DefaultFile = ".chapi.yaml"

type Store struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	Name    string `mapstructure:"name"`
}

type Cache struct {
	Enabled   bool          `mapstructure:"enabled"`
	TTL       time.Duration `mapstructure:"ttl"`
	Shards    int           `mapstructure:"shards"`
	MaxSizeMB int           `mapstructure:"max_size_mb"`
}

type Engine struct {
	ValidationConcurrency int `mapstructure:"validation_concurrency"`
	MaxParentDepth        int `mapstructure:"max_parent_depth"`
}

type Log struct {
	Debug bool   `mapstructure:"debug"`
	Dir   string `mapstructure:"dir"`
}

// Config is the complete runtime configuration
type Config struct {
	Store  Store  `mapstructure:"store"`
	Cache  Cache  `mapstructure:"cache"`
	Engine Engine `mapstructure:"engine"`
	Log    Log    `mapstructure:"log"`
}

// Defaults applies default values to v
func Defaults(v *viper.Viper) {
	cacheDefaults := cache.DefaultConfig()
	engineDefaults := engine.DefaultConfig()

	v.SetDefault("store.backend", BackendBolt)
	v.SetDefault("store.path", filepath.Join(".", "data", "chapi.db"))
	v.SetDefault("store.name", "chapi")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", cacheDefaults.TTL)
	v.SetDefault("cache.shards", cacheDefaults.Shards)
	v.SetDefault("cache.max_size_mb", cacheDefaults.MaxSizeMB)

	v.SetDefault("engine.validation_concurrency", engineDefaults.ValidationConcurrency)
	v.SetDefault("engine.max_parent_depth", engineDefaults.MaxParentDepth)

	v.SetDefault("log.debug", false)
	v.SetDefault("log.dir", "")
}

// New returns a viper instance with defaults and environment overrides
// in place, ready to have flags bound to it
func New() *viper.Viper {
	v := viper.New()
	Defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the given file, or $HOME/.chapi.yaml when it is empty,
// into v and decodes the result. A missing default file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to locate home directory")
		}

		v.AddConfigPath(home)
		v.SetConfigName(strings.TrimSuffix(DefaultFile, filepath.Ext(DefaultFile)))
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, errors.Wrap(err, "failed to read configuration")
		}
	}

	return Decode(v)
}

// Decode decodes and validates whatever v currently holds
func Decode(v *viper.Viper) (*Config, error) {
	c := new(Config)
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendBolt, BackendBadger:
		if strings.TrimSpace(c.Store.Path) == "" {
			return ErrEmptyPath
		}
	case BackendMemory:
	default:
		return errors.Wrapf(ErrUnknownBackend, "%q", c.Store.Backend)
	}

	if strings.TrimSpace(c.Store.Name) == "" {
		return ErrEmptyName
	}

	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return errors.Wrap(ErrInvalidValue, "cache.ttl")
		}

		if c.Cache.Shards <= 0 {
			return errors.Wrap(ErrInvalidValue, "cache.shards")
		}

		if c.Cache.MaxSizeMB <= 0 {
			return errors.Wrap(ErrInvalidValue, "cache.max_size_mb")
		}
	}

	if c.Engine.ValidationConcurrency <= 0 {
		return errors.Wrap(ErrInvalidValue, "engine.validation_concurrency")
	}

	if c.Engine.MaxParentDepth <= 0 {
		return errors.Wrap(ErrInvalidValue, "engine.max_parent_depth")
	}

	return nil
}

// CacheConfig converts the cache section
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Shards:    c.Cache.Shards,
		MaxSizeMB: c.Cache.MaxSizeMB,
		TTL:       c.Cache.TTL,
	}
}

// EngineConfig converts the engine section
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		ValidationConcurrency: c.Engine.ValidationConcurrency,
		MaxParentDepth:        c.Engine.MaxParentDepth,
	}
}
