package core

import (
	"context"
	"fmt"

	"github.com/agubarev/chapi/internal/config"
	"github.com/agubarev/chapi/pkg/cache"
	"github.com/agubarev/chapi/pkg/engine"
	"github.com/agubarev/chapi/pkg/repository"
	"github.com/agubarev/chapi/pkg/store"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Core holds everything the relationship engine runs on
type Core struct {
	config   *config.Config
	store    store.Store
	cache    *cache.BigCache
	engine   *engine.Engine
	registry *prometheus.Registry
	logger   *zap.Logger
}

// New initializes a core out of the given configuration, nothing is
// opened until Init is called
func New(c *config.Config) (*Core, error) {
	if c == nil {
		return nil, ErrNilConfig
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &Core{config: c, registry: prometheus.NewRegistry()}, nil
}

// Init opens the store, the cache and assembles the engine
func (m *Core) Init(ctx context.Context) (err error) {
	if m == nil {
		return ErrNilCore
	}

	if m.engine != nil {
		return ErrAlreadyInitialized
	}

	l := m.Logger()

	// releasing whatever got opened if anything below fails
	defer func() {
		if err != nil {
			err = multierr.Append(err, m.Close())
		}
	}()

	//---------------------------------------------------------------------------
	// document store
	//---------------------------------------------------------------------------
	l.Debug("opening the store", zap.String("backend", m.config.Store.Backend), zap.String("path", m.config.Store.Path))

	if m.store, err = m.openStore(); err != nil {
		return err
	}

	//---------------------------------------------------------------------------
	// cache
	//---------------------------------------------------------------------------
	var c cache.Cache = cache.Nop{}

	if m.config.Cache.Enabled {
		l.Debug("initializing the cache", zap.Duration("ttl", m.config.Cache.TTL))

		if m.cache, err = cache.NewBigCache(m.config.CacheConfig()); err != nil {
			return errors.Wrap(err, "failed to initialize cache")
		}

		c = m.cache
	}

	//---------------------------------------------------------------------------
	// repositories and the engine
	//---------------------------------------------------------------------------
	users, err := repository.New(repository.Users, m.store, c)
	if err != nil {
		return err
	}

	groups, err := repository.New(repository.Groups, m.store, c)
	if err != nil {
		return err
	}

	applications, err := repository.New(repository.Applications, m.store, c)
	if err != nil {
		return err
	}

	users.SetLogger(l)
	groups.SetLogger(l)
	applications.SetLogger(l)

	if m.cache != nil {
		users.SetTTL(m.config.Cache.TTL)
		groups.SetTTL(m.config.Cache.TTL)
		applications.SetTTL(m.config.Cache.TTL)
	}

	e, err := engine.New(users, groups, applications, m.config.EngineConfig())
	if err != nil {
		return errors.Wrap(err, "failed to initialize engine")
	}

	e.SetLogger(l)
	e.SetMetrics(engine.NewMetrics(m.registry))

	m.engine = e

	l.Debug("core initialized")

	return nil
}

func (m *Core) openStore() (store.Store, error) {
	conf := m.config.Store

	switch conf.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(conf.Name), nil
	case config.BackendBolt:
		s, err := store.OpenBoltStore(conf.Path, conf.Name)
		if err != nil {
			return nil, err
		}

		s.SetLogger(m.Logger())

		return s, nil
	case config.BackendBadger:
		s, err := store.OpenBadgerStore(conf.Path, conf.Name, m.Logger())
		if err != nil {
			return nil, err
		}

		return s, nil
	}

	return nil, errors.Wrapf(store.ErrUnknownBackend, "%q", conf.Backend)
}

// Engine returns the engine, panics if the core is not initialized
func (m *Core) Engine() *engine.Engine {
	if m.engine == nil {
		panic(ErrNotInitialized)
	}

	return m.engine
}

// Registry returns the registry the engine metrics are registered with
func (m *Core) Registry() *prometheus.Registry {
	return m.registry
}

// Close releases the store and the cache
func (m *Core) Close() (err error) {
	if m == nil {
		return nil
	}

	if m.cache != nil {
		err = multierr.Append(err, m.cache.Close())
		m.cache = nil
	}

	if m.store != nil {
		err = multierr.Append(err, m.store.Close())
		m.store = nil
	}

	m.engine = nil

	return err
}

// SetLogger setting a primary logger for the core
func (m *Core) SetLogger(logger *zap.Logger) {
	// if logger is set, then giving it a name
	// to know the log context
	if logger != nil {
		logger = logger.Named("[chapi]")
	}

	m.logger = logger
}

// Logger returns primary logger if is set, otherwise initializing and returning
// a new default emergency logger
// NOTE: will panic if it finally fails to obtain a logger
func (m *Core) Logger() *zap.Logger {
	if m.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			// having a working logger is crucial, thus must panic() if initialization fails
			panic(fmt.Errorf("failed to initialize core logger: %s", err))
		}

		m.logger = l
	}

	return m.logger
}
