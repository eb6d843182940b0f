// Package engine keeps the denormalized relationships between users,
// groups and applications consistent. Every mutation validates the
// references it introduces, persists the primary entity and then fixes
// the back-references held by each counterpart.
package engine

import (
	"context"
	"fmt"

	"github.com/agubarev/chapi/pkg/entity"
	"github.com/agubarev/chapi/pkg/repository"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// errors
var (
	ErrNilRepository = errors.New("repository is nil")
)

// Config of the engine
type Config struct {
	// ValidationConcurrency limits parallel reference lookups of one list
	ValidationConcurrency int

	// MaxParentDepth bounds the walk up a group's parent chain
	MaxParentDepth int
}

// DefaultConfig returns the default engine config
func DefaultConfig() Config {
	return Config{
		ValidationConcurrency: 8,
		MaxParentDepth:        64,
	}
}

// Engine is the entry point for every operation on the directory
type Engine struct {
	Users        *Service[*entity.User]
	Groups       *Service[*entity.Group]
	Applications *Service[*entity.Application]

	users        *repository.Repository[*entity.User]
	groups       *repository.Repository[*entity.Group]
	applications *repository.Repository[*entity.Application]

	config  Config
	metrics *Metrics
	logger  *zap.Logger
}

// New initializes the engine over the three repositories
func New(
	users *repository.Repository[*entity.User],
	groups *repository.Repository[*entity.Group],
	applications *repository.Repository[*entity.Application],
	config Config,
) (*Engine, error) {
	if users == nil || groups == nil || applications == nil {
		return nil, ErrNilRepository
	}

	defaults := DefaultConfig()

	if config.ValidationConcurrency <= 0 {
		config.ValidationConcurrency = defaults.ValidationConcurrency
	}

	if config.MaxParentDepth <= 0 {
		config.MaxParentDepth = defaults.MaxParentDepth
	}

	e := &Engine{
		users:        users,
		groups:       groups,
		applications: applications,
		config:       config,
	}

	e.Users = &Service[*entity.User]{engine: e, repo: users, policy: &userPolicy{e}}
	e.Groups = &Service[*entity.Group]{engine: e, repo: groups, policy: &groupPolicy{e}}
	e.Applications = &Service[*entity.Application]{engine: e, repo: applications, policy: &applicationPolicy{e}}

	return e, nil
}

// SetLogger assigns a logger to this engine
func (e *Engine) SetLogger(logger *zap.Logger) {
	if logger != nil {
		logger = logger.Named("[engine]")
	}

	e.logger = logger
}

// Logger returns own logger
func (e *Engine) Logger() *zap.Logger {
	if e.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(fmt.Errorf("failed to initialize engine logger: %s", err))
		}

		e.logger = l
	}

	return e.logger
}

// SetMetrics enables metrics collection
func (e *Engine) SetMetrics(m *Metrics) {
	e.metrics = m
}

type loggerKey struct{}

// loggerFrom returns the per-operation logger stored in ctx, falling back
// to the engine's own
func (e *Engine) loggerFrom(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}

	return e.Logger()
}
