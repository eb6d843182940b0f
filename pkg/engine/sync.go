package engine

import (
	"context"

	"github.com/agubarev/chapi/pkg/entity"
	"github.com/agubarev/chapi/pkg/fault"
	"github.com/agubarev/chapi/pkg/repository"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// resolveAll resolves every id of a reference list in parallel, an
// absent id fails with fault.KNotFound, check may reject a resolved one
func resolveAll[T entity.Entity[T]](
	ctx context.Context,
	e *Engine,
	set *relatedSet[T],
	repo *repository.Repository[T],
	ids []string,
	check func(T) error,
) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.ValidationConcurrency)

	for _, id := range ids {
		id := id

		g.Go(func() error {
			item, ok, err := set.resolve(ctx, repo, id)
			if err != nil {
				return err
			}

			if !ok {
				return fault.NotFound(id, "%s %s does not exist", repo.Kind().Name, id)
			}

			if check != nil {
				return check(item)
			}

			return nil
		})
	}

	return g.Wait()
}

// patchCounterpart applies fn to a counterpart and writes it back if fn
// reports a change. A counterpart that no longer exists is skipped.
func patchCounterpart[T entity.Entity[T]](
	ctx context.Context,
	e *Engine,
	set *relatedSet[T],
	repo *repository.Repository[T],
	id string,
	fn func(T) bool,
) error {
	l := e.loggerFrom(ctx)
	kind := repo.Kind().Name

	item, ok, err := set.resolve(ctx, repo, id)
	if err != nil {
		e.metrics.counterpartWrite(kind, err)
		return errors.Wrapf(err, "failed to obtain %s %s", kind, id)
	}

	if !ok {
		l.Debug("counterpart is gone, skipping", zap.String("counterpart", kind), zap.String("counterpart_id", id))
		return nil
	}

	if !fn(item) {
		return nil
	}

	if _, err = repo.Put(ctx, item); err != nil {
		e.metrics.counterpartWrite(kind, err)

		// re-read on the next resolution instead of trusting a half applied change
		set.forget(id)

		return errors.Wrapf(err, "failed to update %s %s", kind, id)
	}

	e.metrics.counterpartWrite(kind, nil)
	l.Debug("counterpart updated", zap.String("counterpart", kind), zap.String("counterpart_id", id))

	return nil
}

func (e *Engine) patchUser(ctx context.Context, rel *Related, id string, fn func(*entity.User) bool) error {
	return patchCounterpart(ctx, e, rel.users, e.users, id, fn)
}

func (e *Engine) patchGroup(ctx context.Context, rel *Related, id string, fn func(*entity.Group) bool) error {
	return patchCounterpart(ctx, e, rel.groups, e.groups, id, fn)
}

func (e *Engine) patchApplication(ctx context.Context, rel *Related, id string, fn func(*entity.Application) bool) error {
	return patchCounterpart(ctx, e, rel.applications, e.applications, id, fn)
}

// validateAccess checks that every granted application and role exists
func (e *Engine) validateAccess(ctx context.Context, rel *Related, access []entity.ApplicationAccess) error {
	roles := make(map[string][]string, len(access))
	for _, a := range access {
		roles[a.Name] = a.Roles
	}

	return resolveAll(ctx, e, rel.applications, e.applications, entity.AccessNames(access), func(app *entity.Application) error {
		for _, r := range roles[app.Name] {
			if _, ok := app.Role(r); !ok {
				return fault.NotFound(app.Name, "role %s for application %s does not exist", r, app.Name)
			}
		}

		return nil
	})
}
