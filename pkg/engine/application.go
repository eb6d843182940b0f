package engine

import (
	"context"

	"github.com/agubarev/chapi/pkg/entity"
	"go.uber.org/multierr"
)

// applicationPolicy maintains:
//
//	Application.Users  <-> User.Applications[]
//	Application.Groups <-> Group.Applications[]
//
// access granted from this side carries no roles
type applicationPolicy struct {
	e *Engine
}

func (p *applicationPolicy) validate(ctx context.Context, rel *Related, app *entity.Application) error {
	if err := resolveAll(ctx, p.e, rel.users, p.e.users, app.Users, nil); err != nil {
		return err
	}

	return resolveAll(ctx, p.e, rel.groups, p.e.groups, app.Groups, nil)
}

func (p *applicationPolicy) synchronize(ctx context.Context, rel *Related, before, after *entity.Application) (errs error) {
	var beforeID, afterID string
	var beforeUsers, afterUsers, beforeGroups, afterGroups []string

	if before != nil {
		beforeID, beforeUsers, beforeGroups = before.ID, before.Users, before.Groups
	}

	if after != nil {
		afterID, afterUsers, afterGroups = after.ID, after.Users, after.Groups
	}

	removed, added, err := diffLinks(beforeID, beforeUsers, afterID, afterUsers)
	if err != nil {
		return err
	}

	for _, id := range added {
		errs = multierr.Append(errs, p.e.patchUser(ctx, rel, id, func(u *entity.User) (changed bool) {
			u.Applications, changed = entity.AddAccess(u.Applications, afterID)
			return changed
		}))
	}

	for _, id := range removed {
		errs = multierr.Append(errs, p.e.patchUser(ctx, rel, id, func(u *entity.User) (changed bool) {
			u.Applications, changed = entity.RemoveAccess(u.Applications, beforeID)
			return changed
		}))
	}

	if removed, added, err = diffLinks(beforeID, beforeGroups, afterID, afterGroups); err != nil {
		return multierr.Append(errs, err)
	}

	for _, id := range added {
		errs = multierr.Append(errs, p.e.patchGroup(ctx, rel, id, func(g *entity.Group) (changed bool) {
			g.Applications, changed = entity.AddAccess(g.Applications, afterID)
			return changed
		}))
	}

	for _, id := range removed {
		errs = multierr.Append(errs, p.e.patchGroup(ctx, rel, id, func(g *entity.Group) (changed bool) {
			g.Applications, changed = entity.RemoveAccess(g.Applications, beforeID)
			return changed
		}))
	}

	return errs
}

func (p *applicationPolicy) cascade(context.Context, *entity.Application) (bool, error) {
	return false, nil
}

func (p *applicationPolicy) migratable(_, _ *entity.Application) error {
	return nil
}

func (p *applicationPolicy) retain(_, _ *entity.Application) {}
