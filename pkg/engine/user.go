package engine

import (
	"context"

	"github.com/agubarev/chapi/pkg/entity"
	"github.com/agubarev/chapi/pkg/fault"
	"go.uber.org/multierr"
)

// userPolicy maintains:
//
//	User.Organization   <-> organization.Members
//	User.Groups         <-> Group.Members
//	User.Applications[] <-> Application.Users
type userPolicy struct {
	e *Engine
}

func (p *userPolicy) validate(ctx context.Context, rel *Related, u *entity.User) error {
	org, ok, err := rel.groups.resolve(ctx, p.e.groups, u.OrganizationID())
	if err != nil {
		return err
	}

	if !ok || !org.IsOrganization() {
		return fault.NotFound(u.Organization, "organization %s does not exist", u.Organization)
	}

	err = resolveAll(ctx, p.e, rel.groups, p.e.groups, u.Groups, func(g *entity.Group) error {
		if g.IsOrganization() {
			return fault.BadRequest(g.ID, "group %s is an organization, membership follows the user's organization", g.ID)
		}

		return nil
	})

	if err != nil {
		return err
	}

	return p.e.validateAccess(ctx, rel, u.Applications)
}

func (p *userPolicy) synchronize(ctx context.Context, rel *Related, before, after *entity.User) (errs error) {
	var beforeID, afterID, beforeOrg, afterOrg string
	var beforeGroups, afterGroups, beforeApps, afterApps []string

	if before != nil {
		beforeID, beforeOrg = before.ID, before.OrganizationID()
		beforeGroups, beforeApps = before.Groups, entity.AccessNames(before.Applications)
	}

	if after != nil {
		afterID, afterOrg = after.ID, after.OrganizationID()
		afterGroups, afterApps = after.Groups, entity.AccessNames(after.Applications)
	}

	//---------------------------------------------------------------------------
	// organization
	//---------------------------------------------------------------------------
	if beforeOrg != afterOrg || beforeID != afterID {
		if afterOrg != "" {
			errs = multierr.Append(errs, p.e.patchGroup(ctx, rel, afterOrg, func(org *entity.Group) (changed bool) {
				org.Members, changed = entity.AddLink(org.Members, afterID)
				return changed
			}))
		}

		if beforeOrg != "" {
			errs = multierr.Append(errs, p.e.patchGroup(ctx, rel, beforeOrg, func(org *entity.Group) (changed bool) {
				org.Members, changed = entity.RemoveLink(org.Members, beforeID)
				return changed
			}))
		}
	}

	//---------------------------------------------------------------------------
	// groups
	//---------------------------------------------------------------------------
	removed, added, err := diffLinks(beforeID, beforeGroups, afterID, afterGroups)
	if err != nil {
		return multierr.Append(errs, err)
	}

	for _, id := range added {
		errs = multierr.Append(errs, p.e.patchGroup(ctx, rel, id, func(g *entity.Group) (changed bool) {
			g.Members, changed = entity.AddLink(g.Members, afterID)
			return changed
		}))
	}

	for _, id := range removed {
		errs = multierr.Append(errs, p.e.patchGroup(ctx, rel, id, func(g *entity.Group) (changed bool) {
			g.Members, changed = entity.RemoveLink(g.Members, beforeID)
			return changed
		}))
	}

	//---------------------------------------------------------------------------
	// applications
	//---------------------------------------------------------------------------
	if removed, added, err = diffLinks(beforeID, beforeApps, afterID, afterApps); err != nil {
		return multierr.Append(errs, err)
	}

	for _, name := range added {
		errs = multierr.Append(errs, p.e.patchApplication(ctx, rel, name, func(app *entity.Application) (changed bool) {
			app.Users, changed = entity.AddLink(app.Users, afterID)
			return changed
		}))
	}

	for _, name := range removed {
		errs = multierr.Append(errs, p.e.patchApplication(ctx, rel, name, func(app *entity.Application) (changed bool) {
			app.Users, changed = entity.RemoveLink(app.Users, beforeID)
			return changed
		}))
	}

	return errs
}

// users own nothing that has to go with them
func (p *userPolicy) cascade(context.Context, *entity.User) (bool, error) {
	return false, nil
}

func (p *userPolicy) migratable(_, _ *entity.User) error {
	return nil
}

func (p *userPolicy) retain(_, _ *entity.User) {}
