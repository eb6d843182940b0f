package engine

import (
	"context"
	"sort"

	"github.com/agubarev/chapi/pkg/entity"
	"github.com/agubarev/chapi/pkg/fault"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// groupPolicy maintains:
//
//	Group.Organization   <-> organization.Groups
//	Group.Parent         <-> parent.Children
//	Group.Children       <-> child.Parent
//	Group.Members        <-> User.Groups (not for organizations)
//	Group.Applications[] <-> Application.Groups
type groupPolicy struct {
	e *Engine
}

func (p *groupPolicy) validate(ctx context.Context, rel *Related, g *entity.Group) error {
	//---------------------------------------------------------------------------
	// organization
	//---------------------------------------------------------------------------
	if g.IsOrganization() {
		if g.Parent != "" {
			return fault.BadRequest(g.ID, "organization %s cannot have a parent", g.ID)
		}
	} else {
		org, ok, err := rel.groups.resolve(ctx, p.e.groups, g.OrganizationID())
		if err != nil {
			return err
		}

		if !ok || !org.IsOrganization() {
			return fault.NotFound(g.Organization, "organization %s does not exist", g.Organization)
		}
	}

	//---------------------------------------------------------------------------
	// parent chain
	//---------------------------------------------------------------------------
	ancestors, err := p.ancestors(ctx, rel, g)
	if err != nil {
		return err
	}

	//---------------------------------------------------------------------------
	// children
	//---------------------------------------------------------------------------
	for _, id := range g.Children {
		if id == g.ID {
			return fault.BadRequest(g.ID, "group %s cannot be its own child", g.ID)
		}

		if entity.ContainsLink(ancestors, id) {
			return fault.BadRequest(g.ID, "circular parenting: %s is an ancestor of %s", id, g.ID)
		}
	}

	err = resolveAll(ctx, p.e, rel.groups, p.e.groups, g.Children, func(child *entity.Group) error {
		if child.IsOrganization() {
			return fault.BadRequest(child.ID, "organization %s cannot be a child of %s", child.ID, g.ID)
		}

		return nil
	})

	if err != nil {
		return err
	}

	//---------------------------------------------------------------------------
	// members and applications
	//---------------------------------------------------------------------------
	if err = resolveAll(ctx, p.e, rel.users, p.e.users, g.Members, nil); err != nil {
		return err
	}

	return p.e.validateAccess(ctx, rel, g.Applications)
}

// ancestors walks up the parent chain and returns the ids met on the way,
// closest first. A chain leading back to the group itself is rejected.
func (p *groupPolicy) ancestors(ctx context.Context, rel *Related, g *entity.Group) ([]string, error) {
	if g.Parent == "" {
		return nil, nil
	}

	if g.Parent == g.ID {
		return nil, fault.BadRequest(g.ID, "group %s cannot be its own parent", g.ID)
	}

	parent, ok, err := rel.groups.resolve(ctx, p.e.groups, g.Parent)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fault.NotFound(g.Parent, "parent group %s does not exist", g.Parent)
	}

	ancestors := []string{parent.ID}

	for current := parent; current.Parent != ""; {
		if current.Parent == g.ID || entity.ContainsLink(ancestors, current.Parent) {
			return nil, fault.BadRequest(g.ID, "circular parenting: %s leads back to %s", g.Parent, current.Parent)
		}

		if len(ancestors) >= p.e.config.MaxParentDepth {
			return nil, fault.BadRequest(g.ID, "parent chain of %s is deeper than %d", g.ID, p.e.config.MaxParentDepth)
		}

		next, ok, err := rel.groups.resolve(ctx, p.e.groups, current.Parent)
		if err != nil {
			return nil, err
		}

		// a dangling parent ends the chain
		if !ok {
			break
		}

		ancestors = append(ancestors, next.ID)
		current = next
	}

	return ancestors, nil
}

type groupLinks struct {
	id           string
	organization string
	parent       string
	isOrg        bool
	members      []string
	children     []string
	applications []string
}

func linksOf(g *entity.Group) (l groupLinks) {
	if g == nil {
		return l
	}

	l = groupLinks{
		id:           g.ID,
		parent:       g.Parent,
		isOrg:        g.IsOrganization(),
		members:      g.Members,
		children:     g.Children,
		applications: entity.AccessNames(g.Applications),
	}

	if !l.isOrg {
		l.organization = g.OrganizationID()
	}

	return l
}

func (p *groupPolicy) synchronize(ctx context.Context, rel *Related, before, after *entity.Group) (errs error) {
	b, a := linksOf(before), linksOf(after)
	relinked := b.id != a.id

	//---------------------------------------------------------------------------
	// organization
	//---------------------------------------------------------------------------
	if b.organization != a.organization || relinked {
		if b.organization != "" {
			errs = multierr.Append(errs, p.e.patchGroup(ctx, rel, b.organization, func(org *entity.Group) (changed bool) {
				org.Groups, changed = entity.RemoveLink(org.Groups, b.id)
				return changed
			}))
		}

		if a.organization != "" {
			errs = multierr.Append(errs, p.e.patchGroup(ctx, rel, a.organization, func(org *entity.Group) (changed bool) {
				org.Groups, changed = entity.AddLink(org.Groups, a.id)
				return changed
			}))
		}
	}

	//---------------------------------------------------------------------------
	// parent
	//---------------------------------------------------------------------------
	if b.parent != a.parent || relinked {
		if b.parent != "" {
			errs = multierr.Append(errs, p.e.patchGroup(ctx, rel, b.parent, func(parent *entity.Group) (changed bool) {
				parent.Children, changed = entity.RemoveLink(parent.Children, b.id)
				return changed
			}))
		}

		if a.parent != "" {
			errs = multierr.Append(errs, p.e.patchGroup(ctx, rel, a.parent, func(parent *entity.Group) (changed bool) {
				parent.Children, changed = entity.AddLink(parent.Children, a.id)
				return changed
			}))
		}
	}

	//---------------------------------------------------------------------------
	// children
	//---------------------------------------------------------------------------
	errs = multierr.Append(errs, p.synchronizeChildren(ctx, rel, b, a, after == nil))

	//---------------------------------------------------------------------------
	// members
	//---------------------------------------------------------------------------
	if !b.isOrg && !a.isOrg {
		removed, added, err := diffLinks(b.id, b.members, a.id, a.members)
		if err != nil {
			return multierr.Append(errs, err)
		}

		for _, id := range added {
			errs = multierr.Append(errs, p.e.patchUser(ctx, rel, id, func(u *entity.User) (changed bool) {
				u.Groups, changed = entity.AddLink(u.Groups, a.id)
				return changed
			}))
		}

		for _, id := range removed {
			errs = multierr.Append(errs, p.e.patchUser(ctx, rel, id, func(u *entity.User) (changed bool) {
				u.Groups, changed = entity.RemoveLink(u.Groups, b.id)
				return changed
			}))
		}
	}

	//---------------------------------------------------------------------------
	// applications
	//---------------------------------------------------------------------------
	removed, added, err := diffLinks(b.id, b.applications, a.id, a.applications)
	if err != nil {
		return multierr.Append(errs, err)
	}

	for _, name := range added {
		errs = multierr.Append(errs, p.e.patchApplication(ctx, rel, name, func(app *entity.Application) (changed bool) {
			app.Groups, changed = entity.AddLink(app.Groups, a.id)
			return changed
		}))
	}

	for _, name := range removed {
		errs = multierr.Append(errs, p.e.patchApplication(ctx, rel, name, func(app *entity.Application) (changed bool) {
			app.Groups, changed = entity.RemoveLink(app.Groups, b.id)
			return changed
		}))
	}

	return errs
}

// synchronizeChildren adopts added children and hoists removed ones to
// the group's own parent. Adoption runs first: when the group's id has
// changed the same child shows up on both sides and must end up
// pointing at the new id.
func (p *groupPolicy) synchronizeChildren(ctx context.Context, rel *Related, b, a groupLinks, deleted bool) (errs error) {
	removed, added, err := diffLinks(b.id, b.children, a.id, a.children)
	if err != nil {
		return err
	}

	hoist := a.parent
	if deleted {
		hoist = b.parent
	}

	for _, id := range added {
		var previous string

		err := p.e.patchGroup(ctx, rel, id, func(child *entity.Group) bool {
			if child.Parent == a.id {
				return false
			}

			previous, child.Parent = child.Parent, a.id

			return true
		})

		errs = multierr.Append(errs, err)

		if err == nil && previous != "" && previous != b.id {
			errs = multierr.Append(errs, p.e.patchGroup(ctx, rel, previous, func(old *entity.Group) (changed bool) {
				old.Children, changed = entity.RemoveLink(old.Children, id)
				return changed
			}))
		}
	}

	for _, id := range removed {
		hoisted := false

		err := p.e.patchGroup(ctx, rel, id, func(child *entity.Group) bool {
			if child.Parent != b.id {
				return false
			}

			child.Parent, hoisted = hoist, true

			return true
		})

		errs = multierr.Append(errs, err)

		if err == nil && hoisted && hoist != "" {
			errs = multierr.Append(errs, p.e.patchGroup(ctx, rel, hoist, func(parent *entity.Group) (changed bool) {
				parent.Children, changed = entity.AddLink(parent.Children, id)
				return changed
			}))
		}
	}

	return errs
}

// cascade deletes everything an organization (or a group bound to the
// root sentinel) owns before the group itself goes
func (p *groupPolicy) cascade(ctx context.Context, g *entity.Group) (bool, error) {
	switch {
	case g.IsOrganization():
		return true, p.deleteOrganizationContents(ctx, g)
	case g.Organization == entity.RootOrganization:
		return true, p.deleteSubtree(ctx, g)
	}

	return false, nil
}

func (p *groupPolicy) deleteOrganizationContents(ctx context.Context, org *entity.Group) (errs error) {
	users, err := p.e.users.GetByPartition(ctx, org.Organization)
	if err != nil {
		return errors.Wrapf(err, "failed to obtain users of %s", org.ID)
	}

	for _, u := range users {
		errs = multierr.Append(errs, ignoreNotFound(p.e.Users.Delete(ctx, u)))
	}

	groups, err := p.e.groups.GetByPartition(ctx, org.Organization)
	if err != nil {
		return multierr.Append(errs, errors.Wrapf(err, "failed to obtain groups of %s", org.ID))
	}

	for _, g := range deepestFirst(groups) {
		if g.ID == org.ID {
			continue
		}

		errs = multierr.Append(errs, ignoreNotFound(p.e.Groups.Delete(ctx, g)))
	}

	return errs
}

// deleteSubtree deletes every descendant, leaves first, so that nothing
// gets hoisted on the way
func (p *groupPolicy) deleteSubtree(ctx context.Context, root *entity.Group) (errs error) {
	visited := map[string]bool{root.ID: true}
	order := make([]*entity.Group, 0)

	var walk func(g *entity.Group) error
	walk = func(g *entity.Group) error {
		for _, id := range g.Children {
			if visited[id] {
				continue
			}

			visited[id] = true

			child, ok, err := p.e.groups.GetIfExists(ctx, id, "")
			if err != nil {
				return err
			}

			if !ok {
				continue
			}

			if err = walk(child); err != nil {
				return err
			}

			order = append(order, child)
		}

		return nil
	}

	if err := walk(root); err != nil {
		return errors.Wrapf(err, "failed to collect descendants of %s", root.ID)
	}

	for _, g := range order {
		errs = multierr.Append(errs, ignoreNotFound(p.e.Groups.Delete(ctx, g)))
	}

	return errs
}

// deepestFirst orders groups by their depth within the given set
func deepestFirst(groups []*entity.Group) []*entity.Group {
	byID := make(map[string]*entity.Group, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}

	depth := make(map[string]int, len(groups))
	for _, g := range groups {
		d, seen := 0, map[string]bool{g.ID: true}
		for parent, ok := byID[g.Parent]; ok && !seen[parent.ID]; parent, ok = byID[parent.Parent] {
			seen[parent.ID] = true
			d++
		}

		depth[g.ID] = d
	}

	sorted := append([]*entity.Group(nil), groups...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return depth[sorted[i].ID] > depth[sorted[j].ID]
	})

	return sorted
}

func (p *groupPolicy) migratable(existing, moved *entity.Group) error {
	if existing.IsOrganization() {
		return fault.BadRequest(existing.ID, "organization %s cannot be migrated", existing.ID)
	}

	if moved.IsOrganization() {
		return fault.BadRequest(existing.ID, "group %s would become the organization %s", existing.ID, moved.ID)
	}

	return nil
}

// retain keeps an organization's Members and Groups, they mirror
// User.Organization and Group.Organization and are written by
// synchronization alone
func (p *groupPolicy) retain(existing, next *entity.Group) {
	if !next.IsOrganization() {
		return
	}

	if existing == nil {
		next.Members, next.Groups = nil, nil
		return
	}

	next.Members = append([]string(nil), existing.Members...)
	next.Groups = append([]string(nil), existing.Groups...)
}

func ignoreNotFound(err error) error {
	if fault.IsNotFound(err) {
		return nil
	}

	return err
}
