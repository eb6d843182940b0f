package entity

import (
	"strings"

	"github.com/pkg/errors"
)

// RootOrganization is the sentinel organization of top-level groups,
// deleting a group bound to it deletes its whole subtree
const RootOrganization = "root"

// Group is identified by "<organization>:<name>" and partitioned by its
// organization. A group whose name equals its organization is the
// organization itself.
type Group struct {
	ID             string              `json:"id"`
	Name           string              `json:"name" valid:"required"`
	Organization   string              `json:"organization" valid:"required"`
	Parent         string              `json:"parent,omitempty"`
	Description    string              `json:"description,omitempty"`
	ProfilePicture string              `json:"profilePicture,omitempty"`
	Members        []string            `json:"members"`
	Applications   []ApplicationAccess `json:"applications"`
	Children       []string            `json:"children"`

	// Groups of an organization are the ids of every other group
	// partitioned under it, always empty on regular groups
	Groups []string `json:"groups,omitempty"`
}

// GroupID builds a group id out of its organization and name
func GroupID(organization, name string) string {
	return organization + IDSeparator + name
}

// OrganizationID returns the id of the organization group itself
func OrganizationID(organization string) string {
	return GroupID(organization, organization)
}

// SplitGroupID splits a group id into organization and name
func SplitGroupID(id string) (organization, name string, err error) {
	parts := strings.Split(id, IDSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Wrapf(ErrMalformedName, "group id %q", id)
	}

	return parts[0], parts[1], nil
}

// NewGroup initializes a new group
func NewGroup(organization, name, parent string) *Group {
	g := &Group{
		Name:         name,
		Organization: organization,
		Parent:       parent,
		Members:      []string{},
		Applications: []ApplicationAccess{},
		Children:     []string{},
	}

	g.Normalize()

	return g
}

// NewOrganization initializes a new organization group
func NewOrganization(name string) *Group {
	return NewGroup(name, name, "")
}

func (g *Group) DocumentID() string   { return g.ID }
func (g *Group) PartitionKey() string { return g.Organization }

// IsOrganization tells whether this group is an organization
func (g *Group) IsOrganization() bool {
	return g.Name != "" && g.Name == g.Organization
}

// OrganizationID returns the id of the organization this group belongs to
func (g *Group) OrganizationID() string {
	return OrganizationID(g.Organization)
}

func (g *Group) Normalize() {
	g.Name = strings.TrimSpace(g.Name)
	g.Organization = strings.TrimSpace(g.Organization)
	g.Parent = strings.TrimSpace(g.Parent)
	g.ID = GroupID(g.Organization, g.Name)
	g.Members = UniqueLinks(g.Members)
	g.Children = UniqueLinks(g.Children)
	g.Groups = UniqueLinks(g.Groups)
	if !g.IsOrganization() {
		g.Groups = nil
	}

	g.Applications = uniqueAccess(g.Applications)
}

func (g *Group) Validate() error {
	if g == nil {
		return ErrNilGroup
	}

	if err := validateStruct(g); err != nil {
		return errors.Wrap(err, "invalid group")
	}

	if strings.Contains(g.Name, IDSeparator) {
		return errors.Wrapf(ErrMalformedName, "group name %q", g.Name)
	}

	if strings.Contains(g.Organization, IDSeparator) {
		return errors.Wrapf(ErrMalformedName, "organization %q", g.Organization)
	}

	return nil
}

func (g *Group) Clone() *Group {
	return &Group{
		ID:             g.ID,
		Name:           g.Name,
		Organization:   g.Organization,
		Parent:         g.Parent,
		Description:    g.Description,
		ProfilePicture: g.ProfilePicture,
		Members:        copyStrings(g.Members),
		Applications:   copyAccess(g.Applications),
		Children:       copyStrings(g.Children),
		Groups:         copyStrings(g.Groups),
	}
}

func (g *Group) SoftOverwrite(src *Group) {
	if src == nil {
		return
	}

	overwriteString(&g.Name, src.Name)
	overwriteString(&g.Organization, src.Organization)
	overwriteString(&g.Parent, src.Parent)
	overwriteString(&g.Description, src.Description)
	overwriteString(&g.ProfilePicture, src.ProfilePicture)
	overwriteStrings(&g.Members, src.Members)
	overwriteStrings(&g.Children, src.Children)
	overwriteStrings(&g.Groups, src.Groups)

	if src.Applications != nil {
		g.Applications = copyAccess(src.Applications)
	}

	g.Normalize()
}

func (g *Group) WithPartition(partition string) *Group {
	moved := g.Clone()
	moved.Organization = partition
	moved.Normalize()

	return moved
}

func (g *Group) Shadow(marker string) *Group {
	shadow := g.Clone()
	shadow.Name = ShadowPrefix + marker + "~" + g.Name
	shadow.Normalize()

	return shadow
}
