package entity

import (
	"strings"

	"github.com/pkg/errors"
)

// Role is a named set of permissions exposed by an application
type Role struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions"`
}

// Copy returns a deep copy
func (r Role) Copy() Role {
	return Role{
		Name:        r.Name,
		Description: r.Description,
		Permissions: copyStrings(r.Permissions),
	}
}

// Application is identified by its name and partitioned by its platform
type Application struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name" valid:"required"`
	Platform    string                 `json:"platform" valid:"required"`
	Description string                 `json:"description,omitempty"`
	Users       []string               `json:"users"`
	Groups      []string               `json:"groups"`
	Permissions []string               `json:"permissions"`
	Roles       []Role                 `json:"roles"`
	Data        map[string]interface{} `json:"data,omitempty" valid:"-"`
}

// NewApplication initializes a new application
func NewApplication(platform, name string, roles ...Role) *Application {
	a := &Application{
		Name:        name,
		Platform:    platform,
		Users:       []string{},
		Groups:      []string{},
		Permissions: []string{},
		Roles:       roles,
	}

	if a.Roles == nil {
		a.Roles = []Role{}
	}

	a.Normalize()

	return a
}

func (a *Application) DocumentID() string   { return a.ID }
func (a *Application) PartitionKey() string { return a.Platform }

// Role returns a role by its name
func (a *Application) Role(name string) (Role, bool) {
	for _, r := range a.Roles {
		if r.Name == name {
			return r, true
		}
	}

	return Role{}, false
}

func (a *Application) Normalize() {
	a.Name = strings.TrimSpace(a.Name)
	a.Platform = strings.TrimSpace(a.Platform)
	a.ID = a.Name
	a.Users = UniqueLinks(a.Users)
	a.Groups = UniqueLinks(a.Groups)
	a.Permissions = UniqueLinks(a.Permissions)
}

func (a *Application) Validate() error {
	if a == nil {
		return ErrNilApplication
	}

	if err := validateStruct(a); err != nil {
		return errors.Wrap(err, "invalid application")
	}

	seen := make(map[string]struct{}, len(a.Roles))
	for _, r := range a.Roles {
		if strings.TrimSpace(r.Name) == "" {
			return errors.Wrapf(ErrEmptyRoleName, "application %s", a.Name)
		}

		if _, ok := seen[r.Name]; ok {
			return errors.Wrapf(ErrDuplicateRole, "application %s, role %s", a.Name, r.Name)
		}

		seen[r.Name] = struct{}{}
	}

	return nil
}

func (a *Application) Clone() *Application {
	c := &Application{
		ID:          a.ID,
		Name:        a.Name,
		Platform:    a.Platform,
		Description: a.Description,
		Users:       copyStrings(a.Users),
		Groups:      copyStrings(a.Groups),
		Permissions: copyStrings(a.Permissions),
		Data:        copyData(a.Data),
	}

	if a.Roles != nil {
		c.Roles = make([]Role, 0, len(a.Roles))
		for _, r := range a.Roles {
			c.Roles = append(c.Roles, r.Copy())
		}
	}

	return c
}

// SoftOverwrite merges roles by name: known roles are updated,
// new ones appended and the ones not mentioned are kept
func (a *Application) SoftOverwrite(src *Application) {
	if src == nil {
		return
	}

	overwriteString(&a.Name, src.Name)
	overwriteString(&a.Platform, src.Platform)
	overwriteString(&a.Description, src.Description)
	overwriteStrings(&a.Users, src.Users)
	overwriteStrings(&a.Groups, src.Groups)
	overwriteStrings(&a.Permissions, src.Permissions)

	for _, incoming := range src.Roles {
		merged := false
		for i := range a.Roles {
			if a.Roles[i].Name != incoming.Name {
				continue
			}

			overwriteString(&a.Roles[i].Description, incoming.Description)
			overwriteStrings(&a.Roles[i].Permissions, incoming.Permissions)
			merged = true

			break
		}

		if !merged {
			a.Roles = append(a.Roles, incoming.Copy())
		}
	}

	if src.Data != nil {
		a.Data = copyData(src.Data)
	}

	a.Normalize()
}

func (a *Application) WithPartition(partition string) *Application {
	moved := a.Clone()
	moved.Platform = partition
	moved.Normalize()

	return moved
}

func (a *Application) Shadow(marker string) *Application {
	shadow := a.Clone()
	shadow.Name = ShadowPrefix + marker + "~" + a.Name
	shadow.Normalize()

	return shadow
}
