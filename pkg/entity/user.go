package entity

import (
	"strings"

	"github.com/pkg/errors"
)

// User is identified by its email and partitioned by its organization
type User struct {
	ID             string              `json:"id"`
	Email          string              `json:"email" valid:"required,email"`
	Organization   string              `json:"organization" valid:"required"`
	Name           string              `json:"name,omitempty"`
	ProfilePicture string              `json:"profilePicture,omitempty"`
	Applications   []ApplicationAccess `json:"applications"`
	Groups         []string            `json:"groups"`
}

// NewUser initializes a new user
func NewUser(organization, email string) *User {
	u := &User{
		Email:        email,
		Organization: organization,
		Applications: []ApplicationAccess{},
		Groups:       []string{},
	}

	u.Normalize()

	return u
}

func (u *User) DocumentID() string   { return u.ID }
func (u *User) PartitionKey() string { return u.Organization }

// OrganizationID returns the id of the organization group this user belongs to
func (u *User) OrganizationID() string {
	return OrganizationID(u.Organization)
}

func (u *User) Normalize() {
	u.Email = strings.TrimSpace(u.Email)
	u.Organization = strings.TrimSpace(u.Organization)
	u.ID = u.Email
	u.Groups = UniqueLinks(u.Groups)
	u.Applications = uniqueAccess(u.Applications)
}

func (u *User) Validate() error {
	if u == nil {
		return ErrNilUser
	}

	if err := validateStruct(u); err != nil {
		return errors.Wrap(err, "invalid user")
	}

	if strings.Contains(u.Organization, IDSeparator) {
		return errors.Wrapf(ErrMalformedName, "organization %q", u.Organization)
	}

	return nil
}

func (u *User) Clone() *User {
	return &User{
		ID:             u.ID,
		Email:          u.Email,
		Organization:   u.Organization,
		Name:           u.Name,
		ProfilePicture: u.ProfilePicture,
		Applications:   copyAccess(u.Applications),
		Groups:         copyStrings(u.Groups),
	}
}

func (u *User) SoftOverwrite(src *User) {
	if src == nil {
		return
	}

	overwriteString(&u.Email, src.Email)
	overwriteString(&u.Organization, src.Organization)
	overwriteString(&u.Name, src.Name)
	overwriteString(&u.ProfilePicture, src.ProfilePicture)
	overwriteStrings(&u.Groups, src.Groups)

	if src.Applications != nil {
		u.Applications = copyAccess(src.Applications)
	}

	u.Normalize()
}

func (u *User) WithPartition(partition string) *User {
	moved := u.Clone()
	moved.Organization = partition
	moved.Normalize()

	return moved
}

func (u *User) Shadow(marker string) *User {
	shadow := u.Clone()
	shadow.Email = ShadowPrefix + marker + "~" + u.Email
	shadow.Normalize()

	return shadow
}
