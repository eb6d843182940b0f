package entity_test

import (
	"testing"

	"github.com/agubarev/chapi/pkg/entity"
	"github.com/stretchr/testify/assert"
)

func TestIdentity(t *testing.T) {
	a := assert.New(t)

	u := entity.NewUser("acme", " a@x.com ")
	a.Equal("a@x.com", u.ID)
	a.Equal("acme", u.PartitionKey())
	a.Equal("acme:acme", u.OrganizationID())

	// client supplied ids are ignored
	u.ID = "forged"
	u.Normalize()
	a.Equal("a@x.com", u.DocumentID())

	g := entity.NewGroup("acme", "eng", "")
	a.Equal("acme:eng", g.ID)
	a.False(g.IsOrganization())
	a.True(entity.NewOrganization("acme").IsOrganization())

	org, name, err := entity.SplitGroupID("acme:eng")
	a.NoError(err)
	a.Equal("acme", org)
	a.Equal("eng", name)

	_, _, err = entity.SplitGroupID("acme")
	a.Error(err)

	app := entity.NewApplication("web", "app1")
	a.Equal("app1", app.ID)
	a.Equal("web", app.PartitionKey())
}

func TestValidate(t *testing.T) {
	a := assert.New(t)

	a.NoError(entity.NewUser("acme", "a@x.com").Validate())
	a.Error(entity.NewUser("acme", "").Validate())
	a.Error(entity.NewUser("", "a@x.com").Validate())
	a.Error(entity.NewUser("acme", "not-an-email").Validate())
	a.Error(entity.NewUser("ac:me", "a@x.com").Validate())

	a.NoError(entity.NewGroup("acme", "eng", "").Validate())
	a.Error(entity.NewGroup("acme", "", "").Validate())
	a.Error(entity.NewGroup("acme", "en:g", "").Validate())

	a.NoError(entity.NewApplication("web", "app1", entity.Role{Name: "reader"}).Validate())
	a.Error(entity.NewApplication("", "app1").Validate())
	a.Error(entity.NewApplication("web", "app1", entity.Role{Name: ""}).Validate())
	a.Error(entity.NewApplication("web", "app1", entity.Role{Name: "r"}, entity.Role{Name: "r"}).Validate())

	var nilUser *entity.User
	a.Equal(entity.ErrNilUser, nilUser.Validate())
}

func TestUserSoftOverwrite(t *testing.T) {
	a := assert.New(t)

	u := entity.NewUser("acme", "a@x.com")
	u.Name = "Alice"
	u.Groups = []string{"acme:g1", "acme:g2"}

	// scalar only patch keeps relationship lists
	u.SoftOverwrite(&entity.User{ProfilePicture: "pic.png"})
	a.Equal("Alice", u.Name)
	a.Equal("pic.png", u.ProfilePicture)
	a.Equal([]string{"acme:g1", "acme:g2"}, u.Groups)

	// a provided list replaces the stored one
	u.SoftOverwrite(&entity.User{Groups: []string{"acme:g1", "acme:g1"}})
	a.Equal([]string{"acme:g1"}, u.Groups)

	// an explicitly empty list clears it
	u.SoftOverwrite(&entity.User{Groups: []string{}})
	a.Empty(u.Groups)
	a.NotNil(u.Groups)
}

func TestApplicationSoftOverwriteMergesRoles(t *testing.T) {
	a := assert.New(t)

	app := entity.NewApplication("web", "app1",
		entity.Role{Name: "reader", Description: "reads", Permissions: []string{"read"}},
		entity.Role{Name: "writer"},
	)

	app.SoftOverwrite(&entity.Application{
		Roles: []entity.Role{
			{Name: "reader", Permissions: []string{"read", "list"}},
			{Name: "admin"},
		},
		Data: map[string]interface{}{"theme": "dark"},
	})

	a.Len(app.Roles, 3)

	reader, ok := app.Role("reader")
	a.True(ok)
	a.Equal("reads", reader.Description)
	a.Equal([]string{"read", "list"}, reader.Permissions)

	_, ok = app.Role("writer")
	a.True(ok)

	_, ok = app.Role("admin")
	a.True(ok)

	a.Equal("dark", app.Data["theme"])
}

func TestCloneIsDeep(t *testing.T) {
	a := assert.New(t)

	g := entity.NewGroup("acme", "eng", "")
	g.Members = []string{"a@x.com"}
	g.Applications = []entity.ApplicationAccess{{Name: "app1", Roles: []string{"reader"}}}

	c := g.Clone()
	c.Members[0] = "b@x.com"
	c.Applications[0].Roles[0] = "writer"

	a.Equal("a@x.com", g.Members[0])
	a.Equal("reader", g.Applications[0].Roles[0])
}

func TestPartitionAndShadow(t *testing.T) {
	a := assert.New(t)

	g := entity.NewGroup("acme", "eng", "")
	moved := g.WithPartition("globex")
	a.Equal("globex:eng", moved.ID)
	a.Equal("acme:eng", g.ID)

	shadow := moved.Shadow("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	a.True(entity.IsShadowID(shadow.ID))
	a.Equal("globex", shadow.PartitionKey())
	a.NoError(shadow.Validate())

	u := entity.NewUser("acme", "a@x.com").WithPartition("globex")
	a.Equal("a@x.com", u.ID)

	su := u.Shadow("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	a.True(entity.IsShadowID(su.ID))
	a.NoError(su.Validate())
}

func TestLinks(t *testing.T) {
	a := assert.New(t)

	links, changed := entity.AddLink(nil, "x")
	a.True(changed)

	links, changed = entity.AddLink(links, "x")
	a.False(changed)
	a.Equal([]string{"x"}, links)

	links, changed = entity.RemoveLink(links, "y")
	a.False(changed)

	links, changed = entity.RemoveLink(links, "x")
	a.True(changed)
	a.Empty(links)

	access, changed := entity.AddAccess(nil, "app1")
	a.True(changed)
	a.True(entity.HasAccess(access, "app1"))
	a.NotNil(access[0].Roles)

	access, changed = entity.RemoveAccess(access, "app1")
	a.True(changed)
	a.Empty(access)

	a.Nil(entity.UniqueLinks(nil))
	a.Equal([]string{"a", "b"}, entity.UniqueLinks([]string{"a", "", "b", "a"}))
}
