package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/agubarev/chapi/pkg/cache"
	"github.com/agubarev/chapi/pkg/entity"
	"github.com/agubarev/chapi/pkg/fault"
	"github.com/agubarev/chapi/pkg/repository"
	"github.com/agubarev/chapi/pkg/store"
	"github.com/agubarev/chapi/pkg/util"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUsers(t *testing.T) (*repository.Repository[*entity.User], store.Store, cache.Cache) {
	s := store.NewMemoryStore("chapi")

	c, err := cache.NewBigCache(cache.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	r, err := repository.New(repository.Users, s, c)
	require.NoError(t, err)
	r.SetLogger(zap.NewNop())

	return r, s, c
}

func TestCreateAndGet(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	r, _, _ := newUsers(t)

	u := entity.NewUser("acme", "a@x.com")
	u.Name = "Alice"

	created, err := r.Create(ctx, u)
	a.NoError(err)
	a.Equal("a@x.com", created.ID)

	_, err = r.Create(ctx, entity.NewUser("acme", "a@x.com"))
	a.True(fault.IsConflict(err))

	found, err := r.Get(ctx, "a@x.com", "acme")
	a.NoError(err)
	a.Equal("Alice", found.Name)

	found, err = r.Get(ctx, "a@x.com", "")
	a.NoError(err)
	a.Equal("acme", found.Organization)

	_, err = r.Get(ctx, "a@x.com", "globex")
	a.True(fault.IsNotFound(err))

	_, err = r.Get(ctx, "b@x.com", "")
	a.True(fault.IsNotFound(err))
	a.EqualError(err, "not found: user b@x.com does not exist: users/b@x.com: document not found")

	_, ok, err := r.GetIfExists(ctx, "b@x.com", "")
	a.NoError(err)
	a.False(ok)

	_, err = r.Create(ctx, &entity.User{Email: "c@x.com"})
	a.True(fault.IsBadRequest(err))
}

func TestCacheIsReadAsideAndWrittenThrough(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	r, s, c := newUsers(t)

	_, err := r.Create(ctx, entity.NewUser("acme", "a@x.com"))
	a.NoError(err)

	key := cache.Key("chapi", "users", "a@x.com")
	_, ok := c.Get(ctx, key)
	a.True(ok)

	// a change made behind the repository's back is not visible while cached
	a.NoError(s.Upsert(ctx, "users", store.Document{
		ID:           "a@x.com",
		PartitionKey: "acme",
		Body:         []byte(`{"id":"a@x.com","email":"a@x.com","organization":"acme","name":"Sneaky"}`),
	}))

	found, err := r.Get(ctx, "a@x.com", "")
	a.NoError(err)
	a.Empty(found.Name)

	a.NoError(c.Remove(ctx, key))

	found, err = r.Get(ctx, "a@x.com", "")
	a.NoError(err)
	a.Equal("Sneaky", found.Name)

	// deletion evicts
	a.NoError(r.Delete(ctx, found))
	_, ok = c.Get(ctx, key)
	a.False(ok)

	_, err = r.Get(ctx, "a@x.com", "")
	a.True(fault.IsNotFound(err))

	a.True(fault.IsNotFound(r.Delete(ctx, found)))
}

func TestUpdate(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	r, _, _ := newUsers(t)

	// a missing item is created
	u := entity.NewUser("acme", "a@x.com")
	u.Name = "Alice"
	u.Groups = []string{"acme:g1"}

	_, err := r.Update(ctx, u, repository.Soft)
	a.NoError(err)

	// soft: only provided values change
	patched, err := r.Patch(ctx, &entity.User{Email: "a@x.com", ProfilePicture: "pic.png"})
	a.NoError(err)
	a.Equal("Alice", patched.Name)
	a.Equal("pic.png", patched.ProfilePicture)
	a.Equal([]string{"acme:g1"}, patched.Groups)

	// hard: stored document becomes the incoming one
	put, err := r.Put(ctx, entity.NewUser("acme", "a@x.com"))
	a.NoError(err)
	a.Empty(put.Name)
	a.Empty(put.Groups)

	found, err := r.Get(ctx, "a@x.com", "acme")
	a.NoError(err)
	a.Empty(found.ProfilePicture)

	// partition keys are immutable
	_, err = r.Patch(ctx, &entity.User{Email: "a@x.com", Organization: "globex"})
	a.True(fault.IsBadRequest(err))

	_, err = r.Put(ctx, entity.NewUser("globex", "a@x.com"))
	a.True(fault.IsBadRequest(err))
}

func TestPartitionsAndQueries(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	r, _, _ := newUsers(t)
	r.SetTTL(time.Minute)

	for _, email := range []string{"a@x.com", "b@x.com"} {
		_, err := r.Create(ctx, entity.NewUser("acme", email))
		a.NoError(err)
	}

	_, err := r.Create(ctx, entity.NewUser("globex", "c@x.com"))
	a.NoError(err)

	users, err := r.GetByPartition(ctx, "acme")
	a.NoError(err)
	a.Len(users, 2)

	users, err = r.GetByPartition(ctx, "initech")
	a.NoError(err)
	a.Empty(users)

	users, err = r.GetAll(ctx)
	a.NoError(err)
	a.Len(users, 3)

	users, err = r.Query(ctx, "organization", "globex")
	a.NoError(err)
	a.Len(users, 1)
	a.Equal("c@x.com", users[0].ID)
}

func TestNilStore(t *testing.T) {
	_, err := repository.New(repository.Groups, nil, nil)
	assert.Equal(t, repository.ErrNilStore, err)
}

// brokenCache refuses every write once broken is set
type brokenCache struct {
	cache.Cache
	broken bool
}

func (c *brokenCache) Set(ctx context.Context, key string, entry []byte, ttl time.Duration) error {
	if c.broken {
		return errors.New("entry is too big")
	}

	return c.Cache.Set(ctx, key, entry, ttl)
}

func TestFailedCacheWriteEvicts(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	bc, err := cache.NewBigCache(cache.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { bc.Close() })

	c := &brokenCache{Cache: bc}

	r, err := repository.New(repository.Users, store.NewMemoryStore("chapi"), c)
	require.NoError(t, err)
	r.SetLogger(zap.NewNop())

	u := entity.NewUser("acme", "a@x.com")
	u.Name = "Alice"

	_, err = r.Create(ctx, u)
	a.NoError(err)

	_, ok := bc.Get(ctx, cache.Key("chapi", "users", "a@x.com"))
	a.True(ok)

	c.broken = true

	_, err = r.Patch(ctx, &entity.User{Email: "a@x.com", Name: "Bob"})
	a.NoError(err)

	// the stale body is gone, the next read goes to the store
	_, ok = bc.Get(ctx, cache.Key("chapi", "users", "a@x.com"))
	a.False(ok)

	found, err := r.Get(ctx, "a@x.com", "")
	a.NoError(err)
	a.Equal("Bob", found.Name)
}

func TestShadowsAreNeverStored(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	r, _, _ := newUsers(t)

	shadow := entity.NewUser("acme", "a@x.com").Shadow(util.NewULID().String())

	_, err := r.Create(ctx, shadow)
	a.True(fault.IsBadRequest(err))

	_, err = r.Update(ctx, shadow, repository.Hard)
	a.True(fault.IsBadRequest(err))

	users, err := r.GetAll(ctx)
	a.NoError(err)
	a.Empty(users)
}
