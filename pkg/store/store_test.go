package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agubarev/chapi/pkg/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func backends(t *testing.T) map[string]store.Store {
	bs, err := store.OpenBoltStore(filepath.Join(t.TempDir(), "chapi.db"), "bolt")
	require.NoError(t, err)

	ds, err := store.OpenBadgerStore(t.TempDir(), "badger", zap.NewNop())
	require.NoError(t, err)

	stores := map[string]store.Store{
		"memory": store.NewMemoryStore("memory"),
		"bolt":   bs,
		"badger": ds,
	}

	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})

	return stores
}

func TestStoreBackends(t *testing.T) {
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			testCreateAndGet(t, s)
			testPartitions(t, s)
			testUpsertAndDelete(t, s)
			testQuery(t, s)
		})
	}
}

func testCreateAndGet(t *testing.T, s store.Store) {
	a := assert.New(t)
	ctx := context.Background()

	doc := store.Document{ID: "a@x.com", PartitionKey: "acme", Body: []byte(`{"id":"a@x.com","organization":"acme"}`)}
	a.NoError(s.Create(ctx, "users", doc))

	// duplicate id is a conflict, regardless of partition
	err := s.Create(ctx, "users", store.Document{ID: "a@x.com", PartitionKey: "globex", Body: []byte(`{}`)})
	a.True(errors.Is(err, store.ErrDuplicateDocument))

	found, err := s.Get(ctx, "users", "a@x.com", "acme")
	a.NoError(err)
	a.Equal(doc, found)

	// any partition
	found, err = s.Get(ctx, "users", "a@x.com", "")
	a.NoError(err)
	a.Equal("acme", found.PartitionKey)

	_, err = s.Get(ctx, "users", "a@x.com", "globex")
	a.True(errors.Is(err, store.ErrDocumentNotFound))

	_, err = s.Get(ctx, "users", "nobody@x.com", "")
	a.True(errors.Is(err, store.ErrDocumentNotFound))

	_, err = s.Get(ctx, "unknown", "a@x.com", "")
	a.True(errors.Is(err, store.ErrDocumentNotFound))

	a.Equal(store.ErrEmptyID, s.Create(ctx, "users", store.Document{PartitionKey: "acme"}))
	a.Equal(store.ErrEmptyPartitionKey, s.Create(ctx, "users", store.Document{ID: "b@x.com"}))
}

func testPartitions(t *testing.T, s store.Store) {
	a := assert.New(t)
	ctx := context.Background()

	a.NoError(s.Create(ctx, "groups", store.Document{ID: "acme:acme", PartitionKey: "acme", Body: []byte(`{}`)}))
	a.NoError(s.Create(ctx, "groups", store.Document{ID: "acme:eng", PartitionKey: "acme", Body: []byte(`{}`)}))
	a.NoError(s.Create(ctx, "groups", store.Document{ID: "acme2:acme2", PartitionKey: "acme2", Body: []byte(`{}`)}))

	docs, err := s.Partition(ctx, "groups", "acme")
	a.NoError(err)
	a.Len(docs, 2)

	docs, err = s.Partition(ctx, "groups", "nobody")
	a.NoError(err)
	a.NotNil(docs)
	a.Empty(docs)

	docs, err = s.List(ctx, "groups")
	a.NoError(err)
	a.Len(docs, 3)

	docs, err = s.List(ctx, "empty")
	a.NoError(err)
	a.Empty(docs)
}

func testUpsertAndDelete(t *testing.T, s store.Store) {
	a := assert.New(t)
	ctx := context.Background()

	doc := store.Document{ID: "app1", PartitionKey: "web", Body: []byte(`{"name":"app1"}`)}
	a.NoError(s.Upsert(ctx, "applications", doc))

	doc.Body = []byte(`{"name":"app1","description":"updated"}`)
	a.NoError(s.Upsert(ctx, "applications", doc))

	found, err := s.Get(ctx, "applications", "app1", "web")
	a.NoError(err)
	a.Equal(doc.Body, found.Body)

	// the partition of an existing document is immutable
	err = s.Upsert(ctx, "applications", store.Document{ID: "app1", PartitionKey: "mobile", Body: []byte(`{}`)})
	a.Equal(store.ErrPartitionMismatch, err)

	err = s.Delete(ctx, "applications", "app1", "mobile")
	a.True(errors.Is(err, store.ErrDocumentNotFound))

	a.NoError(s.Delete(ctx, "applications", "app1", "web"))

	_, err = s.Get(ctx, "applications", "app1", "")
	a.True(errors.Is(err, store.ErrDocumentNotFound))

	docs, err := s.Partition(ctx, "applications", "web")
	a.NoError(err)
	a.Empty(docs)

	err = s.Delete(ctx, "applications", "app1", "")
	a.True(errors.Is(err, store.ErrDocumentNotFound))

	// the id is free again
	a.NoError(s.Create(ctx, "applications", store.Document{ID: "app1", PartitionKey: "mobile", Body: []byte(`{}`)}))
}

func testQuery(t *testing.T, s store.Store) {
	a := assert.New(t)
	ctx := context.Background()

	a.NoError(s.Create(ctx, "people", store.Document{ID: "1", PartitionKey: "p", Body: []byte(`{"organization":"acme","name":"x"}`)}))
	a.NoError(s.Create(ctx, "people", store.Document{ID: "2", PartitionKey: "p", Body: []byte(`{"organization":"globex"}`)}))

	docs, err := s.Query(ctx, "people", "organization", "acme")
	a.NoError(err)
	a.Len(docs, 1)
	a.Equal("1", docs[0].ID)

	docs, err = s.Query(ctx, "people", "missing", "acme")
	a.NoError(err)
	a.Empty(docs)
}

func TestCanceledContext(t *testing.T) {
	a := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := store.NewMemoryStore("memory")
	a.Equal(context.Canceled, s.Create(ctx, "users", store.Document{ID: "x", PartitionKey: "y"}))

	_, err := s.Get(ctx, "users", "x", "")
	a.Equal(context.Canceled, err)
}
