// Package repository maps typed entities onto store documents and keeps
// the shared cache in step with the store: reads consult the cache first,
// writes go through to it, deletes evict.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/agubarev/chapi/pkg/cache"
	"github.com/agubarev/chapi/pkg/entity"
	"github.com/agubarev/chapi/pkg/fault"
	"github.com/agubarev/chapi/pkg/store"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errors
var (
	ErrNilStore = errors.New("repository store is nil")
	ErrNilCache = errors.New("repository cache is nil")
)

// Mode of an update
type Mode uint8

// update modes
const (
	// Soft merges non-empty incoming values into the stored document
	Soft Mode = iota

	// Hard replaces the stored document with the incoming one
	Hard
)

func (m Mode) String() string {
	if m == Hard {
		return "hard"
	}

	return "soft"
}

// Kind describes a stored entity kind
type Kind[T any] struct {
	Name      string
	Container string
	New       func() T
}

// stored kinds
var (
	Users        = Kind[*entity.User]{Name: "user", Container: "users", New: func() *entity.User { return new(entity.User) }}
	Groups       = Kind[*entity.Group]{Name: "group", Container: "groups", New: func() *entity.Group { return new(entity.Group) }}
	Applications = Kind[*entity.Application]{Name: "application", Container: "applications", New: func() *entity.Application { return new(entity.Application) }}
)

// Repository stores entities of a single kind
type Repository[T entity.Entity[T]] struct {
	kind   Kind[T]
	store  store.Store
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// New initializes a repository, a nil cache disables caching
func New[T entity.Entity[T]](kind Kind[T], s store.Store, c cache.Cache) (*Repository[T], error) {
	if s == nil {
		return nil, ErrNilStore
	}

	if c == nil {
		c = cache.Nop{}
	}

	r := &Repository[T]{
		kind:  kind,
		store: s,
		cache: c,
		ttl:   cache.DefaultTTL,
	}

	return r, nil
}

// SetLogger assigns a logger to this repository
func (r *Repository[T]) SetLogger(logger *zap.Logger) {
	if logger != nil {
		logger = logger.Named(fmt.Sprintf("[repository:%s]", r.kind.Container))
	}

	r.logger = logger
}

// Logger returns own logger
func (r *Repository[T]) Logger() *zap.Logger {
	if r.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(fmt.Errorf("failed to initialize repository logger: %s", err))
		}

		r.logger = l
	}

	return r.logger
}

// SetTTL sets the lifetime of cached documents
func (r *Repository[T]) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		r.ttl = ttl
	}
}

// Kind returns the kind this repository stores
func (r *Repository[T]) Kind() Kind[T] { return r.kind }

func (r *Repository[T]) cacheKey(id string) string {
	return cache.Key(r.store.Name(), r.kind.Container, id)
}

func (r *Repository[T]) decode(body []byte) (T, error) {
	item := r.kind.New()
	if err := json.Unmarshal(body, item); err != nil {
		return item, errors.Wrapf(err, "failed to decode %s", r.kind.Name)
	}

	item.Normalize()

	return item, nil
}

func (r *Repository[T]) remember(ctx context.Context, id string, body []byte) {
	if err := r.cache.Set(ctx, r.cacheKey(id), body, r.ttl); err != nil {
		r.Logger().Debug("failed to cache document", zap.String("id", id), zap.Error(err))

		// the previous body must not outlive the write, whatever ctx says
		r.forget(context.Background(), id)
	}
}

func (r *Repository[T]) forget(ctx context.Context, id string) {
	if err := r.cache.Remove(ctx, r.cacheKey(id)); err != nil {
		r.Logger().Debug("failed to evict cached document", zap.String("id", id), zap.Error(err))
	}
}

// translate classifies store errors
func (r *Repository[T]) translate(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrDocumentNotFound):
		return fault.Wrap(fault.KNotFound, err, id, "%s %s does not exist", r.kind.Name, id)
	case errors.Is(err, store.ErrDuplicateDocument):
		return fault.Wrap(fault.KConflict, err, id, "%s %s already exists", r.kind.Name, id)
	case errors.Is(err, store.ErrEmptyID), errors.Is(err, store.ErrEmptyPartitionKey), errors.Is(err, store.ErrPartitionMismatch):
		return fault.Wrap(fault.KBadRequest, err, id, "%s %s", r.kind.Name, id)
	}

	return errors.Wrapf(err, "%s %s", r.kind.Name, id)
}

func (r *Repository[T]) checkIdentity(item T) error {
	if item.DocumentID() == "" {
		return fault.BadRequest("", "%s id is missing", r.kind.Name)
	}

	if item.PartitionKey() == "" {
		return fault.BadRequest(item.DocumentID(), "%s %s has no partition key", r.kind.Name, item.DocumentID())
	}

	// shadows only exist to be validated
	if entity.IsShadowID(item.DocumentID()) {
		return fault.BadRequest(item.DocumentID(), "%s id %s is reserved", r.kind.Name, item.DocumentID())
	}

	return nil
}

//---------------------------------------------------------------------------
// reads
//---------------------------------------------------------------------------

// Get returns an item by id, an empty partition matches any.
// Fails with fault.KNotFound if there is no such item.
func (r *Repository[T]) Get(ctx context.Context, id string, partition string) (item T, err error) {
	if id == "" {
		return item, fault.BadRequest("", "%s id is missing", r.kind.Name)
	}

	if raw, ok := r.cache.Get(ctx, r.cacheKey(id)); ok {
		cached, err := r.decode(raw)
		if err == nil && (partition == "" || cached.PartitionKey() == partition) {
			return cached, nil
		}
	}

	doc, err := r.store.Get(ctx, r.kind.Container, id, partition)
	if err != nil {
		return item, r.translate(err, id)
	}

	if item, err = r.decode(doc.Body); err != nil {
		return item, err
	}

	r.remember(ctx, id, doc.Body)

	return item, nil
}

// GetIfExists is Get which reports absence instead of failing
func (r *Repository[T]) GetIfExists(ctx context.Context, id string, partition string) (item T, ok bool, err error) {
	item, err = r.Get(ctx, id, partition)
	if err != nil {
		if fault.IsNotFound(err) {
			return item, false, nil
		}

		return item, false, err
	}

	return item, true, nil
}

func (r *Repository[T]) decodeAll(ctx context.Context, docs []store.Document) ([]T, error) {
	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := r.decode(doc.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "document %s", doc.ID)
		}

		r.remember(ctx, doc.ID, doc.Body)
		items = append(items, item)
	}

	return items, nil
}

// GetByPartition returns every item of a partition, empty result is not an error
func (r *Repository[T]) GetByPartition(ctx context.Context, partition string) ([]T, error) {
	if partition == "" {
		return nil, fault.BadRequest("", "%s partition key is missing", r.kind.Name)
	}

	docs, err := r.store.Partition(ctx, r.kind.Container, partition)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s partition %s", r.kind.Container, partition)
	}

	return r.decodeAll(ctx, docs)
}

// GetAll returns every stored item
func (r *Repository[T]) GetAll(ctx context.Context) ([]T, error) {
	docs, err := r.store.List(ctx, r.kind.Container)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", r.kind.Container)
	}

	return r.decodeAll(ctx, docs)
}

// Query returns items whose top-level JSON field equals value
func (r *Repository[T]) Query(ctx context.Context, field string, value string) ([]T, error) {
	docs, err := r.store.Query(ctx, r.kind.Container, field, value)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %s by %s", r.kind.Container, field)
	}

	return r.decodeAll(ctx, docs)
}

//---------------------------------------------------------------------------
// writes
//---------------------------------------------------------------------------

func (r *Repository[T]) write(ctx context.Context, item T, create bool) (T, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return item, errors.Wrapf(err, "failed to encode %s %s", r.kind.Name, item.DocumentID())
	}

	doc := store.Document{
		ID:           item.DocumentID(),
		PartitionKey: item.PartitionKey(),
		Body:         body,
	}

	if create {
		err = r.store.Create(ctx, r.kind.Container, doc)
	} else {
		err = r.store.Upsert(ctx, r.kind.Container, doc)
	}

	if err != nil {
		return item, r.translate(err, doc.ID)
	}

	r.remember(ctx, doc.ID, body)

	return item, nil
}

// Create stores a new item, fails with fault.KConflict if its id is taken
func (r *Repository[T]) Create(ctx context.Context, item T) (T, error) {
	item.Normalize()

	if err := r.checkIdentity(item); err != nil {
		return item, err
	}

	created, err := r.write(ctx, item, true)
	if err != nil {
		return created, err
	}

	r.Logger().Debug("created", zap.String("id", created.DocumentID()), zap.String("partition", created.PartitionKey()))

	return created, nil
}

// Update writes an item over the stored one, a missing item is created.
// The partition of a stored item cannot be changed here.
func (r *Repository[T]) Update(ctx context.Context, item T, mode Mode) (T, error) {
	item.Normalize()

	if item.DocumentID() == "" {
		return item, fault.BadRequest("", "%s id is missing", r.kind.Name)
	}

	existing, ok, err := r.GetIfExists(ctx, item.DocumentID(), "")
	if err != nil {
		return item, errors.Wrapf(err, "failed to obtain existing %s", r.kind.Name)
	}

	if !ok {
		return r.Create(ctx, item)
	}

	updated := item
	if mode == Soft {
		updated = existing.Clone()
		updated.SoftOverwrite(item)
	}

	if err = r.checkIdentity(updated); err != nil {
		return item, err
	}

	if updated.PartitionKey() != existing.PartitionKey() {
		return item, fault.BadRequest(
			item.DocumentID(),
			"%s %s cannot move from partition %s to %s without migration",
			r.kind.Name,
			item.DocumentID(),
			existing.PartitionKey(),
			updated.PartitionKey(),
		)
	}

	if updated, err = r.write(ctx, updated, false); err != nil {
		return updated, err
	}

	r.Logger().Debug("updated", zap.String("id", updated.DocumentID()), zap.Stringer("mode", mode))

	return updated, nil
}

// Patch is a soft update
func (r *Repository[T]) Patch(ctx context.Context, item T) (T, error) {
	return r.Update(ctx, item, Soft)
}

// Put is a hard update
func (r *Repository[T]) Put(ctx context.Context, item T) (T, error) {
	return r.Update(ctx, item, Hard)
}

// Delete removes the stored item and evicts it from the cache
func (r *Repository[T]) Delete(ctx context.Context, item T) error {
	if item.DocumentID() == "" {
		return fault.BadRequest("", "%s id is missing", r.kind.Name)
	}

	if err := r.store.Delete(ctx, r.kind.Container, item.DocumentID(), item.PartitionKey()); err != nil {
		return r.translate(err, item.DocumentID())
	}

	r.forget(ctx, item.DocumentID())

	r.Logger().Debug("deleted", zap.String("id", item.DocumentID()), zap.String("partition", item.PartitionKey()))

	return nil
}
