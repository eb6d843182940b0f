package engine

import (
	"context"
	"sync"

	"github.com/agubarev/chapi/pkg/entity"
	"github.com/agubarev/chapi/pkg/repository"
)

// relatedSet caches the entities of one kind resolved during a single
// call, a nil entry marks an id known to be absent
type relatedSet[T entity.Entity[T]] struct {
	mu    sync.Mutex
	items map[string]T
	found map[string]bool
}

func newRelatedSet[T entity.Entity[T]]() *relatedSet[T] {
	return &relatedSet[T]{
		items: make(map[string]T),
		found: make(map[string]bool),
	}
}

func (s *relatedSet[T]) lookup(id string) (item T, ok bool, known bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found, known := s.found[id]
	if !known {
		return item, false, false
	}

	return s.items[id], found, true
}

// resolve returns a cached entity or fetches it from the repository,
// the same pointer is handed out for the whole call so changes made to
// a counterpart accumulate
func (s *relatedSet[T]) resolve(ctx context.Context, repo *repository.Repository[T], id string) (item T, ok bool, err error) {
	if item, ok, known := s.lookup(id); known {
		return item, ok, nil
	}

	item, ok, err = repo.GetIfExists(ctx, id, "")
	if err != nil {
		return item, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// another lookup of the same id may have won the race
	if found, known := s.found[id]; known {
		return s.items[id], found, nil
	}

	s.found[id] = ok
	if ok {
		s.items[id] = item
	}

	return item, ok, nil
}

// put registers an entity, replacing whatever was cached for its id
func (s *relatedSet[T]) put(item T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[item.DocumentID()] = item
	s.found[item.DocumentID()] = true
}

// forget drops an id so the next resolution goes to the repository
func (s *relatedSet[T]) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
	delete(s.found, id)
}

// Related holds every entity resolved while validating a single call,
// synchronization reuses and updates these same instances
type Related struct {
	users        *relatedSet[*entity.User]
	groups       *relatedSet[*entity.Group]
	applications *relatedSet[*entity.Application]
}

// NewRelated returns an empty resolved-entity cache
func NewRelated() *Related {
	return &Related{
		users:        newRelatedSet[*entity.User](),
		groups:       newRelatedSet[*entity.Group](),
		applications: newRelatedSet[*entity.Application](),
	}
}
