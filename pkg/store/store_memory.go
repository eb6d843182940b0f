package store

import (
	"context"
	"sync"

	"github.com/google/btree"
)

// MemoryStore keeps documents in one btree per container,
// ordered by document id
type MemoryStore struct {
	mu         sync.RWMutex
	name       string
	containers map[string]*btree.BTree
}

// NewMemoryStore initializes an in-memory store
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name:       name,
		containers: make(map[string]*btree.BTree),
	}
}

type memoryItem struct {
	doc Document
}

// Less is used to implement btree.Item
func (i *memoryItem) Less(b btree.Item) bool {
	j, ok := b.(*memoryItem)
	if !ok {
		return false
	}

	return i.doc.ID < j.doc.ID
}

func (s *MemoryStore) Name() string { return s.name }

func (s *MemoryStore) container(name string, create bool) *btree.BTree {
	tree, ok := s.containers[name]
	if !ok && create {
		tree = btree.New(8)
		s.containers[name] = tree
	}

	return tree
}

func (s *MemoryStore) Create(ctx context.Context, container string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := validateDocument(container, doc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tree := s.container(container, true)
	if tree.Has(&memoryItem{doc: Document{ID: doc.ID}}) {
		return duplicate(container, doc.ID)
	}

	tree.ReplaceOrInsert(&memoryItem{doc: copyDocument(doc)})

	return nil
}

func (s *MemoryStore) Get(ctx context.Context, container string, id string, partition string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	if err := validateAddress(container, id); err != nil {
		return Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tree := s.container(container, false)
	if tree == nil {
		return Document{}, notFound(container, id)
	}

	i := tree.Get(&memoryItem{doc: Document{ID: id}})
	if i == nil || !matchPartition(i.(*memoryItem).doc, partition) {
		return Document{}, notFound(container, id)
	}

	return copyDocument(i.(*memoryItem).doc), nil
}

func (s *MemoryStore) scan(ctx context.Context, container string, match func(Document) bool) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if container == "" {
		return nil, ErrEmptyContainer
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0)

	tree := s.container(container, false)
	if tree == nil {
		return docs, nil
	}

	tree.Ascend(func(i btree.Item) bool {
		doc := i.(*memoryItem).doc
		if match(doc) {
			docs = append(docs, copyDocument(doc))
		}

		return true
	})

	return docs, nil
}

func (s *MemoryStore) Query(ctx context.Context, container string, field string, value string) ([]Document, error) {
	return s.scan(ctx, container, func(doc Document) bool {
		return matchField(doc.Body, field, value)
	})
}

func (s *MemoryStore) Partition(ctx context.Context, container string, partition string) ([]Document, error) {
	return s.scan(ctx, container, func(doc Document) bool {
		return doc.PartitionKey == partition
	})
}

func (s *MemoryStore) List(ctx context.Context, container string) ([]Document, error) {
	return s.scan(ctx, container, func(Document) bool { return true })
}

func (s *MemoryStore) Upsert(ctx context.Context, container string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := validateDocument(container, doc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tree := s.container(container, true)
	if i := tree.Get(&memoryItem{doc: Document{ID: doc.ID}}); i != nil {
		if i.(*memoryItem).doc.PartitionKey != doc.PartitionKey {
			return ErrPartitionMismatch
		}
	}

	tree.ReplaceOrInsert(&memoryItem{doc: copyDocument(doc)})

	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, container string, id string, partition string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := validateAddress(container, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tree := s.container(container, false)
	if tree == nil {
		return notFound(container, id)
	}

	i := tree.Get(&memoryItem{doc: Document{ID: id}})
	if i == nil || !matchPartition(i.(*memoryItem).doc, partition) {
		return notFound(container, id)
	}

	tree.Delete(i)

	return nil
}

func (s *MemoryStore) Close() error { return nil }

func copyDocument(doc Document) Document {
	doc.Body = append([]byte(nil), doc.Body...)
	return doc
}
