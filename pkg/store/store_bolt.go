package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// nested buckets of every container bucket
var (
	bucketDocument  = []byte("DOCUMENT")
	bucketPartition = []byte("PARTITION")
	bucketIndex     = []byte("INDEX")
)

// BoltStore is using bbolt (previously known as BoltDB), every container
// is a top-level bucket holding document bodies, the partition of each
// document and a per-partition index of ids
type BoltStore struct {
	name   string
	db     *bbolt.DB
	logger *zap.Logger
}

// NewBoltStore initializing bbolt store
func NewBoltStore(db *bbolt.DB, name string) (*BoltStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}

	s := &BoltStore{
		name:   name,
		db:     db,
		logger: zap.NewNop(),
	}

	return s, nil
}

// OpenBoltStore creates a bbolt file if it doesn't exist and opens it otherwise
func OpenBoltStore(path string, name string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrapf(err, "unable to create directory %s", path)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "unable to open bbolt file")
	}

	return NewBoltStore(db, name)
}

// SetLogger sets the logger on the store
func (s *BoltStore) SetLogger(l *zap.Logger) {
	if l != nil {
		s.logger = l
	}
}

func (s *BoltStore) Name() string { return s.name }

// Close the connection to the bolt database
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// containerBuckets returns the nested buckets of a container, creating
// them when the transaction is writable
func containerBuckets(tx *bbolt.Tx, container string) (docs, parts, index *bbolt.Bucket, err error) {
	if !tx.Writable() {
		root := tx.Bucket([]byte(container))
		if root == nil {
			return nil, nil, nil, nil
		}

		return root.Bucket(bucketDocument), root.Bucket(bucketPartition), root.Bucket(bucketIndex), nil
	}

	root, err := tx.CreateBucketIfNotExists([]byte(container))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create %s bucket: %s", container, err)
	}

	if docs, err = root.CreateBucketIfNotExists(bucketDocument); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create %s documents bucket: %s", container, err)
	}

	if parts, err = root.CreateBucketIfNotExists(bucketPartition); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create %s partitions bucket: %s", container, err)
	}

	if index, err = root.CreateBucketIfNotExists(bucketIndex); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create %s index bucket: %s", container, err)
	}

	return docs, parts, index, nil
}

func (s *BoltStore) put(tx *bbolt.Tx, container string, doc Document, create bool) error {
	docs, parts, index, err := containerBuckets(tx, container)
	if err != nil {
		return err
	}

	id := []byte(doc.ID)

	if pk := parts.Get(id); pk != nil {
		if create {
			return duplicate(container, doc.ID)
		}

		if string(pk) != doc.PartitionKey {
			return ErrPartitionMismatch
		}
	}

	partIndex, err := index.CreateBucketIfNotExists([]byte(doc.PartitionKey))
	if err != nil {
		return fmt.Errorf("failed to create partition index %s: %s", doc.PartitionKey, err)
	}

	if err = docs.Put(id, doc.Body); err != nil {
		return err
	}

	if err = parts.Put(id, []byte(doc.PartitionKey)); err != nil {
		return err
	}

	return partIndex.Put(id, []byte{})
}

func (s *BoltStore) Create(ctx context.Context, container string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := validateDocument(container, doc); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return s.put(tx, container, doc, true)
	})
}

func (s *BoltStore) Upsert(ctx context.Context, container string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := validateDocument(container, doc); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return s.put(tx, container, doc, false)
	})
}

func (s *BoltStore) Get(ctx context.Context, container string, id string, partition string) (doc Document, err error) {
	if err = ctx.Err(); err != nil {
		return doc, err
	}

	if err = validateAddress(container, id); err != nil {
		return doc, err
	}

	err = s.db.View(func(tx *bbolt.Tx) error {
		docs, parts, _, err := containerBuckets(tx, container)
		if err != nil {
			return err
		}

		if docs == nil {
			return notFound(container, id)
		}

		pk := parts.Get([]byte(id))
		if pk == nil || (partition != "" && string(pk) != partition) {
			return notFound(container, id)
		}

		doc = Document{
			ID:           id,
			PartitionKey: string(pk),
			Body:         append([]byte(nil), docs.Get([]byte(id))...),
		}

		return nil
	})

	return doc, err
}

func (s *BoltStore) Query(ctx context.Context, container string, field string, value string) ([]Document, error) {
	all, err := s.List(ctx, container)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0)
	for _, doc := range all {
		if matchField(doc.Body, field, value) {
			docs = append(docs, doc)
		}
	}

	return docs, nil
}

func (s *BoltStore) Partition(ctx context.Context, container string, partition string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if container == "" {
		return nil, ErrEmptyContainer
	}

	result := make([]Document, 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		docs, _, index, err := containerBuckets(tx, container)
		if err != nil || docs == nil {
			return err
		}

		partIndex := index.Bucket([]byte(partition))
		if partIndex == nil {
			return nil
		}

		return partIndex.ForEach(func(k, _ []byte) error {
			result = append(result, Document{
				ID:           string(k),
				PartitionKey: partition,
				Body:         append([]byte(nil), docs.Get(k)...),
			})

			return nil
		})
	})

	return result, err
}

func (s *BoltStore) List(ctx context.Context, container string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if container == "" {
		return nil, ErrEmptyContainer
	}

	result := make([]Document, 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		docs, parts, _, err := containerBuckets(tx, container)
		if err != nil || docs == nil {
			return err
		}

		return docs.ForEach(func(k, v []byte) error {
			result = append(result, Document{
				ID:           string(k),
				PartitionKey: string(parts.Get(k)),
				Body:         append([]byte(nil), v...),
			})

			return nil
		})
	})

	return result, err
}

func (s *BoltStore) Delete(ctx context.Context, container string, id string, partition string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := validateAddress(container, id); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		docs, parts, index, err := containerBuckets(tx, container)
		if err != nil {
			return err
		}

		key := []byte(id)

		pk := parts.Get(key)
		if pk == nil || (partition != "" && string(pk) != partition) {
			return notFound(container, id)
		}

		if partIndex := index.Bucket(pk); partIndex != nil {
			if err = partIndex.Delete(key); err != nil {
				return err
			}
		}

		if err = parts.Delete(key); err != nil {
			return err
		}

		return docs.Delete(key)
	})
}
