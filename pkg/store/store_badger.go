package store

import (
	"bytes"
	"context"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// key layout, parts are separated by a zero byte:
//
//	<container> 0 d 0 <id>               -> document body
//	<container> 0 k 0 <id>               -> partition key
//	<container> 0 p 0 <partition> 0 <id> -> partition index entry
const keySep = byte(0)

const (
	keyDocument  = 'd'
	keyPartition = 'k'
	keyIndex     = 'p'
)

// BadgerStore keeps documents in a badger database
type BadgerStore struct {
	name   string
	db     *badger.DB
	logger *zap.Logger
}

// NewBadgerStore initializing badger store
func NewBadgerStore(db *badger.DB, name string) (*BadgerStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}

	s := &BadgerStore{
		name:   name,
		db:     db,
		logger: zap.NewNop(),
	}

	return s, nil
}

// OpenBadgerStore opens (or creates) a badger database in dir,
// badger's own log goes through the given logger
func OpenBadgerStore(dir string, name string, logger *zap.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger.Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open badger database in %s", dir)
	}

	s, err := NewBadgerStore(db, name)
	if err != nil {
		return nil, err
	}

	s.logger = logger

	return s, nil
}

// badgerLogger adapts zap to badger.Logger
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

func (s *BadgerStore) Name() string { return s.name }

// Close closes the underlying database
func (s *BadgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

func badgerKey(container string, kind byte, parts ...string) []byte {
	var b bytes.Buffer

	b.WriteString(container)
	b.WriteByte(keySep)
	b.WriteByte(kind)

	for _, p := range parts {
		b.WriteByte(keySep)
		b.WriteString(p)
	}

	return b.Bytes()
}

// partitionOf returns the partition key of a stored document, nil if
// there is no such document
func partitionOf(txn *badger.Txn, container string, id string) ([]byte, error) {
	item, err := txn.Get(badgerKey(container, keyPartition, id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}

		return nil, err
	}

	return item.ValueCopy(nil)
}

func (s *BadgerStore) put(ctx context.Context, container string, doc Document, create bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := validateDocument(container, doc); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		pk, err := partitionOf(txn, container, doc.ID)
		if err != nil {
			return err
		}

		if pk != nil {
			if create {
				return duplicate(container, doc.ID)
			}

			if string(pk) != doc.PartitionKey {
				return ErrPartitionMismatch
			}
		}

		if err = txn.Set(badgerKey(container, keyDocument, doc.ID), doc.Body); err != nil {
			return err
		}

		if err = txn.Set(badgerKey(container, keyPartition, doc.ID), []byte(doc.PartitionKey)); err != nil {
			return err
		}

		return txn.Set(badgerKey(container, keyIndex, doc.PartitionKey, doc.ID), []byte{})
	})
}

func (s *BadgerStore) Create(ctx context.Context, container string, doc Document) error {
	return s.put(ctx, container, doc, true)
}

func (s *BadgerStore) Upsert(ctx context.Context, container string, doc Document) error {
	return s.put(ctx, container, doc, false)
}

func readDocument(txn *badger.Txn, container string, id string, pk string) (Document, error) {
	item, err := txn.Get(badgerKey(container, keyDocument, id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return Document{}, notFound(container, id)
		}

		return Document{}, err
	}

	body, err := item.ValueCopy(nil)
	if err != nil {
		return Document{}, err
	}

	return Document{ID: id, PartitionKey: pk, Body: body}, nil
}

func (s *BadgerStore) Get(ctx context.Context, container string, id string, partition string) (doc Document, err error) {
	if err = ctx.Err(); err != nil {
		return doc, err
	}

	if err = validateAddress(container, id); err != nil {
		return doc, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		pk, err := partitionOf(txn, container, id)
		if err != nil {
			return err
		}

		if pk == nil || (partition != "" && string(pk) != partition) {
			return notFound(container, id)
		}

		doc, err = readDocument(txn, container, id, string(pk))

		return err
	})

	return doc, err
}

// scanKeys returns the key suffixes after prefix
func scanKeys(txn *badger.Txn, prefix []byte) []string {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	suffixes := make([]string, 0)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		suffixes = append(suffixes, string(it.Item().KeyCopy(nil)[len(prefix):]))
	}

	return suffixes
}

func (s *BadgerStore) Partition(ctx context.Context, container string, partition string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if container == "" {
		return nil, ErrEmptyContainer
	}

	docs := make([]Document, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := append(badgerKey(container, keyIndex, partition), keySep)

		for _, id := range scanKeys(txn, prefix) {
			doc, err := readDocument(txn, container, id, partition)
			if err != nil {
				return err
			}

			docs = append(docs, doc)
		}

		return nil
	})

	return docs, err
}

func (s *BadgerStore) List(ctx context.Context, container string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if container == "" {
		return nil, ErrEmptyContainer
	}

	docs := make([]Document, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := append(badgerKey(container, keyPartition), keySep)

		for _, id := range scanKeys(txn, prefix) {
			pk, err := partitionOf(txn, container, id)
			if err != nil {
				return err
			}

			doc, err := readDocument(txn, container, id, string(pk))
			if err != nil {
				return err
			}

			docs = append(docs, doc)
		}

		return nil
	})

	return docs, err
}

func (s *BadgerStore) Query(ctx context.Context, container string, field string, value string) ([]Document, error) {
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

func (s *BadgerStore) Delete(ctx context.Context, container string, id string, partition string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := validateAddress(container, id); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		pk, err := partitionOf(txn, container, id)
		if err != nil {
			return err
		}

		if pk == nil || (partition != "" && string(pk) != partition) {
			return notFound(container, id)
		}

		if err = txn.Delete(badgerKey(container, keyIndex, string(pk), id)); err != nil {
			return err
		}

		if err = txn.Delete(badgerKey(container, keyPartition, id)); err != nil {
			return err
		}

		return txn.Delete(badgerKey(container, keyDocument, id))
	})
}
