// Package store is the persistence port of the service: a container of
// JSON documents, each addressed by an id unique within its container and
// tagged with a partition key.
package store

import (
	"context"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// errors
var (
	ErrNilDB             = errors.New("database is nil")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDuplicateDocument = errors.New("document already exists")
	ErrEmptyContainer    = errors.New("container name is empty")
	ErrEmptyID           = errors.New("document id is empty")
	ErrEmptyPartitionKey = errors.New("document partition key is empty")
	ErrPartitionMismatch = errors.New("document belongs to another partition")
	ErrUnknownBackend    = errors.New("unknown store backend")
)

// Document is a stored JSON body along with its addressing attributes
type Document struct {
	ID           string `json:"id"`
	PartitionKey string `json:"pk"`
	Body         []byte `json:"body"`
}

// Store is implemented by every storage backend
type Store interface {
	// Name identifies the store in cache keys
	Name() string

	// Create stores a new document, ErrDuplicateDocument if the id is taken
	Create(ctx context.Context, container string, doc Document) error

	// Get returns a document by id, an empty partition matches any
	Get(ctx context.Context, container string, id string, partition string) (Document, error)

	// Query returns documents whose top-level JSON field equals value
	Query(ctx context.Context, container string, field string, value string) ([]Document, error)

	// Partition returns every document of a partition
	Partition(ctx context.Context, container string, partition string) ([]Document, error)

	// List returns every document of a container
	List(ctx context.Context, container string) ([]Document, error)

	// Upsert creates or replaces a document, the partition of an
	// existing document must not change
	Upsert(ctx context.Context, container string, doc Document) error

	// Delete removes a document, ErrDocumentNotFound if there is none
	Delete(ctx context.Context, container string, id string, partition string) error

	Close() error
}

func validateDocument(container string, doc Document) error {
	if err := validateAddress(container, doc.ID); err != nil {
		return err
	}

	if strings.TrimSpace(doc.PartitionKey) == "" {
		return ErrEmptyPartitionKey
	}

	return nil
}

func validateAddress(container string, id string) error {
	if strings.TrimSpace(container) == "" {
		return ErrEmptyContainer
	}

	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}

	return nil
}

// matchField tells whether a JSON body has a top-level field equal to value
func matchField(body []byte, field string, value string) bool {
	v := jsoniter.Get(body, field)
	if v.LastError() != nil || v.ValueType() == jsoniter.InvalidValue {
		return false
	}

	return v.ToString() == value
}

func matchPartition(doc Document, partition string) bool {
	return partition == "" || doc.PartitionKey == partition
}

func notFound(container, id string) error {
	return errors.Wrapf(ErrDocumentNotFound, "%s/%s", container, id)
}

func duplicate(container, id string) error {
	return errors.Wrapf(ErrDuplicateDocument, "%s/%s", container, id)
}
