package entity

import (
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/pkg/errors"
)

// Document is anything stored as a standalone, partitioned document
type Document interface {
	DocumentID() string
	PartitionKey() string
}

// Entity is the behaviour the repository and the engine need from
// every stored kind, T is the concrete pointer type itself
type Entity[T any] interface {
	Document

	// Normalize recomputes the derived id from identity attributes
	// and removes duplicate relationship links
	Normalize()

	// Validate checks identity attributes only, references are
	// checked by the engine
	Validate() error

	// Clone returns a deep copy
	Clone() T

	// SoftOverwrite merges non-empty values of src into the receiver
	SoftOverwrite(src T)

	// WithPartition returns a copy moved into another partition,
	// the id is recomputed if it depends on the partition
	WithPartition(partition string) T

	// Shadow returns a disposable copy whose identity is prefixed
	// with a reserved marker so it can never collide with a stored document
	Shadow(marker string) T
}

// IDSeparator joins composite id parts
const IDSeparator = ":"

// ShadowPrefix marks disposable identities used to validate migrations
const ShadowPrefix = "~shadow~"

// errors
var (
	ErrNilUser           = errors.New("user is nil")
	ErrNilGroup          = errors.New("group is nil")
	ErrNilApplication    = errors.New("application is nil")
	ErrEmptyID           = errors.New("id is empty")
	ErrEmptyPartitionKey = errors.New("partition key is empty")
	ErrMalformedName     = errors.New("name must not contain the id separator")
	ErrDuplicateRole     = errors.New("duplicate role name")
	ErrEmptyRoleName     = errors.New("role name is empty")
)

// IsShadowID tells whether an id belongs to a disposable migration shadow
func IsShadowID(id string) bool {
	return strings.Contains(id, ShadowPrefix)
}

// validateStruct runs govalidator tags and flattens its error list
// into a single readable error
func validateStruct(v interface{}) error {
	if _, err := govalidator.ValidateStruct(v); err != nil {
		return errors.New(strings.ToLower(err.Error()))
	}

	return nil
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}

	return append(make([]string, 0, len(s)), s...)
}

func copyData(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}

	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

func overwriteString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func overwriteStrings(dst *[]string, src []string) {
	if src != nil {
		*dst = copyStrings(src)
	}
}
