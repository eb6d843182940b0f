package engine

import (
	"context"

	"github.com/agubarev/chapi/pkg/entity"
	"github.com/agubarev/chapi/pkg/fault"
	"github.com/agubarev/chapi/pkg/repository"
	"github.com/agubarev/chapi/pkg/util"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// policy is what differs between the kinds: which references are
// checked and which back-references are maintained
type policy[T entity.Entity[T]] interface {
	// validate resolves every reference of item into rel
	validate(ctx context.Context, rel *Related, item T) error

	// synchronize writes the back-references implied by the change
	// from before to after, either of which may be nil
	synchronize(ctx context.Context, rel *Related, before, after T) error

	// cascade runs before existing is deleted, reports whether it
	// changed the stored state
	cascade(ctx context.Context, existing T) (bool, error)

	// migratable rejects moves the kind does not support
	migratable(existing, moved T) error

	// retain carries the fields only synchronization may write from
	// existing, which is nil on creation, over to next
	retain(existing, next T)
}

// Service runs the validate, persist and synchronize pipeline for one kind
type Service[T entity.Entity[T]] struct {
	engine *Engine
	repo   *repository.Repository[T]
	policy policy[T]
}

func (s *Service[T]) kind() string { return s.repo.Kind().Name }

// begin tags ctx with an operation logger
func (s *Service[T]) begin(ctx context.Context, op string, id string) (context.Context, *zap.Logger) {
	l := s.engine.Logger().With(
		zap.String("op_id", uuid.New().String()),
		zap.String("kind", s.kind()),
		zap.String("operation", op),
		zap.String("id", id),
	)

	return context.WithValue(ctx, loggerKey{}, l), l
}

func (s *Service[T]) end(l *zap.Logger, op string, err error) {
	s.engine.metrics.operation(s.kind(), op, err)

	switch {
	case err == nil:
		l.Debug("done")
	case fault.KindOf(err) != fault.KUnknown:
		l.Debug("rejected", zap.Error(err))
	default:
		l.Warn("failed", zap.Error(err))
	}
}

//---------------------------------------------------------------------------
// reads
//---------------------------------------------------------------------------

// Get returns an item by id, an empty partition matches any
func (s *Service[T]) Get(ctx context.Context, id string, partition string) (T, error) {
	item, err := s.repo.Get(ctx, id, partition)
	s.engine.metrics.operation(s.kind(), "get", err)

	return item, err
}

// GetByPartition returns every item of a partition, possibly none
func (s *Service[T]) GetByPartition(ctx context.Context, partition string) ([]T, error) {
	items, err := s.repo.GetByPartition(ctx, partition)
	s.engine.metrics.operation(s.kind(), "get_by_partition", err)

	return items, err
}

// GetAll returns every item, possibly none
func (s *Service[T]) GetAll(ctx context.Context) ([]T, error) {
	items, err := s.repo.GetAll(ctx)
	s.engine.metrics.operation(s.kind(), "get_all", err)

	return items, err
}

//---------------------------------------------------------------------------
// pipeline steps
//---------------------------------------------------------------------------

// Validate checks an item and every entity it references, the
// returned cache holds everything that was resolved
func (s *Service[T]) Validate(ctx context.Context, item T) (*Related, error) {
	item.Normalize()

	if err := item.Validate(); err != nil {
		return nil, fault.Wrap(fault.KBadRequest, err, item.DocumentID(), "request was not accepted")
	}

	rel := NewRelated()
	if err := s.policy.validate(ctx, rel, item); err != nil {
		return nil, err
	}

	return rel, nil
}

// Synchronize writes the back-references implied by the change from
// before to after. Every counterpart is attempted, failures are
// collected and returned together, nothing is rolled back.
func (s *Service[T]) Synchronize(ctx context.Context, rel *Related, before, after T) error {
	if rel == nil {
		rel = NewRelated()
	}

	if err := s.policy.synchronize(ctx, rel, before, after); err != nil {
		s.engine.loggerFrom(ctx).Warn("synchronization incomplete", zap.Error(err))
		return errors.Wrap(err, "failed to synchronize relationships")
	}

	return nil
}

//---------------------------------------------------------------------------
// mutations
//---------------------------------------------------------------------------

// Create validates and stores a new item, then links it to its
// counterparts. On a synchronization failure the stored item is
// returned together with the error.
func (s *Service[T]) Create(ctx context.Context, item T) (created T, err error) {
	item.Normalize()

	ctx, l := s.begin(ctx, "create", item.DocumentID())
	defer func() { s.end(l, "create", err) }()

	var none T
	s.policy.retain(none, item)

	rel, err := s.Validate(ctx, item)
	if err != nil {
		return created, err
	}

	if created, err = s.repo.Create(ctx, item); err != nil {
		return created, err
	}

	return created, s.Synchronize(ctx, rel, none, created)
}

// Patch merges the non-empty values of item into the stored one
func (s *Service[T]) Patch(ctx context.Context, item T) (patched T, err error) {
	item.Normalize()

	ctx, l := s.begin(ctx, "patch", item.DocumentID())
	defer func() { s.end(l, "patch", err) }()

	existing, err := s.repo.Get(ctx, item.DocumentID(), "")
	if err != nil {
		return patched, err
	}

	merged := existing.Clone()
	merged.SoftOverwrite(item)

	return s.update(ctx, existing, merged, repository.Soft)
}

// Put replaces the stored item with the given one
func (s *Service[T]) Put(ctx context.Context, item T) (put T, err error) {
	item.Normalize()

	ctx, l := s.begin(ctx, "put", item.DocumentID())
	defer func() { s.end(l, "put", err) }()

	existing, err := s.repo.Get(ctx, item.DocumentID(), "")
	if err != nil {
		return put, err
	}

	return s.update(ctx, existing, item.Clone(), repository.Hard)
}

func (s *Service[T]) update(ctx context.Context, existing, next T, mode repository.Mode) (T, error) {
	next.Normalize()

	s.policy.retain(existing, next)

	if next.PartitionKey() != existing.PartitionKey() {
		return s.relocate(ctx, existing, next)
	}

	rel, err := s.Validate(ctx, next)
	if err != nil {
		return next, err
	}

	stored, err := s.repo.Update(ctx, next, mode)
	if err != nil {
		return stored, err
	}

	return stored, s.Synchronize(ctx, rel, existing, stored)
}

// Delete removes an item along with every back-reference to it,
// an empty partition matches any
func (s *Service[T]) Delete(ctx context.Context, item T) (err error) {
	item.Normalize()

	ctx, l := s.begin(ctx, "delete", item.DocumentID())
	defer func() { s.end(l, "delete", err) }()

	existing, err := s.repo.Get(ctx, item.DocumentID(), item.PartitionKey())
	if err != nil {
		return err
	}

	cascaded, err := s.policy.cascade(ctx, existing)
	if err != nil {
		return errors.Wrapf(err, "failed to cascade deletion of %s %s", s.kind(), existing.DocumentID())
	}

	// the cascade has rewritten the item's own lists
	if cascaded {
		if existing, err = s.repo.Get(ctx, existing.DocumentID(), existing.PartitionKey()); err != nil {
			return err
		}
	}

	if err = s.repo.Delete(ctx, existing); err != nil {
		return err
	}

	var none T

	return s.Synchronize(ctx, nil, existing, none)
}

//---------------------------------------------------------------------------
// migration
//---------------------------------------------------------------------------

// Migrate moves an item into another partition. The move is first
// validated on a disposable shadow copy, a failed validation leaves
// the stored item untouched.
func (s *Service[T]) Migrate(ctx context.Context, item T, partition string) (moved T, err error) {
	item.Normalize()

	ctx, l := s.begin(ctx, "migrate", item.DocumentID())
	defer func() { s.end(l, "migrate", err) }()

	if partition == "" {
		return moved, fault.BadRequest(item.DocumentID(), "target partition is missing")
	}

	existing, err := s.repo.Get(ctx, item.DocumentID(), item.PartitionKey())
	if err != nil {
		return moved, err
	}

	if existing.PartitionKey() == partition {
		return existing, nil
	}

	return s.relocate(ctx, existing, existing.WithPartition(partition))
}

// relocate replaces existing with next, which lives in another partition
func (s *Service[T]) relocate(ctx context.Context, existing, next T) (T, error) {
	l := s.engine.loggerFrom(ctx)

	if err := s.policy.migratable(existing, next); err != nil {
		return next, err
	}

	// a taken target id would fail the creation after the old item is gone
	if next.DocumentID() != existing.DocumentID() {
		_, taken, err := s.repo.GetIfExists(ctx, next.DocumentID(), "")
		if err != nil {
			return next, err
		}

		if taken {
			return next, fault.Conflict(next.DocumentID(), "%s %s already exists", s.kind(), next.DocumentID())
		}
	}

	shadow := next.Shadow(util.NewULID().String())

	rel, err := s.Validate(ctx, shadow)
	if err != nil {
		return next, errors.Wrapf(err, "%s %s cannot move to %s", s.kind(), existing.DocumentID(), next.PartitionKey())
	}

	if err = s.repo.Delete(ctx, existing); err != nil {
		return next, err
	}

	moved, err := s.repo.Create(ctx, next)
	if err != nil {
		return moved, errors.Wrapf(err, "%s %s was removed from %s but could not be recreated", s.kind(), existing.DocumentID(), existing.PartitionKey())
	}

	l.Debug("migrated",
		zap.String("from", existing.PartitionKey()),
		zap.String("to", moved.PartitionKey()),
		zap.String("new_id", moved.DocumentID()),
	)

	return moved, s.Synchronize(ctx, rel, existing, moved)
}
