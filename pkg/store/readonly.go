package store

import (
	"context"
	"errors"

	"github.com/pagecraft/pagecraft/pkg/models"
)

// ErrReadOnly is returned by ReadOnlyStore for writes while read-only mode
// is on.
var ErrReadOnly = errors.New("operation denied: store is in read-only mode")

// ReadOnlyStore wraps a Store and rejects writes while isReadOnly reports
// true. Reads always pass through.
//
// The predicate is consulted on every write, so an application can toggle
// maintenance mode at runtime without reopening the store. Template cursors
// opened while writable keep the wrapper: their Update calls go through
// UpdateTemplate and are checked as well.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

// NewReadOnlyStore creates a read-only guard around store.
func NewReadOnlyStore(store Store, isReadOnly func() bool) *ReadOnlyStore {
	return &ReadOnlyStore{Store: store, isReadOnly: isReadOnly}
}

// Unwrap returns the underlying store.
func (r *ReadOnlyStore) Unwrap() Store {
	return r.Store
}

func (r *ReadOnlyStore) checkReadOnly() error {
	if r.isReadOnly() {
		return ErrReadOnly
	}
	return nil
}

func (r *ReadOnlyStore) Add(ctx context.Context, node *models.Node) (models.ID, error) {
	if err := r.checkReadOnly(); err != nil {
		return 0, err
	}
	return r.Store.Add(ctx, node)
}

func (r *ReadOnlyStore) Update(ctx context.Context, node *models.Node) (models.ID, error) {
	if err := r.checkReadOnly(); err != nil {
		return 0, err
	}
	return r.Store.Update(ctx, node)
}

func (r *ReadOnlyStore) UpdateMany(ctx context.Context, nodes []*models.Node) ([]models.ID, error) {
	if err := r.checkReadOnly(); err != nil {
		return nil, err
	}
	return r.Store.UpdateMany(ctx, nodes)
}

func (r *ReadOnlyStore) Remove(ctx context.Context, ref models.Ref) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.Remove(ctx, ref)
}

func (r *ReadOnlyStore) RemoveMany(ctx context.Context, refs []models.Ref) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.RemoveMany(ctx, refs)
}

func (r *ReadOnlyStore) AddTemplate(ctx context.Context, tpl *models.Template) (models.ID, error) {
	if err := r.checkReadOnly(); err != nil {
		return 0, err
	}
	return r.Store.AddTemplate(ctx, tpl)
}

func (r *ReadOnlyStore) UpdateTemplate(ctx context.Context, tpl *models.Template) (models.ID, error) {
	if err := r.checkReadOnly(); err != nil {
		return 0, err
	}
	return r.Store.UpdateTemplate(ctx, tpl)
}

func (r *ReadOnlyStore) RemoveTemplate(ctx context.Context, id models.ID) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.RemoveTemplate(ctx, id)
}

// OpenTemplateCursor opens the cursor on the wrapper so cursor updates are
// subject to the read-only check.
func (r *ReadOnlyStore) OpenTemplateCursor(ctx context.Context, rng OrderRange, dir Direction) (TemplateCursor, error) {
	ids, err := TemplateIDsInRange(ctx, r.Store, rng, dir)
	if err != nil {
		return nil, err
	}
	return NewSliceCursor(r, ids), nil
}

func (r *ReadOnlyStore) Migrate(ctx context.Context) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.Migrate(ctx)
}
