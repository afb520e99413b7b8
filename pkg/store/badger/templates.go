package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
)

func getTemplate(txn *badger.Txn, id models.ID) (*models.Template, error) {
	item, err := txn.Get(recordKey(models.CollectionTemplates, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, models.NotFound(models.TemplateRef(id))
	}
	if err != nil {
		return nil, err
	}
	var tpl models.Template
	if err := item.Value(func(val []byte) error { return unmarshal(val, &tpl) }); err != nil {
		return nil, fmt.Errorf("decode template %s: %w", id, err)
	}
	return &tpl, nil
}

func putTemplate(txn *badger.Txn, tpl *models.Template) error {
	if tpl.Order < 0 {
		return &models.ConstraintViolationError{Field: "order", Value: fmt.Sprint(tpl.Order), Reason: "must not be negative"}
	}
	data, err := marshal(tpl)
	if err != nil {
		return fmt.Errorf("encode template %s: %w", tpl.ID, err)
	}
	if err := txn.Set(recordKey(models.CollectionTemplates, tpl.ID), data); err != nil {
		return err
	}
	return txn.Set(orderKey(tpl.Order, tpl.ID), nil)
}

func (s *Store) GetTemplate(ctx context.Context, id models.ID) (*models.Template, error) {
	var tpl *models.Template
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		tpl, err = getTemplate(txn, id)
		return err
	})
	return tpl, err
}

// ListTemplates walks the rank index, so results come back ordered by
// (Order, ID) without sorting.
func (s *Store) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	var out []*models.Template
	err := s.db.View(func(txn *badger.Txn) error {
		ids, err := scanOrderIndex(txn, store.From(0))
		if err != nil {
			return err
		}
		for _, id := range ids {
			tpl, err := getTemplate(txn, id)
			if err != nil {
				return err
			}
			out = append(out, tpl)
		}
		return nil
	})
	return out, err
}

// scanOrderIndex returns template ids with rank in rng, ascending.
func scanOrderIndex(txn *badger.Txn, rng store.OrderRange) ([]models.ID, error) {
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false, Prefix: orderPrefix})
	defer it.Close()

	var ids []models.ID
	for it.Seek(orderSeekKey(max(rng.Lower, 0))); it.ValidForPrefix(orderPrefix); it.Next() {
		order, id := parseOrderKey(it.Item().Key())
		if !rng.Contains(order) {
			break
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) AddTemplate(ctx context.Context, tpl *models.Template) (models.ID, error) {
	id, err := s.nextID(models.CollectionTemplates)
	if err != nil {
		return 0, err
	}
	rec := tpl.Clone()
	rec.ID = id
	if err := s.db.Update(func(txn *badger.Txn) error { return putTemplate(txn, rec) }); err != nil {
		return 0, err
	}
	tpl.ID = id
	return id, nil
}

func (s *Store) UpdateTemplate(ctx context.Context, tpl *models.Template) (models.ID, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		old, err := getTemplate(txn, tpl.ID)
		if err != nil {
			return err
		}
		if old.Order != tpl.Order {
			if err := txn.Delete(orderKey(old.Order, old.ID)); err != nil {
				return err
			}
		}
		return putTemplate(txn, tpl)
	})
	if err != nil {
		return 0, err
	}
	return tpl.ID, nil
}

func (s *Store) RemoveTemplate(ctx context.Context, id models.ID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		old, err := getTemplate(txn, id)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(orderKey(old.Order, id)); err != nil {
			return err
		}
		return txn.Delete(recordKey(models.CollectionTemplates, id))
	})
}

// OpenTemplateCursor snapshots the matching ids from the rank index and
// returns a cursor over them.
func (s *Store) OpenTemplateCursor(ctx context.Context, rng store.OrderRange, dir store.Direction) (store.TemplateCursor, error) {
	var ids []models.ID
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ids, err = scanOrderIndex(txn, rng)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("scan template ranks %s: %w", rng, err)
	}
	if dir == store.Descending {
		slices.Reverse(ids)
	}
	return store.NewSliceCursor(s, ids), nil
}

// orderIndexLen counts rank index entries. Used by tests to check the index
// stays in step with the records.
func (s *Store) orderIndexLen() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: orderPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if !bytes.HasPrefix(it.Item().Key(), orderPrefix) {
				break
			}
			n++
		}
		return nil
	})
	return n, err
}
