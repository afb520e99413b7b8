package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
)

// Store implements store.Store on BadgerDB.
type Store struct {
	db        *badger.DB
	gc        *gcRunner
	bandwidth uint64

	mu   sync.Mutex
	seqs map[models.Collection]*badger.Sequence
}

var _ store.Store = (*Store)(nil)

// Open opens a BadgerDB store with the given configuration.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	bandwidth := cfg.SequenceBandwidth
	if bandwidth == 0 {
		bandwidth = 64
	}
	s := &Store{
		db:        db,
		bandwidth: bandwidth,
		seqs:      make(map[models.Collection]*badger.Sequence),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		s.gc.start()
	}
	return s, nil
}

// Migrate is a no-op: Badger has no schema.
func (s *Store) Migrate(ctx context.Context) error {
	return nil
}

// Close releases id leases, stops garbage collection and closes the
// database.
func (s *Store) Close() error {
	s.mu.Lock()
	var errs []error
	for _, seq := range s.seqs {
		errs = append(errs, seq.Release())
	}
	s.seqs = nil
	s.mu.Unlock()

	if s.gc != nil {
		s.gc.stop()
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// nextID allocates the next id in collection c. Badger sequences start at
// zero; ids start at one.
func (s *Store) nextID(c models.Collection) (models.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.seqs[c]
	if !ok {
		var err error
		seq, err = s.db.GetSequence(sequenceKey(c), s.bandwidth)
		if err != nil {
			return 0, fmt.Errorf("open %s id sequence: %w", c, err)
		}
		s.seqs[c] = seq
	}
	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", c, err)
	}
	return models.ID(n + 1), nil
}

func getNode(txn *badger.Txn, ref models.Ref) (*models.Node, error) {
	item, err := txn.Get(recordKey(ref.Store, ref.ID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, models.NotFound(ref)
	}
	if err != nil {
		return nil, err
	}
	var n models.Node
	if err := item.Value(func(val []byte) error { return unmarshal(val, &n) }); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	return &n, nil
}

func putNode(txn *badger.Txn, n *models.Node) error {
	data, err := marshal(n)
	if err != nil {
		return fmt.Errorf("encode %s: %w", n.Ref(), err)
	}
	return txn.Set(recordKey(n.Store, n.ID), data)
}

// claimSlug points the slug index at id, failing if another page holds it.
func claimSlug(txn *badger.Txn, slug string, id models.ID) error {
	item, err := txn.Get(slugKey(slug))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return err
	default:
		var owner models.ID
		if err := item.Value(func(val []byte) error { owner = decodeID(val); return nil }); err != nil {
			return err
		}
		if owner != id {
			return models.DuplicateSlug(slug)
		}
	}
	return txn.Set(slugKey(slug), encodeID(id))
}

func checkNode(n *models.Node) error {
	if !n.Store.IsNode() {
		return fmt.Errorf("cannot store node in collection %q", n.Store)
	}
	if n.Kind() == models.KindPage && n.Page == nil {
		return fmt.Errorf("page %s has no page fields", n.ID)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, ref models.Ref) (*models.Node, error) {
	var n *models.Node
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		n, err = getNode(txn, ref)
		return err
	})
	return n, err
}

func (s *Store) GetMany(ctx context.Context, collection models.Collection, sort store.SortBy) ([]*models.Node, error) {
	var nodes []*models.Node
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, Prefix: recordPrefix(collection)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var n models.Node
			if err := it.Item().Value(func(val []byte) error { return unmarshal(val, &n) }); err != nil {
				return fmt.Errorf("decode %s record: %w", collection, err)
			}
			nodes = append(nodes, &n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNodes(nodes, sort)
	return nodes, nil
}

func sortNodes(nodes []*models.Node, by store.SortBy) {
	slices.SortStableFunc(nodes, func(a, b *models.Node) int {
		var c int
		switch by.Field {
		case store.SortByCreatedAt:
			c = a.CreatedAt.Compare(b.CreatedAt)
		case store.SortByUpdatedAt:
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			c = cmp.Compare(a.ID, b.ID)
		}
		if by.Direction == store.Descending {
			return -c
		}
		return c
	})
}

func (s *Store) Add(ctx context.Context, node *models.Node) (models.ID, error) {
	if err := checkNode(node); err != nil {
		return 0, err
	}
	id, err := s.nextID(node.Store)
	if err != nil {
		return 0, err
	}
	rec := node.Clone()
	rec.ID = id
	err = s.db.Update(func(txn *badger.Txn) error {
		if rec.Kind() == models.KindPage {
			if err := claimSlug(txn, rec.Page.Slug, id); err != nil {
				return err
			}
		}
		return putNode(txn, rec)
	})
	if err != nil {
		return 0, err
	}
	node.ID = id
	return id, nil
}

func updateNode(txn *badger.Txn, node *models.Node) error {
	old, err := getNode(txn, node.Ref())
	if err != nil {
		return err
	}
	if node.Kind() == models.KindPage && old.Page.Slug != node.Page.Slug {
		if err := claimSlug(txn, node.Page.Slug, node.ID); err != nil {
			return err
		}
		if err := txn.Delete(slugKey(old.Page.Slug)); err != nil {
			return err
		}
	}
	return putNode(txn, node)
}

func (s *Store) Update(ctx context.Context, node *models.Node) (models.ID, error) {
	if err := checkNode(node); err != nil {
		return 0, err
	}
	err := s.db.Update(func(txn *badger.Txn) error { return updateNode(txn, node) })
	if err != nil {
		return 0, err
	}
	return node.ID, nil
}

// UpdateMany commits each node in its own transaction so a failure leaves
// the earlier updates in place, matching the other backends.
func (s *Store) UpdateMany(ctx context.Context, nodes []*models.Node) ([]models.ID, error) {
	ids := make([]models.ID, 0, len(nodes))
	for _, n := range nodes {
		id, err := s.Update(ctx, n)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) Remove(ctx context.Context, ref models.Ref) error {
	return s.db.Update(func(txn *badger.Txn) error {
		old, err := getNode(txn, ref)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if old.Kind() == models.KindPage {
			if err := txn.Delete(slugKey(old.Page.Slug)); err != nil {
				return err
			}
		}
		return txn.Delete(recordKey(ref.Store, ref.ID))
	})
}

func (s *Store) RemoveMany(ctx context.Context, refs []models.Ref) error {
	for _, ref := range refs {
		if err := s.Remove(ctx, ref); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) FindPageBySlug(ctx context.Context, slug string) (*models.Node, error) {
	var n *models.Node
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(slugKey(slug))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return &models.NotFoundError{Ref: models.Ref{Store: models.CollectionPages}}
		}
		if err != nil {
			return err
		}
		var id models.ID
		if err := item.Value(func(val []byte) error { id = decodeID(val); return nil }); err != nil {
			return err
		}
		n, err = getNode(txn, models.PageRef(id))
		return err
	})
	return n, err
}
