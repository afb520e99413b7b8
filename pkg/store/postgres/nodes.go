package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
)

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
	db := s.db.WithContext(ctx)
	var err error
	var n *models.Node
	switch ref.Store {
	case models.CollectionPages:
		var row pageRow
		if err = db.First(&row, "id = ?", int64(ref.ID)).Error; err == nil {
			n = row.node()
		}
	case models.CollectionBlocks:
		var row blockRow
		if err = db.First(&row, "id = ?", int64(ref.ID)).Error; err == nil {
			n = row.node()
		}
	default:
		return nil, models.NotFound(ref)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NotFound(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return n, nil
}

func orderClause(sort store.SortBy) string {
	field := string(sort.Field)
	if field == "" {
		field = string(store.SortByID)
	}
	dir := "asc"
	if sort.Direction == store.Descending {
		dir = "desc"
	}
	return fmt.Sprintf("%s %s, id %s", field, dir, dir)
}

func (s *Store) GetMany(ctx context.Context, collection models.Collection, sort store.SortBy) ([]*models.Node, error) {
	db := s.db.WithContext(ctx).Order(orderClause(sort))
	var out []*models.Node
	switch collection {
	case models.CollectionPages:
		var rows []*pageRow
		if err := db.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("list pages: %w", err)
		}
		for _, r := range rows {
			out = append(out, r.node())
		}
	case models.CollectionBlocks:
		var rows []*blockRow
		if err := db.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("list blocks: %w", err)
		}
		for _, r := range rows {
			out = append(out, r.node())
		}
	default:
		return nil, fmt.Errorf("cannot list nodes of collection %q", collection)
	}
	return out, nil
}

func (s *Store) Add(ctx context.Context, node *models.Node) (models.ID, error) {
	if err := checkNode(node); err != nil {
		return 0, err
	}
	db := s.db.WithContext(ctx)
	var id int64
	switch node.Kind() {
	case models.KindPage:
		row := pageFromNode(node)
		row.ID = 0
		if err := db.Create(row).Error; err != nil {
			return 0, translate(fmt.Errorf("insert page: %w", err), node.Page.Slug)
		}
		id = row.ID
	case models.KindBlock:
		row := blockFromNode(node)
		row.ID = 0
		if err := db.Create(row).Error; err != nil {
			return 0, fmt.Errorf("insert block: %w", err)
		}
		id = row.ID
	}
	node.ID = models.ID(id)
	return node.ID, nil
}

func (s *Store) Update(ctx context.Context, node *models.Node) (models.ID, error) {
	if err := checkNode(node); err != nil {
		return 0, err
	}
	db := s.db.WithContext(ctx)
	var res *gorm.DB
	switch node.Kind() {
	case models.KindPage:
		res = db.Model(&pageRow{}).Where("id = ?", int64(node.ID)).Select("*").Updates(pageFromNode(node))
	case models.KindBlock:
		res = db.Model(&blockRow{}).Where("id = ?", int64(node.ID)).Select("*").Updates(blockFromNode(node))
	}
	if res.Error != nil {
		var slug string
		if node.Page != nil {
			slug = node.Page.Slug
		}
		return 0, translate(fmt.Errorf("update %s: %w", node.Ref(), res.Error), slug)
	}
	if res.RowsAffected == 0 {
		return 0, models.NotFound(node.Ref())
	}
	return node.ID, nil
}

// UpdateMany applies each update in turn. Earlier updates stay committed
// when a later one fails.
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
	db := s.db.WithContext(ctx)
	var err error
	switch ref.Store {
	case models.CollectionPages:
		err = db.Delete(&pageRow{}, "id = ?", int64(ref.ID)).Error
	case models.CollectionBlocks:
		err = db.Delete(&blockRow{}, "id = ?", int64(ref.ID)).Error
	case models.CollectionTemplates:
		err = db.Delete(&templateRow{}, "id = ?", int64(ref.ID)).Error
	default:
		return fmt.Errorf("unknown collection %q", ref.Store)
	}
	if err != nil {
		return fmt.Errorf("remove %s: %w", ref, err)
	}
	return nil
}

func (s *Store) RemoveMany(ctx context.Context, refs []models.Ref) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txStore := &Store{db: tx}
		for _, ref := range refs {
			if err := txStore.Remove(ctx, ref); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) FindPageBySlug(ctx context.Context, slug string) (*models.Node, error) {
	var row pageRow
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &models.NotFoundError{Ref: models.Ref{Store: models.CollectionPages}}
	}
	if err != nil {
		return nil, fmt.Errorf("find page %q: %w", slug, err)
	}
	return row.node(), nil
}
