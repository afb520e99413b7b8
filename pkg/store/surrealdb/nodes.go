package surrealdb

import (
	"context"
	"fmt"

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
	if !ref.Store.IsNode() {
		return nil, models.NotFound(ref)
	}
	rows, err := query[nodeRow](ctx, s, `SELECT * FROM $rid`, map[string]any{"rid": ref.RecordID()})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	if len(rows) == 0 {
		return nil, models.NotFound(ref)
	}
	return rows[0].node(ref.Store)
}

func (s *Store) GetMany(ctx context.Context, collection models.Collection, sort store.SortBy) ([]*models.Node, error) {
	if !collection.IsNode() {
		return nil, fmt.Errorf("cannot list nodes of collection %q", collection)
	}
	field := string(sort.Field)
	if field == "" {
		field = string(store.SortByID)
	}
	dir := "ASC"
	if sort.Direction == store.Descending {
		dir = "DESC"
	}
	// collection and field come from closed sets of constants.
	sql := fmt.Sprintf("SELECT * FROM %s ORDER BY %s %s, id %s", collection, field, dir, dir)
	rows, err := query[nodeRow](ctx, s, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	out := make([]*models.Node, 0, len(rows))
	for i := range rows {
		n, err := rows[i].node(collection)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) Add(ctx context.Context, node *models.Node) (models.ID, error) {
	if err := checkNode(node); err != nil {
		return 0, err
	}
	id, err := s.nextID(ctx, node.Store)
	if err != nil {
		return 0, err
	}
	ref := models.Ref{Store: node.Store, ID: id}
	_, err = query[nodeRow](ctx, s, `CREATE $rid CONTENT $data`, map[string]any{
		"rid":  ref.RecordID(),
		"data": rowFromNode(node),
	})
	if err != nil {
		return 0, translate(fmt.Errorf("create %s: %w", ref, err), slugOf(node))
	}
	node.ID = id
	return id, nil
}

func slugOf(n *models.Node) string {
	if n.Page == nil {
		return ""
	}
	return n.Page.Slug
}

func (s *Store) Update(ctx context.Context, node *models.Node) (models.ID, error) {
	if err := checkNode(node); err != nil {
		return 0, err
	}
	rows, err := query[nodeRow](ctx, s, `UPDATE $rid CONTENT $data`, map[string]any{
		"rid":  node.Ref().RecordID(),
		"data": rowFromNode(node),
	})
	if err != nil {
		return 0, translate(fmt.Errorf("update %s: %w", node.Ref(), err), slugOf(node))
	}
	if len(rows) == 0 {
		return 0, models.NotFound(node.Ref())
	}
	return node.ID, nil
}

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
	if _, err := query[any](ctx, s, `DELETE $rid`, map[string]any{"rid": ref.RecordID()}); err != nil {
		return fmt.Errorf("remove %s: %w", ref, err)
	}
	return nil
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
	rows, err := query[nodeRow](ctx, s, `SELECT * FROM pages WHERE slug = $slug LIMIT 1`, map[string]any{"slug": slug})
	if err != nil {
		return nil, fmt.Errorf("find page %q: %w", slug, err)
	}
	if len(rows) == 0 {
		return nil, &models.NotFoundError{Ref: models.Ref{Store: models.CollectionPages}}
	}
	return rows[0].node(models.CollectionPages)
}
