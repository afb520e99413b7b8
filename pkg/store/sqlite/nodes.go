package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
)

const (
	pageColumns  = "id, type, slots, props, created_at, updated_at, slug, title, status, published_at"
	blockColumns = "id, type, slots, props, created_at, updated_at"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func columns(c models.Collection) string {
	if c == models.CollectionPages {
		return pageColumns
	}
	return blockColumns
}

func scanNode(row rowScanner, c models.Collection) (*models.Node, error) {
	n := &models.Node{Store: c}
	var created, updated string
	dest := []any{&n.ID, &n.Type, &n.Slots, &n.Props, &created, &updated}

	var published sql.NullString
	if c == models.CollectionPages {
		n.Page = &models.PageMeta{}
		dest = append(dest, &n.Page.Slug, &n.Page.Title, &n.Page.Status, &published)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if n.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_at of %s: %w", n.Ref(), err)
	}
	if n.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at of %s: %w", n.Ref(), err)
	}
	if published.Valid {
		t, err := parseTime(published.String)
		if err != nil {
			return nil, fmt.Errorf("parse published_at of %s: %w", n.Ref(), err)
		}
		n.Page.PublishedAt = &t
	}
	return n, nil
}

func nodeArgs(n *models.Node) []any {
	args := []any{n.Type, n.Slots, n.Props, formatTime(n.CreatedAt), formatTime(n.UpdatedAt)}
	if n.Kind() == models.KindPage {
		var published any
		if n.Page.PublishedAt != nil {
			published = formatTime(*n.Page.PublishedAt)
		}
		args = append(args, n.Page.Slug, n.Page.Title, n.Page.Status, published)
	}
	return args
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

func slugOf(n *models.Node) string {
	if n.Page == nil {
		return ""
	}
	return n.Page.Slug
}

func (s *Store) Get(ctx context.Context, ref models.Ref) (*models.Node, error) {
	if !ref.Store.IsNode() {
		return nil, models.NotFound(ref)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", columns(ref.Store), ref.Store)
	n, err := scanNode(s.db.QueryRowContext(ctx, q, ref.ID), ref.Store)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return n, nil
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
	// field comes from a closed set of SortField constants.
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s %s, id %s", columns(collection), collection, field, dir, dir)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []*models.Node
	for rows.Next() {
		n, err := scanNode(rows, collection)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) Add(ctx context.Context, node *models.Node) (models.ID, error) {
	if err := checkNode(node); err != nil {
		return 0, err
	}
	var q string
	switch node.Kind() {
	case models.KindPage:
		q = `INSERT INTO pages (type, slots, props, created_at, updated_at, slug, title, status, published_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	case models.KindBlock:
		q = `INSERT INTO blocks (type, slots, props, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	}
	res, err := s.db.ExecContext(ctx, q, nodeArgs(node)...)
	if err != nil {
		return 0, translate(fmt.Errorf("insert %s: %w", node.Store, err), slugOf(node))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	node.ID = models.ID(id)
	return node.ID, nil
}

func (s *Store) Update(ctx context.Context, node *models.Node) (models.ID, error) {
	if err := checkNode(node); err != nil {
		return 0, err
	}
	var q string
	switch node.Kind() {
	case models.KindPage:
		q = `UPDATE pages SET type = ?, slots = ?, props = ?, created_at = ?, updated_at = ?,
			slug = ?, title = ?, status = ?, published_at = ? WHERE id = ?`
	case models.KindBlock:
		q = `UPDATE blocks SET type = ?, slots = ?, props = ?, created_at = ?, updated_at = ? WHERE id = ?`
	}
	res, err := s.db.ExecContext(ctx, q, append(nodeArgs(node), node.ID)...)
	if err != nil {
		return 0, translate(fmt.Errorf("update %s: %w", node.Ref(), err), slugOf(node))
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
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
	t, err := table(ref.Store)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+t+" WHERE id = ?", ref.ID); err != nil {
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
	q := fmt.Sprintf("SELECT %s FROM pages WHERE slug = ?", pageColumns)
	n, err := scanNode(s.db.QueryRowContext(ctx, q, slug), models.CollectionPages)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Ref: models.Ref{Store: models.CollectionPages}}
	}
	if err != nil {
		return nil, fmt.Errorf("find page %q: %w", slug, err)
	}
	return n, nil
}
