package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
)

const templateColumns = "id, name, slots, ord, created_at, updated_at"

func scanTemplate(row rowScanner) (*models.Template, error) {
	var tpl models.Template
	var created, updated string
	if err := row.Scan(&tpl.ID, &tpl.Name, &tpl.Slots, &tpl.Order, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if tpl.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_at of template %s: %w", tpl.ID, err)
	}
	if tpl.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at of template %s: %w", tpl.ID, err)
	}
	return &tpl, nil
}

func (s *Store) GetTemplate(ctx context.Context, id models.ID) (*models.Template, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+templateColumns+" FROM templates WHERE id = ?", id)
	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound(models.TemplateRef(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}
	return tpl, nil
}

func (s *Store) queryTemplates(ctx context.Context, q string, args ...any) ([]*models.Template, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var out []*models.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

func (s *Store) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	return s.queryTemplates(ctx, "SELECT "+templateColumns+" FROM templates ORDER BY ord, id")
}

func (s *Store) AddTemplate(ctx context.Context, tpl *models.Template) (models.ID, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO templates (name, slots, ord, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		tpl.Name, tpl.Slots, tpl.Order, formatTime(tpl.CreatedAt), formatTime(tpl.UpdatedAt))
	if err != nil {
		return 0, translateOrder(fmt.Errorf("insert template: %w", err), tpl.Order)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	tpl.ID = models.ID(id)
	return tpl.ID, nil
}

func (s *Store) UpdateTemplate(ctx context.Context, tpl *models.Template) (models.ID, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE templates SET name = ?, slots = ?, ord = ?, created_at = ?, updated_at = ? WHERE id = ?`,
		tpl.Name, tpl.Slots, tpl.Order, formatTime(tpl.CreatedAt), formatTime(tpl.UpdatedAt), tpl.ID)
	if err != nil {
		return 0, translateOrder(fmt.Errorf("update template %s: %w", tpl.ID, err), tpl.Order)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return 0, models.NotFound(tpl.Ref())
	}
	return tpl.ID, nil
}

func (s *Store) RemoveTemplate(ctx context.Context, id models.ID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id); err != nil {
		return fmt.Errorf("remove template %s: %w", id, err)
	}
	return nil
}

// OpenTemplateCursor selects the matching ids with one ordered query and
// returns a cursor over that snapshot.
func (s *Store) OpenTemplateCursor(ctx context.Context, rng store.OrderRange, dir store.Direction) (store.TemplateCursor, error) {
	var b strings.Builder
	b.WriteString("SELECT id FROM templates WHERE ord >= ?")
	args := []any{rng.Lower}
	if rng.Upper >= 0 {
		b.WriteString(" AND ord <= ?")
		args = append(args, rng.Upper)
	}
	if dir == store.Descending {
		b.WriteString(" ORDER BY ord DESC, id DESC")
	} else {
		b.WriteString(" ORDER BY ord ASC, id ASC")
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("scan template ranks %s: %w", rng, err)
	}
	defer rows.Close()

	var ids []models.ID
	for rows.Next() {
		var id models.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return store.NewSliceCursor(s, ids), nil
}

func translateOrder(err error, order int) error {
	if strings.Contains(err.Error(), "CHECK constraint failed") {
		return &models.ConstraintViolationError{Field: "order", Value: fmt.Sprint(order), Reason: "must not be negative"}
	}
	return err
}
