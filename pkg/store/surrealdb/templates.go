package surrealdb

import (
	"context"
	"fmt"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
)

func (s *Store) GetTemplate(ctx context.Context, id models.ID) (*models.Template, error) {
	ref := models.TemplateRef(id)
	rows, err := query[templateRow](ctx, s, `SELECT * FROM $rid`, map[string]any{"rid": ref.RecordID()})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	if len(rows) == 0 {
		return nil, models.NotFound(ref)
	}
	return rows[0].model()
}

func (s *Store) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	rows, err := query[templateRow](ctx, s, `SELECT * FROM templates ORDER BY ord ASC, id ASC`, nil)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]*models.Template, 0, len(rows))
	for i := range rows {
		tpl, err := rows[i].model()
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}

func (s *Store) AddTemplate(ctx context.Context, tpl *models.Template) (models.ID, error) {
	if err := checkOrder(tpl.Order); err != nil {
		return 0, err
	}
	id, err := s.nextID(ctx, models.CollectionTemplates)
	if err != nil {
		return 0, err
	}
	ref := models.TemplateRef(id)
	if _, err := query[templateRow](ctx, s, `CREATE $rid CONTENT $data`, map[string]any{
		"rid":  ref.RecordID(),
		"data": rowFromTemplate(tpl),
	}); err != nil {
		return 0, fmt.Errorf("create %s: %w", ref, err)
	}
	tpl.ID = id
	return id, nil
}

func (s *Store) UpdateTemplate(ctx context.Context, tpl *models.Template) (models.ID, error) {
	if err := checkOrder(tpl.Order); err != nil {
		return 0, err
	}
	rows, err := query[templateRow](ctx, s, `UPDATE $rid CONTENT $data`, map[string]any{
		"rid":  tpl.Ref().RecordID(),
		"data": rowFromTemplate(tpl),
	})
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", tpl.Ref(), err)
	}
	if len(rows) == 0 {
		return 0, models.NotFound(tpl.Ref())
	}
	return tpl.ID, nil
}

func (s *Store) RemoveTemplate(ctx context.Context, id models.ID) error {
	return s.Remove(ctx, models.TemplateRef(id))
}

func (s *Store) OpenTemplateCursor(ctx context.Context, rng store.OrderRange, dir store.Direction) (store.TemplateCursor, error) {
	sql := `SELECT id, ord FROM templates WHERE ord >= $lo`
	vars := map[string]any{"lo": rng.Lower}
	if rng.Upper >= 0 {
		sql += ` AND ord <= $hi`
		vars["hi"] = rng.Upper
	}
	if dir == store.Descending {
		sql += ` ORDER BY ord DESC, id DESC`
	} else {
		sql += ` ORDER BY ord ASC, id ASC`
	}

	type rankRow struct {
		ID  surrealmodels.RecordID `json:"id"`
		Ord int                    `json:"ord"`
	}
	rows, err := query[rankRow](ctx, s, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("scan template ranks %s: %w", rng, err)
	}
	ids := make([]models.ID, 0, len(rows))
	for _, r := range rows {
		id, err := recordNum(r.ID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return store.NewSliceCursor(s, ids), nil
}
