package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
)

func (s *Store) GetTemplate(ctx context.Context, id models.ID) (*models.Template, error) {
	var row templateRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", int64(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NotFound(models.TemplateRef(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}
	return row.model(), nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	var rows []*templateRow
	if err := s.db.WithContext(ctx).Order("ord asc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]*models.Template, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *Store) AddTemplate(ctx context.Context, tpl *models.Template) (models.ID, error) {
	if err := checkOrder(tpl.Order); err != nil {
		return 0, err
	}
	row := templateFromModel(tpl)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return 0, fmt.Errorf("insert template: %w", err)
	}
	tpl.ID = models.ID(row.ID)
	return tpl.ID, nil
}

func (s *Store) UpdateTemplate(ctx context.Context, tpl *models.Template) (models.ID, error) {
	if err := checkOrder(tpl.Order); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Model(&templateRow{}).Where("id = ?", int64(tpl.ID)).Select("*").Updates(templateFromModel(tpl))
	if res.Error != nil {
		return 0, fmt.Errorf("update template %s: %w", tpl.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, models.NotFound(tpl.Ref())
	}
	return tpl.ID, nil
}

func (s *Store) RemoveTemplate(ctx context.Context, id models.ID) error {
	return s.Remove(ctx, models.TemplateRef(id))
}

func (s *Store) OpenTemplateCursor(ctx context.Context, rng store.OrderRange, dir store.Direction) (store.TemplateCursor, error) {
	q := s.db.WithContext(ctx).Model(&templateRow{}).Where("ord >= ?", rng.Lower)
	if rng.Upper >= 0 {
		q = q.Where("ord <= ?", rng.Upper)
	}
	if dir == store.Descending {
		q = q.Order("ord desc, id desc")
	} else {
		q = q.Order("ord asc, id asc")
	}
	var raw []int64
	if err := q.Pluck("id", &raw).Error; err != nil {
		return nil, fmt.Errorf("scan template ranks %s: %w", rng, err)
	}
	ids := make([]models.ID, len(raw))
	for i, id := range raw {
		ids[i] = models.ID(id)
	}
	return store.NewSliceCursor(s, ids), nil
}
