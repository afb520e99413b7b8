package postgres

import (
	"time"

	"github.com/pagecraft/pagecraft/pkg/models"
)

// Timestamps are owned by the mutation engine, so GORM's automatic
// CreatedAt/UpdatedAt tracking is switched off.

type pageRow struct {
	ID          int64        `gorm:"primaryKey;autoIncrement"`
	Type        string       `gorm:"not null"`
	Slots       models.Slots `gorm:"not null"`
	Props       models.Props `gorm:"not null"`
	Slug        string       `gorm:"not null;uniqueIndex"`
	Title       string       `gorm:"not null;default:''"`
	Status      string       `gorm:"not null;default:'draft'"`
	PublishedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

func (pageRow) TableName() string { return "pages" }

type blockRow struct {
	ID        int64        `gorm:"primaryKey;autoIncrement"`
	Type      string       `gorm:"not null"`
	Slots     models.Slots `gorm:"not null"`
	Props     models.Props `gorm:"not null"`
	CreatedAt time.Time    `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime:false"`
}

func (blockRow) TableName() string { return "blocks" }

type templateRow struct {
	ID        int64        `gorm:"primaryKey;autoIncrement"`
	Name      string       `gorm:"not null"`
	Slots     models.Slots `gorm:"not null"`
	Order     int          `gorm:"column:ord;not null;index:idx_templates_ord,priority:1"`
	CreatedAt time.Time    `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime:false"`
}

func (templateRow) TableName() string { return "templates" }

func pageFromNode(n *models.Node) *pageRow {
	return &pageRow{
		ID:          int64(n.ID),
		Type:        n.Type,
		Slots:       n.Slots,
		Props:       n.Props,
		Slug:        n.Page.Slug,
		Title:       n.Page.Title,
		Status:      string(n.Page.Status),
		PublishedAt: n.Page.PublishedAt,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

func (r *pageRow) node() *models.Node {
	return &models.Node{
		Store:     models.CollectionPages,
		ID:        models.ID(r.ID),
		Type:      r.Type,
		Slots:     r.Slots,
		Props:     r.Props,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Page: &models.PageMeta{
			Slug:        r.Slug,
			Title:       r.Title,
			Status:      models.PageStatus(r.Status),
			PublishedAt: r.PublishedAt,
		},
	}
}

func blockFromNode(n *models.Node) *blockRow {
	return &blockRow{
		ID:        int64(n.ID),
		Type:      n.Type,
		Slots:     n.Slots,
		Props:     n.Props,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func (r *blockRow) node() *models.Node {
	return &models.Node{
		Store:     models.CollectionBlocks,
		ID:        models.ID(r.ID),
		Type:      r.Type,
		Slots:     r.Slots,
		Props:     r.Props,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func templateFromModel(t *models.Template) *templateRow {
	return &templateRow{
		ID:        int64(t.ID),
		Name:      t.Name,
		Slots:     t.Slots,
		Order:     t.Order,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (r *templateRow) model() *models.Template {
	return &models.Template{
		ID:        models.ID(r.ID),
		Name:      r.Name,
		Slots:     r.Slots,
		Order:     r.Order,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
