package surrealdb

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/pagecraft/pagecraft/pkg/models"
)

// nodeRow is the stored shape of pages and blocks. The page fields stay
// empty on blocks.
type nodeRow struct {
	ID          *surrealmodels.RecordID `json:"id,omitempty"`
	Type        string                  `json:"type"`
	Slots       map[string][]int64      `json:"slots"`
	Props       map[string]any          `json:"props"`
	Slug        string                  `json:"slug,omitempty"`
	Title       string                  `json:"title,omitempty"`
	Status      string                  `json:"status,omitempty"`
	PublishedAt *time.Time              `json:"published_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

type templateRow struct {
	ID        *surrealmodels.RecordID `json:"id,omitempty"`
	Name      string                  `json:"name"`
	Slots     map[string][]int64      `json:"slots"`
	Ord       int                     `json:"ord"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func slotsToRow(s models.Slots) map[string][]int64 {
	out := make(map[string][]int64, len(s))
	for name, ids := range s {
		row := make([]int64, len(ids))
		for i, id := range ids {
			row[i] = int64(id)
		}
		out[name] = row
	}
	return out
}

func slotsFromRow(s map[string][]int64) models.Slots {
	out := make(models.Slots, len(s))
	for name, ids := range s {
		row := make([]models.ID, len(ids))
		for i, id := range ids {
			row[i] = models.ID(id)
		}
		out[name] = row
	}
	return out
}

func rowFromNode(n *models.Node) *nodeRow {
	r := &nodeRow{
		Type:      n.Type,
		Slots:     slotsToRow(n.Slots),
		Props:     n.Props,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if r.Props == nil {
		r.Props = map[string]any{}
	}
	if n.Page != nil {
		r.Slug = n.Page.Slug
		r.Title = n.Page.Title
		r.Status = string(n.Page.Status)
		r.PublishedAt = n.Page.PublishedAt
	}
	return r
}

func (r *nodeRow) node(c models.Collection) (*models.Node, error) {
	id, err := recordNum(*r.ID)
	if err != nil {
		return nil, err
	}
	n := &models.Node{
		Store:     c,
		ID:        id,
		Type:      r.Type,
		Slots:     slotsFromRow(r.Slots),
		Props:     models.Props(r.Props),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if n.Props == nil {
		n.Props = models.Props{}
	}
	if c == models.CollectionPages {
		n.Page = &models.PageMeta{
			Slug:        r.Slug,
			Title:       r.Title,
			Status:      models.PageStatus(r.Status),
			PublishedAt: r.PublishedAt,
		}
	}
	return n, nil
}

func rowFromTemplate(t *models.Template) *templateRow {
	return &templateRow{
		Name:      t.Name,
		Slots:     slotsToRow(t.Slots),
		Ord:       t.Order,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (r *templateRow) model() (*models.Template, error) {
	id, err := recordNum(*r.ID)
	if err != nil {
		return nil, err
	}
	return &models.Template{
		ID:        id,
		Name:      r.Name,
		Slots:     slotsFromRow(r.Slots),
		Order:     r.Ord,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}
