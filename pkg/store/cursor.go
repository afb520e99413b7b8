package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/pagecraft/pagecraft/pkg/models"
)

// SliceCursor is a TemplateCursor over a list of template ids snapshotted
// when the cursor was opened. Each step loads the record fresh, and Update
// writes it back through the store.
//
// Snapshotting the ids up front means rewriting a record's Order never moves
// it back into the unvisited part of the scan, whatever the direction.
type SliceCursor struct {
	st      Store
	ids     []models.ID
	pos     int
	current *models.Template
	err     error
}

// NewSliceCursor returns a cursor visiting ids in the given order.
func NewSliceCursor(st Store, ids []models.ID) *SliceCursor {
	return &SliceCursor{st: st, ids: ids, pos: -1}
}

func (c *SliceCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	c.pos++
	if c.pos >= len(c.ids) {
		c.current = nil
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	tpl, err := c.st.GetTemplate(ctx, c.ids[c.pos])
	if err != nil {
		c.err = fmt.Errorf("cursor read template %s: %w", c.ids[c.pos], err)
		return false
	}
	c.current = tpl
	return true
}

func (c *SliceCursor) Template() *models.Template { return c.current.Clone() }

func (c *SliceCursor) Update(ctx context.Context, tpl *models.Template) error {
	if c.current == nil {
		return fmt.Errorf("cursor has no current record")
	}
	if tpl.ID != c.current.ID {
		return fmt.Errorf("cursor update: template %s is not the current record %s", tpl.ID, c.current.ID)
	}
	if _, err := c.st.UpdateTemplate(ctx, tpl); err != nil {
		return err
	}
	c.current = tpl.Clone()
	return nil
}

func (c *SliceCursor) Err() error { return c.err }

func (c *SliceCursor) Close() error {
	c.current = nil
	c.pos = len(c.ids)
	return nil
}

// TemplateIDsInRange lists the ids of templates whose Order lies in rng, in
// scan order. Ties on Order are broken by id so the scan is deterministic.
// Backends without a native ordered index can open cursors over this.
func TemplateIDsInRange(ctx context.Context, st Store, rng OrderRange, dir Direction) ([]models.ID, error) {
	all, err := st.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	var in []*models.Template
	for _, tpl := range all {
		if rng.Contains(tpl.Order) {
			in = append(in, tpl)
		}
	}
	slices.SortFunc(in, func(a, b *models.Template) int {
		if a.Order != b.Order {
			return cmp.Compare(a.Order, b.Order)
		}
		return cmp.Compare(a.ID, b.ID)
	})
	ids := make([]models.ID, len(in))
	for i, tpl := range in {
		ids[i] = tpl.ID
	}
	if dir == Descending {
		slices.Reverse(ids)
	}
	return ids, nil
}
