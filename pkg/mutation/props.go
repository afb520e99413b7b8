package mutation

import (
	"context"
	"fmt"

	"github.com/pagecraft/pagecraft/pkg/events"
	"github.com/pagecraft/pagecraft/pkg/models"
)

// NameProp is the block prop Rename writes.
const NameProp = "name"

// UpdateProps shallow-merges req.Props into the target's props. Keys in the
// patch replace existing keys; nested maps are not merged.
func (e *Engine) UpdateProps(ctx context.Context, req UpdatePropsRequest) (err error) {
	o := e.begin("update_props")
	defer func() {
		o.end(err, events.Event{Kind: events.BlockUpdated, Root: req.Root, Target: req.Target})
	}()

	if err := check(req); err != nil {
		return err
	}
	return e.edit(ctx, req.Root, req.Target, func(n *models.Node) {
		n.Props.Merge(req.Props.Clone())
	})
}

// Rename sets a block's name prop or a page's title.
func (e *Engine) Rename(ctx context.Context, req RenameRequest) (err error) {
	o := e.begin("rename")
	defer func() {
		o.end(err, events.Event{Kind: events.BlockUpdated, Root: req.Root, Target: req.Target})
	}()

	if err := check(req); err != nil {
		return err
	}
	return e.edit(ctx, req.Root, req.Target, func(n *models.Node) {
		switch n.Kind() {
		case models.KindPage:
			n.Page.Title = req.Name
		case models.KindBlock:
			n.Props[NameProp] = req.Name
		}
	})
}

// edit applies fn to a clone of the node at ref and persists it.
func (e *Engine) edit(ctx context.Context, root, ref models.Ref, fn func(*models.Node)) error {
	n, err := e.getNode(ctx, ref)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := e.now()
	c := n.Clone()
	if c.Props == nil {
		c.Props = models.Props{}
	}
	fn(c)
	c.Touch(now)
	if _, err := e.st.Update(ctx, c); err != nil {
		return fmt.Errorf("update %s: %w", ref, err)
	}
	return e.stampRoot(ctx, root, now, c.Ref())
}
