package mutation

import (
	"context"
	"fmt"
	"time"

	"github.com/pagecraft/pagecraft/pkg/events"
	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/slots"
)

// Add creates a block of req.Type with the registry's defaults, req.Props
// merged over them, and places it in the parent's slot. It returns the new
// block's id.
func (e *Engine) Add(ctx context.Context, req AddRequest) (id models.ID, err error) {
	o := e.begin("add")
	defer func() {
		o.end(err, events.Event{Kind: events.BlockAdded, Root: req.Root, Target: models.BlockRef(id)})
	}()

	if err := check(req); err != nil {
		return 0, err
	}
	desc, err := e.registry.Lookup(req.Type)
	if err != nil {
		return 0, err
	}
	parent, err := e.getNode(ctx, req.Parent)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	props := desc.DefaultProps()
	props.Merge(req.Props.Clone())
	block := models.NewBlock(desc.Type, props, desc.DefaultSlots())
	now := e.now()
	block.CreatedAt, block.UpdatedAt = now, now
	if id, err = e.st.Add(ctx, block); err != nil {
		return 0, fmt.Errorf("add %s block: %w", req.Type, err)
	}
	if err := e.place(ctx, parent, req.Slot, id, req.At, now); err != nil {
		return id, err
	}
	return id, e.stampRoot(ctx, req.Root, now, parent.Ref())
}

// place inserts id into parent's slot at the point and persists the parent.
func (e *Engine) place(ctx context.Context, parent *models.Node, slot string, id models.ID, at *slots.InsertionPoint, now time.Time) error {
	p := parent.Clone()
	p.Slots[slot], _ = slots.Insert(p.Slots[slot], id, at)
	p.Touch(now)
	if _, err := e.st.Update(ctx, p); err != nil {
		return fmt.Errorf("insert into %s slot %q: %w", parent.Ref(), slot, err)
	}
	return nil
}
