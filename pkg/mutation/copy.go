package mutation

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/pagecraft/pagecraft/pkg/events"
	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/slots"
	"github.com/pagecraft/pagecraft/pkg/tree"
)

// Copy duplicates the subtree at req.Parent.Slots[req.Slot][req.Index] and
// places the copy directly after the source. It returns the copy's root id.
func (e *Engine) Copy(ctx context.Context, req CopyRequest) (id models.ID, err error) {
	o := e.begin("copy")
	defer func() {
		o.end(err, events.Event{Kind: events.BlockCopied, Root: req.Root, Target: models.BlockRef(id)})
	}()

	if err := check(req); err != nil {
		return 0, err
	}
	ids, err := e.copyMany(ctx, req.Root, req.Parent, req.Slot, []int{req.Index})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// CopyMany copies several entries of one slot, each placed after its source.
// Duplicate indices are copied once. The returned ids follow the ascending
// order of the source indices.
func (e *Engine) CopyMany(ctx context.Context, req CopyManyRequest) (ids []models.ID, err error) {
	o := e.begin("copy_many")
	defer func() {
		o.end(err, events.Event{Kind: events.BlockCopied, Root: req.Root, Target: req.Parent})
	}()

	if err := check(req); err != nil {
		return nil, err
	}
	return e.copyMany(ctx, req.Root, req.Parent, req.Slot, req.Indices)
}

func (e *Engine) copyMany(ctx context.Context, root, parentRef models.Ref, slot string, indices []int) ([]models.ID, error) {
	parent, err := e.getNode(ctx, parentRef)
	if err != nil {
		return nil, err
	}
	entries := parent.Slots[slot]
	// Highest index first, so earlier insertions do not shift the sources
	// still to be copied.
	order := slices.Clone(indices)
	slices.Sort(order)
	order = slices.Compact(order)
	slices.Reverse(order)
	for _, i := range order {
		if i < 0 || i >= len(entries) {
			return nil, &slots.IndexError{Index: i, Len: len(entries)}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := e.now()
	copies := make([]models.ID, len(order))
	for k, i := range order {
		clone, err := e.duplicate(ctx, models.BlockRef(entries[i]), now)
		if err != nil {
			return nil, err
		}
		copies[len(order)-1-k] = clone.ID
		parent, err = e.getNode(ctx, parentRef)
		if err != nil {
			return nil, err
		}
		p := parent.Clone()
		p.Slots[slot], _ = slots.InsertAfter(p.Slots[slot], i, clone.ID)
		p.Touch(now)
		if _, err := e.st.Update(ctx, p); err != nil {
			return nil, fmt.Errorf("insert copy into %s slot %q: %w", parentRef, slot, err)
		}
	}
	return copies, e.stampRoot(ctx, root, now, parentRef)
}

// duplicate clones the subtree rooted at ref.
func (e *Engine) duplicate(ctx context.Context, ref models.Ref, now time.Time) (*models.Node, error) {
	subtree, err := tree.Collect(ctx, e.st, ref)
	if err != nil {
		return nil, err
	}
	clone, err := tree.Duplicate(ctx, e.st, subtree, tree.DuplicateOptions{Now: now, TitleSuffix: copySuffix})
	if err != nil {
		return nil, err
	}
	e.metrics.Cloned(len(subtree))
	return clone, nil
}

// ApplyTemplate inserts a copy of the template's tree into a slot. The
// template and its blocks are not modified.
func (e *Engine) ApplyTemplate(ctx context.Context, req ApplyTemplateRequest) (id models.ID, err error) {
	o := e.begin("apply_template")
	defer func() {
		o.end(err, events.Event{Kind: events.TemplateApplied, Root: req.Root, Target: models.BlockRef(id)})
	}()

	if err := check(req); err != nil {
		return 0, err
	}
	tpl, err := e.st.GetTemplate(ctx, req.Template)
	if err != nil {
		return 0, err
	}
	rootID := tpl.Root()
	if rootID.IsZero() {
		return 0, &models.ConstraintViolationError{
			Field:  "slots.root",
			Value:  tpl.Ref().String(),
			Reason: "template must hold exactly one root block",
		}
	}
	parent, err := e.getNode(ctx, req.Parent)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := e.now()
	clone, err := e.duplicate(ctx, models.BlockRef(rootID), now)
	if err != nil {
		return 0, err
	}
	if err := e.place(ctx, parent, req.Slot, clone.ID, req.At, now); err != nil {
		return clone.ID, err
	}
	return clone.ID, e.stampRoot(ctx, req.Root, now, parent.Ref())
}
