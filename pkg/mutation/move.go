package mutation

import (
	"context"
	"fmt"
	"slices"

	"github.com/pagecraft/pagecraft/pkg/events"
	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/slots"
	"github.com/pagecraft/pagecraft/pkg/tree"
)

// Reorder moves the entry at req.From beside req.To within one slot.
func (e *Engine) Reorder(ctx context.Context, req ReorderRequest) (err error) {
	o := e.begin("reorder")
	defer func() {
		o.end(err, events.Event{Kind: events.BlockMoved, Root: req.Root, Target: req.Parent})
	}()

	if err := check(req); err != nil {
		return err
	}
	return e.reorder(ctx, req)
}

func (e *Engine) reorder(ctx context.Context, req ReorderRequest) error {
	parent, err := e.getNode(ctx, req.Parent)
	if err != nil {
		return err
	}
	moved, err := slots.Move(parent.Slots[req.Slot], req.From, req.To, req.Edge)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := e.now()
	p := parent.Clone()
	p.Slots[req.Slot] = moved
	p.Touch(now)
	if _, err := e.st.Update(ctx, p); err != nil {
		return fmt.Errorf("reorder %s slot %q: %w", req.Parent, req.Slot, err)
	}
	return e.stampRoot(ctx, req.Root, now, p.Ref())
}

// Reparent moves the entry at req.Source into another parent. Both parents
// are written with one UpdateMany, destination first, so a failure part way
// leaves the block in both slots rather than in neither. The owners of both
// trees are stamped, so a move between pages touches both pages.
func (e *Engine) Reparent(ctx context.Context, req MoveRequest) (err error) {
	o := e.begin("reparent")
	defer func() {
		_, dst := req.Roots()
		o.end(err, events.Event{Kind: events.BlockMoved, Root: dst, Target: req.Dest.Parent})
	}()

	if err := check(req); err != nil {
		return err
	}
	return e.reparent(ctx, req)
}

func (e *Engine) reparent(ctx context.Context, req MoveRequest) error {
	if req.Source.Parent == req.Dest.Parent {
		return &models.ConstraintViolationError{Field: "dest.parent", Value: req.Dest.Parent.String(), Reason: "same as source parent"}
	}
	src, err := e.getNode(ctx, req.Source.Parent)
	if err != nil {
		return err
	}
	dst, err := e.getNode(ctx, req.Dest.Parent)
	if err != nil {
		return err
	}
	remaining, id, err := slots.RemoveAt(src.Slots[req.Source.Slot], req.Source.Index)
	if err != nil {
		return err
	}

	if dst.Kind() == models.KindBlock {
		subtree, err := tree.Collect(ctx, e.st, models.BlockRef(id))
		if err != nil {
			return err
		}
		if slices.ContainsFunc(subtree, func(n *models.Node) bool { return n.ID == dst.ID }) {
			return fmt.Errorf("move %s under %s: %w", models.BlockRef(id), dst.Ref(), ErrCycle)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := e.now()
	d := dst.Clone()
	d.Slots[req.Dest.Slot], _ = slots.Insert(d.Slots[req.Dest.Slot], id, req.Dest.At)
	d.Touch(now)
	s := src.Clone()
	s.Slots[req.Source.Slot] = remaining
	s.Touch(now)
	if _, err := e.st.UpdateMany(ctx, []*models.Node{d, s}); err != nil {
		return fmt.Errorf("move %s: %w", models.BlockRef(id), err)
	}
	srcRoot, dstRoot := req.Roots()
	if err := e.stampRoot(ctx, dstRoot, now, d.Ref(), s.Ref()); err != nil {
		return err
	}
	return e.stampRoot(ctx, srcRoot, now, d.Ref(), s.Ref(), dstRoot)
}

// Move reorders within a slot when source and destination share a parent
// and slot, and reparents otherwise.
func (e *Engine) Move(ctx context.Context, req MoveRequest) (err error) {
	o := e.begin("move")
	defer func() {
		_, dst := req.Roots()
		o.end(err, events.Event{Kind: events.BlockMoved, Root: dst, Target: req.Dest.Parent})
	}()

	if err := check(req); err != nil {
		return err
	}
	if req.Source.Parent != req.Dest.Parent {
		return e.reparent(ctx, req)
	}
	if req.Source.Slot != req.Dest.Slot {
		return e.moveAcrossSlots(ctx, req)
	}
	to, edge := req.Source.Index, slots.Top
	if req.Dest.At != nil {
		to, edge = req.Dest.At.Index, req.Dest.At.Edge
		if edge == "" {
			edge = slots.Top
		}
	} else {
		parent, err := e.getNode(ctx, req.Source.Parent)
		if err != nil {
			return err
		}
		to, edge = len(parent.Slots[req.Source.Slot])-1, slots.Bottom
	}
	src, _ := req.Roots()
	return e.reorder(ctx, ReorderRequest{
		Root:   src,
		Parent: req.Source.Parent,
		Slot:   req.Source.Slot,
		From:   req.Source.Index,
		To:     to,
		Edge:   edge,
	})
}

// moveAcrossSlots moves an entry between two slots of the same parent with
// a single write.
func (e *Engine) moveAcrossSlots(ctx context.Context, req MoveRequest) error {
	parent, err := e.getNode(ctx, req.Source.Parent)
	if err != nil {
		return err
	}
	remaining, id, err := slots.RemoveAt(parent.Slots[req.Source.Slot], req.Source.Index)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := e.now()
	p := parent.Clone()
	p.Slots[req.Source.Slot] = remaining
	p.Slots[req.Dest.Slot], _ = slots.Insert(p.Slots[req.Dest.Slot], id, req.Dest.At)
	p.Touch(now)
	if _, err := e.st.Update(ctx, p); err != nil {
		return fmt.Errorf("move %s: %w", models.BlockRef(id), err)
	}
	src, _ := req.Roots()
	return e.stampRoot(ctx, src, now, p.Ref())
}
