package mutation

import (
	"context"
	"fmt"

	"github.com/pagecraft/pagecraft/pkg/events"
	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/slots"
	"github.com/pagecraft/pagecraft/pkg/tree"
)

// Delete removes req.Target and its whole subtree.
//
// The parent entry is spliced out before any record is removed. When
// req.Target is not in the slot at all the parent is left untouched and only
// the subtree is deleted. When it is in the slot but not at req.Index the
// request is rejected before anything is written.
func (e *Engine) Delete(ctx context.Context, req DeleteRequest) (err error) {
	target := models.BlockRef(req.Target)
	o := e.begin("delete")
	defer func() {
		o.end(err, events.Event{Kind: events.BlockDeleted, Root: req.Root, Target: target})
	}()

	if err := check(req); err != nil {
		return err
	}
	subtree, err := tree.Collect(ctx, e.st, target)
	if err != nil {
		return err
	}
	parent, err := e.getNode(ctx, req.Parent)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ids := parent.Slots[req.Slot]
	at := req.Index
	if at >= len(ids) || ids[at] != req.Target {
		at = slots.IndexOf(ids, req.Target)
	}
	if at >= 0 && at != req.Index {
		return &models.ConstraintViolationError{
			Field:  "index",
			Value:  fmt.Sprint(req.Index),
			Reason: fmt.Sprintf("%s is at index %d of slot %q", target, at, req.Slot),
		}
	}

	now := e.now()
	var written []models.Ref
	if at >= 0 {
		p := parent.Clone()
		p.Slots[req.Slot], _, _ = slots.RemoveAt(ids, at)
		p.Touch(now)
		if _, err := e.st.Update(ctx, p); err != nil {
			return fmt.Errorf("unlink %s from %s: %w", target, parent.Ref(), err)
		}
		written = append(written, p.Ref())
	} else {
		e.log.Warn().
			Stringer("target", target).
			Stringer("parent", req.Parent).
			Str("slot", req.Slot).
			Msg("target not in parent slot, parent left unchanged")
	}
	if err := e.stampRoot(ctx, req.Root, now, written...); err != nil {
		return err
	}
	if err := e.st.RemoveMany(ctx, tree.Refs(subtree)); err != nil {
		return fmt.Errorf("remove subtree of %s: %w", target, err)
	}
	return nil
}
