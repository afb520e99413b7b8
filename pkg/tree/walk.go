// Package tree reads and copies whole subtrees: depth-first traversal from a
// root, subtree duplication with fresh ids, and nested snapshots for
// display.
//
// Traversal is pre-order. A node is yielded before its children; children
// are visited slot by slot in sorted slot-name order, and in array order
// within a slot. Descendants are always read from the blocks collection.
package tree

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
)

// Walk lazily traverses the tree under root, yielding each node once.
//
// A missing root yields a *models.NotFoundError; a slot entry whose block
// does not exist yields a *models.DanglingReferenceError naming the parent
// and slot. Either error ends the walk. An id reachable twice is only
// visited the first time.
func Walk(ctx context.Context, st store.Store, root models.Ref) iter.Seq2[*models.Node, error] {
	return func(yield func(*models.Node, error) bool) {
		if !root.Store.IsNode() {
			yield(nil, fmt.Errorf("cannot walk from %s: not a page or block", root))
			return
		}
		n, err := st.Get(ctx, root)
		if err != nil {
			yield(nil, err)
			return
		}
		w := walker{ctx: ctx, st: st, seen: map[models.Ref]bool{root: true}, yield: yield}
		w.visit(n)
	}
}

type walker struct {
	ctx   context.Context
	st    store.Store
	seen  map[models.Ref]bool
	yield func(*models.Node, error) bool
}

// visit yields n and its subtree, returning false once the consumer stops
// or an error was yielded.
func (w *walker) visit(n *models.Node) bool {
	if !w.yield(n, nil) {
		return false
	}
	for _, name := range n.Slots.Names() {
		for _, id := range n.Slots[name] {
			ref := models.BlockRef(id)
			if w.seen[ref] {
				continue
			}
			w.seen[ref] = true

			if err := w.ctx.Err(); err != nil {
				w.yield(nil, err)
				return false
			}
			child, err := w.st.Get(w.ctx, ref)
			if errors.Is(err, models.ErrNotFound) {
				w.yield(nil, &models.DanglingReferenceError{Missing: id, Parent: n.Ref(), Slot: name})
				return false
			}
			if err != nil {
				w.yield(nil, err)
				return false
			}
			if !w.visit(child) {
				return false
			}
		}
	}
	return true
}

// Collect drains Walk. The root is the first element.
func Collect(ctx context.Context, st store.Store, root models.Ref) ([]*models.Node, error) {
	var nodes []*models.Node
	for n, err := range Walk(ctx, st, root) {
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Refs returns the references of nodes, in order.
func Refs(nodes []*models.Node) []models.Ref {
	refs := make([]models.Ref, len(nodes))
	for i, n := range nodes {
		refs[i] = n.Ref()
	}
	return refs
}
