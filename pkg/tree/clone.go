package tree

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
)

// ErrCycle reports a node set in which a block is its own descendant.
var ErrCycle = errors.New("node set contains a cycle")

// DuplicateOptions tunes Duplicate.
type DuplicateOptions struct {
	// Now stamps CreatedAt and UpdatedAt of every clone.
	Now time.Time

	// TitleSuffix is appended to a duplicated page's title.
	TitleSuffix string
}

// Duplicate writes a copy of the subtree described by nodes and returns the
// new root. nodes must be in pre-order with the root first, as Collect
// returns them.
//
// The set is checked before anything is written: a slot entry pointing
// outside the set fails with *models.IncompleteTreeError, and a block that
// is its own descendant fails with ErrCycle. Clones
// are then added children first, so every record a clone references already
// exists when the clone is written. Each clone gets a fresh id and slots
// remapped to the new ids.
//
// A page root becomes a draft with a fresh unique slug.
//
// A failure part way leaves the clones written so far in the store,
// unreferenced.
func Duplicate(ctx context.Context, st store.Store, nodes []*models.Node, opts DuplicateOptions) (*models.Node, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("duplicate: empty node set")
	}

	byID := make(map[models.ID]*models.Node, len(nodes))
	for i, n := range nodes {
		if i > 0 && n.Kind() != models.KindBlock {
			return nil, fmt.Errorf("duplicate: descendant %s is not a block", n.Ref())
		}
		if _, dup := byID[n.ID]; n.Kind() == models.KindBlock && !dup {
			byID[n.ID] = n
		}
	}
	for _, n := range nodes {
		for _, name := range n.Slots.Names() {
			for _, id := range n.Slots[name] {
				if _, ok := byID[id]; !ok {
					return nil, &models.IncompleteTreeError{Missing: id, Referrer: n.Ref()}
				}
			}
		}
	}

	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	order, err := postOrder(nodes, byID)
	if err != nil {
		return nil, err
	}
	remap := make(map[models.ID]models.ID, len(order))
	var root *models.Node
	for _, n := range order {
		c := n.Clone()
		c.ID = 0
		c.CreatedAt, c.UpdatedAt = opts.Now, opts.Now
		for name, ids := range c.Slots {
			mapped := make([]models.ID, len(ids))
			for j, id := range ids {
				mapped[j] = remap[id]
			}
			c.Slots[name] = mapped
		}
		if c.Kind() == models.KindPage {
			slug, err := UniqueSlug(ctx, st, c.Page.Slug)
			if err != nil {
				return nil, err
			}
			c.Page.Slug = slug
			c.Page.Title += opts.TitleSuffix
			c.Page.Status = models.StatusDraft
			c.Page.PublishedAt = nil
		}
		id, err := st.Add(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("duplicate %s: %w", n.Ref(), err)
		}
		if n.Kind() == models.KindBlock {
			remap[n.ID] = id
		}
		if n == nodes[0] {
			root = c
		}
	}
	return root, nil
}

// postOrder lists the set children first, starting from the root. A block
// shared by two parents is listed once, so both parent clones point at the
// same copy. Members not reachable from the root follow, in input order.
// A block reached again while one of its own descendants is being listed
// fails with ErrCycle.
func postOrder(nodes []*models.Node, byID map[models.ID]*models.Node) ([]*models.Node, error) {
	out := make([]*models.Node, 0, len(nodes))
	done := make(map[*models.Node]bool, len(nodes))
	onPath := make(map[*models.Node]bool)
	var visit func(n *models.Node) error
	visit = func(n *models.Node) error {
		done[n] = true
		onPath[n] = true
		for _, name := range n.Slots.Names() {
			for _, id := range n.Slots[name] {
				child := byID[id]
				if onPath[child] {
					return fmt.Errorf("duplicate: %s slot %q references ancestor %s: %w", n.Ref(), name, child.Ref(), ErrCycle)
				}
				if !done[child] {
					if err := visit(child); err != nil {
						return err
					}
				}
			}
		}
		onPath[n] = false
		out = append(out, n)
		return nil
	}
	for _, n := range nodes {
		if n.Kind() == models.KindBlock {
			n = byID[n.ID]
		}
		if !done[n] {
			if err := visit(n); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
