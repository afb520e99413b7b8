package tree

import (
	"context"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
)

// Snapshot is a nested, read-only view of a tree, children inlined in their
// slots. It omits timestamps so it is stable across runs.
type Snapshot struct {
	Ref   models.Ref             `json:"ref"`
	Type  string                 `json:"type"`
	Props models.Props           `json:"props,omitempty"`
	Page  *models.PageMeta       `json:"page,omitempty"`
	Slots map[string][]*Snapshot `json:"slots,omitempty"`
}

// Build reads the tree under root into a Snapshot.
func Build(ctx context.Context, st store.Store, root models.Ref) (*Snapshot, error) {
	nodes, err := Collect(ctx, st, root)
	if err != nil {
		return nil, err
	}
	return Nest(nodes), nil
}

// Nest assembles a Snapshot from nodes as returned by Collect. Slot entries
// missing from nodes, and repeats of an id already placed, are skipped.
func Nest(nodes []*models.Node) *Snapshot {
	if len(nodes) == 0 {
		return nil
	}
	blocks := make(map[models.ID]*models.Node, len(nodes))
	for _, n := range nodes[1:] {
		blocks[n.ID] = n
	}
	placed := make(map[models.ID]bool, len(nodes))

	var nest func(n *models.Node) *Snapshot
	nest = func(n *models.Node) *Snapshot {
		s := &Snapshot{Ref: n.Ref(), Type: n.Type, Props: n.Props, Page: n.Page}
		if len(n.Slots) > 0 {
			s.Slots = make(map[string][]*Snapshot, len(n.Slots))
		}
		for _, name := range n.Slots.Names() {
			children := []*Snapshot{}
			for _, id := range n.Slots[name] {
				child, ok := blocks[id]
				if !ok || placed[id] {
					continue
				}
				placed[id] = true
				children = append(children, nest(child))
			}
			s.Slots[name] = children
		}
		return s
	}
	return nest(nodes[0])
}

// Count returns the number of nodes in s, s included.
func (s *Snapshot) Count() int {
	if s == nil {
		return 0
	}
	n := 1
	for _, children := range s.Slots {
		for _, c := range children {
			n += c.Count()
		}
	}
	return n
}
