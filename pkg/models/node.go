package models

import (
	"maps"
	"slices"
	"sort"
	"time"
)

// PageStatus is the publication state of a page.
type PageStatus string

const (
	StatusDraft       PageStatus = "Draft"
	StatusPublished   PageStatus = "Published"
	StatusChanged     PageStatus = "Changed"
	StatusUnpublished PageStatus = "Unpublished"
)

// Valid reports whether s is a known status.
func (s PageStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusChanged, StatusUnpublished:
		return true
	}
	return false
}

// RootSlot is the slot name pages and templates keep their top-level blocks in.
const RootSlot = "root"

// Kind is the variant of a Node.
type Kind int

const (
	KindBlock Kind = iota
	KindPage
)

// PageMeta holds the fields only pages carry.
type PageMeta struct {
	Slug        string     `json:"slug" validate:"required"`
	Title       string     `json:"title"`
	Status      PageStatus `json:"status"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Node is a page or a block. Store is the discriminant: Page is set exactly
// when Store is CollectionPages.
type Node struct {
	Store     Collection `json:"store"`
	ID        ID         `json:"id"`
	Type      string     `json:"type"`
	Slots     Slots      `json:"slots"`
	Props     Props      `json:"props"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Page      *PageMeta  `json:"page,omitempty"`
}

// NewBlock returns an unsaved block of the given type.
func NewBlock(typ string, props Props, slots Slots) *Node {
	if props == nil {
		props = Props{}
	}
	if slots == nil {
		slots = Slots{}
	}
	return &Node{Store: CollectionBlocks, Type: typ, Props: props, Slots: slots}
}

// NewPage returns an unsaved draft page with an empty root slot.
func NewPage(slug, title string) *Node {
	return &Node{
		Store: CollectionPages,
		Type:  "page",
		Slots: Slots{RootSlot: []ID{}},
		Props: Props{},
		Page:  &PageMeta{Slug: slug, Title: title, Status: StatusDraft},
	}
}

// Ref returns the reference to n.
func (n *Node) Ref() Ref { return Ref{Store: n.Store, ID: n.ID} }

// Kind returns the node variant. It panics on a node whose discriminant is not
// a node collection; such a value can only come from a programming error.
func (n *Node) Kind() Kind {
	switch n.Store {
	case CollectionPages:
		return KindPage
	case CollectionBlocks:
		return KindBlock
	default:
		panic("models: node with invalid store " + string(n.Store))
	}
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Slots = n.Slots.Clone()
	c.Props = n.Props.Clone()
	if n.Page != nil {
		p := *n.Page
		if n.Page.PublishedAt != nil {
			t := *n.Page.PublishedAt
			p.PublishedAt = &t
		}
		c.Page = &p
	}
	return &c
}

// Touch stamps UpdatedAt. A published page that is edited becomes Changed.
func (n *Node) Touch(now time.Time) {
	n.UpdatedAt = now
	switch n.Kind() {
	case KindPage:
		if n.Page.Status == StatusPublished {
			n.Page.Status = StatusChanged
		}
	case KindBlock:
	}
}

// Slots maps slot names to ordered child block ids.
type Slots map[string][]ID

// Clone deep-copies the map and every array.
func (s Slots) Clone() Slots {
	if s == nil {
		return nil
	}
	c := make(Slots, len(s))
	for name, ids := range s {
		c[name] = slices.Clone(ids)
		if c[name] == nil {
			c[name] = []ID{}
		}
	}
	return c
}

// Names returns the slot names in sorted order. Traversals use this order so
// they are deterministic across backends.
func (s Slots) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Children returns every child id across all slots in traversal order.
func (s Slots) Children() []ID {
	var ids []ID
	for _, name := range s.Names() {
		ids = append(ids, s[name]...)
	}
	return ids
}

// Props is a block's or page's free-form property bag.
type Props map[string]any

// Clone deep-copies nested maps and slices. Scalars are shared.
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	c := make(Props, len(p))
	for k, v := range p {
		c[k] = cloneValue(v)
	}
	return c
}

// Merge shallow-merges patch over p in place.
func (p Props) Merge(patch Props) {
	maps.Copy(p, patch)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Props(t).Clone())
	case Props:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
