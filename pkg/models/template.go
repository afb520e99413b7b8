package models

import "time"

// Template is a reusable subtree snapshot. Slots["root"] holds exactly one
// block id; Order is the template's rank among all templates.
type Template struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	Slots     Slots     `json:"slots"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTemplate returns an unsaved template rooted at block root.
func NewTemplate(name string, root ID) *Template {
	return &Template{Name: name, Slots: Slots{RootSlot: []ID{root}}}
}

// Ref returns the reference to t.
func (t *Template) Ref() Ref { return TemplateRef(t.ID) }

// Root returns the id of the template's root block, or zero when the root
// slot is malformed.
func (t *Template) Root() ID {
	ids := t.Slots[RootSlot]
	if len(ids) != 1 {
		return 0
	}
	return ids[0]
}

// Clone returns a deep copy of t.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	c := *t
	c.Slots = t.Slots.Clone()
	return &c
}
