package mutation

import (
	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/slots"
)

// Root on every structural request names the page or template owning the
// edited tree. It is stamped with the operation time. It may be left zero
// when the caller has no owner to stamp.

// AddRequest creates a block of Type in Parent's Slot.
type AddRequest struct {
	Root   models.Ref            `json:"root" validate:"-"`
	Parent models.Ref            `json:"parent" validate:"required"`
	Slot   string                `json:"slot" validate:"required"`
	Type   string                `json:"type" validate:"required"`
	Props  models.Props          `json:"props,omitempty"`
	At     *slots.InsertionPoint `json:"at,omitempty"`
}

// DeleteRequest removes Target, found at Parent.Slots[Slot][Index], with
// its whole subtree.
type DeleteRequest struct {
	Root   models.Ref `json:"root" validate:"-"`
	Target models.ID  `json:"target" validate:"required"`
	Parent models.Ref `json:"parent" validate:"required"`
	Slot   string     `json:"slot" validate:"required"`
	Index  int        `json:"index" validate:"gte=0"`
}

// Location is an existing slot entry. Root, when set, names the tree the
// entry lives in and overrides MoveRequest.Root for that end of a move.
type Location struct {
	Root   models.Ref `json:"root,omitempty" validate:"-"`
	Parent models.Ref `json:"parent" validate:"required"`
	Slot   string     `json:"slot" validate:"required"`
	Index  int        `json:"index" validate:"gte=0"`
}

// Destination is where a moved or inserted entry goes. A nil At appends.
// Root, when set, overrides MoveRequest.Root for the destination tree.
type Destination struct {
	Root   models.Ref            `json:"root,omitempty" validate:"-"`
	Parent models.Ref            `json:"parent" validate:"required"`
	Slot   string                `json:"slot" validate:"required"`
	At     *slots.InsertionPoint `json:"at,omitempty"`
}

// ReorderRequest moves an entry within one slot.
type ReorderRequest struct {
	Root   models.Ref `json:"root" validate:"-"`
	Parent models.Ref `json:"parent" validate:"required"`
	Slot   string     `json:"slot" validate:"required"`
	From   int        `json:"from" validate:"gte=0"`
	To     int        `json:"to" validate:"gte=0"`
	Edge   slots.Edge `json:"edge" validate:"required,oneof=top bottom"`
}

// MoveRequest moves an entry anywhere. Root is the owner of both ends
// unless Source.Root or Dest.Root say otherwise, as for a move between
// pages.
type MoveRequest struct {
	Root   models.Ref  `json:"root" validate:"-"`
	Source Location    `json:"source"`
	Dest   Destination `json:"dest"`
}

// Roots returns the owners of the source and destination trees.
func (r MoveRequest) Roots() (src, dst models.Ref) {
	src, dst = r.Source.Root, r.Dest.Root
	if src.IsZero() {
		src = r.Root
	}
	if dst.IsZero() {
		dst = r.Root
	}
	return src, dst
}

// CopyRequest duplicates the subtree at Parent.Slots[Slot][Index] and
// places the copy right after it.
type CopyRequest struct {
	Root   models.Ref `json:"root" validate:"-"`
	Parent models.Ref `json:"parent" validate:"required"`
	Slot   string     `json:"slot" validate:"required"`
	Index  int        `json:"index" validate:"gte=0"`
}

// CopyManyRequest is CopyRequest for several entries of one slot.
type CopyManyRequest struct {
	Root    models.Ref `json:"root" validate:"-"`
	Parent  models.Ref `json:"parent" validate:"required"`
	Slot    string     `json:"slot" validate:"required"`
	Indices []int      `json:"indices" validate:"min=1,dive,gte=0"`
}

// ApplyTemplateRequest inserts a copy of a template's tree.
type ApplyTemplateRequest struct {
	Root     models.Ref            `json:"root" validate:"-"`
	Template models.ID             `json:"template" validate:"required"`
	Parent   models.Ref            `json:"parent" validate:"required"`
	Slot     string                `json:"slot" validate:"required"`
	At       *slots.InsertionPoint `json:"at,omitempty"`
}

// UpdatePropsRequest shallow-merges Props into Target's props.
type UpdatePropsRequest struct {
	Root   models.Ref   `json:"root" validate:"-"`
	Target models.Ref   `json:"target" validate:"required"`
	Props  models.Props `json:"props" validate:"required"`
}

// RenameRequest sets a block's "name" prop or a page's title.
type RenameRequest struct {
	Root   models.Ref `json:"root" validate:"-"`
	Target models.Ref `json:"target" validate:"required"`
	Name   string     `json:"name" validate:"required"`
}

// CreatePageRequest creates an empty draft page. An empty Slug is derived
// from Title.
type CreatePageRequest struct {
	Title string       `json:"title" validate:"required"`
	Slug  string       `json:"slug,omitempty"`
	Props models.Props `json:"props,omitempty"`
}

// UpdatePageRequest edits page fields. Nil fields are left alone.
type UpdatePageRequest struct {
	Page  models.ID    `json:"page" validate:"required"`
	Title *string      `json:"title,omitempty" validate:"omitnil,min=1"`
	Slug  *string      `json:"slug,omitempty" validate:"omitnil,min=1"`
	Props models.Props `json:"props,omitempty"`
}

// SaveTemplateRequest snapshots the subtree under Source as a new template.
// A nil Rank appends.
type SaveTemplateRequest struct {
	Name   string     `json:"name" validate:"required"`
	Source models.Ref `json:"source" validate:"required"`
	Rank   *int       `json:"rank,omitempty"`
}

// ReorderTemplateRequest moves the template at rank From beside rank To.
type ReorderTemplateRequest struct {
	From int        `json:"from" validate:"gte=0"`
	To   int        `json:"to" validate:"gte=0"`
	Edge slots.Edge `json:"edge" validate:"required,oneof=top bottom"`
}
