// Package slots implements the array arithmetic shared by every structural
// edit: inserting beside a reference index, splicing out, and moving an entry
// within one array.
//
// All functions return fresh slices and never modify their input, so callers
// can hand them arrays that still belong to a record read from the store.
//
// The landing formula used for moves is the single canonical one for the
// whole module; the template ordering engine applies the same function to
// ranks.
package slots

import (
	"fmt"
	"slices"

	"github.com/pagecraft/pagecraft/pkg/models"
)

// Edge says on which side of the reference index an entry lands.
type Edge string

const (
	// Top inserts before the reference index.
	Top Edge = "top"
	// Bottom inserts after the reference index.
	Bottom Edge = "bottom"
)

// Valid reports whether e is a known edge. The zero value is not valid.
func (e Edge) Valid() bool { return e == Top || e == Bottom }

// InsertionPoint is a reference index plus the edge to land on.
type InsertionPoint struct {
	Index int  `json:"index" validate:"gte=0"`
	Edge  Edge `json:"edge" validate:"omitempty,oneof=top bottom"`
}

// Position returns the array position the point designates before clamping:
// Index for the top edge, Index+1 for the bottom edge.
func (p InsertionPoint) Position() int {
	if p.Edge == Bottom {
		return p.Index + 1
	}
	return p.Index
}

// IndexError reports an index outside an array.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range for slot of length %d", e.Index, e.Len)
}

// Insert returns ids with id inserted at the point, or appended when at is
// nil. Positions past the end are clamped to an append. The second result is
// the index id ended up at.
func Insert(ids []models.ID, id models.ID, at *InsertionPoint) ([]models.ID, int) {
	pos := len(ids)
	if at != nil {
		pos = min(max(at.Position(), 0), len(ids))
	}
	return slices.Insert(slices.Clone(ids), pos, id), pos
}

// InsertAfter returns ids with id placed directly after index.
func InsertAfter(ids []models.ID, index int, id models.ID) ([]models.ID, int) {
	return Insert(ids, id, &InsertionPoint{Index: index, Edge: Bottom})
}

// RemoveAt returns ids without the entry at index, and that entry.
func RemoveAt(ids []models.ID, index int) ([]models.ID, models.ID, error) {
	if index < 0 || index >= len(ids) {
		return nil, 0, &IndexError{Index: index, Len: len(ids)}
	}
	out := slices.Clone(ids)
	removed := out[index]
	return slices.Delete(out, index, index+1), removed, nil
}

// Landing returns the final index of an entry moved from index from to land
// on the given edge of index to, within a single array.
//
// The requested position is computed against the array before the move
// (to, or to+1 for the bottom edge). Removing the entry first shifts every
// later position left by one, so a forward move lands one lower.
func Landing(from, to int, edge Edge) int {
	pos := InsertionPoint{Index: to, Edge: edge}.Position()
	if from < pos {
		pos--
	}
	return pos
}

// Move returns ids with the entry at from moved beside to.
func Move(ids []models.ID, from, to int, edge Edge) ([]models.ID, error) {
	if from < 0 || from >= len(ids) {
		return nil, &IndexError{Index: from, Len: len(ids)}
	}
	if to < 0 || to >= len(ids) {
		return nil, &IndexError{Index: to, Len: len(ids)}
	}
	final := Landing(from, to, edge)
	out, id, _ := RemoveAt(ids, from)
	return slices.Insert(out, final, id), nil
}

// IndexOf returns the index of id in ids, or -1.
func IndexOf(ids []models.ID, id models.ID) int {
	return slices.Index(ids, id)
}
