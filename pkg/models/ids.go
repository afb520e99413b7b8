package models

import (
	"fmt"
	"strconv"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ID identifies a record within its collection. IDs are assigned by the
// store, start at 1 and increase monotonically per collection.
type ID int64

// IsZero reports whether the id is unassigned.
func (id ID) IsZero() bool { return id == 0 }

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseID parses a decimal record id.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid record ID %q", s)
	}
	return ID(n), nil
}

// Collection names one of the three record collections.
type Collection string

const (
	CollectionPages     Collection = "pages"
	CollectionBlocks    Collection = "blocks"
	CollectionTemplates Collection = "templates"
)

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	switch c {
	case CollectionPages, CollectionBlocks, CollectionTemplates:
		return true
	}
	return false
}

// IsNode reports whether records of c are Nodes (pages or blocks).
func (c Collection) IsNode() bool {
	return c == CollectionPages || c == CollectionBlocks
}

// ParseCollection validates a collection name.
func ParseCollection(s string) (Collection, error) {
	c := Collection(s)
	if !c.Valid() {
		return "", fmt.Errorf("invalid collection %q", s)
	}
	return c, nil
}

// Ref points at a record: the collection it lives in and its id.
type Ref struct {
	Store Collection `json:"store" validate:"required,oneof=pages blocks templates"`
	ID    ID         `json:"id" validate:"required,gt=0"`
}

func PageRef(id ID) Ref     { return Ref{Store: CollectionPages, ID: id} }
func BlockRef(id ID) Ref    { return Ref{Store: CollectionBlocks, ID: id} }
func TemplateRef(id ID) Ref { return Ref{Store: CollectionTemplates, ID: id} }

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool { return r.Store == "" && r.ID == 0 }

func (r Ref) String() string { return string(r.Store) + ":" + r.ID.String() }

// RecordID returns the SurrealDB record id for r. The numeric id is used as
// the record key so ids survive a round trip through the database unchanged.
func (r Ref) RecordID() surrealmodels.RecordID {
	return surrealmodels.RecordID{
		Table: string(r.Store),
		ID:    int64(r.ID),
	}
}
