// Package store defines the storage adapter the tree engine runs against.
//
// The adapter is a key-value store with three collections: pages and blocks
// (both holding [models.Node] records) and templates. Records are keyed by
// ids the store assigns on insert. Besides point reads and writes the
// adapter exposes one secondary index, an ordered range scan over templates
// by their Order field, which the ordering package uses to renumber ranks
// without rewriting the whole collection.
//
// # Implementations
//
//   - [github.com/pagecraft/pagecraft/pkg/store/badger]: embedded BadgerDB,
//     the default backend
//   - [github.com/pagecraft/pagecraft/pkg/store/sqlite]: SQLite through database/sql
//   - [github.com/pagecraft/pagecraft/pkg/store/postgres]: PostgreSQL through GORM
//   - [github.com/pagecraft/pagecraft/pkg/store/surrealdb]: SurrealDB through
//     the Go SDK
//
// Every implementation is exercised by the conformance suite in
// [github.com/pagecraft/pagecraft/pkg/store/storetest].
//
// # Consistency
//
// Single-record writes are atomic. Batched writes (UpdateMany, RemoveMany)
// are best effort: they stop at the first failure and leave earlier writes
// in place. The mutation engine orders its writes so that any prefix of them
// leaves the tree referentially sound.
package store

import (
	"context"
	"fmt"

	"github.com/pagecraft/pagecraft/pkg/models"
)

// Store is the storage adapter contract.
//
// Error conventions:
//   - Get, Update, FindPageBySlug, GetTemplate and UpdateTemplate return a
//     *models.NotFoundError when the record is absent.
//   - Add and Update of a page whose slug is used by another page return a
//     *models.ConstraintViolationError.
//   - Remove and RemoveMany of absent records succeed.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get reads one page or block.
	Get(ctx context.Context, ref models.Ref) (*models.Node, error)

	// GetMany lists every node of a collection in the requested order.
	GetMany(ctx context.Context, collection models.Collection, sort SortBy) ([]*models.Node, error)

	// Add inserts a node and returns its newly assigned id. The node's ID
	// field is ignored on input and set on success.
	Add(ctx context.Context, node *models.Node) (models.ID, error)

	// Update replaces an existing node.
	Update(ctx context.Context, node *models.Node) (models.ID, error)

	// UpdateMany replaces several nodes in order, stopping at the first
	// failure.
	UpdateMany(ctx context.Context, nodes []*models.Node) ([]models.ID, error)

	// Remove deletes one node.
	Remove(ctx context.Context, ref models.Ref) error

	// RemoveMany deletes several nodes in order, stopping at the first
	// failure.
	RemoveMany(ctx context.Context, refs []models.Ref) error

	// FindPageBySlug returns the page with the given slug.
	FindPageBySlug(ctx context.Context, slug string) (*models.Node, error)

	// GetTemplate reads one template.
	GetTemplate(ctx context.Context, id models.ID) (*models.Template, error)

	// ListTemplates returns every template ordered by Order ascending.
	ListTemplates(ctx context.Context) ([]*models.Template, error)

	// AddTemplate inserts a template and returns its assigned id.
	AddTemplate(ctx context.Context, tpl *models.Template) (models.ID, error)

	// UpdateTemplate replaces an existing template.
	UpdateTemplate(ctx context.Context, tpl *models.Template) (models.ID, error)

	// RemoveTemplate deletes a template record. Its blocks are not touched.
	RemoveTemplate(ctx context.Context, id models.ID) error

	// OpenTemplateCursor scans templates whose Order lies in the range, in
	// the given direction. The caller must Close the cursor.
	OpenTemplateCursor(ctx context.Context, rng OrderRange, dir Direction) (TemplateCursor, error)

	// Migrate prepares the backend schema. It is idempotent.
	Migrate(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// SortField names a node field GetMany can sort by.
type SortField string

const (
	SortByID        SortField = "id"
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
)

// Direction is a scan or sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// SortBy is a field and direction pair for GetMany.
type SortBy struct {
	Field     SortField
	Direction Direction
}

// OrderRange is an inclusive range of template ranks. A negative Upper means
// the range is unbounded above.
type OrderRange struct {
	Lower int
	Upper int
}

// From returns the range [lower, +inf).
func From(lower int) OrderRange { return OrderRange{Lower: lower, Upper: -1} }

// Between returns the range [lower, upper].
func Between(lower, upper int) OrderRange { return OrderRange{Lower: lower, Upper: upper} }

// Contains reports whether order lies in the range.
func (r OrderRange) Contains(order int) bool {
	return order >= r.Lower && (r.Upper < 0 || order <= r.Upper)
}

func (r OrderRange) String() string {
	if r.Upper < 0 {
		return fmt.Sprintf("[%d, +inf)", r.Lower)
	}
	return fmt.Sprintf("[%d, %d]", r.Lower, r.Upper)
}

// TemplateCursor walks the result of OpenTemplateCursor.
//
//	cur, err := st.OpenTemplateCursor(ctx, store.From(2), store.Descending)
//	if err != nil {
//		return err
//	}
//	defer cur.Close()
//	for cur.Next(ctx) {
//		tpl := cur.Template()
//		tpl.Order++
//		if err := cur.Update(ctx, tpl); err != nil {
//			return err
//		}
//	}
//	return cur.Err()
type TemplateCursor interface {
	// Next advances to the next record and reports whether there is one.
	Next(ctx context.Context) bool
	// Template returns a copy of the current record.
	Template() *models.Template
	// Update replaces the current record.
	Update(ctx context.Context, tpl *models.Template) error
	// Err returns the error that stopped iteration, if any.
	Err() error
	// Close releases the cursor.
	Close() error
}
