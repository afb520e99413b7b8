// Package integrity audits a store for broken trees.
//
// [Check] loads every page, block and template and reports:
//   - slot entries pointing at blocks that do not exist
//   - blocks referenced from more than one slot entry
//   - blocks no page or template can reach
//   - template orders that are not exactly 0..n-1
//
// It only reads. The engine never produces dangling references, but a
// failed operation can leave orphans behind, and those are what this
// reports most often.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/ordering"
	"github.com/pagecraft/pagecraft/pkg/store"
)

// Referrer is one slot entry: the record holding it and the slot name.
type Referrer struct {
	Ref  models.Ref `json:"ref"`
	Slot string     `json:"slot"`
}

func (r Referrer) String() string { return r.Ref.String() + "/" + r.Slot }

// Shared is a block referenced from more than one slot entry.
type Shared struct {
	Block     models.ID  `json:"block"`
	Referrers []Referrer `json:"referrers"`
}

// Report is the outcome of Check.
type Report struct {
	Pages     int `json:"pages"`
	Blocks    int `json:"blocks"`
	Templates int `json:"templates"`

	Dangling []*models.DanglingReferenceError `json:"dangling,omitempty"`
	Shared   []Shared                         `json:"shared,omitempty"`
	Orphans  []models.ID                      `json:"orphans,omitempty"`
	Density  *ordering.DensityError           `json:"density,omitempty"`
}

// OK reports whether no problem was found.
func (r *Report) OK() bool {
	return len(r.Dangling) == 0 && len(r.Shared) == 0 && len(r.Orphans) == 0 && r.Density == nil
}

// Err returns nil for a clean report, otherwise an error summarising it.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	var parts []string
	if n := len(r.Dangling); n > 0 {
		parts = append(parts, fmt.Sprintf("%d dangling references", n))
	}
	if n := len(r.Shared); n > 0 {
		parts = append(parts, fmt.Sprintf("%d shared blocks", n))
	}
	if n := len(r.Orphans); n > 0 {
		parts = append(parts, fmt.Sprintf("%d orphaned blocks", n))
	}
	if r.Density != nil {
		parts = append(parts, r.Density.Error())
	}
	return errors.New("integrity: " + strings.Join(parts, "; "))
}

// Check audits st.
func Check(ctx context.Context, st store.Store) (*Report, error) {
	var (
		pages, blocks []*models.Node
		templates     []*models.Template
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		pages, err = st.GetMany(gctx, models.CollectionPages, store.SortBy{Field: store.SortByID})
		return err
	})
	g.Go(func() (err error) {
		blocks, err = st.GetMany(gctx, models.CollectionBlocks, store.SortBy{Field: store.SortByID})
		return err
	})
	g.Go(func() (err error) {
		templates, err = st.ListTemplates(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("integrity: load: %w", err)
	}

	rep := &Report{Pages: len(pages), Blocks: len(blocks), Templates: len(templates)}
	byID := make(map[models.ID]*models.Node, len(blocks))
	for _, b := range blocks {
		byID[b.ID] = b
	}

	referrers := make(map[models.ID][]Referrer)
	note := func(ref models.Ref, s models.Slots) {
		for _, name := range s.Names() {
			for _, id := range s[name] {
				referrers[id] = append(referrers[id], Referrer{Ref: ref, Slot: name})
				if _, ok := byID[id]; !ok {
					rep.Dangling = append(rep.Dangling, &models.DanglingReferenceError{Missing: id, Parent: ref, Slot: name})
				}
			}
		}
	}
	var roots []models.ID
	for _, p := range pages {
		note(p.Ref(), p.Slots)
		roots = append(roots, p.Slots.Children()...)
	}
	for _, b := range blocks {
		note(b.Ref(), b.Slots)
	}
	for _, tpl := range templates {
		note(tpl.Ref(), tpl.Slots)
		roots = append(roots, tpl.Slots.Children()...)
	}

	for _, b := range blocks {
		if refs := referrers[b.ID]; len(refs) > 1 {
			rep.Shared = append(rep.Shared, Shared{Block: b.ID, Referrers: refs})
		}
	}

	reached := reachable(roots, byID)
	for _, b := range blocks {
		if !reached[b.ID] {
			rep.Orphans = append(rep.Orphans, b.ID)
		}
	}
	slices.Sort(rep.Orphans)

	var derr *ordering.DensityError
	if errors.As(ordering.CheckDensity(templates), &derr) {
		rep.Density = derr
	}
	return rep, nil
}

// reachable marks every block reachable from roots.
func reachable(roots []models.ID, byID map[models.ID]*models.Node) map[models.ID]bool {
	seen := make(map[models.ID]bool, len(byID))
	stack := slices.Clone(roots)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		if n, ok := byID[id]; ok {
			stack = append(stack, n.Slots.Children()...)
		}
	}
	return seen
}
