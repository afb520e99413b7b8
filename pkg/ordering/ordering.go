// Package ordering keeps template ranks dense.
//
// Every template carries an Order; across all templates the orders form
// exactly 0..n-1. Each operation here moves one or more templates and then
// rewrites the ranks of the records between the old and new positions, so
// the set stays dense after the operation completes. Rewrites go through a
// store cursor over the affected range, scanned in the direction that never
// revisits a record already shifted.
//
// Operations are not atomic. A failure part way leaves some ranks shifted;
// [Renumberer.Verify] reports the damage.
package ordering

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/pagecraft/pagecraft/pkg/metrics"
	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/slots"
	"github.com/pagecraft/pagecraft/pkg/store"
)

// Renumberer applies rank changes to the templates in a store.
type Renumberer struct {
	st      store.Store
	metrics *metrics.Metrics
}

// New returns a Renumberer over st. m may be nil.
func New(st store.Store, m *metrics.Metrics) *Renumberer {
	return &Renumberer{st: st, metrics: m}
}

// Count returns the number of templates.
func (r *Renumberer) Count(ctx context.Context) (int, error) {
	all, err := r.st.ListTemplates(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// shift adds delta to the order of every template in rng, scanning in dir,
// and returns how many records it rewrote. The cursor is always drained.
func (r *Renumberer) shift(ctx context.Context, rng store.OrderRange, dir store.Direction, delta int) (n int, err error) {
	cur, err := r.st.OpenTemplateCursor(ctx, rng, dir)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := cur.Close(); err == nil {
			err = cerr
		}
		r.metrics.Renumbered(n)
	}()

	for cur.Next(ctx) {
		tpl := cur.Template()
		tpl.Order += delta
		if err := cur.Update(ctx, tpl); err != nil {
			return n, fmt.Errorf("shift template %s by %d: %w", tpl.ID, delta, err)
		}
		n++
	}
	return n, cur.Err()
}

// InsertAt adds tpl at rank, moving every template at or after rank up by
// one. rank is clamped to [0, count]. tpl.ID and tpl.Order are set on
// success.
func (r *Renumberer) InsertAt(ctx context.Context, tpl *models.Template, rank int) error {
	count, err := r.Count(ctx)
	if err != nil {
		return err
	}
	rank = min(max(rank, 0), count)

	if _, err := r.shift(ctx, store.From(rank), store.Descending, 1); err != nil {
		return fmt.Errorf("open rank %d: %w", rank, err)
	}
	tpl.Order = rank
	if _, err := r.st.AddTemplate(ctx, tpl); err != nil {
		return fmt.Errorf("add template at rank %d: %w", rank, err)
	}
	return nil
}

// Append adds tpl after every existing template.
func (r *Renumberer) Append(ctx context.Context, tpl *models.Template) error {
	count, err := r.Count(ctx)
	if err != nil {
		return err
	}
	return r.InsertAt(ctx, tpl, count)
}

// RemoveAt closes the gap left by a template removed from rank. The record
// itself must already be gone.
func (r *Renumberer) RemoveAt(ctx context.Context, rank int) error {
	if _, err := r.shift(ctx, store.From(rank+1), store.Ascending, -1); err != nil {
		return fmt.Errorf("close rank %d: %w", rank, err)
	}
	return nil
}

// RemoveMany closes the gaps left by templates removed from ranks. Each
// survivor moves down by the number of removed ranks below it, so the
// result does not depend on the order ranks are given in. The records must
// already be gone.
func (r *Renumberer) RemoveMany(ctx context.Context, ranks []int) error {
	removed := slices.Clone(ranks)
	slices.Sort(removed)
	removed = slices.Compact(removed)
	if len(removed) == 0 {
		return nil
	}

	cur, err := r.st.OpenTemplateCursor(ctx, store.From(removed[0]+1), store.Ascending)
	if err != nil {
		return err
	}
	defer cur.Close()

	n := 0
	defer func() { r.metrics.Renumbered(n) }()
	for cur.Next(ctx) {
		tpl := cur.Template()
		below := sort.SearchInts(removed, tpl.Order)
		if below == 0 {
			continue
		}
		tpl.Order -= below
		if err := cur.Update(ctx, tpl); err != nil {
			return fmt.Errorf("close ranks below template %s: %w", tpl.ID, err)
		}
		n++
	}
	return cur.Err()
}

// Reorder moves the template at rank from beside rank to, landing on the
// given edge, and shifts the templates in between. It returns the moved
// template's final rank.
func (r *Renumberer) Reorder(ctx context.Context, from, to int, edge slots.Edge) (int, error) {
	count, err := r.Count(ctx)
	if err != nil {
		return 0, err
	}
	if from < 0 || from >= count {
		return 0, &slots.IndexError{Index: from, Len: count}
	}
	if to < 0 || to >= count {
		return 0, &slots.IndexError{Index: to, Len: count}
	}
	final := slots.Landing(from, to, edge)
	if final == from {
		return final, nil
	}

	moved, err := r.at(ctx, from)
	if err != nil {
		return 0, err
	}

	if final > from {
		_, err = r.shift(ctx, store.Between(from+1, final), store.Ascending, -1)
	} else {
		_, err = r.shift(ctx, store.Between(final, from-1), store.Descending, 1)
	}
	if err != nil {
		return 0, fmt.Errorf("move rank %d to %d: %w", from, final, err)
	}

	moved.Order = final
	if _, err := r.st.UpdateTemplate(ctx, moved); err != nil {
		return 0, fmt.Errorf("place template %s at rank %d: %w", moved.ID, final, err)
	}
	r.metrics.Renumbered(1)
	return final, nil
}

// at returns the template with the given rank.
func (r *Renumberer) at(ctx context.Context, rank int) (*models.Template, error) {
	cur, err := r.st.OpenTemplateCursor(ctx, store.Between(rank, rank), store.Ascending)
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, err
		}
		return nil, &DensityError{Missing: []int{rank}}
	}
	return cur.Template(), nil
}

// DensityError reports template orders that are not exactly 0..n-1.
type DensityError struct {
	// Missing lists ranks in 0..n-1 held by no template.
	Missing []int
	// Duplicated lists ranks held by more than one template.
	Duplicated []int
	// OutOfRange lists orders outside 0..n-1.
	OutOfRange []int
}

func (e *DensityError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing %v", e.Missing))
	}
	if len(e.Duplicated) > 0 {
		parts = append(parts, fmt.Sprintf("duplicated %v", e.Duplicated))
	}
	if len(e.OutOfRange) > 0 {
		parts = append(parts, fmt.Sprintf("out of range %v", e.OutOfRange))
	}
	return "template orders not dense: " + strings.Join(parts, ", ")
}

// Verify checks that template orders are exactly 0..n-1 and returns a
// *DensityError describing any deviation.
func (r *Renumberer) Verify(ctx context.Context) error {
	all, err := r.st.ListTemplates(ctx)
	if err != nil {
		return err
	}
	return CheckDensity(all)
}

// CheckDensity is Verify on an in-memory list.
func CheckDensity(templates []*models.Template) error {
	n := len(templates)
	seen := make(map[int]int, n)
	var derr DensityError
	for _, tpl := range templates {
		seen[tpl.Order]++
	}
	for order, c := range seen {
		if order < 0 || order >= n {
			derr.OutOfRange = append(derr.OutOfRange, order)
		} else if c > 1 {
			derr.Duplicated = append(derr.Duplicated, order)
		}
	}
	for i := range n {
		if seen[i] == 0 {
			derr.Missing = append(derr.Missing, i)
		}
	}
	if len(derr.Missing)+len(derr.Duplicated)+len(derr.OutOfRange) == 0 {
		return nil
	}
	slices.Sort(derr.Duplicated)
	slices.Sort(derr.OutOfRange)
	return &derr
}
