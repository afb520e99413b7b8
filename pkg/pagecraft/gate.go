package pagecraft

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/pagecraft/pagecraft/pkg/models"
)

// templateRanks is the gate key for operations that renumber templates.
var templateRanks = models.Ref{Store: models.CollectionTemplates}

// Gate serialises edits per tree. Requests for different roots run in
// parallel; requests for the same root queue in arrival order.
type Gate struct {
	mu    sync.Mutex
	roots map[models.Ref]*gateEntry
}

type gateEntry struct {
	sem   *semaphore.Weighted
	users int
}

func NewGate() *Gate {
	return &Gate{roots: make(map[models.Ref]*gateEntry)}
}

// Acquire blocks until the caller holds root or ctx is done. The returned
// function releases it and must be called exactly once.
func (g *Gate) Acquire(ctx context.Context, root models.Ref) (release func(), err error) {
	g.mu.Lock()
	e, ok := g.roots[root]
	if !ok {
		e = &gateEntry{sem: semaphore.NewWeighted(1)}
		g.roots[root] = e
	}
	e.users++
	g.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		g.leave(root, e)
		return nil, err
	}
	return func() {
		e.sem.Release(1)
		g.leave(root, e)
	}, nil
}

// AcquireAll holds every distinct root in roots. Roots are taken in a fixed
// order, so two callers asking for the same pair cannot deadlock.
func (g *Gate) AcquireAll(ctx context.Context, roots ...models.Ref) (release func(), err error) {
	roots = slices.Clone(roots)
	slices.SortFunc(roots, func(a, b models.Ref) int {
		return cmp.Or(cmp.Compare(a.Store, b.Store), cmp.Compare(a.ID, b.ID))
	})
	roots = slices.Compact(roots)

	held := make([]func(), 0, len(roots))
	release = func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, root := range roots {
		r, err := g.Acquire(ctx, root)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, r)
	}
	return release, nil
}

func (g *Gate) leave(root models.Ref, e *gateEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e.users--
	if e.users == 0 {
		delete(g.roots, root)
	}
}

// Len reports how many roots are held or waited on.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.roots)
}
