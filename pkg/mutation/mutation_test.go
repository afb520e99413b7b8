package mutation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft/pagecraft/pkg/events"
	"github.com/pagecraft/pagecraft/pkg/metrics"
	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/ordering"
	"github.com/pagecraft/pagecraft/pkg/registry"
	"github.com/pagecraft/pagecraft/pkg/slots"
	"github.com/pagecraft/pagecraft/pkg/store"
	"github.com/pagecraft/pagecraft/pkg/store/badger"
	"github.com/pagecraft/pagecraft/pkg/tree"
)

var clock = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

type fixture struct {
	e      *Engine
	st     store.Store
	events *recorder
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := badger.Open(badger.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	reg, err := registry.Default()
	require.NoError(t, err)

	rec := &recorder{}
	e, err := New(Deps{
		Store:    st,
		Registry: reg,
		Clock:    func() time.Time { return clock },
		Events:   rec,
	})
	require.NoError(t, err)
	return &fixture{e: e, st: st, events: rec, ctx: context.Background()}
}

func (f *fixture) block(t *testing.T, typ string, children map[string][]models.ID) models.ID {
	t.Helper()
	id, err := f.st.Add(f.ctx, models.NewBlock(typ, models.Props{"name": typ}, children))
	require.NoError(t, err)
	return id
}

func (f *fixture) page(t *testing.T, slug string, root ...models.ID) *models.Node {
	t.Helper()
	p := models.NewPage(slug, slug)
	p.Slots[models.RootSlot] = append([]models.ID{}, root...)
	_, err := f.st.Add(f.ctx, p)
	require.NoError(t, err)
	return p
}

func (f *fixture) get(t *testing.T, ref models.Ref) *models.Node {
	t.Helper()
	n, err := f.st.Get(f.ctx, ref)
	require.NoError(t, err)
	return n
}

func (f *fixture) rootSlot(t *testing.T, page *models.Node) []models.ID {
	t.Helper()
	return f.get(t, page.Ref()).Slots[models.RootSlot]
}

func TestNewRequiresStoreAndRegistry(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)

	st, err := badger.Open(badger.InMemoryConfig())
	require.NoError(t, err)
	defer st.Close()
	_, err = New(Deps{Store: st})
	require.Error(t, err)
}

func TestDeleteSplicesAndRemovesSubtree(t *testing.T) {
	f := newFixture(t)
	b1 := f.block(t, "text", nil)
	leaf := f.block(t, "text", nil)
	b2 := f.block(t, "section", models.Slots{"content": {leaf}})
	b3 := f.block(t, "text", nil)
	page := f.page(t, "home", b1, b2, b3)

	err := f.e.Delete(f.ctx, DeleteRequest{Root: page.Ref(), Target: b2, Parent: page.Ref(), Slot: models.RootSlot, Index: 1})
	require.NoError(t, err)

	assert.Equal(t, []models.ID{b1, b3}, f.rootSlot(t, page))
	for _, id := range []models.ID{b2, leaf} {
		_, err := f.st.Get(f.ctx, models.BlockRef(id))
		assert.ErrorIs(t, err, models.ErrNotFound, "block %s", id)
	}
	assert.True(t, f.get(t, page.Ref()).UpdatedAt.Equal(clock))
	assert.Equal(t, []events.Kind{events.BlockDeleted}, f.events.kinds())
}

func TestDeleteRejectsStaleIndex(t *testing.T) {
	f := newFixture(t)
	b1 := f.block(t, "text", nil)
	b2 := f.block(t, "text", nil)
	b3 := f.block(t, "text", nil)
	page := f.page(t, "home", b1, b2, b3)

	err := f.e.Delete(f.ctx, DeleteRequest{Root: page.Ref(), Target: b3, Parent: page.Ref(), Slot: models.RootSlot, Index: 1})
	require.ErrorIs(t, err, models.ErrConstraintViolation)

	assert.Equal(t, []models.ID{b1, b2, b3}, f.rootSlot(t, page))
	f.get(t, models.BlockRef(b3))
	nodes, err := tree.Collect(f.ctx, f.st, page.Ref())
	require.NoError(t, err)
	assert.Len(t, nodes, 4)
	assert.False(t, f.get(t, page.Ref()).UpdatedAt.Equal(clock))
	assert.Empty(t, f.events.kinds())
}

func TestDeleteTargetAbsentFromSlot(t *testing.T) {
	f := newFixture(t)
	b1 := f.block(t, "text", nil)
	stray := f.block(t, "text", nil)
	page := f.page(t, "home", b1)

	err := f.e.Delete(f.ctx, DeleteRequest{Root: page.Ref(), Target: stray, Parent: page.Ref(), Slot: models.RootSlot, Index: 0})
	require.NoError(t, err)
	assert.Equal(t, []models.ID{b1}, f.rootSlot(t, page))
	_, err = f.st.Get(f.ctx, models.BlockRef(stray))
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = tree.Collect(f.ctx, f.st, page.Ref())
	require.NoError(t, err)
}

func TestDeleteMissingTarget(t *testing.T) {
	f := newFixture(t)
	page := f.page(t, "home")
	err := f.e.Delete(f.ctx, DeleteRequest{Root: page.Ref(), Target: 99, Parent: page.Ref(), Slot: models.RootSlot})
	require.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, f.events.kinds())
}

func TestReorder(t *testing.T) {
	f := newFixture(t)
	b1 := f.block(t, "text", nil)
	b2 := f.block(t, "text", nil)
	b3 := f.block(t, "text", nil)
	page := f.page(t, "home", b1, b2, b3)

	err := f.e.Reorder(f.ctx, ReorderRequest{Root: page.Ref(), Parent: page.Ref(), Slot: models.RootSlot, From: 0, To: 2, Edge: slots.Bottom})
	require.NoError(t, err)
	assert.Equal(t, []models.ID{b2, b3, b1}, f.rootSlot(t, page))

	err = f.e.Reorder(f.ctx, ReorderRequest{Root: page.Ref(), Parent: page.Ref(), Slot: models.RootSlot, From: 2, To: 0, Edge: slots.Top})
	require.NoError(t, err)
	assert.Equal(t, []models.ID{b1, b2, b3}, f.rootSlot(t, page))

	err = f.e.Reorder(f.ctx, ReorderRequest{Root: page.Ref(), Parent: page.Ref(), Slot: models.RootSlot, From: 5, To: 0, Edge: slots.Top})
	var ierr *slots.IndexError
	require.ErrorAs(t, err, &ierr)
}

func TestAddAppliesDefaults(t *testing.T) {
	f := newFixture(t)
	first := f.block(t, "text", nil)
	page := f.page(t, "home", first)

	id, err := f.e.Add(f.ctx, AddRequest{
		Root:   page.Ref(),
		Parent: page.Ref(),
		Slot:   models.RootSlot,
		Type:   "section",
		Props:  models.Props{"name": "Hero"},
		At:     &slots.InsertionPoint{Index: 0, Edge: slots.Top},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.ID{id, first}, f.rootSlot(t, page))

	n := f.get(t, models.BlockRef(id))
	assert.Equal(t, "section", n.Type)
	assert.Equal(t, "Hero", n.Props["name"])
	assert.Equal(t, "full", n.Props["width"])
	assert.Equal(t, "#ffffff", n.Props["color"])
	assert.NotContains(t, n.Props, "layout")
	require.Contains(t, n.Slots, "content")
	assert.Empty(t, n.Slots["content"])
	assert.True(t, n.CreatedAt.Equal(clock))
}

func TestAddChangesSlotLengthByOne(t *testing.T) {
	f := newFixture(t)
	page := f.page(t, "home", f.block(t, "text", nil), f.block(t, "text", nil))

	for i, at := range []*slots.InsertionPoint{nil, {Index: 0, Edge: slots.Bottom}, {Index: 99, Edge: slots.Top}} {
		before := len(f.rootSlot(t, page))
		id, err := f.e.Add(f.ctx, AddRequest{Root: page.Ref(), Parent: page.Ref(), Slot: models.RootSlot, Type: "text", At: at})
		require.NoError(t, err)
		ids := f.rootSlot(t, page)
		assert.Len(t, ids, before+1, "case %d", i)
		assert.Contains(t, ids, id)

		idx := slots.IndexOf(ids, id)
		require.NoError(t, f.e.Delete(f.ctx, DeleteRequest{Root: page.Ref(), Target: id, Parent: page.Ref(), Slot: models.RootSlot, Index: idx}))
		assert.Len(t, f.rootSlot(t, page), before, "case %d", i)
	}
}

func TestAddRejects(t *testing.T) {
	f := newFixture(t)
	page := f.page(t, "home")

	_, err := f.e.Add(f.ctx, AddRequest{Root: page.Ref(), Parent: page.Ref(), Slot: models.RootSlot, Type: "carousel"})
	require.ErrorIs(t, err, registry.ErrUnknownType)

	_, err = f.e.Add(f.ctx, AddRequest{Root: page.Ref(), Parent: page.Ref(), Type: "text"})
	require.ErrorIs(t, err, models.ErrConstraintViolation)

	_, err = f.e.Add(f.ctx, AddRequest{Parent: models.PageRef(42), Slot: models.RootSlot, Type: "text"})
	require.ErrorIs(t, err, models.ErrNotFound)

	blocks, err := f.st.GetMany(f.ctx, models.CollectionBlocks, store.SortBy{})
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestReparent(t *testing.T) {
	f := newFixture(t)
	leaf := f.block(t, "text", nil)
	section := f.block(t, "section", models.Slots{"content": {leaf}})
	page := f.page(t, "home", section)

	err := f.e.Move(f.ctx, MoveRequest{
		Root:   page.Ref(),
		Source: Location{Parent: models.BlockRef(section), Slot: "content", Index: 0},
		Dest:   Destination{Parent: page.Ref(), Slot: models.RootSlot, At: &slots.InsertionPoint{Index: 0, Edge: slots.Bottom}},
	})
	require.NoError(t, err)

	assert.Equal(t, []models.ID{section, leaf}, f.rootSlot(t, page))
	assert.Empty(t, f.get(t, models.BlockRef(section)).Slots["content"])
	assert.True(t, f.get(t, models.BlockRef(section)).UpdatedAt.Equal(clock))
}

func TestReparentBetweenPagesStampsBoth(t *testing.T) {
	f := newFixture(t)
	leaf := f.block(t, "text", nil)
	from := f.block(t, "section", models.Slots{"content": {leaf}})
	to := f.block(t, "section", models.Slots{"content": {}})
	home := f.page(t, "home", from)
	about := f.page(t, "about", to)

	published := f.get(t, about.Ref()).Clone()
	published.Page.Status = models.StatusPublished
	_, err := f.st.Update(f.ctx, published)
	require.NoError(t, err)

	err = f.e.Move(f.ctx, MoveRequest{
		Source: Location{Root: home.Ref(), Parent: models.BlockRef(from), Slot: "content", Index: 0},
		Dest:   Destination{Root: about.Ref(), Parent: models.BlockRef(to), Slot: "content"},
	})
	require.NoError(t, err)

	assert.Empty(t, f.get(t, models.BlockRef(from)).Slots["content"])
	assert.Equal(t, []models.ID{leaf}, f.get(t, models.BlockRef(to)).Slots["content"])
	for _, p := range []*models.Node{home, about} {
		assert.True(t, f.get(t, p.Ref()).UpdatedAt.Equal(clock), "page %s", p.Page.Slug)
	}
	assert.Equal(t, models.StatusChanged, f.get(t, about.Ref()).Page.Status)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, about.Ref(), f.events.events[0].Root)
}

func TestMoveRequestRoots(t *testing.T) {
	home, about := models.PageRef(1), models.PageRef(2)
	src, dst := MoveRequest{Root: home}.Roots()
	assert.Equal(t, home, src)
	assert.Equal(t, home, dst)

	src, dst = MoveRequest{Root: home, Dest: Destination{Root: about}}.Roots()
	assert.Equal(t, home, src)
	assert.Equal(t, about, dst)
}

func TestMoveIntoOwnSubtree(t *testing.T) {
	f := newFixture(t)
	inner := f.block(t, "columns", nil)
	section := f.block(t, "section", models.Slots{"content": {inner}})
	page := f.page(t, "home", section)

	err := f.e.Move(f.ctx, MoveRequest{
		Root:   page.Ref(),
		Source: Location{Parent: page.Ref(), Slot: models.RootSlot, Index: 0},
		Dest:   Destination{Parent: models.BlockRef(inner), Slot: "left"},
	})
	require.ErrorIs(t, err, ErrCycle)

	err = f.e.Move(f.ctx, MoveRequest{
		Root:   page.Ref(),
		Source: Location{Parent: page.Ref(), Slot: models.RootSlot, Index: 0},
		Dest:   Destination{Parent: models.BlockRef(section), Slot: "content"},
	})
	require.ErrorIs(t, err, ErrCycle)
	assert.Equal(t, []models.ID{section}, f.rootSlot(t, page))
}

func TestMoveWithinSlot(t *testing.T) {
	f := newFixture(t)
	b1 := f.block(t, "text", nil)
	b2 := f.block(t, "text", nil)
	b3 := f.block(t, "text", nil)
	page := f.page(t, "home", b1, b2, b3)

	err := f.e.Move(f.ctx, MoveRequest{
		Root:   page.Ref(),
		Source: Location{Parent: page.Ref(), Slot: models.RootSlot, Index: 0},
		Dest:   Destination{Parent: page.Ref(), Slot: models.RootSlot},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.ID{b2, b3, b1}, f.rootSlot(t, page))
}

func TestMoveAcrossSlotsOfOneParent(t *testing.T) {
	f := newFixture(t)
	a := f.block(t, "text", nil)
	b := f.block(t, "text", nil)
	cols := f.block(t, "columns", models.Slots{"left": {a, b}, "right": {}})
	page := f.page(t, "home", cols)

	err := f.e.Move(f.ctx, MoveRequest{
		Root:   page.Ref(),
		Source: Location{Parent: models.BlockRef(cols), Slot: "left", Index: 1},
		Dest:   Destination{Parent: models.BlockRef(cols), Slot: "right"},
	})
	require.NoError(t, err)
	n := f.get(t, models.BlockRef(cols))
	assert.Equal(t, []models.ID{a}, n.Slots["left"])
	assert.Equal(t, []models.ID{b}, n.Slots["right"])
}

func TestCopy(t *testing.T) {
	f := newFixture(t)
	leaf := f.block(t, "text", nil)
	section := f.block(t, "section", models.Slots{"content": {leaf}})
	tail := f.block(t, "text", nil)
	page := f.page(t, "home", section, tail)

	id, err := f.e.Copy(f.ctx, CopyRequest{Root: page.Ref(), Parent: page.Ref(), Slot: models.RootSlot, Index: 0})
	require.NoError(t, err)
	assert.Equal(t, []models.ID{section, id, tail}, f.rootSlot(t, page))

	clone := f.get(t, models.BlockRef(id))
	assert.Equal(t, "section", clone.Type)
	require.Len(t, clone.Slots["content"], 1)
	assert.NotEqual(t, leaf, clone.Slots["content"][0])
	assert.Equal(t, []models.ID{leaf}, f.get(t, models.BlockRef(section)).Slots["content"])
}

func TestCopyMany(t *testing.T) {
	f := newFixture(t)
	b1 := f.block(t, "text", nil)
	b2 := f.block(t, "text", nil)
	b3 := f.block(t, "text", nil)
	page := f.page(t, "home", b1, b2, b3)

	ids, err := f.e.CopyMany(f.ctx, CopyManyRequest{Root: page.Ref(), Parent: page.Ref(), Slot: models.RootSlot, Indices: []int{2, 0, 0}})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, []models.ID{b1, ids[0], b2, b3, ids[1]}, f.rootSlot(t, page))

	_, err = f.e.CopyMany(f.ctx, CopyManyRequest{Root: page.Ref(), Parent: page.Ref(), Slot: models.RootSlot, Indices: []int{9}})
	var ierr *slots.IndexError
	require.ErrorAs(t, err, &ierr)
}

func TestUpdatePropsAndRename(t *testing.T) {
	f := newFixture(t)
	b := f.block(t, "heading", nil)
	page := f.page(t, "home", b)

	require.NoError(t, f.e.UpdateProps(f.ctx, UpdatePropsRequest{Root: page.Ref(), Target: models.BlockRef(b), Props: models.Props{"level": 3}}))
	require.NoError(t, f.e.Rename(f.ctx, RenameRequest{Root: page.Ref(), Target: models.BlockRef(b), Name: "Title"}))
	require.NoError(t, f.e.Rename(f.ctx, RenameRequest{Target: page.Ref(), Name: "Start"}))

	n := f.get(t, models.BlockRef(b))
	assert.Len(t, n.Props, 2)
	assert.Equal(t, "Title", n.Props["name"])
	assert.EqualValues(t, 3, n.Props["level"])
	assert.Equal(t, "Start", f.get(t, page.Ref()).Page.Title)
	assert.Equal(t, []events.Kind{events.BlockUpdated, events.BlockUpdated, events.BlockUpdated}, f.events.kinds())
}

func TestPageLifecycle(t *testing.T) {
	f := newFixture(t)

	p1, err := f.e.CreatePage(f.ctx, CreatePageRequest{Title: "About Us"})
	require.NoError(t, err)
	assert.Equal(t, "about-us", p1.Page.Slug)
	assert.Equal(t, models.StatusDraft, p1.Page.Status)

	p2, err := f.e.CreatePage(f.ctx, CreatePageRequest{Title: "About us!"})
	require.NoError(t, err)
	assert.Equal(t, "about-us-2", p2.Page.Slug)

	_, err = f.e.CreatePage(f.ctx, CreatePageRequest{Title: "Clash", Slug: "about-us"})
	require.ErrorIs(t, err, models.ErrConstraintViolation)
	_, err = f.e.CreatePage(f.ctx, CreatePageRequest{Title: "Bad", Slug: "Not A Slug"})
	require.ErrorIs(t, err, models.ErrConstraintViolation)

	published, err := f.e.PublishPage(f.ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, published.Page.Status)
	require.NotNil(t, published.Page.PublishedAt)
	assert.True(t, published.Page.PublishedAt.Equal(clock))

	title := "About"
	updated, err := f.e.UpdatePage(f.ctx, UpdatePageRequest{Page: p1.ID, Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "About", updated.Page.Title)
	assert.Equal(t, models.StatusChanged, updated.Page.Status)

	_, err = f.e.Add(f.ctx, AddRequest{Root: p2.Ref(), Parent: p2.Ref(), Slot: models.RootSlot, Type: "text"})
	require.NoError(t, err)
	_, err = f.e.PublishPage(f.ctx, p2.ID)
	require.NoError(t, err)
	_, err = f.e.Add(f.ctx, AddRequest{Root: p2.Ref(), Parent: p2.Ref(), Slot: models.RootSlot, Type: "text"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusChanged, f.get(t, p2.Ref()).Page.Status, "structural edits mark a published page changed")

	unpublished, err := f.e.UnpublishPage(f.ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnpublished, unpublished.Page.Status)

	assert.Equal(t, []events.Kind{
		events.PageCreated, events.PageCreated,
		events.PagePublished, events.PageUpdated,
		events.BlockAdded, events.PagePublished, events.BlockAdded,
		events.PageUnpublished,
	}, f.events.kinds())
}

func TestDeletePageCascades(t *testing.T) {
	f := newFixture(t)
	leaf := f.block(t, "text", nil)
	section := f.block(t, "section", models.Slots{"content": {leaf}})
	keep := f.block(t, "text", nil)
	page := f.page(t, "home", section)

	require.NoError(t, f.e.DeletePage(f.ctx, page.ID))

	_, err := f.st.Get(f.ctx, page.Ref())
	assert.ErrorIs(t, err, models.ErrNotFound)
	blocks, err := f.st.GetMany(f.ctx, models.CollectionBlocks, store.SortBy{})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, keep, blocks[0].ID)

	require.ErrorIs(t, f.e.DeletePage(f.ctx, page.ID), models.ErrNotFound)
}

func TestDuplicatePage(t *testing.T) {
	f := newFixture(t)
	var ids []models.ID
	for range 4 {
		ids = append(ids, f.block(t, "text", nil))
	}
	section := f.block(t, "section", models.Slots{"content": ids})
	page := f.page(t, "landing", section)
	_, err := f.e.PublishPage(f.ctx, page.ID)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	f.e.metrics = metrics.New(reg)

	clone, err := f.e.DuplicatePage(f.ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, "landing-2", clone.Page.Slug)
	assert.Equal(t, "landing (copy)", clone.Page.Title)
	assert.Equal(t, models.StatusDraft, clone.Page.Status)
	assert.Nil(t, clone.Page.PublishedAt)

	blocks, err := f.st.GetMany(f.ctx, models.CollectionBlocks, store.SortBy{})
	require.NoError(t, err)
	assert.Len(t, blocks, 10)
	assert.Equal(t, float64(6), testutil.ToFloat64(f.e.metrics.NodesCloned))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.e.metrics.Operations.WithLabelValues("duplicate_page", "ok")))
}

func TestTemplates(t *testing.T) {
	f := newFixture(t)
	heading := f.block(t, "heading", nil)
	section := f.block(t, "section", models.Slots{"content": {heading}})
	page := f.page(t, "home", section)

	var saved []*models.Template
	for _, name := range []string{"a", "b", "c"} {
		tpl, err := f.e.SaveTemplate(f.ctx, SaveTemplateRequest{Name: name, Source: models.BlockRef(section)})
		require.NoError(t, err)
		saved = append(saved, tpl)
	}
	first := 0
	d, err := f.e.SaveTemplate(f.ctx, SaveTemplateRequest{Name: "d", Source: models.BlockRef(heading), Rank: &first})
	require.NoError(t, err)
	assert.Equal(t, 0, d.Order)
	assert.Equal(t, []string{"d", "a", "b", "c"}, templateNames(t, f))
	require.NoError(t, f.e.Ranks().Verify(f.ctx))

	_, err = f.e.SaveTemplate(f.ctx, SaveTemplateRequest{Name: "p", Source: page.Ref()})
	require.ErrorIs(t, err, models.ErrConstraintViolation)

	rank, err := f.e.ReorderTemplate(f.ctx, ReorderTemplateRequest{From: 0, To: 3, Edge: slots.Bottom})
	require.NoError(t, err)
	assert.Equal(t, 3, rank)
	assert.Equal(t, []string{"a", "b", "c", "d"}, templateNames(t, f))

	renamed, err := f.e.RenameTemplate(f.ctx, saved[1].ID, "hero")
	require.NoError(t, err)
	assert.Equal(t, "hero", renamed.Name)

	id, err := f.e.ApplyTemplate(f.ctx, ApplyTemplateRequest{Root: page.Ref(), Template: saved[0].ID, Parent: page.Ref(), Slot: models.RootSlot})
	require.NoError(t, err)
	assert.Equal(t, []models.ID{section, id}, f.rootSlot(t, page))
	assert.NotEqual(t, saved[0].Root(), id)

	require.NoError(t, f.e.DeleteTemplates(f.ctx, []models.ID{saved[0].ID, saved[2].ID, saved[0].ID}))
	assert.Equal(t, []string{"hero", "d"}, templateNames(t, f))
	require.NoError(t, f.e.Ranks().Verify(f.ctx))
	_, err = f.st.Get(f.ctx, models.BlockRef(saved[0].Root()))
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, f.e.DeleteTemplate(f.ctx, saved[1].ID))
	assert.Equal(t, []string{"d"}, templateNames(t, f))
	require.NoError(t, f.e.Ranks().Verify(f.ctx))

	// The applied copy outlives its template.
	assert.Equal(t, "section", f.get(t, models.BlockRef(id)).Type)
}

func TestApplyMalformedTemplate(t *testing.T) {
	f := newFixture(t)
	page := f.page(t, "home")
	tpl := &models.Template{Name: "empty", Slots: models.Slots{models.RootSlot: {}}}
	require.NoError(t, ordering.New(f.st, nil).Append(f.ctx, tpl))

	_, err := f.e.ApplyTemplate(f.ctx, ApplyTemplateRequest{Root: page.Ref(), Template: tpl.ID, Parent: page.Ref(), Slot: models.RootSlot})
	require.ErrorIs(t, err, models.ErrConstraintViolation)
}

func templateNames(t *testing.T, f *fixture) []string {
	t.Helper()
	tpls, err := f.e.ListTemplates(f.ctx)
	require.NoError(t, err)
	names := make([]string, len(tpls))
	for i, tpl := range tpls {
		names[i] = tpl.Name
	}
	return names
}

func TestFailedOperationsAreCounted(t *testing.T) {
	f := newFixture(t)
	f.e.metrics = metrics.New(prometheus.NewRegistry())

	err := f.e.Delete(f.ctx, DeleteRequest{Target: 1, Parent: models.PageRef(1), Slot: models.RootSlot})
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.e.metrics.Operations.WithLabelValues("delete", "error")))
	assert.Empty(t, f.events.kinds())
}
