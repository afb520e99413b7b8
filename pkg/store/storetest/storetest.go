// Package storetest is a conformance suite for store.Store implementations.
//
// Backend packages call [Run] from their own tests with a factory returning
// a fresh, migrated, empty store:
//
//	func TestConformance(t *testing.T) {
//		storetest.Run(t, func(t *testing.T) store.Store {
//			st, err := Open(InMemoryConfig())
//			require.NoError(t, err)
//			t.Cleanup(func() { st.Close() })
//			return st
//		})
//	}
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
)

// Factory returns a fresh empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("AddGet", func(t *testing.T) { testAddGet(t, open(t)) })
	t.Run("IDsIncrease", func(t *testing.T) { testIDsIncrease(t, open(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, open(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, open(t)) })
	t.Run("UpdateMany", func(t *testing.T) { testUpdateMany(t, open(t)) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, open(t)) })
	t.Run("GetMany", func(t *testing.T) { testGetMany(t, open(t)) })
	t.Run("SlugUnique", func(t *testing.T) { testSlugUnique(t, open(t)) })
	t.Run("Templates", func(t *testing.T) { testTemplates(t, open(t)) })
	t.Run("TemplateCursor", func(t *testing.T) { testTemplateCursor(t, open(t)) })
}

func ts(sec int) time.Time {
	return time.Date(2024, 3, 1, 12, 0, sec, 0, time.UTC)
}

func testAddGet(t *testing.T, st store.Store) {
	ctx := context.Background()

	block := models.NewBlock("text", models.Props{"text": "hello", "level": float64(2)}, models.Slots{"items": {}})
	block.CreatedAt, block.UpdatedAt = ts(1), ts(1)
	id, err := st.Add(ctx, block)
	require.NoError(t, err)
	require.False(t, id.IsZero())
	assert.Equal(t, id, block.ID)

	got, err := st.Get(ctx, models.BlockRef(id))
	require.NoError(t, err)
	assert.Equal(t, models.CollectionBlocks, got.Store)
	assert.Equal(t, "text", got.Type)
	assert.Equal(t, "hello", got.Props["text"])
	assert.EqualValues(t, 2, got.Props["level"])
	assert.Contains(t, got.Slots, "items")
	assert.Nil(t, got.Page)
	assert.True(t, got.CreatedAt.Equal(ts(1)))

	page := models.NewPage("home", "Home")
	page.Slots[models.RootSlot] = []models.ID{id}
	pid, err := st.Add(ctx, page)
	require.NoError(t, err)

	gotPage, err := st.Get(ctx, models.PageRef(pid))
	require.NoError(t, err)
	require.NotNil(t, gotPage.Page)
	assert.Equal(t, "home", gotPage.Page.Slug)
	assert.Equal(t, "Home", gotPage.Page.Title)
	assert.Equal(t, models.StatusDraft, gotPage.Page.Status)
	assert.Equal(t, []models.ID{id}, gotPage.Slots[models.RootSlot])

	bySlug, err := st.FindPageBySlug(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, pid, bySlug.ID)
}

func testIDsIncrease(t *testing.T, st store.Store) {
	ctx := context.Background()
	var last models.ID
	for range 5 {
		id, err := st.Add(ctx, models.NewBlock("text", nil, nil))
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func testNotFound(t *testing.T, st store.Store) {
	ctx := context.Background()

	_, err := st.Get(ctx, models.BlockRef(4242))
	require.ErrorIs(t, err, models.ErrNotFound)
	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, models.BlockRef(4242), nf.Ref)

	missing := models.NewBlock("text", nil, nil)
	missing.ID = 4242
	_, err = st.Update(ctx, missing)
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = st.FindPageBySlug(ctx, "nope")
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = st.GetTemplate(ctx, 4242)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func testUpdate(t *testing.T, st store.Store) {
	ctx := context.Background()
	block := models.NewBlock("text", models.Props{"text": "a"}, nil)
	id, err := st.Add(ctx, block)
	require.NoError(t, err)

	block.Props["text"] = "b"
	block.Slots["children"] = []models.ID{7, 8}
	block.UpdatedAt = ts(5)
	_, err = st.Update(ctx, block)
	require.NoError(t, err)

	got, err := st.Get(ctx, models.BlockRef(id))
	require.NoError(t, err)
	assert.Equal(t, "b", got.Props["text"])
	assert.Equal(t, []models.ID{7, 8}, got.Slots["children"])
	assert.True(t, got.UpdatedAt.Equal(ts(5)))
}

func testUpdateMany(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := models.NewBlock("a", nil, nil)
	b := models.NewBlock("b", nil, nil)
	_, err := st.Add(ctx, a)
	require.NoError(t, err)
	_, err = st.Add(ctx, b)
	require.NoError(t, err)

	a.Props["x"] = "1"
	b.Props["x"] = "2"
	ids, err := st.UpdateMany(ctx, []*models.Node{a, b})
	require.NoError(t, err)
	assert.Equal(t, []models.ID{a.ID, b.ID}, ids)

	for _, n := range []*models.Node{a, b} {
		got, err := st.Get(ctx, n.Ref())
		require.NoError(t, err)
		assert.Equal(t, n.Props["x"], got.Props["x"])
	}
}

func testRemove(t *testing.T, st store.Store) {
	ctx := context.Background()
	var refs []models.Ref
	for range 3 {
		n := models.NewBlock("text", nil, nil)
		_, err := st.Add(ctx, n)
		require.NoError(t, err)
		refs = append(refs, n.Ref())
	}

	require.NoError(t, st.Remove(ctx, refs[0]))
	_, err := st.Get(ctx, refs[0])
	require.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, st.Remove(ctx, refs[0]), "removing an absent record succeeds")

	require.NoError(t, st.RemoveMany(ctx, refs[1:]))
	all, err := st.GetMany(ctx, models.CollectionBlocks, store.SortBy{})
	require.NoError(t, err)
	assert.Empty(t, all)

	page := models.NewPage("gone", "Gone")
	_, err = st.Add(ctx, page)
	require.NoError(t, err)
	require.NoError(t, st.Remove(ctx, page.Ref()))
	_, err = st.FindPageBySlug(ctx, "gone")
	require.ErrorIs(t, err, models.ErrNotFound)

	again := models.NewPage("gone", "Again")
	_, err = st.Add(ctx, again)
	require.NoError(t, err, "slug is free again after the page is removed")
}

func testGetMany(t *testing.T, st store.Store) {
	ctx := context.Background()
	for i, sec := range []int{30, 10, 20} {
		n := models.NewBlock("text", models.Props{"i": float64(i)}, nil)
		n.CreatedAt, n.UpdatedAt = ts(sec), ts(sec)
		_, err := st.Add(ctx, n)
		require.NoError(t, err)
	}

	byID, err := st.GetMany(ctx, models.CollectionBlocks, store.SortBy{Field: store.SortByID})
	require.NoError(t, err)
	require.Len(t, byID, 3)
	assert.Less(t, byID[0].ID, byID[1].ID)
	assert.Less(t, byID[1].ID, byID[2].ID)

	byCreated, err := st.GetMany(ctx, models.CollectionBlocks, store.SortBy{Field: store.SortByCreatedAt, Direction: store.Descending})
	require.NoError(t, err)
	require.Len(t, byCreated, 3)
	assert.True(t, byCreated[0].CreatedAt.Equal(ts(30)))
	assert.True(t, byCreated[2].CreatedAt.Equal(ts(10)))

	pages, err := st.GetMany(ctx, models.CollectionPages, store.SortBy{})
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func testSlugUnique(t *testing.T, st store.Store) {
	ctx := context.Background()
	_, err := st.Add(ctx, models.NewPage("about", "About"))
	require.NoError(t, err)

	_, err = st.Add(ctx, models.NewPage("about", "Other"))
	require.ErrorIs(t, err, models.ErrConstraintViolation)

	other := models.NewPage("contact", "Contact")
	_, err = st.Add(ctx, other)
	require.NoError(t, err)

	other.Page.Slug = "about"
	_, err = st.Update(ctx, other)
	require.ErrorIs(t, err, models.ErrConstraintViolation)

	other.Page.Slug = "contact-us"
	_, err = st.Update(ctx, other)
	require.NoError(t, err)

	_, err = st.FindPageBySlug(ctx, "contact")
	require.ErrorIs(t, err, models.ErrNotFound, "old slug is released on update")
	_, err = st.Add(ctx, models.NewPage("contact", "Contact again"))
	require.NoError(t, err)
}

func addTemplates(t *testing.T, st store.Store, n int) []*models.Template {
	t.Helper()
	ctx := context.Background()
	var out []*models.Template
	for i := range n {
		tpl := models.NewTemplate("tpl", models.ID(100+i))
		tpl.Order = i
		_, err := st.AddTemplate(ctx, tpl)
		require.NoError(t, err)
		out = append(out, tpl)
	}
	return out
}

func testTemplates(t *testing.T, st store.Store) {
	ctx := context.Background()

	// Insert out of rank order to check ListTemplates sorts by Order.
	for _, order := range []int{2, 0, 1} {
		tpl := models.NewTemplate("t", models.ID(10+order))
		tpl.Order = order
		_, err := st.AddTemplate(ctx, tpl)
		require.NoError(t, err)
	}

	list, err := st.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, tpl := range list {
		assert.Equal(t, i, tpl.Order)
		assert.Equal(t, models.ID(10+i), tpl.Root())
	}

	first := list[0]
	first.Name = "renamed"
	_, err = st.UpdateTemplate(ctx, first)
	require.NoError(t, err)
	got, err := st.GetTemplate(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	require.NoError(t, st.RemoveTemplate(ctx, first.ID))
	_, err = st.GetTemplate(ctx, first.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, st.RemoveTemplate(ctx, first.ID))
}

func drain(t *testing.T, st store.Store, rng store.OrderRange, dir store.Direction, bump int) []int {
	t.Helper()
	ctx := context.Background()
	cur, err := st.OpenTemplateCursor(ctx, rng, dir)
	require.NoError(t, err)
	defer cur.Close()

	var seen []int
	for cur.Next(ctx) {
		tpl := cur.Template()
		seen = append(seen, tpl.Order)
		if bump != 0 {
			tpl.Order += bump
			require.NoError(t, cur.Update(ctx, tpl))
		}
	}
	require.NoError(t, cur.Err())
	return seen
}

func testTemplateCursor(t *testing.T, st store.Store) {
	addTemplates(t, st, 5)

	assert.Equal(t, []int{1, 2, 3}, drain(t, st, store.Between(1, 3), store.Ascending, 0))
	assert.Equal(t, []int{4, 3, 2}, drain(t, st, store.From(2), store.Descending, 0))
	assert.Empty(t, drain(t, st, store.From(9), store.Ascending, 0))

	// Incrementing while scanning upwards must not revisit shifted records.
	assert.Equal(t, []int{2, 3, 4}, drain(t, st, store.From(2), store.Ascending, 1))

	list, err := st.ListTemplates(context.Background())
	require.NoError(t, err)
	var orders []int
	for _, tpl := range list {
		orders = append(orders, tpl.Order)
	}
	assert.Equal(t, []int{0, 1, 3, 4, 5}, orders)
}
