package integrity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
	"github.com/pagecraft/pagecraft/pkg/store/badger"
)

func openStore(t *testing.T) store.Store {
	t.Helper()
	st, err := badger.Open(badger.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func add(t *testing.T, st store.Store, n *models.Node) models.ID {
	t.Helper()
	id, err := st.Add(context.Background(), n)
	require.NoError(t, err)
	return id
}

func TestCheckClean(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	leaf := add(t, st, models.NewBlock("text", nil, nil))
	section := add(t, st, models.NewBlock("section", nil, models.Slots{"content": {leaf}}))
	page := models.NewPage("home", "Home")
	page.Slots[models.RootSlot] = []models.ID{section}
	add(t, st, page)

	tplRoot := add(t, st, models.NewBlock("heading", nil, nil))
	tpl := models.NewTemplate("hero", tplRoot)
	_, err := st.AddTemplate(ctx, tpl)
	require.NoError(t, err)

	rep, err := Check(ctx, st)
	require.NoError(t, err)
	assert.True(t, rep.OK())
	assert.NoError(t, rep.Err())
	assert.Equal(t, 1, rep.Pages)
	assert.Equal(t, 3, rep.Blocks)
	assert.Equal(t, 1, rep.Templates)
}

func TestCheckFindsProblems(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	shared := add(t, st, models.NewBlock("text", nil, nil))
	orphan := add(t, st, models.NewBlock("text", nil, nil))
	cols := add(t, st, models.NewBlock("columns", nil, models.Slots{"left": {shared}, "right": {shared, 404}}))
	page := models.NewPage("home", "Home")
	page.Slots[models.RootSlot] = []models.ID{cols}
	add(t, st, page)

	tpl := models.NewTemplate("hero", cols)
	tpl.Order = 3
	_, err := st.AddTemplate(ctx, tpl)
	require.NoError(t, err)

	rep, err := Check(ctx, st)
	require.NoError(t, err)
	assert.False(t, rep.OK())
	require.Error(t, rep.Err())

	require.Len(t, rep.Dangling, 1)
	assert.Equal(t, models.ID(404), rep.Dangling[0].Missing)
	assert.Equal(t, models.BlockRef(cols), rep.Dangling[0].Parent)
	assert.Equal(t, "right", rep.Dangling[0].Slot)

	// cols sits in both the page and the template root slot.
	sharedIDs := make([]models.ID, len(rep.Shared))
	for i, s := range rep.Shared {
		sharedIDs[i] = s.Block
	}
	assert.ElementsMatch(t, []models.ID{shared, cols}, sharedIDs)

	assert.Equal(t, []models.ID{orphan}, rep.Orphans)
	require.NotNil(t, rep.Density)
	assert.Equal(t, []int{0}, rep.Density.Missing)
	assert.Equal(t, []int{3}, rep.Density.OutOfRange)
}
