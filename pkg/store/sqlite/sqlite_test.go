package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
	"github.com/pagecraft/pagecraft/pkg/store/storetest"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "pagecraft.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTest(t) })
}

func TestPragmas(t *testing.T) {
	st := openTest(t)
	var mode string
	require.NoError(t, st.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var version int
	require.NoError(t, st.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestMigrateIdempotent(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	_, err := st.Add(ctx, models.NewPage("home", "Home"))
	require.NoError(t, err)

	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Migrate(ctx))

	got, err := st.FindPageBySlug(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, "Home", got.Page.Title)
}

func TestPublishedAtRoundTrip(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()

	page := models.NewPage("news", "News")
	_, err := st.Add(ctx, page)
	require.NoError(t, err)

	got, err := st.Get(ctx, page.Ref())
	require.NoError(t, err)
	assert.Nil(t, got.Page.PublishedAt)

	at := page.CreatedAt.AddDate(0, 0, 1)
	page.Page.Status = models.StatusPublished
	page.Page.PublishedAt = &at
	_, err = st.Update(ctx, page)
	require.NoError(t, err)

	got, err = st.Get(ctx, page.Ref())
	require.NoError(t, err)
	require.NotNil(t, got.Page.PublishedAt)
	assert.True(t, got.Page.PublishedAt.Equal(at))
	assert.Equal(t, models.StatusPublished, got.Page.Status)
}

func TestNegativeOrderRejected(t *testing.T) {
	st := openTest(t)
	tpl := models.NewTemplate("bad", 1)
	tpl.Order = -1
	_, err := st.AddTemplate(context.Background(), tpl)
	require.ErrorIs(t, err, models.ErrConstraintViolation)
}
