package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pagecraft/pagecraft/pkg/store"
	"github.com/pagecraft/pagecraft/pkg/store/storetest"
)

// Set PAGECRAFT_POSTGRES_DSN to run these against a scratch database. The
// tables are truncated before every subtest.
func openTest(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("PAGECRAFT_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PAGECRAFT_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	st, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.reset(ctx))
	return st
}

func TestConformance(t *testing.T) {
	if os.Getenv("PAGECRAFT_POSTGRES_DSN") == "" {
		t.Skip("PAGECRAFT_POSTGRES_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) store.Store { return openTest(t) })
}

func TestOrderClause(t *testing.T) {
	require.Equal(t, "id asc, id asc", orderClause(store.SortBy{}))
	require.Equal(t, "updated_at desc, id desc", orderClause(store.SortBy{Field: store.SortByUpdatedAt, Direction: store.Descending}))
}
