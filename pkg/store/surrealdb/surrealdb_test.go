package surrealdb

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
	"github.com/pagecraft/pagecraft/pkg/store/storetest"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Set PAGECRAFT_SURREALDB_URL (for example ws://localhost:8000/rpc) to run
// these against a live server. Tables are dropped before every subtest.
func openTest(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("PAGECRAFT_SURREALDB_URL")
	if url == "" {
		t.Skip("PAGECRAFT_SURREALDB_URL not set")
	}
	ctx := context.Background()
	st, err := Open(ctx, Config{
		URL:       url,
		Namespace: getEnv("PAGECRAFT_SURREALDB_NS", "pagecraft"),
		Database:  getEnv("PAGECRAFT_SURREALDB_DB", "test"),
		Username:  getEnv("PAGECRAFT_SURREALDB_USER", "root"),
		Password:  getEnv("PAGECRAFT_SURREALDB_PASS", "root"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.reset(ctx))
	return st
}

func TestConformance(t *testing.T) {
	if os.Getenv("PAGECRAFT_SURREALDB_URL") == "" {
		t.Skip("PAGECRAFT_SURREALDB_URL not set")
	}
	storetest.Run(t, func(t *testing.T) store.Store { return openTest(t) })
}

func TestRecordNum(t *testing.T) {
	for _, key := range []any{int64(7), uint64(7), 7} {
		id, err := recordNum(surrealmodels.RecordID{Table: "blocks", ID: key})
		require.NoError(t, err)
		assert.Equal(t, models.ID(7), id)
	}
	_, err := recordNum(surrealmodels.RecordID{Table: "blocks", ID: "seven"})
	assert.Error(t, err)
}

func TestSlotsRowConversion(t *testing.T) {
	in := models.Slots{"root": {3, 1, 2}, "empty": {}}
	assert.Equal(t, in, slotsFromRow(slotsToRow(in)))
}

func TestUniqueViolation(t *testing.T) {
	err := translate(assert.AnError, "home")
	assert.Equal(t, assert.AnError, err)

	dup := translate(errString("Database index `pages_slug` already contains 'home'"), "home")
	assert.ErrorIs(t, dup, models.ErrConstraintViolation)
}

type errString string

func (e errString) Error() string { return string(e) }
