package ordering

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft/pagecraft/pkg/metrics"
	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/slots"
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

// seed adds n templates with orders 0..n-1. Template i is named by its
// initial order and rooted at block 100+i.
func seed(t *testing.T, st store.Store, n int) []*models.Template {
	t.Helper()
	var out []*models.Template
	for i := range n {
		tpl := models.NewTemplate(string(rune('a'+i)), models.ID(100+i))
		tpl.Order = i
		_, err := st.AddTemplate(context.Background(), tpl)
		require.NoError(t, err)
		out = append(out, tpl)
	}
	return out
}

// names returns template names in order.
func names(t *testing.T, st store.Store) string {
	t.Helper()
	all, err := st.ListTemplates(context.Background())
	require.NoError(t, err)
	var s string
	for i, tpl := range all {
		require.Equal(t, i, tpl.Order, "orders are dense")
		s += tpl.Name
	}
	return s
}

func orders(t *testing.T, st store.Store) []int {
	t.Helper()
	all, err := st.ListTemplates(context.Background())
	require.NoError(t, err)
	var out []int
	for _, tpl := range all {
		out = append(out, tpl.Order)
	}
	return out
}

func TestInsertAtMiddle(t *testing.T) {
	st := openStore(t)
	seed(t, st, 4)
	r := New(st, nil)

	tpl := models.NewTemplate("x", 1)
	require.NoError(t, r.InsertAt(context.Background(), tpl, 2))

	assert.Equal(t, 2, tpl.Order)
	assert.False(t, tpl.ID.IsZero())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, orders(t, st))
	assert.Equal(t, "abxcd", names(t, st))
	require.NoError(t, r.Verify(context.Background()))
}

func TestInsertAtClamps(t *testing.T) {
	st := openStore(t)
	seed(t, st, 2)
	r := New(st, nil)
	ctx := context.Background()

	require.NoError(t, r.InsertAt(ctx, models.NewTemplate("z", 1), 50))
	require.NoError(t, r.InsertAt(ctx, models.NewTemplate("y", 1), -3))
	assert.Equal(t, "yabz", names(t, st))

	require.NoError(t, r.Append(ctx, models.NewTemplate("w", 1)))
	assert.Equal(t, "yabzw", names(t, st))
}

func TestInsertIntoEmpty(t *testing.T) {
	st := openStore(t)
	r := New(st, nil)
	require.NoError(t, r.InsertAt(context.Background(), models.NewTemplate("a", 1), 3))
	assert.Equal(t, "a", names(t, st))
}

func TestRemoveAt(t *testing.T) {
	st := openStore(t)
	tpls := seed(t, st, 5)
	r := New(st, nil)
	ctx := context.Background()

	require.NoError(t, st.RemoveTemplate(ctx, tpls[1].ID))
	require.NoError(t, r.RemoveAt(ctx, 1))
	assert.Equal(t, "acde", names(t, st))

	require.NoError(t, st.RemoveTemplate(ctx, tpls[4].ID))
	require.NoError(t, r.RemoveAt(ctx, 3))
	assert.Equal(t, "acd", names(t, st))
}

func TestRemoveMany(t *testing.T) {
	tests := []struct {
		name   string
		remove []int
		want   string
	}{
		{"scattered", []int{1, 3, 5}, "aceg"},
		{"unsorted with repeats", []int{5, 1, 3, 1}, "aceg"},
		{"prefix", []int{0, 1}, "cdefg"},
		{"suffix", []int{5, 6}, "abcde"},
		{"all", []int{0, 1, 2, 3, 4, 5, 6}, ""},
		{"none", nil, "abcdefg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := openStore(t)
			tpls := seed(t, st, 7)
			ctx := context.Background()
			for _, rank := range tt.remove {
				require.NoError(t, st.RemoveTemplate(ctx, tpls[rank].ID))
			}
			require.NoError(t, New(st, nil).RemoveMany(ctx, tt.remove))
			assert.Equal(t, tt.want, names(t, st))
		})
	}
}

// Reordering ranks must agree with moving the same entry in a slot array.
func TestReorderMatchesSlotMove(t *testing.T) {
	const n = 5
	for from := range n {
		for to := range n {
			for _, edge := range []slots.Edge{slots.Top, slots.Bottom} {
				t.Run(fmt.Sprintf("%d_%d_%s", from, to, edge), func(t *testing.T) {
					st := openStore(t)
					seed(t, st, n)

					ids := []models.ID{0, 1, 2, 3, 4}
					moved, err := slots.Move(ids, from, to, edge)
					require.NoError(t, err)
					var want string
					for _, id := range moved {
						want += string(rune('a' + int(id)))
					}

					final, err := New(st, nil).Reorder(context.Background(), from, to, edge)
					require.NoError(t, err)
					assert.Equal(t, want, names(t, st))
					assert.Equal(t, slots.Landing(from, to, edge), final)
				})
			}
		}
	}
}

func TestReorderOutOfRange(t *testing.T) {
	st := openStore(t)
	seed(t, st, 3)
	r := New(st, nil)

	_, err := r.Reorder(context.Background(), 3, 0, slots.Top)
	var ierr *slots.IndexError
	require.ErrorAs(t, err, &ierr)
	_, err = r.Reorder(context.Background(), 0, -1, slots.Top)
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "abc", names(t, st))
}

func TestVerify(t *testing.T) {
	st := openStore(t)
	seed(t, st, 3)
	r := New(st, nil)
	ctx := context.Background()
	require.NoError(t, r.Verify(ctx))

	extra := models.NewTemplate("dup", 1)
	extra.Order = 1
	_, err := st.AddTemplate(ctx, extra)
	require.NoError(t, err)
	far := models.NewTemplate("far", 1)
	far.Order = 9
	_, err = st.AddTemplate(ctx, far)
	require.NoError(t, err)

	err = r.Verify(ctx)
	var derr *DensityError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, []int{3, 4}, derr.Missing)
	assert.Equal(t, []int{1}, derr.Duplicated)
	assert.Equal(t, []int{9}, derr.OutOfRange)
	assert.Contains(t, err.Error(), "missing [3 4]")
}

func TestRenumberMetrics(t *testing.T) {
	st := openStore(t)
	seed(t, st, 4)
	m := metrics.New(prometheus.NewRegistry())
	r := New(st, m)

	require.NoError(t, r.InsertAt(context.Background(), models.NewTemplate("x", 1), 1))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TemplatesRenumbered))
}
