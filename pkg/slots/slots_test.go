package slots_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/slots"
)

func ids(v ...models.ID) []models.ID { return v }

func TestInsert(t *testing.T) {
	base := ids(1, 2, 3)

	tests := []struct {
		name string
		at   *slots.InsertionPoint
		want []models.ID
		pos  int
	}{
		{"append", nil, ids(1, 2, 3, 9), 3},
		{"top of first", &slots.InsertionPoint{Index: 0, Edge: slots.Top}, ids(9, 1, 2, 3), 0},
		{"bottom of first", &slots.InsertionPoint{Index: 0, Edge: slots.Bottom}, ids(1, 9, 2, 3), 1},
		{"bottom of last", &slots.InsertionPoint{Index: 2, Edge: slots.Bottom}, ids(1, 2, 3, 9), 3},
		{"past the end clamps", &slots.InsertionPoint{Index: 10, Edge: slots.Top}, ids(1, 2, 3, 9), 3},
		{"missing edge is top", &slots.InsertionPoint{Index: 1}, ids(1, 9, 2, 3), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, pos := slots.Insert(base, 9, tt.at)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.pos, pos)
		})
	}
	assert.Equal(t, ids(1, 2, 3), base, "input must not be modified")
}

func TestRemoveAt(t *testing.T) {
	base := ids(1, 2, 3)
	got, removed, err := slots.RemoveAt(base, 1)
	require.NoError(t, err)
	assert.Equal(t, ids(1, 3), got)
	assert.Equal(t, models.ID(2), removed)
	assert.Equal(t, ids(1, 2, 3), base)

	_, _, err = slots.RemoveAt(base, 3)
	var idxErr *slots.IndexError
	require.ErrorAs(t, err, &idxErr)
	assert.Equal(t, 3, idxErr.Index)
}

func TestMove(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		edge     slots.Edge
		want     []models.ID
	}{
		{"first below last", 0, 2, slots.Bottom, ids(2, 3, 1)},
		{"first above last", 0, 2, slots.Top, ids(2, 1, 3)},
		{"last above first", 2, 0, slots.Top, ids(3, 1, 2)},
		{"last below first", 2, 0, slots.Bottom, ids(1, 3, 2)},
		{"above own successor is a no-op", 0, 1, slots.Top, ids(1, 2, 3)},
		{"below own predecessor is a no-op", 1, 0, slots.Bottom, ids(1, 2, 3)},
		{"onto itself", 1, 1, slots.Top, ids(1, 2, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := slots.Move(ids(1, 2, 3), tt.from, tt.to, tt.edge)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoveRoundTrip(t *testing.T) {
	orig := ids(10, 20, 30, 40, 50)
	for a := range orig {
		for b := range orig {
			moved, err := slots.Move(orig, a, b, slots.Bottom)
			require.NoError(t, err)

			// Move the entry back next to its original neighbour.
			at := slots.IndexOf(moved, orig[a])
			var back []models.ID
			if a == 0 {
				back, err = slots.Move(moved, at, slots.IndexOf(moved, orig[1]), slots.Top)
			} else {
				back, err = slots.Move(moved, at, slots.IndexOf(moved, orig[a-1]), slots.Bottom)
			}
			require.NoError(t, err)
			assert.Equal(t, orig, back, "a=%d b=%d", a, b)
		}
	}
}

func TestMoveOutOfRange(t *testing.T) {
	_, err := slots.Move(ids(1, 2), 0, 2, slots.Top)
	require.Error(t, err)
	_, err = slots.Move(ids(1, 2), -1, 0, slots.Top)
	require.Error(t, err)
}

func TestLanding(t *testing.T) {
	assert.Equal(t, 2, slots.Landing(0, 2, slots.Bottom))
	assert.Equal(t, 1, slots.Landing(0, 2, slots.Top))
	assert.Equal(t, 0, slots.Landing(3, 0, slots.Top))
	assert.Equal(t, 1, slots.Landing(3, 0, slots.Bottom))
}
