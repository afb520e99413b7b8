package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeClone(t *testing.T) {
	published := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	page := NewPage("home", "Home")
	page.ID = 1
	page.Slots[RootSlot] = []ID{2, 3}
	page.Props["seo"] = map[string]any{"tags": []any{"a", "b"}}
	page.Page.PublishedAt = &published

	c := page.Clone()
	require.Equal(t, page, c)

	c.Slots[RootSlot][0] = 9
	c.Props["seo"].(map[string]any)["tags"].([]any)[0] = "z"
	c.Page.Title = "Other"
	*c.Page.PublishedAt = published.Add(time.Hour)

	assert.Equal(t, []ID{2, 3}, page.Slots[RootSlot])
	assert.Equal(t, "a", page.Props["seo"].(map[string]any)["tags"].([]any)[0])
	assert.Equal(t, "Home", page.Page.Title)
	assert.Equal(t, published, *page.Page.PublishedAt)

	var nilNode *Node
	assert.Nil(t, nilNode.Clone())
}

func TestTouch(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		from, want PageStatus
	}{
		{StatusDraft, StatusDraft},
		{StatusPublished, StatusChanged},
		{StatusChanged, StatusChanged},
		{StatusUnpublished, StatusUnpublished},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			page := NewPage("home", "Home")
			page.Page.Status = tt.from
			page.Touch(now)
			assert.Equal(t, tt.want, page.Page.Status)
			assert.Equal(t, now, page.UpdatedAt)
		})
	}

	block := NewBlock("text", nil, nil)
	block.Touch(now)
	assert.Equal(t, now, block.UpdatedAt)
	assert.Nil(t, block.Page)
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindPage, NewPage("a", "A").Kind())
	assert.Equal(t, KindBlock, NewBlock("text", nil, nil).Kind())
	assert.Panics(t, func() { (&Node{Store: CollectionTemplates}).Kind() })
}

func TestSlotsChildrenOrder(t *testing.T) {
	s := Slots{"b": {3, 4}, "a": {1}, "c": {}}
	assert.Equal(t, []string{"a", "b", "c"}, s.Names())
	assert.Equal(t, []ID{1, 3, 4}, s.Children())

	c := Slots{"x": nil}.Clone()
	assert.NotNil(t, c["x"])
}

func TestPropsMerge(t *testing.T) {
	p := Props{"text": "a", "level": 1}
	p.Merge(Props{"text": "b", "align": "left"})
	assert.Equal(t, Props{"text": "b", "level": 1, "align": "left"}, p)
}

func TestTemplateRoot(t *testing.T) {
	assert.Equal(t, ID(7), NewTemplate("hero", 7).Root())
	assert.Zero(t, (&Template{Slots: Slots{RootSlot: {1, 2}}}).Root())
	assert.Zero(t, (&Template{}).Root())
}

func TestRefs(t *testing.T) {
	id, err := ParseID("42")
	require.NoError(t, err)
	assert.Equal(t, "pages:42", PageRef(id).String())
	_, err = ParseID("0")
	assert.Error(t, err)
	_, err = ParseCollection("users")
	assert.Error(t, err)
	assert.True(t, Ref{}.IsZero())
}

func TestErrorSentinels(t *testing.T) {
	assert.True(t, errors.Is(NotFound(BlockRef(1)), ErrNotFound))
	assert.True(t, errors.Is(DuplicateSlug("home"), ErrConstraintViolation))
	assert.True(t, errors.Is(&DanglingReferenceError{Missing: 2, Parent: PageRef(1), Slot: RootSlot}, ErrDanglingReference))
	assert.True(t, errors.Is(&IncompleteTreeError{Missing: 2, Referrer: BlockRef(1)}, ErrIncompleteTree))
}
