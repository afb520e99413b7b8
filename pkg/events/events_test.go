package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pagecraft/pagecraft/pkg/models"
)

func TestBus(t *testing.T) {
	var bus Bus
	var a, b []Kind
	unsubA := bus.Subscribe(SubscriberFunc(func(e Event) { a = append(a, e.Kind) }))
	bus.Subscribe(SubscriberFunc(func(e Event) { b = append(b, e.Kind) }))
	assert.Equal(t, 2, bus.Len())

	bus.Publish(Event{Kind: BlockAdded, Root: models.PageRef(1), Target: models.BlockRef(2), At: time.Now()})
	unsubA()
	bus.Publish(Event{Kind: BlockDeleted})

	assert.Equal(t, []Kind{BlockAdded}, a)
	assert.Equal(t, []Kind{BlockAdded, BlockDeleted}, b)
	assert.Equal(t, 1, bus.Len())
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard.Publish(Event{Kind: PageCreated}) })
}
