// Package events carries notifications about completed tree edits.
//
// The mutation engine publishes one Event per successful operation on a
// [Bus]. Subscribers run synchronously on the publishing goroutine, so they
// must not block; the websocket hub, for instance, only queues the event.
package events

import (
	"sync"
	"time"

	"github.com/pagecraft/pagecraft/pkg/models"
)

// Kind names the operation that produced an event.
type Kind string

const (
	BlockAdded        Kind = "block.added"
	BlockDeleted      Kind = "block.deleted"
	BlockMoved        Kind = "block.moved"
	BlockCopied       Kind = "block.copied"
	BlockUpdated      Kind = "block.updated"
	TemplateApplied   Kind = "template.applied"
	PageCreated       Kind = "page.created"
	PageUpdated       Kind = "page.updated"
	PagePublished     Kind = "page.published"
	PageUnpublished   Kind = "page.unpublished"
	PageDeleted       Kind = "page.deleted"
	TemplateSaved     Kind = "template.saved"
	TemplateDeleted   Kind = "template.deleted"
	TemplateReordered Kind = "template.reordered"
	TemplateRenamed   Kind = "template.renamed"
)

// Event describes one completed operation. Root is the page or template
// whose tree changed; Target is the record the operation acted on.
type Event struct {
	Kind   Kind       `json:"kind"`
	Root   models.Ref `json:"root"`
	Target models.Ref `json:"target"`
	At     time.Time  `json:"at"`
}

// Subscriber receives events.
type Subscriber interface {
	Notify(Event)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(Event)

func (f SubscriberFunc) Notify(e Event) { f(e) }

// Publisher is the side of the bus the engine sees.
type Publisher interface {
	Publish(Event)
}

// Bus fans events out to subscribers. The zero value is ready to use.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]Subscriber
}

var _ Publisher = (*Bus)(nil)

// Subscribe registers s and returns a function that removes it.
func (b *Bus) Subscribe(s Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]Subscriber)
	}
	id := b.next
	b.next++
	b.subs[id] = s
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		s.Notify(e)
	}
}

// Len reports the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}
