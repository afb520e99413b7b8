// Package mutation is the tree-mutation engine: every structural edit to
// pages, blocks and templates goes through an [Engine].
//
// Each operation is a sequence of single-record reads and writes against the
// store. Writes that introduce a reference happen after the referenced
// record exists, and writes that remove a reference happen before the
// referenced record is deleted, so a reader never sees a slot entry pointing
// at nothing. There is no rollback: an operation that fails part way may
// leave orphaned blocks behind, but never dangling references.
//
// The engine does not lock. Callers serialise edits to the same tree; see
// the gate in package pagecraft.
//
// Every record read from the store is cloned before it is modified.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/pagecraft/pagecraft/pkg/events"
	"github.com/pagecraft/pagecraft/pkg/metrics"
	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/ordering"
	"github.com/pagecraft/pagecraft/pkg/registry"
	"github.com/pagecraft/pagecraft/pkg/store"
)

// ErrCycle is returned when a move would place a block inside its own
// subtree.
var ErrCycle = errors.New("cannot move a block into its own subtree")

// Clock supplies timestamps.
type Clock func() time.Time

// Deps are the collaborators an Engine works with. Store and Registry are
// required; the rest default to no-ops (a zero zerolog.Logger discards).
type Deps struct {
	Store    store.Store
	Registry registry.Lookup
	Clock    Clock
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Events   events.Publisher
}

// Engine applies tree mutations.
type Engine struct {
	st       store.Store
	registry registry.Lookup
	now      Clock
	log      zerolog.Logger
	metrics  *metrics.Metrics
	events   events.Publisher
	ranks    *ordering.Renumberer
}

// New returns an Engine over deps.
func New(deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("mutation: store is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("mutation: registry is required")
	}
	e := &Engine{
		st:       deps.Store,
		registry: deps.Registry,
		now:      deps.Clock,
		log:      deps.Logger.With().Str("component", "mutation").Logger(),
		metrics:  deps.Metrics,
		events:   deps.Events,
		ranks:    ordering.New(deps.Store, deps.Metrics),
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.events == nil {
		e.events = events.Discard
	}
	return e, nil
}

// Store returns the engine's store.
func (e *Engine) Store() store.Store { return e.st }

// Ranks returns the template renumberer.
func (e *Engine) Ranks() *ordering.Renumberer { return e.ranks }

var validate = validator.New(validator.WithRequiredStructEnabled())

// check validates a request struct, reporting the first failing field as a
// constraint violation.
func check(req any) error {
	err := validate.Struct(req)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &models.ConstraintViolationError{
			Field:  fe.Namespace(),
			Value:  fmt.Sprint(fe.Value()),
			Reason: "failed " + fe.Tag() + " check",
		}
	}
	return err
}

// op tracks one running operation for logging, metrics and events.
type op struct {
	e     *Engine
	name  string
	start time.Time
}

func (e *Engine) begin(name string) *op {
	return &op{e: e, name: name, start: time.Now()}
}

// end records the outcome. On success it publishes ev when ev.Kind is set.
func (o *op) end(err error, ev events.Event) {
	o.e.metrics.Observe(o.name, o.start, err)
	if err != nil {
		o.e.log.Warn().Err(err).Str("op", o.name).Msg("operation failed")
		return
	}
	o.e.log.Debug().
		Str("op", o.name).
		Stringer("root", ev.Root).
		Stringer("target", ev.Target).
		Dur("took", time.Since(o.start)).
		Msg("operation done")
	if ev.Kind != "" {
		if ev.At.IsZero() {
			ev.At = o.e.now()
		}
		o.e.events.Publish(ev)
	}
}

// getNode reads a page or block.
func (e *Engine) getNode(ctx context.Context, ref models.Ref) (*models.Node, error) {
	if !ref.Store.IsNode() {
		return nil, &models.ConstraintViolationError{Field: "ref", Value: ref.String(), Reason: "not a page or block"}
	}
	return e.st.Get(ctx, ref)
}
