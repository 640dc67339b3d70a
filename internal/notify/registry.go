// Package notify implements the ordered observer registry shared by the
// timer, task list and event bus.
//
// Handlers are invoked in subscription order. Dispatch iterates over a copy of
// the handler list taken when Notify starts and skips entries that were
// unsubscribed mid-dispatch, so a handler may unsubscribe itself (or any other
// handler) from inside a notification. A panicking handler is recovered,
// logged and skipped; the remaining handlers still run.
package notify

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Handler receives a notification value.
type Handler[T any] func(T)

type entry[T any] struct {
	id      uint64
	handler Handler[T]
	live    bool
}

// Registry is an ordered set of handlers for values of type T.
// It is not safe for concurrent use; owners serialise access.
type Registry[T any] struct {
	name    string
	log     zerolog.Logger
	nextID  uint64
	entries []*entry[T]

	// OnPanic, when set, is called after a handler panic has been recovered.
	OnPanic func(recovered any)
}

// New creates an empty registry. name appears in panic log lines.
func New[T any](name string, log zerolog.Logger) *Registry[T] {
	return &Registry[T]{name: name, log: log}
}

// Subscribe appends h and returns its unsubscribe function. Calling the
// returned function more than once is a no-op.
func (r *Registry[T]) Subscribe(h Handler[T]) func() {
	if h == nil {
		return func() {}
	}
	r.nextID++
	e := &entry[T]{id: r.nextID, handler: h, live: true}
	r.entries = append(r.entries, e)

	return func() {
		if !e.live {
			return
		}
		e.live = false
		for i, cur := range r.entries {
			if cur == e {
				r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
				break
			}
		}
	}
}

// Notify delivers v to every live handler and returns how many panicked.
func (r *Registry[T]) Notify(v T) int {
	snapshot := make([]*entry[T], len(r.entries))
	copy(snapshot, r.entries)

	failed := 0
	for _, e := range snapshot {
		if !e.live {
			continue
		}
		if err := r.invoke(e, v); err != nil {
			failed++
			r.log.Warn().Err(err).Str("registry", r.name).Uint64("handler", e.id).Msg("subscriber panicked")
		}
	}
	return failed
}

func (r *Registry[T]) invoke(e *entry[T], v T) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			if r.OnPanic != nil {
				r.OnPanic(rec)
			}
		}
	}()
	e.handler(v)
	return nil
}

// Len returns the number of live handlers.
func (r *Registry[T]) Len() int {
	return len(r.entries)
}

// Clear removes every handler. Outstanding unsubscribe functions stay safe.
func (r *Registry[T]) Clear() {
	for _, e := range r.entries {
		e.live = false
	}
	r.entries = nil
}
