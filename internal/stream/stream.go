// Package stream turns the document store's change feed into push-based
// typed views. A stream holds at most one underlying watch, reference
// counted by observer attachment, and republishes snapshots to every
// attached observer. Locally-pending writes are overlaid on the last known
// snapshot and pushed before the store acknowledges them, so a screen never
// regresses to a stale value mid-flight.
package stream

import (
	"context"
	"sync"

	"waterledger/internal/docstore"
)

// DecodeFunc maps a raw document into a typed record.
type DecodeFunc[T any] func(docstore.Document) (T, error)

// Source is the slice of the store a stream needs.
type Source interface {
	Get(ctx context.Context, collection, id string) (docstore.Document, error)
	Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error)
	Watch(collection string) (<-chan docstore.Change, func())
}

// observers tracks attached observer channels. Each channel holds one
// pending snapshot; a new push replaces an unconsumed one, so observers
// always read the latest state rather than a backlog.
type observers[T any] struct {
	mu  sync.Mutex
	set map[chan T]struct{}
}

func newObservers[T any]() *observers[T] {
	return &observers[T]{set: make(map[chan T]struct{})}
}

// add registers a new observer channel and returns it with the new count.
func (o *observers[T]) add() (chan T, int) {
	ch := make(chan T, 1)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.set[ch] = struct{}{}
	return ch, len(o.set)
}

// remove drops the observer and returns the remaining count.
func (o *observers[T]) remove(ch chan T) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.set[ch]; !ok {
		return len(o.set)
	}
	delete(o.set, ch)
	close(ch)
	return len(o.set)
}

// publish delivers the snapshot to every observer, replacing any
// unconsumed previous snapshot.
func (o *observers[T]) publish(value T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for ch := range o.set {
		select {
		case ch <- value:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- value:
			default:
			}
		}
	}
}

func overlay(base, fields docstore.Document, kind docstore.ChangeKind) docstore.Document {
	out := make(docstore.Document, len(base)+len(fields))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range fields {
		if kind == docstore.ChangeIncrement {
			current, _ := out[k].(float64)
			delta, ok := v.(float64)
			if ok {
				out[k] = current + delta
				continue
			}
		}
		out[k] = v
	}
	return out
}
