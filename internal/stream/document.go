package stream

import (
	"context"
	"errors"
	"log"
	"sync"

	"waterledger/internal/docstore"
	"waterledger/internal/observability/metrics"
)

// Value is one document push. Exists is false when the document is absent
// or failed to decode.
type Value[T any] struct {
	Data   T
	Exists bool
}

// DocumentStream observes a single document.
type DocumentStream[T any] struct {
	source     Source
	collection string
	id         string
	decode     DecodeFunc[T]
	logger     *log.Logger

	observers *observers[Value[T]]

	mu      sync.Mutex
	stop    func()
	lastRaw docstore.Document
}

// NewDocumentStream constructs an inactive stream; the watch opens on the
// first Attach.
func NewDocumentStream[T any](source Source, collection, id string, decode DecodeFunc[T], logger *log.Logger) *DocumentStream[T] {
	if logger == nil {
		logger = log.Default()
	}
	return &DocumentStream[T]{
		source:     source,
		collection: collection,
		id:         id,
		decode:     decode,
		logger:     logger,
		observers:  newObservers[Value[T]](),
	}
}

// Attach registers an observer and activates the stream if it was idle.
// The detach func is idempotent; when the last observer detaches the
// underlying watch is torn down.
func (s *DocumentStream[T]) Attach() (<-chan Value[T], func()) {
	ch, count := s.observers.add()
	if count == 1 {
		s.Activate()
	}
	var once sync.Once
	detach := func() {
		once.Do(func() {
			if s.observers.remove(ch) == 0 {
				s.Deactivate()
			}
		})
	}
	return ch, detach
}

// Activate opens the underlying watch. A no-op while already active.
func (s *DocumentStream[T]) Activate() {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return
	}
	events, cancel := s.source.Watch(s.collection)
	s.stop = cancel
	s.mu.Unlock()

	metrics.WatchOpened()
	go s.run(events)
}

// Deactivate tears down the watch. Safe to call repeatedly; observers stay
// attached and receive pushes again after the next Activate.
func (s *DocumentStream[T]) Deactivate() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
		metrics.WatchClosed()
	}
}

func (s *DocumentStream[T]) run(events <-chan docstore.Change) {
	s.refresh()
	for change := range events {
		if change.ID != s.id {
			continue
		}
		if change.Pending {
			s.applyPending(change)
			continue
		}
		s.refresh()
	}
}

// refresh re-reads the document from the store and pushes the result.
func (s *DocumentStream[T]) refresh() {
	doc, err := s.source.Get(context.Background(), s.collection, s.id)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			s.logger.Printf("document stream %s/%s: read failed: %v", s.collection, s.id, err)
		}
		s.setRaw(nil)
		s.push(nil)
		return
	}
	s.setRaw(doc)
	s.push(doc)
}

// applyPending overlays a not-yet-acknowledged local write on the last
// known document and pushes immediately.
func (s *DocumentStream[T]) applyPending(change docstore.Change) {
	s.mu.Lock()
	base := s.lastRaw
	var next docstore.Document
	switch change.Kind {
	case docstore.ChangeSet:
		next = change.Fields
	case docstore.ChangeDelete:
		next = nil
	default:
		if base == nil {
			// Update against a document never seen; wait for the ack.
			s.mu.Unlock()
			return
		}
		next = overlay(base, change.Fields, change.Kind)
	}
	s.lastRaw = next
	s.mu.Unlock()
	s.push(next)
}

func (s *DocumentStream[T]) setRaw(doc docstore.Document) {
	s.mu.Lock()
	s.lastRaw = doc
	s.mu.Unlock()
}

// push decodes and publishes. A decode failure publishes "no value" and is
// logged; it never propagates to observers.
func (s *DocumentStream[T]) push(doc docstore.Document) {
	if doc == nil {
		s.observers.publish(Value[T]{})
		metrics.StreamPush("document")
		return
	}
	value, err := s.decode(doc)
	if err != nil {
		s.logger.Printf("document stream %s/%s: decode failed: %v", s.collection, s.id, err)
		metrics.DecodeFailure(s.collection)
		s.observers.publish(Value[T]{})
		return
	}
	s.observers.publish(Value[T]{Data: value, Exists: true})
	metrics.StreamPush("document")
}
