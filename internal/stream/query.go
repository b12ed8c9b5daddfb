package stream

import (
	"context"
	"log"
	"sort"
	"sync"

	"waterledger/internal/docstore"
	"waterledger/internal/observability/metrics"
)

// QueryStream observes a filtered collection and pushes the full decoded
// result set on every change.
type QueryStream[T any] struct {
	source     Source
	collection string
	filters    []docstore.Filter
	decode     DecodeFunc[T]
	logger     *log.Logger

	observers *observers[[]T]

	mu      sync.Mutex
	stop    func()
	lastRaw map[string]docstore.Document
}

// NewQueryStream constructs an inactive stream; the watch opens on the
// first Attach.
func NewQueryStream[T any](source Source, collection string, filters []docstore.Filter, decode DecodeFunc[T], logger *log.Logger) *QueryStream[T] {
	if logger == nil {
		logger = log.Default()
	}
	return &QueryStream[T]{
		source:     source,
		collection: collection,
		filters:    filters,
		decode:     decode,
		logger:     logger,
		observers:  newObservers[[]T](),
	}
}

// Attach registers an observer and activates the stream if it was idle.
func (s *QueryStream[T]) Attach() (<-chan []T, func()) {
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
func (s *QueryStream[T]) Activate() {
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

// Deactivate tears down the watch. Safe to call repeatedly.
func (s *QueryStream[T]) Deactivate() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
		metrics.WatchClosed()
	}
}

func (s *QueryStream[T]) run(events <-chan docstore.Change) {
	s.refresh()
	for change := range events {
		if change.Pending {
			if s.applyPending(change) {
				s.push()
			}
			continue
		}
		s.refresh()
	}
}

// refresh re-runs the query against the store; the aggregate view is
// rebuilt in full, never maintained incrementally.
func (s *QueryStream[T]) refresh() {
	docs, err := s.source.Query(context.Background(), s.collection, s.filters...)
	if err != nil {
		s.logger.Printf("query stream %s: query failed: %v", s.collection, err)
		return
	}
	snapshot := make(map[string]docstore.Document, len(docs))
	for _, doc := range docs {
		id, _ := doc["id"].(string)
		if id == "" {
			continue
		}
		snapshot[id] = doc
	}
	s.mu.Lock()
	s.lastRaw = snapshot
	s.mu.Unlock()
	s.push()
}

// applyPending folds a not-yet-acknowledged local write into the cached
// snapshot. Returns false when the change cannot affect this query.
func (s *QueryStream[T]) applyPending(change docstore.Change) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRaw == nil {
		return false
	}
	existing, known := s.lastRaw[change.ID]

	switch change.Kind {
	case docstore.ChangeDelete:
		if !known {
			return false
		}
		delete(s.lastRaw, change.ID)
		return true
	case docstore.ChangeSet:
		if docstore.Matches(change.Fields, s.filters) {
			s.lastRaw[change.ID] = change.Fields
			return true
		}
		if known {
			delete(s.lastRaw, change.ID)
			return true
		}
		return false
	default:
		// Partial update: only meaningful for documents already in the
		// snapshot; anything else resolves at the acknowledged refresh.
		if !known {
			return false
		}
		merged := overlay(existing, change.Fields, change.Kind)
		if !docstore.Matches(merged, s.filters) {
			delete(s.lastRaw, change.ID)
			return true
		}
		s.lastRaw[change.ID] = merged
		return true
	}
}

// push decodes the snapshot in id order and publishes it. Documents that
// fail to decode are dropped from the published list and logged.
func (s *QueryStream[T]) push() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.lastRaw))
	for id := range s.lastRaw {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	docs := make([]docstore.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, s.lastRaw[id])
	}
	s.mu.Unlock()

	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		value, err := s.decode(doc)
		if err != nil {
			s.logger.Printf("query stream %s: decode failed for %v: %v", s.collection, doc["id"], err)
			metrics.DecodeFailure(s.collection)
			continue
		}
		out = append(out, value)
	}
	s.observers.publish(out)
	metrics.StreamPush("query")
}
