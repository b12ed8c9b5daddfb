// Package memory implements docstore.Store entirely in process. It backs
// unit tests and mirrors the remote store contract, including pending
// change events and atomic increments.
package memory

import (
	"context"
	"sync"

	"waterledger/internal/docstore"
)

// Store is an in-memory document store.
type Store struct {
	mu   sync.Mutex
	data map[string]map[string]docstore.Document
	hub  *docstore.Hub

	// failIncrements makes Increment fail for the listed document IDs.
	// Tests use it to exercise ledger drift.
	failIncrements map[string]error
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		data:           make(map[string]map[string]docstore.Document),
		hub:            docstore.NewHub(),
		failIncrements: make(map[string]error),
	}
}

// FailIncrementsFor makes subsequent Increment calls against the document
// return err. Pass nil to clear.
func (s *Store) FailIncrementsFor(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failIncrements, id)
		return
	}
	s.failIncrements[id] = err
}

// Get returns a copy of the document.
func (s *Store) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.data[collection][id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return cloneDoc(doc, id), nil
}

// Query returns copies of every document matching the filters.
func (s *Store) Query(_ context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []docstore.Document
	for id, doc := range s.data[collection] {
		withID := cloneDoc(doc, id)
		if docstore.Matches(withID, filters) {
			out = append(out, withID)
		}
	}
	return out, nil
}

// Set stores the full document.
func (s *Store) Set(_ context.Context, collection, id string, doc docstore.Document) error {
	stored := cloneDoc(doc, id)
	s.publishPending(docstore.Change{Collection: collection, ID: id, Kind: docstore.ChangeSet, Fields: stored, Pending: true})

	s.mu.Lock()
	col, ok := s.data[collection]
	if !ok {
		col = make(map[string]docstore.Document)
		s.data[collection] = col
	}
	col[id] = stored
	s.mu.Unlock()

	s.hub.Publish(docstore.Change{Collection: collection, ID: id, Kind: docstore.ChangeSet, Fields: stored})
	return nil
}

// Update merges fields into an existing document.
func (s *Store) Update(_ context.Context, collection, id string, fields docstore.Document) error {
	s.publishPending(docstore.Change{Collection: collection, ID: id, Kind: docstore.ChangeUpdate, Fields: cloneDoc(fields, id), Pending: true})

	s.mu.Lock()
	doc, ok := s.data[collection][id]
	if !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	s.mu.Unlock()

	s.hub.Publish(docstore.Change{Collection: collection, ID: id, Kind: docstore.ChangeUpdate, Fields: cloneDoc(fields, id)})
	return nil
}

// Increment atomically adds delta to a numeric field. The add happens under
// the store lock against the stored value; callers never see intermediate
// states.
func (s *Store) Increment(_ context.Context, collection, id, field string, delta float64) error {
	s.mu.Lock()
	if err, ok := s.failIncrements[id]; ok {
		s.mu.Unlock()
		return err
	}
	doc, ok := s.data[collection][id]
	if !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	current, _ := doc[field].(float64)
	doc[field] = current + delta
	s.mu.Unlock()

	fields := docstore.Document{field: delta}
	s.hub.Publish(docstore.Change{Collection: collection, ID: id, Kind: docstore.ChangeIncrement, Fields: fields, Pending: true})
	s.hub.Publish(docstore.Change{Collection: collection, ID: id, Kind: docstore.ChangeIncrement, Fields: fields})
	return nil
}

// Delete removes the document. Deleting a missing document is a no-op.
func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.publishPending(docstore.Change{Collection: collection, ID: id, Kind: docstore.ChangeDelete, Pending: true})

	s.mu.Lock()
	delete(s.data[collection], id)
	s.mu.Unlock()

	s.hub.Publish(docstore.Change{Collection: collection, ID: id, Kind: docstore.ChangeDelete})
	return nil
}

// Watch subscribes to the collection change feed.
func (s *Store) Watch(collection string) (<-chan docstore.Change, func()) {
	return s.hub.Subscribe(collection)
}

func (s *Store) publishPending(change docstore.Change) {
	s.hub.Publish(change)
}

func cloneDoc(doc docstore.Document, id string) docstore.Document {
	out := make(docstore.Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["id"] = id
	return out
}

var _ docstore.Store = (*Store)(nil)
