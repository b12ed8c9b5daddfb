// Package postgres implements docstore.Store on a single JSONB document
// table. Acknowledged changes are relayed across processes with
// LISTEN/NOTIFY; local writes additionally echo a pending change before the
// database round trip so observers see them immediately.
package postgres

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"waterledger/internal/docstore"
)

const changeChannel = "waterledger_changes"

// Store is a Postgres-backed document store.
type Store struct {
	db     *sql.DB
	hub    *docstore.Hub
	logger *log.Logger
	// origin identifies this process in notify payloads so the listener can
	// skip changes it already echoed locally.
	origin string
}

// NewStore constructs a store. The schema is created on first use via
// EnsureSchema.
func NewStore(db *sql.DB, logger *log.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("docstore postgres: nil db")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Store{db: db, hub: docstore.NewHub(), logger: logger, origin: newOrigin()}, nil
}

// EnsureSchema creates the document table and its lookup index.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS documents (
	collection text NOT NULL,
	id         text NOT NULL,
	doc        jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`)
	if err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS documents_family_idx
	ON documents (collection, (doc ->> 'familyId'))`)
	if err != nil {
		return fmt.Errorf("create family index: %w", err)
	}
	return nil
}

// Get returns one document.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeDoc(raw, id)
}

// Query returns every document in the collection matching the filters.
func (s *Store) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT id, doc FROM documents WHERE collection = $1`)
	args := []any{collection}
	for _, f := range filters {
		switch f.Op {
		case docstore.OpEqual:
			encoded, err := json.Marshal(f.Value)
			if err != nil {
				return nil, fmt.Errorf("encode filter value: %w", err)
			}
			args = append(args, f.Field, string(encoded))
			fmt.Fprintf(&query, ` AND doc -> $%d = $%d::jsonb`, len(args)-1, len(args))
		case docstore.OpGreaterOrEqual:
			args = append(args, f.Field, fmt.Sprint(f.Value))
			fmt.Fprintf(&query, ` AND doc ->> $%d >= $%d`, len(args)-1, len(args))
		default:
			return nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []docstore.Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := decodeDoc(raw, id)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Set stores the full document.
func (s *Store) Set(ctx context.Context, collection, id string, doc docstore.Document) error {
	raw, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	change := docstore.Change{Collection: collection, ID: id, Kind: docstore.ChangeSet, Fields: withID(doc, id)}
	s.publishPending(change)

	err = s.write(ctx, change, `
INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)
ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		collection, id, raw)
	return err
}

// Update merges fields into an existing document.
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Document) error {
	raw, err := encodeDoc(fields)
	if err != nil {
		return err
	}
	change := docstore.Change{Collection: collection, ID: id, Kind: docstore.ChangeUpdate, Fields: withID(fields, id)}
	s.publishPending(change)

	return s.writeExisting(ctx, change, `
UPDATE documents SET doc = doc || $3::jsonb, updated_at = now()
WHERE collection = $1 AND id = $2`,
		collection, id, raw)
}

// Increment atomically adds delta to a numeric field of the stored
// document. The add happens inside a single UPDATE against the stored
// value, so concurrent increments on the same document all land.
func (s *Store) Increment(ctx context.Context, collection, id, field string, delta float64) error {
	change := docstore.Change{
		Collection: collection,
		ID:         id,
		Kind:       docstore.ChangeIncrement,
		Fields:     docstore.Document{field: delta},
	}
	s.publishPending(change)

	return s.writeExisting(ctx, change, `
UPDATE documents
SET doc = jsonb_set(doc, ARRAY[$3], to_jsonb(COALESCE((doc ->> $3)::numeric, 0) + $4::numeric)),
	updated_at = now()
WHERE collection = $1 AND id = $2`,
		collection, id, field, delta)
}

// Delete removes the document. Deleting a missing document is a no-op.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	change := docstore.Change{Collection: collection, ID: id, Kind: docstore.ChangeDelete}
	s.publishPending(change)

	return s.write(ctx, change, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
}

// Watch subscribes to the collection change feed.
func (s *Store) Watch(collection string) (<-chan docstore.Change, func()) {
	return s.hub.Subscribe(collection)
}

// write runs the statement and a pg_notify in one transaction, then echoes
// the acknowledged change locally.
func (s *Store) write(ctx context.Context, change docstore.Change, statement string, args ...any) error {
	return s.writeChecked(ctx, change, false, statement, args...)
}

// writeExisting is write, but reports ErrNotFound when no row matched.
func (s *Store) writeExisting(ctx context.Context, change docstore.Change, statement string, args ...any) error {
	return s.writeChecked(ctx, change, true, statement, args...)
}

func (s *Store) writeChecked(ctx context.Context, change docstore.Change, requireRow bool, statement string, args ...any) error {
	payload, err := json.Marshal(notifyPayload{
		Collection: change.Collection,
		ID:         change.ID,
		Kind:       change.Kind,
		Origin:     s.origin,
	})
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, statement, args...)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if requireRow {
		affected, err := result.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if affected == 0 {
			_ = tx.Rollback()
			return docstore.ErrNotFound
		}
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, changeChannel, string(payload)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	acked := change
	acked.Pending = false
	s.hub.Publish(acked)
	return nil
}

func (s *Store) publishPending(change docstore.Change) {
	change.Pending = true
	s.hub.Publish(change)
}

type notifyPayload struct {
	Collection string              `json:"collection"`
	ID         string              `json:"id"`
	Kind       docstore.ChangeKind `json:"kind"`
	Origin     string              `json:"origin"`
}

func encodeDoc(doc docstore.Document) ([]byte, error) {
	stripped := make(docstore.Document, len(doc))
	for k, v := range doc {
		if k == "id" {
			continue
		}
		stripped[k] = v
	}
	raw, err := json.Marshal(stripped)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return raw, nil
}

func decodeDoc(raw []byte, id string) (docstore.Document, error) {
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc["id"] = id
	return doc, nil
}

func withID(doc docstore.Document, id string) docstore.Document {
	out := make(docstore.Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["id"] = id
	return out
}

func newOrigin() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "origin-unknown"
	}
	return hex.EncodeToString(buf)
}

var _ docstore.Store = (*Store)(nil)
