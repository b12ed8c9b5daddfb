// Package docstore abstracts the remote document database the record
// repositories talk to: keyed JSON documents grouped into named collections,
// a per-document atomic field increment, and a change feed that reflects
// local writes before the store acknowledges them.
package docstore

import (
	"context"
	"errors"
)

// Collections used by the application.
const (
	CollectionFarmers  = "farmers"
	CollectionSupplies = "supply_entries"
	CollectionPayments = "payments"
)

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is one stored record. Values follow JSON conventions: numbers are
// float64, everything nested is maps and slices. Implementations set the
// "id" field on read.
type Document map[string]any

// Op is a filter comparison operator.
type Op string

// Supported filter operators.
const (
	OpEqual          Op = "=="
	OpGreaterOrEqual Op = ">="
)

// Filter restricts a collection query to documents whose field compares
// against the value. String fields compare lexically, which is what the
// YYYY-MM-DD date fields rely on.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where builds an equality filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// WhereAtLeast builds a greater-or-equal filter.
func WhereAtLeast(field string, value any) Filter {
	return Filter{Field: field, Op: OpGreaterOrEqual, Value: value}
}

// ChangeKind classifies a change event.
type ChangeKind string

// Change kinds.
const (
	ChangeSet       ChangeKind = "set"
	ChangeUpdate    ChangeKind = "update"
	ChangeIncrement ChangeKind = "increment"
	ChangeDelete    ChangeKind = "delete"
)

// Change is one change-feed event. Every local write produces two events:
// one with Pending=true published synchronously when the write is issued
// (so observers see the write before the store round trip completes), and
// one with Pending=false once the store acknowledged it. Changes made by
// other processes arrive acknowledged only.
type Change struct {
	Collection string     `json:"collection"`
	ID         string     `json:"id"`
	Kind       ChangeKind `json:"kind"`
	// Fields carries the full document for a set, the changed fields for an
	// update, and {field: delta} for an increment. Nil for deletes and for
	// changes relayed from other processes.
	Fields  Document `json:"fields,omitempty"`
	Pending bool     `json:"pending,omitempty"`
}

// Store is the document database surface the engine depends on.
//
// Increment is the only write path to numeric running totals: it must be a
// single atomic add on the stored value. An implementation that reads the
// document, adds locally and writes the result back loses concurrent
// increments and is broken.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Set(ctx context.Context, collection, id string, doc Document) error
	Update(ctx context.Context, collection, id string, fields Document) error
	Increment(ctx context.Context, collection, id, field string, delta float64) error
	Delete(ctx context.Context, collection, id string) error

	// Watch subscribes to the change feed for one collection. The returned
	// cancel func is safe to call more than once.
	Watch(collection string) (<-chan Change, func())
}

// Matches reports whether the document satisfies every filter. Documents
// missing a filtered field do not match equality filters.
func Matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		value, ok := doc[f.Field]
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if !equalValue(value, f.Value) {
				return false
			}
		case OpGreaterOrEqual:
			if !atLeastValue(value, f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	if fa, fb, ok := bothFloats(a, b); ok {
		return fa == fb
	}
	return a == b
}

func atLeastValue(a, b any) bool {
	if fa, fb, ok := bothFloats(a, b); ok {
		return fa >= fb
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return sa >= sb
	}
	return false
}

func bothFloats(a, b any) (float64, float64, bool) {
	fa, aok := asFloat(a)
	fb, bok := asFloat(b)
	return fa, fb, aok && bok
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
