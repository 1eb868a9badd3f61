// Package store abstracts the document database the sync layer runs
// against. Components receive a Gateway instead of talking to Firestore
// directly, so tests can substitute the in-memory implementation.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrExists   = errors.New("document already exists")
)

// Document is a stored record: its id plus the decoded field map.
type Document struct {
	ID   string
	Data map[string]any
}

// Filter is a single query predicate. Supported ops are "==" and
// "array-contains".
type Filter struct {
	Path  string
	Op    string
	Value any
}

// Query describes a filtered, ordered read of one collection. Path is a
// slash-separated collection path, e.g. "chats/abc/messages".
type Query struct {
	Path    string
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

type Gateway interface {
	// Get reads one document, returning ErrNotFound when absent.
	Get(ctx context.Context, path, id string) (Document, error)
	// Add stores data under a fresh id and returns it.
	Add(ctx context.Context, path string, data map[string]any) (string, error)
	// Create stores data under the given id, failing with ErrExists when
	// the id is already taken. This is the compare-and-swap primitive the
	// chat dedup path relies on.
	Create(ctx context.Context, path, id string, data map[string]any) error
	// Set overwrites a document, or merges fields into it when merge is true.
	Set(ctx context.Context, path, id string, data map[string]any, merge bool) error
	// Update patches fields of an existing document.
	Update(ctx context.Context, path, id string, data map[string]any) error
	// Query returns one snapshot of the matching documents.
	Query(ctx context.Context, q Query) ([]Document, error)
	// Subscribe opens a live snapshot stream for the query. The first
	// snapshot is delivered without waiting for a remote change.
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
	// ServerTimestamp returns the sentinel resolved to the write time by
	// the store.
	ServerTimestamp() any
}
