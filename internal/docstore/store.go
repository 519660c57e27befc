// Package docstore defines the document store contract shared by every
// collection of the marketplace, together with the filter language used to
// query it and a typed collection wrapper on top.
//
// Backends live under internal/storage. They must honor two rules:
//   - a malformed identifier fails with ErrInvalidID before the backend is
//     contacted;
//   - returned documents expose the identifier as the "id" field and never
//     carry the backend-native key.
package docstore

import (
	"context"

	"github.com/go-faster/errors"
)

// IDField is the name under which document identifiers are rendered.
const IDField = "id"

var (
	// ErrInvalidID is returned when a caller-supplied identifier is malformed.
	ErrInvalidID = errors.New("invalid id")
	// ErrNotFound is returned when no document matches a lookup.
	ErrNotFound = errors.New("document not found")
)

// Document is a schema-flexible record as stored in a collection.
type Document map[string]any

// ID returns the rendered document identifier, or "" if absent.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Store is a document store organized in named collections.
type Store interface {
	// Insert stores doc in collection and returns the generated identifier.
	// Any "id" field of doc is ignored.
	Insert(ctx context.Context, collection string, doc Document) (string, error)
	// Find returns up to limit documents matching f. A limit <= 0 means no
	// limit.
	Find(ctx context.Context, collection string, f Filter, limit int) ([]Document, error)
	// FindOne returns the first document matching f or ErrNotFound.
	FindOne(ctx context.Context, collection string, f Filter) (Document, error)
	// UpdateFields merges fields into the top level of the document and
	// reports whether a document with the given id existed.
	UpdateFields(ctx context.Context, collection, id string, fields Document) (bool, error)
	// DeleteOne removes the document and reports whether it existed.
	DeleteOne(ctx context.Context, collection, id string) (bool, error)

	// Collections lists the collection names known to the backend.
	Collections(ctx context.Context) ([]string, error)
	// Ping checks connectivity with the backend.
	Ping(ctx context.Context) error
	// Close releases the backend connection.
	Close(ctx context.Context) error
}

// WithoutID returns a shallow copy of fields minus the identifier keys.
func WithoutID(fields Document) Document {
	out := make(Document, len(fields))
	for k, v := range fields {
		if k == IDField || k == "_id" {
			continue
		}
		out[k] = v
	}
	return out
}
