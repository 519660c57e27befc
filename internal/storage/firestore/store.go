// Package firestore implements docstore.Store on Google Cloud Firestore.
//
// Firestore has no substring operator, so only top-level equality
// conditions are pushed down to the query; the rest of the filter is
// evaluated in process with docstore.Match before the limit is applied.
package firestore

import (
	"context"
	"encoding/json"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/go-faster/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/xenking/marketplace/internal/docstore"
)

var _ docstore.Store = (*Store)(nil)

// maxIDBytes is the Firestore limit for document identifiers.
const maxIDBytes = 1500

// Store is a docstore.Store backed by Firestore. Identifiers are Firestore
// document IDs, generated with NewDoc on insert.
type Store struct {
	client    *firestore.Client
	projectID string
}

// Connect creates a client for projectID. An empty credentialsFile selects
// Application Default Credentials.
func Connect(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create firestore client")
	}
	return New(client, projectID), nil
}

// New wraps an existing client.
func New(client *firestore.Client, projectID string) *Store {
	return &Store{client: client, projectID: projectID}
}

// ProjectID returns the Google Cloud project of the client.
func (s *Store) ProjectID() string { return s.projectID }

func checkID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return docstore.ErrInvalidID
	case len(id) > maxIDBytes, strings.Contains(id, "/"):
		return docstore.ErrInvalidID
	case len(id) > 4 && strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__"):
		return docstore.ErrInvalidID
	}
	return nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *Store) Insert(ctx context.Context, collection string, doc docstore.Document) (string, error) {
	ref := s.client.Collection(collection).NewDoc()
	if _, err := ref.Create(ctx, toFirestore(docstore.WithoutID(doc))); err != nil {
		return "", errors.Wrap(err, "create document")
	}
	return ref.ID, nil
}

func (s *Store) Find(ctx context.Context, collection string, f docstore.Filter, limit int) ([]docstore.Document, error) {
	col := s.client.Collection(collection)

	if id, ok := f.IDCondition(); ok {
		if err := checkID(id); err != nil {
			return nil, err
		}
		snap, err := col.Doc(id).Get(ctx)
		if err != nil {
			if isNotFound(err) {
				return []docstore.Document{}, nil
			}
			return nil, errors.Wrap(err, "get document")
		}
		doc := toDocument(snap)
		if !docstore.Match(doc, f) {
			return []docstore.Document{}, nil
		}
		return []docstore.Document{doc}, nil
	}

	q := col.Query
	pushedAll := true
	for _, c := range f {
		eq, ok := c.(docstore.Eq)
		if !ok {
			pushedAll = false
			continue
		}
		q = q.WherePath(firestore.FieldPath{eq.Field}, "==", eq.Value)
	}
	if pushedAll && limit > 0 {
		q = q.Limit(limit)
	}

	it := q.Documents(ctx)
	defer it.Stop()

	out := make([]docstore.Document, 0)
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "iterate documents")
		}
		doc := toDocument(snap)
		if !docstore.Match(doc, f) {
			continue
		}
		out = append(out, doc)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) FindOne(ctx context.Context, collection string, f docstore.Filter) (docstore.Document, error) {
	docs, err := s.Find(ctx, collection, f, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	return docs[0], nil
}

func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields docstore.Document) (bool, error) {
	if err := checkID(id); err != nil {
		return false, err
	}
	ref := s.client.Collection(collection).Doc(id)

	set := docstore.WithoutID(fields)
	if len(set) == 0 {
		_, err := ref.Get(ctx)
		if err != nil {
			if isNotFound(err) {
				return false, nil
			}
			return false, errors.Wrap(err, "get document")
		}
		return true, nil
	}

	updates := make([]firestore.Update, 0, len(set))
	for k, v := range set {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: toFirestoreValue(v)})
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "update document")
	}
	return true, nil
}

func (s *Store) DeleteOne(ctx context.Context, collection, id string) (bool, error) {
	if err := checkID(id); err != nil {
		return false, err
	}
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx, firestore.Exists)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "delete document")
	}
	return true, nil
}

func (s *Store) Collections(ctx context.Context) ([]string, error) {
	refs, err := s.client.Collections(ctx).GetAll()
	if err != nil {
		return nil, errors.Wrap(err, "list collections")
	}
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.ID
	}
	return names, nil
}

// Ping performs a cheap read, Firestore has no dedicated ping call.
func (s *Store) Ping(ctx context.Context) error {
	it := s.client.Collections(ctx)
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return errors.Wrap(err, "firestore ping")
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	return s.client.Close()
}

// toFirestore prepares doc for the client. Firestore has no exact decimal
// type, so numbers kept as json.Number are stored as their decimal text.
func toFirestore(doc docstore.Document) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = toFirestoreValue(v)
	}
	return out
}

func toFirestoreValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		return v.String()
	case map[string]any:
		return toFirestore(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = toFirestoreValue(e)
		}
		return out
	default:
		return v
	}
}

func toDocument(snap *firestore.DocumentSnapshot) docstore.Document {
	data := snap.Data()
	doc := make(docstore.Document, len(data)+1)
	for k, v := range data {
		doc[k] = v
	}
	doc[docstore.IDField] = snap.Ref.ID
	return doc
}
