// Package memory implements docstore.Store in process memory.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/xenking/marketplace/internal/docstore"
)

var _ docstore.Store = (*Store)(nil)

type collection struct {
	order []string
	docs  map[string]docstore.Document
}

// Store keeps documents in memory. Results are returned in insertion order.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// New returns an empty Store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func parseID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return docstore.ErrInvalidID
	}
	return nil
}

func checkFilter(f docstore.Filter) error {
	if id, ok := f.IDCondition(); ok {
		return parseID(id)
	}
	return nil
}

func (s *Store) Insert(_ context.Context, name string, doc docstore.Document) (string, error) {
	id := uuid.NewString()
	stored := cloneDoc(docstore.WithoutID(doc))

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]docstore.Document)}
		s.collections[name] = c
	}
	c.order = append(c.order, id)
	c.docs[id] = stored
	return id, nil
}

func (s *Store) Find(_ context.Context, name string, f docstore.Filter, limit int) ([]docstore.Document, error) {
	if err := checkFilter(f); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return []docstore.Document{}, nil
	}
	out := make([]docstore.Document, 0)
	for _, id := range c.order {
		doc, ok := c.docs[id]
		if !ok {
			continue
		}
		rendered := render(id, doc)
		if !docstore.Match(rendered, f) {
			continue
		}
		out = append(out, rendered)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) FindOne(ctx context.Context, name string, f docstore.Filter) (docstore.Document, error) {
	docs, err := s.Find(ctx, name, f, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	return docs[0], nil
}

func (s *Store) UpdateFields(_ context.Context, name, id string, fields docstore.Document) (bool, error) {
	if err := parseID(id); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return false, nil
	}
	doc, ok := c.docs[id]
	if !ok {
		return false, nil
	}
	for k, v := range docstore.WithoutID(fields) {
		doc[k] = cloneValue(v)
	}
	return true, nil
}

func (s *Store) DeleteOne(_ context.Context, name, id string) (bool, error) {
	if err := parseID(id); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return false, nil
	}
	if _, ok := c.docs[id]; !ok {
		return false, nil
	}
	delete(c.docs, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) Collections(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func render(id string, doc docstore.Document) docstore.Document {
	out := cloneDoc(doc)
	out[docstore.IDField] = id
	return out
}

func cloneDoc(doc docstore.Document) docstore.Document {
	out := make(docstore.Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case docstore.Document:
		return cloneDoc(v)
	case map[string]any:
		return map[string]any(cloneDoc(v))
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	default:
		return v
	}
}
