package docstore

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator is implemented by entities that check their own constraints.
type Validator interface {
	Validate() error
}

// Collection is a typed view over one collection of a Store. Entities are
// converted to documents through their JSON representation, so the json
// struct tags of T define the stored field names. T is expected to expose
// its identifier under the "id" JSON key.
type Collection[T any] struct {
	store Store
	name  string
}

// NewCollection returns a Collection named name backed by s.
func NewCollection[T any](s Store, name string) *Collection[T] {
	return &Collection[T]{store: s, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Create validates v, stores it and returns the generated identifier.
func (c *Collection[T]) Create(ctx context.Context, v *T) (string, error) {
	if val, ok := any(v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return "", err
		}
	}
	doc, err := Encode(v)
	if err != nil {
		return "", errors.Wrapf(err, "encode %s", c.name)
	}
	id, err := c.store.Insert(ctx, c.name, doc)
	if err != nil {
		return "", errors.Wrapf(err, "insert %s", c.name)
	}
	return id, nil
}

// Get returns the entity with the given identifier.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	return c.FindOne(ctx, ByID(id))
}

// FindOne returns the first entity matching f.
func (c *Collection[T]) FindOne(ctx context.Context, f Filter) (*T, error) {
	doc, err := c.store.FindOne(ctx, c.name, f)
	if err != nil {
		return nil, errors.Wrapf(err, "find one %s", c.name)
	}
	v := new(T)
	if err := Decode(doc, v); err != nil {
		return nil, errors.Wrapf(err, "decode %s", c.name)
	}
	return v, nil
}

// Find returns up to limit entities matching f.
func (c *Collection[T]) Find(ctx context.Context, f Filter, limit int) ([]T, error) {
	docs, err := c.store.Find(ctx, c.name, f, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "find %s", c.name)
	}
	out := make([]T, len(docs))
	for i, doc := range docs {
		if err := Decode(doc, &out[i]); err != nil {
			return nil, errors.Wrapf(err, "decode %s %q", c.name, doc.ID())
		}
	}
	return out, nil
}

// UpdateFields merges fields into the stored entity.
func (c *Collection[T]) UpdateFields(ctx context.Context, id string, fields Document) (bool, error) {
	ok, err := c.store.UpdateFields(ctx, c.name, id, WithoutID(fields))
	if err != nil {
		return false, errors.Wrapf(err, "update %s", c.name)
	}
	return ok, nil
}

// Delete removes the entity with the given identifier.
func (c *Collection[T]) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := c.store.DeleteOne(ctx, c.name, id)
	if err != nil {
		return false, errors.Wrapf(err, "delete %s", c.name)
	}
	return ok, nil
}

// Encode converts v into a Document through its JSON form. Identifier keys
// are dropped. JSON numbers become int64 when integral and float64 when the
// float is exact; any other number stays a json.Number so money keeps every
// digit.
func Encode(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc, err := UnmarshalDocument(data)
	if err != nil {
		return nil, err
	}
	return WithoutID(doc), nil
}

// Decode fills v from doc through its JSON form.
func Decode(doc Document, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, ok := exactFloat(v); ok {
			return f
		}
		return v
	case map[string]any:
		for k, e := range v {
			v[k] = normalizeNumbers(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = normalizeNumbers(e)
		}
		return v
	default:
		return v
	}
}

// exactFloat reports whether n survives a float64 round trip without losing
// digits.
func exactFloat(n json.Number) (float64, bool) {
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, false
	}
	return f, decimal.NewFromFloat(f).Equal(d)
}

// UnmarshalDocument parses a JSON object into a Document using the same
// number conversion as Encode.
func UnmarshalDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	doc := make(Document, len(raw))
	for k, v := range raw {
		doc[k] = normalizeNumbers(v)
	}
	return doc, nil
}
