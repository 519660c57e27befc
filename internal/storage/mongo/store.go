// Package mongo implements docstore.Store on top of MongoDB.
package mongo

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/xenking/marketplace/internal/docstore"
)

var _ docstore.Store = (*Store)(nil)

// separatorPattern matches what docstore.NormalizeText collapses between
// words.
const separatorPattern = `[\s_-]+`

// Store is a docstore.Store backed by a MongoDB database. Identifiers are
// ObjectID hex strings.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client for uri and selects database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}
	return New(client, database), nil
}

// New wraps an existing client.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, docstore.ErrInvalidID
	}
	return oid, nil
}

func (s *Store) Insert(ctx context.Context, collection string, doc docstore.Document) (string, error) {
	body, err := toBSON(docstore.WithoutID(doc))
	if err != nil {
		return "", err
	}
	res, err := s.db.Collection(collection).InsertOne(ctx, body)
	if err != nil {
		return "", errors.Wrap(err, "insert one")
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *Store) Find(ctx context.Context, collection string, f docstore.Filter, limit int) ([]docstore.Document, error) {
	q, err := compileFilter(f)
	if err != nil {
		return nil, err
	}
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.db.Collection(collection).Find(ctx, q, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find")
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, errors.Wrap(err, "read cursor")
	}

	out := make([]docstore.Document, len(raw))
	for i, m := range raw {
		out[i] = toDocument(m)
	}
	return out, nil
}

func (s *Store) FindOne(ctx context.Context, collection string, f docstore.Filter) (docstore.Document, error) {
	q, err := compileFilter(f)
	if err != nil {
		return nil, err
	}

	var m bson.M
	if err := s.db.Collection(collection).FindOne(ctx, q).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, docstore.ErrNotFound
		}
		return nil, errors.Wrap(err, "find one")
	}
	return toDocument(m), nil
}

func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields docstore.Document) (bool, error) {
	oid, err := parseID(id)
	if err != nil {
		return false, err
	}
	coll := s.db.Collection(collection)
	set := docstore.WithoutID(fields)

	// $set rejects an empty document.
	if len(set) == 0 {
		n, err := coll.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
		if err != nil {
			return false, errors.Wrap(err, "count")
		}
		return n > 0, nil
	}

	body, err := toBSON(set)
	if err != nil {
		return false, err
	}
	res, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": body})
	if err != nil {
		return false, errors.Wrap(err, "update one")
	}
	return res.MatchedCount > 0, nil
}

func (s *Store) DeleteOne(ctx context.Context, collection, id string) (bool, error) {
	oid, err := parseID(id)
	if err != nil {
		return false, err
	}
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, errors.Wrap(err, "delete one")
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) Collections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, errors.Wrap(err, "list collections")
	}
	return names, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Name returns the selected database name.
func (s *Store) Name() string { return s.db.Name() }

// compileFilter translates a docstore.Filter into a MongoDB query document.
func compileFilter(f docstore.Filter) (bson.M, error) {
	conds := make(bson.A, 0, len(f))
	for _, c := range f {
		q, err := compileCond(c)
		if err != nil {
			return nil, err
		}
		if q != nil {
			conds = append(conds, q)
		}
	}
	switch len(conds) {
	case 0:
		return bson.M{}, nil
	case 1:
		return conds[0].(bson.M), nil
	default:
		return bson.M{"$and": conds}, nil
	}
}

// compileCond returns nil for conditions matching every document.
func compileCond(c docstore.Cond) (bson.M, error) {
	switch c := c.(type) {
	case docstore.Eq:
		if c.Field == docstore.IDField {
			id, _ := c.Value.(string)
			oid, err := parseID(id)
			if err != nil {
				return nil, err
			}
			return bson.M{"_id": oid}, nil
		}
		return bson.M{c.Field: c.Value}, nil
	case docstore.Contains:
		pattern := searchPattern(c.Term)
		if pattern == "" {
			return nil, nil
		}
		// A regex on an array field matches when any element matches.
		return bson.M{c.Field: primitive.Regex{Pattern: pattern, Options: "i"}}, nil
	case docstore.Or:
		alts := make(bson.A, 0, len(c))
		for _, sub := range c {
			q, err := compileCond(sub)
			if err != nil {
				return nil, err
			}
			if q == nil {
				return nil, nil
			}
			alts = append(alts, q)
		}
		if len(alts) == 0 {
			return nil, nil
		}
		return bson.M{"$or": alts}, nil
	default:
		return nil, errors.Errorf("unsupported condition %T", c)
	}
}

// searchPattern builds a regular expression equivalent to a normalized
// substring match of term.
func searchPattern(term string) string {
	words := docstore.SearchWords(term)
	if len(words) == 0 {
		return ""
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, separatorPattern)
}

func toDocument(m bson.M) docstore.Document {
	doc := make(docstore.Document, len(m))
	for k, v := range m {
		if k == "_id" {
			doc[docstore.IDField] = idString(v)
			continue
		}
		doc[k] = fromBSON(v)
	}
	return doc
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return ""
	}
}

// toBSON converts doc for the driver. Numbers kept as json.Number are
// stored as Decimal128, which the driver would otherwise write as double.
func toBSON(doc docstore.Document) (bson.M, error) {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		bv, err := toBSONValue(v)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", k)
		}
		out[k] = bv
	}
	return out, nil
}

func toBSONValue(v any) (any, error) {
	switch v := v.(type) {
	case json.Number:
		d, err := primitive.ParseDecimal128(v.String())
		if err != nil {
			return nil, errors.Wrap(err, "parse decimal")
		}
		return d, nil
	case map[string]any:
		return toBSON(v)
	case []any:
		out := make(bson.A, len(v))
		for i, e := range v {
			bv, err := toBSONValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = bv
		}
		return out, nil
	default:
		return v, nil
	}
}

func fromBSON(v any) any {
	switch v := v.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC()
	case primitive.Decimal128:
		return json.Number(v.String())
	case bson.M:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = fromBSON(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(v))
		for _, e := range v {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = fromBSON(e)
		}
		return out
	case int32:
		return int64(v)
	default:
		return v
	}
}
