package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/marketplace/internal/docstore"
)

const (
	insertDocumentSQL = `INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb)`

	selectDocumentsSQL = `SELECT id::text, body FROM documents WHERE collection = $1`

	updateDocumentSQL = `UPDATE documents SET body = body || $3::jsonb WHERE collection = $1 AND id = $2`

	deleteDocumentSQL = `DELETE FROM documents WHERE collection = $1 AND id = $2`

	listCollectionsSQL = `SELECT DISTINCT collection FROM documents ORDER BY collection`
)

var _ docstore.Store = (*Store)(nil)

// Store implements docstore.Store on the documents table. Identifiers are
// UUIDs generated by the application.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store that uses the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Insert(ctx context.Context, collection string, doc docstore.Document) (string, error) {
	body, err := json.Marshal(docstore.WithoutID(doc))
	if err != nil {
		return "", fmt.Errorf("marshaling %s document: %w", collection, err)
	}

	id := uuid.New()
	if _, err := s.pool.Exec(ctx, insertDocumentSQL, collection, id, string(body)); err != nil {
		return "", fmt.Errorf("inserting %s document: %w", collection, err)
	}
	return id.String(), nil
}

func (s *Store) Find(ctx context.Context, collection string, f docstore.Filter, limit int) ([]docstore.Document, error) {
	b := &whereBuilder{args: []any{collection}}
	where, err := b.build(f)
	if err != nil {
		return nil, err
	}

	sql := selectDocumentsSQL
	if where != "" {
		sql += " AND " + where
	}
	sql += " ORDER BY seq"
	if limit > 0 {
		sql += " LIMIT " + strconv.Itoa(limit)
	}

	rows, err := s.pool.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	docs, err := pgx.CollectRows(rows, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", collection, err)
	}
	return docs, nil
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
	uid, err := parseID(id)
	if err != nil {
		return false, err
	}
	patch, err := json.Marshal(docstore.WithoutID(fields))
	if err != nil {
		return false, fmt.Errorf("marshaling %s patch: %w", collection, err)
	}

	tag, err := s.pool.Exec(ctx, updateDocumentSQL, collection, uid, string(patch))
	if err != nil {
		return false, fmt.Errorf("updating %s %q: %w", collection, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeleteOne(ctx context.Context, collection, id string) (bool, error) {
	uid, err := parseID(id)
	if err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx, deleteDocumentSQL, collection, uid)
	if err != nil {
		return false, fmt.Errorf("deleting %s %q: %w", collection, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, listCollectionsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func scanDocument(row pgx.CollectableRow) (docstore.Document, error) {
	var (
		id   string
		body []byte
	)
	if err := row.Scan(&id, &body); err != nil {
		return nil, err
	}
	doc, err := docstore.UnmarshalDocument(body)
	if err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", id, err)
	}
	doc[docstore.IDField] = id
	return doc, nil
}
