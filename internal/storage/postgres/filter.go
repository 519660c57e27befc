package postgres

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/marketplace/internal/docstore"
)

// normalizeSQL mirrors docstore.NormalizeText for a text expression.
const normalizeSQL = `btrim(regexp_replace(lower(%s), '[[:space:]_-]+', ' ', 'g'))`

// whereBuilder accumulates a parameterized WHERE clause. Placeholders are
// numbered after the arguments already present.
type whereBuilder struct {
	args []any
}

func (b *whereBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// build returns the SQL for f, or "" when f matches everything.
func (b *whereBuilder) build(f docstore.Filter) (string, error) {
	parts := make([]string, 0, len(f))
	for _, c := range f {
		sql, err := b.cond(c)
		if err != nil {
			return "", err
		}
		if sql != "" {
			parts = append(parts, sql)
		}
	}
	return strings.Join(parts, " AND "), nil
}

func (b *whereBuilder) cond(c docstore.Cond) (string, error) {
	switch c := c.(type) {
	case docstore.Eq:
		if c.Field == docstore.IDField {
			id, _ := c.Value.(string)
			uid, err := parseID(id)
			if err != nil {
				return "", err
			}
			return "id = " + b.arg(uid), nil
		}
		value, err := json.Marshal(c.Value)
		if err != nil {
			return "", errors.Wrapf(err, "encode %q value", c.Field)
		}
		return "(body -> " + b.arg(c.Field) + "::text) = " + b.arg(string(value)) + "::jsonb", nil
	case docstore.Contains:
		needle := docstore.NormalizeText(c.Term)
		if needle == "" {
			return "", nil
		}
		field := b.arg(c.Field) + "::text"
		pattern := b.arg("%" + escapeLike(needle) + "%")
		elem := strings.Replace(normalizeSQL, "%s", "e.v", 1)
		scalar := strings.Replace(normalizeSQL, "%s", "body ->> "+field, 1)
		return "(CASE WHEN jsonb_typeof(body -> " + field + ") = 'array'" +
			" THEN EXISTS (SELECT 1 FROM jsonb_array_elements_text(body -> " + field + ") AS e(v) WHERE " + elem + " LIKE " + pattern + ")" +
			" ELSE " + scalar + " LIKE " + pattern + " END)", nil
	case docstore.Or:
		alts := make([]string, 0, len(c))
		for _, sub := range c {
			sql, err := b.cond(sub)
			if err != nil {
				return "", err
			}
			if sql == "" {
				return "", nil
			}
			alts = append(alts, sql)
		}
		if len(alts) == 0 {
			return "", nil
		}
		return "(" + strings.Join(alts, " OR ") + ")", nil
	default:
		return "", errors.Errorf("unsupported condition %T", c)
	}
}

func parseID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, docstore.ErrInvalidID
	}
	return uid, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
