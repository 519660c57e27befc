package mongo

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/xenking/marketplace/internal/docstore"
)

func TestCompileFilter(t *testing.T) {
	oid := primitive.NewObjectID()

	for _, tt := range []struct {
		name   string
		filter docstore.Filter
		want   bson.M
	}{
		{"Empty", nil, bson.M{}},
		{"Eq", docstore.Filter{docstore.Eq{Field: "user_id", Value: "u1"}}, bson.M{"user_id": "u1"}},
		{"ID", docstore.ByID(oid.Hex()), bson.M{"_id": oid}},
		{"Contains", docstore.Filter{docstore.Contains{Field: "title", Term: "Red-Shoe"}},
			bson.M{"title": primitive.Regex{Pattern: `red[\s_-]+shoe`, Options: "i"}}},
		{"BlankContains", docstore.Filter{docstore.Contains{Field: "title", Term: " "}}, bson.M{}},
		{"Conjunction", docstore.Filter{
			docstore.Eq{Field: "shop_id", Value: "s1"},
			docstore.Or{
				docstore.Contains{Field: "title", Term: "hat"},
				docstore.Contains{Field: "tags", Term: "hat"},
			},
		}, bson.M{"$and": bson.A{
			bson.M{"shop_id": "s1"},
			bson.M{"$or": bson.A{
				bson.M{"title": primitive.Regex{Pattern: "hat", Options: "i"}},
				bson.M{"tags": primitive.Regex{Pattern: "hat", Options: "i"}},
			}},
		}}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compileFilter(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileFilter_InvalidID(t *testing.T) {
	_, err := compileFilter(docstore.ByID("not-an-object-id"))
	assert.ErrorIs(t, err, docstore.ErrInvalidID)
}

func TestSearchPattern(t *testing.T) {
	pattern := searchPattern("red shoe (sale)")
	assert.Equal(t, `red[\s_-]+shoe[\s_-]+\(sale\)`, pattern)

	re := regexp.MustCompile("(?i)" + searchPattern("red shoe"))
	assert.True(t, re.MatchString("Red Shoes"))
	assert.True(t, re.MatchString("red-shoe-sale"))
	assert.False(t, re.MatchString("redshoe"))
}

func TestToDocument(t *testing.T) {
	oid := primitive.NewObjectID()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	doc := toDocument(bson.M{
		"_id":     oid,
		"qty":     int32(2),
		"created": primitive.NewDateTimeFromTime(at),
		"items":   bson.A{bson.M{"product_id": "p1", "qty": int32(1)}},
		"meta":    bson.D{{Key: "k", Value: "v"}},
	})

	assert.Equal(t, docstore.Document{
		"id":      oid.Hex(),
		"qty":     int64(2),
		"created": at,
		"items":   []any{map[string]any{"product_id": "p1", "qty": int64(1)}},
		"meta":    map[string]any{"k": "v"},
	}, doc)
	assert.NotContains(t, doc, "_id")
}

func TestToBSON_Decimal(t *testing.T) {
	price, err := primitive.ParseDecimal128("12345678901234567.89")
	require.NoError(t, err)

	got, err := toBSON(docstore.Document{
		"price": json.Number("12345678901234567.89"),
		"qty":   int64(2),
		"items": []any{map[string]any{"price": json.Number("12345678901234567.89")}},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"price": price,
		"qty":   int64(2),
		"items": bson.A{bson.M{"price": price}},
	}, got)

	doc := toDocument(bson.M{"price": price})
	assert.Equal(t, json.Number("12345678901234567.89"), doc["price"])

	_, err = toBSON(docstore.Document{"price": json.Number("12.3.4")})
	assert.Error(t, err)
}
