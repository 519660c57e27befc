package docstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	for _, tt := range []struct {
		in, want string
	}{
		{"", ""},
		{"Red Shoes", "red shoes"},
		{"red-shoe-sale", "red shoe sale"},
		{"  Red__Shoe -- SALE  ", "red shoe sale"},
		{"ÉTÉ\tCollection", "été collection"},
		{"---", ""},
	} {
		assert.Equal(t, tt.want, NormalizeText(tt.in), "input %q", tt.in)
	}
}

func TestSearchWords(t *testing.T) {
	assert.Nil(t, SearchWords("  -_ "))
	assert.Equal(t, []string{"red", "shoe"}, SearchWords("Red-Shoe"))
}

func TestFilterIDCondition(t *testing.T) {
	id, ok := ByID("abc").IDCondition()
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = Filter{Eq{Field: "user_id", Value: "abc"}}.IDCondition()
	assert.False(t, ok)

	_, ok = Filter{Eq{Field: IDField, Value: 42}}.IDCondition()
	assert.False(t, ok)
}

func TestMatch(t *testing.T) {
	doc := Document{
		"id":       "p1",
		"title":    "Red Shoes",
		"category": "shoes",
		"stock":    int64(3),
		"price":    12.5,
		"total":    json.Number("12345678901234567.89"),
		"tags":     []any{"footwear", "red-shoe-sale"},
		"labels":   []string{"Summer_Drop"},
	}

	for _, tt := range []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"Empty", nil, true},
		{"EqString", Filter{Eq{Field: "category", Value: "shoes"}}, true},
		{"EqStringMismatch", Filter{Eq{Field: "category", Value: "bags"}}, false},
		{"EqNumberAcrossTypes", Filter{Eq{Field: "stock", Value: 3}}, true},
		{"EqFloat", Filter{Eq{Field: "price", Value: 12.5}}, true},
		{"EqExactNumber", Filter{Eq{Field: "total", Value: json.Number("12345678901234567.890")}}, true},
		{"EqExactNumberVsFloat", Filter{Eq{Field: "total", Value: 12345678901234567.89}}, false},
		{"EqFloatVsNumber", Filter{Eq{Field: "price", Value: json.Number("12.50")}}, true},
		{"EqNumberVsString", Filter{Eq{Field: "stock", Value: "3"}}, false},
		{"EqMissingField", Filter{Eq{Field: "shop_id", Value: "s1"}}, false},
		{"EqID", ByID("p1"), true},
		{"ContainsTitle", Filter{Contains{Field: "title", Term: "red shoe"}}, true},
		{"ContainsCaseInsensitive", Filter{Contains{Field: "title", Term: "SHOES"}}, true},
		{"ContainsAnyTag", Filter{Contains{Field: "tags", Term: "Red Shoe"}}, true},
		{"ContainsStringSlice", Filter{Contains{Field: "labels", Term: "summer drop"}}, true},
		{"ContainsNoMatch", Filter{Contains{Field: "title", Term: "hat"}}, false},
		{"ContainsNonString", Filter{Contains{Field: "stock", Term: "3"}}, false},
		{"OrOneSide", Filter{Or{
			Contains{Field: "title", Term: "hat"},
			Contains{Field: "tags", Term: "footwear"},
		}}, true},
		{"OrNeither", Filter{Or{
			Contains{Field: "title", Term: "hat"},
			Contains{Field: "tags", Term: "hat"},
		}}, false},
		{"Conjunction", Filter{
			Eq{Field: "category", Value: "shoes"},
			Contains{Field: "title", Term: "blue"},
		}, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(doc, tt.filter))
		})
	}
}

func TestWithoutID(t *testing.T) {
	in := Document{"id": "x", "_id": "y", "name": "n"}
	out := WithoutID(in)

	assert.Equal(t, Document{"name": "n"}, out)
	assert.Len(t, in, 3, "input is not modified")
}
