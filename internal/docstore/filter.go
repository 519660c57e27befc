package docstore

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Cond is a single filter condition.
type Cond interface {
	isCond()
}

// Filter is a conjunction of conditions. The empty filter matches every
// document.
type Filter []Cond

// Eq matches documents whose Field equals Value. Field "id" targets the
// document identifier.
type Eq struct {
	Field string
	Value any
}

// Contains matches documents whose Field contains Term as a case-insensitive
// substring. When Field holds a list, any element may match. Both sides are
// normalized with NormalizeText before comparison.
type Contains struct {
	Field string
	Term  string
}

// Or matches documents satisfying at least one of its conditions.
type Or []Cond

func (Eq) isCond()       {}
func (Contains) isCond() {}
func (Or) isCond()       {}

// ByID returns a filter matching the document with the given identifier.
func ByID(id string) Filter {
	return Filter{Eq{Field: IDField, Value: id}}
}

// IDCondition returns the identifier targeted by a top-level Eq on "id".
func (f Filter) IDCondition() (string, bool) {
	for _, c := range f {
		if eq, ok := c.(Eq); ok && eq.Field == IDField {
			id, ok := eq.Value.(string)
			return id, ok
		}
	}
	return "", false
}

// NormalizeText lower-cases s and collapses every run of whitespace, '-' and
// '_' into a single space, trimming the ends. "Red-Shoe_SALE" becomes
// "red shoe sale".
func NormalizeText(s string) string {
	s = cases.Lower(language.Und).String(s)
	var b strings.Builder
	b.Grow(len(s))
	sep := false
	for _, r := range s {
		if isSeparator(r) {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte(' ')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

// SearchWords splits a search term into its normalized words.
func SearchWords(term string) []string {
	n := NormalizeText(term)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '-' || r == '_'
}

// Match reports whether doc satisfies f.
func Match(doc Document, f Filter) bool {
	for _, c := range f {
		if !matchCond(doc, c) {
			return false
		}
	}
	return true
}

func matchCond(doc Document, c Cond) bool {
	switch c := c.(type) {
	case Eq:
		v, ok := doc[c.Field]
		if !ok {
			return c.Value == nil
		}
		return equalValues(v, c.Value)
	case Contains:
		return containsText(doc[c.Field], NormalizeText(c.Term))
	case Or:
		for _, sub := range c {
			if matchCond(doc, sub) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func containsText(v any, needle string) bool {
	switch v := v.(type) {
	case string:
		return strings.Contains(NormalizeText(v), needle)
	case []string:
		for _, s := range v {
			if strings.Contains(NormalizeText(s), needle) {
				return true
			}
		}
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && strings.Contains(NormalizeText(s), needle) {
				return true
			}
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if da, ok := toDecimal(a); ok {
		if db, ok := toDecimal(b); ok {
			return da.Equal(db)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case float32:
		return toDecimal(float64(n))
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(n), true
	case json.Number:
		d, err := decimal.NewFromString(string(n))
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}
