package product

import "github.com/xenking/marketplace/internal/docstore"

// DefaultLimit caps product listings when the caller gives no limit.
const DefaultLimit = 50

// Query selects products for listing. Conditions are conjunctive and empty
// fields are left out of the compiled filter entirely.
type Query struct {
	ShopID   string
	Category string
	// Q is a free-text term matched against the title or any tag.
	Q     string
	Limit int
}

// Filter compiles q into a store filter.
func (q Query) Filter() docstore.Filter {
	var f docstore.Filter
	if q.ShopID != "" {
		f = append(f, docstore.Eq{Field: "shop_id", Value: q.ShopID})
	}
	if q.Category != "" {
		f = append(f, docstore.Eq{Field: "category", Value: q.Category})
	}
	if q.Q != "" {
		f = append(f, docstore.Or{
			docstore.Contains{Field: "title", Term: q.Q},
			docstore.Contains{Field: "tags", Term: q.Q},
		})
	}
	return f
}

// limit returns the effective result cap.
func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}
