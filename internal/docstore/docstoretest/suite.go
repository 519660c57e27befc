// Package docstoretest holds the behavior every docstore.Store backend must
// share, packaged as a testify suite.
package docstoretest

import (
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/xenking/marketplace/internal/docstore"
	"github.com/xenking/marketplace/internal/domain"
)

// Item is the record stored by the suite.
type Item struct {
	ID    string   `json:"id,omitempty"`
	Owner string   `json:"owner"`
	Title string   `json:"title"`
	Qty   int      `json:"qty"`
	Tags  []string `json:"tags"`
}

// Priced carries a money amount that a float64 cannot represent.
type Priced struct {
	ID    string       `json:"id,omitempty"`
	Price domain.Money `json:"price"`
	Qty   int          `json:"qty"`
}

// Suite runs the store contract against Store. Backends embed it and set
// Store (and MissingID) in SetupSuite.
type Suite struct {
	suite.Suite

	Store docstore.Store
	// MissingID is a well-formed identifier that no document carries.
	MissingID string
	// MalformedID is rejected by the backend with docstore.ErrInvalidID.
	MalformedID string
}

// collection returns a collection name unique to the running test.
func (s *Suite) collection() *docstore.Collection[Item] {
	name := "item_" + strings.ToLower(gofakeit.LetterN(10))
	return docstore.NewCollection[Item](s.Store, name)
}

func fakeItem(owner string) Item {
	return Item{
		Owner: owner,
		Title: gofakeit.ProductName(),
		Qty:   gofakeit.IntRange(1, 20),
		Tags:  []string{gofakeit.Noun(), gofakeit.Adjective()},
	}
}

func (s *Suite) TestInsertAndGet() {
	t := s.T()
	ctx := t.Context()
	c := s.collection()

	item := fakeItem("alice")
	id, err := c.Create(ctx, &item)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	item.ID = id
	if diff := cmp.Diff(item, *got); diff != "" {
		t.Errorf("stored item mismatch (-want +got):\n%s", diff)
	}
}

func (s *Suite) TestFindByFilter() {
	t := s.T()
	ctx := t.Context()
	c := s.collection()

	var aliceIDs []string
	for i := range 5 {
		owner := "alice"
		if i%2 == 1 {
			owner = "bob"
		}
		item := fakeItem(owner)
		id, err := c.Create(ctx, &item)
		require.NoError(t, err)
		if owner == "alice" {
			aliceIDs = append(aliceIDs, id)
		}
	}

	found, err := c.Find(ctx, docstore.Filter{docstore.Eq{Field: "owner", Value: "alice"}}, 0)
	require.NoError(t, err)
	require.ElementsMatch(t, aliceIDs, lo.Map(found, func(it Item, _ int) string { return it.ID }))

	limited, err := c.Find(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)

	none, err := c.Find(ctx, docstore.Filter{docstore.Eq{Field: "owner", Value: "carol"}}, 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func (s *Suite) TestSearch() {
	t := s.T()
	ctx := t.Context()
	c := s.collection()

	for _, it := range []Item{
		{Owner: "a", Title: "Red Shoes", Tags: []string{"footwear"}},
		{Owner: "a", Title: "Blue Hat", Tags: []string{"red-shoe-sale"}},
		{Owner: "b", Title: "Green Scarf", Tags: []string{"winter"}},
	} {
		_, err := c.Create(ctx, &it)
		require.NoError(t, err)
	}

	search := docstore.Or{
		docstore.Contains{Field: "title", Term: "RED shoe"},
		docstore.Contains{Field: "tags", Term: "RED shoe"},
	}
	found, err := c.Find(ctx, docstore.Filter{search}, 0)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Red Shoes", "Blue Hat"}, lo.Map(found, func(it Item, _ int) string { return it.Title }))

	found, err = c.Find(ctx, docstore.Filter{docstore.Eq{Field: "owner", Value: "b"}, search}, 0)
	require.NoError(t, err)
	require.Empty(t, found)
}

func (s *Suite) TestUpdateFields() {
	t := s.T()
	ctx := t.Context()
	c := s.collection()

	item := fakeItem("alice")
	id, err := c.Create(ctx, &item)
	require.NoError(t, err)

	ok, err := c.UpdateFields(ctx, id, docstore.Document{"qty": 42, "tags": []any{}})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 42, got.Qty)
	require.Empty(t, got.Tags)
	require.Equal(t, item.Title, got.Title)

	ok, err = c.UpdateFields(ctx, s.MissingID, docstore.Document{"qty": 1})
	require.NoError(t, err)
	require.False(t, ok)
}

func (s *Suite) TestDelete() {
	t := s.T()
	ctx := t.Context()
	c := s.collection()

	item := fakeItem("alice")
	id, err := c.Create(ctx, &item)
	require.NoError(t, err)

	ok, err := c.Delete(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.Delete(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = c.Get(ctx, id)
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func (s *Suite) TestInvalidID() {
	t := s.T()
	ctx := t.Context()
	c := s.collection()

	_, err := c.Get(ctx, s.MalformedID)
	require.ErrorIs(t, err, docstore.ErrInvalidID)
	_, err = c.UpdateFields(ctx, s.MalformedID, docstore.Document{"qty": 1})
	require.ErrorIs(t, err, docstore.ErrInvalidID)
	_, err = c.Delete(ctx, s.MalformedID)
	require.ErrorIs(t, err, docstore.ErrInvalidID)

	_, err = c.Get(ctx, s.MissingID)
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func (s *Suite) TestCollections() {
	t := s.T()
	ctx := t.Context()
	c := s.collection()

	item := fakeItem("alice")
	_, err := c.Create(ctx, &item)
	require.NoError(t, err)

	names, err := s.Store.Collections(ctx)
	require.NoError(t, err)
	require.Contains(t, names, c.Name())
	require.NoError(t, s.Store.Ping(ctx))
}

func (s *Suite) TestExactNumbers() {
	t := s.T()
	ctx := t.Context()
	c := docstore.NewCollection[Priced](s.Store, "priced_"+strings.ToLower(gofakeit.LetterN(10)))

	price := domain.MustMoney("12345678901234567.89")
	id, err := c.Create(ctx, &Priced{Price: price, Qty: 3})
	require.NoError(t, err)

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, price.Equal(got.Price.Decimal), "stored price %s", got.Price)
	require.Equal(t, 3, got.Qty)

	patch, err := docstore.Encode(Priced{Price: domain.MustMoney("0.30000000000000000001")})
	require.NoError(t, err)
	ok, err := c.UpdateFields(ctx, id, docstore.Document{"price": patch["price"]})
	require.NoError(t, err)
	require.True(t, ok)

	got, err = c.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "0.30000000000000000001", got.Price.String())
}
