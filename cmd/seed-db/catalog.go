package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/marketplace/db"
	"github.com/xenking/marketplace/internal/docstore"
	"github.com/xenking/marketplace/internal/domain/product"
	"github.com/xenking/marketplace/internal/domain/shop"
	"github.com/xenking/marketplace/internal/domain/user"
)

// catalog is the seed file layout. Entries reference each other by Key,
// which is replaced by the generated store id on insert.
type catalog struct {
	Users    []seedUser    `json:"users"`
	Shops    []seedShop    `json:"shops"`
	Products []seedProduct `json:"products"`
}

type seedUser struct {
	Key string `json:"key"`
	user.User
}

type seedShop struct {
	Key    string `json:"key"`
	Vendor string `json:"vendor"`
	shop.Shop
}

type seedProduct struct {
	Shop string `json:"shop"`
	product.Product
}

// seedResult counts inserted entities.
type seedResult struct {
	Users    int
	Shops    int
	Products int
}

// readCatalog decodes a catalog file. Files ending in .gz are gunzipped.
// An empty path selects the built-in catalog.
func readCatalog(path string) (*catalog, error) {
	if path == "" {
		return decodeCatalog(bytes.NewReader(db.Catalog))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return decodeCatalog(r)
}

func decodeCatalog(r io.Reader) (*catalog, error) {
	var c catalog
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, errors.Wrap(err, "parse catalog")
	}
	return &c, nil
}

// seeder inserts a catalog level by level: users, then shops, then
// products. Inserts within a level run concurrently.
type seeder struct {
	lg          *zap.Logger
	users       *user.Repository
	shops       *shop.Repository
	products    *product.Repository
	concurrency int
}

func newSeeder(lg *zap.Logger, store docstore.Store, concurrency int) *seeder {
	return &seeder{
		lg:          lg,
		users:       user.NewRepository(store),
		shops:       shop.NewRepository(store),
		products:    product.NewRepository(store),
		concurrency: max(concurrency, 1),
	}
}

func (s *seeder) seed(ctx context.Context, c *catalog) (*seedResult, error) {
	userIDs, err := insertAll(ctx, s.concurrency, c.Users, func(ctx context.Context, u seedUser) (string, error) {
		return s.users.Create(ctx, &u.User)
	})
	if err != nil {
		return nil, errors.Wrap(err, "seed users")
	}
	s.lg.Info("Seeded users", zap.Int("count", len(userIDs)))
	userByKey := byKey(c.Users, userIDs, func(u seedUser) string { return u.Key })

	shopIDs, err := insertAll(ctx, s.concurrency, c.Shops, func(ctx context.Context, sh seedShop) (string, error) {
		if sh.Vendor != "" {
			id, ok := userByKey[sh.Vendor]
			if !ok {
				return "", errors.Errorf("shop %q: unknown vendor %q", sh.Name, sh.Vendor)
			}
			sh.VendorID = id
		}
		return s.shops.Create(ctx, &sh.Shop)
	})
	if err != nil {
		return nil, errors.Wrap(err, "seed shops")
	}
	s.lg.Info("Seeded shops", zap.Int("count", len(shopIDs)))
	shopByKey := byKey(c.Shops, shopIDs, func(sh seedShop) string { return sh.Key })
	vendorByShop := make(map[string]string, len(c.Shops))
	for i, sh := range c.Shops {
		vendor := sh.VendorID
		if sh.Vendor != "" {
			vendor = userByKey[sh.Vendor]
		}
		vendorByShop[shopIDs[i]] = vendor
	}

	productIDs, err := insertAll(ctx, s.concurrency, c.Products, func(ctx context.Context, p seedProduct) (string, error) {
		if p.Shop != "" {
			id, ok := shopByKey[p.Shop]
			if !ok {
				return "", errors.Errorf("product %q: unknown shop %q", p.Title, p.Shop)
			}
			p.ShopID = id
		}
		if p.VendorID == "" {
			p.VendorID = vendorByShop[p.ShopID]
		}
		return s.products.Create(ctx, &p.Product)
	})
	if err != nil {
		return nil, errors.Wrap(err, "seed products")
	}
	s.lg.Info("Seeded products", zap.Int("count", len(productIDs)))

	return &seedResult{
		Users:    len(userIDs),
		Shops:    len(shopIDs),
		Products: len(productIDs),
	}, nil
}

// insertAll runs insert for every item with bounded concurrency and returns
// the ids in input order.
func insertAll[T any](ctx context.Context, limit int, items []T, insert func(context.Context, T) (string, error)) ([]string, error) {
	ids := make([]string, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			id, err := insert(ctx, item)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

func byKey[T any](items []T, ids []string, key func(T) string) map[string]string {
	out := make(map[string]string, len(items))
	for i, item := range items {
		if k := key(item); k != "" {
			out[k] = ids[i]
		}
	}
	return out
}
