package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/marketplace/internal/marketplace"
)

func main() {
	var (
		catalogFile string
		concurrency int
		cfg         marketplace.StoreConfig
	)

	flag.StringVar(&catalogFile, "catalog", "", "path to the catalog JSON file (.json or .json.gz); built-in catalog when empty")
	flag.IntVar(&concurrency, "concurrency", 8, "parallel inserts per entity kind")
	flag.StringVar(&cfg.Driver, "driver", marketplace.DriverMongo, "document store driver: mongo, postgres, firestore or memory")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", "", "MongoDB connection URI (or DATABASE_URL env)")
	flag.StringVar(&cfg.Database, "database", "marketplace", "MongoDB database name (or DATABASE_NAME env)")
	flag.StringVar(&cfg.PostgresURL, "postgres-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.FirestoreProject, "firestore-project", "", "Google Cloud project of the Firestore database")
	flag.StringVar(&cfg.FirestoreCredentials, "firestore-credentials", "", "path to a service account JSON file")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	applyEnv(&cfg, os.Getenv)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg, catalogFile, concurrency); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("Seed completed")
}

// applyEnv fills connection settings left empty on the command line from
// DATABASE_URL and DATABASE_NAME.
func applyEnv(cfg *marketplace.StoreConfig, getenv func(string) string) {
	url := getenv("DATABASE_URL")
	switch {
	case url == "":
	case cfg.Driver == marketplace.DriverPostgres && cfg.PostgresURL == "":
		cfg.PostgresURL = url
	case cfg.Driver == marketplace.DriverMongo && cfg.MongoURI == "":
		cfg.MongoURI = url
	}
	if name := getenv("DATABASE_NAME"); name != "" && cfg.Database == "marketplace" {
		cfg.Database = name
	}
}

func run(ctx context.Context, lg *zap.Logger, cfg marketplace.StoreConfig, catalogFile string, concurrency int) error {
	if catalogFile == "" {
		lg.Info("Reading built-in catalog")
	} else {
		lg.Info("Reading catalog", zap.String("path", catalogFile))
	}
	c, err := readCatalog(catalogFile)
	if err != nil {
		return err
	}

	store, err := marketplace.OpenStore(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = store.Close(closeCtx)
	}()

	res, err := newSeeder(lg, store, concurrency).seed(ctx, c)
	if err != nil {
		return errors.Wrap(err, "seed")
	}
	lg.Info("Inserted catalog",
		zap.Int("users", res.Users),
		zap.Int("shops", res.Shops),
		zap.Int("products", res.Products),
	)
	return nil
}
