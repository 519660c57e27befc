package marketplace

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/marketplace/internal/docstore"
	"github.com/xenking/marketplace/internal/storage/firestore"
	"github.com/xenking/marketplace/internal/storage/memory"
	"github.com/xenking/marketplace/internal/storage/mongo"
	"github.com/xenking/marketplace/internal/storage/postgres"
	redislock "github.com/xenking/marketplace/internal/storage/redis"
)

// OpenStore connects to the document store selected by cfg.Driver. The
// postgres driver also applies the embedded schema.
func OpenStore(ctx context.Context, lg *zap.Logger, cfg StoreConfig) (docstore.Store, error) {
	lg.Info("Opening document store", zap.String("driver", cfg.Driver))

	switch cfg.Driver {
	case DriverMongo:
		s, err := mongo.Connect(ctx, cfg.MongoURI, cfg.Database)
		if err != nil {
			return nil, errors.Wrap(err, "connect mongo")
		}
		return s, nil
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		return postgres.NewStore(pool), nil
	case DriverFirestore:
		s, err := firestore.Connect(ctx, cfg.FirestoreProject, cfg.FirestoreCredentials)
		if err != nil {
			return nil, errors.Wrap(err, "connect firestore")
		}
		return s, nil
	case DriverMemory:
		lg.Warn("Using in-memory store, data is lost on restart")
		return memory.New(), nil
	default:
		return nil, errors.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// OpenLocker returns the Redis cart locker, or nil when Redis is not
// configured.
func OpenLocker(ctx context.Context, cfg RedisConfig) (*redislock.Locker, func() error, error) {
	if cfg.Addr == "" {
		return nil, func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	locker := redislock.NewLocker(client, cfg.LockTTL)
	if err := locker.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "ping redis")
	}
	return locker, client.Close, nil
}
