package marketplace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func defaultConfig() Config {
	return Config{
		Addr:  "0.0.0.0:8080",
		Store: StoreConfig{Driver: DriverMongo, Database: "marketplace"},
	}
}

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestApplyPlatformDefaults(t *testing.T) {
	for _, tt := range []struct {
		name string
		env  map[string]string
		edit func(*Config)
		want func(*testing.T, Config)
	}{
		{
			name: "MongoURL",
			env:  map[string]string{"DATABASE_URL": "mongodb://db:27017", "DATABASE_NAME": "shop"},
			want: func(t *testing.T, c Config) {
				assert.Equal(t, DriverMongo, c.Store.Driver)
				assert.Equal(t, "mongodb://db:27017", c.Store.MongoURI)
				assert.Equal(t, "shop", c.Store.Database)
			},
		},
		{
			name: "PostgresURL",
			env:  map[string]string{"DATABASE_URL": "postgresql://u:p@db/market"},
			want: func(t *testing.T, c Config) {
				assert.Equal(t, DriverPostgres, c.Store.Driver)
				assert.Equal(t, "postgresql://u:p@db/market", c.Store.PostgresURL)
				assert.Empty(t, c.Store.MongoURI)
			},
		},
		{
			name: "ExplicitMongoWins",
			env:  map[string]string{"DATABASE_URL": "postgres://db/market"},
			edit: func(c *Config) { c.Store.MongoURI = "mongodb://explicit" },
			want: func(t *testing.T, c Config) {
				assert.Equal(t, DriverMongo, c.Store.Driver)
				assert.Equal(t, "mongodb://explicit", c.Store.MongoURI)
			},
		},
		{
			name: "ExplicitDatabaseWins",
			env:  map[string]string{"DATABASE_NAME": "other"},
			edit: func(c *Config) { c.Store.Database = "mine" },
			want: func(t *testing.T, c Config) {
				assert.Equal(t, "mine", c.Store.Database)
			},
		},
		{
			name: "Port",
			env:  map[string]string{"PORT": "3000"},
			want: func(t *testing.T, c Config) {
				assert.Equal(t, "0.0.0.0:3000", c.Addr)
			},
		},
		{
			name: "ExplicitAddrWins",
			env:  map[string]string{"PORT": "3000"},
			edit: func(c *Config) { c.Addr = "127.0.0.1:9090" },
			want: func(t *testing.T, c Config) {
				assert.Equal(t, "127.0.0.1:9090", c.Addr)
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := defaultConfig()
			if tt.edit != nil {
				tt.edit(&c)
			}
			c.applyPlatformDefaults(env(tt.env))
			tt.want(t, c)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	for _, tt := range []struct {
		name  string
		store StoreConfig
		err   string
	}{
		{"MongoMissingURI", StoreConfig{Driver: DriverMongo}, "mongo URI is required"},
		{"Mongo", StoreConfig{Driver: DriverMongo, MongoURI: "mongodb://db"}, ""},
		{"PostgresMissingURL", StoreConfig{Driver: DriverPostgres}, "postgres URL is required"},
		{"FirestoreMissingProject", StoreConfig{Driver: DriverFirestore}, "firestore project is required"},
		{"Firestore", StoreConfig{Driver: DriverFirestore, FirestoreProject: "p"}, ""},
		{"Memory", StoreConfig{Driver: DriverMemory}, ""},
		{"Unknown", StoreConfig{Driver: "cassandra"}, `unknown store driver "cassandra"`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Config{Store: tt.store}).Validate()
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestConfig_ValidateTrustedProxies(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Driver: DriverMemory}}
	cfg.RateLimit.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.10"}
	assert.NoError(t, cfg.Validate())

	cfg.RateLimit.TrustedProxies = []string{"10.0.0.0/33"}
	assert.ErrorContains(t, cfg.Validate(), "parse trusted proxies")

	cfg.RateLimit.TrustedProxies = []string{"proxy.internal"}
	assert.ErrorContains(t, cfg.Validate(), "parse trusted proxies")
}

func TestIsPostgresURL(t *testing.T) {
	assert.True(t, isPostgresURL("postgres://localhost/db"))
	assert.True(t, isPostgresURL("postgresql://localhost/db"))
	assert.False(t, isPostgresURL("mongodb+srv://cluster/db"))
	assert.False(t, isPostgresURL(""))
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	lg := zaptest.NewLogger(t)

	s, err := OpenStore(ctx, lg, StoreConfig{Driver: DriverMemory})
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close(ctx))

	_, err = OpenStore(ctx, lg, StoreConfig{Driver: "cassandra"})
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestOpenLocker_Disabled(t *testing.T) {
	locker, closeFn, err := OpenLocker(context.Background(), RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, locker)
	assert.NoError(t, closeFn())
}
