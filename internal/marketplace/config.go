package marketplace

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/marketplace/pkg/httpmiddleware"
)

// Store drivers.
const (
	DriverMongo     = "mongo"
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"
	DriverMemory    = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (MARKET_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Store     StoreConfig
	Redis     RedisConfig
	Checkout  CheckoutConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Driver   string `default:"mongo" usage:"Document store driver: mongo, postgres, firestore or memory"`
	MongoURI string `usage:"MongoDB connection URI" flag:"mongo-uri"`
	Database string `default:"marketplace" usage:"Database name (mongo)"`
	// PostgresURL is also read from DATABASE_URL when it has a postgres scheme.
	PostgresURL          string `usage:"PostgreSQL connection URL" flag:"postgres-url"`
	FirestoreProject     string `usage:"Google Cloud project of the Firestore database" flag:"firestore-project"`
	FirestoreCredentials string `usage:"Path to a service account JSON file" flag:"firestore-credentials"`
}

// RedisConfig enables the per-user cart lock when Addr is set.
type RedisConfig struct {
	Addr     string        `usage:"Redis address (host:port); empty disables cart locking"`
	Password string        `usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database number"`
	LockTTL  time.Duration `default:"10s" usage:"Cart lock expiry" flag:"redis-lock-ttl"`
}

// CheckoutConfig tunes the checkout engine.
type CheckoutConfig struct {
	Concurrency int `default:"8" usage:"Parallel product lookups per checkout"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Requests per window and burst size"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	// TrustedProxies lists reverse proxies whose X-Forwarded-For header
	// identifies the client. Empty means clients are keyed by peer address.
	TrustedProxies []string `usage:"Proxy IPs or CIDRs allowed to set X-Forwarded-For" flag:"trusted-proxies"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "MARKET",
		Files:     []string{"config.yaml", "/etc/marketplace/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected driver has what it needs to connect.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return errors.New("mongo URI is required: set MARKET_STORE_MONGOURI or DATABASE_URL")
		}
	case DriverPostgres:
		if c.Store.PostgresURL == "" {
			return errors.New("postgres URL is required: set MARKET_STORE_POSTGRESURL or DATABASE_URL")
		}
	case DriverFirestore:
		if c.Store.FirestoreProject == "" {
			return errors.New("firestore project is required: set MARKET_STORE_FIRESTOREPROJECT")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if _, err := httpmiddleware.ParseTrustedProxies(c.RateLimit.TrustedProxies); err != nil {
		return errors.Wrap(err, "parse trusted proxies")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's MARKET_-prefixed configuration. A postgres DATABASE_URL
// selects the postgres driver.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if v := getenv("DATABASE_URL"); v != "" {
		switch {
		case isPostgresURL(v):
			if c.Store.PostgresURL == "" {
				c.Store.PostgresURL = v
			}
			if c.Store.MongoURI == "" && c.Store.Driver == DriverMongo {
				c.Store.Driver = DriverPostgres
			}
		case c.Store.MongoURI == "":
			c.Store.MongoURI = v
		}
	}
	if v := getenv("DATABASE_NAME"); v != "" && c.Store.Database == "marketplace" {
		c.Store.Database = v
	}
	if port := getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

func isPostgresURL(s string) bool {
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://")
}
