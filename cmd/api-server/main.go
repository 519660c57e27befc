// Command api-server serves the marketplace REST API.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/marketplace/internal/marketplace"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := marketplace.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		lg.Info("Config loaded",
			zap.String("store", cfg.Store.Driver),
			zap.Bool("redis", cfg.Redis.Addr != ""),
		)
		return marketplace.Run(ctx, lg, m, cfg)
	})
}
