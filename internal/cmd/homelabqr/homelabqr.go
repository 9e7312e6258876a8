// Package homelabqr parses server flags and launches the QR service.
package homelabqr

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/homelabqr/internal/platform/cmd"
	server "github.com/louisbranch/homelabqr/internal/services/qr/app"
)

// ParseConfig parses environment and flags into a server config. Flags
// override the environment.
func ParseConfig(fs *flag.FlagSet, args []string) (server.Config, error) {
	var cfg server.Config
	if err := entrypoint.ParseConfigFromArgs(&cfg, fs, args, bindFlags); err != nil {
		return server.Config{}, err
	}
	cfg.ApplyLegacyEnv()
	return cfg, nil
}

func bindFlags(cfg *server.Config, fs *flag.FlagSet) {
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.GRPCHealthAddr, "health-addr", cfg.GRPCHealthAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "Storage backend: sqlite or dynamodb")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.URLPrefix, "url-prefix", cfg.URLPrefix, "Prefix encoded before each QR id")
	fs.StringVar(&cfg.LayoutFile, "layout", cfg.LayoutFile, "YAML layout profile")
}

// Run starts the QR HTTP service.
func Run(ctx context.Context, cfg server.Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		return server.Run(ctx, cfg)
	})
}
