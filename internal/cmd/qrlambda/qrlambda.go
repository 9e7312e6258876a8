// Package qrlambda wires the QR HTTP surface for AWS Lambda.
package qrlambda

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/homelabqr/internal/services/qr/api/lambdaapi"
	server "github.com/louisbranch/homelabqr/internal/services/qr/app"
)

const storageEnv = "HOMELABQR_STORAGE"

// LoadConfig reads the server configuration and defaults storage to DynamoDB,
// since a function's filesystem is read-only outside its temp directory.
func LoadConfig() (server.Config, error) {
	cfg, err := server.LoadConfig()
	if err != nil {
		return server.Config{}, err
	}
	if _, ok := os.LookupEnv(storageEnv); !ok {
		cfg.Storage = server.StorageDynamoDB
	}
	return cfg, nil
}

// ValidateConfig rejects a SQLite database outside the writable temp
// directory.
func ValidateConfig(cfg server.Config) error {
	backend := strings.ToLower(strings.TrimSpace(cfg.Storage))
	if backend != "" && backend != server.StorageSQLite {
		return nil
	}
	tmp := filepath.Clean(os.TempDir())
	path := filepath.Clean(cfg.DBPath)
	if strings.TrimSpace(cfg.DBPath) != "" && filepath.IsAbs(path) && strings.HasPrefix(path, tmp+string(filepath.Separator)) {
		return nil
	}
	return fmt.Errorf("sqlite path %q is not writable on lambda: set %s=dynamodb or point HOMELABQR_DB_PATH under %s",
		cfg.DBPath, storageEnv, tmp)
}

// NewAdapter builds the runtime for cfg and returns an API Gateway adapter
// over its handler, plus a function releasing the runtime.
func NewAdapter(ctx context.Context, cfg server.Config) (*lambdaapi.Adapter, func() error, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, nil, err
	}
	rt, err := server.NewRuntime(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := lambdaapi.New(rt.Handler)
	if err != nil {
		_ = rt.Close()
		return nil, nil, err
	}
	return adapter, rt.Close, nil
}
