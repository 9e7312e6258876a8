package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/homelabqr/internal/platform/errors"
	"github.com/louisbranch/homelabqr/internal/services/qr/api/httpapi"
	"github.com/louisbranch/homelabqr/internal/services/qr/layout"
	"github.com/louisbranch/homelabqr/internal/services/qr/layout/pdfsurface"
	"github.com/louisbranch/homelabqr/internal/services/qr/layout/qrencode"
	"github.com/louisbranch/homelabqr/internal/services/qr/qrid"
	"github.com/louisbranch/homelabqr/internal/services/qr/resolve"
	"github.com/louisbranch/homelabqr/internal/services/qr/sheets"
	"github.com/louisbranch/homelabqr/internal/services/qr/storage"
	"github.com/louisbranch/homelabqr/internal/services/qr/storage/dynamo"
	qrsqlite "github.com/louisbranch/homelabqr/internal/services/qr/storage/sqlite"
)

// Runtime holds the services of one process, all sharing a single store.
type Runtime struct {
	Store    storage.Store
	Engine   *layout.Engine
	Sheets   *sheets.Service
	Resolver *resolve.Service
	Handler  http.Handler
}

// NewRuntime opens the configured store and wires the services over it.
func NewRuntime(ctx context.Context, cfg Config) (*Runtime, error) {
	geometry, err := cfg.Geometry()
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	if err := checkStorageCapacity(cfg.Storage, geometry); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Password) == "" {
		log.Printf("no binding password configured; every bind request will be rejected")
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt, err := newRuntime(cfg, geometry, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return rt, nil
}

func newRuntime(cfg Config, geometry layout.Geometry, store storage.Store) (*Runtime, error) {
	engine, err := layout.NewEngine(layout.Config{
		Geometry:   geometry,
		URLPrefix:  cfg.URLPrefix,
		Encoder:    qrencode.New(),
		NewSurface: pdfsurface.New,
	})
	if err != nil {
		return nil, fmt.Errorf("layout engine: %w", err)
	}
	generator, err := qrid.NewSeededGenerator()
	if err != nil {
		return nil, err
	}
	sheetService, err := sheets.New(sheets.Config{
		Store:     store,
		Renderer:  engine,
		Generator: generator,
	})
	if err != nil {
		return nil, err
	}
	resolver, err := resolve.New(resolve.Config{Store: store, Secret: cfg.Password})
	if err != nil {
		return nil, err
	}
	handler, err := httpapi.NewHandler(httpapi.Config{
		Sheets:   sheetService,
		Resolver: resolver,
		Logger:   log.Default(),
	})
	if err != nil {
		return nil, err
	}
	return &Runtime{
		Store:    store,
		Engine:   engine,
		Sheets:   sheetService,
		Resolver: resolver,
		Handler:  handler,
	}, nil
}

// Close releases the store.
func (r *Runtime) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

// checkStorageCapacity rejects layouts whose sheets the backend cannot write
// in one transaction.
func checkStorageCapacity(backend string, geometry layout.Geometry) error {
	if strings.ToLower(strings.TrimSpace(backend)) != StorageDynamoDB {
		return nil
	}
	capacity := layout.Capacity(geometry)
	if capacity <= dynamo.MaxSheetCells {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeInvalidGeometry,
		fmt.Sprintf("layout fits %d cells per sheet; dynamodb storage allows at most %d", capacity, dynamo.MaxSheetCells),
		map[string]string{
			"capacity": strconv.Itoa(capacity),
			"limit":    strconv.Itoa(dynamo.MaxSheetCells),
		})
}

// OpenStore opens the storage backend named by cfg.Storage.
func OpenStore(ctx context.Context, cfg Config) (storage.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage)) {
	case "", StorageSQLite:
		return openSQLiteStore(ctx, cfg.DBPath)
	case StorageDynamoDB:
		store, err := dynamo.Open(ctx, dynamo.Config{
			QRTable:    cfg.DynamoQRTable,
			SheetTable: cfg.DynamoSheetTable,
			Endpoint:   cfg.DynamoEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("open dynamodb store: %w", err)
		}
		return store, nil
	default:
		return nil, errors.New("unknown storage backend " + cfg.Storage)
	}
}

func openSQLiteStore(ctx context.Context, path string) (storage.Store, error) {
	if strings.TrimSpace(path) == "" {
		path = filepath.Join("data", "homelabqr.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := qrsqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}
