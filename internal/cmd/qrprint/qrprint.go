// Package qrprint renders a sheet to a file or object-store URL from the
// command line.
package qrprint

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/homelabqr/internal/platform/cmd"
	"github.com/louisbranch/homelabqr/internal/platform/timeouts"
	server "github.com/louisbranch/homelabqr/internal/services/qr/app"
	"github.com/louisbranch/homelabqr/internal/services/qr/export"
	"github.com/louisbranch/homelabqr/internal/services/qr/storage"
)

// Config holds print command configuration.
type Config struct {
	App     server.Config
	SheetID string
	New     bool
	Out     string
	Timeout time.Duration
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	app, err := server.LoadConfig()
	if err != nil {
		return Config{}, err
	}
	cfg := Config{App: app, Timeout: timeouts.Export}
	fs.StringVar(&cfg.SheetID, "sheet", "", "Existing sheet id to render")
	fs.BoolVar(&cfg.New, "new", false, "Create a new sheet and render it")
	fs.StringVar(&cfg.Out, "out", "", "Destination path or URL; a trailing / names a directory")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Overall export timeout")
	fs.StringVar(&cfg.App.Storage, "storage", cfg.App.Storage, "Storage backend: sqlite or dynamodb")
	fs.StringVar(&cfg.App.DBPath, "db-path", cfg.App.DBPath, "SQLite database path")
	fs.StringVar(&cfg.App.URLPrefix, "url-prefix", cfg.App.URLPrefix, "Prefix encoded before each QR id")
	fs.StringVar(&cfg.App.LayoutFile, "layout", cfg.App.LayoutFile, "YAML layout profile")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	hasSheet := strings.TrimSpace(c.SheetID) != ""
	if hasSheet == c.New {
		return errors.New("exactly one of -sheet or -new is required")
	}
	if strings.TrimSpace(c.Out) == "" {
		return errors.New("-out is required")
	}
	return nil
}

// Run renders the selected sheet to cfg.Out and prints the sheet id and the
// final location to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePrint, func(ctx context.Context) error {
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
		rt, err := server.NewRuntime(ctx, cfg.App)
		if err != nil {
			return err
		}
		defer rt.Close()

		var sheet storage.Sheet
		if cfg.New {
			sheet, err = rt.Sheets.Create(ctx)
		} else {
			sheet, err = rt.Sheets.Get(ctx, cfg.SheetID)
		}
		if err != nil {
			return err
		}

		exporter, err := export.New(rt.Sheets)
		if err != nil {
			return err
		}
		location, err := exporter.Export(ctx, sheet, cfg.Out)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s %s\n", sheet.ID, location)
		return err
	})
}
