// Package export writes rendered sheets to a local path or any URL the afs
// storage service understands.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/homelabqr/internal/services/qr/sheets"
	"github.com/louisbranch/homelabqr/internal/services/qr/storage"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// Renderer renders a sheet to w.
type Renderer interface {
	Render(ctx context.Context, w io.Writer, sheet storage.Sheet) error
}

// Exporter uploads rendered sheets.
type Exporter struct {
	renderer Renderer
	fs       afs.Service
}

// New creates an exporter backed by the default afs service.
func New(renderer Renderer) (*Exporter, error) {
	if renderer == nil {
		return nil, fmt.Errorf("export: renderer is required")
	}
	return &Exporter{renderer: renderer, fs: afs.New()}, nil
}

// Destination resolves dest for sheetID. A dest ending in "/" names a
// directory and receives the sheet's download file name.
func Destination(dest, sheetID string) string {
	dir := strings.HasSuffix(dest, "/")
	location := url.Normalize(dest, file.Scheme)
	if dir {
		location = url.Join(location, sheets.FileName(sheetID))
	}
	return location
}

// Export renders sheet and uploads it to dest, returning the final URL.
// Nothing is written when rendering fails.
func (e *Exporter) Export(ctx context.Context, sheet storage.Sheet, dest string) (string, error) {
	if strings.TrimSpace(dest) == "" {
		return "", fmt.Errorf("export: destination is required")
	}
	var buf bytes.Buffer
	if err := e.renderer.Render(ctx, &buf, sheet); err != nil {
		return "", err
	}
	location := Destination(dest, sheet.ID)
	if err := e.fs.Upload(ctx, location, file.DefaultFileOsMode, &buf); err != nil {
		return "", fmt.Errorf("upload sheet %s to %s: %w", sheet.ID, location, err)
	}
	return location, nil
}
