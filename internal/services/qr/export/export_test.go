package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/louisbranch/homelabqr/internal/services/qr/sheets"
	"github.com/louisbranch/homelabqr/internal/services/qr/storage"
)

type renderFunc func(ctx context.Context, w io.Writer, sheet storage.Sheet) error

func (f renderFunc) Render(ctx context.Context, w io.Writer, sheet storage.Sheet) error {
	return f(ctx, w, sheet)
}

func labelRenderer() Renderer {
	return renderFunc(func(_ context.Context, w io.Writer, sheet storage.Sheet) error {
		_, err := io.WriteString(w, "%PDF-fake\n"+strings.Join(sheet.QRIDs, "\n"))
		return err
	})
}

func TestNewRequiresRenderer(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Fatal("expected missing renderer error")
	}
}

func TestExportToDirectoryUsesSheetFileName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exporter, err := New(labelRenderer())
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	sheet := storage.Sheet{ID: "SHEET1", QRIDs: []string{"AAA111", "BBB222"}}

	location, err := exporter.Export(context.Background(), sheet, dir+"/")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasSuffix(location, "/"+sheets.FileName("SHEET1")) {
		t.Fatalf("location = %q, want sheet file name suffix", location)
	}
	data, err := os.ReadFile(filepath.Join(dir, "HomelabQR-SHEET1.pdf"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "%PDF-fake\nAAA111\nBBB222" {
		t.Fatalf("exported = %q", string(data))
	}
}

func TestExportToExplicitFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exporter, err := New(labelRenderer())
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	dest := filepath.Join(dir, "labels.pdf")
	if _, err := exporter.Export(context.Background(), storage.Sheet{ID: "SHEET1", QRIDs: []string{"AAA111"}}, dest); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "%PDF-fake") {
		t.Fatalf("exported = %q", string(data))
	}
}

func TestExportRenderFailureWritesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	renderErr := errors.New("encoder down")
	exporter, err := New(renderFunc(func(_ context.Context, w io.Writer, _ storage.Sheet) error {
		_, _ = io.WriteString(w, "%PDF-partial")
		return renderErr
	}))
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	_, err = exporter.Export(context.Background(), storage.Sheet{ID: "SHEET1"}, dir+"/")
	if !errors.Is(err, renderErr) {
		t.Fatalf("err = %v, want %v", err, renderErr)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files, found %d", len(entries))
	}
}

func TestExportRequiresDestination(t *testing.T) {
	t.Parallel()

	exporter, err := New(labelRenderer())
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	if _, err := exporter.Export(context.Background(), storage.Sheet{ID: "SHEET1"}, "  "); err == nil {
		t.Fatal("expected missing destination error")
	}
}
