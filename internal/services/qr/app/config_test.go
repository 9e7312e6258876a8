package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/louisbranch/homelabqr/internal/services/qr/layout"
)

func layoutConfig() Config {
	return Config{
		Page:          "A4",
		CellWidthMM:   25,
		CellHeightMM:  30,
		GuideSizeMM:   2,
		GuideColor:    "#AAAAAA",
		QRPaddingMM:   3,
		TextPaddingMM: 1.5,
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOMELABQR_PASSWORD", "")
	t.Setenv(legacyPasswordEnv, "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPAddr != ":3000" {
		t.Fatalf("HTTPAddr = %q, want :3000", cfg.HTTPAddr)
	}
	if cfg.Storage != StorageSQLite {
		t.Fatalf("Storage = %q, want %q", cfg.Storage, StorageSQLite)
	}
	if cfg.Password != "" {
		t.Fatalf("Password = %q, want empty", cfg.Password)
	}
	geometry, err := cfg.Geometry()
	if err != nil {
		t.Fatalf("geometry: %v", err)
	}
	if geometry != layout.DefaultGeometry() {
		t.Fatalf("geometry = %+v, want default", geometry)
	}
}

func TestLoadConfigLegacyPasswordFallback(t *testing.T) {
	t.Setenv("HOMELABQR_PASSWORD", "")
	t.Setenv(legacyPasswordEnv, "from-legacy")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Password != "from-legacy" {
		t.Fatalf("Password = %q, want from-legacy", cfg.Password)
	}

	t.Setenv("HOMELABQR_PASSWORD", "current")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Password != "current" {
		t.Fatalf("Password = %q, want current", cfg.Password)
	}
}

func TestLoadConfigRejectsBadNumbers(t *testing.T) {
	t.Setenv("HOMELABQR_CELL_WIDTH_MM", "wide")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGeometryRejectsUnknownPage(t *testing.T) {
	t.Parallel()

	cfg := layoutConfig()
	cfg.Page = "B5"
	if _, err := cfg.Geometry(); err == nil || !strings.Contains(err.Error(), "B5") {
		t.Fatalf("err = %v, want unknown page error", err)
	}
}

func TestGeometryRejectsBadColor(t *testing.T) {
	t.Parallel()

	cfg := layoutConfig()
	cfg.GuideColor = "grey"
	if _, err := cfg.Geometry(); err == nil {
		t.Fatal("expected color error")
	}
}

func TestGeometryRejectsInvalidCell(t *testing.T) {
	t.Parallel()

	cfg := layoutConfig()
	cfg.QRPaddingMM = 20
	if _, err := cfg.Geometry(); err == nil {
		t.Fatal("expected geometry validation error")
	}
}

func TestGeometryAppliesLayoutFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "layout.yaml")
	profile := "page:\n  name: Letter\ncell:\n  width_mm: 30\n  height_mm: 36\n"
	if err := os.WriteFile(path, []byte(profile), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	cfg := layoutConfig()
	cfg.LayoutFile = path

	geometry, err := cfg.Geometry()
	if err != nil {
		t.Fatalf("geometry: %v", err)
	}
	if geometry.Page != layout.Letter {
		t.Fatalf("page = %+v, want Letter", geometry.Page)
	}
	if geometry.Cell.WidthMM != 30 || geometry.Cell.HeightMM != 36 {
		t.Fatalf("cell = %+v, want 30x36", geometry.Cell)
	}
	if geometry.Cell.QRPaddingMM != 3 {
		t.Fatalf("qr padding = %v, want env value 3", geometry.Cell.QRPaddingMM)
	}
}

func TestGeometryCustomPageFromLayoutFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "layout.yaml")
	profile := "page:\n  name: Label\n  width_mm: 100\n  height_mm: 150\n"
	if err := os.WriteFile(path, []byte(profile), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	cfg := layoutConfig()
	cfg.Page = "Label"
	cfg.LayoutFile = path

	geometry, err := cfg.Geometry()
	if err != nil {
		t.Fatalf("geometry: %v", err)
	}
	if got := layout.Capacity(geometry); got != 20 {
		t.Fatalf("capacity = %d, want 20", got)
	}
}

func TestGeometryMissingLayoutFile(t *testing.T) {
	t.Parallel()

	cfg := layoutConfig()
	cfg.LayoutFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := cfg.Geometry(); err == nil {
		t.Fatal("expected open error")
	}
}
