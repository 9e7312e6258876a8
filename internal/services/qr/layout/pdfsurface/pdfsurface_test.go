package pdfsurface

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/louisbranch/homelabqr/internal/services/qr/layout"
	"github.com/louisbranch/homelabqr/internal/services/qr/layout/qrencode"
)

func TestPresetPageSizeInPoints(t *testing.T) {
	t.Parallel()

	s, err := New(layout.A4)
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	w, h := s.PageSize()
	if math.Abs(w-595.28) > 0.01 || math.Abs(h-841.89) > 0.01 {
		t.Fatalf("page size = %.2fx%.2f, want 595.28x841.89", w, h)
	}
}

func TestCustomPageSizeInPoints(t *testing.T) {
	t.Parallel()

	s, err := New(layout.Page{Name: "label-roll", WidthMM: 100, HeightMM: 150})
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	w, h := s.PageSize()
	if math.Abs(w-100*mmToPt) > 0.01 || math.Abs(h-150*mmToPt) > 0.01 {
		t.Fatalf("page size = %.2fx%.2f", w, h)
	}
}

func TestPresetNameWithOverriddenSize(t *testing.T) {
	t.Parallel()

	s, err := New(layout.Page{Name: "A4", WidthMM: 200, HeightMM: 280})
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	w, h := s.PageSize()
	if math.Abs(w-200*mmToPt) > 0.01 || math.Abs(h-280*mmToPt) > 0.01 {
		t.Fatalf("page size = %.2fx%.2f, want %.2fx%.2f", w, h, 200*mmToPt, 280*mmToPt)
	}
}

func TestRenderFullSheet(t *testing.T) {
	t.Parallel()

	engine, err := layout.NewEngine(layout.Config{
		Geometry:   layout.DefaultGeometry(),
		URLPrefix:  "https://qr.example/",
		Encoder:    qrencode.New(),
		NewSurface: New,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	ids := make([]string, engine.Capacity())
	for i := range ids {
		ids[i] = fmt.Sprintf("A%05d", i)
	}

	var out bytes.Buffer
	if err := engine.Render(context.Background(), &out, ids); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output does not start with a PDF header: %q", out.Bytes()[:min(out.Len(), 16)])
	}
	if !bytes.Contains(out.Bytes(), []byte("Courier")) {
		t.Fatal("expected Courier font in document")
	}
}

func TestImageRejectsInvalidPNG(t *testing.T) {
	t.Parallel()

	s, err := New(layout.A4)
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	if err := s.Image("broken", []byte("not a png"), 0, 0, 10, 10); err == nil {
		t.Fatal("expected error for invalid png")
	}
}
