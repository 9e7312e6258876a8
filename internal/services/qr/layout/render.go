package layout

import (
	"context"
	"fmt"
	"io"
	"strconv"

	apperrors "github.com/louisbranch/homelabqr/internal/platform/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/louisbranch/homelabqr/internal/services/qr/layout")

var (
	// ErrInsufficientIdentifiers is returned when fewer identifiers than
	// grid cells are supplied.
	ErrInsufficientIdentifiers = apperrors.New(apperrors.CodeInsufficientIdentifiers, "fewer identifiers than grid cells")
	// ErrExcessIdentifiers is returned when more identifiers than grid cells
	// are supplied.
	ErrExcessIdentifiers = apperrors.New(apperrors.CodeExcessIdentifiers, "more identifiers than grid cells")
)

// Config configures an Engine.
type Config struct {
	Geometry Geometry
	// URLPrefix is prepended to each identifier to form the encoded payload.
	URLPrefix  string
	Encoder    Encoder
	NewSurface SurfaceFactory
}

// Engine renders identifier lists onto printable pages.
type Engine struct {
	geometry   Geometry
	grid       Grid
	urlPrefix  string
	encoder    Encoder
	newSurface SurfaceFactory
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	if cfg.Encoder == nil {
		return nil, fmt.Errorf("layout: encoder is required")
	}
	if cfg.NewSurface == nil {
		return nil, fmt.Errorf("layout: surface factory is required")
	}
	return &Engine{
		geometry:   cfg.Geometry,
		grid:       ComputeGrid(cfg.Geometry),
		urlPrefix:  cfg.URLPrefix,
		encoder:    cfg.Encoder,
		newSurface: cfg.NewSurface,
	}, nil
}

// Geometry returns the engine geometry.
func (e *Engine) Geometry() Geometry { return e.geometry }

// Grid returns the tiling derived from the geometry.
func (e *Engine) Grid() Grid { return e.grid }

// Capacity returns how many identifiers one page holds.
func (e *Engine) Capacity() int { return e.grid.Capacity() }

// URLPrefix returns the prefix encoded ahead of every identifier.
func (e *Engine) URLPrefix() string { return e.urlPrefix }

// Render paints one page holding ids and writes it to w.
//
// ids must hold exactly Capacity entries. The count is checked before any
// drawing, and the page is only written to w once every cell painted, so a
// failed render leaves w untouched.
func (e *Engine) Render(ctx context.Context, w io.Writer, ids []string) (err error) {
	ctx, span := tracer.Start(ctx, "layout.Render")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(
		attribute.String("layout.page", e.geometry.Page.Name),
		attribute.Int("layout.rows", e.grid.Rows),
		attribute.Int("layout.cols", e.grid.Cols),
		attribute.Int("layout.ids", len(ids)),
	)

	if err := e.checkCount(len(ids)); err != nil {
		return err
	}
	surface, err := e.newSurface(e.geometry.Page)
	if err != nil {
		return fmt.Errorf("open surface: %w", err)
	}
	if err := e.paint(ctx, surface, ids); err != nil {
		return err
	}
	if err := surface.Finalize(w); err != nil {
		return fmt.Errorf("finalize surface: %w", err)
	}
	return nil
}

func (e *Engine) checkCount(n int) error {
	capacity := e.grid.Capacity()
	meta := map[string]string{
		"capacity": strconv.Itoa(capacity),
		"count":    strconv.Itoa(n),
	}
	switch {
	case n < capacity:
		return apperrors.WithMetadata(ErrInsufficientIdentifiers.Code,
			fmt.Sprintf("need %d identifiers, got %d", capacity, n), meta)
	case n > capacity:
		return apperrors.WithMetadata(ErrExcessIdentifiers.Code,
			fmt.Sprintf("need %d identifiers, got %d", capacity, n), meta)
	}
	return nil
}

// placement is the geometry of a render converted to surface units.
type placement struct {
	offX, offY    float64
	width, height float64
	guide         float64
	qrPadding     float64
	qrSize        float64
	textPadding   float64
	fontSize      float64
}

func newPlacement(g Geometry, grid Grid, surfaceWidth float64) placement {
	ratio := surfaceWidth / g.Page.WidthMM
	c := g.Cell
	p := placement{
		offX:        grid.OffsetXMM * ratio,
		offY:        grid.OffsetYMM * ratio,
		width:       c.WidthMM * ratio,
		height:      c.HeightMM * ratio,
		guide:       c.GuideSizeMM * ratio,
		qrPadding:   c.QRPaddingMM * ratio,
		textPadding: c.TextPaddingMM * ratio,
	}
	p.qrSize = p.width - 2*p.qrPadding
	p.fontSize = p.height - p.width + p.qrPadding - 2*p.textPadding
	return p
}

// origin returns the top-left corner of the cell at row, col.
func (p placement) origin(row, col int) (x, y float64) {
	return p.offX + p.width*float64(col), p.offY + p.height*float64(row)
}

func (e *Engine) paint(ctx context.Context, surface Surface, ids []string) error {
	pageWidth, _ := surface.PageSize()
	p := newPlacement(e.geometry, e.grid, pageWidth)

	cursor := 0
	for row := 0; row < e.grid.Rows; row++ {
		for col := 0; col < e.grid.Cols; col++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			x, y := p.origin(row, col)
			drawGuides(surface, p, e.geometry.Cell.GuideColor, x, y)

			id := ids[cursor]
			cursor++
			png, err := e.encoder.Encode(e.urlPrefix + id)
			if err != nil {
				return apperrors.WrapWithMetadata(apperrors.CodeEncoderFailure, "encode qr code",
					map[string]string{"id": id}, err)
			}
			if err := surface.Image("qr-"+id, png, x+p.qrPadding, y+p.qrPadding, p.qrSize, p.qrSize); err != nil {
				return apperrors.WrapWithMetadata(apperrors.CodeEncoderFailure, "place qr code",
					map[string]string{"id": id}, err)
			}
			textY := y + p.qrPadding + p.qrSize + p.textPadding
			textH := p.height - p.width + p.qrPadding
			if err := surface.Text(id, x, textY, p.width, textH, p.fontSize); err != nil {
				return fmt.Errorf("label %s: %w", id, err)
			}
		}
	}
	return nil
}

// drawGuides strokes an L-shaped mark of length p.guide into each corner of
// the cell at (x, y).
func drawGuides(s Surface, p placement, color Color, x, y float64) {
	if p.guide <= 0 {
		return
	}
	w, h, g := p.width, p.height, p.guide
	s.SetStroke(color, GuideLineWidth)
	// top left
	s.Line(x, y+g, x, y)
	s.Line(x, y, x+g, y)
	// top right
	s.Line(x+w-g, y, x+w, y)
	s.Line(x+w, y, x+w, y+g)
	// bottom right
	s.Line(x+w, y+h-g, x+w, y+h)
	s.Line(x+w, y+h, x+w-g, y+h)
	// bottom left
	s.Line(x+g, y+h, x, y+h)
	s.Line(x, y+h, x, y+h-g)
}
