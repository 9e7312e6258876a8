package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/homelabqr/internal/platform/errors"
)

// Page is a named physical page size in millimetres.
type Page struct {
	Name     string
	WidthMM  float64
	HeightMM float64
}

// Page presets.
var (
	A3     = Page{Name: "A3", WidthMM: 297, HeightMM: 420}
	A4     = Page{Name: "A4", WidthMM: 210, HeightMM: 297}
	A5     = Page{Name: "A5", WidthMM: 148, HeightMM: 210}
	Letter = Page{Name: "Letter", WidthMM: 215.9, HeightMM: 279.4}
	Legal  = Page{Name: "Legal", WidthMM: 215.9, HeightMM: 355.6}
)

var presets = []Page{A3, A4, A5, Letter, Legal}

// PageByName returns the preset with the given name, case-insensitively.
func PageByName(name string) (Page, bool) {
	name = strings.TrimSpace(name)
	for _, page := range presets {
		if strings.EqualFold(page.Name, name) {
			return page, true
		}
	}
	return Page{}, false
}

// Color is an RGB stroke color.
type Color struct {
	R, G, B uint8
}

// ParseColor parses #RGB or #RRGGBB.
func ParseColor(value string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("color %q: want #RGB or #RRGGBB", value)
	}
	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("color %q: %w", value, err)
	}
	return Color{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb)}, nil
}

// Cell describes one grid cell in millimetres.
type Cell struct {
	WidthMM       float64
	HeightMM      float64
	MarginMM      float64
	GuideSizeMM   float64
	GuideColor    Color
	QRPaddingMM   float64
	TextPaddingMM float64
}

// Geometry pairs a page with the cell tiled across it.
type Geometry struct {
	Page Page
	Cell Cell
}

// DefaultGeometry is an A4 page of 25x30mm cells with 2mm grey guides.
func DefaultGeometry() Geometry {
	return Geometry{
		Page: A4,
		Cell: Cell{
			WidthMM:       25,
			HeightMM:      30,
			MarginMM:      0,
			GuideSizeMM:   2,
			GuideColor:    Color{R: 0xAA, G: 0xAA, B: 0xAA},
			QRPaddingMM:   3,
			TextPaddingMM: 1.5,
		},
	}
}

// UsableWidthMM is the page width inside the margins.
func (g Geometry) UsableWidthMM() float64 {
	return g.Page.WidthMM - 2*g.Cell.MarginMM
}

// UsableHeightMM is the page height inside the margins.
func (g Geometry) UsableHeightMM() float64 {
	return g.Page.HeightMM - 2*g.Cell.MarginMM
}

// LabelFontSizeMM is the vertical space left for the label under the code.
func (g Geometry) LabelFontSizeMM() float64 {
	c := g.Cell
	return c.HeightMM - c.WidthMM + c.QRPaddingMM - 2*c.TextPaddingMM
}

// Validate rejects geometries that cannot paint a legible cell.
//
// A cell larger than the usable page is not an error here; it yields a grid
// with zero capacity.
func (g Geometry) Validate() error {
	c := g.Cell
	switch {
	case g.Page.WidthMM <= 0 || g.Page.HeightMM <= 0:
		return invalidGeometry("page size must be positive")
	case c.WidthMM <= 0 || c.HeightMM <= 0:
		return invalidGeometry("cell size must be positive")
	case c.MarginMM < 0 || c.GuideSizeMM < 0 || c.QRPaddingMM < 0 || c.TextPaddingMM < 0:
		return invalidGeometry("margin, guide and paddings must not be negative")
	case 2*c.QRPaddingMM >= c.WidthMM:
		return invalidGeometry("qr padding leaves no room for the code")
	case g.LabelFontSizeMM() <= 0:
		return invalidGeometry("cell leaves no room for the label")
	}
	return nil
}

func invalidGeometry(message string) error {
	return apperrors.New(apperrors.CodeInvalidGeometry, message)
}

// Grid is the integer tiling of a geometry.
type Grid struct {
	Rows int
	Cols int
	// OffsetXMM and OffsetYMM place the top-left cell so that leftover space
	// is split evenly on both sides of each axis.
	OffsetXMM float64
	OffsetYMM float64
}

// Capacity is the number of cells, and so identifiers, a page holds.
func (g Grid) Capacity() int {
	return g.Rows * g.Cols
}

// ComputeGrid tiles the usable page area with whole cells.
func ComputeGrid(g Geometry) Grid {
	usableW := g.UsableWidthMM()
	usableH := g.UsableHeightMM()
	cellW := g.Cell.WidthMM
	cellH := g.Cell.HeightMM
	if cellW <= 0 || cellH <= 0 || usableW < cellW || usableH < cellH {
		return Grid{OffsetXMM: g.Cell.MarginMM, OffsetYMM: g.Cell.MarginMM}
	}
	return Grid{
		Rows:      int(math.Floor(usableH / cellH)),
		Cols:      int(math.Floor(usableW / cellW)),
		OffsetXMM: g.Cell.MarginMM + math.Mod(usableW, cellW)/2,
		OffsetYMM: g.Cell.MarginMM + math.Mod(usableH, cellH)/2,
	}
}

// Capacity returns how many identifiers a sheet with this geometry needs.
// Sheet creation and rendering both call it, so the two cannot disagree.
func Capacity(g Geometry) int {
	return ComputeGrid(g).Capacity()
}
