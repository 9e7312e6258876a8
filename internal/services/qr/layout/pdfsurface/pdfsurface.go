// Package pdfsurface implements layout.Surface on top of go-pdf/fpdf.
package pdfsurface

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/louisbranch/homelabqr/internal/services/qr/layout"
)

// Font is the monospace core font used for labels.
const Font = "Courier"

const mmToPt = 72 / 25.4

// Surface is a one-page PDF document measured in points.
type Surface struct {
	pdf *fpdf.Fpdf
}

var _ layout.Surface = (*Surface)(nil)

// New opens a blank page of the given size. A preset name whose dimensions
// were not overridden uses fpdf's own page table so the page box matches other
// PDF producers exactly; otherwise the explicit dimensions win.
func New(page layout.Page) (layout.Surface, error) {
	init := &fpdf.InitType{OrientationStr: "P", UnitStr: "pt"}
	if preset, ok := layout.PageByName(page.Name); ok && preset.WidthMM == page.WidthMM && preset.HeightMM == page.HeightMM {
		init.SizeStr = preset.Name
	} else {
		init.Size = fpdf.SizeType{Wd: page.WidthMM * mmToPt, Ht: page.HeightMM * mmToPt}
	}
	pdf := fpdf.NewCustom(init)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCellMargin(0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("homelabqr", true)
	pdf.AddPage()
	pdf.SetFont(Font, "", 10)
	pdf.SetTextColor(0, 0, 0)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("open pdf page %q: %w", page.Name, err)
	}
	return &Surface{pdf: pdf}, nil
}

// PageSize returns the page size in points.
func (s *Surface) PageSize() (float64, float64) {
	return s.pdf.GetPageSize()
}

func (s *Surface) SetStroke(c layout.Color, width float64) {
	s.pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
	s.pdf.SetLineWidth(width)
}

func (s *Surface) Line(x1, y1, x2, y2 float64) {
	s.pdf.Line(x1, y1, x2, y2)
}

// Image embeds png once per name and places it.
func (s *Surface) Image(name string, png []byte, x, y, w, h float64) error {
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	s.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
	s.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	if err := s.pdf.Error(); err != nil {
		return fmt.Errorf("place image %s: %w", name, err)
	}
	return nil
}

func (s *Surface) Text(text string, x, y, w, h, fontSize float64) error {
	s.pdf.SetFontUnitSize(fontSize)
	s.pdf.SetXY(x, y)
	s.pdf.CellFormat(w, h, text, "", 0, "CT", false, 0, "")
	return s.pdf.Error()
}

// Finalize closes the document and copies it to w. fpdf assembles the
// whole file before the first byte is written, so a failed page never
// reaches w.
func (s *Surface) Finalize(w io.Writer) error {
	if err := s.pdf.Output(w); err != nil {
		return fmt.Errorf("output pdf: %w", err)
	}
	return nil
}
