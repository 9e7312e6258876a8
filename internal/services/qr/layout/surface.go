package layout

import "io"

// GuideLineWidth is the stroke width of cutting guides in surface units.
const GuideLineWidth = 0.5

// Surface is a single-page vector drawing target.
//
// Coordinates are in the surface's native unit with the origin at the
// top-left corner of the page. Nothing is written to the caller until
// Finalize succeeds.
type Surface interface {
	// PageSize returns the page dimensions in surface units.
	PageSize() (width, height float64)
	SetStroke(color Color, width float64)
	Line(x1, y1, x2, y2 float64)
	// Image places a PNG so that it fills the w by h box at (x, y).
	Image(name string, png []byte, x, y, w, h float64) error
	// Text writes a single line horizontally centred in the w by h box at
	// (x, y), top aligned.
	Text(text string, x, y, w, h, fontSize float64) error
	// Finalize serialises the finished page to w.
	Finalize(w io.Writer) error
}

// SurfaceFactory opens a blank surface for the given page.
type SurfaceFactory func(page Page) (Surface, error)

// Encoder turns a string into a square, borderless QR code PNG.
type Encoder interface {
	Encode(text string) ([]byte, error)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(text string) ([]byte, error)

// Encode calls f(text).
func (f EncoderFunc) Encode(text string) ([]byte, error) {
	return f(text)
}
