package qrfakes

import (
	"fmt"
	"io"
	"sync"

	"github.com/louisbranch/homelabqr/internal/services/qr/layout"
)

// Encoder returns the payload bytes as the image and records every payload.
type Encoder struct {
	mu       sync.Mutex
	Payloads []string
	// Err, when set, fails every call.
	Err error
}

func (e *Encoder) Encode(text string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	e.Payloads = append(e.Payloads, text)
	return []byte(text), nil
}

// Surface records draw calls and finalizes to a small text document listing
// each label in placement order.
type Surface struct {
	Page   layout.Page
	Lines  int
	Labels []string
}

// NewSurface is a layout.SurfaceFactory measuring pages in millimetres.
func NewSurface(page layout.Page) (layout.Surface, error) {
	return &Surface{Page: page}, nil
}

func (s *Surface) PageSize() (float64, float64) { return s.Page.WidthMM, s.Page.HeightMM }

func (s *Surface) SetStroke(layout.Color, float64) {}

func (s *Surface) Line(_, _, _, _ float64) { s.Lines++ }

func (s *Surface) Image(string, []byte, float64, float64, float64, float64) error { return nil }

func (s *Surface) Text(text string, _, _, _, _, _ float64) error {
	s.Labels = append(s.Labels, text)
	return nil
}

// Finalize writes "%PDF-fake" followed by one label per line.
func (s *Surface) Finalize(w io.Writer) error {
	if _, err := io.WriteString(w, "%PDF-fake\n"); err != nil {
		return err
	}
	for _, label := range s.Labels {
		if _, err := fmt.Fprintln(w, label); err != nil {
			return err
		}
	}
	return nil
}
