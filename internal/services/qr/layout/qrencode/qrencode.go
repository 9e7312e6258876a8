// Package qrencode encodes strings into QR code PNG images.
package qrencode

import (
	"fmt"

	"github.com/louisbranch/homelabqr/internal/services/qr/layout"
	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels. The layout scales the image
// to the cell, so this only bounds print sharpness.
const DefaultSize = 512

// Encoder produces borderless PNGs at the highest error-correction level.
type Encoder struct {
	Size int
}

var _ layout.Encoder = Encoder{}

// New returns an Encoder producing DefaultSize images.
func New() Encoder {
	return Encoder{Size: DefaultSize}
}

func (e Encoder) Encode(text string) ([]byte, error) {
	code, err := qrcode.New(text, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	code.DisableBorder = true
	size := e.Size
	if size <= 0 {
		size = DefaultSize
	}
	png, err := code.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("qr png: %w", err)
	}
	return png, nil
}
