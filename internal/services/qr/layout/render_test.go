package layout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/homelabqr/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type imageCall struct {
	name       string
	x, y, w, h float64
}

type textCall struct {
	text             string
	x, y, w, h, size float64
}

// recordingSurface measures in millimetres so placements can be asserted
// directly against geometry.
type recordingSurface struct {
	width, height float64
	lines         int
	strokes       []Color
	images        []imageCall
	texts         []textCall
}

func (s *recordingSurface) PageSize() (float64, float64) { return s.width, s.height }

func (s *recordingSurface) SetStroke(c Color, _ float64) { s.strokes = append(s.strokes, c) }

func (s *recordingSurface) Line(_, _, _, _ float64) { s.lines++ }

func (s *recordingSurface) Image(name string, _ []byte, x, y, w, h float64) error {
	s.images = append(s.images, imageCall{name: name, x: x, y: y, w: w, h: h})
	return nil
}

func (s *recordingSurface) Text(text string, x, y, w, h, size float64) error {
	s.texts = append(s.texts, textCall{text: text, x: x, y: y, w: w, h: h, size: size})
	return nil
}

func (s *recordingSurface) Finalize(w io.Writer) error {
	_, err := fmt.Fprintf(w, "page with %d images", len(s.images))
	return err
}

type surfaceRecorder struct {
	opened  int
	surface *recordingSurface
}

func (r *surfaceRecorder) factory(page Page) (Surface, error) {
	r.opened++
	r.surface = &recordingSurface{width: page.WidthMM, height: page.HeightMM}
	return r.surface, nil
}

func stubEncoder(text string) ([]byte, error) {
	return []byte(text), nil
}

func newTestEngine(t *testing.T, enc Encoder) (*Engine, *surfaceRecorder) {
	t.Helper()
	rec := &surfaceRecorder{}
	engine, err := NewEngine(Config{
		Geometry:   DefaultGeometry(),
		URLPrefix:  "https://qr.example/",
		Encoder:    enc,
		NewSurface: rec.factory,
	})
	require.NoError(t, err)
	return engine, rec
}

func testIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("ID%04d", i)
	}
	return ids
}

func TestRenderPlacesCellsRowMajor(t *testing.T) {
	t.Parallel()

	engine, rec := newTestEngine(t, EncoderFunc(stubEncoder))
	var out bytes.Buffer

	require.NoError(t, engine.Render(context.Background(), &out, testIDs(72)))

	s := rec.surface
	require.Len(t, s.images, 72)
	require.Len(t, s.texts, 72)
	assert.Equal(t, "page with 72 images", out.String())

	// Index 8 is the first cell of the second row.
	second := s.images[8]
	assert.Equal(t, "qr-ID0008", second.name)
	assert.InDelta(t, 5+3, second.x, 1e-9)
	assert.InDelta(t, 13.5+30+3, second.y, 1e-9)

	// The last identifier lands in row 8, column 7.
	last := s.images[71]
	assert.Equal(t, "qr-ID0071", last.name)
	assert.InDelta(t, 5+25*7+3, last.x, 1e-9)
	assert.InDelta(t, 13.5+30*8+3, last.y, 1e-9)
	assert.InDelta(t, 19, last.w, 1e-9)
	assert.InDelta(t, 19, last.h, 1e-9)

	label := s.texts[71]
	assert.Equal(t, "ID0071", label.text)
	assert.InDelta(t, 5+25*7, label.x, 1e-9)
	assert.InDelta(t, 13.5+30*8+3+19+1.5, label.y, 1e-9)
	assert.InDelta(t, 25, label.w, 1e-9)
	assert.InDelta(t, 8, label.h, 1e-9)
	assert.InDelta(t, 5, label.size, 1e-9)
}

func TestRenderDrawsFourCornerGuidesPerCell(t *testing.T) {
	t.Parallel()

	engine, rec := newTestEngine(t, EncoderFunc(stubEncoder))

	require.NoError(t, engine.Render(context.Background(), io.Discard, testIDs(72)))

	assert.Equal(t, 72*8, rec.surface.lines)
	require.NotEmpty(t, rec.surface.strokes)
	assert.Equal(t, Color{R: 0xAA, G: 0xAA, B: 0xAA}, rec.surface.strokes[0])
}

func TestRenderSkipsGuidesWhenSizeIsZero(t *testing.T) {
	t.Parallel()

	g := DefaultGeometry()
	g.Cell.GuideSizeMM = 0
	rec := &surfaceRecorder{}
	engine, err := NewEngine(Config{Geometry: g, Encoder: EncoderFunc(stubEncoder), NewSurface: rec.factory})
	require.NoError(t, err)

	require.NoError(t, engine.Render(context.Background(), io.Discard, testIDs(72)))
	assert.Zero(t, rec.surface.lines)
}

func TestRenderEncodesPrefixedURL(t *testing.T) {
	t.Parallel()

	var payloads []string
	enc := EncoderFunc(func(text string) ([]byte, error) {
		payloads = append(payloads, text)
		return []byte{0x89}, nil
	})
	engine, _ := newTestEngine(t, enc)

	require.NoError(t, engine.Render(context.Background(), io.Discard, testIDs(72)))
	require.Len(t, payloads, 72)
	assert.Equal(t, "https://qr.example/ID0000", payloads[0])
}

func TestRenderRejectsWrongCountBeforeDrawing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		n    int
		code apperrors.Code
	}{
		{"one short", 71, apperrors.CodeInsufficientIdentifiers},
		{"empty", 0, apperrors.CodeInsufficientIdentifiers},
		{"one extra", 73, apperrors.CodeExcessIdentifiers},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			engine, rec := newTestEngine(t, EncoderFunc(stubEncoder))
			var out bytes.Buffer

			err := engine.Render(context.Background(), &out, testIDs(tt.n))

			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code))
			assert.Zero(t, rec.opened, "surface opened")
			assert.Zero(t, out.Len(), "bytes written")
		})
	}
}

func TestRenderInsufficientMatchesSentinel(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t, EncoderFunc(stubEncoder))
	err := engine.Render(context.Background(), io.Discard, testIDs(10))
	assert.ErrorIs(t, err, ErrInsufficientIdentifiers)
	assert.NotErrorIs(t, err, ErrExcessIdentifiers)
}

func TestRenderEncoderFailureWritesNothing(t *testing.T) {
	t.Parallel()

	boom := errors.New("payload too large")
	calls := 0
	enc := EncoderFunc(func(text string) ([]byte, error) {
		calls++
		if calls == 10 {
			return nil, boom
		}
		return []byte(text), nil
	})
	engine, _ := newTestEngine(t, enc)
	var out bytes.Buffer

	err := engine.Render(context.Background(), &out, testIDs(72))

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeEncoderFailure))
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, out.Len())
}

func TestRenderStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	engine, rec := newTestEngine(t, EncoderFunc(stubEncoder))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer

	err := engine.Render(ctx, &out, testIDs(72))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.surface.images)
	assert.Zero(t, out.Len())
}

func TestNewEngineValidates(t *testing.T) {
	t.Parallel()

	rec := &surfaceRecorder{}
	bad := DefaultGeometry()
	bad.Cell.WidthMM = 0

	_, err := NewEngine(Config{Geometry: bad, Encoder: EncoderFunc(stubEncoder), NewSurface: rec.factory})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidGeometry))

	_, err = NewEngine(Config{Geometry: DefaultGeometry(), NewSurface: rec.factory})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "encoder"))

	_, err = NewEngine(Config{Geometry: DefaultGeometry(), Encoder: EncoderFunc(stubEncoder)})
	require.Error(t, err)
}

func TestEngineAccessors(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t, EncoderFunc(stubEncoder))
	assert.Equal(t, 72, engine.Capacity())
	assert.Equal(t, Grid{Rows: 9, Cols: 8, OffsetXMM: 5, OffsetYMM: 13.5}, engine.Grid())
	assert.Equal(t, "https://qr.example/", engine.URLPrefix())
	assert.Equal(t, A4, engine.Geometry().Page)
}
