// Package sheets creates, lists and renders printable QR sheets.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	apperrors "github.com/louisbranch/homelabqr/internal/platform/errors"
	"github.com/louisbranch/homelabqr/internal/services/qr/qrid"
	"github.com/louisbranch/homelabqr/internal/services/qr/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxAttempts caps batch inserts when identifiers collide.
const DefaultMaxAttempts = 5

var tracer = otel.Tracer("github.com/louisbranch/homelabqr/internal/services/qr/sheets")

// Renderer lays identifiers out on a page.
type Renderer interface {
	Capacity() int
	Render(ctx context.Context, w io.Writer, ids []string) error
}

// Store is the persistence a sheet service needs.
type Store interface {
	storage.QRCodeStore
	storage.SheetStore
}

// Config wires a Service.
type Config struct {
	Store     Store
	Renderer  Renderer
	Generator *qrid.Generator
	// MaxAttempts defaults to DefaultMaxAttempts.
	MaxAttempts int
	Now         func() time.Time
}

// Service owns the sheet lifecycle.
type Service struct {
	store       Store
	renderer    Renderer
	gen         *qrid.Generator
	maxAttempts int
	now         func() time.Time
}

// New validates cfg and returns a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("sheets: store is required")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("sheets: renderer is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("sheets: generator is required")
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:       cfg.Store,
		renderer:    cfg.Renderer,
		gen:         cfg.Generator,
		maxAttempts: maxAttempts,
		now:         now,
	}, nil
}

// FileName is the download name of a rendered sheet.
func FileName(sheetID string) string {
	return "HomelabQR-" + sheetID + ".pdf"
}

// Capacity is the number of identifiers each new sheet receives.
func (s *Service) Capacity() int {
	return s.renderer.Capacity()
}

// Create allocates a page worth of fresh identifiers and groups them into a
// new sheet.
func (s *Service) Create(ctx context.Context) (sheet storage.Sheet, err error) {
	ctx, span := tracer.Start(ctx, "sheets.Create")
	defer func() { endSpan(span, err) }()

	capacity := s.renderer.Capacity()
	if capacity <= 0 {
		return storage.Sheet{}, apperrors.New(apperrors.CodeInvalidGeometry, "layout fits no cells on the page")
	}
	span.SetAttributes(attribute.Int("sheet.capacity", capacity))

	ids, attempts, err := s.insertFresh(ctx, capacity)
	span.SetAttributes(attribute.Int("sheet.insert_attempts", attempts))
	if err != nil {
		return storage.Sheet{}, err
	}

	sheet = storage.Sheet{
		ID:        s.gen.New(),
		QRIDs:     ids,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateSheet(ctx, sheet); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return storage.Sheet{}, apperrors.WrapWithMetadata(apperrors.CodeAlreadyExists, "create sheet",
				map[string]string{"sheet_id": sheet.ID}, err)
		}
		return storage.Sheet{}, fmt.Errorf("create sheet: %w", err)
	}
	span.SetAttributes(attribute.String("sheet.id", sheet.ID))
	return sheet, nil
}

// insertFresh stores count new identifiers. On a collision it redraws every
// position holding the colliding key and retries the whole batch. A duplicate
// the batch does not contain draws a whole new batch instead.
func (s *Service) insertFresh(ctx context.Context, count int) ([]string, int, error) {
	ids := s.gen.Generate(count)
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.store.InsertQRCodes(ctx, ids)
		if err == nil {
			return ids, attempt, nil
		}
		lastErr = err

		var dup *storage.DuplicateKeyError
		switch {
		case errors.As(err, &dup):
			redrawn := false
			for i, id := range ids {
				if id == dup.Key {
					ids[i] = s.gen.New()
					redrawn = true
				}
			}
			if !redrawn {
				ids = s.gen.Generate(count)
			}
		case errors.Is(err, storage.ErrAlreadyExists):
			ids = s.gen.Generate(count)
		default:
			return nil, attempt, fmt.Errorf("insert qr codes: %w", err)
		}
	}
	return nil, s.maxAttempts, apperrors.WrapWithMetadata(apperrors.CodeIdentifierSpaceExhausted,
		"identifier collisions exhausted retries",
		map[string]string{"attempts": strconv.Itoa(s.maxAttempts)}, lastErr)
}

// Get returns a stored sheet.
func (s *Service) Get(ctx context.Context, sheetID string) (storage.Sheet, error) {
	sheetID = qrid.Normalize(sheetID)
	if !qrid.Valid(sheetID) {
		return storage.Sheet{}, apperrors.New(apperrors.CodeNotFound, "sheet not found")
	}
	sheet, err := s.store.GetSheet(ctx, sheetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Sheet{}, apperrors.Wrap(apperrors.CodeNotFound, "sheet not found", err)
		}
		return storage.Sheet{}, fmt.Errorf("get sheet: %w", err)
	}
	return sheet, nil
}

// List returns every sheet, newest first.
func (s *Service) List(ctx context.Context) ([]storage.Sheet, error) {
	sheets, err := s.store.ListSheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	return sheets, nil
}

// Render writes the printable page for sheet to w.
func (s *Service) Render(ctx context.Context, w io.Writer, sheet storage.Sheet) (err error) {
	ctx, span := tracer.Start(ctx, "sheets.Render")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("sheet.id", sheet.ID))

	if err := s.renderer.Render(ctx, w, sheet.QRIDs); err != nil {
		return fmt.Errorf("render sheet %s: %w", sheet.ID, err)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
