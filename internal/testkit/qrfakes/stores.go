// Package qrfakes provides in-memory collaborators for QR service tests.
package qrfakes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/homelabqr/internal/services/qr/storage"
)

// Store is an in-memory storage.Store with the same atomicity and
// referential rules as the real backends.
type Store struct {
	mu     sync.Mutex
	Codes  map[string]storage.QRCode
	Sheets map[string]storage.Sheet
	// order records sheet creation so ties on CreatedAt list newest first.
	order []string

	// InsertErr, when set, is consulted before each batch insert. A non-nil
	// result aborts the batch without persisting anything.
	InsertErr func(ids []string) error
	// BindErr, GetErr and CreateSheetErr force the matching call to fail.
	BindErr        error
	GetErr         error
	CreateSheetErr error

	InsertCalls int
	BindCalls   int
}

// NewStore constructs a Store with initialized maps.
func NewStore() *Store {
	return &Store{
		Codes:  make(map[string]storage.QRCode),
		Sheets: make(map[string]storage.Sheet),
	}
}

func (s *Store) InsertQRCode(ctx context.Context, id string) error {
	return s.InsertQRCodes(ctx, []string{id})
}

func (s *Store) InsertQRCodes(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InsertCalls++
	if s.InsertErr != nil {
		if err := s.InsertErr(ids); err != nil {
			return err
		}
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.Codes[id]; ok {
			return &storage.DuplicateKeyError{Key: id}
		}
		if _, ok := seen[id]; ok {
			return &storage.DuplicateKeyError{Key: id}
		}
		seen[id] = struct{}{}
	}
	now := time.Now().UTC()
	for _, id := range ids {
		s.Codes[id] = storage.QRCode{ID: id, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}

func (s *Store) BindQRCode(ctx context.Context, id, redirectURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BindCalls++
	if s.BindErr != nil {
		return s.BindErr
	}
	code, ok := s.Codes[id]
	if !ok {
		return storage.ErrNotFound
	}
	code.RedirectURL = redirectURL
	code.UpdatedAt = time.Now().UTC()
	s.Codes[id] = code
	return nil
}

func (s *Store) GetQRCode(ctx context.Context, id string) (storage.QRCode, error) {
	if err := ctx.Err(); err != nil {
		return storage.QRCode{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return storage.QRCode{}, s.GetErr
	}
	code, ok := s.Codes[id]
	if !ok {
		return storage.QRCode{}, storage.ErrNotFound
	}
	return code, nil
}

func (s *Store) ListQRCodes(ctx context.Context) ([]storage.QRCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]storage.QRCode, 0, len(s.Codes))
	for _, code := range s.Codes {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].ID < codes[j].ID })
	return codes, nil
}

func (s *Store) CreateSheet(ctx context.Context, sheet storage.Sheet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateSheetErr != nil {
		return s.CreateSheetErr
	}
	if _, ok := s.Sheets[sheet.ID]; ok {
		return storage.ErrAlreadyExists
	}
	for _, id := range sheet.QRIDs {
		if _, ok := s.Codes[id]; !ok {
			return storage.ErrUnknownQRCode
		}
	}
	sheet.QRIDs = append([]string(nil), sheet.QRIDs...)
	if sheet.CreatedAt.IsZero() {
		sheet.CreatedAt = time.Now().UTC()
	}
	s.Sheets[sheet.ID] = sheet
	s.order = append(s.order, sheet.ID)
	return nil
}

func (s *Store) GetSheet(ctx context.Context, id string) (storage.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return storage.Sheet{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sheet, ok := s.Sheets[id]
	if !ok {
		return storage.Sheet{}, storage.ErrNotFound
	}
	sheet.QRIDs = append([]string(nil), sheet.QRIDs...)
	return sheet, nil
}

func (s *Store) ListSheets(ctx context.Context) ([]storage.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sheets := make([]storage.Sheet, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		sheets = append(sheets, s.Sheets[s.order[i]])
	}
	sort.SliceStable(sheets, func(i, j int) bool {
		return sheets[i].CreatedAt.After(sheets[j].CreatedAt)
	})
	return sheets, nil
}

func (s *Store) Close() error { return nil }

var _ storage.Store = (*Store)(nil)
