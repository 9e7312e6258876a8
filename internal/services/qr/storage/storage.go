// Package storage defines persistence contracts for QR identifiers and the
// sheets that group them.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested identifier or sheet is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a primary key is already taken.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrUnknownQRCode indicates a sheet references an identifier that is not
	// in the identifier store.
	ErrUnknownQRCode = errors.New("sheet references unknown qr code")
)

// DuplicateKeyError reports which key made a batch insert fail. It matches
// ErrAlreadyExists with errors.Is.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return "duplicate key " + e.Key
}

// Is reports whether target is ErrAlreadyExists.
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// QRCode is one printed identifier and its optional redirect target.
type QRCode struct {
	ID string
	// RedirectURL is empty while the code is unbound.
	RedirectURL string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Bound reports whether the code has a redirect target.
func (c QRCode) Bound() bool {
	return c.RedirectURL != ""
}

// Sheet is an immutable, ordered group of identifiers printed on one page.
type Sheet struct {
	ID string
	// QRIDs is in page fill order.
	QRIDs     []string
	CreatedAt time.Time
}

// QRCodeStore persists identifiers.
type QRCodeStore interface {
	// InsertQRCode stores one unbound identifier.
	InsertQRCode(ctx context.Context, id string) error
	// InsertQRCodes stores every id or none of them. A collision with an
	// existing or repeated id returns a *DuplicateKeyError.
	InsertQRCodes(ctx context.Context, ids []string) error
	// BindQRCode sets the redirect target of an existing identifier.
	BindQRCode(ctx context.Context, id, redirectURL string) error
	GetQRCode(ctx context.Context, id string) (QRCode, error)
	ListQRCodes(ctx context.Context) ([]QRCode, error)
}

// SheetStore persists sheets.
type SheetStore interface {
	// CreateSheet stores a sheet whose identifiers must already exist.
	CreateSheet(ctx context.Context, sheet Sheet) error
	GetSheet(ctx context.Context, id string) (Sheet, error)
	// ListSheets returns every sheet, newest first.
	ListSheets(ctx context.Context) ([]Sheet, error)
}

// Store is the full persistence surface used by the QR service.
type Store interface {
	QRCodeStore
	SheetStore
	Close() error
}
