// Package sqlite provides a SQLite-backed QR code and sheet store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/homelabqr/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/homelabqr/internal/services/qr/storage"
	"github.com/louisbranch/homelabqr/internal/services/qr/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const dsnParams = "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Store persists QR codes and sheets in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	sqlDB, err := sql.Open("sqlite", filepath.Clean(path)+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// InsertQRCode stores one unbound identifier.
func (s *Store) InsertQRCode(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("qr id is required")
	}
	now := toMillis(time.Now())
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO qr_codes (id, redirect_url, created_at, updated_at) VALUES (?, '', ?, ?)`,
		id, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert qr code: %w", err)
	}
	return nil
}

// InsertQRCodes stores every id in one transaction.
func (s *Store) InsertQRCodes(ctx context.Context, ids []string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("qr id %d is required", i)
		}
		if _, ok := seen[id]; ok {
			return &storage.DuplicateKeyError{Key: id}
		}
		seen[id] = struct{}{}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert qr codes: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO qr_codes (id, redirect_url, created_at, updated_at) VALUES (?, '', ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert qr codes: %w", err)
	}
	defer stmt.Close()

	now := toMillis(time.Now())
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, err := stmt.ExecContext(ctx, id, now, now); err != nil {
			if isUniqueViolation(err) {
				return &storage.DuplicateKeyError{Key: id}
			}
			return fmt.Errorf("insert qr code %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert qr codes: %w", err)
	}
	return nil
}

// BindQRCode overwrites the redirect target of an existing identifier.
func (s *Store) BindQRCode(ctx context.Context, id, redirectURL string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	redirectURL = strings.TrimSpace(redirectURL)
	if id == "" {
		return fmt.Errorf("qr id is required")
	}
	if redirectURL == "" {
		return fmt.Errorf("redirect url is required")
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE qr_codes SET redirect_url = ?, updated_at = ? WHERE id = ?`,
		redirectURL, toMillis(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("bind qr code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bind qr code: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetQRCode returns one identifier.
func (s *Store) GetQRCode(ctx context.Context, id string) (storage.QRCode, error) {
	if err := s.ready(ctx); err != nil {
		return storage.QRCode{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.QRCode{}, fmt.Errorf("qr id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, redirect_url, created_at, updated_at FROM qr_codes WHERE id = ?`, id)
	code, err := scanQRCode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.QRCode{}, storage.ErrNotFound
		}
		return storage.QRCode{}, fmt.Errorf("get qr code: %w", err)
	}
	return code, nil
}

// ListQRCodes returns every identifier ordered by id.
func (s *Store) ListQRCodes(ctx context.Context) ([]storage.QRCode, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, redirect_url, created_at, updated_at FROM qr_codes ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list qr codes: %w", err)
	}
	defer rows.Close()

	codes := []storage.QRCode{}
	for rows.Next() {
		code, err := scanQRCode(rows)
		if err != nil {
			return nil, fmt.Errorf("list qr codes: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list qr codes: %w", err)
	}
	return codes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQRCode(row rowScanner) (storage.QRCode, error) {
	var code storage.QRCode
	var createdAt, updatedAt int64
	if err := row.Scan(&code.ID, &code.RedirectURL, &createdAt, &updatedAt); err != nil {
		return storage.QRCode{}, err
	}
	code.CreatedAt = fromMillis(createdAt)
	code.UpdatedAt = fromMillis(updatedAt)
	return code, nil
}

// CreateSheet stores a sheet and its ordered identifiers in one transaction.
func (s *Store) CreateSheet(ctx context.Context, sheet storage.Sheet) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	sheetID := strings.TrimSpace(sheet.ID)
	if sheetID == "" {
		return fmt.Errorf("sheet id is required")
	}
	if len(sheet.QRIDs) == 0 {
		return fmt.Errorf("sheet qr ids are required")
	}
	createdAt := sheet.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create sheet: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sheets (id, created_at) VALUES (?, ?)`,
		sheetID, toMillis(createdAt),
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create sheet: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sheet_qr_codes (sheet_id, position, qr_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare sheet qr codes: %w", err)
	}
	defer stmt.Close()

	for position, qrID := range sheet.QRIDs {
		if _, err := stmt.ExecContext(ctx, sheetID, position, strings.TrimSpace(qrID)); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: %s", storage.ErrUnknownQRCode, qrID)
			}
			return fmt.Errorf("create sheet qr code %d: %w", position, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create sheet: %w", err)
	}
	return nil
}

// GetSheet returns a sheet with its identifiers in fill order.
func (s *Store) GetSheet(ctx context.Context, id string) (storage.Sheet, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Sheet{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Sheet{}, fmt.Errorf("sheet id is required")
	}

	var sheet storage.Sheet
	var createdAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, created_at FROM sheets WHERE id = ?`, id,
	).Scan(&sheet.ID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Sheet{}, storage.ErrNotFound
		}
		return storage.Sheet{}, fmt.Errorf("get sheet: %w", err)
	}
	sheet.CreatedAt = fromMillis(createdAt)

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT qr_id FROM sheet_qr_codes WHERE sheet_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return storage.Sheet{}, fmt.Errorf("get sheet qr codes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var qrID string
		if err := rows.Scan(&qrID); err != nil {
			return storage.Sheet{}, fmt.Errorf("get sheet qr codes: %w", err)
		}
		sheet.QRIDs = append(sheet.QRIDs, qrID)
	}
	if err := rows.Err(); err != nil {
		return storage.Sheet{}, fmt.Errorf("get sheet qr codes: %w", err)
	}
	return sheet, nil
}

// ListSheets returns every sheet, newest first.
func (s *Store) ListSheets(ctx context.Context) ([]storage.Sheet, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT s.id, s.created_at, m.qr_id
		   FROM sheets s
		   JOIN sheet_qr_codes m ON m.sheet_id = s.id
		  ORDER BY s.created_at DESC, s.rowid DESC, m.position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	defer rows.Close()

	sheets := []storage.Sheet{}
	for rows.Next() {
		var sheetID, qrID string
		var createdAt int64
		if err := rows.Scan(&sheetID, &createdAt, &qrID); err != nil {
			return nil, fmt.Errorf("list sheets: %w", err)
		}
		if n := len(sheets); n == 0 || sheets[n-1].ID != sheetID {
			sheets = append(sheets, storage.Sheet{ID: sheetID, CreatedAt: fromMillis(createdAt)})
		}
		last := &sheets[len(sheets)-1]
		last.QRIDs = append(last.QRIDs, qrID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	return sheets, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

var _ storage.Store = (*Store)(nil)
