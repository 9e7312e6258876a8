package server

import (
	"context"
	"errors"
	"strconv"
	"testing"

	apperrors "github.com/louisbranch/homelabqr/internal/platform/errors"
	"github.com/louisbranch/homelabqr/internal/services/qr/storage/dynamo"
)

func TestNewRuntimeRejectsSheetTooLargeForDynamo(t *testing.T) {
	t.Parallel()

	cfg := layoutConfig()
	cfg.Page = "A3"
	cfg.Storage = StorageDynamoDB

	_, err := NewRuntime(context.Background(), cfg)
	if !apperrors.HasCode(err, apperrors.CodeInvalidGeometry) {
		t.Fatalf("new runtime error = %v, want %s", err, apperrors.CodeInvalidGeometry)
	}
}

func TestCheckStorageCapacity(t *testing.T) {
	t.Parallel()

	a4 := layoutConfig()
	a4Geometry, err := a4.Geometry()
	if err != nil {
		t.Fatalf("a4 geometry: %v", err)
	}
	a3 := layoutConfig()
	a3.Page = "A3"
	a3Geometry, err := a3.Geometry()
	if err != nil {
		t.Fatalf("a3 geometry: %v", err)
	}

	if err := checkStorageCapacity(StorageDynamoDB, a4Geometry); err != nil {
		t.Fatalf("a4 on dynamodb: %v", err)
	}
	if err := checkStorageCapacity(StorageSQLite, a3Geometry); err != nil {
		t.Fatalf("a3 on sqlite: %v", err)
	}
	err = checkStorageCapacity(" DynamoDB ", a3Geometry)
	if !apperrors.HasCode(err, apperrors.CodeInvalidGeometry) {
		t.Fatalf("a3 on dynamodb error = %v, want %s", err, apperrors.CodeInvalidGeometry)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("error = %T, want *apperrors.Error", err)
	}
	if got, want := appErr.Metadata["limit"], strconv.Itoa(dynamo.MaxSheetCells); got != want {
		t.Fatalf("limit = %q, want %q", got, want)
	}
}
