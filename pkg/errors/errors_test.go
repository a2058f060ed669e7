package errors

import (
	"net/http"
	"testing"
)

func TestInsufficientStock(t *testing.T) {
	err := InsufficientStock(120)

	if !Is(err, ErrInsufficientStock) {
		t.Error("expected error to match ErrInsufficientStock")
	}
	if err.StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, http.StatusConflict)
	}

	available, ok := AvailableStock(err)
	if !ok {
		t.Fatal("AvailableStock() should recognize the error")
	}
	if available != 120 {
		t.Errorf("available = %d, want 120", available)
	}
}

func TestAvailableStock_OtherErrors(t *testing.T) {
	if _, ok := AvailableStock(NotFound("stock batch")); ok {
		t.Error("AvailableStock() should reject non-stock errors")
	}
	if _, ok := AvailableStock(nil); ok {
		t.Error("AvailableStock() should reject nil")
	}
}

func TestDuplicateOperation(t *testing.T) {
	err := DuplicateOperation("entry is already removed")

	if !Is(err, ErrDuplicateOperation) {
		t.Error("expected error to match ErrDuplicateOperation")
	}
	if err.StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, http.StatusConflict)
	}
}

func TestValidation(t *testing.T) {
	err := Validation(map[string]string{"quantity": "must be a positive integer"})

	if !Is(err, ErrValidation) {
		t.Error("expected error to match ErrValidation")
	}
	if err.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, http.StatusBadRequest)
	}
	if err.Details["quantity"] == "" {
		t.Error("expected validation details to carry the field")
	}
}

func TestUnwrapChain(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "NOT_FOUND", "stock batch not found", http.StatusNotFound)

	if !Is(wrapped, ErrNotFound) {
		t.Error("wrapped error should match its sentinel")
	}

	var appErr *AppError
	if !As(wrapped, &appErr) {
		t.Fatal("As() should extract *AppError")
	}
	if appErr.Code != "NOT_FOUND" {
		t.Errorf("Code = %v, want NOT_FOUND", appErr.Code)
	}
}
