package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestStockError_ReportsAvailableAndRequested(t *testing.T) {
	err := &StockError{
		ProductId:   7,
		ProductName: "Widget",
		Available:   decimal.RequireFromString("3"),
		Requested:   decimal.RequireFromString("5"),
	}
	msg := err.Error()
	for _, want := range []string{"Widget", "available 3", "requested 5"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}

	var target *StockError
	if !errors.As(error(err), &target) {
		t.Fatal("errors.As should match *StockError")
	}
}

func TestStockError_FallsBackToProductId(t *testing.T) {
	err := &StockError{ProductId: 42}
	if !strings.Contains(err.Error(), "product 42") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestAmountExceedsBalanceError_Remainder(t *testing.T) {
	err := &AmountExceedsBalanceError{
		PartyType:   PartyTypeSupplier,
		PartyId:     3,
		Outstanding: decimal.RequireFromString("5000"),
		Requested:   decimal.RequireFromString("5001"),
	}
	if !err.Remainder().Equal(decimal.RequireFromString("1")) {
		t.Fatalf("expected remainder 1, got %s", err.Remainder())
	}
	msg := err.Error()
	for _, want := range []string{"supplier 3", "outstanding 5000", "requested 5001", "remainder 1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestValidationError_WithAndWithoutField(t *testing.T) {
	withField := &ValidationError{Field: "qty", Message: "must be positive"}
	if !strings.Contains(withField.Error(), "qty") {
		t.Errorf("unexpected message %q", withField.Error())
	}
	bare := &ValidationError{Message: "details required"}
	if !strings.Contains(bare.Error(), "details required") {
		t.Errorf("unexpected message %q", bare.Error())
	}
}

func TestOrphanedReferenceError_Message(t *testing.T) {
	err := &OrphanedReferenceError{
		EntityType:    "StockHistory",
		EntityId:      11,
		ReferenceType: "IV",
		ReferenceId:   99,
	}
	msg := err.Error()
	for _, want := range []string{"StockHistory 11", "IV 99"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
