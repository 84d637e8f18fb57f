package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrBusinessIdRequired = errors.New("business id is required")
	ErrUnbalancedJournal  = errors.New("journal is not balanced (sum debits != sum credits)")
	ErrDocumentVoid       = errors.New("document has already been voided")
	ErrImmutableLedger    = errors.New("immutable ledger row")
)

// ValidationError reports malformed operation input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StockError is returned when an operation would drive a product's stock
// below zero. The whole operation is rejected; stock is never clamped.
type StockError struct {
	ProductId   int
	ProductName string
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *StockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = fmt.Sprintf("product %d", e.ProductId)
	}
	return fmt.Sprintf("insufficient stock for %s: available %s, requested %s",
		name, e.Available.String(), e.Requested.String())
}

// AmountExceedsBalanceError is returned when a payment, collection or
// configured-off return credit would push a party balance past zero.
type AmountExceedsBalanceError struct {
	PartyType   PartyType
	PartyId     int
	Outstanding decimal.Decimal
	Requested   decimal.Decimal
}

// Remainder is the portion of the requested amount not covered by the
// outstanding balance. Surfaced so callers never clamp silently.
func (e *AmountExceedsBalanceError) Remainder() decimal.Decimal {
	return e.Requested.Sub(e.Outstanding)
}

func (e *AmountExceedsBalanceError) Error() string {
	role := "customer"
	if e.PartyType == PartyTypeSupplier {
		role = "supplier"
	}
	return fmt.Sprintf("amount exceeds outstanding balance for %s %d: outstanding %s, requested %s (remainder %s)",
		role, e.PartyId, e.Outstanding.String(), e.Requested.String(), e.Remainder().String())
}

// OrphanedReferenceError describes a ledger row whose parent document no
// longer exists. Reconciliation surfaces these for operator decision; they
// are never auto-repaired.
type OrphanedReferenceError struct {
	EntityType    string
	EntityId      int
	ReferenceType string
	ReferenceId   int
}

func (e *OrphanedReferenceError) Error() string {
	return fmt.Sprintf("%s %d references missing %s %d",
		e.EntityType, e.EntityId, e.ReferenceType, e.ReferenceId)
}
