package models

import (
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/pos_engine/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PartyLedgerEntry records one debit/credit against a customer or supplier.
// ClosingBalance is the running balance snapshot taken when the row is
// written. Balance always equals sum(debit - credit): a debit raises what
// the party side owes, for both roles.
type PartyLedgerEntry struct {
	ID                  int                  `gorm:"primary_key" json:"id"`
	BusinessId          string               `gorm:"index;size:100;not null;index:idx_ple_biz_party,priority:1;index:idx_ple_biz_ref,priority:1" json:"business_id"`
	PartyType           PartyType            `gorm:"type:enum('C','S');not null;index:idx_ple_biz_party,priority:2" json:"party_type"`
	PartyId             int                  `gorm:"index;not null;index:idx_ple_biz_party,priority:3" json:"party_id"`
	TransactionDateTime time.Time            `gorm:"index;not null" json:"transaction_date_time"`
	Description         string               `gorm:"size:255" json:"description"`
	Debit               decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit              decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"credit"`
	ClosingBalance      decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"closing_balance"`
	ReferenceType       AccountReferenceType `gorm:"type:enum('IV','BL','CP','SP','IA','POS','COB','SOB');index:idx_ple_biz_ref,priority:2" json:"reference_type"`
	ReferenceId         int                  `gorm:"index:idx_ple_biz_ref,priority:3" json:"reference_id"`
	IsReversal          bool                 `gorm:"not null;default:false;index" json:"is_reversal"`
	ReversesEntryId     *int                 `gorm:"index" json:"reverses_entry_id"`
	ReversedByEntryId   *int                 `gorm:"index" json:"reversed_by_entry_id"`
	ReversalReason      *string              `gorm:"type:text" json:"reversal_reason"`
	ReversedAt          *time.Time           `gorm:"index" json:"reversed_at"`
	CreatedAt           time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *PartyLedgerEntry) BeforeUpdate(tx *gorm.DB) error {
	// Allow only reversal linkage fields to be updated.
	allowed := map[string]bool{
		"IsReversal":        true,
		"ReversesEntryId":   true,
		"ReversedByEntryId": true,
		"ReversalReason":    true,
		"ReversedAt":        true,
		"UpdatedAt":         true,
	}
	if tx == nil || tx.Statement == nil || tx.Statement.Schema == nil {
		return nil
	}
	for _, f := range tx.Statement.Schema.Fields {
		if tx.Statement.Changed(f.Name) && !allowed[f.Name] {
			return errors.New("immutable ledger: only reversal linkage fields may be updated on party_ledger_entries")
		}
	}
	return nil
}

// Standalone entries (manual payments) may be hard-deleted together with a
// compensating balance adjustment; that path uses raw SQL so it bypasses
// this hook deliberately. Everything else must reverse instead.
func (e *PartyLedgerEntry) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: party_ledger_entries are removed by reversal or the payment-delete path")
}

func partyTable(partyType PartyType) (string, error) {
	switch partyType {
	case PartyTypeCustomer:
		return "customers", nil
	case PartyTypeSupplier:
		return "suppliers", nil
	}
	return "", fmt.Errorf("unknown party type %q", partyType)
}

// GetPartyBalanceForUpdate locks the party row and returns the cached
// balance for the rest of the caller's transaction.
func GetPartyBalanceForUpdate(tx *gorm.DB, businessId string, partyType PartyType, partyId int) (decimal.Decimal, error) {
	table, err := partyTable(partyType)
	if err != nil {
		return decimal.Zero, err
	}
	var row struct {
		ID      int
		Balance decimal.Decimal
	}
	err = tx.Raw("SELECT id, balance FROM "+table+" WHERE business_id = ? AND id = ? FOR UPDATE",
		businessId, partyId).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	if row.ID == 0 {
		return decimal.Zero, utils.ErrorRecordNotFound
	}
	return row.Balance, nil
}

// ApplyPartyBalanceDelta adjusts the cached balance in place.
func ApplyPartyBalanceDelta(tx *gorm.DB, businessId string, partyType PartyType, partyId int, delta decimal.Decimal) error {
	table, err := partyTable(partyType)
	if err != nil {
		return err
	}
	result := tx.Exec("UPDATE "+table+" SET balance = balance + ?, updated_at = NOW() WHERE business_id = ? AND id = ?",
		delta, businessId, partyId)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// SumPartyLedgerEntries recomputes a party balance from the ledger.
func SumPartyLedgerEntries(tx *gorm.DB, businessId string, partyType PartyType, partyId int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.Raw(
		"SELECT COALESCE(SUM(debit - credit), 0) FROM party_ledger_entries WHERE business_id = ? AND party_type = ? AND party_id = ?",
		businessId, partyType, partyId).Scan(&total).Error
	return total, err
}

// GetActivePartyLedgerEntries returns the entries currently in force for a
// document.
func GetActivePartyLedgerEntries(tx *gorm.DB, businessId string, referenceType AccountReferenceType, referenceId int) ([]*PartyLedgerEntry, error) {
	var entries []*PartyLedgerEntry
	err := tx.Where("business_id = ? AND reference_type = ? AND reference_id = ?", businessId, referenceType, referenceId).
		Where("is_reversal = false AND reversed_by_entry_id IS NULL").
		Order("id asc").
		Find(&entries).Error
	return entries, err
}
