package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AccountJournal struct {
	ID                  int                  `gorm:"primary_key" json:"id"`
	BusinessId          string               `gorm:"index;not null;index:idx_aj_biz_ref,priority:1;index:idx_aj_biz_date,priority:1" json:"business_id"`
	TransactionDateTime time.Time            `gorm:"index;not null;index:idx_aj_biz_date,priority:2" json:"transaction_date_time"`
	TransactionNumber   string               `gorm:"size:255" json:"transaction_number"`
	TransactionDetails  string               `gorm:"type:text" json:"transaction_details"`
	CustomerId          int                  `gorm:"index" json:"customer_id"`
	SupplierId          int                  `gorm:"index" json:"supplier_id"`
	ReferenceId         int                  `gorm:"index:idx_aj_biz_ref,priority:3" json:"reference_id"`
	ReferenceType       AccountReferenceType `gorm:"type:enum('IV','BL','CP','SP','IA','POS','COB','SOB');index:idx_aj_biz_ref,priority:2" json:"reference_type"`
	// Posted journals are never deleted; changes are done by inserting a
	// reversal journal. For a given (reference_type, reference_id) at most
	// one journal is active: is_reversal = false AND reversed_by_journal_id IS NULL.
	IsReversal          bool                 `gorm:"not null;default:false;index" json:"is_reversal"`
	ReversesJournalId   *int                 `gorm:"index" json:"reverses_journal_id"`
	ReversedByJournalId *int                 `gorm:"index" json:"reversed_by_journal_id"`
	ReversalReason      *string              `gorm:"type:text" json:"reversal_reason"`
	ReversedAt          *time.Time           `gorm:"index" json:"reversed_at"`
	AccountTransactions []AccountTransaction `gorm:"foreignKey:JournalId" json:"account_transactions"`
	CreatedAt           time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type AccountTransaction struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	BusinessId          string          `gorm:"index;index:idx_at_biz_acct_date,priority:1" json:"business_id"`
	JournalId           int             `gorm:"index;not null" json:"journal_id"`
	AccountId           int             `gorm:"index;not null;index:idx_at_biz_acct_date,priority:2" json:"account_id"`
	TransactionDateTime time.Time       `gorm:"index;not null;index:idx_at_biz_acct_date,priority:3" json:"transaction_date_time"`
	Description         string          `gorm:"size:255" json:"description"`
	Debit               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit"`
	ClosingBalance      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"closing_balance"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Ledger immutability guardrails:
// - account_transactions are append-only (no updates/deletes).
// - account_journals must never be deleted; limited updates are allowed
//   only for reversal linkage fields.

func (t *AccountTransaction) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: account_transactions cannot be updated")
}

func (t *AccountTransaction) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: account_transactions cannot be deleted")
}

func (j *AccountJournal) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: account_journals cannot be deleted")
}

func (j *AccountJournal) BeforeUpdate(tx *gorm.DB) error {
	// Allow only reversal linkage fields to be updated.
	allowed := map[string]bool{
		"IsReversal":          true,
		"ReversesJournalId":   true,
		"ReversedByJournalId": true,
		"ReversalReason":      true,
		"ReversedAt":          true,
		"UpdatedAt":           true,
	}
	if tx == nil || tx.Statement == nil || tx.Statement.Schema == nil {
		return nil
	}
	for _, f := range tx.Statement.Schema.Fields {
		if tx.Statement.Changed(f.Name) && !allowed[f.Name] {
			return errors.New("immutable ledger: only reversal linkage fields may be updated on account_journals")
		}
	}
	return nil
}

// GetActiveAccountJournal returns the journal currently in force for a
// document, skipping reversals and reversed journals.
func GetActiveAccountJournal(tx *gorm.DB, businessId string, referenceType AccountReferenceType, referenceId int) (*AccountJournal, error) {
	var journal AccountJournal
	err := tx.Preload("AccountTransactions").
		Where("business_id = ? AND reference_type = ? AND reference_id = ?", businessId, referenceType, referenceId).
		Where("is_reversal = false AND reversed_by_journal_id IS NULL").
		First(&journal).Error
	if err != nil {
		return nil, err
	}
	return &journal, nil
}

// SumAccountTransactions recomputes an account's balance from its rows.
func SumAccountTransactions(tx *gorm.DB, businessId string, accountId int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.Raw(
		"SELECT COALESCE(SUM(debit - credit), 0) FROM account_transactions WHERE business_id = ? AND account_id = ?",
		businessId, accountId).Scan(&total).Error
	return total, err
}
