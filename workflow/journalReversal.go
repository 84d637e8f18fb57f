package workflow

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/pos_engine/models"
)

// ReverseAccountJournal creates a reversal journal that negates the
// original's transactions and re-applies the cached account balances.
//
// Posted journals are never deleted; the original is marked with
// reversed_by_journal_id and only that linkage is updated.
func ReverseAccountJournal(tx *gorm.DB, original *models.AccountJournal, reason string) (reversalJournalID int, err error) {
	if tx == nil || original == nil {
		return 0, fmt.Errorf("reverse journal: tx/original is nil")
	}

	// Idempotent behavior: if already reversed, return existing reversal id.
	if original.ReversedByJournalId != nil && *original.ReversedByJournalId > 0 {
		return *original.ReversedByJournalId, nil
	}

	// Ensure transactions are loaded.
	if original.AccountTransactions == nil {
		var loaded models.AccountJournal
		if err := tx.Preload("AccountTransactions").Where("id = ?", original.ID).First(&loaded).Error; err != nil {
			return 0, err
		}
		original = &loaded
	}

	reasonCopy := reason
	now := time.Now().UTC()

	reversal := models.AccountJournal{
		BusinessId:          original.BusinessId,
		TransactionDateTime: original.TransactionDateTime,
		TransactionNumber:   "REV-" + original.TransactionNumber,
		TransactionDetails:  "Reversal: " + reasonCopy,
		CustomerId:          original.CustomerId,
		SupplierId:          original.SupplierId,
		ReferenceId:         original.ReferenceId,
		ReferenceType:       original.ReferenceType,
		IsReversal:          true,
		ReversesJournalId:   &original.ID,
		ReversalReason:      &reasonCopy,
	}
	if err := tx.Create(&reversal).Error; err != nil {
		return 0, err
	}

	for _, t := range original.AccountTransactions {
		// Swap debit and credit; the pair nets the account back to where
		// it stood before the original posting.
		delta := t.Credit.Sub(t.Debit)
		if err := models.ApplyAccountBalanceDelta(tx, original.BusinessId, t.AccountId, delta); err != nil {
			return 0, err
		}
		closing, err := models.GetAccountBalance(tx, original.BusinessId, t.AccountId)
		if err != nil {
			return 0, err
		}
		reversedTx := models.AccountTransaction{
			BusinessId:          t.BusinessId,
			JournalId:           reversal.ID,
			AccountId:           t.AccountId,
			TransactionDateTime: t.TransactionDateTime,
			Description:         t.Description,
			Debit:               t.Credit,
			Credit:              t.Debit,
			ClosingBalance:      closing,
		}
		if err := tx.Create(&reversedTx).Error; err != nil {
			return 0, err
		}
	}

	// Mark original as reversed (metadata-only update).
	if err := tx.Model(&models.AccountJournal{}).
		Where("id = ?", original.ID).
		Updates(map[string]interface{}{
			"reversed_by_journal_id": reversal.ID,
			"reversal_reason":        &reasonCopy,
			"reversed_at":            &now,
		}).Error; err != nil {
		return 0, err
	}

	return reversal.ID, nil
}
