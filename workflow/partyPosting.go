package workflow

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/pos_engine/models"
)

// PartyEntryInput describes one debit/credit against a customer or
// supplier. A debit raises what the party side owes, for both roles.
type PartyEntryInput struct {
	PartyType           models.PartyType
	PartyId             int
	TransactionDateTime time.Time
	Debit               decimal.Decimal
	Credit              decimal.Decimal
	Description         string
	ReferenceType       models.AccountReferenceType
	ReferenceId         int
	// AllowNegative lets a credit push the balance past zero. Payments
	// always pass false; return credits pass the business policy.
	AllowNegative bool
}

// PostPartyEntry appends one party ledger row and maintains the cached
// balance under the party row lock, all inside the caller's transaction.
func PostPartyEntry(tx *gorm.DB, businessId string, input PartyEntryInput) (*models.PartyLedgerEntry, error) {
	if input.Debit.IsNegative() || input.Credit.IsNegative() {
		return nil, models.NewValidationError("amount", "party entry amounts cannot be negative")
	}
	if input.Debit.IsPositive() && input.Credit.IsPositive() {
		return nil, models.NewValidationError("amount", "party entry cannot carry both debit and credit")
	}

	balance, err := models.GetPartyBalanceForUpdate(tx, businessId, input.PartyType, input.PartyId)
	if err != nil {
		return nil, err
	}

	delta := input.Debit.Sub(input.Credit)
	closing := balance.Add(delta)
	if closing.IsNegative() && !input.AllowNegative {
		return nil, &models.AmountExceedsBalanceError{
			PartyType:   input.PartyType,
			PartyId:     input.PartyId,
			Outstanding: balance,
			Requested:   input.Credit,
		}
	}

	if err := models.ApplyPartyBalanceDelta(tx, businessId, input.PartyType, input.PartyId, delta); err != nil {
		return nil, err
	}

	entry := &models.PartyLedgerEntry{
		BusinessId:          businessId,
		PartyType:           input.PartyType,
		PartyId:             input.PartyId,
		TransactionDateTime: input.TransactionDateTime,
		Description:         input.Description,
		Debit:               input.Debit,
		Credit:              input.Credit,
		ClosingBalance:      closing,
		ReferenceType:       input.ReferenceType,
		ReferenceId:         input.ReferenceId,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// ReversePartyEntries appends swapped-side rows negating the originals and
// re-applies the cached balances. Compensating writes always go through,
// so the balance guard is not applied here.
func ReversePartyEntries(tx *gorm.DB, originals []*models.PartyLedgerEntry, reason string) ([]*models.PartyLedgerEntry, error) {
	if tx == nil {
		return nil, fmt.Errorf("reverse party entries: tx is nil")
	}

	now := time.Now().UTC()
	reasonCopy := reason
	reversals := make([]*models.PartyLedgerEntry, 0, len(originals))
	for _, o := range originals {
		if o == nil {
			continue
		}
		// If already reversed, skip quietly.
		if o.ReversedByEntryId != nil && *o.ReversedByEntryId > 0 {
			continue
		}

		balance, err := models.GetPartyBalanceForUpdate(tx, o.BusinessId, o.PartyType, o.PartyId)
		if err != nil {
			return nil, err
		}
		delta := o.Credit.Sub(o.Debit)
		if err := models.ApplyPartyBalanceDelta(tx, o.BusinessId, o.PartyType, o.PartyId, delta); err != nil {
			return nil, err
		}

		rev := &models.PartyLedgerEntry{
			BusinessId:          o.BusinessId,
			PartyType:           o.PartyType,
			PartyId:             o.PartyId,
			TransactionDateTime: o.TransactionDateTime,
			Description:         "REV: " + o.Description,
			Debit:               o.Credit,
			Credit:              o.Debit,
			ClosingBalance:      balance.Add(delta),
			ReferenceType:       o.ReferenceType,
			ReferenceId:         o.ReferenceId,
			IsReversal:          true,
			ReversesEntryId:     &o.ID,
			ReversalReason:      &reasonCopy,
		}
		if err := tx.Create(rev).Error; err != nil {
			return nil, err
		}

		// Mark original reversed (metadata-only update).
		if err := tx.Model(&models.PartyLedgerEntry{}).
			Where("id = ?", o.ID).
			Updates(map[string]interface{}{
				"reversed_by_entry_id": rev.ID,
				"reversal_reason":      &reasonCopy,
				"reversed_at":          &now,
			}).Error; err != nil {
			return nil, err
		}
		reversals = append(reversals, rev)
	}
	return reversals, nil
}
