package workflow

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/pos_engine/config"
	"bitbucket.org/mmdatafocus/pos_engine/models"
)

// JournalEntry is one leg of a journal to be posted. Exactly one of Debit
// and Credit may be positive; zero-amount legs are dropped.
type JournalEntry struct {
	AccountId   int
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

type JournalInput struct {
	TransactionDateTime time.Time
	TransactionNumber   string
	TransactionDetails  string
	ReferenceType       models.AccountReferenceType
	ReferenceId         int
	CustomerId          int
	SupplierId          int
	Entries             []JournalEntry
}

// PostAccountJournal writes one balanced journal and maintains the cached
// account balances. The group must satisfy sum(debits) == sum(credits)
// exactly; an unbalanced group is rejected as a whole.
func PostAccountJournal(tx *gorm.DB, logger *logrus.Logger, businessId string, input JournalInput) (*models.AccountJournal, error) {

	legs := make([]JournalEntry, 0, len(input.Entries))
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, e := range input.Entries {
		if e.Debit.IsNegative() || e.Credit.IsNegative() {
			return nil, models.NewValidationError("amount", "journal leg amounts cannot be negative")
		}
		if e.Debit.IsPositive() && e.Credit.IsPositive() {
			return nil, models.NewValidationError("amount", "journal leg cannot carry both debit and credit")
		}
		if e.Debit.IsZero() && e.Credit.IsZero() {
			continue
		}
		legs = append(legs, e)
		totalDebit = totalDebit.Add(e.Debit)
		totalCredit = totalCredit.Add(e.Credit)
	}
	if len(legs) == 0 {
		return nil, nil
	}
	if !totalDebit.Equal(totalCredit) {
		config.LogError(logger, "journalPosting", "PostAccountJournal", "balance check", input, models.ErrUnbalancedJournal)
		return nil, models.ErrUnbalancedJournal
	}

	journal := models.AccountJournal{
		BusinessId:          businessId,
		TransactionDateTime: input.TransactionDateTime,
		TransactionNumber:   input.TransactionNumber,
		TransactionDetails:  input.TransactionDetails,
		CustomerId:          input.CustomerId,
		SupplierId:          input.SupplierId,
		ReferenceId:         input.ReferenceId,
		ReferenceType:       input.ReferenceType,
	}
	if err := tx.Create(&journal).Error; err != nil {
		config.LogError(logger, "journalPosting", "PostAccountJournal", "create journal", input, err)
		return nil, err
	}

	for _, leg := range legs {
		delta := leg.Debit.Sub(leg.Credit)
		if err := models.ApplyAccountBalanceDelta(tx, businessId, leg.AccountId, delta); err != nil {
			config.LogError(logger, "journalPosting", "PostAccountJournal", "update account balance", leg, err)
			return nil, err
		}
		closing, err := models.GetAccountBalance(tx, businessId, leg.AccountId)
		if err != nil {
			return nil, err
		}
		transaction := models.AccountTransaction{
			BusinessId:          businessId,
			JournalId:           journal.ID,
			AccountId:           leg.AccountId,
			TransactionDateTime: input.TransactionDateTime,
			Description:         leg.Description,
			Debit:               leg.Debit,
			Credit:              leg.Credit,
			ClosingBalance:      closing,
		}
		if err := tx.Create(&transaction).Error; err != nil {
			config.LogError(logger, "journalPosting", "PostAccountJournal", "create transaction", leg, err)
			return nil, err
		}
		journal.AccountTransactions = append(journal.AccountTransactions, transaction)
	}

	return &journal, nil
}
