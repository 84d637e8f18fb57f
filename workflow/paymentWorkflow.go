package workflow

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/pos_engine/config"
	"bitbucket.org/mmdatafocus/pos_engine/models"
	"bitbucket.org/mmdatafocus/pos_engine/utils"
)

// CreateCustomerPayment records a collection against a customer's
// outstanding balance. A collection larger than the balance is rejected
// with AmountExceedsBalanceError; it is never clamped.
func CreateCustomerPayment(ctx context.Context, input *models.NewCustomerPayment) (*models.CustomerPayment, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, models.NewValidationError("amount", "amount must be positive")
	}
	if err := utils.ValidateResourceId[models.Customer](ctx, businessId, input.CustomerId); err != nil {
		return nil, err
	}

	tx := db.Begin()
	committed := false
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() {
		if !committed {
			ReleaseBusinessPostingLock(tx, businessId)
			_ = tx.Rollback().Error
		}
	}()

	if err := AcquireBusinessPostingLock(tx, businessId); err != nil {
		return nil, err
	}

	paymentNumber, err := models.NextTransactionNumber(tx, businessId, "CustomerPayment")
	if err != nil {
		return nil, err
	}
	payment := models.CustomerPayment{
		BusinessId:    businessId,
		CustomerId:    input.CustomerId,
		PaymentNumber: paymentNumber,
		PaymentDate:   input.PaymentDate,
		Amount:        input.Amount,
		Notes:         input.Notes,
	}
	if err := tx.Create(&payment).Error; err != nil {
		config.LogError(logger, "paymentWorkflow", "CreateCustomerPayment", "create payment", input, err)
		return nil, err
	}

	// The collection reduces what the customer owes; never below zero.
	_, err = PostPartyEntry(tx, businessId, PartyEntryInput{
		PartyType:           models.PartyTypeCustomer,
		PartyId:             input.CustomerId,
		TransactionDateTime: input.PaymentDate,
		Credit:              input.Amount,
		Description:         paymentNumber,
		ReferenceType:       models.AccountReferenceTypeCustomerPayment,
		ReferenceId:         payment.ID,
	})
	if err != nil {
		return nil, err
	}

	systemAccounts, err := models.GetSystemAccounts(ctx, businessId)
	if err != nil {
		return nil, err
	}
	cash := systemAccounts[models.AccountCodeCash]
	receivable := systemAccounts[models.AccountCodeAccountsReceivable]
	if cash == nil || receivable == nil {
		return nil, errors.New("system accounts missing for customer payment")
	}
	_, err = PostAccountJournal(tx, logger, businessId, JournalInput{
		TransactionDateTime: input.PaymentDate,
		TransactionNumber:   paymentNumber,
		TransactionDetails:  "Customer payment",
		ReferenceType:       models.AccountReferenceTypeCustomerPayment,
		ReferenceId:         payment.ID,
		CustomerId:          input.CustomerId,
		Entries: []JournalEntry{
			{AccountId: cash.ID, Debit: input.Amount, Description: "Cash"},
			{AccountId: receivable.ID, Credit: input.Amount, Description: "Accounts receivable"},
		},
	})
	if err != nil {
		return nil, err
	}

	ReleaseBusinessPostingLock(tx, businessId)
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	committed = true
	return &payment, nil
}

// CreateSupplierPayment settles part of the outstanding payable to a
// supplier, with the same never-overpay guard as collections.
func CreateSupplierPayment(ctx context.Context, input *models.NewSupplierPayment) (*models.SupplierPayment, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, models.NewValidationError("amount", "amount must be positive")
	}
	if err := utils.ValidateResourceId[models.Supplier](ctx, businessId, input.SupplierId); err != nil {
		return nil, err
	}

	tx := db.Begin()
	committed := false
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() {
		if !committed {
			ReleaseBusinessPostingLock(tx, businessId)
			_ = tx.Rollback().Error
		}
	}()

	if err := AcquireBusinessPostingLock(tx, businessId); err != nil {
		return nil, err
	}

	paymentNumber, err := models.NextTransactionNumber(tx, businessId, "SupplierPayment")
	if err != nil {
		return nil, err
	}
	payment := models.SupplierPayment{
		BusinessId:    businessId,
		SupplierId:    input.SupplierId,
		PaymentNumber: paymentNumber,
		PaymentDate:   input.PaymentDate,
		Amount:        input.Amount,
		Notes:         input.Notes,
	}
	if err := tx.Create(&payment).Error; err != nil {
		config.LogError(logger, "paymentWorkflow", "CreateSupplierPayment", "create payment", input, err)
		return nil, err
	}

	_, err = PostPartyEntry(tx, businessId, PartyEntryInput{
		PartyType:           models.PartyTypeSupplier,
		PartyId:             input.SupplierId,
		TransactionDateTime: input.PaymentDate,
		Credit:              input.Amount,
		Description:         paymentNumber,
		ReferenceType:       models.AccountReferenceTypeSupplierPayment,
		ReferenceId:         payment.ID,
	})
	if err != nil {
		return nil, err
	}

	systemAccounts, err := models.GetSystemAccounts(ctx, businessId)
	if err != nil {
		return nil, err
	}
	cash := systemAccounts[models.AccountCodeCash]
	payable := systemAccounts[models.AccountCodeAccountsPayable]
	if cash == nil || payable == nil {
		return nil, errors.New("system accounts missing for supplier payment")
	}
	_, err = PostAccountJournal(tx, logger, businessId, JournalInput{
		TransactionDateTime: input.PaymentDate,
		TransactionNumber:   paymentNumber,
		TransactionDetails:  "Supplier payment",
		ReferenceType:       models.AccountReferenceTypeSupplierPayment,
		ReferenceId:         payment.ID,
		SupplierId:          input.SupplierId,
		Entries: []JournalEntry{
			{AccountId: payable.ID, Debit: input.Amount, Description: "Accounts payable"},
			{AccountId: cash.ID, Credit: input.Amount, Description: "Cash"},
		},
	})
	if err != nil {
		return nil, err
	}

	ReleaseBusinessPostingLock(tx, businessId)
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	committed = true
	return &payment, nil
}

// DeleteCustomerPayment removes a standalone collection. The payment and
// its party ledger entries are hard-deleted with a compensating balance
// adjustment; the journal side is reversed like any other posting.
func DeleteCustomerPayment(ctx context.Context, id int) error {
	payment, err := models.GetCustomerPayment(ctx, id)
	if err != nil {
		return err
	}
	return deleteStandalonePayment(ctx, models.AccountReferenceTypeCustomerPayment, id,
		"DeleteCustomerPayment", "void customer payment "+payment.PaymentNumber, &models.CustomerPayment{})
}

// DeleteSupplierPayment removes a standalone supplier payment the same way.
func DeleteSupplierPayment(ctx context.Context, id int) error {
	payment, err := models.GetSupplierPayment(ctx, id)
	if err != nil {
		return err
	}
	return deleteStandalonePayment(ctx, models.AccountReferenceTypeSupplierPayment, id,
		"DeleteSupplierPayment", "void supplier payment "+payment.PaymentNumber, &models.SupplierPayment{})
}

func deleteStandalonePayment(ctx context.Context, referenceType models.AccountReferenceType, id int, handler string, reason string, paymentModel interface{}) (err error) {
	db := config.GetDB()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return models.ErrBusinessIdRequired
	}

	// Claim the key outside the posting transaction so it survives a
	// rollback and records the outcome either way.
	messageId := strconv.Itoa(id)
	skip, err := BeginIdempotency(db, businessId, handler, messageId)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}
	defer func() {
		if err != nil {
			_ = MarkIdempotencyFailed(db, businessId, handler, messageId, err)
		}
	}()

	tx := db.Begin()
	committed := false
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() {
		if !committed {
			ReleaseBusinessPostingLock(tx, businessId)
			_ = tx.Rollback().Error
		}
	}()

	if err := AcquireBusinessPostingLock(tx, businessId); err != nil {
		return err
	}

	journal, err := models.GetActiveAccountJournal(tx, businessId, referenceType, id)
	if err == nil {
		if _, err := ReverseAccountJournal(tx, journal, reason); err != nil {
			return err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	// Standalone entries are hard-deleted; each removal carries its own
	// compensating balance adjustment. Raw SQL skips the append-only hook
	// on purpose: this is the one sanctioned removal path.
	entries, err := models.GetActivePartyLedgerEntries(tx, businessId, referenceType, id)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		compensation := entry.Credit.Sub(entry.Debit)
		if err := models.ApplyPartyBalanceDelta(tx, businessId, entry.PartyType, entry.PartyId, compensation); err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM party_ledger_entries WHERE id = ?", entry.ID).Error; err != nil {
			config.LogError(logger, "paymentWorkflow", "deleteStandalonePayment", "delete party entry", entry.ID, err)
			return err
		}
	}

	if err := tx.Where("business_id = ? AND id = ?", businessId, id).Delete(paymentModel).Error; err != nil {
		return err
	}
	if err := MarkIdempotencySucceeded(tx, businessId, handler, messageId); err != nil {
		return err
	}
	ReleaseBusinessPostingLock(tx, businessId)
	if err := tx.Commit().Error; err != nil {
		return err
	}
	committed = true
	return nil
}
