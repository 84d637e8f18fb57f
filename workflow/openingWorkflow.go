package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/pos_engine/config"
	"bitbucket.org/mmdatafocus/pos_engine/models"
	"bitbucket.org/mmdatafocus/pos_engine/utils"
)

// CreateProduct registers a product and, when an opening quantity is given,
// posts the opening stock movement and its equity journal in the same
// transaction. Opening stock seeds the weighted average cost.
func CreateProduct(ctx context.Context, input *models.NewProduct) (*models.Product, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if input.OpeningStockQty.IsNegative() {
		return nil, models.NewValidationError("openingStockQty", "opening stock cannot be negative")
	}
	if input.OpeningStockUnitCost.IsNegative() {
		return nil, models.NewValidationError("openingStockUnitCost", "opening unit cost cannot be negative")
	}
	if input.Sku != "" {
		if err := utils.ValidateUnique[models.Product](ctx, businessId, "sku", input.Sku, 0); err != nil {
			return nil, err
		}
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

	product := models.Product{
		BusinessId: businessId,
		Name:       input.Name,
		Sku:        input.Sku,
		Barcode:    input.Barcode,
		SalePrice:  input.SalePrice,
		MinStock:   input.MinStock,
		MaxStock:   input.MaxStock,
		IsActive:   utils.NewTrue(),
	}
	if err := tx.Create(&product).Error; err != nil {
		config.LogError(logger, "openingWorkflow", "CreateProduct", "create product", input, err)
		return nil, err
	}

	if input.OpeningStockQty.IsPositive() {
		openingDate := time.Now().UTC()
		if input.OpeningStockDate != nil {
			openingDate = *input.OpeningStockDate
		}
		histories, err := PostStockMovements(tx, logger, businessId, openingDate, []*StockEntry{{
			ProductId:     product.ID,
			Kind:          models.MovementKindOpening,
			Qty:           input.OpeningStockQty,
			UnitCost:      input.OpeningStockUnitCost,
			Description:   "Opening stock",
			ReferenceType: models.AccountReferenceTypeProductOpeningStock,
			ReferenceID:   product.ID,
		}})
		if err != nil {
			return nil, err
		}
		product.CostPrice = input.OpeningStockUnitCost

		systemAccounts, err := models.GetSystemAccounts(ctx, businessId)
		if err != nil {
			return nil, err
		}
		inventory := systemAccounts[models.AccountCodeInventoryAsset]
		equity := systemAccounts[models.AccountCodeOpeningBalanceEquity]
		if inventory == nil || equity == nil {
			return nil, errors.New("system accounts missing for opening stock")
		}
		value := histories[0].Qty.Mul(histories[0].UnitCost)
		_, err = PostAccountJournal(tx, logger, businessId, JournalInput{
			TransactionDateTime: openingDate,
			TransactionDetails:  "Opening stock: " + product.Name,
			ReferenceType:       models.AccountReferenceTypeProductOpeningStock,
			ReferenceId:         product.ID,
			Entries: []JournalEntry{
				{AccountId: inventory.ID, Debit: value, Description: "Inventory asset"},
				{AccountId: equity.ID, Credit: value, Description: "Opening balance equity"},
			},
		})
		if err != nil {
			return nil, err
		}
	}

	ReleaseBusinessPostingLock(tx, businessId)
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	committed = true
	return &product, nil
}

// CreateCustomer registers a customer; a non-zero opening balance posts a
// party debit backed by an equity journal.
func CreateCustomer(ctx context.Context, input *models.NewCustomer) (*models.Customer, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if input.OpeningBalance.IsNegative() {
		return nil, models.NewValidationError("openingBalance", "opening balance cannot be negative")
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

	customer := models.Customer{
		BusinessId: businessId,
		Name:       input.Name,
		Phone:      input.Phone,
		Email:      input.Email,
		Address:    input.Address,
		IsActive:   utils.NewTrue(),
	}
	if err := tx.Create(&customer).Error; err != nil {
		config.LogError(logger, "openingWorkflow", "CreateCustomer", "create customer", input, err)
		return nil, err
	}

	if input.OpeningBalance.IsPositive() {
		openingDate := time.Now().UTC()
		if input.OpeningBalanceDate != nil {
			openingDate = *input.OpeningBalanceDate
		}
		_, err := PostPartyEntry(tx, businessId, PartyEntryInput{
			PartyType:           models.PartyTypeCustomer,
			PartyId:             customer.ID,
			TransactionDateTime: openingDate,
			Debit:               input.OpeningBalance,
			Description:         "Opening balance",
			ReferenceType:       models.AccountReferenceTypeCustomerOpeningBalance,
			ReferenceId:         customer.ID,
		})
		if err != nil {
			return nil, err
		}
		customer.Balance = input.OpeningBalance

		systemAccounts, err := models.GetSystemAccounts(ctx, businessId)
		if err != nil {
			return nil, err
		}
		receivable := systemAccounts[models.AccountCodeAccountsReceivable]
		equity := systemAccounts[models.AccountCodeOpeningBalanceEquity]
		if receivable == nil || equity == nil {
			return nil, errors.New("system accounts missing for customer opening balance")
		}
		_, err = PostAccountJournal(tx, logger, businessId, JournalInput{
			TransactionDateTime: openingDate,
			TransactionDetails:  "Customer opening balance: " + customer.Name,
			ReferenceType:       models.AccountReferenceTypeCustomerOpeningBalance,
			ReferenceId:         customer.ID,
			CustomerId:          customer.ID,
			Entries: []JournalEntry{
				{AccountId: receivable.ID, Debit: input.OpeningBalance, Description: "Accounts receivable"},
				{AccountId: equity.ID, Credit: input.OpeningBalance, Description: "Opening balance equity"},
			},
		})
		if err != nil {
			return nil, err
		}
	}

	ReleaseBusinessPostingLock(tx, businessId)
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	committed = true
	return &customer, nil
}

// CreateSupplier mirrors CreateCustomer on the payable side.
func CreateSupplier(ctx context.Context, input *models.NewSupplier) (*models.Supplier, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if input.OpeningBalance.IsNegative() {
		return nil, models.NewValidationError("openingBalance", "opening balance cannot be negative")
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

	supplier := models.Supplier{
		BusinessId: businessId,
		Name:       input.Name,
		Phone:      input.Phone,
		Email:      input.Email,
		Address:    input.Address,
		IsActive:   utils.NewTrue(),
	}
	if err := tx.Create(&supplier).Error; err != nil {
		config.LogError(logger, "openingWorkflow", "CreateSupplier", "create supplier", input, err)
		return nil, err
	}

	if input.OpeningBalance.IsPositive() {
		openingDate := time.Now().UTC()
		if input.OpeningBalanceDate != nil {
			openingDate = *input.OpeningBalanceDate
		}
		_, err := PostPartyEntry(tx, businessId, PartyEntryInput{
			PartyType:           models.PartyTypeSupplier,
			PartyId:             supplier.ID,
			TransactionDateTime: openingDate,
			Debit:               input.OpeningBalance,
			Description:         "Opening balance",
			ReferenceType:       models.AccountReferenceTypeSupplierOpeningBalance,
			ReferenceId:         supplier.ID,
		})
		if err != nil {
			return nil, err
		}
		supplier.Balance = input.OpeningBalance

		systemAccounts, err := models.GetSystemAccounts(ctx, businessId)
		if err != nil {
			return nil, err
		}
		payable := systemAccounts[models.AccountCodeAccountsPayable]
		equity := systemAccounts[models.AccountCodeOpeningBalanceEquity]
		if payable == nil || equity == nil {
			return nil, errors.New("system accounts missing for supplier opening balance")
		}
		_, err = PostAccountJournal(tx, logger, businessId, JournalInput{
			TransactionDateTime: openingDate,
			TransactionDetails:  "Supplier opening balance: " + supplier.Name,
			ReferenceType:       models.AccountReferenceTypeSupplierOpeningBalance,
			ReferenceId:         supplier.ID,
			SupplierId:          supplier.ID,
			Entries: []JournalEntry{
				{AccountId: equity.ID, Debit: input.OpeningBalance, Description: "Opening balance equity"},
				{AccountId: payable.ID, Credit: input.OpeningBalance, Description: "Accounts payable"},
			},
		})
		if err != nil {
			return nil, err
		}
	}

	ReleaseBusinessPostingLock(tx, businessId)
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	committed = true
	return &supplier, nil
}
