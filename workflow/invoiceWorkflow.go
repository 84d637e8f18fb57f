package workflow

import (
	"context"
	"errors"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/pos_engine/config"
	"bitbucket.org/mmdatafocus/pos_engine/models"
	"bitbucket.org/mmdatafocus/pos_engine/utils"
)

// CreateSalesInvoice posts a sale (or sale return) atomically: the document,
// its stock movements, the COGS/revenue journal and the customer ledger
// entry all commit together or not at all.
func CreateSalesInvoice(ctx context.Context, input *models.NewSalesInvoice) (*models.SalesInvoice, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	business, err := models.GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}

	isReturn := input.IsReturn != nil && *input.IsReturn

	var subtotal, discountTotal, taxTotal decimal.Decimal
	for _, item := range input.Details {
		if !item.DetailQty.IsPositive() {
			return nil, models.NewValidationError("detailQty", "quantity must be positive")
		}
		if item.DetailUnitRate.IsNegative() {
			return nil, models.NewValidationError("detailUnitRate", "unit rate cannot be negative")
		}
		if item.DetailDiscountAmount.IsNegative() || item.DetailTaxAmount.IsNegative() {
			return nil, models.NewValidationError("details", "discount and tax cannot be negative")
		}
		subtotal = subtotal.Add(item.DetailQty.Mul(item.DetailUnitRate))
		discountTotal = discountTotal.Add(item.DetailDiscountAmount)
		taxTotal = taxTotal.Add(item.DetailTaxAmount)
	}
	total := subtotal.Sub(discountTotal).Add(taxTotal)
	if total.IsNegative() {
		return nil, models.NewValidationError("details", "invoice total cannot be negative")
	}
	paid := input.PaidAmount
	if paid.IsNegative() {
		return nil, models.NewValidationError("paidAmount", "paid amount cannot be negative")
	}
	if paid.GreaterThan(total) {
		return nil, models.NewValidationError("paidAmount", "paid amount cannot exceed invoice total")
	}
	due := total.Sub(paid)
	if input.CustomerId == 0 && due.IsPositive() {
		return nil, models.NewValidationError("paidAmount", "walk-in sales must be paid in full")
	}

	if input.CustomerId > 0 {
		if err := utils.ValidateResourceId[models.Customer](ctx, businessId, input.CustomerId); err != nil {
			return nil, err
		}
	}
	productIds := make([]int, 0, len(input.Details))
	for _, item := range input.Details {
		productIds = append(productIds, item.ProductId)
	}
	if err := utils.ValidateResourcesId[models.Product](ctx, businessId, utils.UniqueSlice(productIds)); err != nil {
		return nil, err
	}

	tx := db.Begin()
	committed := false
	// Always rollback on early-return or panic to avoid leaking DB locks.
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

	invoiceNumber, err := models.NextTransactionNumber(tx, businessId, "SalesInvoice")
	if err != nil {
		return nil, err
	}

	invoice := models.SalesInvoice{
		BusinessId:             businessId,
		CustomerId:             input.CustomerId,
		InvoiceNumber:          invoiceNumber,
		InvoiceDate:            input.InvoiceDate,
		IsReturn:               input.IsReturn,
		CurrentStatus:          models.DocumentStatusConfirmed,
		Notes:                  input.Notes,
		InvoiceSubtotal:        subtotal,
		InvoiceDiscountAmount:  discountTotal,
		InvoiceTaxAmount:       taxTotal,
		InvoiceTotalAmount:     total,
		InvoiceTotalPaidAmount: paid,
		InvoiceDueAmount:       due,
	}
	for _, item := range input.Details {
		invoice.Details = append(invoice.Details, models.SalesInvoiceDetail{
			ProductId:            item.ProductId,
			DetailQty:            item.DetailQty,
			DetailUnitRate:       item.DetailUnitRate,
			DetailDiscountAmount: item.DetailDiscountAmount,
			DetailTaxAmount:      item.DetailTaxAmount,
			DetailTotalAmount:    item.DetailQty.Mul(item.DetailUnitRate).Sub(item.DetailDiscountAmount).Add(item.DetailTaxAmount),
		})
	}
	if err := tx.Create(&invoice).Error; err != nil {
		config.LogError(logger, "invoiceWorkflow", "CreateSalesInvoice", "create invoice", input, err)
		return nil, err
	}

	kind := models.MovementKindSale
	if isReturn {
		kind = models.MovementKindSaleReturn
	}
	stockEntries := make([]*StockEntry, 0, len(invoice.Details))
	for i := range invoice.Details {
		detail := &invoice.Details[i]
		qty := detail.DetailQty.Neg()
		if isReturn {
			qty = detail.DetailQty
		}
		stockEntries = append(stockEntries, &StockEntry{
			ProductId:         detail.ProductId,
			Kind:              kind,
			Qty:               qty,
			Description:       invoiceNumber,
			ReferenceType:     models.AccountReferenceTypeInvoice,
			ReferenceID:       invoice.ID,
			ReferenceDetailID: detail.ID,
		})
	}
	histories, err := PostStockMovements(tx, logger, businessId, input.InvoiceDate, stockEntries)
	if err != nil {
		return nil, err
	}

	// Capture the unit cost each line consumed; it is the COGS basis and
	// the basis for valuing a later reversal.
	costByDetail := make(map[int]decimal.Decimal, len(histories))
	cogs := decimal.Zero
	for _, h := range histories {
		costByDetail[h.ReferenceDetailID] = h.UnitCost
		cogs = cogs.Add(h.Qty.Abs().Mul(h.UnitCost))
	}
	for i := range invoice.Details {
		detail := &invoice.Details[i]
		if unitCost, found := costByDetail[detail.ID]; found {
			detail.DetailUnitCost = unitCost
			if err := tx.Model(&models.SalesInvoiceDetail{}).
				Where("id = ?", detail.ID).
				Update("detail_unit_cost", unitCost).Error; err != nil {
				return nil, err
			}
		}
	}

	systemAccounts, err := models.GetSystemAccounts(ctx, businessId)
	if err != nil {
		return nil, err
	}
	legs, err := salesInvoiceJournalEntries(systemAccounts, isReturn, paid, due, subtotal.Sub(discountTotal), taxTotal, cogs)
	if err != nil {
		return nil, err
	}
	_, err = PostAccountJournal(tx, logger, businessId, JournalInput{
		TransactionDateTime: input.InvoiceDate,
		TransactionNumber:   invoiceNumber,
		TransactionDetails:  invoiceDetailsText(isReturn),
		ReferenceType:       models.AccountReferenceTypeInvoice,
		ReferenceId:         invoice.ID,
		CustomerId:          input.CustomerId,
		Entries:             legs,
	})
	if err != nil {
		return nil, err
	}

	if input.CustomerId > 0 && due.IsPositive() {
		entry := PartyEntryInput{
			PartyType:           models.PartyTypeCustomer,
			PartyId:             input.CustomerId,
			TransactionDateTime: input.InvoiceDate,
			Description:         invoiceNumber,
			ReferenceType:       models.AccountReferenceTypeInvoice,
			ReferenceId:         invoice.ID,
		}
		if isReturn {
			entry.Credit = due
			entry.AllowNegative = business.AllowsNegativePartyBalance()
		} else {
			entry.Debit = due
		}
		if _, err := PostPartyEntry(tx, businessId, entry); err != nil {
			return nil, err
		}
	}

	ReleaseBusinessPostingLock(tx, businessId)
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	committed = true
	return &invoice, nil
}

func invoiceDetailsText(isReturn bool) string {
	if isReturn {
		return "Sale return"
	}
	return "Sales invoice"
}

// salesInvoiceJournalEntries builds the revenue and COGS legs. For returns
// every leg swaps sides, so the journal is the exact mirror of a sale.
func salesInvoiceJournalEntries(systemAccounts map[string]*models.Account, isReturn bool, paid, due, revenue, tax, cogs decimal.Decimal) ([]JournalEntry, error) {
	required := []string{
		models.AccountCodeCash, models.AccountCodeAccountsReceivable, models.AccountCodeSales,
		models.AccountCodeTaxPayable, models.AccountCodeCostOfGoodsSold, models.AccountCodeInventoryAsset,
	}
	for _, code := range required {
		if systemAccounts[code] == nil {
			return nil, errors.New("system account missing: " + code)
		}
	}

	legs := []JournalEntry{
		{AccountId: systemAccounts[models.AccountCodeCash].ID, Debit: paid, Description: "Cash"},
		{AccountId: systemAccounts[models.AccountCodeAccountsReceivable].ID, Debit: due, Description: "Accounts receivable"},
		{AccountId: systemAccounts[models.AccountCodeSales].ID, Credit: revenue, Description: "Sales"},
		{AccountId: systemAccounts[models.AccountCodeTaxPayable].ID, Credit: tax, Description: "Tax payable"},
		{AccountId: systemAccounts[models.AccountCodeCostOfGoodsSold].ID, Debit: cogs, Description: "Cost of goods sold"},
		{AccountId: systemAccounts[models.AccountCodeInventoryAsset].ID, Credit: cogs, Description: "Inventory asset"},
	}
	if isReturn {
		for i := range legs {
			legs[i].Debit, legs[i].Credit = legs[i].Credit, legs[i].Debit
		}
	}
	return legs, nil
}

// DeleteSalesInvoice voids an invoice by reversing its journal, stock
// movements and customer ledger entries. The document row survives with
// status Void; ledger rows are never physically removed.
//
// Voiding a sale puts the sold quantity back; voiding a sale return takes
// the returned quantity out again, which is rejected with a StockError if
// that stock has since been sold.
func DeleteSalesInvoice(ctx context.Context, id int) (_ *models.SalesInvoice, err error) {
	db := config.GetDB()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	invoice, err := models.GetSalesInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.CurrentStatus == models.DocumentStatusVoid {
		return nil, models.ErrDocumentVoid
	}

	// The key is claimed outside the posting transaction so it survives a
	// rollback and records the outcome either way.
	messageId := strconv.Itoa(id)
	skip, err := BeginIdempotency(db, businessId, "DeleteSalesInvoice", messageId)
	if err != nil {
		return nil, err
	}
	if skip {
		return invoice, nil
	}
	defer func() {
		if err != nil {
			_ = MarkIdempotencyFailed(db, businessId, "DeleteSalesInvoice", messageId, err)
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
		return nil, err
	}

	reason := "void invoice " + invoice.InvoiceNumber
	if err := reverseDocumentPostings(tx, logger, businessId, models.AccountReferenceTypeInvoice, id, reason); err != nil {
		return nil, err
	}

	if err := tx.Model(&models.SalesInvoice{}).
		Where("business_id = ? AND id = ?", businessId, id).
		Update("current_status", models.DocumentStatusVoid).Error; err != nil {
		return nil, err
	}
	if err := MarkIdempotencySucceeded(tx, businessId, "DeleteSalesInvoice", messageId); err != nil {
		return nil, err
	}
	ReleaseBusinessPostingLock(tx, businessId)
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	committed = true
	invoice.CurrentStatus = models.DocumentStatusVoid
	return invoice, nil
}

// reverseDocumentPostings reverses whatever ledger rows a document still
// has in force: its journal, stock movements and party entries.
func reverseDocumentPostings(tx *gorm.DB, logger *logrus.Logger, businessId string, referenceType models.AccountReferenceType, referenceId int, reason string) error {
	journal, err := models.GetActiveAccountJournal(tx, businessId, referenceType, referenceId)
	if err == nil {
		if _, err := ReverseAccountJournal(tx, journal, reason); err != nil {
			return err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	} else {
		logger.Warnf("no active journal for %s %d", referenceType, referenceId)
	}

	histories, err := models.GetActiveStockHistories(tx, businessId, referenceType, referenceId)
	if err != nil {
		return err
	}
	if _, err := ReverseStockHistories(tx, histories, reason); err != nil {
		return err
	}

	entries, err := models.GetActivePartyLedgerEntries(tx, businessId, referenceType, referenceId)
	if err != nil {
		return err
	}
	if _, err := ReversePartyEntries(tx, entries, reason); err != nil {
		return err
	}
	return nil
}
