package workflow

import (
	"context"
	"errors"
	"strconv"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/pos_engine/config"
	"bitbucket.org/mmdatafocus/pos_engine/models"
	"bitbucket.org/mmdatafocus/pos_engine/utils"
)

// CreateBill posts a purchase (or purchase return). Non-return purchase
// lines fold into the product's weighted average cost; returns move
// quantity at the cost on the bill line without touching the average.
func CreateBill(ctx context.Context, input *models.NewBill) (*models.Bill, error) {
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

	var subtotal, discountTotal decimal.Decimal
	for _, item := range input.Details {
		if !item.DetailQty.IsPositive() {
			return nil, models.NewValidationError("detailQty", "quantity must be positive")
		}
		if item.DetailUnitCost.IsNegative() {
			return nil, models.NewValidationError("detailUnitCost", "unit cost cannot be negative")
		}
		if item.DetailDiscountAmount.IsNegative() {
			return nil, models.NewValidationError("detailDiscountAmount", "discount cannot be negative")
		}
		lineGross := item.DetailQty.Mul(item.DetailUnitCost)
		if item.DetailDiscountAmount.GreaterThan(lineGross) {
			return nil, models.NewValidationError("detailDiscountAmount", "discount cannot exceed line amount")
		}
		subtotal = subtotal.Add(lineGross)
		discountTotal = discountTotal.Add(item.DetailDiscountAmount)
	}
	total := subtotal.Sub(discountTotal)
	paid := input.PaidAmount
	if paid.IsNegative() {
		return nil, models.NewValidationError("paidAmount", "paid amount cannot be negative")
	}
	if paid.GreaterThan(total) {
		return nil, models.NewValidationError("paidAmount", "paid amount cannot exceed bill total")
	}
	due := total.Sub(paid)

	if err := utils.ValidateResourceId[models.Supplier](ctx, businessId, input.SupplierId); err != nil {
		return nil, err
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

	billNumber, err := models.NextTransactionNumber(tx, businessId, "Bill")
	if err != nil {
		return nil, err
	}

	bill := models.Bill{
		BusinessId:          businessId,
		SupplierId:          input.SupplierId,
		BillNumber:          billNumber,
		BillDate:            input.BillDate,
		IsReturn:            input.IsReturn,
		CurrentStatus:       models.DocumentStatusConfirmed,
		Notes:               input.Notes,
		BillSubtotal:        subtotal,
		BillDiscountAmount:  discountTotal,
		BillTotalAmount:     total,
		BillTotalPaidAmount: paid,
		BillDueAmount:       due,
	}
	for _, item := range input.Details {
		bill.Details = append(bill.Details, models.BillDetail{
			ProductId:            item.ProductId,
			DetailQty:            item.DetailQty,
			DetailUnitCost:       item.DetailUnitCost,
			DetailDiscountAmount: item.DetailDiscountAmount,
			DetailTotalAmount:    item.DetailQty.Mul(item.DetailUnitCost).Sub(item.DetailDiscountAmount),
		})
	}
	if err := tx.Create(&bill).Error; err != nil {
		config.LogError(logger, "billWorkflow", "CreateBill", "create bill", input, err)
		return nil, err
	}

	kind := models.MovementKindPurchase
	if isReturn {
		kind = models.MovementKindPurchaseReturn
	}
	stockEntries := make([]*StockEntry, 0, len(bill.Details))
	for i := range bill.Details {
		detail := &bill.Details[i]
		qty := detail.DetailQty
		if isReturn {
			qty = detail.DetailQty.Neg()
		}
		// Value stock at the discounted line cost so the stock ledger and
		// the inventory asset account agree to the cent.
		effectiveCost := detail.DetailUnitCost
		if detail.DetailDiscountAmount.IsPositive() {
			effectiveCost = detail.DetailTotalAmount.Div(detail.DetailQty)
		}
		stockEntries = append(stockEntries, &StockEntry{
			ProductId:         detail.ProductId,
			Kind:              kind,
			Qty:               qty,
			UnitCost:          effectiveCost,
			Description:       billNumber,
			ReferenceType:     models.AccountReferenceTypeBill,
			ReferenceID:       bill.ID,
			ReferenceDetailID: detail.ID,
		})
	}
	if _, err := PostStockMovements(tx, logger, businessId, input.BillDate, stockEntries); err != nil {
		return nil, err
	}

	systemAccounts, err := models.GetSystemAccounts(ctx, businessId)
	if err != nil {
		return nil, err
	}
	for _, code := range []string{models.AccountCodeInventoryAsset, models.AccountCodeCash, models.AccountCodeAccountsPayable} {
		if systemAccounts[code] == nil {
			return nil, errors.New("system account missing: " + code)
		}
	}
	legs := []JournalEntry{
		{AccountId: systemAccounts[models.AccountCodeInventoryAsset].ID, Debit: total, Description: "Inventory asset"},
		{AccountId: systemAccounts[models.AccountCodeCash].ID, Credit: paid, Description: "Cash"},
		{AccountId: systemAccounts[models.AccountCodeAccountsPayable].ID, Credit: due, Description: "Accounts payable"},
	}
	if isReturn {
		for i := range legs {
			legs[i].Debit, legs[i].Credit = legs[i].Credit, legs[i].Debit
		}
	}
	_, err = PostAccountJournal(tx, logger, businessId, JournalInput{
		TransactionDateTime: input.BillDate,
		TransactionNumber:   billNumber,
		TransactionDetails:  billDetailsText(isReturn),
		ReferenceType:       models.AccountReferenceTypeBill,
		ReferenceId:         bill.ID,
		SupplierId:          input.SupplierId,
		Entries:             legs,
	})
	if err != nil {
		return nil, err
	}

	if due.IsPositive() {
		entry := PartyEntryInput{
			PartyType:           models.PartyTypeSupplier,
			PartyId:             input.SupplierId,
			TransactionDateTime: input.BillDate,
			Description:         billNumber,
			ReferenceType:       models.AccountReferenceTypeBill,
			ReferenceId:         bill.ID,
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
	return &bill, nil
}

func billDetailsText(isReturn bool) string {
	if isReturn {
		return "Purchase return"
	}
	return "Purchase bill"
}

// DeleteBill voids a bill by reversing its ledger rows. Voiding a purchase
// takes the received quantity back out, so it is rejected with a StockError
// when that stock has already been sold. The average cost cache is rebuilt
// from the surviving ledger so a void-then-recreate round trip converges.
func DeleteBill(ctx context.Context, id int) (_ *models.Bill, err error) {
	db := config.GetDB()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	bill, err := models.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.CurrentStatus == models.DocumentStatusVoid {
		return nil, models.ErrDocumentVoid
	}

	// Claim the key outside the posting transaction so it survives a
	// rollback and records the outcome either way.
	messageId := strconv.Itoa(id)
	skip, err := BeginIdempotency(db, businessId, "DeleteBill", messageId)
	if err != nil {
		return nil, err
	}
	if skip {
		return bill, nil
	}
	defer func() {
		if err != nil {
			_ = MarkIdempotencyFailed(db, businessId, "DeleteBill", messageId, err)
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

	reason := "void bill " + bill.BillNumber
	if err := reverseDocumentPostings(tx, logger, businessId, models.AccountReferenceTypeBill, id, reason); err != nil {
		return nil, err
	}

	// Rebuild each product's average cost without the voided receipts.
	productIds := make([]int, 0, len(bill.Details))
	seen := make(map[int]bool)
	for _, detail := range bill.Details {
		if !seen[detail.ProductId] {
			seen[detail.ProductId] = true
			productIds = append(productIds, detail.ProductId)
		}
	}
	if !bill.IsPurchaseReturn() {
		for _, productId := range productIds {
			replayed, err := ReplayAverageCost(tx, businessId, productId)
			if err != nil {
				return nil, err
			}
			if err := models.UpdateProductCostPrice(tx, businessId, productId, replayed); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Model(&models.Bill{}).
		Where("business_id = ? AND id = ?", businessId, id).
		Update("current_status", models.DocumentStatusVoid).Error; err != nil {
		return nil, err
	}
	if err := MarkIdempotencySucceeded(tx, businessId, "DeleteBill", messageId); err != nil {
		return nil, err
	}
	ReleaseBusinessPostingLock(tx, businessId)
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	committed = true
	bill.CurrentStatus = models.DocumentStatusVoid
	return bill, nil
}
