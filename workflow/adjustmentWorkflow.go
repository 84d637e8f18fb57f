package workflow

import (
	"context"
	"errors"
	"strconv"

	"bitbucket.org/mmdatafocus/pos_engine/config"
	"bitbucket.org/mmdatafocus/pos_engine/models"
	"bitbucket.org/mmdatafocus/pos_engine/utils"
)

// CreateInventoryAdjustment corrects one product's stock by a signed
// quantity. The value leg is posted at the product's current average cost,
// so the adjustment never moves the average itself.
func CreateInventoryAdjustment(ctx context.Context, input *models.NewInventoryAdjustment) (*models.InventoryAdjustment, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if input.Qty.IsZero() {
		return nil, models.NewValidationError("qty", "adjustment quantity cannot be zero")
	}
	if err := utils.ValidateResourceId[models.Product](ctx, businessId, input.ProductId); err != nil {
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

	adjustmentNumber, err := models.NextTransactionNumber(tx, businessId, "InventoryAdjustment")
	if err != nil {
		return nil, err
	}
	adjustment := models.InventoryAdjustment{
		BusinessId:       businessId,
		ProductId:        input.ProductId,
		AdjustmentNumber: adjustmentNumber,
		AdjustmentDate:   input.AdjustmentDate,
		Qty:              input.Qty,
		Reason:           input.Reason,
		CurrentStatus:    models.DocumentStatusConfirmed,
	}
	if err := tx.Create(&adjustment).Error; err != nil {
		config.LogError(logger, "adjustmentWorkflow", "CreateInventoryAdjustment", "create adjustment", input, err)
		return nil, err
	}

	histories, err := PostStockMovements(tx, logger, businessId, input.AdjustmentDate, []*StockEntry{{
		ProductId:     input.ProductId,
		Kind:          models.MovementKindAdjustment,
		Qty:           input.Qty,
		Description:   adjustmentNumber + ": " + input.Reason,
		ReferenceType: models.AccountReferenceTypeInventoryAdjustment,
		ReferenceID:   adjustment.ID,
	}})
	if err != nil {
		return nil, err
	}
	unitCost := histories[0].UnitCost
	adjustment.UnitCost = unitCost
	if err := tx.Model(&models.InventoryAdjustment{}).
		Where("id = ?", adjustment.ID).
		Update("unit_cost", unitCost).Error; err != nil {
		return nil, err
	}

	systemAccounts, err := models.GetSystemAccounts(ctx, businessId)
	if err != nil {
		return nil, err
	}
	inventory := systemAccounts[models.AccountCodeInventoryAsset]
	writeOff := systemAccounts[models.AccountCodeStockAdjustments]
	if inventory == nil || writeOff == nil {
		return nil, errors.New("system accounts missing for inventory adjustment")
	}
	value := input.Qty.Abs().Mul(unitCost)
	legs := []JournalEntry{
		{AccountId: inventory.ID, Debit: value, Description: "Inventory asset"},
		{AccountId: writeOff.ID, Credit: value, Description: "Stock adjustments"},
	}
	if input.Qty.IsNegative() {
		legs[0].Debit, legs[0].Credit = legs[0].Credit, legs[0].Debit
		legs[1].Debit, legs[1].Credit = legs[1].Credit, legs[1].Debit
	}
	_, err = PostAccountJournal(tx, logger, businessId, JournalInput{
		TransactionDateTime: input.AdjustmentDate,
		TransactionNumber:   adjustmentNumber,
		TransactionDetails:  "Inventory adjustment: " + input.Reason,
		ReferenceType:       models.AccountReferenceTypeInventoryAdjustment,
		ReferenceId:         adjustment.ID,
		Entries:             legs,
	})
	if err != nil {
		return nil, err
	}

	ReleaseBusinessPostingLock(tx, businessId)
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	committed = true
	return &adjustment, nil
}

// DeleteInventoryAdjustment voids an adjustment by reversing its stock
// movement and journal.
func DeleteInventoryAdjustment(ctx context.Context, id int) (_ *models.InventoryAdjustment, err error) {
	db := config.GetDB()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	adjustment, err := models.GetInventoryAdjustment(ctx, id)
	if err != nil {
		return nil, err
	}
	if adjustment.CurrentStatus == models.DocumentStatusVoid {
		return nil, models.ErrDocumentVoid
	}

	// Claim the key outside the posting transaction so it survives a
	// rollback and records the outcome either way.
	messageId := strconv.Itoa(id)
	skip, err := BeginIdempotency(db, businessId, "DeleteInventoryAdjustment", messageId)
	if err != nil {
		return nil, err
	}
	if skip {
		return adjustment, nil
	}
	defer func() {
		if err != nil {
			_ = MarkIdempotencyFailed(db, businessId, "DeleteInventoryAdjustment", messageId, err)
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

	reason := "void adjustment " + adjustment.AdjustmentNumber
	if err := reverseDocumentPostings(tx, logger, businessId, models.AccountReferenceTypeInventoryAdjustment, id, reason); err != nil {
		return nil, err
	}

	if err := tx.Model(&models.InventoryAdjustment{}).
		Where("business_id = ? AND id = ?", businessId, id).
		Update("current_status", models.DocumentStatusVoid).Error; err != nil {
		return nil, err
	}
	if err := MarkIdempotencySucceeded(tx, businessId, "DeleteInventoryAdjustment", messageId); err != nil {
		return nil, err
	}
	ReleaseBusinessPostingLock(tx, businessId)
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	committed = true
	adjustment.CurrentStatus = models.DocumentStatusVoid
	return adjustment, nil
}
