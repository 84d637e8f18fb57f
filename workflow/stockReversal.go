package workflow

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/pos_engine/models"
)

// ReverseStockHistories appends reversal rows negating the provided
// originals. Original rows are never deleted; only their reversal linkage
// is updated.
//
// The same negative-stock rule applies as on posting: if cancelling an
// incoming movement would drive the product below zero (its stock has
// since been sold), the reversal is rejected with a StockError.
func ReverseStockHistories(tx *gorm.DB, originals []*models.StockHistory, reason string) ([]*models.StockHistory, error) {
	if tx == nil {
		return nil, fmt.Errorf("reverse stock: tx is nil")
	}

	pending := make([]*models.StockHistory, 0, len(originals))
	productIds := make([]int, 0, len(originals))
	seen := make(map[int]bool)
	for _, o := range originals {
		if o == nil {
			continue
		}
		// If already reversed, skip quietly.
		if o.ReversedByStockHistoryId != nil && *o.ReversedByStockHistoryId > 0 {
			continue
		}
		pending = append(pending, o)
		if !seen[o.ProductId] {
			seen[o.ProductId] = true
			productIds = append(productIds, o.ProductId)
		}
	}
	if len(pending) == 0 {
		return []*models.StockHistory{}, nil
	}
	sort.Ints(productIds)

	businessId := pending[0].BusinessId
	running := make(map[int]decimal.Decimal, len(productIds))
	net := make(map[int]decimal.Decimal, len(productIds))
	names := make(map[int]string, len(productIds))
	for _, productId := range productIds {
		product, err := models.GetProductForUpdate(tx, businessId, productId)
		if err != nil {
			return nil, err
		}
		names[productId] = product.Name
		summary, err := models.FirstOrCreateStockSummary(tx, businessId, productId)
		if err != nil {
			return nil, err
		}
		running[productId] = summary.CurrentQty
	}
	for _, o := range pending {
		net[o.ProductId] = net[o.ProductId].Add(o.Qty.Neg())
	}
	for _, productId := range productIds {
		if running[productId].Add(net[productId]).IsNegative() {
			requested := net[productId].Neg()
			if requested.IsNegative() {
				requested = decimal.Zero
			}
			return nil, &models.StockError{
				ProductId:   productId,
				ProductName: names[productId],
				Available:   running[productId],
				Requested:   requested,
			}
		}
	}

	now := time.Now().UTC()
	reasonCopy := reason
	reversals := make([]*models.StockHistory, 0, len(pending))
	for _, o := range pending {
		running[o.ProductId] = running[o.ProductId].Add(o.Qty.Neg())
		rev := &models.StockHistory{
			BusinessId:             o.BusinessId,
			ProductId:              o.ProductId,
			Kind:                   o.Kind,
			MovementDate:           o.MovementDate,
			Qty:                    o.Qty.Neg(),
			ClosingQty:             running[o.ProductId],
			UnitCost:               o.UnitCost,
			Description:            "REV: " + o.Description,
			ReferenceType:          o.ReferenceType,
			ReferenceID:            o.ReferenceID,
			ReferenceDetailID:      o.ReferenceDetailID,
			IsReversal:             true,
			ReversesStockHistoryId: &o.ID,
			ReversalReason:         &reasonCopy,
		}
		if err := tx.Create(rev).Error; err != nil {
			return nil, err
		}

		// Mark original reversed (metadata-only update).
		if err := tx.Model(&models.StockHistory{}).
			Where("id = ?", o.ID).
			Updates(map[string]interface{}{
				"reversed_by_stock_history_id": rev.ID,
				"reversal_reason":              &reasonCopy,
				"reversed_at":                  &now,
			}).Error; err != nil {
			return nil, err
		}
		reversals = append(reversals, rev)
	}

	for _, productId := range productIds {
		if err := models.ApplyStockSummaryDelta(tx, businessId, productId, net[productId]); err != nil {
			return nil, err
		}
	}

	return reversals, nil
}
