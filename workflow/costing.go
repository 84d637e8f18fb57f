package workflow

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/pos_engine/models"
)

// WeightedAverageCost folds one incoming receipt into the running average:
//
//	newCost = (prevStock*prevCost + qty*unitCost) / (prevStock + qty)
//
// A non-positive resulting stock would divide by zero (or worse); the
// incoming unit cost is taken as-is in that case.
func WeightedAverageCost(prevStock, prevCost, qty, unitCost decimal.Decimal) decimal.Decimal {
	total := prevStock.Add(qty)
	if total.LessThanOrEqual(decimal.Zero) {
		return unitCost
	}
	value := prevStock.Mul(prevCost).Add(qty.Mul(unitCost))
	return value.Div(total)
}

// costUpdatingKind reports whether a movement kind participates in the
// weighted average. Only receipts that introduce new value do: opening
// stock and non-return purchases. Returns, sales and adjustments move
// quantity at the cost already on record.
func costUpdatingKind(kind models.MovementKind) bool {
	return kind == models.MovementKindOpening || kind == models.MovementKindPurchase
}

// ReplayAverageCost rebuilds a product's weighted average cost from its
// full stock ledger, applying the same fold the incremental path applies.
// Reversal rows never contribute value, matching the incremental behavior
// where a voided purchase's receipt is cancelled by replaying without it.
func ReplayAverageCost(tx *gorm.DB, businessId string, productId int) (decimal.Decimal, error) {
	var histories []*models.StockHistory
	err := tx.Where("business_id = ? AND product_id = ?", businessId, productId).
		Order("id asc").
		Find(&histories).Error
	if err != nil {
		return decimal.Zero, err
	}

	reversed := make(map[int]bool)
	for _, h := range histories {
		if h.IsReversal && h.ReversesStockHistoryId != nil {
			reversed[*h.ReversesStockHistoryId] = true
		}
	}

	stock := decimal.Zero
	cost := decimal.Zero
	for _, h := range histories {
		if h.IsReversal || reversed[h.ID] {
			continue
		}
		if costUpdatingKind(h.Kind) {
			cost = WeightedAverageCost(stock, cost, h.Qty, h.UnitCost)
		}
		stock = stock.Add(h.Qty)
	}
	return cost, nil
}
