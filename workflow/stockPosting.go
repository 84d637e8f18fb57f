package workflow

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/pos_engine/config"
	"bitbucket.org/mmdatafocus/pos_engine/models"
)

// StockEntry is one requested stock movement. Qty is signed; UnitCost zero
// means "value at the product's current average cost".
type StockEntry struct {
	ProductId         int
	Kind              models.MovementKind
	Qty               decimal.Decimal
	UnitCost          decimal.Decimal
	Description       string
	ReferenceType     models.AccountReferenceType
	ReferenceID       int
	ReferenceDetailID int
}

func validateEntryKind(e *StockEntry) error {
	switch e.Kind {
	case models.MovementKindOpening, models.MovementKindPurchase, models.MovementKindSaleReturn:
		if e.Qty.IsNegative() {
			return models.NewValidationError("qty", fmt.Sprintf("%s movement must be incoming", e.Kind))
		}
	case models.MovementKindSale, models.MovementKindPurchaseReturn:
		if e.Qty.IsPositive() {
			return models.NewValidationError("qty", fmt.Sprintf("%s movement must be outgoing", e.Kind))
		}
	case models.MovementKindAdjustment:
		// either direction
	default:
		return models.NewValidationError("kind", fmt.Sprintf("unknown movement kind %q", e.Kind))
	}
	return nil
}

// PostStockMovements appends stock ledger rows for one document, updating
// the summary cache and the weighted average cost in the same transaction.
//
// All touched summary and product rows are locked in ascending product id
// order before any write. The whole batch is rejected with a StockError if
// any product would close below zero; partial postings never happen.
func PostStockMovements(tx *gorm.DB, logger *logrus.Logger, businessId string, movementDate time.Time, entries []*StockEntry) ([]*models.StockHistory, error) {

	filtered := make([]*StockEntry, 0, len(entries))
	productIds := make([]int, 0, len(entries))
	seen := make(map[int]bool)
	for _, e := range entries {
		if e == nil || e.Qty.IsZero() {
			continue
		}
		if err := validateEntryKind(e); err != nil {
			return nil, err
		}
		filtered = append(filtered, e)
		if !seen[e.ProductId] {
			seen[e.ProductId] = true
			productIds = append(productIds, e.ProductId)
		}
	}
	if len(filtered) == 0 {
		return []*models.StockHistory{}, nil
	}
	sort.Ints(productIds)

	// Lock product and summary rows in a stable order.
	products := make(map[int]*models.Product, len(productIds))
	running := make(map[int]decimal.Decimal, len(productIds))
	costs := make(map[int]decimal.Decimal, len(productIds))
	for _, productId := range productIds {
		product, err := models.GetProductForUpdate(tx, businessId, productId)
		if err != nil {
			config.LogError(logger, "stockPosting", "PostStockMovements", "lock product", productId, err)
			return nil, err
		}
		summary, err := models.FirstOrCreateStockSummary(tx, businessId, productId)
		if err != nil {
			config.LogError(logger, "stockPosting", "PostStockMovements", "lock stock summary", productId, err)
			return nil, err
		}
		products[productId] = product
		running[productId] = summary.CurrentQty
		costs[productId] = product.CostPrice
	}

	// Validate the whole batch before writing anything.
	net := make(map[int]decimal.Decimal, len(productIds))
	requestedOut := make(map[int]decimal.Decimal, len(productIds))
	for _, e := range filtered {
		net[e.ProductId] = net[e.ProductId].Add(e.Qty)
		if e.Qty.IsNegative() {
			requestedOut[e.ProductId] = requestedOut[e.ProductId].Add(e.Qty.Neg())
		}
	}
	for _, productId := range productIds {
		if running[productId].Add(net[productId]).IsNegative() {
			return nil, &models.StockError{
				ProductId:   productId,
				ProductName: products[productId].Name,
				Available:   running[productId],
				Requested:   requestedOut[productId],
			}
		}
	}

	histories := make([]*models.StockHistory, 0, len(filtered))
	for _, e := range filtered {
		unitCost := e.UnitCost
		if unitCost.IsZero() && !costUpdatingKind(e.Kind) {
			unitCost = costs[e.ProductId]
		}
		if costUpdatingKind(e.Kind) {
			costs[e.ProductId] = WeightedAverageCost(running[e.ProductId], costs[e.ProductId], e.Qty, unitCost)
		}
		running[e.ProductId] = running[e.ProductId].Add(e.Qty)

		history := &models.StockHistory{
			BusinessId:        businessId,
			ProductId:         e.ProductId,
			Kind:              e.Kind,
			MovementDate:      movementDate,
			Qty:               e.Qty,
			ClosingQty:        running[e.ProductId],
			UnitCost:          unitCost,
			Description:       e.Description,
			ReferenceType:     e.ReferenceType,
			ReferenceID:       e.ReferenceID,
			ReferenceDetailID: e.ReferenceDetailID,
		}
		if err := tx.Create(history).Error; err != nil {
			config.LogError(logger, "stockPosting", "PostStockMovements", "create stock history", e, err)
			return nil, err
		}
		histories = append(histories, history)
	}

	for _, productId := range productIds {
		if err := models.ApplyStockSummaryDelta(tx, businessId, productId, net[productId]); err != nil {
			config.LogError(logger, "stockPosting", "PostStockMovements", "update stock summary", productId, err)
			return nil, err
		}
		if !costs[productId].Equal(products[productId].CostPrice) {
			if err := models.UpdateProductCostPrice(tx, businessId, productId, costs[productId]); err != nil {
				config.LogError(logger, "stockPosting", "PostStockMovements", "update cost price", productId, err)
				return nil, err
			}
		}
	}

	return histories, nil
}
