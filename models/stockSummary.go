package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockSummary caches a product's current stock. Authoritative state is the
// stock_histories ledger; reconciliation repairs drift.
type StockSummary struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"uniqueIndex:idx_ss_biz_product;size:100;not null" json:"business_id"`
	ProductId  int             `gorm:"uniqueIndex:idx_ss_biz_product;not null" json:"product_id"`
	CurrentQty decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_qty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// FirstOrCreateStockSummary locks the summary row for the rest of the
// caller's transaction, creating it at zero on first use.
func FirstOrCreateStockSummary(tx *gorm.DB, businessId string, productId int) (*StockSummary, error) {
	stockSummary := StockSummary{
		BusinessId: businessId,
		ProductId:  productId,
	}
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND product_id = ?", businessId, productId).
		FirstOrCreate(&stockSummary)
	if result.Error != nil {
		return nil, result.Error
	}
	return &stockSummary, nil
}

// ApplyStockSummaryDelta adjusts the cached quantity in place. Increment
// form so concurrent postings never overwrite each other.
func ApplyStockSummaryDelta(tx *gorm.DB, businessId string, productId int, delta decimal.Decimal) error {
	return tx.Exec(
		"UPDATE stock_summaries SET current_qty = current_qty + ? WHERE business_id = ? AND product_id = ?",
		delta, businessId, productId).Error
}

// GetProductStock reads the cached quantity inside the caller's transaction.
func GetProductStock(tx *gorm.DB, businessId string, productId int) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := tx.Raw(
		"SELECT COALESCE(current_qty, 0) FROM stock_summaries WHERE business_id = ? AND product_id = ?",
		businessId, productId).Scan(&qty).Error
	return qty, err
}
