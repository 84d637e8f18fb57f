package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockHistory is the append-only stock ledger. Qty is signed (negative for
// outgoing); ClosingQty and UnitCost are snapshots taken when the row is
// written and are never recomputed afterwards.
type StockHistory struct {
	ID                int                  `gorm:"primary_key" json:"id"`
	BusinessId        string               `gorm:"index;not null;index:idx_sh_biz_product,priority:1;index:idx_sh_biz_ref,priority:1" json:"business_id"`
	ProductId         int                  `gorm:"index;not null;index:idx_sh_biz_product,priority:2" json:"product_id"`
	Kind              MovementKind         `gorm:"type:enum('OP','PU','PR','SA','SR','AJ');not null" json:"kind"`
	MovementDate      time.Time            `gorm:"not null" json:"movement_date"`
	Qty               decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"qty"`
	ClosingQty        decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"closing_qty"`
	UnitCost          decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	Description       string               `gorm:"size:100" json:"description"`
	ReferenceType     AccountReferenceType `gorm:"type:enum('IV','BL','CP','SP','IA','POS','COB','SOB');index:idx_sh_biz_ref,priority:2" json:"reference_type"`
	ReferenceID       int                  `gorm:"index:idx_sh_biz_ref,priority:3" json:"reference_id"`
	ReferenceDetailID int                  `json:"reference_detail_id"`
	IsOutgoing        *bool                `gorm:"not null;default:false" json:"is_outgoing"`
	// Inventory ledger immutability & reversals (append-only).
	IsReversal               bool       `gorm:"not null;default:false;index" json:"is_reversal"`
	ReversesStockHistoryId   *int       `gorm:"index" json:"reverses_stock_history_id"`
	ReversedByStockHistoryId *int       `gorm:"index" json:"reversed_by_stock_history_id"`
	ReversalReason           *string    `gorm:"type:text" json:"reversal_reason"`
	ReversedAt               *time.Time `gorm:"index" json:"reversed_at"`
	CreatedAt                time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeSave keeps IsOutgoing aligned with the qty sign. Queries classify
// consumptions by IsOutgoing, so a stale flag misreports availability.
func (sh *StockHistory) BeforeSave(tx *gorm.DB) error {
	_ = tx // signature required by gorm; tx may be nil in tests
	if sh == nil {
		return nil
	}
	if sh.IsOutgoing == nil {
		b := false
		sh.IsOutgoing = &b
	}
	if sh.Qty.IsZero() {
		return nil
	}
	b := sh.Qty.IsNegative()
	sh.IsOutgoing = &b
	return nil
}

func (sh *StockHistory) BeforeUpdate(tx *gorm.DB) error {
	// Allow only reversal linkage fields to be updated.
	allowed := map[string]bool{
		"IsReversal":               true,
		"ReversesStockHistoryId":   true,
		"ReversedByStockHistoryId": true,
		"ReversalReason":           true,
		"ReversedAt":               true,
		"IsOutgoing":               true,
		"UpdatedAt":                true,
	}
	if tx == nil || tx.Statement == nil || tx.Statement.Schema == nil {
		return nil
	}
	for _, f := range tx.Statement.Schema.Fields {
		if tx.Statement.Changed(f.Name) && !allowed[f.Name] {
			return errors.New("immutable ledger: only reversal linkage fields may be updated on stock_histories")
		}
	}
	return nil
}

func (sh *StockHistory) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: stock_histories cannot be deleted")
}

// GetActiveStockHistories returns the movements currently in force for a
// document, skipping reversals and reversed rows.
func GetActiveStockHistories(tx *gorm.DB, businessId string, referenceType AccountReferenceType, referenceId int) ([]*StockHistory, error) {
	var histories []*StockHistory
	err := tx.Where("business_id = ? AND reference_type = ? AND reference_id = ?", businessId, referenceType, referenceId).
		Where("is_reversal = false AND reversed_by_stock_history_id IS NULL").
		Order("id asc").
		Find(&histories).Error
	return histories, err
}

// SumStockHistories recomputes a product's stock from the ledger.
func SumStockHistories(tx *gorm.DB, businessId string, productId int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.Raw(
		"SELECT COALESCE(SUM(qty), 0) FROM stock_histories WHERE business_id = ? AND product_id = ?",
		businessId, productId).Scan(&total).Error
	return total, err
}
