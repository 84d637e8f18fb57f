package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_engine/utils"
	"github.com/shopspring/decimal"
)

// InventoryAdjustment corrects one product's stock by a signed quantity.
// The value leg is posted at the product's cost price so inventory asset
// value stays aligned with the stock ledger.
type InventoryAdjustment struct {
	ID               int             `gorm:"primary_key" json:"id"`
	BusinessId       string          `gorm:"index;size:100;not null" json:"business_id"`
	ProductId        int             `gorm:"index;not null" json:"product_id"`
	AdjustmentNumber string          `gorm:"size:255;index" json:"adjustment_number"`
	AdjustmentDate   time.Time       `gorm:"index;not null" json:"adjustment_date"`
	Qty              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	UnitCost         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	Reason           string          `gorm:"size:255" json:"reason"`
	CurrentStatus    DocumentStatus  `gorm:"type:enum('Draft','Confirmed','Void');default:Confirmed" json:"current_status"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInventoryAdjustment struct {
	ProductId      int             `json:"productId" validate:"required"`
	AdjustmentDate time.Time       `json:"adjustmentDate" validate:"required"`
	Qty            decimal.Decimal `json:"qty"`
	Reason         string          `json:"reason" validate:"required,max=255"`
}

func GetInventoryAdjustment(ctx context.Context, id int) (*InventoryAdjustment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchModel[InventoryAdjustment](ctx, businessId, id)
}

func GetInventoryAdjustments(ctx context.Context) ([]*InventoryAdjustment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchAllModels[InventoryAdjustment](ctx, businessId)
}
