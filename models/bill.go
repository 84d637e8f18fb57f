package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_engine/utils"
	"github.com/shopspring/decimal"
)

// Bill records a purchase from a supplier; IsReturn marks purchase returns.
type Bill struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	BusinessId          string          `gorm:"index;size:100;not null" json:"business_id"`
	SupplierId          int             `gorm:"index;not null" json:"supplier_id"`
	BillNumber          string          `gorm:"size:255;index" json:"bill_number"`
	BillDate            time.Time       `gorm:"index;not null" json:"bill_date"`
	IsReturn            *bool           `gorm:"not null;default:false" json:"is_return"`
	CurrentStatus       DocumentStatus  `gorm:"type:enum('Draft','Confirmed','Void');default:Confirmed" json:"current_status"`
	Notes               string          `gorm:"type:text" json:"notes"`
	BillSubtotal        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bill_subtotal"`
	BillDiscountAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bill_discount_amount"`
	BillTotalAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bill_total_amount"`
	BillTotalPaidAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bill_total_paid_amount"`
	BillDueAmount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bill_due_amount"`
	Details             []BillDetail    `gorm:"foreignKey:BillId" json:"details"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type BillDetail struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	BillId               int             `gorm:"index;not null" json:"bill_id"`
	ProductId            int             `gorm:"index;not null" json:"product_id"`
	Name                 string          `gorm:"size:100" json:"name"`
	DetailQty            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_qty"`
	DetailUnitCost       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_cost"`
	DetailDiscountAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_discount_amount"`
	DetailTotalAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_total_amount"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBill struct {
	SupplierId int             `json:"supplierId" validate:"required"`
	BillDate   time.Time       `json:"billDate" validate:"required"`
	IsReturn   *bool           `json:"isReturn"`
	Notes      string          `json:"notes"`
	PaidAmount decimal.Decimal `json:"paidAmount"`
	Details    []NewBillDetail `json:"details" validate:"required,min=1,dive"`
}

type NewBillDetail struct {
	ProductId            int             `json:"productId" validate:"required"`
	DetailQty            decimal.Decimal `json:"detailQty"`
	DetailUnitCost       decimal.Decimal `json:"detailUnitCost"`
	DetailDiscountAmount decimal.Decimal `json:"detailDiscountAmount"`
}

func (b *Bill) IsPurchaseReturn() bool {
	return b.IsReturn != nil && *b.IsReturn
}

func GetBill(ctx context.Context, id int) (*Bill, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchModel[Bill](ctx, businessId, id, "Details")
}

func GetBills(ctx context.Context) ([]*Bill, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchAllModels[Bill](ctx, businessId, "Details")
}
