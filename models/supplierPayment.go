package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_engine/utils"
	"github.com/shopspring/decimal"
)

// SupplierPayment settles part of the business's outstanding payable to a
// supplier. It never exceeds that balance.
type SupplierPayment struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;size:100;not null" json:"business_id"`
	SupplierId    int             `gorm:"index;not null" json:"supplier_id"`
	PaymentNumber string          `gorm:"size:255;index" json:"payment_number"`
	PaymentDate   time.Time       `gorm:"index;not null" json:"payment_date"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplierPayment struct {
	SupplierId  int             `json:"supplierId" validate:"required"`
	PaymentDate time.Time       `json:"paymentDate" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Notes       string          `json:"notes"`
}

func GetSupplierPayment(ctx context.Context, id int) (*SupplierPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchModel[SupplierPayment](ctx, businessId, id)
}

func GetSupplierPayments(ctx context.Context) ([]*SupplierPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchAllModels[SupplierPayment](ctx, businessId)
}
