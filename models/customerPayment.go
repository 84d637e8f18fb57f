package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_engine/utils"
	"github.com/shopspring/decimal"
)

// CustomerPayment is a standalone collection against a customer's
// outstanding balance. It never exceeds that balance.
type CustomerPayment struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;size:100;not null" json:"business_id"`
	CustomerId    int             `gorm:"index;not null" json:"customer_id"`
	PaymentNumber string          `gorm:"size:255;index" json:"payment_number"`
	PaymentDate   time.Time       `gorm:"index;not null" json:"payment_date"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomerPayment struct {
	CustomerId  int             `json:"customerId" validate:"required"`
	PaymentDate time.Time       `json:"paymentDate" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Notes       string          `json:"notes"`
}

func GetCustomerPayment(ctx context.Context, id int) (*CustomerPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchModel[CustomerPayment](ctx, businessId, id)
}

func GetCustomerPayments(ctx context.Context) ([]*CustomerPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchAllModels[CustomerPayment](ctx, businessId)
}
