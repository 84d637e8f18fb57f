package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_engine/utils"
	"github.com/shopspring/decimal"
)

// Customer balance convention: positive means the customer owes the
// business. Balance is a cached projection of party_ledger_entries.
type Customer struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;size:100;not null" json:"business_id"`
	Name       string          `gorm:"size:100;not null" json:"name"`
	Phone      string          `gorm:"size:20;index" json:"phone"`
	Email      string          `gorm:"size:100" json:"email"`
	Address    string          `gorm:"type:text" json:"address"`
	Balance    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	IsActive   *bool           `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name               string          `json:"name" validate:"required,max=100"`
	Phone              string          `json:"phone" validate:"omitempty,max=20"`
	Email              string          `json:"email" validate:"omitempty,email,max=100"`
	Address            string          `json:"address"`
	OpeningBalance     decimal.Decimal `json:"openingBalance"`
	OpeningBalanceDate *time.Time      `json:"openingBalanceDate"`
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchModel[Customer](ctx, businessId, id)
}

func GetCustomers(ctx context.Context) ([]*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchAllModels[Customer](ctx, businessId)
}
