package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_engine/utils"
	"github.com/shopspring/decimal"
)

// Supplier balance convention: positive means the business owes the
// supplier. Balance is a cached projection of party_ledger_entries.
type Supplier struct {
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

type NewSupplier struct {
	Name               string          `json:"name" validate:"required,max=100"`
	Phone              string          `json:"phone" validate:"omitempty,max=20"`
	Email              string          `json:"email" validate:"omitempty,email,max=100"`
	Address            string          `json:"address"`
	OpeningBalance     decimal.Decimal `json:"openingBalance"`
	OpeningBalanceDate *time.Time      `json:"openingBalanceDate"`
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchModel[Supplier](ctx, businessId, id)
}

func GetSuppliers(ctx context.Context) ([]*Supplier, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchAllModels[Supplier](ctx, businessId)
}
