package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_engine/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product carries the costing cache: CostPrice is the weighted average cost,
// updated only by opening stock and non-return purchase postings.
type Product struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;size:100;not null" json:"business_id"`
	Name       string          `gorm:"size:100;not null" json:"name"`
	Sku        string          `gorm:"size:100;index" json:"sku"`
	Barcode    string          `gorm:"size:100;index" json:"barcode"`
	SalePrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale_price"`
	CostPrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
	MinStock   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"min_stock"`
	MaxStock   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"max_stock"`
	IsActive   *bool           `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name                 string          `json:"name" validate:"required,max=100"`
	Sku                  string          `json:"sku" validate:"omitempty,max=100"`
	Barcode              string          `json:"barcode" validate:"omitempty,max=100"`
	SalePrice            decimal.Decimal `json:"salePrice"`
	MinStock             decimal.Decimal `json:"minStock"`
	MaxStock             decimal.Decimal `json:"maxStock"`
	OpeningStockQty      decimal.Decimal `json:"openingStockQty"`
	OpeningStockUnitCost decimal.Decimal `json:"openingStockUnitCost"`
	OpeningStockDate     *time.Time      `json:"openingStockDate"`
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchModel[Product](ctx, businessId, id)
}

func GetProducts(ctx context.Context) ([]*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchAllModels[Product](ctx, businessId)
}

// GetProductForUpdate fetches the product under a row lock so the costing
// cache can be read and rewritten atomically within a posting.
func GetProductForUpdate(tx *gorm.DB, businessId string, productId int) (*Product, error) {
	var product Product
	err := tx.Raw("SELECT * FROM products WHERE business_id = ? AND id = ? FOR UPDATE",
		businessId, productId).Scan(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return &product, nil
}

// UpdateProductCostPrice overwrites the weighted average cost cache.
func UpdateProductCostPrice(tx *gorm.DB, businessId string, productId int, costPrice decimal.Decimal) error {
	return tx.Exec("UPDATE products SET cost_price = ?, updated_at = NOW() WHERE business_id = ? AND id = ?",
		costPrice, businessId, productId).Error
}
