package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_engine/utils"
	"github.com/shopspring/decimal"
)

// SalesInvoice covers both sales and sale returns (IsReturn). CustomerId 0
// means a walk-in cash sale; those must be fully paid at posting.
type SalesInvoice struct {
	ID                     int                  `gorm:"primary_key" json:"id"`
	BusinessId             string               `gorm:"index;size:100;not null" json:"business_id"`
	CustomerId             int                  `gorm:"index" json:"customer_id"`
	InvoiceNumber          string               `gorm:"size:255;index" json:"invoice_number"`
	InvoiceDate            time.Time            `gorm:"index;not null" json:"invoice_date"`
	IsReturn               *bool                `gorm:"not null;default:false" json:"is_return"`
	CurrentStatus          DocumentStatus       `gorm:"type:enum('Draft','Confirmed','Void');default:Confirmed" json:"current_status"`
	Notes                  string               `gorm:"type:text" json:"notes"`
	InvoiceSubtotal        decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_subtotal"`
	InvoiceDiscountAmount  decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_discount_amount"`
	InvoiceTaxAmount       decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_tax_amount"`
	InvoiceTotalAmount     decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_total_amount"`
	InvoiceTotalPaidAmount decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_total_paid_amount"`
	InvoiceDueAmount       decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_due_amount"`
	Details                []SalesInvoiceDetail `gorm:"foreignKey:InvoiceId" json:"details"`
	CreatedAt              time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesInvoiceDetail struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	InvoiceId            int             `gorm:"index;not null" json:"invoice_id"`
	ProductId            int             `gorm:"index;not null" json:"product_id"`
	Name                 string          `gorm:"size:100" json:"name"`
	DetailQty            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_qty"`
	DetailUnitRate       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_rate"`
	DetailDiscountAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_discount_amount"`
	DetailTaxAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_tax_amount"`
	DetailTotalAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_total_amount"`
	// Unit cost captured at posting; the basis for the COGS leg.
	DetailUnitCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_cost"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSalesInvoice struct {
	CustomerId  int                     `json:"customerId"`
	InvoiceDate time.Time               `json:"invoiceDate" validate:"required"`
	IsReturn    *bool                   `json:"isReturn"`
	Notes       string                  `json:"notes"`
	PaidAmount  decimal.Decimal         `json:"paidAmount"`
	Details     []NewSalesInvoiceDetail `json:"details" validate:"required,min=1,dive"`
}

type NewSalesInvoiceDetail struct {
	ProductId            int             `json:"productId" validate:"required"`
	DetailQty            decimal.Decimal `json:"detailQty"`
	DetailUnitRate       decimal.Decimal `json:"detailUnitRate"`
	DetailDiscountAmount decimal.Decimal `json:"detailDiscountAmount"`
	DetailTaxAmount      decimal.Decimal `json:"detailTaxAmount"`
}

func (iv *SalesInvoice) IsSaleReturn() bool {
	return iv.IsReturn != nil && *iv.IsReturn
}

func GetSalesInvoice(ctx context.Context, id int) (*SalesInvoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchModel[SalesInvoice](ctx, businessId, id, "Details")
}

func GetSalesInvoices(ctx context.Context) ([]*SalesInvoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchAllModels[SalesInvoice](ctx, businessId, "Details")
}
