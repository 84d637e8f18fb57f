package models

import "time"

// ReconciliationReport rows record detected drift, applied repairs and
// orphaned references. Written by the reconcile workflow; read by operators.
type ReconciliationReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"index;not null" json:"business_id"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`  // e.g. STOCK_SUMMARY, PARTY_BALANCE, ACCOUNT_BALANCE, AVERAGE_COST, ORPHANED_REFERENCE
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"` // e.g. Product, Customer, Account
	EntityId      int       `gorm:"index;not null" json:"entity_id"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
