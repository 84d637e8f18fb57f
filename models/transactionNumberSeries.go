package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionNumberSeries issues gapless per-module document numbers.
// NextNumber advances under a row lock inside the posting transaction, so
// a rolled back posting rolls the sequence back with it.
type TransactionNumberSeries struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	BusinessId string    `gorm:"size:100;uniqueIndex:idx_series_module;not null" json:"businessId"`
	ModuleName string    `gorm:"size:50;uniqueIndex:idx_series_module;not null" json:"moduleName"`
	Prefix     string    `gorm:"size:10;not null" json:"prefix"`
	NextNumber int       `gorm:"default:1" json:"nextNumber"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NextTransactionNumber reserves the next document number for a module,
// e.g. "INV-000042".
func NextTransactionNumber(tx *gorm.DB, businessId string, moduleName string) (string, error) {
	var series TransactionNumberSeries
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND module_name = ?", businessId, moduleName).
		First(&series).Error
	if err != nil {
		return "", err
	}

	number := fmt.Sprintf("%s-%06d", series.Prefix, series.NextNumber)
	err = tx.Model(&TransactionNumberSeries{}).
		Where("id = ?", series.ID).
		Update("next_number", gorm.Expr("next_number + 1")).Error
	if err != nil {
		return "", err
	}
	return number, nil
}
