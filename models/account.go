package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_engine/config"
	"bitbucket.org/mmdatafocus/pos_engine/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account is a general ledger account. Balance is a cached projection of
// the account's transactions; authoritative state is the transaction rows.
type Account struct {
	ID                int             `gorm:"primaryKey" json:"id"`
	BusinessId        string          `gorm:"size:100;index;not null" json:"businessId"`
	Name              string          `gorm:"size:100;not null" json:"name"`
	Code              string          `gorm:"size:20" json:"code"`
	MainType          AccountMainType `gorm:"size:20;not null" json:"mainType"`
	SystemDefaultCode string          `gorm:"size:20;index" json:"systemDefaultCode"`
	Balance           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	IsSystemDefault   *bool           `gorm:"default:false" json:"isSystemDefault"`
	IsActive          *bool           `gorm:"default:true" json:"isActive"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

type NewAccount struct {
	Name     string          `json:"name" validate:"required,max=100"`
	Code     string          `json:"code" validate:"omitempty,max=20"`
	MainType AccountMainType `json:"mainType" validate:"required,oneof=Asset Liability Equity Income Expense"`
}

func systemAccountsCacheKey(businessId string) string {
	return "SystemAccounts:" + businessId
}

// CreateAccount adds a non-system account to the chart.
func CreateAccount(ctx context.Context, input NewAccount) (*Account, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}

	account := Account{
		BusinessId:      businessId,
		Name:            input.Name,
		Code:            input.Code,
		MainType:        input.MainType,
		IsSystemDefault: utils.NewFalse(),
		IsActive:        utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		config.LogError(logger, "account", "CreateAccount", "create", input, err)
		return nil, err
	}
	return &account, nil
}

func GetAccount(ctx context.Context, id int) (*Account, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchModel[Account](ctx, businessId, id)
}

func GetAccounts(ctx context.Context) ([]*Account, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, ErrBusinessIdRequired
	}
	return utils.FetchAllModels[Account](ctx, businessId)
}

// GetSystemAccounts returns the business's system default accounts keyed by
// SystemDefaultCode, read through redis.
func GetSystemAccounts(ctx context.Context, businessId string) (map[string]*Account, error) {
	db := config.GetDB()

	cacheKey := systemAccountsCacheKey(businessId)
	accounts := make(map[string]*Account)
	if found, err := config.GetRedisObject(cacheKey, &accounts); err == nil && found {
		return accounts, nil
	}

	var rows []*Account
	if err := db.WithContext(ctx).
		Where("business_id = ? AND is_system_default = true", businessId).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, account := range rows {
		accounts[account.SystemDefaultCode] = account
	}
	config.SetRedisObject(cacheKey, accounts, time.Hour*24)
	return accounts, nil
}

// ApplyAccountBalanceDelta increments the cached balance in place. Callers
// run inside a posting transaction; the increment form keeps concurrent
// postings from overwriting each other.
func ApplyAccountBalanceDelta(tx *gorm.DB, businessId string, accountId int, delta decimal.Decimal) error {
	result := tx.Exec(
		"UPDATE accounts SET balance = balance + ?, updated_at = NOW() WHERE business_id = ? AND id = ?",
		delta, businessId, accountId)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// GetAccountBalance reads the cached balance inside the caller's transaction.
func GetAccountBalance(tx *gorm.DB, businessId string, accountId int) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.Raw("SELECT balance FROM accounts WHERE business_id = ? AND id = ?",
		businessId, accountId).Scan(&balance).Error
	return balance, err
}
