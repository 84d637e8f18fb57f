package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_engine/config"
	"bitbucket.org/mmdatafocus/pos_engine/utils"
	"github.com/google/uuid"
)

type Business struct {
	ID       uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Name     string    `gorm:"size:100;not null" json:"name"`
	Email    string    `gorm:"size:100" json:"email"`
	Phone    string    `gorm:"size:20" json:"phone"`
	Timezone string    `gorm:"size:100;default:Asia/Yangon" json:"timezone"`
	// When false a purchase-return or sale-return credit that exceeds the
	// party's outstanding balance is rejected instead of posted.
	AllowNegativePartyBalance *bool     `gorm:"default:false" json:"allowNegativePartyBalance"`
	IsActive                  *bool     `gorm:"default:true" json:"isActive"`
	CreatedAt                 time.Time `json:"createdAt"`
	UpdatedAt                 time.Time `json:"updatedAt"`
}

type NewBusiness struct {
	Name                      string `json:"name" validate:"required,max=100"`
	Email                     string `json:"email" validate:"omitempty,email,max=100"`
	Phone                     string `json:"phone" validate:"omitempty,max=20"`
	Timezone                  string `json:"timezone" validate:"omitempty,max=100"`
	AllowNegativePartyBalance *bool  `json:"allowNegativePartyBalance"`
}

// CreateBusiness registers a business and seeds its chart of accounts and
// transaction number series.
func CreateBusiness(ctx context.Context, input NewBusiness) (*Business, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}

	business := Business{
		ID:                        uuid.New(),
		Name:                      input.Name,
		Email:                     input.Email,
		Phone:                     input.Phone,
		Timezone:                  input.Timezone,
		AllowNegativePartyBalance: input.AllowNegativePartyBalance,
		IsActive:                  utils.NewTrue(),
	}
	if business.Timezone == "" {
		business.Timezone = "Asia/Yangon"
	}

	tx := db.WithContext(ctx).Begin()
	defer tx.Rollback()

	if err := tx.Create(&business).Error; err != nil {
		config.LogError(logger, "business", "CreateBusiness", "create", input, err)
		return nil, err
	}
	if err := CreateDefaultAccounts(tx, business.ID.String()); err != nil {
		config.LogError(logger, "business", "CreateBusiness", "seed accounts", input, err)
		return nil, err
	}
	if err := CreateDefaultTransactionNumberSeries(tx, business.ID.String()); err != nil {
		config.LogError(logger, "business", "CreateBusiness", "seed number series", input, err)
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &business, nil
}

// GetBusinessById reads through a redis cache keyed per business.
func GetBusinessById(ctx context.Context, businessId string) (*Business, error) {
	db := config.GetDB()

	cacheKey := "Business:" + businessId
	var business Business
	if found, err := config.GetRedisObject(cacheKey, &business); err == nil && found {
		return &business, nil
	}

	if err := db.WithContext(ctx).Where("id = ?", businessId).First(&business).Error; err != nil {
		return nil, err
	}
	config.SetRedisObject(cacheKey, &business, time.Hour*24)
	return &business, nil
}

// AllowsNegativePartyBalance reports the return-credit policy; nil means
// the default, which is to reject.
func (b *Business) AllowsNegativePartyBalance() bool {
	return b.AllowNegativePartyBalance != nil && *b.AllowNegativePartyBalance
}
