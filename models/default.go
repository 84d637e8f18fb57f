package models

import (
	"bitbucket.org/mmdatafocus/pos_engine/utils"
	"gorm.io/gorm"
)

type defaultAccount struct {
	Name     string
	Code     string
	MainType AccountMainType
}

// GetDefaultChartOfAccounts lists the system accounts every business gets
// at creation. Posting workflows resolve them by code.
func GetDefaultChartOfAccounts() []defaultAccount {
	return []defaultAccount{
		{Name: "Cash", Code: AccountCodeCash, MainType: AccountMainTypeAsset},
		{Name: "Accounts Receivable", Code: AccountCodeAccountsReceivable, MainType: AccountMainTypeAsset},
		{Name: "Inventory Asset", Code: AccountCodeInventoryAsset, MainType: AccountMainTypeAsset},
		{Name: "Accounts Payable", Code: AccountCodeAccountsPayable, MainType: AccountMainTypeLiability},
		{Name: "Tax Payable", Code: AccountCodeTaxPayable, MainType: AccountMainTypeLiability},
		{Name: "Opening Balance Equity", Code: AccountCodeOpeningBalanceEquity, MainType: AccountMainTypeEquity},
		{Name: "Sales", Code: AccountCodeSales, MainType: AccountMainTypeIncome},
		{Name: "Cost of Goods Sold", Code: AccountCodeCostOfGoodsSold, MainType: AccountMainTypeExpense},
		{Name: "Stock Adjustments", Code: AccountCodeStockAdjustments, MainType: AccountMainTypeExpense},
	}
}

func CreateDefaultAccounts(tx *gorm.DB, businessId string) error {
	for _, def := range GetDefaultChartOfAccounts() {
		account := Account{
			BusinessId:        businessId,
			Name:              def.Name,
			Code:              def.Code,
			MainType:          def.MainType,
			SystemDefaultCode: def.Code,
			IsSystemDefault:   utils.NewTrue(),
			IsActive:          utils.NewTrue(),
		}
		if err := tx.Create(&account).Error; err != nil {
			return err
		}
	}
	return nil
}

func CreateDefaultTransactionNumberSeries(tx *gorm.DB, businessId string) error {
	modules := []TransactionNumberSeries{
		{BusinessId: businessId, ModuleName: "SalesInvoice", Prefix: "INV"},
		{BusinessId: businessId, ModuleName: "Bill", Prefix: "BILL"},
		{BusinessId: businessId, ModuleName: "CustomerPayment", Prefix: "CPAY"},
		{BusinessId: businessId, ModuleName: "SupplierPayment", Prefix: "SPAY"},
		{BusinessId: businessId, ModuleName: "InventoryAdjustment", Prefix: "ADJ"},
	}
	for i := range modules {
		modules[i].NextNumber = 1
		if err := tx.Create(&modules[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
