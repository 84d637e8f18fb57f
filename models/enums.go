package models

type AccountMainType string

const (
	AccountMainTypeAsset     AccountMainType = "Asset"
	AccountMainTypeLiability AccountMainType = "Liability"
	AccountMainTypeEquity    AccountMainType = "Equity"
	AccountMainTypeIncome    AccountMainType = "Income"
	AccountMainTypeExpense   AccountMainType = "Expense"
)

// MovementKind classifies a stock ledger row.
type MovementKind string

const (
	MovementKindOpening        MovementKind = "OP"
	MovementKindPurchase       MovementKind = "PU"
	MovementKindPurchaseReturn MovementKind = "PR"
	MovementKindSale           MovementKind = "SA"
	MovementKindSaleReturn     MovementKind = "SR"
	MovementKindAdjustment     MovementKind = "AJ"
)

// AccountReferenceType links ledger rows back to the business document
// that produced them.
type AccountReferenceType string

const (
	AccountReferenceTypeInvoice                AccountReferenceType = "IV"
	AccountReferenceTypeBill                   AccountReferenceType = "BL"
	AccountReferenceTypeCustomerPayment        AccountReferenceType = "CP"
	AccountReferenceTypeSupplierPayment        AccountReferenceType = "SP"
	AccountReferenceTypeInventoryAdjustment    AccountReferenceType = "IA"
	AccountReferenceTypeProductOpeningStock    AccountReferenceType = "POS"
	AccountReferenceTypeCustomerOpeningBalance AccountReferenceType = "COB"
	AccountReferenceTypeSupplierOpeningBalance AccountReferenceType = "SOB"
)

type PartyType string

const (
	PartyTypeCustomer PartyType = "C"
	PartyTypeSupplier PartyType = "S"
)

type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "Draft"
	DocumentStatusConfirmed DocumentStatus = "Confirmed"
	DocumentStatusVoid      DocumentStatus = "Void"
)

// System account codes seeded by CreateDefaultAccounts.
const (
	AccountCodeCash                 = "CSH"
	AccountCodeAccountsReceivable   = "AR"
	AccountCodeAccountsPayable      = "AP"
	AccountCodeInventoryAsset       = "INV"
	AccountCodeTaxPayable           = "TXP"
	AccountCodeOpeningBalanceEquity = "OBE"
	AccountCodeSales                = "SAL"
	AccountCodeCostOfGoodsSold      = "CGS"
	AccountCodeStockAdjustments     = "SAJ"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)
