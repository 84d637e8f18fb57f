package models

import (
	"log"

	"bitbucket.org/mmdatafocus/pos_engine/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{},
		&Account{}, &AccountJournal{}, &AccountTransaction{},
		&Product{}, &StockHistory{}, &StockSummary{},
		&Customer{}, &Supplier{}, &PartyLedgerEntry{},
		&SalesInvoice{}, &SalesInvoiceDetail{},
		&Bill{}, &BillDetail{},
		&CustomerPayment{}, &SupplierPayment{},
		&InventoryAdjustment{},
		&TransactionNumberSeries{},
		&IdempotencyKey{},
		&ReconciliationReport{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
