package models

import "gorm.io/gorm"

// MigrateDatabase creates or updates the schema. Ordering matters for the
// foreign-keyed detail tables.
func MigrateDatabase(db *gorm.DB) error {
	return db.AutoMigrate(
		&Party{},
		&Product{},
		&ProductBatch{},
		&FinancialYear{},
		&OpeningBalance{},
		&NumberSeries{},
		&SalesOrder{},
		&SalesOrderDetail{},
		&SalesInvoice{},
		&SalesInvoiceDetail{},
		&PurchaseInvoice{},
		&PurchaseInvoiceDetail{},
		&CreditNote{},
		&CreditNoteDetail{},
		&DebitNote{},
		&DebitNoteDetail{},
		&Payment{},
		&AdvanceReceipt{},
		&PaymentAllocation{},
		&LedgerEntry{},
		&InventoryTransaction{},
		&AuditRecord{},
	)
}
