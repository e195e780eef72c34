package models

// PartyKind distinguishes the two sides of the distribution business.
// Dealers buy from the company, suppliers sell to it; the ledger sign
// convention differs per kind (see LedgerEntry).
type PartyKind string

const (
	PartyKindDealer   PartyKind = "Dealer"
	PartyKindSupplier PartyKind = "Supplier"
)

// DocumentKind tags the document union. The reversal engine and the audit
// recorder are generic over this tag.
type DocumentKind string

const (
	DocumentKindSalesOrder      DocumentKind = "SalesOrder"
	DocumentKindSalesInvoice    DocumentKind = "SalesInvoice"
	DocumentKindPurchaseInvoice DocumentKind = "PurchaseInvoice"
	DocumentKindCreditNote      DocumentKind = "CreditNote"
	DocumentKindDebitNote       DocumentKind = "DebitNote"
	DocumentKindPayment         DocumentKind = "Payment"
	DocumentKindAdvanceReceipt  DocumentKind = "AdvanceReceipt"
)

// DocumentStatus is shared across kinds; each kind walks a subset.
// Void is terminal everywhere.
type DocumentStatus string

const (
	DocumentStatusOpen        DocumentStatus = "Open"
	DocumentStatusIssued      DocumentStatus = "Issued"
	DocumentStatusInvoiced    DocumentStatus = "Invoiced"
	DocumentStatusPartialPaid DocumentStatus = "Partial Paid"
	DocumentStatusPaid        DocumentStatus = "Paid"
	DocumentStatusAdjusted    DocumentStatus = "Adjusted"
	DocumentStatusVoid        DocumentStatus = "Void"
)

type LedgerEntryType string

const (
	LedgerEntryTypeInvoice         LedgerEntryType = "Invoice"
	LedgerEntryTypePurchaseInvoice LedgerEntryType = "PurchaseInvoice"
	LedgerEntryTypeCreditNote      LedgerEntryType = "CreditNote"
	LedgerEntryTypeDebitNote       LedgerEntryType = "DebitNote"
	LedgerEntryTypePayment         LedgerEntryType = "Payment"
	LedgerEntryTypeAdvanceReceipt  LedgerEntryType = "AdvanceReceipt"
	LedgerEntryTypeReversal        LedgerEntryType = "Reversal"
	LedgerEntryTypeOpening         LedgerEntryType = "Opening"
)

type InventoryTxnType string

const (
	InventoryTxnTypeSale           InventoryTxnType = "Sale"
	InventoryTxnTypePurchase       InventoryTxnType = "Purchase"
	InventoryTxnTypeSalesReturn    InventoryTxnType = "SalesReturn"
	InventoryTxnTypePurchaseReturn InventoryTxnType = "PurchaseReturn"
	InventoryTxnTypeReversal       InventoryTxnType = "Reversal"
	InventoryTxnTypeOpening        InventoryTxnType = "Opening"
)

// Audit actions.
const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionVoid   = "void"
	AuditActionClose  = "close"
)
