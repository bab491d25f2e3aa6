// Package erp defines the port to the external ERP system. The sync engine
// only depends on this contract; the HTTP adapter lives in
// internal/infrastructure/erp.
package erp

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Wire Records
// ---------------------------------------------------------------------------

// StockRecord is the ERP view of one SKU's stock level
type StockRecord struct {
	// SKU is the stock keeping unit shared by both systems
	SKU string
	// WarehouseCode is the ERP warehouse holding the stock
	WarehouseCode string
	// Quantity is the on-hand quantity
	Quantity decimal.Decimal
	// UpdatedAt is when the ERP last changed this record
	UpdatedAt time.Time
}

// PriceRecord is the ERP view of one SKU's catalog price
type PriceRecord struct {
	SKU      string
	Currency string
	// ListPrice is the regular catalog price
	ListPrice decimal.Decimal
	// CampaignPrice is an optional promotional price; nil when no campaign
	// is active for the SKU
	CampaignPrice *decimal.Decimal
	UpdatedAt     time.Time
}

// LedgerAccount is the ERP customer account ("cari") for a storefront user
type LedgerAccount struct {
	// Code is the ERP account code, derived deterministically from the
	// storefront user id
	Code  string
	Name  string
	Email string
	Phone string
}

// OrderLine is one line of an order document
type OrderLine struct {
	SKU       string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// OrderDocument is an order as transmitted to the ERP
type OrderDocument struct {
	// OrderNumber is the storefront order number, used by the ERP for
	// duplicate detection
	OrderNumber string
	// AccountCode is the ledger account the order is booked against
	AccountCode string
	Lines       []OrderLine
	Total       decimal.Decimal
	Currency    string
	ConfirmedAt time.Time
}

// InvoiceKind distinguishes sales invoices from refunds
type InvoiceKind string

const (
	InvoiceKindSales  InvoiceKind = "SALES"
	InvoiceKindRefund InvoiceKind = "REFUND"
)

// InvoiceDocument is an invoice as transmitted to the ERP.
// Issuing a sales invoice makes the ERP decrement its own stock, so the
// create call is not idempotent on the ERP side.
type InvoiceDocument struct {
	// OrderRef is the ERP order reference the invoice belongs to
	OrderRef string
	// InvoiceRef is set by the ERP once issued
	InvoiceRef string
	Kind       InvoiceKind
	Lines      []OrderLine
	Total      decimal.Decimal
	Currency   string
	IssuedAt   time.Time
}

// ---------------------------------------------------------------------------
// Client Port
// ---------------------------------------------------------------------------

// Client is the capability set the sync engine requires from the ERP.
// Every call carries a context; the adapter must enforce request timeouts so
// a stalled ERP never blocks a whole batch.
type Client interface {
	// ListStockChanges returns stock records changed since the given time.
	// A zero time returns all records.
	ListStockChanges(ctx context.Context, since time.Time) ([]StockRecord, error)

	// ListPriceChanges returns price records changed since the given time.
	// A zero time returns all records.
	ListPriceChanges(ctx context.Context, since time.Time) ([]PriceRecord, error)

	// GetStock returns the current stock record for one SKU, or
	// ErrRecordNotFound. Used by the retry sweep to reprocess single items.
	GetStock(ctx context.Context, sku string) (*StockRecord, error)

	// GetPrice returns the current price record for one SKU, or
	// ErrRecordNotFound
	GetPrice(ctx context.Context, sku string) (*PriceRecord, error)

	// UpsertStock pushes a storefront stock level to the ERP
	UpsertStock(ctx context.Context, record StockRecord) error

	// UpsertPrice pushes a price to the ERP. Only used for the campaign
	// price exception path; the ERP remains the pricing master.
	UpsertPrice(ctx context.Context, record PriceRecord) error

	// UpsertLedgerAccount creates or updates a customer ledger account
	UpsertLedgerAccount(ctx context.Context, account LedgerAccount) error

	// GetLedgerAccount fetches a ledger account by code.
	// Returns ErrRecordNotFound when the account does not exist.
	GetLedgerAccount(ctx context.Context, code string) (*LedgerAccount, error)

	// CreateOrder transmits an order and returns the ERP order reference
	CreateOrder(ctx context.Context, order OrderDocument) (string, error)

	// CreateInvoice issues an invoice and returns the ERP invoice reference.
	// Side-effecting: the ERP decrements its stock for sales invoices.
	CreateInvoice(ctx context.Context, invoice InvoiceDocument) (string, error)

	// GetInvoiceForOrder returns the invoice issued for an ERP order
	// reference, or ErrRecordNotFound when none was issued yet
	GetInvoiceForOrder(ctx context.Context, orderRef string) (*InvoiceDocument, error)

	// Ping verifies connectivity, used by health reporting
	Ping(ctx context.Context) error
}
