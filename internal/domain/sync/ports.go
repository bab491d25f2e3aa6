package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The surrounding storefront owns the product, customer and order entities.
// The sync engine reads and writes only the fields relevant to
// reconciliation through the narrow ports below; it never creates or deletes
// the domain entities themselves.

// ---------------------------------------------------------------------------
// Product Catalog Port
// ---------------------------------------------------------------------------

// LocalStock is the storefront view of one SKU's stock
type LocalStock struct {
	ProductID uuid.UUID
	SKU       string
	Quantity  decimal.Decimal
	// UpdatedAt is when the storefront last changed the quantity, used as the
	// target timestamp in conflict resolution
	UpdatedAt time.Time
}

// LocalPrice is the storefront view of one SKU's price
type LocalPrice struct {
	ProductID uuid.UUID
	SKU       string
	Price     decimal.Decimal
	Currency  string
	// CampaignPrice is set while a storefront promotion is running
	CampaignPrice *decimal.Decimal
	UpdatedAt     time.Time
}

// ProductCatalog exposes the stock and price fields the engine reconciles
type ProductCatalog interface {
	// GetStockBySKU returns the stock for a SKU, or shared.ErrNotFound
	GetStockBySKU(ctx context.Context, sku string) (*LocalStock, error)

	// GetStockByProductID returns the stock for a product id
	GetStockByProductID(ctx context.Context, productID uuid.UUID) (*LocalStock, error)

	// ListStocks returns all stocked SKUs
	ListStocks(ctx context.Context) ([]LocalStock, error)

	// SetStock overwrites a product's quantity with the reconciled value
	SetStock(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) error

	// GetPriceBySKU returns the price for a SKU, or shared.ErrNotFound
	GetPriceBySKU(ctx context.Context, sku string) (*LocalPrice, error)

	// SetPrice overwrites a product's price with the reconciled value
	SetPrice(ctx context.Context, productID uuid.UUID, price decimal.Decimal) error

	// ListCampaignPrices returns SKUs with an active promotional price
	ListCampaignPrices(ctx context.Context) ([]LocalPrice, error)
}

// ---------------------------------------------------------------------------
// Customer Directory Port
// ---------------------------------------------------------------------------

// LocalUser is the storefront view of a customer
type LocalUser struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
}

// CustomerDirectory exposes the user fields pushed into ledger accounts
type CustomerDirectory interface {
	// GetUser returns a user by id, or shared.ErrNotFound
	GetUser(ctx context.Context, userID uuid.UUID) (*LocalUser, error)

	// ListUsers returns all users
	ListUsers(ctx context.Context) ([]LocalUser, error)
}

// ---------------------------------------------------------------------------
// Order Book Port
// ---------------------------------------------------------------------------

// LocalOrderLine is one line of a storefront order
type LocalOrderLine struct {
	SKU       string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// LocalOrder is the storefront view of a confirmed order
type LocalOrder struct {
	ID          uuid.UUID
	Number      string
	UserID      uuid.UUID
	Lines       []LocalOrderLine
	Total       decimal.Decimal
	Currency    string
	ConfirmedAt *time.Time
}

// Confirmed reports whether the order may be pushed to the ERP
func (o *LocalOrder) Confirmed() bool {
	return o.ConfirmedAt != nil
}

// OrderBook exposes confirmed orders to the push services
type OrderBook interface {
	// GetOrder returns an order by id, or shared.ErrNotFound
	GetOrder(ctx context.Context, orderID uuid.UUID) (*LocalOrder, error)

	// ListConfirmedSince returns orders confirmed at or after t, oldest
	// first. A zero t returns all confirmed orders.
	ListConfirmedSince(ctx context.Context, t time.Time) ([]LocalOrder, error)
}
