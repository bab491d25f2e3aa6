package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopfront/backend/internal/domain/sync"
)

// ---------------------------------------------------------------------------
// Product
// ---------------------------------------------------------------------------

// ProductModel is the persistence model for storefront products. The sync
// engine reconciles only the stock and price columns; the storefront owns
// everything else.
type ProductModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	SKU  string `gorm:"type:varchar(64);not null;uniqueIndex:idx_product_sku"`
	Name string `gorm:"type:varchar(200);not null"`

	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	StockUpdatedAt time.Time       `gorm:"not null"`

	Price          decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	Currency       string           `gorm:"type:varchar(3);not null;default:'TRY'"`
	CampaignPrice  *decimal.Decimal `gorm:"type:decimal(18,4)"`
	PriceUpdatedAt time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToStock converts the stock columns to the catalog port's stock view
func (m *ProductModel) ToStock() sync.LocalStock {
	return sync.LocalStock{
		ProductID: m.ID,
		SKU:       m.SKU,
		Quantity:  m.Quantity,
		UpdatedAt: m.StockUpdatedAt,
	}
}

// ToPrice converts the price columns to the catalog port's price view
func (m *ProductModel) ToPrice() sync.LocalPrice {
	return sync.LocalPrice{
		ProductID:     m.ID,
		SKU:           m.SKU,
		Price:         m.Price,
		Currency:      m.Currency,
		CampaignPrice: m.CampaignPrice,
		UpdatedAt:     m.PriceUpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// User
// ---------------------------------------------------------------------------

// UserModel is the persistence model for storefront customers
type UserModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Name  string `gorm:"type:varchar(200);not null"`
	Email string `gorm:"type:varchar(255);not null;uniqueIndex:idx_user_email"`
	Phone string `gorm:"type:varchar(32)"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to the directory port's user view
func (m *UserModel) ToDomain() sync.LocalUser {
	return sync.LocalUser{
		ID:    m.ID,
		Name:  m.Name,
		Email: m.Email,
		Phone: m.Phone,
	}
}

// ---------------------------------------------------------------------------
// Order
// ---------------------------------------------------------------------------

// OrderModel is the persistence model for storefront orders. ConfirmedAt is
// nil until checkout completes; only confirmed orders are visible through the
// order book port.
type OrderModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Number      string          `gorm:"type:varchar(32);not null;uniqueIndex:idx_order_number"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_order_user"`
	Total       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency    string          `gorm:"type:varchar(3);not null;default:'TRY'"`
	ConfirmedAt *time.Time      `gorm:"index:idx_order_confirmed"`

	Lines []OrderLineModel `gorm:"foreignKey:OrderID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderLineModel is one line of a storefront order
type OrderLineModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_order_line_order"`
	SKU       string          `gorm:"type:varchar(64);not null"`
	Quantity  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (OrderLineModel) TableName() string {
	return "order_lines"
}

// ToDomain converts the persistence model to the order book port's view
func (m *OrderModel) ToDomain() sync.LocalOrder {
	lines := make([]sync.LocalOrderLine, len(m.Lines))
	for i, l := range m.Lines {
		lines[i] = sync.LocalOrderLine{
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}
	return sync.LocalOrder{
		ID:          m.ID,
		Number:      m.Number,
		UserID:      m.UserID,
		Lines:       lines,
		Total:       m.Total,
		Currency:    m.Currency,
		ConfirmedAt: m.ConfirmedAt,
	}
}
