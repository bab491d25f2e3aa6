package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopfront/backend/internal/domain/shared"
	"github.com/shopfront/backend/internal/domain/sync"
	"github.com/shopfront/backend/internal/infrastructure/persistence/models"
)

// ---------------------------------------------------------------------------
// Product Catalog
// ---------------------------------------------------------------------------

// GormProductCatalog exposes the stock and price columns of the products
// table through the catalog port
type GormProductCatalog struct {
	db *gorm.DB
}

// NewGormProductCatalog creates a new product catalog adapter
func NewGormProductCatalog(db *gorm.DB) *GormProductCatalog {
	return &GormProductCatalog{db: db}
}

// GetStockBySKU returns the stock for a SKU
func (r *GormProductCatalog) GetStockBySKU(ctx context.Context, sku string) (*sync.LocalStock, error) {
	model, err := r.findProduct(ctx, "sku = ?", sku)
	if err != nil {
		return nil, err
	}
	stock := model.ToStock()
	return &stock, nil
}

// GetStockByProductID returns the stock for a product id
func (r *GormProductCatalog) GetStockByProductID(ctx context.Context, productID uuid.UUID) (*sync.LocalStock, error) {
	model, err := r.findProduct(ctx, "id = ?", productID)
	if err != nil {
		return nil, err
	}
	stock := model.ToStock()
	return &stock, nil
}

// ListStocks returns the stock view of every product
func (r *GormProductCatalog) ListStocks(ctx context.Context) ([]sync.LocalStock, error) {
	var productModels []models.ProductModel
	if err := r.db.WithContext(ctx).Order("sku ASC").Find(&productModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}

	stocks := make([]sync.LocalStock, len(productModels))
	for i, m := range productModels {
		stocks[i] = m.ToStock()
	}
	return stocks, nil
}

// SetStock overwrites a product's quantity with the reconciled value
func (r *GormProductCatalog) SetStock(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) error {
	result := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"quantity":         quantity,
			"stock_updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetPriceBySKU returns the price for a SKU
func (r *GormProductCatalog) GetPriceBySKU(ctx context.Context, sku string) (*sync.LocalPrice, error) {
	model, err := r.findProduct(ctx, "sku = ?", sku)
	if err != nil {
		return nil, err
	}
	price := model.ToPrice()
	return &price, nil
}

// SetPrice overwrites a product's list price with the reconciled value
func (r *GormProductCatalog) SetPrice(ctx context.Context, productID uuid.UUID, price decimal.Decimal) error {
	result := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"price":            price,
			"price_updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set price: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListCampaignPrices returns the products with an active promotional price
func (r *GormProductCatalog) ListCampaignPrices(ctx context.Context) ([]sync.LocalPrice, error) {
	var productModels []models.ProductModel
	if err := r.db.WithContext(ctx).
		Where("campaign_price IS NOT NULL").
		Order("sku ASC").
		Find(&productModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaign prices: %w", err)
	}

	prices := make([]sync.LocalPrice, len(productModels))
	for i, m := range productModels {
		prices[i] = m.ToPrice()
	}
	return prices, nil
}

func (r *GormProductCatalog) findProduct(ctx context.Context, query string, arg interface{}) (*models.ProductModel, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return &model, nil
}

// Ensure GormProductCatalog implements the catalog port
var _ sync.ProductCatalog = (*GormProductCatalog)(nil)

// ---------------------------------------------------------------------------
// Customer Directory
// ---------------------------------------------------------------------------

// GormCustomerDirectory exposes storefront users through the directory port
type GormCustomerDirectory struct {
	db *gorm.DB
}

// NewGormCustomerDirectory creates a new customer directory adapter
func NewGormCustomerDirectory(db *gorm.DB) *GormCustomerDirectory {
	return &GormCustomerDirectory{db: db}
}

// GetUser returns a user by id
func (r *GormCustomerDirectory) GetUser(ctx context.Context, userID uuid.UUID) (*sync.LocalUser, error) {
	var model models.UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	user := model.ToDomain()
	return &user, nil
}

// ListUsers returns all users
func (r *GormCustomerDirectory) ListUsers(ctx context.Context) ([]sync.LocalUser, error) {
	var userModels []models.UserModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&userModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]sync.LocalUser, len(userModels))
	for i, m := range userModels {
		users[i] = m.ToDomain()
	}
	return users, nil
}

// Ensure GormCustomerDirectory implements the directory port
var _ sync.CustomerDirectory = (*GormCustomerDirectory)(nil)

// ---------------------------------------------------------------------------
// Order Book
// ---------------------------------------------------------------------------

// GormOrderBook exposes confirmed storefront orders through the order book
// port
type GormOrderBook struct {
	db *gorm.DB
}

// NewGormOrderBook creates a new order book adapter
func NewGormOrderBook(db *gorm.DB) *GormOrderBook {
	return &GormOrderBook{db: db}
}

// GetOrder returns an order by id, lines included
func (r *GormOrderBook) GetOrder(ctx context.Context, orderID uuid.UUID) (*sync.LocalOrder, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("id = ?", orderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	order := model.ToDomain()
	return &order, nil
}

// ListConfirmedSince returns orders confirmed at or after t, oldest first
func (r *GormOrderBook) ListConfirmedSince(ctx context.Context, t time.Time) ([]sync.LocalOrder, error) {
	query := r.db.WithContext(ctx).
		Preload("Lines").
		Where("confirmed_at IS NOT NULL")
	if !t.IsZero() {
		query = query.Where("confirmed_at >= ?", t)
	}

	var orderModels []models.OrderModel
	if err := query.Order("confirmed_at ASC").Find(&orderModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list confirmed orders: %w", err)
	}

	orders := make([]sync.LocalOrder, len(orderModels))
	for i, m := range orderModels {
		orders[i] = m.ToDomain()
	}
	return orders, nil
}

// Ensure GormOrderBook implements the order book port
var _ sync.OrderBook = (*GormOrderBook)(nil)
