package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopfront/backend/internal/domain/shared"
)

// Event types the sync engine reacts to or emits
const (
	EventOrderConfirmed = "order.confirmed"
	EventStockAdjusted  = "stock.adjusted"
	EventOrderPushed    = "sync.order_pushed"
	EventInvoiceIssued  = "sync.invoice_issued"
)

// OrderConfirmedEvent is published by the storefront when an order becomes
// eligible for ERP transmission
type OrderConfirmedEvent struct {
	shared.BaseDomainEvent
	OrderID uuid.UUID `json:"order_id"`
}

// NewOrderConfirmedEvent creates an OrderConfirmedEvent
func NewOrderConfirmedEvent(orderID uuid.UUID) *OrderConfirmedEvent {
	return &OrderConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventOrderConfirmed, "Order", orderID),
		OrderID:         orderID,
	}
}

// OrderPushedEvent is published after an order reaches the ERP
type OrderPushedEvent struct {
	shared.BaseDomainEvent
	OrderID uuid.UUID `json:"order_id"`
	ERPRef  string    `json:"erp_ref"`
}

// NewOrderPushedEvent creates an OrderPushedEvent
func NewOrderPushedEvent(orderID uuid.UUID, erpRef string) *OrderPushedEvent {
	return &OrderPushedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventOrderPushed, "Order", orderID),
		OrderID:         orderID,
		ERPRef:          erpRef,
	}
}

// OrderConfirmedHandler pushes orders to the ERP as soon as the storefront
// confirms them, instead of waiting for the next scheduled delta run. A push
// failure here is not terminal: the sync log row it leaves behind is picked
// up by the retry sweep.
type OrderConfirmedHandler struct {
	orders *OrderSyncService
	bus    shared.EventPublisher
	logger *zap.Logger
}

// NewOrderConfirmedHandler creates a new OrderConfirmedHandler
func NewOrderConfirmedHandler(orders *OrderSyncService, bus shared.EventPublisher, logger *zap.Logger) *OrderConfirmedHandler {
	return &OrderConfirmedHandler{
		orders: orders,
		bus:    bus,
		logger: logger.Named("order_confirmed_handler"),
	}
}

// EventTypes returns the event types this handler subscribes to
func (h *OrderConfirmedHandler) EventTypes() []string {
	return []string{EventOrderConfirmed}
}

// Handle pushes the confirmed order to the ERP
func (h *OrderConfirmedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	confirmed, ok := event.(*OrderConfirmedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}

	ref, err := h.orders.PushOrderToERP(ctx, confirmed.OrderID)
	if err != nil {
		h.logger.Warn("event-triggered order push failed, retry sweep will pick it up",
			zap.String("order_id", confirmed.OrderID.String()),
			zap.Error(err),
		)
		return err
	}

	if h.bus != nil {
		if err := h.bus.Publish(ctx, NewOrderPushedEvent(confirmed.OrderID, ref)); err != nil {
			h.logger.Warn("order pushed event not published",
				zap.String("order_id", confirmed.OrderID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Ensure OrderConfirmedHandler implements EventHandler
var _ shared.EventHandler = (*OrderConfirmedHandler)(nil)

// StockAdjustedEvent is published by the storefront when a sale or manual
// correction changes a product's on-hand quantity
type StockAdjustedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
}

// NewStockAdjustedEvent creates a StockAdjustedEvent
func NewStockAdjustedEvent(productID uuid.UUID) *StockAdjustedEvent {
	return &StockAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventStockAdjusted, "Product", productID),
		ProductID:       productID,
	}
}

// StockAdjustedHandler pushes a product's quantity to the ERP as soon as the
// storefront changes it, so the ERP lags a sale by seconds rather than by one
// delta interval.
type StockAdjustedHandler struct {
	stocks *StockSyncService
	logger *zap.Logger
}

// NewStockAdjustedHandler creates a new StockAdjustedHandler
func NewStockAdjustedHandler(stocks *StockSyncService, logger *zap.Logger) *StockAdjustedHandler {
	return &StockAdjustedHandler{
		stocks: stocks,
		logger: logger.Named("stock_adjusted_handler"),
	}
}

// EventTypes returns the event types this handler subscribes to
func (h *StockAdjustedHandler) EventTypes() []string {
	return []string{EventStockAdjusted}
}

// Handle pushes the adjusted quantity to the ERP
func (h *StockAdjustedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	adjusted, ok := event.(*StockAdjustedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}

	result := h.stocks.PushStockToERP(ctx, adjusted.ProductID)
	if !result.Ok() {
		msg := "stock push failed"
		if len(result.Errors) > 0 {
			msg = result.Errors[0].Message
		}
		h.logger.Warn("event-triggered stock push failed, retry sweep will pick it up",
			zap.String("product_id", adjusted.ProductID.String()),
			zap.String("error", msg),
		)
		return fmt.Errorf("push stock for product %s: %s", adjusted.ProductID, msg)
	}
	return nil
}

// Ensure StockAdjustedHandler implements EventHandler
var _ shared.EventHandler = (*StockAdjustedHandler)(nil)
