package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopfront/backend/internal/domain/shared"
	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// StockPusher pushes a single product's stock level to the ERP
type StockPusher interface {
	PushStockToERP(ctx context.Context, productID uuid.UUID) *syncdomain.Result
}

// IdempotencyKeyHeader carries the caller-chosen deduplication key
const IdempotencyKeyHeader = "X-Idempotency-Key"

// ScaleReportRequest is an inbound stock quantity report from a warehouse
// scale device
type ScaleReportRequest struct {
	SKU        string  `json:"sku" binding:"required,max=64"`
	Quantity   float64 `json:"quantity" binding:"gte=0"`
	ReportedAt string  `json:"reported_at" binding:"omitempty"`
}

// ScaleReportResponse acknowledges a processed scale report
type ScaleReportResponse struct {
	SKU       string `json:"sku"`
	Applied   bool   `json:"applied"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Pushed    bool   `json:"pushed"`
}

// WebhookHandler accepts inbound scale reports, deduplicates them by the
// caller's idempotency key and feeds the adjusted quantity back to the ERP.
type WebhookHandler struct {
	BaseHandler
	catalog syncdomain.ProductCatalog
	stocks  StockPusher
	store   shared.IdempotencyStore
	ttl     time.Duration
	logger  *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(
	catalog syncdomain.ProductCatalog,
	stocks StockPusher,
	store shared.IdempotencyStore,
	ttl time.Duration,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		catalog: catalog,
		stocks:  stocks,
		store:   store,
		ttl:     ttl,
		logger:  logger.Named("webhook_handler"),
	}
}

// HandleScaleReport handles POST /api/v1/webhooks/scale-report. The
// signature and timestamp have already been verified by the middleware.
func (h *WebhookHandler) HandleScaleReport(c *gin.Context) {
	key := c.GetHeader(IdempotencyKeyHeader)
	if key == "" {
		h.BadRequest(c, "Missing "+IdempotencyKeyHeader+" header")
		return
	}

	var req ScaleReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()

	isNew, err := h.store.MarkProcessed(ctx, "scale-report:"+key, h.ttl)
	if err != nil {
		// a broken dedup store must not drop reports
		h.logger.Warn("idempotency store unavailable, processing without dedup",
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
		isNew = true
	}
	if !isNew {
		h.Success(c, ScaleReportResponse{SKU: req.SKU, Duplicate: true})
		return
	}

	stock, err := h.catalog.GetStockBySKU(ctx, req.SKU)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Unknown SKU")
			return
		}
		h.InternalError(c, "Failed to look up product")
		return
	}

	if err := h.catalog.SetStock(ctx, stock.ProductID, toDecimal(req.Quantity)); err != nil {
		h.InternalError(c, "Failed to apply reported quantity")
		return
	}

	// a failed push lands in the sync log and is swept later; the report
	// itself is accepted either way
	result := h.stocks.PushStockToERP(ctx, stock.ProductID)
	if !result.Ok() {
		h.logger.Warn("scale report applied locally, push deferred to retry sweep",
			zap.String("sku", req.SKU),
			zap.Int("failed", result.FailedCount),
		)
	}

	h.Success(c, ScaleReportResponse{
		SKU:     req.SKU,
		Applied: true,
		Pushed:  result.Ok(),
	})
}
