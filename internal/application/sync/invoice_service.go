package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopfront/backend/internal/domain/erp"
	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// InvoiceSyncService issues ERP invoices for pushed orders. Issuing a sales
// invoice makes the ERP decrement its own stock, so every create is preceded
// by an IsInvoiced check and, on any doubt, by an ERP-side lookup. A second
// invoice for the same order is never issued.
type InvoiceSyncService struct {
	erp       erp.Client
	orders    syncdomain.OrderBook
	orderSync *OrderSyncService
	stateRepo syncdomain.SyncStateRepository
	mappings  syncdomain.ExternalMappingRepository
	oplog     syncdomain.OperationLogger
	guard     *KeyedGuard
	logger    *zap.Logger
}

// NewInvoiceSyncService creates a new InvoiceSyncService
func NewInvoiceSyncService(
	erpClient erp.Client,
	orders syncdomain.OrderBook,
	orderSync *OrderSyncService,
	stateRepo syncdomain.SyncStateRepository,
	mappings syncdomain.ExternalMappingRepository,
	oplog syncdomain.OperationLogger,
	guard *KeyedGuard,
	logger *zap.Logger,
) *InvoiceSyncService {
	return &InvoiceSyncService{
		erp:       erpClient,
		orders:    orders,
		orderSync: orderSync,
		stateRepo: stateRepo,
		mappings:  mappings,
		oplog:     oplog,
		guard:     guard,
		logger:    logger.Named("invoice_sync"),
	}
}

// IsInvoiced reports whether an invoice was already issued for the order
func (s *InvoiceSyncService) IsInvoiced(ctx context.Context, orderID uuid.UUID) (bool, error) {
	_, err := s.mappings.FindByInternalID(ctx, syncdomain.EntityTypeInvoice, orderID.String())
	if err == nil {
		return true, nil
	}
	if errors.Is(err, syncdomain.ErrMappingNotFound) {
		return false, nil
	}
	return false, err
}

// GetInvoiceDetails fetches the issued invoice for an order from the ERP
func (s *InvoiceSyncService) GetInvoiceDetails(ctx context.Context, orderID uuid.UUID) (*erp.InvoiceDocument, error) {
	orderRef, err := s.orderSync.GetExternalOrderRef(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.erp.GetInvoiceForOrder(ctx, orderRef)
}

// CreateInvoiceForOrder issues a sales invoice for a pushed order. Returns
// the ERP invoice reference. Calling it again for the same order returns the
// recorded reference without issuing anything.
func (s *InvoiceSyncService) CreateInvoiceForOrder(ctx context.Context, orderID uuid.UUID) (string, error) {
	var ref string
	err := s.guard.Do(syncdomain.EntityTypeInvoice, orderID.String(), func() error {
		var innerErr error
		ref, innerErr = s.issueInvoice(ctx, orderID, erp.InvoiceKindSales, decimal.Decimal{})
		return innerErr
	})
	return ref, err
}

// CreateRefundInvoice issues a refund invoice over the given amount for a
// previously invoiced order. Refunds are keyed by order and amount,
// separately from the sales invoice, so a refund never collides with the
// at-most-once sales guarantee and partial refunds over distinct amounts
// remain possible.
func (s *InvoiceSyncService) CreateRefundInvoice(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return "", fmt.Errorf("%w: refund amount %s must be positive", syncdomain.ErrValidation, amount)
	}
	invoiced, err := s.IsInvoiced(ctx, orderID)
	if err != nil {
		return "", err
	}
	if !invoiced {
		return "", fmt.Errorf("%w: order %s has no sales invoice to refund", syncdomain.ErrValidation, orderID)
	}
	var ref string
	err = s.guard.Do(syncdomain.EntityTypeInvoice, refundKey(orderID, amount), func() error {
		var innerErr error
		ref, innerErr = s.issueInvoice(ctx, orderID, erp.InvoiceKindRefund, amount)
		return innerErr
	})
	return ref, err
}

// refundKey keys a refund by order and amount. The amount in the key makes
// the retry sweep able to re-issue the exact refund from the log row alone.
func refundKey(orderID uuid.UUID, amount decimal.Decimal) string {
	return "refund:" + orderID.String() + ":" + amount.String()
}

// CreateInvoicesForPendingOrders issues invoices for every pushed order that
// has none yet
func (s *InvoiceSyncService) CreateInvoicesForPendingOrders(ctx context.Context) *syncdomain.Result {
	result := syncdomain.NewResult(syncdomain.EntityTypeInvoice, syncdomain.DirectionToERP)
	cycleStart := time.Now()

	orders, err := s.orders.ListConfirmedSince(ctx, time.Time{})
	if err != nil {
		result.RecordFailure("*", fmt.Errorf("list confirmed orders: %w", err))
		closeCycle(ctx, s.stateRepo, syncdomain.EntityTypeInvoice, syncdomain.DirectionToERP, result, cycleStart, false, s.logger)
		return result.Finish()
	}

	for i := range orders {
		if ctx.Err() != nil {
			result.AddWarning("cycle cancelled, remaining items skipped")
			break
		}
		order := orders[i]

		// Only orders already known to the ERP are eligible
		pushed, err := s.mappings.Exists(ctx, syncdomain.EntityTypeOrder, order.ID.String())
		if err != nil {
			result.RecordFailure(order.Number, err)
			continue
		}
		if !pushed {
			result.RecordSkip()
			continue
		}

		invoiced, err := s.IsInvoiced(ctx, order.ID)
		if err != nil {
			result.RecordFailure(order.Number, err)
			continue
		}
		if invoiced {
			result.RecordSkip()
			continue
		}

		if _, err := s.CreateInvoiceForOrder(ctx, order.ID); err != nil {
			result.RecordFailure(order.Number, err)
			continue
		}
		result.RecordSuccess()
	}

	closeCycle(ctx, s.stateRepo, syncdomain.EntityTypeInvoice, syncdomain.DirectionToERP, result, cycleStart, ctx.Err() == nil, s.logger)
	return result.Finish()
}

func (s *InvoiceSyncService) issueInvoice(ctx context.Context, orderID uuid.UUID, kind erp.InvoiceKind, amount decimal.Decimal) (string, error) {
	mappingKey := orderID.String()
	if kind == erp.InvoiceKindRefund {
		mappingKey = refundKey(orderID, amount)
	}

	if mapping, err := s.mappings.FindByInternalID(ctx, syncdomain.EntityTypeInvoice, mappingKey); err == nil {
		return mapping.ExternalCode, nil
	} else if !errors.Is(err, syncdomain.ErrMappingNotFound) {
		return "", err
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("%w: unknown order %s", syncdomain.ErrValidation, orderID)
	}
	if kind == erp.InvoiceKindRefund && amount.GreaterThan(order.Total) {
		return "", fmt.Errorf("%w: refund %s exceeds order total %s", syncdomain.ErrValidation, amount, order.Total)
	}

	orderRef, err := s.orderSync.GetExternalOrderRef(ctx, orderID)
	if err != nil {
		if errors.Is(err, syncdomain.ErrMappingNotFound) {
			return "", fmt.Errorf("%w: order %s not yet pushed to ERP", syncdomain.ErrValidation, order.Number)
		}
		return "", err
	}

	log, err := s.oplog.StartOperation(ctx, syncdomain.EntityTypeInvoice, syncdomain.DirectionToERP, orderRef, mappingKey)
	if err != nil {
		return "", err
	}

	// After a crash between create and mapping save, the local record says
	// not invoiced while the ERP already holds the document. Re-check on the
	// ERP side before issuing a sales invoice, since a duplicate would
	// double-decrement ERP stock.
	if kind == erp.InvoiceKindSales {
		if existing, err := s.erp.GetInvoiceForOrder(ctx, orderRef); err == nil {
			if recErr := s.recordInvoice(ctx, mappingKey, existing.InvoiceRef); recErr != nil {
				return "", recErr
			}
			if logErr := s.oplog.CompleteOperation(ctx, log.ID, fmt.Sprintf("invoice %s already issued, mapping backfilled", existing.InvoiceRef)); logErr != nil {
				return "", logErr
			}
			return existing.InvoiceRef, nil
		} else if !errors.Is(err, erp.ErrRecordNotFound) {
			if logErr := s.oplog.FailOperation(ctx, log.ID, err); logErr != nil {
				return "", logErr
			}
			return "", err
		}
	}

	ref, err := s.erp.CreateInvoice(ctx, buildInvoiceDocument(order, orderRef, kind, amount))
	if err != nil {
		// The ERP rejecting a duplicate sales invoice is proof the invoice
		// exists; recover the reference instead of failing the operation.
		if kind == erp.InvoiceKindSales && errors.Is(err, erp.ErrDuplicateInvoice) {
			if existing, lookupErr := s.erp.GetInvoiceForOrder(ctx, orderRef); lookupErr == nil {
				if recErr := s.recordInvoice(ctx, mappingKey, existing.InvoiceRef); recErr != nil {
					return "", recErr
				}
				if logErr := s.oplog.CompleteOperation(ctx, log.ID, fmt.Sprintf("duplicate reported, recovered invoice %s", existing.InvoiceRef)); logErr != nil {
					return "", logErr
				}
				return existing.InvoiceRef, nil
			}
		}
		if logErr := s.oplog.FailOperation(ctx, log.ID, err); logErr != nil {
			return "", logErr
		}
		return "", err
	}

	if err := s.recordInvoice(ctx, mappingKey, ref); err != nil {
		s.logger.Error("invoice issued but mapping not recorded",
			zap.String("order_ref", orderRef),
			zap.String("invoice_ref", ref),
			zap.Error(err))
		if logErr := s.oplog.FailOperation(ctx, log.ID, fmt.Errorf("record invoice mapping: %w", err)); logErr != nil {
			return "", logErr
		}
		return ref, err
	}

	if err := s.oplog.CompleteOperation(ctx, log.ID, fmt.Sprintf("invoice issued as %s", ref)); err != nil {
		return "", err
	}
	return ref, nil
}

func (s *InvoiceSyncService) recordInvoice(ctx context.Context, mappingKey, invoiceRef string) error {
	mapping, err := syncdomain.NewExternalMapping(syncdomain.EntityTypeInvoice, mappingKey, invoiceRef)
	if err != nil {
		return err
	}
	return s.mappings.Save(ctx, mapping)
}

func buildInvoiceDocument(order *syncdomain.LocalOrder, orderRef string, kind erp.InvoiceKind, amount decimal.Decimal) erp.InvoiceDocument {
	if kind == erp.InvoiceKindRefund {
		// a refund carries the refunded amount, not the order lines
		return erp.InvoiceDocument{
			OrderRef: orderRef,
			Kind:     kind,
			Total:    amount,
			Currency: order.Currency,
			IssuedAt: time.Now(),
		}
	}
	lines := make([]erp.OrderLine, 0, len(order.Lines))
	for _, l := range order.Lines {
		lines = append(lines, erp.OrderLine{
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	return erp.InvoiceDocument{
		OrderRef: orderRef,
		Kind:     kind,
		Lines:    lines,
		Total:    order.Total,
		Currency: order.Currency,
		IssuedAt: time.Now(),
	}
}

// RetryItem reprocesses a single failed log entry
func (s *InvoiceSyncService) RetryItem(ctx context.Context, log *syncdomain.SyncLog) error {
	key := log.InternalID
	if rest, ok := strings.CutPrefix(key, "refund:"); ok {
		idText, amountText, found := strings.Cut(rest, ":")
		if !found {
			return fmt.Errorf("%w: malformed refund key %q", syncdomain.ErrValidation, key)
		}
		orderID, err := uuid.Parse(idText)
		if err != nil {
			return fmt.Errorf("%w: malformed order id %q", syncdomain.ErrValidation, idText)
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return fmt.Errorf("%w: malformed refund amount %q", syncdomain.ErrValidation, amountText)
		}
		_, err = s.CreateRefundInvoice(ctx, orderID, amount)
		return err
	}
	orderID, err := uuid.Parse(key)
	if err != nil {
		return fmt.Errorf("%w: malformed order id %q", syncdomain.ErrValidation, key)
	}
	_, err = s.CreateInvoiceForOrder(ctx, orderID)
	return err
}
