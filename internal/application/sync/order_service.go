package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopfront/backend/internal/domain/erp"
	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// OrderSyncService pushes confirmed storefront orders into the ERP. Pushing
// is ledger-account-first: the customer's account is upserted before the
// order document so the ERP never sees an order for an unknown account.
type OrderSyncService struct {
	erp       erp.Client
	orders    syncdomain.OrderBook
	customers *CustomerSyncService
	stateRepo syncdomain.SyncStateRepository
	mappings  syncdomain.ExternalMappingRepository
	oplog     syncdomain.OperationLogger
	guard     *KeyedGuard
	logger    *zap.Logger
}

// NewOrderSyncService creates a new OrderSyncService
func NewOrderSyncService(
	erpClient erp.Client,
	orders syncdomain.OrderBook,
	customers *CustomerSyncService,
	stateRepo syncdomain.SyncStateRepository,
	mappings syncdomain.ExternalMappingRepository,
	oplog syncdomain.OperationLogger,
	guard *KeyedGuard,
	logger *zap.Logger,
) *OrderSyncService {
	return &OrderSyncService{
		erp:       erpClient,
		orders:    orders,
		customers: customers,
		stateRepo: stateRepo,
		mappings:  mappings,
		oplog:     oplog,
		guard:     guard,
		logger:    logger.Named("order_sync"),
	}
}

// PushOrderToERP transmits one confirmed order to the ERP. Returns the ERP
// order reference. If the order was already pushed, the recorded reference is
// returned without contacting the ERP.
func (s *OrderSyncService) PushOrderToERP(ctx context.Context, orderID uuid.UUID) (string, error) {
	var ref string
	err := s.guard.Do(syncdomain.EntityTypeOrder, orderID.String(), func() error {
		var innerErr error
		ref, innerErr = s.pushOrder(ctx, orderID)
		return innerErr
	})
	return ref, err
}

// PushPendingOrders pushes every confirmed order not yet known to the ERP,
// scanning forward from the last successful push watermark
func (s *OrderSyncService) PushPendingOrders(ctx context.Context) *syncdomain.Result {
	since := time.Time{}
	state, err := s.stateRepo.Find(ctx, syncdomain.EntityTypeOrder, syncdomain.DirectionToERP)
	if err == nil {
		since = state.Watermark()
	} else if !errors.Is(err, syncdomain.ErrStateNotFound) {
		result := syncdomain.NewResult(syncdomain.EntityTypeOrder, syncdomain.DirectionToERP)
		result.RecordFailure("*", err)
		return result.Finish()
	}
	return s.PushConfirmedOrdersSince(ctx, since)
}

// PushConfirmedOrdersSince pushes orders confirmed at or after t
func (s *OrderSyncService) PushConfirmedOrdersSince(ctx context.Context, t time.Time) *syncdomain.Result {
	result := syncdomain.NewResult(syncdomain.EntityTypeOrder, syncdomain.DirectionToERP)
	cycleStart := time.Now()

	orders, err := s.orders.ListConfirmedSince(ctx, t)
	if err != nil {
		result.RecordFailure("*", fmt.Errorf("list confirmed orders: %w", err))
		closeCycle(ctx, s.stateRepo, syncdomain.EntityTypeOrder, syncdomain.DirectionToERP, result, cycleStart, false, s.logger)
		return result.Finish()
	}

	for i := range orders {
		if ctx.Err() != nil {
			result.AddWarning("cycle cancelled, remaining items skipped")
			break
		}
		order := orders[i]

		pushed, err := s.mappings.Exists(ctx, syncdomain.EntityTypeOrder, order.ID.String())
		if err != nil {
			result.RecordFailure(order.Number, err)
			continue
		}
		if pushed {
			result.RecordSkip()
			continue
		}

		if _, err := s.PushOrderToERP(ctx, order.ID); err != nil {
			result.RecordFailure(order.Number, err)
			continue
		}
		result.RecordSuccess()
	}

	closeCycle(ctx, s.stateRepo, syncdomain.EntityTypeOrder, syncdomain.DirectionToERP, result, cycleStart, ctx.Err() == nil, s.logger)
	return result.Finish()
}

// GetExternalOrderRef returns the ERP reference recorded for an order, or
// sync.ErrMappingNotFound if the order was never pushed
func (s *OrderSyncService) GetExternalOrderRef(ctx context.Context, orderID uuid.UUID) (string, error) {
	mapping, err := s.mappings.FindByInternalID(ctx, syncdomain.EntityTypeOrder, orderID.String())
	if err != nil {
		return "", err
	}
	return mapping.ExternalCode, nil
}

func (s *OrderSyncService) pushOrder(ctx context.Context, orderID uuid.UUID) (string, error) {
	// Already pushed orders resolve to their recorded reference. The mapping
	// is the idempotency record for at-least-once delivery.
	if mapping, err := s.mappings.FindByInternalID(ctx, syncdomain.EntityTypeOrder, orderID.String()); err == nil {
		return mapping.ExternalCode, nil
	} else if !errors.Is(err, syncdomain.ErrMappingNotFound) {
		return "", err
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("%w: unknown order %s", syncdomain.ErrValidation, orderID)
	}
	if !order.Confirmed() {
		return "", fmt.Errorf("%w: order %s is not confirmed", syncdomain.ErrValidation, order.Number)
	}

	log, err := s.oplog.StartOperation(ctx, syncdomain.EntityTypeOrder, syncdomain.DirectionToERP, order.Number, order.ID.String())
	if err != nil {
		return "", err
	}

	accountCode, err := s.customers.SyncUserToLedgerAccount(ctx, order.UserID)
	if err != nil {
		failErr := fmt.Errorf("ledger account for user %s: %w", order.UserID, err)
		if logErr := s.oplog.FailOperation(ctx, log.ID, failErr); logErr != nil {
			return "", logErr
		}
		return "", failErr
	}

	ref, err := s.erp.CreateOrder(ctx, buildOrderDocument(order, accountCode))
	if err != nil {
		if logErr := s.oplog.FailOperation(ctx, log.ID, err); logErr != nil {
			return "", logErr
		}
		return "", err
	}

	mapping, err := syncdomain.NewExternalMapping(syncdomain.EntityTypeOrder, order.ID.String(), ref)
	if err != nil {
		return "", err
	}
	if err := s.mappings.Save(ctx, mapping); err != nil {
		// The ERP accepted the order but the reference was not recorded. Flag
		// the log entry so operators can backfill the mapping before the next
		// push attempts to resend.
		s.logger.Error("order pushed but mapping not recorded",
			zap.String("order", order.Number),
			zap.String("erp_ref", ref),
			zap.Error(err))
		if logErr := s.oplog.FailOperation(ctx, log.ID, fmt.Errorf("record order mapping: %w", err)); logErr != nil {
			return "", logErr
		}
		return ref, err
	}

	if err := s.oplog.CompleteOperation(ctx, log.ID, fmt.Sprintf("order pushed as %s", ref)); err != nil {
		return "", err
	}
	return ref, nil
}

func buildOrderDocument(order *syncdomain.LocalOrder, accountCode string) erp.OrderDocument {
	lines := make([]erp.OrderLine, 0, len(order.Lines))
	for _, l := range order.Lines {
		lines = append(lines, erp.OrderLine{
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	return erp.OrderDocument{
		OrderNumber: order.Number,
		AccountCode: accountCode,
		Lines:       lines,
		Total:       order.Total,
		Currency:    order.Currency,
		ConfirmedAt: *order.ConfirmedAt,
	}
}

// RetryItem reprocesses a single failed log entry
func (s *OrderSyncService) RetryItem(ctx context.Context, log *syncdomain.SyncLog) error {
	orderID, err := uuid.Parse(log.InternalID)
	if err != nil {
		return fmt.Errorf("%w: malformed order id %q", syncdomain.ErrValidation, log.InternalID)
	}
	_, err = s.PushOrderToERP(ctx, orderID)
	return err
}
