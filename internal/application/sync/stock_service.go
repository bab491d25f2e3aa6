package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopfront/backend/internal/domain/erp"
	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// StockSyncService reconciles stock quantities in both directions. Pulls
// treat the ERP as authoritative by default, but every item runs through the
// conflict resolver to catch a local sale that reserved stock between pulls.
type StockSyncService struct {
	erp       erp.Client
	catalog   syncdomain.ProductCatalog
	stateRepo syncdomain.SyncStateRepository
	oplog     syncdomain.OperationLogger
	resolver  syncdomain.ConflictResolver
	guard     *KeyedGuard
	logger    *zap.Logger
}

// NewStockSyncService creates a new StockSyncService
func NewStockSyncService(
	erpClient erp.Client,
	catalog syncdomain.ProductCatalog,
	stateRepo syncdomain.SyncStateRepository,
	oplog syncdomain.OperationLogger,
	resolver syncdomain.ConflictResolver,
	guard *KeyedGuard,
	logger *zap.Logger,
) *StockSyncService {
	return &StockSyncService{
		erp:       erpClient,
		catalog:   catalog,
		stateRepo: stateRepo,
		oplog:     oplog,
		resolver:  resolver,
		guard:     guard,
		logger:    logger.Named("stock_sync"),
	}
}

// ---------------------------------------------------------------------------
// Pull (ERP -> storefront)
// ---------------------------------------------------------------------------

// SyncAllFromERP pulls every stock record from the ERP
func (s *StockSyncService) SyncAllFromERP(ctx context.Context) *syncdomain.Result {
	return s.pullFromERP(ctx, time.Time{})
}

// SyncDeltaFromERP pulls stock records changed since the given watermark
func (s *StockSyncService) SyncDeltaFromERP(ctx context.Context, since time.Time) *syncdomain.Result {
	return s.pullFromERP(ctx, since)
}

func (s *StockSyncService) pullFromERP(ctx context.Context, since time.Time) *syncdomain.Result {
	result := syncdomain.NewResult(syncdomain.EntityTypeStock, syncdomain.DirectionFromERP)
	cycleStart := time.Now()

	records, err := s.erp.ListStockChanges(ctx, since)
	if err != nil {
		result.RecordFailure("*", fmt.Errorf("list stock changes: %w", err))
		closeCycle(ctx, s.stateRepo, syncdomain.EntityTypeStock, syncdomain.DirectionFromERP, result, cycleStart, false, s.logger)
		return result.Finish()
	}

	for i := range records {
		if ctx.Err() != nil {
			result.AddWarning("cycle cancelled, remaining items skipped")
			break
		}
		rec := records[i]
		err := s.guard.Do(syncdomain.EntityTypeStock, rec.SKU, func() error {
			return s.applyERPStock(ctx, rec)
		})
		if err != nil {
			result.RecordFailure(rec.SKU, err)
			continue
		}
		result.RecordSuccess()
	}

	closeCycle(ctx, s.stateRepo, syncdomain.EntityTypeStock, syncdomain.DirectionFromERP, result, cycleStart, ctx.Err() == nil, s.logger)
	return result.Finish()
}

// applyERPStock reconciles one ERP stock record against the local catalog
func (s *StockSyncService) applyERPStock(ctx context.Context, rec erp.StockRecord) error {
	log, err := s.oplog.StartOperation(ctx, syncdomain.EntityTypeStock, syncdomain.DirectionFromERP, rec.SKU, "")
	if err != nil {
		return err
	}

	local, err := s.catalog.GetStockBySKU(ctx, rec.SKU)
	if err != nil {
		failErr := fmt.Errorf("%w: unknown SKU %q", syncdomain.ErrValidation, rec.SKU)
		if logErr := s.oplog.FailOperation(ctx, log.ID, failErr); logErr != nil {
			return logErr
		}
		return failErr
	}

	srcTS := rec.UpdatedAt
	tgtTS := local.UpdatedAt
	resolution := s.resolver.Resolve(syncdomain.ConflictContext{
		EntityType:      syncdomain.EntityTypeStock,
		EntityID:        rec.SKU,
		Source:          map[string]syncdomain.FieldValue{"StockQuantity": syncdomain.NewDecimalField(rec.Quantity)},
		Target:          map[string]syncdomain.FieldValue{"StockQuantity": syncdomain.NewDecimalField(local.Quantity)},
		SourceTimestamp: &srcTS,
		TargetTimestamp: &tgtTS,
	})

	if resolution.HadConflict {
		if err := s.oplog.LogConflict(ctx, log.ID, resolution); err != nil {
			return err
		}
	}

	switch resolution.Winner {
	case syncdomain.WinnerManualReview:
		failErr := fmt.Errorf("%w: %s", syncdomain.ErrManualReviewPending, resolution.Reason)
		if logErr := s.oplog.FailOperation(ctx, log.ID, failErr); logErr != nil {
			return logErr
		}
		return failErr
	case syncdomain.WinnerSource:
		if !local.Quantity.Equal(rec.Quantity) {
			if err := s.catalog.SetStock(ctx, local.ProductID, rec.Quantity); err != nil {
				if logErr := s.oplog.FailOperation(ctx, log.ID, err); logErr != nil {
					return logErr
				}
				return err
			}
		}
	}

	return s.oplog.CompleteOperation(ctx, log.ID, resolution.Reason)
}

// ---------------------------------------------------------------------------
// Push (storefront -> ERP)
// ---------------------------------------------------------------------------

// PushStockToERP pushes one product's stock level to the ERP
func (s *StockSyncService) PushStockToERP(ctx context.Context, productID uuid.UUID) *syncdomain.Result {
	result := syncdomain.NewResult(syncdomain.EntityTypeStock, syncdomain.DirectionToERP)

	err := s.guard.Do(syncdomain.EntityTypeStock, productID.String(), func() error {
		return s.pushStockItem(ctx, productID)
	})
	if err != nil {
		result.RecordFailure(productID.String(), err)
	} else {
		result.RecordSuccess()
	}
	return result.Finish()
}

// PushAllStocksToERP pushes every stocked SKU to the ERP
func (s *StockSyncService) PushAllStocksToERP(ctx context.Context) *syncdomain.Result {
	result := syncdomain.NewResult(syncdomain.EntityTypeStock, syncdomain.DirectionToERP)
	cycleStart := time.Now()

	stocks, err := s.catalog.ListStocks(ctx)
	if err != nil {
		result.RecordFailure("*", fmt.Errorf("list stocks: %w", err))
		closeCycle(ctx, s.stateRepo, syncdomain.EntityTypeStock, syncdomain.DirectionToERP, result, cycleStart, false, s.logger)
		return result.Finish()
	}

	for i := range stocks {
		if ctx.Err() != nil {
			result.AddWarning("cycle cancelled, remaining items skipped")
			break
		}
		stock := stocks[i]
		err := s.guard.Do(syncdomain.EntityTypeStock, stock.ProductID.String(), func() error {
			return s.pushStockItem(ctx, stock.ProductID)
		})
		if err != nil {
			result.RecordFailure(stock.SKU, err)
			continue
		}
		result.RecordSuccess()
	}

	closeCycle(ctx, s.stateRepo, syncdomain.EntityTypeStock, syncdomain.DirectionToERP, result, cycleStart, ctx.Err() == nil, s.logger)
	return result.Finish()
}

func (s *StockSyncService) pushStockItem(ctx context.Context, productID uuid.UUID) error {
	local, err := s.catalog.GetStockByProductID(ctx, productID)
	if err != nil {
		return fmt.Errorf("%w: product %s: %v", syncdomain.ErrValidation, productID, err)
	}

	log, err := s.oplog.StartOperation(ctx, syncdomain.EntityTypeStock, syncdomain.DirectionToERP, local.SKU, productID.String())
	if err != nil {
		return err
	}

	record := erp.StockRecord{
		SKU:       local.SKU,
		Quantity:  local.Quantity,
		UpdatedAt: local.UpdatedAt,
	}
	if err := s.erp.UpsertStock(ctx, record); err != nil {
		if logErr := s.oplog.FailOperation(ctx, log.ID, err); logErr != nil {
			return logErr
		}
		return err
	}

	return s.oplog.CompleteOperation(ctx, log.ID, "stock pushed")
}

// ---------------------------------------------------------------------------
// Retry Hook
// ---------------------------------------------------------------------------

// RetryItem reprocesses a single failed log entry. Called by the retry sweep
// after the log row has been reopened.
func (s *StockSyncService) RetryItem(ctx context.Context, log *syncdomain.SyncLog) error {
	switch log.Direction {
	case syncdomain.DirectionFromERP:
		rec, err := s.erp.GetStock(ctx, log.ExternalID)
		if err != nil {
			return err
		}
		return s.guard.Do(syncdomain.EntityTypeStock, rec.SKU, func() error {
			return s.applyERPStock(ctx, *rec)
		})
	case syncdomain.DirectionToERP:
		productID, err := uuid.Parse(log.InternalID)
		if err != nil {
			return fmt.Errorf("%w: bad internal id %q", syncdomain.ErrValidation, log.InternalID)
		}
		return s.guard.Do(syncdomain.EntityTypeStock, productID.String(), func() error {
			return s.pushStockItem(ctx, productID)
		})
	default:
		return syncdomain.ErrInvalidDirection
	}
}
