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

// PriceSyncService keeps catalog prices aligned with the ERP. The ERP is the
// pricing master, so the regular flow is pull-only; the single exception is
// the campaign price push used for storefront promotions that must also
// exist in the ERP catalog.
type PriceSyncService struct {
	erp       erp.Client
	catalog   syncdomain.ProductCatalog
	stateRepo syncdomain.SyncStateRepository
	oplog     syncdomain.OperationLogger
	resolver  syncdomain.ConflictResolver
	guard     *KeyedGuard
	logger    *zap.Logger
}

// NewPriceSyncService creates a new PriceSyncService
func NewPriceSyncService(
	erpClient erp.Client,
	catalog syncdomain.ProductCatalog,
	stateRepo syncdomain.SyncStateRepository,
	oplog syncdomain.OperationLogger,
	resolver syncdomain.ConflictResolver,
	guard *KeyedGuard,
	logger *zap.Logger,
) *PriceSyncService {
	return &PriceSyncService{
		erp:       erpClient,
		catalog:   catalog,
		stateRepo: stateRepo,
		oplog:     oplog,
		resolver:  resolver,
		guard:     guard,
		logger:    logger.Named("price_sync"),
	}
}

// ---------------------------------------------------------------------------
// Pull (ERP -> storefront)
// ---------------------------------------------------------------------------

// SyncAllFromERP pulls every price record from the ERP
func (s *PriceSyncService) SyncAllFromERP(ctx context.Context) *syncdomain.Result {
	return s.pullFromERP(ctx, time.Time{})
}

// SyncDeltaFromERP pulls price records changed since the given watermark
func (s *PriceSyncService) SyncDeltaFromERP(ctx context.Context, since time.Time) *syncdomain.Result {
	return s.pullFromERP(ctx, since)
}

func (s *PriceSyncService) pullFromERP(ctx context.Context, since time.Time) *syncdomain.Result {
	result := syncdomain.NewResult(syncdomain.EntityTypePrice, syncdomain.DirectionFromERP)
	cycleStart := time.Now()

	records, err := s.erp.ListPriceChanges(ctx, since)
	if err != nil {
		result.RecordFailure("*", fmt.Errorf("list price changes: %w", err))
		closeCycle(ctx, s.stateRepo, syncdomain.EntityTypePrice, syncdomain.DirectionFromERP, result, cycleStart, false, s.logger)
		return result.Finish()
	}

	for i := range records {
		if ctx.Err() != nil {
			result.AddWarning("cycle cancelled, remaining items skipped")
			break
		}
		rec := records[i]
		err := s.guard.Do(syncdomain.EntityTypePrice, rec.SKU, func() error {
			return s.applyERPPrice(ctx, rec)
		})
		if err != nil {
			result.RecordFailure(rec.SKU, err)
			continue
		}
		result.RecordSuccess()
	}

	closeCycle(ctx, s.stateRepo, syncdomain.EntityTypePrice, syncdomain.DirectionFromERP, result, cycleStart, ctx.Err() == nil, s.logger)
	return result.Finish()
}

// applyERPPrice reconciles one ERP price record against the local catalog
func (s *PriceSyncService) applyERPPrice(ctx context.Context, rec erp.PriceRecord) error {
	log, err := s.oplog.StartOperation(ctx, syncdomain.EntityTypePrice, syncdomain.DirectionFromERP, rec.SKU, "")
	if err != nil {
		return err
	}

	local, err := s.catalog.GetPriceBySKU(ctx, rec.SKU)
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
		EntityType:      syncdomain.EntityTypePrice,
		EntityID:        rec.SKU,
		Source:          map[string]syncdomain.FieldValue{"Price": syncdomain.NewDecimalField(rec.ListPrice)},
		Target:          map[string]syncdomain.FieldValue{"Price": syncdomain.NewDecimalField(local.Price)},
		SourceTimestamp: &srcTS,
		TargetTimestamp: &tgtTS,
	})

	if resolution.HadConflict {
		if err := s.oplog.LogConflict(ctx, log.ID, resolution); err != nil {
			return err
		}
	}

	if resolution.Winner == syncdomain.WinnerSource && !local.Price.Equal(rec.ListPrice) {
		if err := s.catalog.SetPrice(ctx, local.ProductID, rec.ListPrice); err != nil {
			if logErr := s.oplog.FailOperation(ctx, log.ID, err); logErr != nil {
				return logErr
			}
			return err
		}
	}

	return s.oplog.CompleteOperation(ctx, log.ID, resolution.Reason)
}

// ---------------------------------------------------------------------------
// Campaign Price Push (exception path)
// ---------------------------------------------------------------------------

// PushPriceToERP pushes one product's campaign price to the ERP
func (s *PriceSyncService) PushPriceToERP(ctx context.Context, productID uuid.UUID) *syncdomain.Result {
	result := syncdomain.NewResult(syncdomain.EntityTypePrice, syncdomain.DirectionToERP)

	prices, err := s.catalog.ListCampaignPrices(ctx)
	if err != nil {
		result.RecordFailure(productID.String(), err)
		return result.Finish()
	}

	for i := range prices {
		if prices[i].ProductID != productID {
			continue
		}
		price := prices[i]
		err := s.guard.Do(syncdomain.EntityTypePrice, price.SKU, func() error {
			return s.pushCampaignPrice(ctx, price)
		})
		if err != nil {
			result.RecordFailure(price.SKU, err)
		} else {
			result.RecordSuccess()
		}
		return result.Finish()
	}

	result.RecordFailure(productID.String(), fmt.Errorf("%w: no campaign price for product", syncdomain.ErrValidation))
	return result.Finish()
}

// PushCampaignPricesToERP pushes every active promotional price to the ERP
func (s *PriceSyncService) PushCampaignPricesToERP(ctx context.Context) *syncdomain.Result {
	result := syncdomain.NewResult(syncdomain.EntityTypePrice, syncdomain.DirectionToERP)
	cycleStart := time.Now()

	prices, err := s.catalog.ListCampaignPrices(ctx)
	if err != nil {
		result.RecordFailure("*", fmt.Errorf("list campaign prices: %w", err))
		closeCycle(ctx, s.stateRepo, syncdomain.EntityTypePrice, syncdomain.DirectionToERP, result, cycleStart, false, s.logger)
		return result.Finish()
	}

	for i := range prices {
		if ctx.Err() != nil {
			result.AddWarning("cycle cancelled, remaining items skipped")
			break
		}
		price := prices[i]
		err := s.guard.Do(syncdomain.EntityTypePrice, price.SKU, func() error {
			return s.pushCampaignPrice(ctx, price)
		})
		if err != nil {
			result.RecordFailure(price.SKU, err)
			continue
		}
		result.RecordSuccess()
	}

	closeCycle(ctx, s.stateRepo, syncdomain.EntityTypePrice, syncdomain.DirectionToERP, result, cycleStart, ctx.Err() == nil, s.logger)
	return result.Finish()
}

func (s *PriceSyncService) pushCampaignPrice(ctx context.Context, price syncdomain.LocalPrice) error {
	if price.CampaignPrice == nil {
		return fmt.Errorf("%w: no active campaign price for SKU %q", syncdomain.ErrValidation, price.SKU)
	}

	log, err := s.oplog.StartOperation(ctx, syncdomain.EntityTypePrice, syncdomain.DirectionToERP, price.SKU, price.ProductID.String())
	if err != nil {
		return err
	}

	record := erp.PriceRecord{
		SKU:           price.SKU,
		Currency:      price.Currency,
		ListPrice:     price.Price,
		CampaignPrice: price.CampaignPrice,
		UpdatedAt:     price.UpdatedAt,
	}
	if err := s.erp.UpsertPrice(ctx, record); err != nil {
		if logErr := s.oplog.FailOperation(ctx, log.ID, err); logErr != nil {
			return logErr
		}
		return err
	}

	return s.oplog.CompleteOperation(ctx, log.ID, "campaign price pushed")
}

// ---------------------------------------------------------------------------
// Retry Hook
// ---------------------------------------------------------------------------

// RetryItem reprocesses a single failed log entry
func (s *PriceSyncService) RetryItem(ctx context.Context, log *syncdomain.SyncLog) error {
	switch log.Direction {
	case syncdomain.DirectionFromERP:
		rec, err := s.erp.GetPrice(ctx, log.ExternalID)
		if err != nil {
			return err
		}
		return s.guard.Do(syncdomain.EntityTypePrice, rec.SKU, func() error {
			return s.applyERPPrice(ctx, *rec)
		})
	case syncdomain.DirectionToERP:
		local, err := s.catalog.GetPriceBySKU(ctx, log.ExternalID)
		if err != nil {
			return fmt.Errorf("%w: unknown SKU %q", syncdomain.ErrValidation, log.ExternalID)
		}
		return s.guard.Do(syncdomain.EntityTypePrice, local.SKU, func() error {
			return s.pushCampaignPrice(ctx, *local)
		})
	default:
		return syncdomain.ErrInvalidDirection
	}
}
