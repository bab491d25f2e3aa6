package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// unhealthyFailureStreak is the consecutive-failure count at which an entity
// cycle is considered unhealthy
const unhealthyFailureStreak = 3

// Dead letter backlog thresholds for the health assessment
const (
	staleDeadLetterAge   = 24 * time.Hour
	deadLetterBacklogMax = 10
)

// SyncReport collects the per-cycle results of one orchestrated run
type SyncReport struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Results     []*syncdomain.Result
}

// Ok reports whether every cycle in the run finished without item failures
func (r *SyncReport) Ok() bool {
	for _, res := range r.Results {
		if !res.Ok() {
			return false
		}
	}
	return true
}

// EntityStatus is the health view of one (entity type, direction) cycle
type EntityStatus struct {
	EntityType          syncdomain.EntityType
	Direction           syncdomain.Direction
	LastSyncAt          *time.Time
	LastSuccess         bool
	LastError           string
	ProcessedCount      int
	ConsecutiveFailures int
	Healthy             bool
}

// SyncStatus is the engine-wide health snapshot
type SyncStatus struct {
	Healthy          bool
	Entities         []EntityStatus
	DeadLetterCount  int
	OldestDeadLetter *time.Time
	FailuresLast24h  int64
	Statistics       *syncdomain.Statistics
}

// Orchestrator drives full and delta runs across every entity sync service.
// Independent cycles run concurrently; order and invoice pushes run after
// the customer push so ledger accounts exist before documents referencing
// them.
type Orchestrator struct {
	stocks    *StockSyncService
	prices    *PriceSyncService
	customers *CustomerSyncService
	orders    *OrderSyncService
	invoices  *InvoiceSyncService
	stateRepo syncdomain.SyncStateRepository
	oplog     syncdomain.OperationLogger
	logger    *zap.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(
	stocks *StockSyncService,
	prices *PriceSyncService,
	customers *CustomerSyncService,
	orders *OrderSyncService,
	invoices *InvoiceSyncService,
	stateRepo syncdomain.SyncStateRepository,
	oplog syncdomain.OperationLogger,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		stocks:    stocks,
		prices:    prices,
		customers: customers,
		orders:    orders,
		invoices:  invoices,
		stateRepo: stateRepo,
		oplog:     oplog,
		logger:    logger.Named("orchestrator"),
	}
}

// RunFullSync runs every cycle over the full data set, ignoring watermarks
func (o *Orchestrator) RunFullSync(ctx context.Context) *SyncReport {
	report := &SyncReport{StartedAt: time.Now()}
	o.logger.Info("full sync started")

	results := make([]*syncdomain.Result, 3)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results[0] = o.stocks.SyncAllFromERP(gctx)
		return nil
	})
	g.Go(func() error {
		results[1] = o.prices.SyncAllFromERP(gctx)
		return nil
	})
	g.Go(func() error {
		results[2] = o.customers.SyncAllUsersToLedgerAccount(gctx)
		return nil
	})
	// Cycle goroutines record failures in their results instead of
	// returning errors, so Wait never fails here.
	_ = g.Wait()
	report.Results = append(report.Results, results...)

	report.Results = append(report.Results, o.orders.PushConfirmedOrdersSince(ctx, time.Time{}))
	report.Results = append(report.Results, o.invoices.CreateInvoicesForPendingOrders(ctx))

	report.CompletedAt = time.Now()
	o.logReport("full sync finished", report)
	return report
}

// RunDeltaSync runs every cycle forward from its stored watermark. A
// non-nil since overrides the watermarks and replays every windowed cycle
// from that instant instead.
func (o *Orchestrator) RunDeltaSync(ctx context.Context, since *time.Time) *SyncReport {
	report := &SyncReport{StartedAt: time.Now()}
	if since != nil {
		o.logger.Info("delta sync started", zap.Time("since_override", *since))
	} else {
		o.logger.Info("delta sync started")
	}

	window := func(gctx context.Context, entityType syncdomain.EntityType) time.Time {
		if since != nil {
			return *since
		}
		return o.watermark(gctx, entityType, syncdomain.DirectionFromERP)
	}

	results := make([]*syncdomain.Result, 3)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results[0] = o.stocks.SyncDeltaFromERP(gctx, window(gctx, syncdomain.EntityTypeStock))
		return nil
	})
	g.Go(func() error {
		results[1] = o.prices.SyncDeltaFromERP(gctx, window(gctx, syncdomain.EntityTypePrice))
		return nil
	})
	g.Go(func() error {
		results[2] = o.customers.SyncAllUsersToLedgerAccount(gctx)
		return nil
	})
	_ = g.Wait()
	report.Results = append(report.Results, results...)

	if since != nil {
		report.Results = append(report.Results, o.orders.PushConfirmedOrdersSince(ctx, *since))
	} else {
		report.Results = append(report.Results, o.orders.PushPendingOrders(ctx))
	}
	report.Results = append(report.Results, o.invoices.CreateInvoicesForPendingOrders(ctx))

	report.CompletedAt = time.Now()
	o.logReport("delta sync finished", report)
	return report
}

// watermark returns the last successful sync time for a cycle. A missing
// state row means the cycle never completed, so the whole window is synced.
func (o *Orchestrator) watermark(ctx context.Context, entityType syncdomain.EntityType, direction syncdomain.Direction) time.Time {
	state, err := o.stateRepo.Find(ctx, entityType, direction)
	if err != nil {
		if !errors.Is(err, syncdomain.ErrStateNotFound) {
			o.logger.Warn("watermark lookup failed, falling back to full window",
				zap.String("entity_type", entityType.String()),
				zap.String("direction", direction.String()),
				zap.Error(err),
			)
		}
		return time.Time{}
	}
	return state.Watermark()
}

// GetSyncStatus assembles the engine-wide health snapshot
func (o *Orchestrator) GetSyncStatus(ctx context.Context) (*SyncStatus, error) {
	states, err := o.stateRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	status := &SyncStatus{Healthy: true}
	for i := range states {
		st := states[i]
		healthy := st.ConsecutiveFailures < unhealthyFailureStreak
		if !healthy {
			status.Healthy = false
		}
		status.Entities = append(status.Entities, EntityStatus{
			EntityType:          st.EntityType,
			Direction:           st.Direction,
			LastSyncAt:          st.LastSyncAt,
			LastSuccess:         st.LastSuccess,
			LastError:           st.LastError,
			ProcessedCount:      st.ProcessedCount,
			ConsecutiveFailures: st.ConsecutiveFailures,
			Healthy:             healthy,
		})
	}

	deadLetters, err := o.oplog.GetDeadLetterItems(ctx)
	if err != nil {
		return nil, err
	}
	status.DeadLetterCount = len(deadLetters)
	if len(deadLetters) > 0 {
		oldest := deadLetters[0].UpdatedAt
		for i := range deadLetters {
			if deadLetters[i].UpdatedAt.Before(oldest) {
				oldest = deadLetters[i].UpdatedAt
			}
		}
		status.OldestDeadLetter = &oldest
		// An unworked dead letter backlog flips the engine unhealthy even
		// when every cycle is currently succeeding
		if len(deadLetters) >= deadLetterBacklogMax || time.Since(oldest) > staleDeadLetterAge {
			status.Healthy = false
		}
	}

	failures, err := o.oplog.CountRecentFailures(ctx, 24)
	if err != nil {
		return nil, err
	}
	status.FailuresLast24h = failures

	stats, err := o.oplog.GetStatistics(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	status.Statistics = stats

	return status, nil
}

func (o *Orchestrator) logReport(msg string, report *SyncReport) {
	fields := []zap.Field{
		zap.Duration("duration", report.CompletedAt.Sub(report.StartedAt)),
		zap.Bool("ok", report.Ok()),
	}
	for _, res := range report.Results {
		fields = append(fields, zap.Int(
			res.EntityType.String()+"_"+res.Direction.String()+"_failed",
			res.FailedCount,
		))
	}
	o.logger.Info(msg, fields...)
}
