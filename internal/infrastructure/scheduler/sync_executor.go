package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	appsync "github.com/shopfront/backend/internal/application/sync"
	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// SyncRunner is the orchestrator surface the executor drives
type SyncRunner interface {
	RunFullSync(ctx context.Context) *appsync.SyncReport
	RunDeltaSync(ctx context.Context, since *time.Time) *appsync.SyncReport
}

// RetrySweeper is the retry service surface the executor drives
type RetrySweeper interface {
	ProcessPendingRetries(ctx context.Context, entityType *syncdomain.EntityType, maxItems int) (*appsync.RetryResult, error)
}

// SyncJobExecutor dispatches scheduler jobs onto the sync engine
type SyncJobExecutor struct {
	runner        SyncRunner
	sweeper       RetrySweeper
	maxRetryItems int
	logger        *zap.Logger
}

// NewSyncJobExecutor creates a new executor
func NewSyncJobExecutor(runner SyncRunner, sweeper RetrySweeper, maxRetryItems int, logger *zap.Logger) *SyncJobExecutor {
	return &SyncJobExecutor{
		runner:        runner,
		sweeper:       sweeper,
		maxRetryItems: maxRetryItems,
		logger:        logger.Named("sync_executor"),
	}
}

// Execute runs one job. A run with failed items marks the job failed so the
// last outcome is visible on the job, but the item-level failures themselves
// stay in the sync log where the retry sweep finds them.
func (e *SyncJobExecutor) Execute(ctx context.Context, job *Job) error {
	switch job.Kind {
	case JobKindFullSync:
		return e.reportOutcome(job, e.runner.RunFullSync(ctx))
	case JobKindDeltaSync:
		return e.reportOutcome(job, e.runner.RunDeltaSync(ctx, job.Since))
	case JobKindRetrySweep:
		result, err := e.sweeper.ProcessPendingRetries(ctx, nil, e.maxRetryItems)
		if err != nil {
			return err
		}
		if result.Processed > 0 {
			e.logger.Info("retry sweep finished",
				zap.Int("processed", result.Processed),
				zap.Int("succeeded", result.Succeeded),
				zap.Int("failed", result.Failed),
				zap.Int("dead_lettered", result.DeadLettered),
			)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind)
	}
}

func (e *SyncJobExecutor) reportOutcome(job *Job, report *appsync.SyncReport) error {
	failedCycles := 0
	for _, res := range report.Results {
		if !res.Ok() {
			failedCycles++
		}
	}
	if failedCycles > 0 {
		return fmt.Errorf("%d of %d sync cycles had failures", failedCycles, len(report.Results))
	}
	return nil
}

// Ensure SyncJobExecutor implements JobExecutor
var _ JobExecutor = (*SyncJobExecutor)(nil)
