package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// MaxRetryAttempts is the attempt ceiling before an item is dead-lettered
const MaxRetryAttempts = 3

// retrySchedule maps the attempt number about to run to the wait before it.
// The first attempt runs immediately.
var retrySchedule = [MaxRetryAttempts]time.Duration{
	0,
	1 * time.Minute,
	5 * time.Minute,
}

// CalculateNextRetryDelay returns the backoff before the given attempt
// number runs. Attempts beyond the schedule reuse the longest delay; the
// sweep dead-letters them before that wait matters.
func CalculateNextRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return retrySchedule[0]
	}
	if attempt > MaxRetryAttempts {
		return retrySchedule[MaxRetryAttempts-1]
	}
	return retrySchedule[attempt-1]
}

// IsRetryableException reports whether an error is worth scheduling another
// attempt for
func IsRetryableException(err error) bool {
	return syncdomain.IsRetryable(err)
}

// RetryExecutor re-runs the operation a failed log row stands for. Each
// entity sync service provides one.
type RetryExecutor interface {
	RetryItem(ctx context.Context, log *syncdomain.SyncLog) error
}

// RetryResult summarizes one retry sweep
type RetryResult struct {
	Processed    int
	Succeeded    int
	Failed       int
	DeadLettered int
	Duration     time.Duration
}

// RetryService sweeps the sync log for items due for retry and re-executes
// them through the owning entity service. Items that exhaust the attempt
// budget are promoted to the dead letter.
type RetryService struct {
	oplog     syncdomain.OperationLogger
	executors map[syncdomain.EntityType]RetryExecutor
	logger    *zap.Logger
}

// NewRetryService creates a new RetryService
func NewRetryService(oplog syncdomain.OperationLogger, logger *zap.Logger) *RetryService {
	return &RetryService{
		oplog:     oplog,
		executors: make(map[syncdomain.EntityType]RetryExecutor),
		logger:    logger.Named("retry"),
	}
}

// Register wires the executor responsible for an entity type
func (s *RetryService) Register(entityType syncdomain.EntityType, executor RetryExecutor) {
	s.executors[entityType] = executor
}

// ProcessPendingRetries runs one sweep over rows due for retry. A nil
// entityType sweeps all types; maxItems bounds the batch.
func (s *RetryService) ProcessPendingRetries(ctx context.Context, entityType *syncdomain.EntityType, maxItems int) (*RetryResult, error) {
	start := time.Now()
	result := &RetryResult{}

	logs, err := s.oplog.GetPendingRetryLogs(ctx, entityType, maxItems)
	if err != nil {
		return nil, fmt.Errorf("load pending retries: %w", err)
	}

	for i := range logs {
		if ctx.Err() != nil {
			break
		}
		s.processOne(ctx, &logs[i], result)
	}

	result.Duration = time.Since(start)
	if result.Processed > 0 {
		s.logger.Info("retry sweep finished",
			zap.Int("processed", result.Processed),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
			zap.Int("dead_lettered", result.DeadLettered),
			zap.Duration("duration", result.Duration),
		)
	}
	return result, nil
}

func (s *RetryService) processOne(ctx context.Context, log *syncdomain.SyncLog, result *RetryResult) {
	executor, ok := s.executors[log.EntityType]
	if !ok {
		s.logger.Error("no retry executor registered",
			zap.String("entity_type", log.EntityType.String()),
			zap.String("log_id", log.ID.String()),
		)
		return
	}

	// Exhausted items are promoted before wasting another ERP round-trip
	if log.AttemptCount >= MaxRetryAttempts {
		reason := fmt.Sprintf("retry budget exhausted after %d attempts", log.AttemptCount)
		if err := s.oplog.MarkAsUnrecoverable(ctx, log.ID, reason); err != nil {
			s.logger.Error("dead letter promotion failed",
				zap.String("log_id", log.ID.String()),
				zap.Error(err),
			)
			return
		}
		result.Processed++
		result.DeadLettered++
		return
	}

	if log.Status == syncdomain.StatusFailed {
		if _, err := s.oplog.RetryOperation(ctx, log.ID); err != nil {
			s.logger.Error("log row reopen failed",
				zap.String("log_id", log.ID.String()),
				zap.Error(err),
			)
			return
		}
	}

	result.Processed++
	// The executor runs StartOperation/CompleteOperation/FailOperation
	// against the same row, so attempt accounting and the next backoff are
	// recorded by the executor path itself.
	if err := executor.RetryItem(ctx, log); err != nil {
		result.Failed++
		// An executor that errors before opening the row (a lookup ahead
		// of StartOperation, key parsing) leaves it Pending with a stale
		// attempt count. Record the attempt so the budget still runs out.
		// A row the executor already closed rejects the transition.
		if failErr := s.oplog.FailOperation(ctx, log.ID, err); failErr != nil && !errors.Is(failErr, syncdomain.ErrInvalidTransition) {
			s.logger.Error("retry failure accounting failed",
				zap.String("log_id", log.ID.String()),
				zap.Error(failErr),
			)
		}
		s.logger.Debug("retry attempt failed",
			zap.String("log_id", log.ID.String()),
			zap.String("entity_type", log.EntityType.String()),
			zap.Error(err),
		)
		return
	}
	result.Succeeded++
}
