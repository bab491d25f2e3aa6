package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// RetryDelayFunc computes the backoff before the given attempt number runs
type RetryDelayFunc func(attempt int) time.Duration

// SyncLoggerImpl implements syncdomain.OperationLogger on top of the sync
// log repository
type SyncLoggerImpl struct {
	logRepo    syncdomain.SyncLogRepository
	retryDelay RetryDelayFunc
	logger     *zap.Logger
}

// NewSyncLogger creates a new SyncLoggerImpl. retryDelay decides how far in
// the future a transient failure becomes eligible for retry.
func NewSyncLogger(logRepo syncdomain.SyncLogRepository, retryDelay RetryDelayFunc, logger *zap.Logger) *SyncLoggerImpl {
	return &SyncLoggerImpl{
		logRepo:    logRepo,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// ---------------------------------------------------------------------------
// Operation Lifecycle
// ---------------------------------------------------------------------------

// StartOperation opens or reuses the log row for an item and begins an attempt
func (s *SyncLoggerImpl) StartOperation(ctx context.Context, entityType syncdomain.EntityType, direction syncdomain.Direction, externalID, internalID string) (*syncdomain.SyncLog, error) {
	log, err := s.logRepo.FindOpenByKey(ctx, entityType, direction, externalID, internalID)
	if err != nil {
		if !errors.Is(err, syncdomain.ErrLogNotFound) {
			return nil, err
		}
		log, err = syncdomain.NewSyncLog(entityType, direction, externalID, internalID)
		if err != nil {
			return nil, err
		}
	}

	if err := log.Begin(); err != nil {
		return nil, err
	}
	if err := s.logRepo.Save(ctx, log); err != nil {
		return nil, err
	}

	s.logger.Debug("sync operation started",
		zap.String("log_id", log.ID.String()),
		zap.String("entity_type", entityType.String()),
		zap.String("direction", direction.String()),
		zap.String("external_id", externalID),
		zap.String("internal_id", internalID),
		zap.Int("attempt", log.AttemptCount),
	)
	return log, nil
}

// CompleteOperation terminally closes an attempt as successful
func (s *SyncLoggerImpl) CompleteOperation(ctx context.Context, logID uuid.UUID, message string) error {
	log, err := s.logRepo.FindByID(ctx, logID)
	if err != nil {
		return err
	}
	if err := log.Complete(message); err != nil {
		return err
	}
	return s.logRepo.Save(ctx, log)
}

// FailOperation records a failed attempt with classification-driven handling
func (s *SyncLoggerImpl) FailOperation(ctx context.Context, logID uuid.UUID, opErr error) error {
	log, err := s.logRepo.FindByID(ctx, logID)
	if err != nil {
		return err
	}

	class := syncdomain.Classify(opErr)
	var nextRetryAt *time.Time
	if class.Retryable() {
		next := time.Now().Add(s.retryDelay(log.AttemptCount + 1))
		nextRetryAt = &next
	}

	if err := log.Fail(opErr.Error(), class, nextRetryAt); err != nil {
		return err
	}
	if err := s.logRepo.Save(ctx, log); err != nil {
		return err
	}

	s.logger.Warn("sync operation failed",
		zap.String("log_id", log.ID.String()),
		zap.String("entity_type", log.EntityType.String()),
		zap.String("class", string(class)),
		zap.Int("attempt", log.AttemptCount),
		zap.Error(opErr),
	)
	return nil
}

// RetryOperation reopens a failed row so the next attempt can begin
func (s *SyncLoggerImpl) RetryOperation(ctx context.Context, logID uuid.UUID) (*syncdomain.SyncLog, error) {
	log, err := s.logRepo.FindByID(ctx, logID)
	if err != nil {
		return nil, err
	}
	if err := log.Reopen(); err != nil {
		return nil, err
	}
	if err := s.logRepo.Save(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

// ---------------------------------------------------------------------------
// Batch Variants
// ---------------------------------------------------------------------------

// StartBatch opens log rows for several items of the same kind
func (s *SyncLoggerImpl) StartBatch(ctx context.Context, entityType syncdomain.EntityType, direction syncdomain.Direction, keys []syncdomain.ItemKey) ([]syncdomain.SyncLog, error) {
	logs := make([]syncdomain.SyncLog, 0, len(keys))
	for _, key := range keys {
		log, err := s.StartOperation(ctx, entityType, direction, key.ExternalID, key.InternalID)
		if err != nil {
			return logs, fmt.Errorf("start batch item %s/%s: %w", key.ExternalID, key.InternalID, err)
		}
		logs = append(logs, *log)
	}
	return logs, nil
}

// CompleteBatch closes several attempts as successful
func (s *SyncLoggerImpl) CompleteBatch(ctx context.Context, logIDs []uuid.UUID, message string) error {
	for _, id := range logIDs {
		if err := s.CompleteOperation(ctx, id, message); err != nil {
			return err
		}
	}
	return nil
}

// FailBatch records the same failure for several attempts
func (s *SyncLoggerImpl) FailBatch(ctx context.Context, logIDs []uuid.UUID, opErr error) error {
	for _, id := range logIDs {
		if err := s.FailOperation(ctx, id, opErr); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Conflict Audit
// ---------------------------------------------------------------------------

// LogConflict persists a conflict resolution against its log row
func (s *SyncLoggerImpl) LogConflict(ctx context.Context, logID uuid.UUID, resolution syncdomain.Resolution) error {
	log, err := s.logRepo.FindByID(ctx, logID)
	if err != nil {
		return err
	}
	log.AppendDetail(resolution.Detail())
	return s.logRepo.Save(ctx, log)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// GetPendingRetryLogs returns rows due for retry, oldest first
func (s *SyncLoggerImpl) GetPendingRetryLogs(ctx context.Context, entityType *syncdomain.EntityType, limit int) ([]syncdomain.SyncLog, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.logRepo.FindRetryable(ctx, entityType, time.Now(), limit)
}

// GetRecentFailures returns rows failed within the last given hours
func (s *SyncLoggerImpl) GetRecentFailures(ctx context.Context, hours int) ([]syncdomain.SyncLog, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	status := syncdomain.StatusFailed
	logs, _, err := s.logRepo.FindAll(ctx, syncdomain.LogFilter{
		Status: &status,
		Since:  &since,
	})
	return logs, err
}

// CountRecentFailures counts rows that failed or dead-lettered within the
// last given hours
func (s *SyncLoggerImpl) CountRecentFailures(ctx context.Context, hours int) (int64, error) {
	if hours <= 0 {
		hours = 24
	}
	return s.logRepo.CountFailuresSince(ctx, time.Now().Add(-time.Duration(hours)*time.Hour))
}

// GetStatistics aggregates the log since the given time
func (s *SyncLoggerImpl) GetStatistics(ctx context.Context, since time.Time) (*syncdomain.Statistics, error) {
	return s.logRepo.Statistics(ctx, since)
}

// ---------------------------------------------------------------------------
// Dead Letter Remediation
// ---------------------------------------------------------------------------

// GetDeadLetterItems returns all dead-lettered rows
func (s *SyncLoggerImpl) GetDeadLetterItems(ctx context.Context) ([]syncdomain.SyncLog, error) {
	return s.logRepo.FindDeadLetters(ctx)
}

// RequeueDeadLetter reopens a dead-lettered row on operator request
func (s *SyncLoggerImpl) RequeueDeadLetter(ctx context.Context, logID uuid.UUID) error {
	log, err := s.logRepo.FindByID(ctx, logID)
	if err != nil {
		return err
	}
	if err := log.Requeue(); err != nil {
		return err
	}
	if err := s.logRepo.Save(ctx, log); err != nil {
		return err
	}
	s.logger.Info("dead letter requeued",
		zap.String("log_id", logID.String()),
		zap.String("entity_type", log.EntityType.String()),
	)
	return nil
}

// MarkAsUnrecoverable terminally closes a row with an operator reason
func (s *SyncLoggerImpl) MarkAsUnrecoverable(ctx context.Context, logID uuid.UUID, reason string) error {
	log, err := s.logRepo.FindByID(ctx, logID)
	if err != nil {
		return err
	}
	if log.Status == syncdomain.StatusDeadLetter {
		log.AppendDetail("marked unrecoverable: " + reason)
		return s.logRepo.Save(ctx, log)
	}
	if err := log.PromoteToDeadLetter("marked unrecoverable: " + reason); err != nil {
		return err
	}
	return s.logRepo.Save(ctx, log)
}

// Ensure SyncLoggerImpl implements OperationLogger
var _ syncdomain.OperationLogger = (*SyncLoggerImpl)(nil)
