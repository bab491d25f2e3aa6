package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ItemKey identifies one entity instance in a batch operation
type ItemKey struct {
	ExternalID string
	InternalID string
}

// OperationLogger is the audit substrate every sync component records
// through. One open log row exists per item key; attempts against the same
// key reuse and advance that row.
type OperationLogger interface {
	// StartOperation opens (or reopens) the log row for an item and marks an
	// attempt in progress
	StartOperation(ctx context.Context, entityType EntityType, direction Direction, externalID, internalID string) (*SyncLog, error)

	// CompleteOperation terminally closes an attempt as successful
	CompleteOperation(ctx context.Context, logID uuid.UUID, message string) error

	// FailOperation records a failed attempt. The error is classified:
	// transient failures schedule a retry, validation failures wait for a
	// manual fix, hard rejections dead-letter immediately.
	FailOperation(ctx context.Context, logID uuid.UUID, opErr error) error

	// RetryOperation reopens a failed row so the next attempt can begin
	RetryOperation(ctx context.Context, logID uuid.UUID) (*SyncLog, error)

	// StartBatch opens log rows for several items of the same kind
	StartBatch(ctx context.Context, entityType EntityType, direction Direction, keys []ItemKey) ([]SyncLog, error)

	// CompleteBatch closes several attempts as successful
	CompleteBatch(ctx context.Context, logIDs []uuid.UUID, message string) error

	// FailBatch records the same failure for several attempts
	FailBatch(ctx context.Context, logIDs []uuid.UUID, opErr error) error

	// LogConflict persists a conflict resolution against its log row
	LogConflict(ctx context.Context, logID uuid.UUID, resolution Resolution) error

	// GetPendingRetryLogs returns rows due for retry, oldest first
	GetPendingRetryLogs(ctx context.Context, entityType *EntityType, limit int) ([]SyncLog, error)

	// GetRecentFailures returns rows failed within the last given hours
	GetRecentFailures(ctx context.Context, hours int) ([]SyncLog, error)

	// CountRecentFailures counts rows that failed or dead-lettered within
	// the last given hours
	CountRecentFailures(ctx context.Context, hours int) (int64, error)

	// GetStatistics aggregates the log since the given time
	GetStatistics(ctx context.Context, since time.Time) (*Statistics, error)

	// GetDeadLetterItems returns all dead-lettered rows
	GetDeadLetterItems(ctx context.Context) ([]SyncLog, error)

	// RequeueDeadLetter reopens a dead-lettered row on operator request
	RequeueDeadLetter(ctx context.Context, logID uuid.UUID) error

	// MarkAsUnrecoverable terminally closes a row with an operator reason
	MarkAsUnrecoverable(ctx context.Context, logID uuid.UUID, reason string) error
}
