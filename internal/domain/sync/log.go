package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SyncLog Entity
// ---------------------------------------------------------------------------

// SyncLog is the audit row for synchronization attempts on a single entity
// instance in one direction. Attempts on the same row are monotonically
// increasing in AttemptCount. Transitions only move forward except
// Failed -> Pending (retry), Pending/Failed -> DeadLetter (exhaustion or
// hard rejection), and InProgress -> InProgress (takeover of an attempt a
// crashed run never closed).
type SyncLog struct {
	ID         uuid.UUID
	EntityType EntityType
	Direction  Direction
	// ExternalID is the ERP-side key (SKU, account code, order ref)
	ExternalID string
	// InternalID is the storefront-side key
	InternalID   string
	Status       Status
	AttemptCount int
	// Retryable is false once the item failed with a non-transient error
	Retryable bool
	LastError string
	// NextRetryAt is when the retry sweep may pick the item up again
	NextRetryAt   *time.Time
	LastAttemptAt time.Time
	// Message carries free text, including persisted conflict detail
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSyncLog opens a log row for the first attempt on an item
func NewSyncLog(entityType EntityType, direction Direction, externalID, internalID string) (*SyncLog, error) {
	if !entityType.IsValid() {
		return nil, ErrInvalidEntityType
	}
	if !direction.IsValid() {
		return nil, ErrInvalidDirection
	}
	now := time.Now()
	return &SyncLog{
		ID:            uuid.New(),
		EntityType:    entityType,
		Direction:     direction,
		ExternalID:    externalID,
		InternalID:    internalID,
		Status:        StatusPending,
		AttemptCount:  0,
		Retryable:     true,
		LastAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Begin marks the start of an attempt. An InProgress row is taken over:
// live attempts are serialized per key by the guard, so an InProgress row
// with a new attempt arriving is a leftover from a crashed run.
func (l *SyncLog) Begin() error {
	if l.Status == StatusCompleted || l.Status == StatusDeadLetter {
		return ErrInvalidTransition
	}
	now := time.Now()
	l.Status = StatusInProgress
	l.AttemptCount++
	l.LastAttemptAt = now
	l.NextRetryAt = nil
	l.UpdatedAt = now
	return nil
}

// Complete closes the attempt successfully
func (l *SyncLog) Complete(message string) error {
	if l.Status != StatusInProgress {
		return ErrInvalidTransition
	}
	l.Status = StatusCompleted
	l.LastError = ""
	if message != "" {
		l.appendMessage(message)
	}
	l.UpdatedAt = time.Now()
	return nil
}

// Fail closes the attempt with an error. Hard rejections go straight to the
// dead letter; other failure classes stay Failed, with Retryable deciding
// whether the retry sweep may pick the item up again.
func (l *SyncLog) Fail(errText string, class FailureClass, nextRetryAt *time.Time) error {
	if l.Status != StatusInProgress && l.Status != StatusPending {
		return ErrInvalidTransition
	}
	now := time.Now()
	if l.Status == StatusPending {
		// an attempt that errored before it could begin still counts
		// against the retry budget
		l.AttemptCount++
		l.LastAttemptAt = now
	}
	l.LastError = errText
	l.UpdatedAt = now
	if class == FailureHardRejection {
		l.Status = StatusDeadLetter
		l.Retryable = false
		l.NextRetryAt = nil
		return nil
	}
	l.Status = StatusFailed
	l.Retryable = class.Retryable()
	if l.Retryable {
		l.NextRetryAt = nextRetryAt
	} else {
		l.NextRetryAt = nil
	}
	return nil
}

// Reopen transitions Failed back to Pending for a retry attempt
func (l *SyncLog) Reopen() error {
	if l.Status != StatusFailed || !l.Retryable {
		return ErrInvalidTransition
	}
	l.Status = StatusPending
	l.NextRetryAt = nil
	l.UpdatedAt = time.Now()
	return nil
}

// PromoteToDeadLetter terminally closes an exhausted or unrecoverable item
func (l *SyncLog) PromoteToDeadLetter(reason string) error {
	if l.Status != StatusPending && l.Status != StatusFailed {
		return ErrInvalidTransition
	}
	l.Status = StatusDeadLetter
	l.Retryable = false
	l.NextRetryAt = nil
	if reason != "" {
		l.appendMessage(reason)
	}
	l.UpdatedAt = time.Now()
	return nil
}

// Requeue reopens a dead-lettered item on operator request
func (l *SyncLog) Requeue() error {
	if l.Status != StatusDeadLetter {
		return ErrInvalidTransition
	}
	l.Status = StatusPending
	l.Retryable = true
	l.NextRetryAt = nil
	l.UpdatedAt = time.Now()
	return nil
}

// AppendDetail persists audit text (conflict detail, operator notes) on the log row
func (l *SyncLog) AppendDetail(detail string) {
	l.appendMessage(detail)
	l.UpdatedAt = time.Now()
}

func (l *SyncLog) appendMessage(msg string) {
	if l.Message == "" {
		l.Message = msg
		return
	}
	l.Message = l.Message + "\n" + msg
}

// DueForRetry reports whether the retry sweep should pick the item up
func (l *SyncLog) DueForRetry(now time.Time) bool {
	if l.Status == StatusPending {
		return true
	}
	if l.Status != StatusFailed || !l.Retryable {
		return false
	}
	return l.NextRetryAt == nil || !now.Before(*l.NextRetryAt)
}

// ---------------------------------------------------------------------------
// Queries and Statistics
// ---------------------------------------------------------------------------

// LogFilter defines filter criteria for listing sync logs
type LogFilter struct {
	EntityType *EntityType
	Direction  *Direction
	Status     *Status
	Since      *time.Time
	Page       int
	PageSize   int
}

// Statistics is the aggregate view over the log since a point in time
type Statistics struct {
	Total       int64
	Completed   int64
	Failed      int64
	DeadLetter  int64
	SuccessRate float64
	// ByEntityType counts rows per entity type
	ByEntityType map[EntityType]int64
	// ByDirection counts rows per direction
	ByDirection map[Direction]int64
}

// ---------------------------------------------------------------------------
// SyncLogRepository Interface
// ---------------------------------------------------------------------------

// SyncLogRepository persists sync log rows
type SyncLogRepository interface {
	// Save creates or updates a log row
	Save(ctx context.Context, log *SyncLog) error

	// FindByID returns a row by id, or ErrLogNotFound
	FindByID(ctx context.Context, id uuid.UUID) (*SyncLog, error)

	// FindOpenByKey returns the non-terminal row for an item key, or
	// ErrLogNotFound. At most one open row exists per key.
	FindOpenByKey(ctx context.Context, entityType EntityType, direction Direction, externalID, internalID string) (*SyncLog, error)

	// FindRetryable returns up to limit rows due for retry, oldest first.
	// entityType narrows the scan when non-nil.
	FindRetryable(ctx context.Context, entityType *EntityType, now time.Time, limit int) ([]SyncLog, error)

	// FindDeadLetters returns all dead-lettered rows, oldest first
	FindDeadLetters(ctx context.Context) ([]SyncLog, error)

	// FindAll lists rows matching the filter
	FindAll(ctx context.Context, filter LogFilter) ([]SyncLog, int64, error)

	// CountFailuresSince counts rows that failed or dead-lettered since t
	CountFailuresSince(ctx context.Context, t time.Time) (int64, error)

	// Statistics aggregates the log since t
	Statistics(ctx context.Context, t time.Time) (*Statistics, error)
}
