package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SyncState Entity
// ---------------------------------------------------------------------------

// SyncState is the durable watermark for one (entity type, direction) pair.
// At most one row exists per pair; it is updated only by the owning entity
// sync service after a cycle completes, never mid-cycle, so a crash leaves
// the watermark untouched and the next run re-covers the same window.
type SyncState struct {
	ID         uuid.UUID
	EntityType EntityType
	Direction  Direction
	// LastSyncAt is the watermark of the last successful cycle
	LastSyncAt *time.Time
	// LastSuccess is false when the most recent cycle failed
	LastSuccess bool
	// LastError holds the error text of the most recent failed cycle
	LastError string
	// ProcessedCount is the number of items handled by the last cycle
	ProcessedCount int
	// ConsecutiveFailures counts cycles failed in a row; reset on success
	ConsecutiveFailures int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewSyncState creates the watermark row for a pair
func NewSyncState(entityType EntityType, direction Direction) (*SyncState, error) {
	if !entityType.IsValid() {
		return nil, ErrInvalidEntityType
	}
	if !direction.IsValid() {
		return nil, ErrInvalidDirection
	}
	now := time.Now()
	return &SyncState{
		ID:         uuid.New(),
		EntityType: entityType,
		Direction:  direction,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// RecordSuccess advances the watermark after a successful cycle
func (s *SyncState) RecordSuccess(syncedAt time.Time, processed int) {
	s.LastSyncAt = &syncedAt
	s.LastSuccess = true
	s.LastError = ""
	s.ProcessedCount = processed
	s.ConsecutiveFailures = 0
	s.UpdatedAt = time.Now()
}

// RecordFailure marks the cycle as failed without moving the watermark
func (s *SyncState) RecordFailure(errText string) {
	s.LastSuccess = false
	s.LastError = errText
	s.ConsecutiveFailures++
	s.UpdatedAt = time.Now()
}

// Watermark returns the delta-sync starting point; zero time when the pair
// has never synced successfully
func (s *SyncState) Watermark() time.Time {
	if s.LastSyncAt == nil {
		return time.Time{}
	}
	return *s.LastSyncAt
}

// ---------------------------------------------------------------------------
// SyncStateRepository Interface
// ---------------------------------------------------------------------------

// SyncStateRepository persists sync watermarks
type SyncStateRepository interface {
	// Upsert writes the state row for its (entity type, direction) pair as a
	// single atomic operation
	Upsert(ctx context.Context, state *SyncState) error

	// Find returns the state for a pair, or ErrStateNotFound
	Find(ctx context.Context, entityType EntityType, direction Direction) (*SyncState, error)

	// FindAll returns all state rows
	FindAll(ctx context.Context) ([]SyncState, error)
}
