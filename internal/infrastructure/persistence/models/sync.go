package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/shopfront/backend/internal/domain/sync"
)

// SyncStateModel is the persistence model for the SyncState domain entity.
type SyncStateModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key"`
	EntityType          sync.EntityType `gorm:"type:varchar(20);not null;uniqueIndex:idx_sync_state_entity_direction,priority:1"`
	Direction           sync.Direction  `gorm:"type:varchar(10);not null;uniqueIndex:idx_sync_state_entity_direction,priority:2"`
	LastSyncAt          *time.Time
	LastSuccess         bool      `gorm:"not null;default:false"`
	LastError           string    `gorm:"type:text"`
	ProcessedCount      int       `gorm:"not null;default:0"`
	ConsecutiveFailures int       `gorm:"not null;default:0"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncStateModel) TableName() string {
	return "sync_states"
}

// ToDomain converts the persistence model to a domain SyncState entity.
func (m *SyncStateModel) ToDomain() *sync.SyncState {
	return &sync.SyncState{
		ID:                  m.ID,
		EntityType:          m.EntityType,
		Direction:           m.Direction,
		LastSyncAt:          m.LastSyncAt,
		LastSuccess:         m.LastSuccess,
		LastError:           m.LastError,
		ProcessedCount:      m.ProcessedCount,
		ConsecutiveFailures: m.ConsecutiveFailures,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncState entity.
func (m *SyncStateModel) FromDomain(s *sync.SyncState) {
	m.ID = s.ID
	m.EntityType = s.EntityType
	m.Direction = s.Direction
	m.LastSyncAt = s.LastSyncAt
	m.LastSuccess = s.LastSuccess
	m.LastError = s.LastError
	m.ProcessedCount = s.ProcessedCount
	m.ConsecutiveFailures = s.ConsecutiveFailures
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
}

// SyncStateModelFromDomain creates a new persistence model from a domain SyncState entity.
func SyncStateModelFromDomain(s *sync.SyncState) *SyncStateModel {
	m := &SyncStateModel{}
	m.FromDomain(s)
	return m
}

// SyncLogModel is the persistence model for the SyncLog domain entity.
type SyncLogModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	EntityType    sync.EntityType `gorm:"type:varchar(20);not null;index:idx_sync_log_key,priority:1"`
	Direction     sync.Direction  `gorm:"type:varchar(10);not null;index:idx_sync_log_key,priority:2"`
	ExternalID    string          `gorm:"type:varchar(100);not null;index:idx_sync_log_key,priority:3"`
	InternalID    string          `gorm:"type:varchar(100);not null;index:idx_sync_log_key,priority:4"`
	Status        sync.Status     `gorm:"type:varchar(20);not null;index:idx_sync_log_status"`
	AttemptCount  int             `gorm:"not null;default:0"`
	Retryable     bool            `gorm:"not null;default:true"`
	LastError     string          `gorm:"type:text"`
	NextRetryAt   *time.Time      `gorm:"index:idx_sync_log_next_retry"`
	LastAttemptAt time.Time       `gorm:"not null"`
	Message       string          `gorm:"type:text"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLog entity.
func (m *SyncLogModel) ToDomain() *sync.SyncLog {
	return &sync.SyncLog{
		ID:            m.ID,
		EntityType:    m.EntityType,
		Direction:     m.Direction,
		ExternalID:    m.ExternalID,
		InternalID:    m.InternalID,
		Status:        m.Status,
		AttemptCount:  m.AttemptCount,
		Retryable:     m.Retryable,
		LastError:     m.LastError,
		NextRetryAt:   m.NextRetryAt,
		LastAttemptAt: m.LastAttemptAt,
		Message:       m.Message,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncLog entity.
func (m *SyncLogModel) FromDomain(l *sync.SyncLog) {
	m.ID = l.ID
	m.EntityType = l.EntityType
	m.Direction = l.Direction
	m.ExternalID = l.ExternalID
	m.InternalID = l.InternalID
	m.Status = l.Status
	m.AttemptCount = l.AttemptCount
	m.Retryable = l.Retryable
	m.LastError = l.LastError
	m.NextRetryAt = l.NextRetryAt
	m.LastAttemptAt = l.LastAttemptAt
	m.Message = l.Message
	m.CreatedAt = l.CreatedAt
	m.UpdatedAt = l.UpdatedAt
}

// SyncLogModelFromDomain creates a new persistence model from a domain SyncLog entity.
func SyncLogModelFromDomain(l *sync.SyncLog) *SyncLogModel {
	m := &SyncLogModel{}
	m.FromDomain(l)
	return m
}

// ExternalMappingModel is the persistence model for the ExternalMapping domain entity.
type ExternalMappingModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	EntityType   sync.EntityType `gorm:"type:varchar(20);not null;uniqueIndex:idx_external_mapping_internal,priority:1;index:idx_external_mapping_external,priority:1"`
	InternalID   string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_external_mapping_internal,priority:2"`
	ExternalCode string          `gorm:"type:varchar(100);not null;index:idx_external_mapping_external,priority:2"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ExternalMappingModel) TableName() string {
	return "external_mappings"
}

// ToDomain converts the persistence model to a domain ExternalMapping entity.
func (m *ExternalMappingModel) ToDomain() *sync.ExternalMapping {
	return &sync.ExternalMapping{
		ID:           m.ID,
		EntityType:   m.EntityType,
		InternalID:   m.InternalID,
		ExternalCode: m.ExternalCode,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain ExternalMapping entity.
func (m *ExternalMappingModel) FromDomain(em *sync.ExternalMapping) {
	m.ID = em.ID
	m.EntityType = em.EntityType
	m.InternalID = em.InternalID
	m.ExternalCode = em.ExternalCode
	m.CreatedAt = em.CreatedAt
	m.UpdatedAt = em.UpdatedAt
}

// ExternalMappingModelFromDomain creates a new persistence model from a domain ExternalMapping entity.
func ExternalMappingModelFromDomain(em *sync.ExternalMapping) *ExternalMappingModel {
	m := &ExternalMappingModel{}
	m.FromDomain(em)
	return m
}
