package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopfront/backend/internal/domain/sync"
	"github.com/shopfront/backend/internal/infrastructure/persistence/models"
)

// GormSyncLogRepository implements SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Save creates or updates a log row
func (r *GormSyncLogRepository) Save(ctx context.Context, log *sync.SyncLog) error {
	model := models.SyncLogModelFromDomain(log)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByID returns a row by id, or sync.ErrLogNotFound
func (r *GormSyncLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*sync.SyncLog, error) {
	var model models.SyncLogModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrLogNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOpenByKey returns the non-terminal row for an item key, or
// sync.ErrLogNotFound. At most one open row exists per key.
func (r *GormSyncLogRepository) FindOpenByKey(ctx context.Context, entityType sync.EntityType, direction sync.Direction, externalID, internalID string) (*sync.SyncLog, error) {
	var model models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND direction = ? AND external_id = ? AND internal_id = ?",
			entityType, direction, externalID, internalID).
		Where("status IN ?", []sync.Status{sync.StatusPending, sync.StatusInProgress, sync.StatusFailed}).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrLogNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindRetryable returns up to limit rows due for retry, oldest first.
// A row is due when it is Pending, or Failed with its backoff elapsed.
func (r *GormSyncLogRepository) FindRetryable(ctx context.Context, entityType *sync.EntityType, now time.Time, limit int) ([]sync.SyncLog, error) {
	query := r.db.WithContext(ctx).
		Where("retryable = ?", true).
		Where(
			r.db.Where("status = ?", sync.StatusPending).
				Or("status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)", sync.StatusFailed, now),
		)

	if entityType != nil {
		query = query.Where("entity_type = ?", *entityType)
	}

	var logModels []models.SyncLogModel
	if err := query.
		Order("updated_at ASC").
		Limit(limit).
		Find(&logModels).Error; err != nil {
		return nil, err
	}
	return toDomainLogs(logModels), nil
}

// FindDeadLetters returns all dead-lettered rows, oldest first
func (r *GormSyncLogRepository) FindDeadLetters(ctx context.Context) ([]sync.SyncLog, error) {
	var logModels []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", sync.StatusDeadLetter).
		Order("updated_at ASC").
		Find(&logModels).Error; err != nil {
		return nil, err
	}
	return toDomainLogs(logModels), nil
}

// FindAll lists rows matching the filter
func (r *GormSyncLogRepository) FindAll(ctx context.Context, filter sync.LogFilter) ([]sync.SyncLog, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.SyncLogModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply pagination
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var logModels []models.SyncLogModel
	if err := query.Order("updated_at DESC").Find(&logModels).Error; err != nil {
		return nil, 0, err
	}
	return toDomainLogs(logModels), total, nil
}

// CountFailuresSince counts rows that failed or dead-lettered since t
func (r *GormSyncLogRepository) CountFailuresSince(ctx context.Context, t time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SyncLogModel{}).
		Where("status IN ?", []sync.Status{sync.StatusFailed, sync.StatusDeadLetter}).
		Where("updated_at >= ?", t).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Statistics aggregates the log since t
func (r *GormSyncLogRepository) Statistics(ctx context.Context, t time.Time) (*sync.Statistics, error) {
	stats := &sync.Statistics{
		ByEntityType: make(map[sync.EntityType]int64),
		ByDirection:  make(map[sync.Direction]int64),
	}

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&models.SyncLogModel{}).
			Where("updated_at >= ?", t)
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", sync.StatusCompleted).Count(&stats.Completed).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", sync.StatusFailed).Count(&stats.Failed).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", sync.StatusDeadLetter).Count(&stats.DeadLetter).Error; err != nil {
		return nil, err
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.Total)
	}

	type groupCount struct {
		Key   string
		Count int64
	}

	var byType []groupCount
	if err := base().
		Select("entity_type AS key, COUNT(*) AS count").
		Group("entity_type").
		Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, g := range byType {
		stats.ByEntityType[sync.EntityType(g.Key)] = g.Count
	}

	var byDirection []groupCount
	if err := base().
		Select("direction AS key, COUNT(*) AS count").
		Group("direction").
		Scan(&byDirection).Error; err != nil {
		return nil, err
	}
	for _, g := range byDirection {
		stats.ByDirection[sync.Direction(g.Key)] = g.Count
	}

	return stats, nil
}

// applyFilter applies filter options to the query
func (r *GormSyncLogRepository) applyFilter(query *gorm.DB, filter sync.LogFilter) *gorm.DB {
	if filter.EntityType != nil && filter.EntityType.IsValid() {
		query = query.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.Direction != nil && filter.Direction.IsValid() {
		query = query.Where("direction = ?", *filter.Direction)
	}
	if filter.Status != nil && filter.Status.IsValid() {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Since != nil {
		query = query.Where("updated_at >= ?", *filter.Since)
	}
	return query
}

func toDomainLogs(logModels []models.SyncLogModel) []sync.SyncLog {
	logs := make([]sync.SyncLog, len(logModels))
	for i, model := range logModels {
		logs[i] = *model.ToDomain()
	}
	return logs
}

// Ensure GormSyncLogRepository implements SyncLogRepository
var _ sync.SyncLogRepository = (*GormSyncLogRepository)(nil)
