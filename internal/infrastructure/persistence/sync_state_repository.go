package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shopfront/backend/internal/domain/sync"
	"github.com/shopfront/backend/internal/infrastructure/persistence/models"
)

// GormSyncStateRepository implements SyncStateRepository using GORM
type GormSyncStateRepository struct {
	db *gorm.DB
}

// NewGormSyncStateRepository creates a new GormSyncStateRepository
func NewGormSyncStateRepository(db *gorm.DB) *GormSyncStateRepository {
	return &GormSyncStateRepository{db: db}
}

// Upsert writes the state row for its (entity type, direction) pair. The
// unique index keeps concurrent writers from creating a second row for the
// same pair.
func (r *GormSyncStateRepository) Upsert(ctx context.Context, state *sync.SyncState) error {
	model := models.SyncStateModelFromDomain(state)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "entity_type"}, {Name: "direction"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"last_sync_at", "last_success", "last_error",
				"processed_count", "consecutive_failures", "updated_at",
			}),
		}).
		Create(model).Error
}

// Find returns the state row for a pair, or sync.ErrStateNotFound
func (r *GormSyncStateRepository) Find(ctx context.Context, entityType sync.EntityType, direction sync.Direction) (*sync.SyncState, error) {
	var model models.SyncStateModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND direction = ?", entityType, direction).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrStateNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every state row
func (r *GormSyncStateRepository) FindAll(ctx context.Context) ([]sync.SyncState, error) {
	var stateModels []models.SyncStateModel
	if err := r.db.WithContext(ctx).
		Order("entity_type ASC, direction ASC").
		Find(&stateModels).Error; err != nil {
		return nil, err
	}

	states := make([]sync.SyncState, len(stateModels))
	for i, model := range stateModels {
		states[i] = *model.ToDomain()
	}
	return states, nil
}

// Ensure GormSyncStateRepository implements SyncStateRepository
var _ sync.SyncStateRepository = (*GormSyncStateRepository)(nil)
