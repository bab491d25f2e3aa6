package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopfront/backend/internal/domain/sync"
	"github.com/shopfront/backend/internal/infrastructure/persistence/models"
)

// GormExternalMappingRepository implements ExternalMappingRepository using GORM
type GormExternalMappingRepository struct {
	db *gorm.DB
}

// NewGormExternalMappingRepository creates a new GormExternalMappingRepository
func NewGormExternalMappingRepository(db *gorm.DB) *GormExternalMappingRepository {
	return &GormExternalMappingRepository{db: db}
}

// Save creates or updates a mapping
func (r *GormExternalMappingRepository) Save(ctx context.Context, mapping *sync.ExternalMapping) error {
	model := models.ExternalMappingModelFromDomain(mapping)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByInternalID returns the mapping for a storefront key, or sync.ErrMappingNotFound
func (r *GormExternalMappingRepository) FindByInternalID(ctx context.Context, entityType sync.EntityType, internalID string) (*sync.ExternalMapping, error) {
	var model models.ExternalMappingModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND internal_id = ?", entityType, internalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalCode returns the mapping for an ERP key, or sync.ErrMappingNotFound
func (r *GormExternalMappingRepository) FindByExternalCode(ctx context.Context, entityType sync.EntityType, externalCode string) (*sync.ExternalMapping, error) {
	var model models.ExternalMappingModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND external_code = ?", entityType, externalCode).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Exists checks whether a mapping exists for a storefront key
func (r *GormExternalMappingRepository) Exists(ctx context.Context, entityType sync.EntityType, internalID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ExternalMappingModel{}).
		Where("entity_type = ? AND internal_id = ?", entityType, internalID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Delete removes a mapping
func (r *GormExternalMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&models.ExternalMappingModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sync.ErrMappingNotFound
	}
	return nil
}

// Ensure GormExternalMappingRepository implements ExternalMappingRepository
var _ sync.ExternalMappingRepository = (*GormExternalMappingRepository)(nil)
