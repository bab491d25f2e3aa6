package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// ExternalMapping Entity
// ---------------------------------------------------------------------------

// ExternalMapping links a storefront identifier to its ERP-side code.
// Pushed orders, issued invoices and ledger accounts each persist a mapping;
// its existence is what makes pushes idempotent across retries and crashed
// batches.
type ExternalMapping struct {
	ID         uuid.UUID
	EntityType EntityType
	// InternalID is the storefront key (uuid string or SKU)
	InternalID string
	// ExternalCode is the ERP key (account code, order ref, invoice ref)
	ExternalCode string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewExternalMapping creates a mapping
func NewExternalMapping(entityType EntityType, internalID, externalCode string) (*ExternalMapping, error) {
	if !entityType.IsValid() {
		return nil, ErrInvalidEntityType
	}
	if internalID == "" || externalCode == "" {
		return nil, ErrValidation
	}
	now := time.Now()
	return &ExternalMapping{
		ID:           uuid.New(),
		EntityType:   entityType,
		InternalID:   internalID,
		ExternalCode: externalCode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ---------------------------------------------------------------------------
// ExternalMappingRepository Interface
// ---------------------------------------------------------------------------

// ExternalMappingRepository persists external to internal key links
type ExternalMappingRepository interface {
	// Save creates or updates a mapping; (entity type, internal id) is unique
	Save(ctx context.Context, mapping *ExternalMapping) error

	// FindByInternalID returns the mapping for a storefront key, or
	// ErrMappingNotFound
	FindByInternalID(ctx context.Context, entityType EntityType, internalID string) (*ExternalMapping, error)

	// FindByExternalCode returns the mapping for an ERP key, or
	// ErrMappingNotFound
	FindByExternalCode(ctx context.Context, entityType EntityType, externalCode string) (*ExternalMapping, error)

	// Exists reports whether a storefront key is already mapped
	Exists(ctx context.Context, entityType EntityType, internalID string) (bool, error)

	// Delete removes a mapping
	Delete(ctx context.Context, id uuid.UUID) error
}
