package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExternalMapping(t *testing.T) {
	m, err := NewExternalMapping(EntityTypeCustomer, "b2f1c7de", "120.01.0042")
	require.NoError(t, err)

	assert.Equal(t, EntityTypeCustomer, m.EntityType)
	assert.Equal(t, "b2f1c7de", m.InternalID)
	assert.Equal(t, "120.01.0042", m.ExternalCode)
	assert.False(t, m.CreatedAt.IsZero())
}

func TestNewExternalMappingValidation(t *testing.T) {
	_, err := NewExternalMapping("WAREHOUSE", "a", "b")
	assert.ErrorIs(t, err, ErrInvalidEntityType)

	_, err = NewExternalMapping(EntityTypeOrder, "", "b")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewExternalMapping(EntityTypeOrder, "a", "")
	assert.ErrorIs(t, err, ErrValidation)
}
