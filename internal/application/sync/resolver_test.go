package sync

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

func stockContext(sourceQty, targetQty int64, sourceAt, targetAt *time.Time) syncdomain.ConflictContext {
	return syncdomain.ConflictContext{
		EntityType:      syncdomain.EntityTypeStock,
		EntityID:        "SKU-1",
		Source:          map[string]syncdomain.FieldValue{"quantity": syncdomain.NewDecimalField(decimal.NewFromInt(sourceQty))},
		Target:          map[string]syncdomain.FieldValue{"quantity": syncdomain.NewDecimalField(decimal.NewFromInt(targetQty))},
		SourceTimestamp: sourceAt,
		TargetTimestamp: targetAt,
	}
}

func TestResolveFirstTimeCreation(t *testing.T) {
	resolver := NewConflictResolver()

	t.Run("no local value adopts ERP value", func(t *testing.T) {
		res := resolver.Resolve(syncdomain.ConflictContext{
			EntityType: syncdomain.EntityTypeStock,
			Source:     map[string]syncdomain.FieldValue{"quantity": syncdomain.NewStringField("5")},
		})
		assert.False(t, res.HadConflict)
		assert.Equal(t, syncdomain.WinnerSource, res.Winner)
		assert.Equal(t, StrategyFirstTimeCreation, res.Strategy)
	})

	t.Run("no ERP value keeps local value", func(t *testing.T) {
		res := resolver.Resolve(syncdomain.ConflictContext{
			EntityType: syncdomain.EntityTypeStock,
			Target:     map[string]syncdomain.FieldValue{"quantity": syncdomain.NewStringField("5")},
		})
		assert.False(t, res.HadConflict)
		assert.Equal(t, syncdomain.WinnerTarget, res.Winner)
	})
}

func TestResolveAgreementIsNoConflict(t *testing.T) {
	resolver := NewConflictResolver()
	now := time.Now()

	res := resolver.Resolve(stockContext(10, 10, &now, &now))

	assert.False(t, res.HadConflict)
	assert.Empty(t, res.FieldConflicts)
}

func TestResolveStockLastWriteWins(t *testing.T) {
	resolver := NewConflictResolver()
	earlier := time.Now().Add(-time.Hour)
	later := time.Now()

	t.Run("newer ERP change wins", func(t *testing.T) {
		res := resolver.Resolve(stockContext(10, 8, &later, &earlier))
		assert.True(t, res.HadConflict)
		assert.Equal(t, syncdomain.WinnerSource, res.Winner)
		assert.Equal(t, StrategyStockLastWriteWins, res.Strategy)
	})

	t.Run("newer local change wins", func(t *testing.T) {
		res := resolver.Resolve(stockContext(10, 8, &earlier, &later))
		assert.Equal(t, syncdomain.WinnerTarget, res.Winner)
	})

	t.Run("equal timestamps favour the ERP", func(t *testing.T) {
		res := resolver.Resolve(stockContext(10, 8, &earlier, &earlier))
		assert.Equal(t, syncdomain.WinnerSource, res.Winner)
	})

	t.Run("missing timestamps favour the ERP", func(t *testing.T) {
		res := resolver.Resolve(stockContext(10, 8, nil, nil))
		assert.Equal(t, syncdomain.WinnerSource, res.Winner)

		res = resolver.Resolve(stockContext(10, 8, nil, &later))
		assert.Equal(t, syncdomain.WinnerSource, res.Winner)
	})
}

func TestResolvePriceERPIsMaster(t *testing.T) {
	resolver := NewConflictResolver()
	now := time.Now()

	res := resolver.Resolve(syncdomain.ConflictContext{
		EntityType:      syncdomain.EntityTypePrice,
		EntityID:        "SKU-1",
		Source:          map[string]syncdomain.FieldValue{"price": syncdomain.NewDecimalField(decimal.NewFromFloat(19.90))},
		Target:          map[string]syncdomain.FieldValue{"price": syncdomain.NewDecimalField(decimal.NewFromFloat(24.90))},
		SourceTimestamp: &now,
		TargetTimestamp: &now,
	})

	assert.True(t, res.HadConflict)
	assert.Equal(t, syncdomain.WinnerSource, res.Winner)
	assert.Equal(t, StrategyPriceERPMaster, res.Strategy)
}

func TestResolvePushEntitiesKeepTarget(t *testing.T) {
	resolver := NewConflictResolver()

	for _, entityType := range []syncdomain.EntityType{
		syncdomain.EntityTypeOrder,
		syncdomain.EntityTypeInvoice,
		syncdomain.EntityTypeCustomer,
	} {
		t.Run(entityType.String(), func(t *testing.T) {
			res := resolver.Resolve(syncdomain.ConflictContext{
				EntityType: entityType,
				Source:     map[string]syncdomain.FieldValue{"total": syncdomain.NewStringField("100")},
				Target:     map[string]syncdomain.FieldValue{"total": syncdomain.NewStringField("120")},
			})
			assert.Equal(t, syncdomain.WinnerTarget, res.Winner)
			assert.Equal(t, StrategyPushTargetWins, res.Strategy)
		})
	}
}

func TestResolveRecordsFieldDeltas(t *testing.T) {
	resolver := NewConflictResolver()

	res := resolver.Resolve(stockContext(10, 8, nil, nil))

	require.Len(t, res.FieldConflicts, 1)
	fc := res.FieldConflicts[0]
	assert.Equal(t, "quantity", fc.Field)
	assert.True(t, decimal.NewFromInt(2).Equal(fc.Difference))
	assert.True(t, decimal.NewFromInt(25).Equal(fc.DifferencePct))
}

func TestResolveIsDeterministic(t *testing.T) {
	resolver := NewConflictResolver()
	ctx := syncdomain.ConflictContext{
		EntityType: syncdomain.EntityTypeStock,
		Source: map[string]syncdomain.FieldValue{
			"quantity": syncdomain.NewStringField("10"),
			"unit":     syncdomain.NewStringField("kg"),
			"batch":    syncdomain.NewStringField("A"),
		},
		Target: map[string]syncdomain.FieldValue{
			"quantity": syncdomain.NewStringField("8"),
			"unit":     syncdomain.NewStringField("pcs"),
			"batch":    syncdomain.NewStringField("B"),
		},
	}

	first := resolver.Resolve(ctx)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, resolver.Resolve(ctx))
	}

	// conflicting fields come out sorted by name
	require.Len(t, first.FieldConflicts, 3)
	assert.Equal(t, "batch", first.FieldConflicts[0].Field)
	assert.Equal(t, "quantity", first.FieldConflicts[1].Field)
	assert.Equal(t, "unit", first.FieldConflicts[2].Field)
}
