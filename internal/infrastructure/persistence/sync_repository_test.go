package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shopfront/backend/internal/domain/sync"
)

// setupSyncTestDB creates an in-memory SQLite database for testing
func setupSyncTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.Exec(`
		CREATE TABLE sync_states (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			direction TEXT NOT NULL,
			last_sync_at DATETIME,
			last_success INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			processed_count INTEGER NOT NULL DEFAULT 0,
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(entity_type, direction)
		)
	`).Error
	require.NoError(t, err)

	err = db.Exec(`
		CREATE TABLE sync_logs (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			direction TEXT NOT NULL,
			external_id TEXT NOT NULL,
			internal_id TEXT NOT NULL,
			status TEXT NOT NULL,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			retryable INTEGER NOT NULL DEFAULT 1,
			last_error TEXT,
			next_retry_at DATETIME,
			last_attempt_at DATETIME NOT NULL,
			message TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error
	require.NoError(t, err)

	err = db.Exec(`
		CREATE TABLE external_mappings (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			internal_id TEXT NOT NULL,
			external_code TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(entity_type, internal_id)
		)
	`).Error
	require.NoError(t, err)

	return db
}

// ---------------------------------------------------------------------------
// SyncStateRepository
// ---------------------------------------------------------------------------

func TestGormSyncStateRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("find returns ErrStateNotFound for missing pair", func(t *testing.T) {
		repo := NewGormSyncStateRepository(setupSyncTestDB(t))

		_, err := repo.Find(ctx, sync.EntityTypeStock, sync.DirectionFromERP)
		assert.ErrorIs(t, err, sync.ErrStateNotFound)
	})

	t.Run("upsert then find round-trips", func(t *testing.T) {
		repo := NewGormSyncStateRepository(setupSyncTestDB(t))

		state, err := sync.NewSyncState(sync.EntityTypeStock, sync.DirectionFromERP)
		require.NoError(t, err)
		state.RecordSuccess(time.Now(), 42)

		require.NoError(t, repo.Upsert(ctx, state))

		found, err := repo.Find(ctx, sync.EntityTypeStock, sync.DirectionFromERP)
		require.NoError(t, err)
		assert.Equal(t, state.ID, found.ID)
		assert.True(t, found.LastSuccess)
		assert.Equal(t, 42, found.ProcessedCount)
		assert.NotNil(t, found.LastSyncAt)
	})

	t.Run("second upsert for same pair updates instead of inserting", func(t *testing.T) {
		repo := NewGormSyncStateRepository(setupSyncTestDB(t))

		first, err := sync.NewSyncState(sync.EntityTypePrice, sync.DirectionFromERP)
		require.NoError(t, err)
		first.RecordSuccess(time.Now(), 10)
		require.NoError(t, repo.Upsert(ctx, first))

		second, err := sync.NewSyncState(sync.EntityTypePrice, sync.DirectionFromERP)
		require.NoError(t, err)
		second.RecordFailure("erp unreachable")
		require.NoError(t, repo.Upsert(ctx, second))

		states, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, states, 1)
		assert.False(t, states[0].LastSuccess)
		assert.Equal(t, "erp unreachable", states[0].LastError)
	})

	t.Run("find all returns every pair", func(t *testing.T) {
		repo := NewGormSyncStateRepository(setupSyncTestDB(t))

		for _, et := range []sync.EntityType{sync.EntityTypeStock, sync.EntityTypePrice} {
			state, err := sync.NewSyncState(et, sync.DirectionFromERP)
			require.NoError(t, err)
			require.NoError(t, repo.Upsert(ctx, state))
		}

		states, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, states, 2)
	})
}

// ---------------------------------------------------------------------------
// SyncLogRepository
// ---------------------------------------------------------------------------

func newTestLog(t *testing.T, entityType sync.EntityType, externalID string) *sync.SyncLog {
	t.Helper()
	log, err := sync.NewSyncLog(entityType, sync.DirectionFromERP, externalID, "")
	require.NoError(t, err)
	return log
}

func TestGormSyncLogRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("save and find by id", func(t *testing.T) {
		repo := NewGormSyncLogRepository(setupSyncTestDB(t))

		log := newTestLog(t, sync.EntityTypeStock, "SKU-1")
		require.NoError(t, repo.Save(ctx, log))

		found, err := repo.FindByID(ctx, log.ID)
		require.NoError(t, err)
		assert.Equal(t, log.ExternalID, found.ExternalID)
		assert.Equal(t, sync.StatusPending, found.Status)
	})

	t.Run("find by id returns ErrLogNotFound for missing row", func(t *testing.T) {
		repo := NewGormSyncLogRepository(setupSyncTestDB(t))

		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, sync.ErrLogNotFound)
	})

	t.Run("find open by key skips terminal rows", func(t *testing.T) {
		repo := NewGormSyncLogRepository(setupSyncTestDB(t))

		done := newTestLog(t, sync.EntityTypeStock, "SKU-2")
		require.NoError(t, done.Begin())
		require.NoError(t, done.Complete("synced"))
		require.NoError(t, repo.Save(ctx, done))

		_, err := repo.FindOpenByKey(ctx, sync.EntityTypeStock, sync.DirectionFromERP, "SKU-2", "")
		assert.ErrorIs(t, err, sync.ErrLogNotFound)

		open := newTestLog(t, sync.EntityTypeStock, "SKU-2")
		require.NoError(t, repo.Save(ctx, open))

		found, err := repo.FindOpenByKey(ctx, sync.EntityTypeStock, sync.DirectionFromERP, "SKU-2", "")
		require.NoError(t, err)
		assert.Equal(t, open.ID, found.ID)
	})

	t.Run("find retryable honours backoff and entity filter", func(t *testing.T) {
		repo := NewGormSyncLogRepository(setupSyncTestDB(t))
		now := time.Now()

		due := newTestLog(t, sync.EntityTypeStock, "SKU-DUE")
		require.NoError(t, due.Begin())
		past := now.Add(-time.Minute)
		require.NoError(t, due.Fail("timeout", sync.FailureTransient, &past))
		require.NoError(t, repo.Save(ctx, due))

		notYet := newTestLog(t, sync.EntityTypeStock, "SKU-WAIT")
		require.NoError(t, notYet.Begin())
		future := now.Add(time.Hour)
		require.NoError(t, notYet.Fail("timeout", sync.FailureTransient, &future))
		require.NoError(t, repo.Save(ctx, notYet))

		otherType := newTestLog(t, sync.EntityTypePrice, "SKU-PRICE")
		require.NoError(t, repo.Save(ctx, otherType))

		et := sync.EntityTypeStock
		logs, err := repo.FindRetryable(ctx, &et, now, 10)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "SKU-DUE", logs[0].ExternalID)

		all, err := repo.FindRetryable(ctx, nil, now, 10)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("non-retryable failures are excluded from the sweep", func(t *testing.T) {
		repo := NewGormSyncLogRepository(setupSyncTestDB(t))

		log := newTestLog(t, sync.EntityTypeOrder, "ORD-1")
		require.NoError(t, log.Begin())
		require.NoError(t, log.Fail("missing SKU", sync.FailureValidation, nil))
		require.NoError(t, repo.Save(ctx, log))

		logs, err := repo.FindRetryable(ctx, nil, time.Now(), 10)
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	t.Run("find dead letters", func(t *testing.T) {
		repo := NewGormSyncLogRepository(setupSyncTestDB(t))

		log := newTestLog(t, sync.EntityTypeInvoice, "INV-1")
		require.NoError(t, log.Begin())
		require.NoError(t, log.Fail("rejected by ERP", sync.FailureHardRejection, nil))
		require.NoError(t, repo.Save(ctx, log))

		deadLetters, err := repo.FindDeadLetters(ctx)
		require.NoError(t, err)
		require.Len(t, deadLetters, 1)
		assert.Equal(t, sync.StatusDeadLetter, deadLetters[0].Status)
	})

	t.Run("find all with filter and pagination", func(t *testing.T) {
		repo := NewGormSyncLogRepository(setupSyncTestDB(t))

		for i := 0; i < 3; i++ {
			log := newTestLog(t, sync.EntityTypeStock, "SKU-A")
			require.NoError(t, log.Begin())
			require.NoError(t, log.Complete("ok"))
			require.NoError(t, repo.Save(ctx, log))
		}
		pending := newTestLog(t, sync.EntityTypePrice, "SKU-B")
		require.NoError(t, repo.Save(ctx, pending))

		status := sync.StatusCompleted
		logs, total, err := repo.FindAll(ctx, sync.LogFilter{
			Status:   &status,
			Page:     1,
			PageSize: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, logs, 2)
	})

	t.Run("statistics aggregates by status, type and direction", func(t *testing.T) {
		repo := NewGormSyncLogRepository(setupSyncTestDB(t))

		ok := newTestLog(t, sync.EntityTypeStock, "SKU-OK")
		require.NoError(t, ok.Begin())
		require.NoError(t, ok.Complete("ok"))
		require.NoError(t, repo.Save(ctx, ok))

		bad := newTestLog(t, sync.EntityTypePrice, "SKU-BAD")
		require.NoError(t, bad.Begin())
		require.NoError(t, bad.Fail("boom", sync.FailureTransient, nil))
		require.NoError(t, repo.Save(ctx, bad))

		stats, err := repo.Statistics(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.Total)
		assert.Equal(t, int64(1), stats.Completed)
		assert.Equal(t, int64(1), stats.Failed)
		assert.InDelta(t, 0.5, stats.SuccessRate, 0.001)
		assert.Equal(t, int64(1), stats.ByEntityType[sync.EntityTypeStock])
		assert.Equal(t, int64(2), stats.ByDirection[sync.DirectionFromERP])
	})

	t.Run("count failures since", func(t *testing.T) {
		repo := NewGormSyncLogRepository(setupSyncTestDB(t))

		bad := newTestLog(t, sync.EntityTypeOrder, "ORD-2")
		require.NoError(t, bad.Begin())
		require.NoError(t, bad.Fail("boom", sync.FailureTransient, nil))
		require.NoError(t, repo.Save(ctx, bad))

		count, err := repo.CountFailuresSince(ctx, time.Now().Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

// ---------------------------------------------------------------------------
// ExternalMappingRepository
// ---------------------------------------------------------------------------

func TestGormExternalMappingRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("save and look up both directions", func(t *testing.T) {
		repo := NewGormExternalMappingRepository(setupSyncTestDB(t))

		orderID := uuid.New().String()
		mapping, err := sync.NewExternalMapping(sync.EntityTypeOrder, orderID, "ERP-ORD-77")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, mapping))

		byInternal, err := repo.FindByInternalID(ctx, sync.EntityTypeOrder, orderID)
		require.NoError(t, err)
		assert.Equal(t, "ERP-ORD-77", byInternal.ExternalCode)

		byExternal, err := repo.FindByExternalCode(ctx, sync.EntityTypeOrder, "ERP-ORD-77")
		require.NoError(t, err)
		assert.Equal(t, orderID, byExternal.InternalID)
	})

	t.Run("missing mapping returns ErrMappingNotFound", func(t *testing.T) {
		repo := NewGormExternalMappingRepository(setupSyncTestDB(t))

		_, err := repo.FindByInternalID(ctx, sync.EntityTypeOrder, uuid.New().String())
		assert.ErrorIs(t, err, sync.ErrMappingNotFound)
	})

	t.Run("exists", func(t *testing.T) {
		repo := NewGormExternalMappingRepository(setupSyncTestDB(t))

		userID := uuid.New().String()
		mapping, err := sync.NewExternalMapping(sync.EntityTypeCustomer, userID, "CARI0000000042")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, mapping))

		exists, err := repo.Exists(ctx, sync.EntityTypeCustomer, userID)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.Exists(ctx, sync.EntityTypeCustomer, uuid.New().String())
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("delete", func(t *testing.T) {
		repo := NewGormExternalMappingRepository(setupSyncTestDB(t))

		mapping, err := sync.NewExternalMapping(sync.EntityTypeInvoice, uuid.New().String(), "ERP-INV-1")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, mapping))

		require.NoError(t, repo.Delete(ctx, mapping.ID))
		assert.ErrorIs(t, repo.Delete(ctx, mapping.ID), sync.ErrMappingNotFound)
	})
}
