package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// closeCycle updates the watermark row for one (entity type, direction) pair
// after a batch completes. The watermark only advances when the cycle ran to
// the end; item-level failures stay visible in the sync log and are drained
// by the retry sweep. The update is a single upsert, so a crash mid-batch
// leaves the previous watermark untouched and the next run re-covers the
// same window.
func closeCycle(
	ctx context.Context,
	stateRepo syncdomain.SyncStateRepository,
	entityType syncdomain.EntityType,
	direction syncdomain.Direction,
	result *syncdomain.Result,
	cycleStart time.Time,
	ok bool,
	logger *zap.Logger,
) {
	state, err := stateRepo.Find(ctx, entityType, direction)
	if err != nil {
		state, err = syncdomain.NewSyncState(entityType, direction)
		if err != nil {
			logger.Error("create sync state", zap.Error(err))
			return
		}
	}

	if ok {
		state.RecordSuccess(cycleStart, result.ProcessedCount)
	} else {
		errText := "cycle aborted"
		if len(result.Errors) > 0 {
			errText = result.Errors[len(result.Errors)-1].Message
		}
		state.RecordFailure(errText)
	}

	if err := stateRepo.Upsert(ctx, state); err != nil {
		logger.Error("update sync state",
			zap.String("entity_type", entityType.String()),
			zap.String("direction", direction.String()),
			zap.Error(err),
		)
	}
}
