package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) *SyncLog {
	t.Helper()
	log, err := NewSyncLog(EntityTypeStock, DirectionFromERP, "SKU-1", "prod-1")
	require.NoError(t, err)
	return log
}

func TestNewSyncLog(t *testing.T) {
	log := newTestLog(t)

	assert.Equal(t, StatusPending, log.Status)
	assert.Equal(t, 0, log.AttemptCount)
	assert.True(t, log.Retryable)
	assert.NotEqual(t, log.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestNewSyncLogValidation(t *testing.T) {
	_, err := NewSyncLog("WAREHOUSE", DirectionFromERP, "a", "b")
	assert.ErrorIs(t, err, ErrInvalidEntityType)

	_, err = NewSyncLog(EntityTypeStock, "SIDEWAYS", "a", "b")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestSyncLogBegin(t *testing.T) {
	log := newTestLog(t)

	require.NoError(t, log.Begin())
	assert.Equal(t, StatusInProgress, log.Status)
	assert.Equal(t, 1, log.AttemptCount)
}

func TestSyncLogBeginTakesOverAbandonedAttempt(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.Begin())

	// an attempt that never reached Complete or Fail does not wedge the row
	require.NoError(t, log.Begin())
	assert.Equal(t, StatusInProgress, log.Status)
	assert.Equal(t, 2, log.AttemptCount)
}

func TestSyncLogComplete(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.Begin())

	require.NoError(t, log.Complete("applied quantity 42"))
	assert.Equal(t, StatusCompleted, log.Status)
	assert.Empty(t, log.LastError)
	assert.Contains(t, log.Message, "applied quantity 42")

	assert.ErrorIs(t, log.Begin(), ErrInvalidTransition)
}

func TestSyncLogFailTransient(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.Begin())

	retryAt := time.Now().Add(time.Minute)
	require.NoError(t, log.Fail("connection refused", FailureTransient, &retryAt))

	assert.Equal(t, StatusFailed, log.Status)
	assert.True(t, log.Retryable)
	require.NotNil(t, log.NextRetryAt)
	assert.Equal(t, retryAt, *log.NextRetryAt)
	assert.Equal(t, "connection refused", log.LastError)

	// a failed item can start the next attempt
	require.NoError(t, log.Begin())
	assert.Equal(t, 2, log.AttemptCount)
	assert.Nil(t, log.NextRetryAt)
}

func TestSyncLogFailBeforeBeginCountsAttempt(t *testing.T) {
	log := newTestLog(t)

	// an attempt that errored before Begin still consumes retry budget
	require.NoError(t, log.Fail("lookup refused", FailureTransient, nil))

	assert.Equal(t, StatusFailed, log.Status)
	assert.Equal(t, 1, log.AttemptCount)
	assert.Equal(t, "lookup refused", log.LastError)
}

func TestSyncLogFailValidation(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.Begin())

	require.NoError(t, log.Fail("unmappable unit", FailureValidation, nil))

	assert.Equal(t, StatusFailed, log.Status)
	assert.False(t, log.Retryable)
	assert.Nil(t, log.NextRetryAt)
}

func TestSyncLogFailHardRejection(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.Begin())

	require.NoError(t, log.Fail("duplicate invoice", FailureHardRejection, nil))

	assert.Equal(t, StatusDeadLetter, log.Status)
	assert.False(t, log.Retryable)
	assert.ErrorIs(t, log.Begin(), ErrInvalidTransition)
}

func TestSyncLogReopen(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.Begin())
	require.NoError(t, log.Fail("timeout", FailureTransient, nil))

	require.NoError(t, log.Reopen())
	assert.Equal(t, StatusPending, log.Status)

	// non-retryable failures cannot be reopened
	other := newTestLog(t)
	require.NoError(t, other.Begin())
	require.NoError(t, other.Fail("bad data", FailureValidation, nil))
	assert.ErrorIs(t, other.Reopen(), ErrInvalidTransition)
}

func TestSyncLogPromoteToDeadLetter(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.Begin())
	require.NoError(t, log.Fail("timeout", FailureTransient, nil))

	require.NoError(t, log.PromoteToDeadLetter("retry budget exhausted"))
	assert.Equal(t, StatusDeadLetter, log.Status)
	assert.False(t, log.Retryable)
	assert.Contains(t, log.Message, "retry budget exhausted")

	// terminal rows cannot be promoted again
	assert.ErrorIs(t, log.PromoteToDeadLetter("again"), ErrInvalidTransition)
}

func TestSyncLogRequeue(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.Begin())
	require.NoError(t, log.Fail("rejected", FailureHardRejection, nil))
	require.Equal(t, StatusDeadLetter, log.Status)

	require.NoError(t, log.Requeue())
	assert.Equal(t, StatusPending, log.Status)
	assert.True(t, log.Retryable)

	// only dead letters can be requeued
	assert.ErrorIs(t, log.Requeue(), ErrInvalidTransition)
}

func TestSyncLogDueForRetry(t *testing.T) {
	now := time.Now()

	t.Run("pending is always due", func(t *testing.T) {
		log := newTestLog(t)
		assert.True(t, log.DueForRetry(now))
	})

	t.Run("failed with future retry time is not due", func(t *testing.T) {
		log := newTestLog(t)
		require.NoError(t, log.Begin())
		retryAt := now.Add(time.Hour)
		require.NoError(t, log.Fail("timeout", FailureTransient, &retryAt))
		assert.False(t, log.DueForRetry(now))
		assert.True(t, log.DueForRetry(now.Add(2*time.Hour)))
	})

	t.Run("failed without retry time is due immediately", func(t *testing.T) {
		log := newTestLog(t)
		require.NoError(t, log.Begin())
		require.NoError(t, log.Fail("timeout", FailureTransient, nil))
		assert.True(t, log.DueForRetry(now))
	})

	t.Run("non-retryable failure is never due", func(t *testing.T) {
		log := newTestLog(t)
		require.NoError(t, log.Begin())
		require.NoError(t, log.Fail("bad data", FailureValidation, nil))
		assert.False(t, log.DueForRetry(now))
	})

	t.Run("terminal rows are never due", func(t *testing.T) {
		log := newTestLog(t)
		require.NoError(t, log.Begin())
		require.NoError(t, log.Complete(""))
		assert.False(t, log.DueForRetry(now))
	})
}

func TestSyncLogAppendDetail(t *testing.T) {
	log := newTestLog(t)

	log.AppendDetail("first")
	log.AppendDetail("second")

	assert.Equal(t, "first\nsecond", log.Message)
}
