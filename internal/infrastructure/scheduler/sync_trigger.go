package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SyncTriggerConfig holds the cadences of the three periodic job kinds
type SyncTriggerConfig struct {
	// FullSyncSchedule is a cron line of the form "M H * * *"; only the
	// minute and hour fields are honoured, the run fires once per day
	FullSyncSchedule string
	// DeltaInterval is the pause between delta sync submissions
	DeltaInterval time.Duration
	// RetryInterval is the pause between retry sweep submissions
	RetryInterval time.Duration
	// CheckInterval is how often the daily schedule is evaluated
	CheckInterval time.Duration
}

// DefaultSyncTriggerConfig returns default trigger configuration
func DefaultSyncTriggerConfig() SyncTriggerConfig {
	return SyncTriggerConfig{
		FullSyncSchedule: "0 2 * * *",
		DeltaInterval:    5 * time.Minute,
		RetryInterval:    time.Minute,
		CheckInterval:    time.Minute,
	}
}

// parseDailySchedule extracts the minute and hour fields from a cron line.
// Only daily schedules are supported; the remaining fields must be "*".
func parseDailySchedule(schedule string) (hour, minute int, err error) {
	fields := strings.Fields(schedule)
	if len(fields) != 5 || fields[2] != "*" || fields[3] != "*" || fields[4] != "*" {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSchedule, schedule)
	}

	minute, err = strconv.Atoi(fields[0])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: bad minute in %q", ErrInvalidSchedule, schedule)
	}
	hour, err = strconv.Atoi(fields[1])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: bad hour in %q", ErrInvalidSchedule, schedule)
	}
	return hour, minute, nil
}

// SyncTrigger submits full, delta and retry-sweep jobs on their cadences
type SyncTrigger struct {
	config    SyncTriggerConfig
	scheduler *Scheduler
	logger    *zap.Logger

	fullSyncHour   int
	fullSyncMinute int

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewSyncTrigger creates a new trigger
func NewSyncTrigger(config SyncTriggerConfig, scheduler *Scheduler, logger *zap.Logger) (*SyncTrigger, error) {
	hour, minute, err := parseDailySchedule(config.FullSyncSchedule)
	if err != nil {
		return nil, err
	}

	return &SyncTrigger{
		config:         config,
		scheduler:      scheduler,
		logger:         logger.Named("sync_trigger"),
		fullSyncHour:   hour,
		fullSyncMinute: minute,
	}, nil
}

// Start starts the trigger loops
func (t *SyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(3)
	go t.intervalLoop(ctx, t.config.DeltaInterval, JobKindDeltaSync)
	go t.intervalLoop(ctx, t.config.RetryInterval, JobKindRetrySweep)
	go t.dailyLoop(ctx)

	t.logger.Info("sync trigger started",
		zap.String("full_sync_schedule", t.config.FullSyncSchedule),
		zap.Duration("delta_interval", t.config.DeltaInterval),
		zap.Duration("retry_interval", t.config.RetryInterval),
	)

	return nil
}

// Stop stops the trigger loops
func (t *SyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *SyncTrigger) intervalLoop(ctx context.Context, interval time.Duration, kind JobKind) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.submit(kind)
		}
	}
}

func (t *SyncTrigger) dailyLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkDaily()
		}
	}
}

// checkDaily fires the full sync once per day at the configured time
func (t *SyncTrigger) checkDaily() {
	now := time.Now()
	currentDate := now.Format("2006-01-02")

	t.mu.Lock()
	alreadyRan := t.lastRunDate == currentDate
	t.mu.Unlock()
	if alreadyRan {
		return
	}

	if now.Hour() != t.fullSyncHour || now.Minute() != t.fullSyncMinute {
		return
	}

	t.mu.Lock()
	t.lastRunDate = currentDate
	t.mu.Unlock()

	t.logger.Info("triggering scheduled full sync")
	t.submit(JobKindFullSync)
}

func (t *SyncTrigger) submit(kind JobKind) {
	if err := t.scheduler.SubmitJob(NewJob(kind)); err != nil {
		t.logger.Warn("failed to submit scheduled job",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

// TriggerFullSync submits an out-of-schedule full sync
func (t *SyncTrigger) TriggerFullSync() error {
	return t.scheduler.SubmitJob(NewJob(JobKindFullSync))
}

// TriggerDeltaSync submits an out-of-schedule delta sync. A non-nil since
// replays the window from that instant instead of the stored watermarks.
func (t *SyncTrigger) TriggerDeltaSync(since *time.Time) error {
	job := NewJob(JobKindDeltaSync)
	job.Since = since
	return t.scheduler.SubmitJob(job)
}
