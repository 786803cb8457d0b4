package worker

import (
	"context"
	"time"

	"github.com/ignite/domainwatch/internal/pkg/distlock"
	"github.com/ignite/domainwatch/internal/pkg/logger"
)

const (
	// DefaultCleanupInterval is how often the cleanup cycle runs.
	DefaultCleanupInterval = time.Hour

	// Retention windows.
	FinishedRunRetention      = 30 * 24 * time.Hour
	ReadNotificationRetention = 90 * 24 * time.Hour

	cleanupBatchSize = 5000
)

// FinishedRunDeleter removes completed and failed workflow runs.
type FinishedRunDeleter interface {
	DeleteFinishedRuns(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// ReadNotificationDeleter removes notifications the user has read.
type ReadNotificationDeleter interface {
	DeleteReadNotifications(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// DataCleanupWorker trims finished workflow runs and read notifications.
// Deletes run in bounded batches so no single statement holds locks for
// long.
type DataCleanupWorker struct {
	runs          FinishedRunDeleter
	notifications ReadNotificationDeleter
	interval      time.Duration
	batchSize     int
	lock          distlock.Lock
	log           *logger.Logger
	now           func() time.Time
}

// NewDataCleanupWorker creates a cleanup worker.
func NewDataCleanupWorker(runs FinishedRunDeleter, notifications ReadNotificationDeleter, interval time.Duration, log *logger.Logger) *DataCleanupWorker {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if log == nil {
		log = logger.Default()
	}
	return &DataCleanupWorker{
		runs:          runs,
		notifications: notifications,
		interval:      interval,
		batchSize:     cleanupBatchSize,
		log:           log.With("component", "data_cleanup"),
		now:           time.Now,
	}
}

// WithLock makes each cycle a no-op unless l can be taken, so only one
// replica cleans at a time.
func (dc *DataCleanupWorker) WithLock(l distlock.Lock) *DataCleanupWorker {
	dc.lock = l
	return dc
}

// Start runs one cycle immediately and then on every tick until ctx is
// cancelled.
func (dc *DataCleanupWorker) Start(ctx context.Context) {
	dc.log.Info("data cleanup starting", "interval", dc.interval.String(), "batch_size", dc.batchSize)

	dc.Cleanup(ctx)

	ticker := time.NewTicker(dc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			dc.log.Info("data cleanup stopping")
			return
		case <-ticker.C:
			dc.Cleanup(ctx)
		}
	}
}

// Cleanup runs one cycle and returns the rows deleted per target.
func (dc *DataCleanupWorker) Cleanup(ctx context.Context) (runs, notifications int64) {
	if dc.lock != nil {
		ok, err := dc.lock.TryLock(ctx)
		if err != nil {
			dc.log.Warn("cleanup lock failed", "error", err)
			return 0, 0
		}
		if !ok {
			dc.log.Debug("cleanup held by another worker")
			return 0, 0
		}
		defer func() {
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := dc.lock.Unlock(unlockCtx); err != nil {
				dc.log.Warn("cleanup unlock failed", "error", err)
			}
		}()
	}

	start := dc.now()

	runs = dc.batchDelete(ctx, "workflow_runs", func(ctx context.Context) (int64, error) {
		return dc.runs.DeleteFinishedRuns(ctx, start.Add(-FinishedRunRetention), dc.batchSize)
	})
	notifications = dc.batchDelete(ctx, "notifications", func(ctx context.Context) (int64, error) {
		return dc.notifications.DeleteReadNotifications(ctx, start.Add(-ReadNotificationRetention), dc.batchSize)
	})

	if runs > 0 || notifications > 0 {
		dc.log.Info("data cleanup finished", "runs_deleted", runs, "notifications_deleted", notifications)
	}
	return runs, notifications
}

// batchDelete calls del until a batch comes back short. An error stops the
// loop and keeps whatever was already deleted.
func (dc *DataCleanupWorker) batchDelete(ctx context.Context, table string, del func(context.Context) (int64, error)) int64 {
	var total int64
	for {
		if ctx.Err() != nil {
			return total
		}
		queryCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		n, err := del(queryCtx)
		cancel()
		if err != nil {
			dc.log.Warn("cleanup batch failed", "table", table, "error", err)
			return total
		}
		total += n
		if n < int64(dc.batchSize) {
			return total
		}
	}
}
