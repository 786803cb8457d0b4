package worker

import (
	"context"
	"time"

	"github.com/ignite/domainwatch/internal/metrics"
	"github.com/ignite/domainwatch/internal/pkg/logger"
)

const (
	// DefaultRecoveryInterval is how often stale claims are looked for.
	DefaultRecoveryInterval = 2 * time.Minute

	// DefaultStaleAge is how long a run may stay claimed before its worker
	// is assumed dead.
	DefaultStaleAge = 5 * time.Minute
)

// StaleClaimReleaser hands stuck runs back.
type StaleClaimReleaser interface {
	ReleaseStaleClaims(ctx context.Context, olderThan time.Time) (int64, error)
}

// RunRecoveryWorker releases workflow runs whose worker crashed mid-claim.
// Auto-verify runs go back to scheduled and resume at the same attempt;
// one-shot units are marked failed so the next sweep can retake the key.
type RunRecoveryWorker struct {
	runs     StaleClaimReleaser
	interval time.Duration
	staleAge time.Duration
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewRunRecoveryWorker creates a recovery worker. Zero durations take the
// defaults.
func NewRunRecoveryWorker(runs StaleClaimReleaser, interval, staleAge time.Duration, log *logger.Logger, m *metrics.Metrics) *RunRecoveryWorker {
	if interval <= 0 {
		interval = DefaultRecoveryInterval
	}
	if staleAge <= 0 {
		staleAge = DefaultStaleAge
	}
	if log == nil {
		log = logger.Default()
	}
	return &RunRecoveryWorker{
		runs:     runs,
		interval: interval,
		staleAge: staleAge,
		log:      log.With("component", "run_recovery"),
		metrics:  m,
		now:      time.Now,
	}
}

// Start runs the recovery loop. It blocks until ctx is cancelled.
func (rw *RunRecoveryWorker) Start(ctx context.Context) {
	rw.log.Info("run recovery starting", "interval", rw.interval.String(), "stale_age", rw.staleAge.String())

	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.log.Info("run recovery stopping")
			return
		case <-ticker.C:
			rw.RecoverOnce(ctx)
		}
	}
}

// RecoverOnce runs a single pass and returns the number of released runs.
func (rw *RunRecoveryWorker) RecoverOnce(ctx context.Context) int64 {
	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := rw.runs.ReleaseStaleClaims(queryCtx, rw.now().Add(-rw.staleAge))
	if err != nil {
		rw.log.Error("release stale claims failed", "error", err)
		return 0
	}
	if n > 0 {
		rw.log.Warn("released stale workflow runs", "count", n)
		rw.metrics.AddRecoveredRuns(n)
	}
	return n
}
