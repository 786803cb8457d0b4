package worker

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ignite/domainwatch/internal/pkg/logger"
)

// SweepReport is the result of one sweep. Conflicts (units another worker
// already handled) are included in Successful and only broken out for
// logs and metrics.
type SweepReport struct {
	Scheduled  int `json:"scheduled"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Conflicts  int `json:"-"`
	Batches    int `json:"-"`
}

// SweepConfig tunes a sweep.
type SweepConfig struct {
	BatchSize int
	// UnitsPerSecond caps how fast units are started. Zero means no limit.
	UnitsPerSecond float64
}

func (c *SweepConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}
}

func (c SweepConfig) limiter() *rate.Limiter {
	if c.UnitsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(c.UnitsPerSecond), 1)
}

// Batches splits ids into consecutive chunks of at most size.
func Batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

// runSweep starts one unit per id. Batches run one after another; units
// inside a batch run concurrently. A failing unit never affects the others.
// Scheduled always equals Successful plus Failed.
func runSweep(ctx context.Context, ids []string, cfg SweepConfig, starter Starter, log *logger.Logger) SweepReport {
	cfg.applyDefaults()
	limiter := cfg.limiter()
	report := SweepReport{Scheduled: len(ids)}

	var successful, failed, conflicts int64
	started := 0
	for _, batch := range Batches(ids, cfg.BatchSize) {
		if ctx.Err() != nil {
			break
		}
		report.Batches++

		var g errgroup.Group
		g.SetLimit(cfg.BatchSize)
		for _, id := range batch {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
			started++
			g.Go(func() error {
				err := runUnit(ctx, starter, id)
				switch {
				case err == nil:
					atomic.AddInt64(&successful, 1)
				case errors.Is(err, ErrRunConflict):
					atomic.AddInt64(&successful, 1)
					atomic.AddInt64(&conflicts, 1)
					log.Info("unit already handled by another worker", "tracked_domain_id", id)
				default:
					atomic.AddInt64(&failed, 1)
					log.Warn("sweep unit failed", "tracked_domain_id", id, "error", err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	// Units never started because ctx ended count as failed.
	report.Successful = int(successful)
	report.Failed = int(failed) + len(ids) - started
	report.Conflicts = int(conflicts)
	return report
}

func runUnit(ctx context.Context, starter Starter, id string) error {
	h, err := starter.Start(ctx, id)
	if err != nil {
		return err
	}
	_, err = h.Wait(ctx)
	return err
}
