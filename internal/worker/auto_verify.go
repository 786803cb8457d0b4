package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/metrics"
	"github.com/ignite/domainwatch/internal/pkg/logger"
)

// AutoVerifyDelays are the waits before each auto-verify attempt. Attempt n
// (1-based) runs delays[n-1] after the previous one.
var AutoVerifyDelays = []time.Duration{
	1 * time.Minute,
	3 * time.Minute,
	10 * time.Minute,
	30 * time.Minute,
	1 * time.Hour,
}

// Terminal auto-verify results.
const (
	ResultVerified  = "verified"
	ResultCancelled = "cancelled"
	ResultExhausted = "exhausted"

	ReasonDomainDeleted   = "domain_deleted"
	ReasonAlreadyVerified = "already_verified"
	ReasonDomainArchived  = "domain_archived"
)

// AutoVerifyResult is stored on a finished auto-verify run.
type AutoVerifyResult struct {
	Result         string        `json:"result"`
	Attempt        int           `json:"attempt,omitempty"`
	VerifiedMethod domain.Method `json:"verifiedMethod,omitempty"`
	Reason         string        `json:"reason,omitempty"`
}

// AutoVerifyConfig tunes the scheduler loop.
type AutoVerifyConfig struct {
	PollInterval time.Duration
	ClaimLimit   int
	// RetryDelay is used when an attempt could not run at all (database
	// trouble). The attempt number is not consumed.
	RetryDelay time.Duration
}

// AutoVerifyScheduler drives the per-domain auto-verify workflow. Each run
// makes up to len(AutoVerifyDelays) sequential attempts; between attempts
// the run sleeps in the database.
type AutoVerifyScheduler struct {
	runs     RunStore
	domains  DomainStore
	verifier Verifier
	baseline Refresher
	log      *logger.Logger
	metrics  *metrics.Metrics
	cfg      AutoVerifyConfig
	workerID string
	now      func() time.Time

	// Stats
	totalProcessed int64
	totalErrors    int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewAutoVerifyScheduler creates the scheduler.
func NewAutoVerifyScheduler(runs RunStore, domains DomainStore, verifier Verifier, cfg AutoVerifyConfig, log *logger.Logger, m *metrics.Metrics) *AutoVerifyScheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.ClaimLimit <= 0 {
		cfg.ClaimLimit = 20
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Minute
	}
	if log == nil {
		log = logger.Default()
	}
	workerID := fmt.Sprintf("autoverify-%s", uuid.New().String()[:8])
	return &AutoVerifyScheduler{
		runs:     runs,
		domains:  domains,
		verifier: verifier,
		log:      log.With("component", "auto_verify", "worker_id", workerID),
		metrics:  m,
		cfg:      cfg,
		workerID: workerID,
		now:      time.Now,
	}
}

// WithRefresher captures the baseline snapshot of every domain the
// scheduler verifies.
func (s *AutoVerifyScheduler) WithRefresher(r Refresher) *AutoVerifyScheduler {
	s.baseline = r
	return s
}

// Schedule starts the workflow for a tracked domain. The first attempt is
// due after the first delay. Scheduling a domain that already has an active
// run is a no-op.
func (s *AutoVerifyScheduler) Schedule(ctx context.Context, trackedDomainID string) error {
	created, err := s.runs.ScheduleAutoVerify(ctx, trackedDomainID, s.now().Add(AutoVerifyDelays[0]))
	if err != nil {
		return err
	}
	if !created {
		s.log.Debug("auto-verify already active", "tracked_domain_id", trackedDomainID)
	}
	return nil
}

// Start begins the polling loop.
func (s *AutoVerifyScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	s.log.Info("auto-verify scheduler starting", "poll_interval", s.cfg.PollInterval.String())

	s.wg.Add(1)
	go s.loop()
}

// Stop stops the loop and waits up to 30s for the in-flight batch.
func (s *AutoVerifyScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		s.log.Warn("auto-verify scheduler shutdown timeout")
	}

	s.log.Info("auto-verify scheduler stopped",
		"processed", atomic.LoadInt64(&s.totalProcessed), "errors", atomic.LoadInt64(&s.totalErrors))
}

func (s *AutoVerifyScheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(s.ctx); err != nil && s.ctx.Err() == nil {
				s.log.Error("auto-verify poll failed", "error", err)
			}
		}
	}
}

// RunOnce claims every due run (up to the claim limit) and advances each
// by one attempt. It returns the number of runs processed.
func (s *AutoVerifyScheduler) RunOnce(ctx context.Context) (int, error) {
	runs, err := s.runs.ClaimDueRuns(ctx, domain.RunKindAutoVerify, s.workerID, s.cfg.ClaimLimit)
	if err != nil {
		return 0, err
	}
	for _, run := range runs {
		if ctx.Err() != nil {
			break
		}
		if err := s.runs.TouchRun(ctx, run.ID, s.workerID); err != nil {
			if errors.Is(err, ErrRunConflict) {
				s.log.Debug("auto-verify run taken over", "run_id", run.ID, "tracked_domain_id", run.TrackedDomainID)
				continue
			}
			atomic.AddInt64(&s.totalErrors, 1)
			s.log.Error("auto-verify claim renewal failed", "run_id", run.ID, "error", err)
			continue
		}
		if err := s.advance(ctx, run); err != nil {
			atomic.AddInt64(&s.totalErrors, 1)
			s.log.Error("auto-verify attempt failed", "run_id", run.ID, "tracked_domain_id", run.TrackedDomainID, "error", err)
			continue
		}
		atomic.AddInt64(&s.totalProcessed, 1)
	}
	return len(runs), nil
}

// advance performs one attempt of a claimed run and persists the transition.
func (s *AutoVerifyScheduler) advance(ctx context.Context, run domain.WorkflowRun) error {
	attempt := run.Attempt
	if attempt < 1 {
		attempt = 1
	}

	td, err := s.domains.FindTrackedDomainByID(ctx, run.TrackedDomainID)
	switch {
	case errors.Is(err, domain.ErrTrackedDomainNotFound):
		return s.finish(ctx, run, AutoVerifyResult{Result: ResultCancelled, Reason: ReasonDomainDeleted})
	case err != nil:
		return s.retryLater(ctx, run, attempt, err)
	case td.Verified:
		return s.finish(ctx, run, AutoVerifyResult{Result: ResultCancelled, Reason: ReasonAlreadyVerified})
	case td.IsArchived():
		return s.finish(ctx, run, AutoVerifyResult{Result: ResultCancelled, Reason: ReasonDomainArchived})
	}

	verified := false
	var method domain.Method
	if td.VerificationToken != "" {
		res, err := s.verifier.Verify(ctx, td.DomainName, td.VerificationToken, "")
		if err != nil {
			s.log.Warn("auto-verify check rejected", "tracked_domain_id", td.ID, "error", err)
		}
		verified, method = res.Verified, res.Method
	} else {
		s.log.Warn("tracked domain has no token, attempt consumed", "tracked_domain_id", td.ID, "attempt", attempt)
	}

	if verified {
		if err := s.domains.VerifyTrackedDomain(ctx, td.ID, method); err != nil {
			return s.retryLater(ctx, run, attempt, err)
		}
		captureBaseline(ctx, s.baseline, s.log, td.ID)
		return s.finish(ctx, run, AutoVerifyResult{Result: ResultVerified, Attempt: attempt, VerifiedMethod: method})
	}

	if attempt >= len(AutoVerifyDelays) {
		s.log.Warn("auto-verify exhausted, pending sweep takes over", "tracked_domain_id", td.ID, "attempts", attempt)
		return s.finish(ctx, run, AutoVerifyResult{Result: ResultExhausted, Attempt: attempt})
	}

	due := s.now().Add(AutoVerifyDelays[attempt])
	if err := s.runs.RescheduleRun(ctx, run.ID, s.workerID, attempt+1, due); err != nil {
		return fmt.Errorf("reschedule attempt %d: %w", attempt+1, err)
	}
	s.metrics.IncAutoVerify("retry")
	s.log.Debug("auto-verify attempt failed, rescheduled", "tracked_domain_id", td.ID, "attempt", attempt, "next_due_at", due)
	return nil
}

func (s *AutoVerifyScheduler) finish(ctx context.Context, run domain.WorkflowRun, res AutoVerifyResult) error {
	if err := s.runs.CompleteRun(ctx, run.ID, s.workerID, res); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	outcome := res.Result
	if res.Reason != "" {
		outcome += ":" + res.Reason
	}
	s.metrics.IncAutoVerify(outcome)
	s.log.Info("auto-verify finished", "run_id", run.ID, "tracked_domain_id", run.TrackedDomainID,
		"result", res.Result, "reason", res.Reason, "attempt", res.Attempt)
	return nil
}

// retryLater puts the run back without consuming the attempt.
func (s *AutoVerifyScheduler) retryLater(ctx context.Context, run domain.WorkflowRun, attempt int, cause error) error {
	if err := s.runs.RescheduleRun(ctx, run.ID, s.workerID, attempt, s.now().Add(s.cfg.RetryDelay)); err != nil {
		return fmt.Errorf("%v; release run: %w", cause, err)
	}
	return cause
}
