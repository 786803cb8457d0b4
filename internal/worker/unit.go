package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/pkg/logger"
)

// UnitResult is the outcome of one sweep unit.
type UnitResult struct {
	Outcome string        `json:"outcome"`
	Method  domain.Method `json:"method,omitempty"`
}

// Unit outcomes.
const (
	OutcomeVerified   = "verified"
	OutcomeFailing    = "failing"
	OutcomeRevoked    = "revoked"
	OutcomeUnverified = "unverified"
	OutcomeSkipped    = "skipped"
)

// Starter starts one unit of work for a tracked domain.
type Starter interface {
	Start(ctx context.Context, trackedDomainID string) (*Handle, error)
}

// Handle tracks a started unit.
type Handle struct {
	RunID string
	done  chan struct{}
	res   UnitResult
	err   error
}

// Wait blocks until the unit finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (UnitResult, error) {
	select {
	case <-h.done:
		return h.res, h.err
	case <-ctx.Done():
		return UnitResult{}, ctx.Err()
	}
}

// UnitFunc is the body of a unit.
type UnitFunc func(ctx context.Context, trackedDomainID string) (UnitResult, error)

// UnitStarter runs UnitFuncs as one-shot workflow runs. The idempotency
// key is "<kind>-<domain id>-<UTC date>", so a domain is processed at most
// once per kind per day no matter how many workers sweep concurrently.
type UnitStarter struct {
	runs     RunStore
	kind     domain.RunKind
	fn       UnitFunc
	workerID string
	log      *logger.Logger
	now      func() time.Time
}

// NewUnitStarter creates a Starter for kind.
func NewUnitStarter(runs RunStore, kind domain.RunKind, fn UnitFunc, log *logger.Logger) *UnitStarter {
	if log == nil {
		log = logger.Default()
	}
	workerID := fmt.Sprintf("%s-%s", kind, uuid.New().String()[:8])
	return &UnitStarter{
		runs:     runs,
		kind:     kind,
		fn:       fn,
		workerID: workerID,
		log:      log.With("component", "unit_starter", "kind", string(kind)),
		now:      time.Now,
	}
}

// IdempotencyKey is the run key of a unit started at t.
func IdempotencyKey(kind domain.RunKind, trackedDomainID string, t time.Time) string {
	k := string(kind)
	if kind == domain.RunKindVerifyPending {
		k = "verify-pending"
	}
	return fmt.Sprintf("%s-%s-%s", k, trackedDomainID, t.UTC().Format("2006-01-02"))
}

// Start claims the unit and runs it in the background. It returns
// ErrRunConflict when another worker already owns today's unit.
func (s *UnitStarter) Start(ctx context.Context, trackedDomainID string) (*Handle, error) {
	key := IdempotencyKey(s.kind, trackedDomainID, s.now())
	runID, err := s.runs.BeginUnit(ctx, s.kind, trackedDomainID, key, s.workerID)
	if err != nil {
		return nil, err
	}

	h := &Handle{RunID: runID, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.res, h.err = s.fn(ctx, trackedDomainID)

		// Record the outcome even if the caller's context is gone.
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		var recErr error
		if h.err != nil {
			recErr = s.runs.FailRun(recordCtx, runID, s.workerID, map[string]string{"error": h.err.Error()})
		} else {
			recErr = s.runs.CompleteRun(recordCtx, runID, s.workerID, h.res)
		}
		if recErr != nil && !errors.Is(recErr, ErrRunConflict) {
			s.log.Warn("unit outcome not recorded", "run_id", runID, "tracked_domain_id", trackedDomainID, "error", recErr)
		}
	}()
	return h, nil
}
