package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/metrics"
	"github.com/ignite/domainwatch/internal/pkg/logger"
)

// PendingVerifier checks a domain that never finished auto-verification.
type PendingVerifier struct {
	domains  DomainStore
	verifier Verifier
	baseline Refresher
	log      *logger.Logger
}

// NewPendingVerifier creates a PendingVerifier.
func NewPendingVerifier(domains DomainStore, verifier Verifier, log *logger.Logger) *PendingVerifier {
	if log == nil {
		log = logger.Default()
	}
	return &PendingVerifier{domains: domains, verifier: verifier, log: log.With("component", "verify_pending")}
}

// WithRefresher captures the baseline snapshot of every domain the sweep
// verifies.
func (p *PendingVerifier) WithRefresher(r Refresher) *PendingVerifier {
	p.baseline = r
	return p
}

// VerifyPending is the body of a pending-verification unit.
func (p *PendingVerifier) VerifyPending(ctx context.Context, trackedDomainID string) (UnitResult, error) {
	td, err := p.domains.FindTrackedDomainByID(ctx, trackedDomainID)
	if errors.Is(err, domain.ErrTrackedDomainNotFound) {
		return UnitResult{Outcome: OutcomeSkipped}, nil
	}
	if err != nil {
		return UnitResult{}, err
	}
	if td.Verified || td.IsArchived() || td.VerificationToken == "" {
		return UnitResult{Outcome: OutcomeSkipped}, nil
	}

	res, err := p.verifier.Verify(ctx, td.DomainName, td.VerificationToken, "")
	if err != nil {
		return UnitResult{}, fmt.Errorf("verify %s: %w", td.DomainName, err)
	}
	if !res.Verified {
		return UnitResult{Outcome: OutcomeUnverified}, nil
	}
	if err := p.domains.VerifyTrackedDomain(ctx, td.ID, res.Method); err != nil {
		return UnitResult{}, err
	}
	captureBaseline(ctx, p.baseline, p.log, td.ID)
	p.log.Info("pending domain verified", "tracked_domain_id", td.ID, "domain", td.DomainName, "method", res.Method)
	return UnitResult{Outcome: OutcomeVerified, Method: res.Method}, nil
}

// PendingReport is the result of a pending sweep.
type PendingReport struct {
	Started    int `json:"started"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// PendingSweep gives unverified domains whose auto-verify run ended (or
// never existed) one check a day.
type PendingSweep struct {
	domains DomainStore
	starter Starter
	cfg     SweepConfig
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewPendingSweep creates the sweep.
func NewPendingSweep(domains DomainStore, starter Starter, cfg SweepConfig, log *logger.Logger, m *metrics.Metrics) *PendingSweep {
	cfg.applyDefaults()
	if log == nil {
		log = logger.Default()
	}
	return &PendingSweep{domains: domains, starter: starter, cfg: cfg, log: log.With("component", "pending_sweep"), metrics: m}
}

// Run sweeps all pending domains.
func (s *PendingSweep) Run(ctx context.Context) (PendingReport, error) {
	start := time.Now()
	ids, err := s.domains.GetPendingTrackedDomainIDs(ctx)
	if err != nil {
		return PendingReport{}, fmt.Errorf("list pending domains: %w", err)
	}

	r := runSweep(ctx, ids, s.cfg, s.starter, s.log)
	recordSweep(s.metrics, "verify_pending", r, start)
	s.log.Info("pending verification sweep finished",
		"started", r.Scheduled, "successful", r.Successful, "failed", r.Failed, "conflicts", r.Conflicts)
	return PendingReport{Started: r.Scheduled, Successful: r.Successful, Failed: r.Failed}, nil
}
