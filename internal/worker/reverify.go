package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/metrics"
	"github.com/ignite/domainwatch/internal/pkg/logger"
	"github.com/ignite/domainwatch/internal/service/notification"
)

// DefaultGracePeriod is how long a verified domain may keep failing its
// re-check before verification is revoked.
const DefaultGracePeriod = 7 * 24 * time.Hour

// Reverifier re-checks one verified domain.
type Reverifier struct {
	domains   DomainStore
	verifier  Verifier
	refresher Refresher
	notifier  Notifier
	grace     time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// NewReverifier creates a Reverifier. refresher and notifier may be nil.
func NewReverifier(domains DomainStore, verifier Verifier, refresher Refresher, notifier Notifier, grace time.Duration, log *logger.Logger) *Reverifier {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	if log == nil {
		log = logger.Default()
	}
	return &Reverifier{
		domains:   domains,
		verifier:  verifier,
		refresher: refresher,
		notifier:  notifier,
		grace:     grace,
		log:       log.With("component", "reverify"),
		now:       time.Now,
	}
}

// Reverify is the body of a re-verification unit.
//
// A passing check keeps (or restores) verified status and refreshes the
// snapshot. A failing check marks the domain failing; once it has been
// failing for longer than the grace period, verification is revoked and
// the owner is told.
func (r *Reverifier) Reverify(ctx context.Context, trackedDomainID string) (UnitResult, error) {
	td, err := r.domains.FindTrackedDomainByID(ctx, trackedDomainID)
	if errors.Is(err, domain.ErrTrackedDomainNotFound) {
		return UnitResult{Outcome: OutcomeSkipped}, nil
	}
	if err != nil {
		return UnitResult{}, err
	}
	if !td.Verified || td.IsArchived() {
		return UnitResult{Outcome: OutcomeSkipped}, nil
	}

	res, err := r.verifier.Verify(ctx, td.DomainName, td.VerificationToken, "")
	if err != nil {
		return UnitResult{}, fmt.Errorf("verify %s: %w", td.DomainName, err)
	}

	if res.Verified {
		if err := r.domains.VerifyTrackedDomain(ctx, td.ID, res.Method); err != nil {
			return UnitResult{}, err
		}
		if td.VerificationStatus == domain.StatusFailing {
			r.log.Info("domain verification recovered", "tracked_domain_id", td.ID, "domain", td.DomainName)
		}
		if r.refresher != nil {
			if _, err := r.refresher.Refresh(ctx, td.ID); err != nil {
				r.log.Warn("snapshot refresh failed", "tracked_domain_id", td.ID, "error", err)
			}
		}
		return UnitResult{Outcome: OutcomeVerified, Method: res.Method}, nil
	}

	now := r.now()
	if td.VerificationFailedAt == nil {
		if err := r.domains.MarkVerificationFailing(ctx, td.ID, now); err != nil {
			return UnitResult{}, err
		}
		r.log.Info("domain verification failing", "tracked_domain_id", td.ID, "domain", td.DomainName)
		return UnitResult{Outcome: OutcomeFailing}, nil
	}

	if now.Sub(*td.VerificationFailedAt) < r.grace {
		return UnitResult{Outcome: OutcomeFailing}, nil
	}

	if err := r.domains.RevokeVerification(ctx, td.ID); err != nil {
		return UnitResult{}, err
	}
	r.log.Warn("domain verification revoked", "tracked_domain_id", td.ID, "domain", td.DomainName,
		"failing_since", td.VerificationFailedAt.UTC().Format(time.RFC3339))
	if r.notifier != nil {
		_, err := r.notifier.Notify(ctx, notification.Message{
			TrackedDomainID: td.ID,
			Category:        domain.CategoryVerification,
			Vars: map[string]interface{}{
				"failed_since": td.VerificationFailedAt.UTC().Format("January 2, 2006"),
				"method":       string(td.VerificationMethod),
			},
		})
		if err != nil {
			r.log.Warn("revocation notification failed", "tracked_domain_id", td.ID, "error", err)
		}
	}
	return UnitResult{Outcome: OutcomeRevoked}, nil
}

// ReverificationSweep re-checks every verified domain once a day.
type ReverificationSweep struct {
	domains DomainStore
	starter Starter
	cfg     SweepConfig
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewReverificationSweep creates the sweep.
func NewReverificationSweep(domains DomainStore, starter Starter, cfg SweepConfig, log *logger.Logger, m *metrics.Metrics) *ReverificationSweep {
	cfg.applyDefaults()
	if log == nil {
		log = logger.Default()
	}
	return &ReverificationSweep{domains: domains, starter: starter, cfg: cfg, log: log.With("component", "reverify_sweep"), metrics: m}
}

// Run sweeps all verified, non-archived domains.
func (s *ReverificationSweep) Run(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	ids, err := s.domains.GetVerifiedTrackedDomainIDs(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list verified domains: %w", err)
	}

	report := runSweep(ctx, ids, s.cfg, s.starter, s.log)
	recordSweep(s.metrics, "reverify", report, start)
	s.log.Info("reverification sweep finished",
		"scheduled", report.Scheduled, "successful", report.Successful, "failed", report.Failed,
		"conflicts", report.Conflicts, "batches", report.Batches, "duration", time.Since(start).String())
	return report, nil
}

func recordSweep(m *metrics.Metrics, sweep string, r SweepReport, start time.Time) {
	m.AddSweepUnits(sweep, "success", r.Successful-r.Conflicts)
	m.AddSweepUnits(sweep, "conflict", r.Conflicts)
	m.AddSweepUnits(sweep, "failed", r.Failed)
	m.ObserveSweep(sweep, start)
}
