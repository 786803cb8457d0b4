package domains

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/pkg/logger"
	"github.com/ignite/domainwatch/internal/service/verification"
)

// Service implements the tracked-domain lifecycle. It is safe for concurrent use.
type Service struct {
	repo      Repository
	verifier  Verifier
	scheduler AutoVerifier
	baseline  Refresher
	log       *logger.Logger
}

// NewService creates a domains service. scheduler may be nil, in which case
// new domains wait for the daily pending sweep.
func NewService(repo Repository, verifier Verifier, scheduler AutoVerifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{repo: repo, verifier: verifier, scheduler: scheduler, log: log.With("component", "domains")}
}

// WithRefresher captures the baseline snapshot when a manual check verifies
// a domain.
func (s *Service) WithRefresher(r Refresher) *Service {
	s.baseline = r
	return s
}

// Created is returned by Create: the new row plus how to prove ownership.
type Created struct {
	Domain       *domain.TrackedDomain     `json:"domain"`
	Instructions verification.Instructions `json:"instructions"`
}

// Create starts tracking rawName for ownerID. The domain is stored
// unverified with a fresh token and an auto-verify run is scheduled. A
// scheduling failure is logged but does not fail the request.
func (s *Service) Create(ctx context.Context, ownerID, rawName string) (*Created, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	name, err := verification.NormalizeDomain(rawName)
	if err != nil {
		return nil, err
	}
	token, err := verification.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	td := &domain.TrackedDomain{
		DomainName:         name,
		OwnerUserID:        ownerID,
		VerificationStatus: domain.StatusUnverified,
		VerificationToken:  token,
	}
	if err := s.repo.CreateTrackedDomain(ctx, td); err != nil {
		return nil, err
	}

	if s.scheduler != nil {
		if err := s.scheduler.Schedule(ctx, td.ID); err != nil {
			s.log.Warn("auto-verify not scheduled", "tracked_domain_id", td.ID, "error", err)
		}
	}

	return &Created{Domain: td, Instructions: verification.InstructionsFor(name, token)}, nil
}

// Get returns a tracked domain.
func (s *Service) Get(ctx context.Context, id string) (*domain.TrackedDomain, error) {
	return s.repo.FindTrackedDomainByID(ctx, id)
}

// Verify runs an on-demand check. An empty method tries every method in
// priority order. On success the domain is marked verified and the fresh
// row is returned alongside the result.
func (s *Service) Verify(ctx context.Context, id string, method domain.Method) (*domain.TrackedDomain, domain.VerificationResult, error) {
	td, err := s.repo.FindTrackedDomainByID(ctx, id)
	if err != nil {
		return nil, domain.VerificationResult{}, err
	}
	if td.IsArchived() {
		return td, domain.VerificationResult{}, ErrArchived
	}

	res, err := s.verifier.Verify(ctx, td.DomainName, td.VerificationToken, method)
	if err != nil {
		return td, res, err
	}
	if !res.Verified {
		return td, res, nil
	}

	if err := s.repo.VerifyTrackedDomain(ctx, td.ID, res.Method); err != nil {
		return td, res, fmt.Errorf("mark verified: %w", err)
	}
	if s.baseline != nil && !td.Verified {
		if _, err := s.baseline.Refresh(ctx, td.ID); err != nil {
			s.log.Warn("baseline snapshot failed", "tracked_domain_id", td.ID, "error", err)
		}
	}
	fresh, err := s.repo.FindTrackedDomainByID(ctx, id)
	if err != nil {
		return td, res, err
	}
	return fresh, res, nil
}

// SetNotificationOverride routes one category of this domain's
// notifications to flags, replacing the owner's global preference for it.
func (s *Service) SetNotificationOverride(ctx context.Context, id string, category domain.Category, flags domain.ChannelFlags) (*domain.TrackedDomain, error) {
	if !category.Valid() {
		return nil, ErrUnknownCategory
	}
	if err := s.repo.SetNotificationOverride(ctx, id, category, flags); err != nil {
		return nil, err
	}
	return s.repo.FindTrackedDomainByID(ctx, id)
}

// ClearNotificationOverride falls back to the global preference for category.
func (s *Service) ClearNotificationOverride(ctx context.Context, id string, category domain.Category) (*domain.TrackedDomain, error) {
	if !category.Valid() {
		return nil, ErrUnknownCategory
	}
	if err := s.repo.ClearNotificationOverride(ctx, id, category); err != nil {
		return nil, err
	}
	return s.repo.FindTrackedDomainByID(ctx, id)
}

// Archive stops every workflow from touching the domain. An in-flight
// auto-verify run cancels itself on its next attempt.
func (s *Service) Archive(ctx context.Context, id string) (*domain.TrackedDomain, error) {
	if err := s.repo.ArchiveTrackedDomain(ctx, id); err != nil {
		return nil, err
	}
	s.log.Info("tracked domain archived", "tracked_domain_id", id)
	return s.repo.FindTrackedDomainByID(ctx, id)
}

// Unarchive resumes monitoring. An unverified domain is picked up again by
// the daily pending sweep.
func (s *Service) Unarchive(ctx context.Context, id string) (*domain.TrackedDomain, error) {
	if err := s.repo.UnarchiveTrackedDomain(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.FindTrackedDomainByID(ctx, id)
}

// Delete removes the domain for good.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteTrackedDomain(ctx, id); err != nil {
		return err
	}
	s.log.Info("tracked domain deleted", "tracked_domain_id", id)
	return nil
}
