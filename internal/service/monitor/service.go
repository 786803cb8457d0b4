package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/lookup"
	"github.com/ignite/domainwatch/internal/pkg/logger"
	"github.com/ignite/domainwatch/internal/providers"
	"github.com/ignite/domainwatch/internal/service/changes"
	"github.com/ignite/domainwatch/internal/service/notification"
)

// ErrArchived is returned when refreshing a domain that is no longer monitored.
var ErrArchived = errors.New("tracked domain is archived")

// Service refreshes snapshots. It is safe for concurrent use.
type Service struct {
	repo     Repository
	lookups  Lookups
	notifier Notifier
	archive  Archiver
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a monitor service. archive may be nil.
func NewService(repo Repository, lookups Lookups, notifier Notifier, archive Archiver, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		repo:     repo,
		lookups:  lookups,
		notifier: notifier,
		archive:  archive,
		log:      log.With("component", "monitor"),
		now:      time.Now,
	}
}

// Refresh captures a new snapshot for the domain, stores it, and notifies
// the owner of every changed category.
func (s *Service) Refresh(ctx context.Context, trackedDomainID string) (domain.ChangeRecord, error) {
	td, err := s.repo.FindTrackedDomainByID(ctx, trackedDomainID)
	if err != nil {
		return domain.ChangeRecord{}, err
	}
	if td.IsArchived() {
		return domain.ChangeRecord{}, ErrArchived
	}

	previous, err := s.repo.GetSnapshot(ctx, td.ID)
	if err != nil {
		return domain.ChangeRecord{}, fmt.Errorf("load snapshot: %w", err)
	}

	next := s.capture(ctx, td, previous)
	record := changes.Detect(previous, next)

	if err := s.repo.UpsertSnapshot(ctx, &next); err != nil {
		return record, fmt.Errorf("store snapshot: %w", err)
	}
	if previous != nil && s.archive != nil {
		if err := s.archive.Archive(ctx, previous); err != nil {
			s.log.Warn("snapshot archive failed", "tracked_domain_id", td.ID, "error", err)
		}
	}

	if record.Baseline || !record.Any() {
		return record, nil
	}
	for _, msg := range messagesFor(td, record) {
		if _, err := s.notifier.Notify(ctx, msg); err != nil {
			s.log.Warn("change notification failed", "tracked_domain_id", td.ID, "category", msg.Category, "error", err)
		}
	}
	s.log.Info("domain changes detected", "tracked_domain_id", td.ID, "domain", td.DomainName,
		"registration", record.Registration.Any(), "certificate", record.Certificate.Any(), "providers", record.Providers.Any())
	return record, nil
}

// capture fetches every section concurrently. Failed sections fall back to
// the previous snapshot's value.
func (s *Service) capture(ctx context.Context, td *domain.TrackedDomain, previous *domain.Snapshot) domain.Snapshot {
	var (
		g       errgroup.Group
		reg     *lookup.Registration
		certs   []domain.Certificate
		dns     *lookup.DNSRecords
		headers *lookup.Headers
		regErr  error
		certErr error
		dnsErr  error
		hdrErr  error
	)
	name := td.DomainName
	g.Go(func() error { reg, regErr = s.lookups.Registration(ctx, name); return nil })
	g.Go(func() error { certs, certErr = s.lookups.Certificates(ctx, name); return nil })
	g.Go(func() error { dns, dnsErr = s.lookups.DNS(ctx, name); return nil })
	g.Go(func() error { headers, hdrErr = s.lookups.Headers(ctx, name); return nil })
	_ = g.Wait()

	next := domain.Snapshot{TrackedDomainID: td.ID, CreatedAt: s.now().UTC()}

	if regErr == nil && reg != nil {
		r := reg.Registration
		next.Registration = &r
	} else if previous != nil {
		s.logSectionFailure(td, "registration", regErr)
		next.Registration = previous.Registration
	}

	if certErr == nil && len(certs) > 0 {
		next.Certificates = certs
	} else if previous != nil {
		s.logSectionFailure(td, "certificates", certErr)
		next.Certificates = previous.Certificates
	}

	if dnsErr == nil || hdrErr == nil {
		next.Providers = s.providers(dns, headers, next.Registration, previous)
	} else if previous != nil {
		s.logSectionFailure(td, "providers", errors.Join(dnsErr, hdrErr))
		next.Providers = previous.Providers
	}
	return next
}

// providers derives the provider ids from whatever sections succeeded.
// Hosting needs headers or CNAMEs; DNS falls back to registry nameservers.
func (s *Service) providers(dns *lookup.DNSRecords, headers *lookup.Headers, reg *domain.Registration, previous *domain.Snapshot) *domain.Providers {
	p := &domain.Providers{}
	var prev domain.Providers
	if previous != nil && previous.Providers != nil {
		prev = *previous.Providers
	}

	switch {
	case dns != nil:
		p.DNSProviderID = dns.DNSProviderID
		p.EmailProviderID = dns.EmailProviderID
	case reg != nil && len(reg.Nameservers) > 0:
		p.DNSProviderID = providers.DNSProvider(reg.Nameservers)
		p.EmailProviderID = prev.EmailProviderID
	default:
		p.DNSProviderID = prev.DNSProviderID
		p.EmailProviderID = prev.EmailProviderID
	}

	if dns != nil && headers != nil {
		p.HostingProviderID = s.lookups.Hosting(dns, headers).HostingProviderID
	} else {
		p.HostingProviderID = prev.HostingProviderID
	}
	return p
}

func (s *Service) logSectionFailure(td *domain.TrackedDomain, section string, err error) {
	s.log.Warn("section lookup failed, keeping previous value",
		"tracked_domain_id", td.ID, "domain", td.DomainName, "section", section, "error", err)
}

// messagesFor turns a change record into one message per changed category.
func messagesFor(td *domain.TrackedDomain, r domain.ChangeRecord) []notification.Message {
	var out []notification.Message
	add := func(cat domain.Category, items []map[string]interface{}) {
		if len(items) == 0 {
			return
		}
		entries := make([]interface{}, len(items))
		for i := range items {
			entries[i] = items[i]
		}
		out = append(out, notification.Message{
			TrackedDomainID: td.ID,
			Category:        cat,
			Vars:            map[string]interface{}{"domain": td.DomainName, "changes": entries},
		})
	}

	var reg []map[string]interface{}
	if c := r.Registration; c.Any() {
		if c.RegistrarChanged {
			reg = append(reg, change("registrar", str(c.PreviousRegistrar), str(c.NewRegistrar)))
		}
		if c.NameserversChanged {
			reg = append(reg, change("nameservers", list(c.PreviousNameservers), list(c.NewNameservers)))
		}
		if c.TransferLockChanged {
			reg = append(reg, change("transfer lock", boolean(c.PreviousTransferLock), boolean(c.NewTransferLock)))
		}
		if c.StatusesChanged {
			reg = append(reg, change("statuses", list(c.PreviousStatuses), list(c.NewStatuses)))
		}
	}
	add(domain.CategoryRegistrationChanges, reg)

	var cert []map[string]interface{}
	if c := r.Certificate; c.CAProviderChanged {
		cert = append(cert, change("certificate authority", str(c.PreviousCAProvider), str(c.NewCAProvider)))
	}
	if c := r.Certificate; c.IssuerChanged {
		cert = append(cert, change("issuer", str(c.PreviousIssuer), str(c.NewIssuer)))
	}
	add(domain.CategoryCertificateChanges, cert)

	var prov []map[string]interface{}
	if c := r.Providers; c.DNSProviderChanged {
		prov = append(prov, change("DNS provider", str(c.PreviousDNSProvider), str(c.NewDNSProvider)))
	}
	if c := r.Providers; c.HostingProviderChanged {
		prov = append(prov, change("hosting provider", str(c.PreviousHostingProvider), str(c.NewHostingProvider)))
	}
	if c := r.Providers; c.EmailProviderChanged {
		prov = append(prov, change("email provider", str(c.PreviousEmailProvider), str(c.NewEmailProvider)))
	}
	add(domain.CategoryProviderChanges, prov)

	return out
}

func change(field string, previous, next interface{}) map[string]interface{} {
	return map[string]interface{}{"field": field, "previous": previous, "new": next}
}

// str, list and boolean render values for templates; nil renders as "none".
func str(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func list(v []string) interface{} {
	if len(v) == 0 {
		return nil
	}
	return strings.Join(v, ", ")
}

func boolean(p *bool) interface{} {
	if p == nil {
		return nil
	}
	if *p {
		return "on"
	}
	return "off"
}
