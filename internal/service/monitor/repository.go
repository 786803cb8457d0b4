package monitor

import (
	"context"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/lookup"
	"github.com/ignite/domainwatch/internal/service/notification"
)

// Repository is the persistence the monitor needs.
type Repository interface {
	FindTrackedDomainByID(ctx context.Context, id string) (*domain.TrackedDomain, error)
	// GetSnapshot returns nil when the domain has no snapshot yet.
	GetSnapshot(ctx context.Context, trackedDomainID string) (*domain.Snapshot, error)
	UpsertSnapshot(ctx context.Context, s *domain.Snapshot) error
}

// Lookups gathers the live sections a snapshot is built from.
type Lookups interface {
	Registration(ctx context.Context, domainName string) (*lookup.Registration, error)
	Certificates(ctx context.Context, domainName string) ([]domain.Certificate, error)
	DNS(ctx context.Context, domainName string) (*lookup.DNSRecords, error)
	Headers(ctx context.Context, domainName string) (*lookup.Headers, error)
	Hosting(dns *lookup.DNSRecords, headers *lookup.Headers) *lookup.Hosting
}

// Notifier delivers change notifications.
type Notifier interface {
	Notify(ctx context.Context, msg notification.Message) (notification.Delivery, error)
}

// Archiver keeps replaced snapshots.
type Archiver interface {
	Archive(ctx context.Context, s *domain.Snapshot) error
}
