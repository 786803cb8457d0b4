package domains

import (
	"context"

	"github.com/ignite/domainwatch/internal/domain"
)

// Repository is the persistence the domains service needs.
type Repository interface {
	// CreateTrackedDomain returns ErrDomainExists when the owner already
	// tracks the name.
	CreateTrackedDomain(ctx context.Context, td *domain.TrackedDomain) error
	FindTrackedDomainByID(ctx context.Context, id string) (*domain.TrackedDomain, error)
	VerifyTrackedDomain(ctx context.Context, id string, method domain.Method) error
	SetNotificationOverride(ctx context.Context, id string, category domain.Category, flags domain.ChannelFlags) error
	ClearNotificationOverride(ctx context.Context, id string, category domain.Category) error
	ArchiveTrackedDomain(ctx context.Context, id string) error
	UnarchiveTrackedDomain(ctx context.Context, id string) error
	DeleteTrackedDomain(ctx context.Context, id string) error
}

// Verifier runs the ownership checks.
type Verifier interface {
	Verify(ctx context.Context, domainName, token string, method domain.Method) (domain.VerificationResult, error)
}

// AutoVerifier schedules background verification attempts for a new domain.
type AutoVerifier interface {
	Schedule(ctx context.Context, trackedDomainID string) error
}

// Refresher captures a domain's snapshot. The first capture is the baseline
// later changes are detected against.
type Refresher interface {
	Refresh(ctx context.Context, trackedDomainID string) (domain.ChangeRecord, error)
}
