package worker

import (
	"context"
	"time"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/pkg/logger"
	"github.com/ignite/domainwatch/internal/service/notification"
)

// ErrRunConflict means another worker already holds or finished the unit.
var ErrRunConflict = domain.ErrRunConflict

// Verifier runs the ownership checks.
type Verifier interface {
	Verify(ctx context.Context, domainName, token string, method domain.Method) (domain.VerificationResult, error)
}

// DomainStore is the tracked-domain persistence the workflows use.
type DomainStore interface {
	FindTrackedDomainByID(ctx context.Context, id string) (*domain.TrackedDomain, error)
	VerifyTrackedDomain(ctx context.Context, id string, method domain.Method) error
	MarkVerificationFailing(ctx context.Context, id string, at time.Time) error
	RevokeVerification(ctx context.Context, id string) error
	GetVerifiedTrackedDomainIDs(ctx context.Context) ([]string, error)
	GetPendingTrackedDomainIDs(ctx context.Context) ([]string, error)
}

// RunStore persists workflow runs.
type RunStore interface {
	ScheduleAutoVerify(ctx context.Context, trackedDomainID string, dueAt time.Time) (bool, error)
	ClaimDueRuns(ctx context.Context, kind domain.RunKind, workerID string, limit int) ([]domain.WorkflowRun, error)
	RescheduleRun(ctx context.Context, id, workerID string, attempt int, dueAt time.Time) error
	CompleteRun(ctx context.Context, id, workerID string, result interface{}) error
	FailRun(ctx context.Context, id, workerID string, result interface{}) error
	BeginUnit(ctx context.Context, kind domain.RunKind, trackedDomainID, key, workerID string) (string, error)
	// TouchRun renews the claim so recovery does not hand the run to
	// another worker while it is still queued behind slower runs.
	TouchRun(ctx context.Context, id, workerID string) error
}

// Refresher refreshes a domain's snapshot after a successful check. The
// first refresh of a domain stores its baseline.
type Refresher interface {
	Refresh(ctx context.Context, trackedDomainID string) (domain.ChangeRecord, error)
}

// captureBaseline takes the first snapshot of a newly verified domain. A
// failure only delays the baseline until the next re-verification.
func captureBaseline(ctx context.Context, r Refresher, log *logger.Logger, trackedDomainID string) {
	if r == nil {
		return
	}
	if _, err := r.Refresh(ctx, trackedDomainID); err != nil {
		log.Warn("baseline snapshot failed", "tracked_domain_id", trackedDomainID, "error", err)
	}
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, msg notification.Message) (notification.Delivery, error)
}
