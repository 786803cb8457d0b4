package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/pkg/httputil"
	"github.com/ignite/domainwatch/internal/pkg/logger"
	"github.com/ignite/domainwatch/internal/service/domains"
	"github.com/ignite/domainwatch/internal/service/revalidate"
	"github.com/ignite/domainwatch/internal/worker"
)

// DomainService is the tracked-domain lifecycle.
type DomainService interface {
	Create(ctx context.Context, ownerID, rawName string) (*domains.Created, error)
	Get(ctx context.Context, id string) (*domain.TrackedDomain, error)
	Verify(ctx context.Context, id string, method domain.Method) (*domain.TrackedDomain, domain.VerificationResult, error)
	SetNotificationOverride(ctx context.Context, id string, category domain.Category, flags domain.ChannelFlags) (*domain.TrackedDomain, error)
	ClearNotificationOverride(ctx context.Context, id string, category domain.Category) (*domain.TrackedDomain, error)
	Archive(ctx context.Context, id string) (*domain.TrackedDomain, error)
	Unarchive(ctx context.Context, id string) (*domain.TrackedDomain, error)
	Delete(ctx context.Context, id string) error
}

// Revalidator refetches and caches domain sections.
type Revalidator interface {
	Revalidate(ctx context.Context, domainName string, section revalidate.Section) revalidate.Result
	Cached(ctx context.Context, domainName string, section revalidate.Section) (any, time.Time, bool)
}

// Refresher rebuilds a domain's snapshot.
type Refresher interface {
	Refresh(ctx context.Context, trackedDomainID string) (domain.ChangeRecord, error)
}

// SnapshotHistory lists archived snapshots.
type SnapshotHistory interface {
	History(ctx context.Context, trackedDomainID string) ([]domain.Snapshot, error)
}

// ReverifySweep runs the daily re-verification.
type ReverifySweep interface {
	Run(ctx context.Context) (worker.SweepReport, error)
}

// PendingSweep runs the daily pending verification.
type PendingSweep interface {
	Run(ctx context.Context) (worker.PendingReport, error)
}

// PreferenceStore saves global notification preferences.
type PreferenceStore interface {
	SetNotificationPreference(ctx context.Context, p domain.NotificationPreference) error
}

// Handlers holds the HTTP handlers and the services behind them. Optional
// services may be nil; their routes then answer 503.
type Handlers struct {
	domains     DomainService
	revalidator Revalidator
	refresher   Refresher
	history     SnapshotHistory
	reverify    ReverifySweep
	pending     PendingSweep
	prefs       PreferenceStore
	log         *logger.Logger

	sweepTimeout time.Duration
}

// Deps bundles the services the handlers call.
type Deps struct {
	Domains     DomainService
	Revalidator Revalidator
	Refresher   Refresher
	History     SnapshotHistory
	Reverify    ReverifySweep
	Pending     PendingSweep
	Preferences PreferenceStore

	// SweepTimeout bounds each cron sweep. Zero means 30 minutes.
	SweepTimeout time.Duration
}

// NewHandlers creates the handler set.
func NewHandlers(d Deps, log *logger.Logger) *Handlers {
	if log == nil {
		log = logger.Default()
	}
	if d.SweepTimeout <= 0 {
		d.SweepTimeout = defaultSweepTimeout
	}
	return &Handlers{
		domains:      d.Domains,
		revalidator:  d.Revalidator,
		refresher:    d.Refresher,
		history:      d.History,
		reverify:     d.Reverify,
		pending:      d.Pending,
		prefs:        d.Preferences,
		log:          log.With("component", "api"),
		sweepTimeout: d.SweepTimeout,
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	httputil.JSON(w, status, data)
}

func unavailable(w http.ResponseWriter, what string) {
	httputil.Error(w, http.StatusServiceUnavailable, what+" is not configured")
}

// decodeOptional decodes a JSON body when one was sent.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return httputil.Decode(w, r, dst)
}
