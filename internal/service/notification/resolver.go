package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/domainwatch/internal/domain"
)

// Resolver computes the effective channels for a tracked domain and category.
type Resolver struct {
	repo Repository
}

// NewResolver creates a Resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the channels to use. A missing domain yields no channels.
// An override for the category is used verbatim; otherwise the owner's
// global preference applies, defaulting to every channel.
func (r *Resolver) Resolve(ctx context.Context, trackedDomainID string, category domain.Category) (domain.ChannelFlags, error) {
	if !category.Valid() {
		return domain.ChannelFlags{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	td, err := r.repo.FindTrackedDomainByID(ctx, trackedDomainID)
	if errors.Is(err, domain.ErrTrackedDomainNotFound) {
		return domain.ChannelFlags{}, nil
	}
	if err != nil {
		return domain.ChannelFlags{}, fmt.Errorf("resolve channels: %w", err)
	}
	return r.resolveFor(ctx, td, category)
}

func (r *Resolver) resolveFor(ctx context.Context, td *domain.TrackedDomain, category domain.Category) (domain.ChannelFlags, error) {
	if override, ok := td.NotificationOverrides[category]; ok {
		return override, nil
	}

	pref, err := r.repo.GetNotificationPreference(ctx, td.OwnerUserID, category)
	if err != nil {
		return domain.ChannelFlags{}, fmt.Errorf("resolve channels: %w", err)
	}
	if pref == nil {
		return domain.DefaultChannelFlags, nil
	}
	return *pref, nil
}
