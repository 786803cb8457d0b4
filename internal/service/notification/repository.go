package notification

import (
	"context"

	"github.com/ignite/domainwatch/internal/domain"
)

// Repository is the persistence the notification service needs.
type Repository interface {
	// FindTrackedDomainByID returns domain.ErrTrackedDomainNotFound when absent.
	FindTrackedDomainByID(ctx context.Context, id string) (*domain.TrackedDomain, error)
	// GetNotificationPreference returns nil when the user has no stored row.
	GetNotificationPreference(ctx context.Context, userID string, category domain.Category) (*domain.ChannelFlags, error)
	GetUserEmail(ctx context.Context, userID string) (string, error)
	InsertNotification(ctx context.Context, n *domain.Notification) error
}
