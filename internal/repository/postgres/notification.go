package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/domainwatch/internal/domain"
)

// NotificationRepo implements notification.Repository. It embeds the
// tracked-domain repository for the domain lookups the resolver needs.
type NotificationRepo struct {
	*TrackedDomainRepo
	db *sql.DB
}

// NewNotificationRepo creates a Postgres-backed notification repository.
func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{TrackedDomainRepo: NewTrackedDomainRepo(db), db: db}
}

// GetNotificationPreference returns nil when the user has not stored a
// preference for the category.
func (r *NotificationRepo) GetNotificationPreference(ctx context.Context, userID string, category domain.Category) (*domain.ChannelFlags, error) {
	var f domain.ChannelFlags
	err := r.db.QueryRowContext(ctx, `
		SELECT email, in_app FROM notification_preferences
		WHERE user_id = $1 AND category = $2
	`, userID, string(category)).Scan(&f.Email, &f.InApp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification preference: %w", err)
	}
	return &f, nil
}

// SetNotificationPreference stores a user's global preference for a category.
func (r *NotificationRepo) SetNotificationPreference(ctx context.Context, p domain.NotificationPreference) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (user_id, category, email, in_app, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, category) DO UPDATE
		SET email = EXCLUDED.email, in_app = EXCLUDED.in_app, updated_at = NOW()
	`, p.UserID, string(p.Category), p.Channels.Email, p.Channels.InApp)
	if err != nil {
		return fmt.Errorf("set notification preference: %w", err)
	}
	return nil
}

func (r *NotificationRepo) GetUserEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get user email: %w", err)
	}
	return email, nil
}

func (r *NotificationRepo) InsertNotification(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	var tdID interface{}
	if n.TrackedDomainID != "" {
		tdID = n.TrackedDomainID
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO notifications (id, user_id, tracked_domain_id, category, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`, n.ID, n.UserID, tdID, string(n.Category), n.Title, n.Body).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// DeleteReadNotifications removes up to limit read notifications created
// before cutoff.
func (r *NotificationRepo) DeleteReadNotifications(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE id IN (
			SELECT id FROM notifications
			WHERE read_at IS NOT NULL AND created_at < $1
			LIMIT $2
		)
	`, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("delete read notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
