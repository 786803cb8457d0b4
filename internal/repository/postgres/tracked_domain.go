package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/service/domains"
)

const trackedDomainColumns = `
	id, domain_name, owner_user_id, verified, verification_status,
	COALESCE(verification_method, ''), verification_token,
	verification_failed_at, archived_at, notification_overrides,
	created_at, updated_at`

// TrackedDomainRepo implements the tracked-domain persistence used by the
// domains service, the verification workers and the notification resolver.
type TrackedDomainRepo struct{ db *sql.DB }

// NewTrackedDomainRepo creates a Postgres-backed tracked-domain repository.
func NewTrackedDomainRepo(db *sql.DB) *TrackedDomainRepo { return &TrackedDomainRepo{db: db} }

func (r *TrackedDomainRepo) CreateTrackedDomain(ctx context.Context, td *domain.TrackedDomain) error {
	if td.ID == "" {
		td.ID = uuid.New().String()
	}
	if td.VerificationStatus == "" {
		td.VerificationStatus = domain.StatusUnverified
	}
	overrides, err := json.Marshal(overridesOrEmpty(td.NotificationOverrides))
	if err != nil {
		return fmt.Errorf("encode overrides: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO tracked_domains (id, domain_name, owner_user_id, verified, verification_status,
		                             verification_token, notification_overrides, created_at, updated_at)
		VALUES ($1, $2, $3, false, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`, td.ID, td.DomainName, td.OwnerUserID, td.VerificationStatus, td.VerificationToken, overrides,
	).Scan(&td.CreatedAt, &td.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domains.ErrDomainExists
		}
		return fmt.Errorf("create tracked domain: %w", err)
	}
	return nil
}

func (r *TrackedDomainRepo) FindTrackedDomainByID(ctx context.Context, id string) (*domain.TrackedDomain, error) {
	td := &domain.TrackedDomain{}
	var (
		method    string
		status    string
		overrides []byte
		failedAt  sql.NullTime
		archived  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `SELECT `+trackedDomainColumns+`
		FROM tracked_domains WHERE id = $1`, id,
	).Scan(
		&td.ID, &td.DomainName, &td.OwnerUserID, &td.Verified, &status,
		&method, &td.VerificationToken,
		&failedAt, &archived, &overrides,
		&td.CreatedAt, &td.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrTrackedDomainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find tracked domain: %w", err)
	}

	td.VerificationStatus = domain.VerificationStatus(status)
	td.VerificationMethod = domain.Method(method)
	td.VerificationFailedAt = nullTimePtr(failedAt)
	td.ArchivedAt = nullTimePtr(archived)
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &td.NotificationOverrides); err != nil {
			return nil, fmt.Errorf("decode overrides for %s: %w", id, err)
		}
	}
	return td, nil
}

// GetVerifiedTrackedDomainIDs lists every verified, non-archived domain.
func (r *TrackedDomainRepo) GetVerifiedTrackedDomainIDs(ctx context.Context) ([]string, error) {
	return r.queryIDs(ctx, "verified tracked domains", `
		SELECT id FROM tracked_domains
		WHERE verified = true AND archived_at IS NULL
		ORDER BY created_at, id
	`)
}

// GetPendingTrackedDomainIDs lists unverified, non-archived domains with no
// auto-verify run still in flight. Revoked domains are included so a
// re-published token is picked up.
func (r *TrackedDomainRepo) GetPendingTrackedDomainIDs(ctx context.Context) ([]string, error) {
	return r.queryIDs(ctx, "pending tracked domains", `
		SELECT td.id FROM tracked_domains td
		WHERE td.verified = false
		  AND td.archived_at IS NULL
		  AND NOT EXISTS (
		      SELECT 1 FROM workflow_runs wr
		      WHERE wr.tracked_domain_id = td.id
		        AND wr.kind = 'auto_verify'
		        AND wr.status IN ('scheduled', 'claimed')
		  )
		ORDER BY td.created_at, td.id
	`)
}

// VerifyTrackedDomain marks the domain verified with method and clears any
// failing state. Repeating the call is harmless.
func (r *TrackedDomainRepo) VerifyTrackedDomain(ctx context.Context, id string, method domain.Method) error {
	return r.exec(ctx, "verify tracked domain", `
		UPDATE tracked_domains
		SET verified = true, verification_status = 'verified', verification_method = $2,
		    verification_failed_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, id, string(method))
}

// MarkVerificationFailing flags a verified domain as failing. The first
// failure time is kept across repeated calls.
func (r *TrackedDomainRepo) MarkVerificationFailing(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "mark verification failing", `
		UPDATE tracked_domains
		SET verification_status = 'failing',
		    verification_failed_at = COALESCE(verification_failed_at, $2),
		    updated_at = NOW()
		WHERE id = $1
	`, id, at)
}

// RevokeVerification drops ownership. verification_failed_at is left in
// place so a revoked domain reads as "unverified" rather than "pending".
func (r *TrackedDomainRepo) RevokeVerification(ctx context.Context, id string) error {
	return r.exec(ctx, "revoke verification", `
		UPDATE tracked_domains
		SET verified = false, verification_status = 'unverified', verification_method = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id)
}

// SetNotificationOverride replaces the domain's channel flags for one
// category, leaving the other categories' overrides untouched.
func (r *TrackedDomainRepo) SetNotificationOverride(ctx context.Context, id string, category domain.Category, flags domain.ChannelFlags) error {
	raw, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("encode override: %w", err)
	}
	return r.exec(ctx, "set notification override", `
		UPDATE tracked_domains
		SET notification_overrides = jsonb_set(COALESCE(notification_overrides, '{}'::jsonb), ARRAY[$2::text], $3::jsonb, true),
		    updated_at = NOW()
		WHERE id = $1
	`, id, string(category), string(raw))
}

// ClearNotificationOverride drops the domain's override for category so the
// owner's global preference applies again.
func (r *TrackedDomainRepo) ClearNotificationOverride(ctx context.Context, id string, category domain.Category) error {
	return r.exec(ctx, "clear notification override", `
		UPDATE tracked_domains
		SET notification_overrides = notification_overrides - $2::text, updated_at = NOW()
		WHERE id = $1
	`, id, string(category))
}

// ArchiveTrackedDomain stops monitoring the domain. The first archive time
// is kept.
func (r *TrackedDomainRepo) ArchiveTrackedDomain(ctx context.Context, id string) error {
	return r.exec(ctx, "archive tracked domain", `
		UPDATE tracked_domains
		SET archived_at = COALESCE(archived_at, NOW()), updated_at = NOW()
		WHERE id = $1
	`, id)
}

// UnarchiveTrackedDomain puts the domain back under monitoring.
func (r *TrackedDomainRepo) UnarchiveTrackedDomain(ctx context.Context, id string) error {
	return r.exec(ctx, "unarchive tracked domain", `
		UPDATE tracked_domains SET archived_at = NULL, updated_at = NOW() WHERE id = $1
	`, id)
}

// DeleteTrackedDomain removes the domain and its snapshot. Workflow runs
// stay behind and cancel themselves when they next wake up.
func (r *TrackedDomainRepo) DeleteTrackedDomain(ctx context.Context, id string) error {
	return r.exec(ctx, "delete tracked domain", `DELETE FROM tracked_domains WHERE id = $1`, id)
}

func (r *TrackedDomainRepo) queryIDs(ctx context.Context, what, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", what, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *TrackedDomainRepo) exec(ctx context.Context, what, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrTrackedDomainNotFound
	}
	return nil
}

func overridesOrEmpty(m map[domain.Category]domain.ChannelFlags) map[domain.Category]domain.ChannelFlags {
	if m == nil {
		return map[domain.Category]domain.ChannelFlags{}
	}
	return m
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
