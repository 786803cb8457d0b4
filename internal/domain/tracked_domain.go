package domain

import (
	"errors"
	"time"
)

// VerificationStatus is the persisted ownership state shown to users.
type VerificationStatus string

const (
	StatusVerified   VerificationStatus = "verified"
	StatusFailing    VerificationStatus = "failing"
	StatusUnverified VerificationStatus = "unverified"
)

// TrackedDomain is a domain a user monitors. It is created unverified with a
// fresh token and only mutated by verification-driven writes.
type TrackedDomain struct {
	ID                    string                    `json:"id"`
	DomainName            string                    `json:"domain_name"`
	OwnerUserID           string                    `json:"owner_user_id"`
	Verified              bool                      `json:"verified"`
	VerificationStatus    VerificationStatus        `json:"verification_status"`
	VerificationMethod    Method                    `json:"verification_method,omitempty"`
	VerificationToken     string                    `json:"verification_token"`
	VerificationFailedAt  *time.Time                `json:"verification_failed_at,omitempty"`
	ArchivedAt            *time.Time                `json:"archived_at,omitempty"`
	NotificationOverrides map[Category]ChannelFlags `json:"notification_overrides,omitempty"`
	CreatedAt             time.Time                 `json:"created_at"`
	UpdatedAt             time.Time                 `json:"updated_at"`
}

// IsArchived reports whether the domain is excluded from monitoring.
func (d *TrackedDomain) IsArchived() bool { return d.ArchivedAt != nil }

// DisplayStatus is what the UI renders. An unverified domain that was never
// verified (and so never revoked) is still "pending" from the user's point
// of view.
func (d *TrackedDomain) DisplayStatus() string {
	switch {
	case d.VerificationStatus == StatusFailing:
		return string(StatusFailing)
	case d.Verified:
		return string(StatusVerified)
	case d.VerificationMethod == "" && d.VerificationFailedAt == nil:
		return "pending"
	default:
		return string(StatusUnverified)
	}
}

// ErrTrackedDomainNotFound is returned by repositories when no tracked
// domain has the requested id.
var ErrTrackedDomainNotFound = errors.New("tracked domain not found")
