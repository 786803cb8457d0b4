package domain

import "time"

// Category groups notifications so users can route them per channel.
type Category string

const (
	CategoryRegistrationChanges Category = "registration_changes"
	CategoryCertificateChanges  Category = "certificate_changes"
	CategoryProviderChanges     Category = "provider_changes"
	CategoryVerification        Category = "verification"
)

// Categories lists every notification category.
var Categories = []Category{
	CategoryRegistrationChanges,
	CategoryCertificateChanges,
	CategoryProviderChanges,
	CategoryVerification,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ChannelFlags says which delivery channels are enabled.
type ChannelFlags struct {
	Email bool `json:"email"`
	InApp bool `json:"inApp"`
}

// Any reports whether at least one channel is enabled.
func (f ChannelFlags) Any() bool { return f.Email || f.InApp }

// DefaultChannelFlags applies when a user has no stored preference.
var DefaultChannelFlags = ChannelFlags{Email: true, InApp: true}

// NotificationPreference is a user's global per-category preference.
type NotificationPreference struct {
	UserID   string       `json:"user_id"`
	Category Category     `json:"category"`
	Channels ChannelFlags `json:"channels"`
}

// Notification is an in-app message row.
type Notification struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	TrackedDomainID string    `json:"tracked_domain_id"`
	Category        Category  `json:"category"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	CreatedAt       time.Time `json:"created_at"`
}
