package domains

import (
	"errors"

	"github.com/ignite/domainwatch/internal/domain"
)

// Sentinel errors for the domains service layer.
var (
	ErrNotFound     = domain.ErrTrackedDomainNotFound
	ErrDomainExists = errors.New("domain is already tracked by this user")
	ErrMissingOwner = errors.New("owner user id is required")
	ErrArchived     = errors.New("tracked domain is archived")

	ErrUnknownCategory = errors.New("unknown notification category")
)
