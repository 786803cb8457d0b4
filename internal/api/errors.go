package api

import (
	"errors"
	"net/http"

	"github.com/ignite/domainwatch/internal/pkg/httputil"
	"github.com/ignite/domainwatch/internal/service/domains"
	"github.com/ignite/domainwatch/internal/service/monitor"
	"github.com/ignite/domainwatch/internal/service/revalidate"
	"github.com/ignite/domainwatch/internal/service/verification"
)

// writeError maps service errors to responses. Anything unrecognised is a
// 500 with the cause kept out of the body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case verification.IsValidationError(err), errors.Is(err, revalidate.ErrUnknownSection),
		errors.Is(err, domains.ErrUnknownCategory):
		httputil.ErrorCode(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domains.ErrNotFound):
		httputil.NotFound(w, "tracked domain not found")
	case errors.Is(err, domains.ErrDomainExists):
		httputil.ErrorCode(w, http.StatusConflict, "domain_exists", err.Error())
	case errors.Is(err, domains.ErrArchived), errors.Is(err, monitor.ErrArchived):
		httputil.ErrorCode(w, http.StatusConflict, "domain_archived", "tracked domain is archived")
	case errors.Is(err, domains.ErrMissingOwner):
		httputil.Unauthorized(w)
	default:
		httputil.InternalError(w, r, err)
	}
}
