package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/pkg/httputil"
	"github.com/ignite/domainwatch/internal/service/domains"
	"github.com/ignite/domainwatch/internal/service/verification"
)

type createDomainRequest struct {
	Domain string `json:"domain"`
}

// HandleCreateDomain starts tracking a domain for the caller.
//
//	POST /api/domains {"domain": "example.com"}
func (h *Handlers) HandleCreateDomain(w http.ResponseWriter, r *http.Request) {
	var req createDomainRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	created, err := h.domains.Create(r.Context(), userIDFrom(r.Context()), req.Domain)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.Created(w, created)
}

// owned loads a tracked domain and hides it from anyone but its owner.
func (h *Handlers) owned(w http.ResponseWriter, r *http.Request) (*domain.TrackedDomain, bool) {
	td, err := h.domains.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if td.OwnerUserID != userIDFrom(r.Context()) {
		writeError(w, r, domains.ErrNotFound)
		return nil, false
	}
	return td, true
}

type domainResponse struct {
	*domain.TrackedDomain
	DisplayStatus string `json:"display_status"`
}

// HandleGetDomain returns one of the caller's domains.
//
//	GET /api/domains/{id}
func (h *Handlers) HandleGetDomain(w http.ResponseWriter, r *http.Request) {
	td, ok := h.owned(w, r)
	if !ok {
		return
	}
	respondDomain(w, td)
}

type verifyRequest struct {
	Method string `json:"method"`
}

type verifyResponse struct {
	Domain   domainResponse `json:"domain"`
	Verified bool           `json:"verified"`
	Method   domain.Method  `json:"method,omitempty"`
}

// HandleVerifyDomain runs an on-demand ownership check. The body is
// optional; without a method every method is tried.
//
//	POST /api/domains/{id}/verify {"method": "dns_txt"}
func (h *Handlers) HandleVerifyDomain(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	method := domain.Method(strings.TrimSpace(req.Method))
	if method != "" && !method.Valid() {
		writeError(w, r, &verification.ValidationError{Field: "method", Err: verification.ErrInvalidMethod})
		return
	}

	td, ok := h.owned(w, r)
	if !ok {
		return
	}
	fresh, res, err := h.domains.Verify(r.Context(), td.ID, method)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, verifyResponse{
		Domain:   domainResponse{TrackedDomain: fresh, DisplayStatus: fresh.DisplayStatus()},
		Verified: res.Verified,
		Method:   res.Method,
	})
}

// HandleRefreshDomain rebuilds the domain's snapshot now and returns what
// changed.
//
//	POST /api/domains/{id}/refresh
func (h *Handlers) HandleRefreshDomain(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		unavailable(w, "snapshot refresh")
		return
	}
	td, ok := h.owned(w, r)
	if !ok {
		return
	}
	if !td.Verified {
		httputil.ErrorCode(w, http.StatusConflict, "not_verified", "domain must be verified before it is monitored")
		return
	}
	changes, err := h.refresher.Refresh(r.Context(), td.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, changes)
}

// HandleSnapshotHistory lists the domain's archived snapshots.
//
//	GET /api/domains/{id}/history
func (h *Handlers) HandleSnapshotHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		unavailable(w, "snapshot archive")
		return
	}
	td, ok := h.owned(w, r)
	if !ok {
		return
	}
	snaps, err := h.history.History(r.Context(), td.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"snapshots": snaps, "count": len(snaps)})
}
