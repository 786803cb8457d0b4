package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/pkg/httputil"
)

func respondDomain(w http.ResponseWriter, td *domain.TrackedDomain) {
	httputil.OK(w, domainResponse{TrackedDomain: td, DisplayStatus: td.DisplayStatus()})
}

// HandleArchiveDomain stops monitoring one of the caller's domains.
//
//	POST /api/domains/{id}/archive
func (h *Handlers) HandleArchiveDomain(w http.ResponseWriter, r *http.Request) {
	td, ok := h.owned(w, r)
	if !ok {
		return
	}
	archived, err := h.domains.Archive(r.Context(), td.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondDomain(w, archived)
}

// HandleUnarchiveDomain resumes monitoring.
//
//	POST /api/domains/{id}/unarchive
func (h *Handlers) HandleUnarchiveDomain(w http.ResponseWriter, r *http.Request) {
	td, ok := h.owned(w, r)
	if !ok {
		return
	}
	restored, err := h.domains.Unarchive(r.Context(), td.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondDomain(w, restored)
}

// HandleDeleteDomain stops tracking a domain altogether.
//
//	DELETE /api/domains/{id}
func (h *Handlers) HandleDeleteDomain(w http.ResponseWriter, r *http.Request) {
	td, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := h.domains.Delete(r.Context(), td.ID); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"id": td.ID, "deleted": true})
}

// HandleSetOverride routes one notification category of a domain to the
// given channels, ignoring the caller's global preference for it.
//
//	PUT /api/domains/{id}/notification-overrides/{category} {"email": false, "inApp": true}
func (h *Handlers) HandleSetOverride(w http.ResponseWriter, r *http.Request) {
	category := domain.Category(chi.URLParam(r, "category"))
	var flags domain.ChannelFlags
	if !httputil.Decode(w, r, &flags) {
		return
	}
	td, ok := h.owned(w, r)
	if !ok {
		return
	}
	updated, err := h.domains.SetNotificationOverride(r.Context(), td.ID, category, flags)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondDomain(w, updated)
}

// HandleClearOverride drops a domain's override for one category.
//
//	DELETE /api/domains/{id}/notification-overrides/{category}
func (h *Handlers) HandleClearOverride(w http.ResponseWriter, r *http.Request) {
	td, ok := h.owned(w, r)
	if !ok {
		return
	}
	updated, err := h.domains.ClearNotificationOverride(r.Context(), td.ID, domain.Category(chi.URLParam(r, "category")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondDomain(w, updated)
}
