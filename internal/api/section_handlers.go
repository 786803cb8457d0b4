package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/domainwatch/internal/domain"
	"github.com/ignite/domainwatch/internal/pkg/httputil"
	"github.com/ignite/domainwatch/internal/service/revalidate"
	"github.com/ignite/domainwatch/internal/service/verification"
)

type revalidateRequest struct {
	Domain  string `json:"domain"`
	Section string `json:"section"`
}

// HandleRevalidate refetches one section. A fetch failure is still a 200;
// the result carries success=false and the error.
//
//	POST /api/revalidate {"domain": "example.com", "section": "hosting"}
func (h *Handlers) HandleRevalidate(w http.ResponseWriter, r *http.Request) {
	if h.revalidator == nil {
		unavailable(w, "revalidation")
		return
	}
	var req revalidateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	section, err := revalidate.ParseSection(req.Section)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, h.revalidator.Revalidate(r.Context(), req.Domain, section))
}

type cachedSectionResponse struct {
	Domain    string    `json:"domain"`
	Section   string    `json:"section"`
	Data      any       `json:"data"`
	CheckedAt time.Time `json:"checkedAt"`
}

// HandleCachedSection returns the last successful revalidation of a section.
//
//	GET /api/sections/{domain}/{section}
func (h *Handlers) HandleCachedSection(w http.ResponseWriter, r *http.Request) {
	if h.revalidator == nil {
		unavailable(w, "revalidation")
		return
	}
	section, err := revalidate.ParseSection(chi.URLParam(r, "section"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	name, err := verification.NormalizeDomain(chi.URLParam(r, "domain"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, checkedAt, ok := h.revalidator.Cached(r.Context(), name, section)
	if !ok {
		httputil.NotFound(w, "section not cached")
		return
	}
	httputil.OK(w, cachedSectionResponse{Domain: name, Section: section.Name(), Data: data, CheckedAt: checkedAt})
}

// HandleSetPreference stores the caller's global channel choice for a
// notification category.
//
//	PUT /api/notification-preferences/{category} {"email": true, "inApp": false}
func (h *Handlers) HandleSetPreference(w http.ResponseWriter, r *http.Request) {
	if h.prefs == nil {
		unavailable(w, "notification preferences")
		return
	}
	category := domain.Category(chi.URLParam(r, "category"))
	if !category.Valid() {
		httputil.ErrorCode(w, http.StatusBadRequest, "validation_error", "unknown notification category")
		return
	}
	var flags domain.ChannelFlags
	if !httputil.Decode(w, r, &flags) {
		return
	}
	pref := domain.NotificationPreference{UserID: userIDFrom(r.Context()), Category: category, Channels: flags}
	if err := h.prefs.SetNotificationPreference(r.Context(), pref); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, pref)
}
