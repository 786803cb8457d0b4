package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ignite/domainwatch/internal/pkg/httputil"
)

const defaultSweepTimeout = 30 * time.Minute

// sweepContext detaches a sweep from the triggering request so a dropped
// cron connection cannot cancel units mid-flight. The response write
// deadline is pushed past the sweep's own timeout.
func (h *Handlers) sweepContext(w http.ResponseWriter, r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.sweepTimeout)
	deadline := time.Now().Add(h.sweepTimeout + time.Minute)
	if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.log.Warn("extend cron write deadline", "error", err)
	}
	return ctx, cancel
}

// HandleReverifyCron runs the daily re-verification sweep.
//
//	GET /api/cron/reverify
func (h *Handlers) HandleReverifyCron(w http.ResponseWriter, r *http.Request) {
	if h.reverify == nil {
		unavailable(w, "reverification sweep")
		return
	}
	ctx, cancel := h.sweepContext(w, r)
	defer cancel()
	report, err := h.reverify.Run(ctx)
	if err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	httputil.OK(w, report)
}

// HandleVerifyPendingCron runs the daily pending verification sweep.
//
//	GET /api/cron/verify-pending
func (h *Handlers) HandleVerifyPendingCron(w http.ResponseWriter, r *http.Request) {
	if h.pending == nil {
		unavailable(w, "pending verification sweep")
		return
	}
	ctx, cancel := h.sweepContext(w, r)
	defer cancel()
	report, err := h.pending.Run(ctx)
	if err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	httputil.OK(w, report)
}
