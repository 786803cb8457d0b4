package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ignite/domainwatch/internal/pkg/logger"
)

const maxBodyBytes = 64 << 10

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// JSON encodes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("httputil: encode response", "error", err)
	}
}

func OK(w http.ResponseWriter, v any)      { JSON(w, http.StatusOK, v) }
func Created(w http.ResponseWriter, v any) { JSON(w, http.StatusCreated, v) }

// Error writes a client error without a code.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorResponse{Error: msg})
}

// ErrorCode writes a client error with a machine-readable code.
func ErrorCode(w http.ResponseWriter, status int, code, msg string) {
	JSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func NotFound(w http.ResponseWriter, msg string) { ErrorCode(w, http.StatusNotFound, "not_found", msg) }
func Unauthorized(w http.ResponseWriter)         { ErrorCode(w, http.StatusUnauthorized, "unauthorized", "unauthorized") }

// InternalError logs err under the request id and answers with the id only,
// so a report from a client can be matched to the log line.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	id := middleware.GetReqID(r.Context())
	logger.Error("httputil: internal error", "request_id", id, "method", r.Method, "path", r.URL.Path, "error", err)
	JSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error", RequestID: id})
}

// Decode reads a bounded JSON body into dst, rejecting unknown fields. On
// failure it writes a 400 and returns false.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		ErrorCode(w, http.StatusBadRequest, "invalid_json", "invalid JSON: "+err.Error())
		return false
	}
	return true
}
