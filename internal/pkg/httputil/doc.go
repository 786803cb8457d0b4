// Package httputil holds the JSON response and request helpers used by the
// API handlers, including the error envelope.
package httputil
