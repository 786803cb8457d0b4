// Package verification proves ownership of a tracked domain.
//
// The Engine tries DNS TXT, then a well-known HTML file, then a meta tag on
// the home page, and reports the first method that succeeds. It never
// retries and never writes anything; retrying is the job of the
// auto-verify scheduler and the sweeps in internal/worker. Every outbound
// HTTP request goes through safefetch with a short timeout and a small
// byte cap.
package verification
