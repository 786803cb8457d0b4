// Package domains implements the tracked-domain lifecycle: creating a
// domain with a fresh verification token, handing it to the auto-verify
// scheduler, and on-demand verification requested by the owner.
//
// The service layer depends on the Repository interface defined in
// repository.go. It never imports net/http or database/sql directly.
package domains
