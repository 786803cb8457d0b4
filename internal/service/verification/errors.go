package verification

import (
	"errors"
	"fmt"
)

// Sentinel errors for the verification service layer.
var (
	ErrInvalidMethod = errors.New("unknown verification method")
	ErrMissingToken  = errors.New("verification token is required")
	ErrInvalidDomain = errors.New("invalid domain name")
)

// ValidationError reports bad input, as opposed to a domain that could not
// be verified yet.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
