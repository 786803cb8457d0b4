package notification

import "errors"

// Sentinel errors for the notification service layer.
var (
	ErrUnknownCategory = errors.New("unknown notification category")
	ErrNoTemplate      = errors.New("no template for category")
)
