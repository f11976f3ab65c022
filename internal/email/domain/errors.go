package domain

import "errors"

var (
	ErrNotFound              = errors.New("email not found")
	ErrValidation            = errors.New("validation failed")
	ErrInvalidRecipient      = errors.New("invalid recipient")
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrTransportFailure      = errors.New("mail transport failure")
	ErrAlreadyResponded      = errors.New("email already responded")
	ErrNoDraft               = errors.New("no draft response to send")
	ErrInvalidTransition     = errors.New("invalid status transition")
)
