package services

import "errors"

// Error taxonomy for the booking core. Controllers map these onto HTTP
// statuses; nothing below should ever surface as a panic.
var (
	// ErrNotFound means the booking or post does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput means a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition means the requested transition is not legal from
	// the booking's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnauthorized means the actor has no rights over this booking.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedPayload means a webhook body could not be parsed far enough
	// to recover the booking reference.
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrUpstreamTimeout means a gateway detail fetch exceeded its bound. The
	// operation is aborted without state mutation so the gateway's webhook
	// redelivery can retry it.
	ErrUpstreamTimeout = errors.New("gateway request timed out")

	// ErrStatusConflict means the compare-and-swap on the booking status lost
	// a race and retries were exhausted.
	ErrStatusConflict = errors.New("booking status changed concurrently")
)
