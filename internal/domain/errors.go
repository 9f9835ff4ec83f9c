package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrNotAcknowledged marks a write the store did not confirm.
	ErrNotAcknowledged = errors.New("write not acknowledged")
	// ErrDeliveryFailed is returned once every delivery backend has failed.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrCodeInvalid covers unknown, expired and mismatched verification codes alike.
	ErrCodeInvalid        = errors.New("verification code is incorrect or has expired")
	ErrEmailNotAssociated = errors.New("email is not associated with a user")
)
