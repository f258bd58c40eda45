// Package services defines the business logic for the certificate-request
// lifecycle, requester assignment, and search. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes should be performed at the
// handler layer.
package services

import "errors"

var (
	// ErrRequestNotFound indicates that the referenced certificate request
	// does not exist.
	ErrRequestNotFound = errors.New("certificate request not found")

	// ErrUserNotFound indicates that no user matches the given id or
	// normalized identification number.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidTransition is returned when a status-changing operation is
	// attempted from an illegal current state (notably, any mutation on an
	// already-completed request). The record is left unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrMissingChannelIdentifier is returned when an operation that keys on
	// the originating conversation receives an empty channel identifier.
	ErrMissingChannelIdentifier = errors.New("channel identifier is required")

	// ErrMissingCertificateType is returned when a request is created without
	// a certificate type.
	ErrMissingCertificateType = errors.New("certificate type is required")

	// ErrEmptyErrorMessage is returned when a failure transition is attempted
	// without an error message.
	ErrEmptyErrorMessage = errors.New("error message is required")

	// ErrEmptyIdentificationNumber is returned when an identification event
	// carries a number that is empty after normalization.
	ErrEmptyIdentificationNumber = errors.New("identification number is required")

	// ErrEmptySearchTerm is returned when a search term is empty after
	// trimming. No query is executed.
	ErrEmptySearchTerm = errors.New("search term is required")

	// ErrConflict signals a concurrent-write conflict detected by the store.
	// Transitions are idempotent-safe to retry; request creation is not, so
	// the calling layer decides the retry policy.
	ErrConflict = errors.New("concurrent write conflict, retry")
)
