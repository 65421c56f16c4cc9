// Package services defines the business logic for sessions, analyses,
// profiles, quotas, and dashboard stats. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrProfileNotFound indicates the authenticated user has no application
	// profile. Distinct from an anonymous caller: the token verified but the
	// account was never provisioned.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProfileExists is returned when a profile already exists for the
	// given auth id.
	ErrProfileExists = errors.New("profile already exists")

	// ErrCrossAccount is returned when a non-admin caller tries to create or
	// modify a profile belonging to a different auth subject.
	ErrCrossAccount = errors.New("cannot write another account's profile")

	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrQuotaExceeded is returned when a demo-tier profile has used up its
	// free sessions or minutes, or a paid profile has exhausted its
	// subscription minutes.
	ErrQuotaExceeded = errors.New("usage quota exceeded")

	// ErrTranscriptNotReady is returned when the voice provider reports the
	// conversation but its transcript is still empty after the polling
	// budget is spent. The caller should retry shortly; this is a timing
	// condition, not an upstream failure.
	ErrTranscriptNotReady = errors.New("transcript not ready")

	// ErrValidation is returned for missing or malformed request fields.
	// Wrapped with a field-specific message.
	ErrValidation = errors.New("validation failed")
)
