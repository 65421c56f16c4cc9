package handlers

// Stable machine-readable error codes returned in ErrorResponse.Code.
const (
	ErrCodeValidation         = "validation_error"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
	ErrCodeConflict           = "conflict"
	ErrCodeInternal           = "internal_error"
	ErrCodeUpstream           = "upstream_error"
	ErrCodeTranscriptNotReady = "transcript_not_ready"
	ErrCodeUpgradeRequired    = "upgrade_required"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeNotConfigured      = "not_configured"
)
