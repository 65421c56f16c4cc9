// Package providers holds shared types for the external HTTP services the
// application calls (the voice provider and the LLM provider).
package providers

import "fmt"

// UpstreamError reports a non-2xx response from an external provider. The
// status and body are preserved so handlers can attach the upstream detail
// to the client-facing error instead of flattening it into a generic
// failure.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.Status)
}
