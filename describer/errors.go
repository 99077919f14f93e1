package describer

import (
	"errors"
	"fmt"
	"strings"
)

// ProviderError is a remote or network failure from a provider. The message
// carries the original provider error text.
type ProviderError struct {
	StatusCode int // 0 when the request never reached the provider
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
	}
	return "provider error: " + e.Message
}

// VisionRejected reports whether err looks like the provider rejecting the
// image payload itself, rather than a general failure. Those get a
// remediation message instead of the raw provider text.
func VisionRejected(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	if pe.StatusCode < 400 || pe.StatusCode >= 500 {
		return false
	}
	return strings.Contains(strings.ToLower(pe.Message), "image")
}

// StatusOf returns the HTTP status carried by a ProviderError, or 0.
func StatusOf(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}
