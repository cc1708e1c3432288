package search

import "fmt"

// ProviderError represents a failed page request: transport failures,
// non-200 responses and undecodable bodies.
type ProviderError struct {
	Operation  string // The operation that failed (e.g., "search_page")
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP errors)
	APIMessage string // Error message from the provider or network layer
	Err        error  // Underlying error, if any
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("search provider error during %s (HTTP %d): %s", e.Operation, e.StatusCode, e.APIMessage)
	}
	return fmt.Sprintf("search provider error during %s: %s", e.Operation, e.APIMessage)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
