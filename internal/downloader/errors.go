package downloader

import "fmt"

// StatusError is returned for image responses other than 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string // first bytes of the response body, for the log line
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status code %d for url %s", e.StatusCode, e.URL)
}

// UnsupportedExtensionError means no image extension could be derived from a URL.
type UnsupportedExtensionError struct {
	URL       string
	Extension string
}

func (e *UnsupportedExtensionError) Error() string {
	return fmt.Sprintf("extension: %s, not supported for url: %s", e.Extension, e.URL)
}
