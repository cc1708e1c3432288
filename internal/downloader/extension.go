package downloader

import (
	"slices"
	"strings"
)

// SupportedExtensions are kept verbatim when a URL ends with one of them.
var SupportedExtensions = []string{"jpg", "png", "jpeg", "JPG", "JPEG"}

// ClassifyExtension derives the file extension for an image URL from the
// text after its final '.'. Known extensions are kept as-is; anything that
// merely contains "jpg" or "png" (case-insensitively, e.g. "jpg?w=640" or
// "PNGx") is normalized to that extension.
func ClassifyExtension(url string) (string, error) {
	raw := url
	if i := strings.LastIndex(url, "."); i >= 0 {
		raw = url[i+1:]
	}

	if slices.Contains(SupportedExtensions, raw) {
		return raw, nil
	}

	lower := strings.ToLower(raw)

	switch {
	case strings.Contains(lower, "jpg"):
		return "jpg", nil
	case strings.Contains(lower, "png"):
		return "png", nil
	}

	return "", &UnsupportedExtensionError{URL: url, Extension: raw}
}
