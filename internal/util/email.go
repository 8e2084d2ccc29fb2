package util

import "strings"

// NormalizeEmail lowercases and trims an address for comparison and
// storage.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
