// Package utils provides small formatting helpers for CLI output
package utils

import "strings"

// TruncateString shortens s to at most max runes, appending an ellipsis when
// anything was cut
func TruncateString(s string, max int) string {
	if max <= 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// ShortCommit abbreviates a commit hash to the conventional short form.
// Anything that is not a full hex hash is returned unchanged.
func ShortCommit(rev string) string {
	if len(rev) == 40 && !strings.ContainsFunc(rev, func(r rune) bool {
		return !strings.ContainsRune("0123456789abcdef", r)
	}) {
		return rev[:7]
	}
	return rev
}
