// Package utils provides shared utility functions for the thinkgate MCP server.
package utils

import (
	"unicode/utf8"
)

// TruncateStr truncates a string to the specified maximum number of UTF-8 characters.
// If the string has fewer than or equal to maxLen characters, returns the string as is.
// Otherwise, truncates the string to maxLen characters and appends "...".
// This function is UTF-8 safe and will not split multi-byte characters.
func TruncateStr(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	// Find the byte position of the maxLen-th rune
	byteCount := 0
	for i := 0; i < maxLen; i++ {
		_, size := utf8.DecodeRuneInString(s[byteCount:])
		if size == 0 {
			break
		}
		byteCount += size
	}
	return s[:byteCount] + "..."
}
