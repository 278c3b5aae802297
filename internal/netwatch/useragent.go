package netwatch

import "strings"

// DefaultUserAgent derives the default Watch user agent from the browser's
// self-reported UA string (spec.md §6: "the browser's reported user agent
// with the literal substring 'Headless' removed"), so captured requests
// present as non-headless to the origin.
func DefaultUserAgent(reported string) string {
	return strings.ReplaceAll(reported, "Headless", "")
}
