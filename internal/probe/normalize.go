package probe

import (
	"regexp"
	"strings"
)

// schemePrefix matches an RFC 3986 scheme followed by "://".
var schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://`)

// HasScheme reports whether raw already starts with "<scheme>://".
func HasScheme(raw string) bool {
	return schemePrefix.MatchString(raw)
}

// Normalize turns a listed website into the URL probed first. Surrounding
// whitespace is dropped. Empty input stays empty, input with a scheme is
// returned unchanged, and anything else gets an https:// prefix.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if HasScheme(raw) {
		return raw
	}
	return "https://" + raw
}

// downgrade rewrites the first "https://" in target to "http://".
func downgrade(target string) string {
	return strings.Replace(target, "https://", "http://", 1)
}
