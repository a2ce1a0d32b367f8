// Package privacy scrubs credentials and query strings from text that leaves
// the process through logs or error telemetry.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
)

const redacted = "redacted"

var (
	// Any scheme, so mongodb:// and postgres:// URIs are caught along with http.
	urlPattern    = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.-]*://\S+`)
	secretPattern = regexp.MustCompile(`(?i)(password|passwd|token|api[_-]?key|dsn)[=:]\S+`)
)

// ScrubMessage sanitizes every URL in message and redacts key=value secrets.
// SPARQL query text travels in URL query strings and is dropped with them.
func ScrubMessage(message string) string {
	scrubbed := urlPattern.ReplaceAllStringFunc(message, SanitizeURL)
	return secretPattern.ReplaceAllString(scrubbed, "$1=[REDACTED]")
}

// SanitizeURL removes the password and the query string from a URL while
// keeping scheme, user, host and path. Unparseable input is replaced by a
// short hash so that equal inputs still compare equal in reports.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		hash := sha256.Sum256([]byte(raw))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), redacted)
		}
	}
	if u.RawQuery != "" || u.ForceQuery {
		u.RawQuery = "[REDACTED]"
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
