// Package sanitizer hides credentials before request details are logged.
package sanitizer

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// sensitiveHeaders are redacted by Headers, in canonical form.
var sensitiveHeaders = []string{
	"Authorization",
	"Cookie",
	"Proxy-Authorization",
	"X-Api-Key",
	"X-Goog-Api-Key",
}

// Headers flattens h for logging, replacing credential values with
// [S256:hash] so equal secrets stay recognisable across log lines.
func Headers(h http.Header, salt string) map[string]string {
	if len(h) == 0 {
		return nil
	}

	out := make(map[string]string, len(h))
	for name, values := range h {
		canonical := http.CanonicalHeaderKey(name)
		if slices.Contains(sensitiveHeaders, canonical) {
			redacted := make([]string, len(values))
			for i, v := range values {
				redacted[i] = hashToken(v, salt)
			}
			values = redacted
		}
		out[canonical] = strings.Join(values, ", ")
	}
	return out
}

// URL hides userinfo and the query string, which commonly carry tokens.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparsable URL]"
	}
	if u.User != nil {
		u.User = url.User("redacted")
	}
	if u.RawQuery != "" {
		u.RawQuery = "redacted"
	}
	return u.String()
}

func hashToken(secret, salt string) string {
	sum := sha256.Sum256([]byte(salt + secret))
	return "[S256:" + hex.EncodeToString(sum[:8]) + "]"
}
