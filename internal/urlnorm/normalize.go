// Package urlnorm normalizes URLs so cache lookups and capture writes agree
// on a key: the scheme and host are lower-cased, the default port for the
// scheme is dropped, and the fragment is stripped. net/url is sufficient
// here; there is no parsing or canonicalization beyond what it already
// exposes.
package urlnorm

import (
	"net/url"
	"strings"
)

// Normalizer implements netwatch.URLNormalizer.
type Normalizer struct{}

// New returns a Normalizer.
func New() Normalizer { return Normalizer{} }

// Normalize implements netwatch.URLNormalizer. If rawURL fails to parse, it
// is returned unchanged: normalization is a best-effort cache-key
// refinement, not a validity check.
func (Normalizer) Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if port := u.Port(); port != "" && isDefaultPort(u.Scheme, port) {
		u.Host = u.Hostname()
	}

	return u.String()
}

func isDefaultPort(scheme, port string) bool {
	switch scheme {
	case "http":
		return port == "80"
	case "https":
		return port == "443"
	default:
		return false
	}
}
