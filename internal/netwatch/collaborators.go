package netwatch

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

// Resource is the shape produced and consumed by the external resource
// cache collaborator (spec.md §6). Header values are lists because CDP
// reports folded headers joined by "\n" and downstream consumers expect a
// list (spec.md §4.E).
type Resource struct {
	URL      string
	Content  []byte
	MimeType string
	SHA      string
	Status   int
	Headers  map[string][]string

	// Root marks a resource representing the top-level document being
	// rendered; always fulfilled from cache regardless of other policy.
	Root bool

	// Provided marks a resource injected by an external source rather
	// than discovered from the page; fulfilled from cache regardless of
	// the DisableCache policy.
	Provided bool
}

// ResourceCache is the external collaborator behind intercept.getResource /
// intercept.saveResource (spec.md §1: out of scope for this package, only
// the interface lives here). SaveResource must be safe to call
// concurrently from multiple Response Capturers (spec.md §5).
type ResourceCache interface {
	GetResource(ctx context.Context, url string) (*Resource, error)
	SaveResource(ctx context.Context, r Resource) error
}

// HTTPFetcher performs the direct, out-of-browser HTTP fetch used by the
// Response Capturer's font re-fetch path (spec.md §4.E). auth is nil when
// no credentials are configured.
type HTTPFetcher interface {
	Fetch(ctx context.Context, url string, auth *Authorization) ([]byte, error)
}

// HostMatcher reports whether a hostname matches a configured glob list
// (spec.md §1: "hostname-glob matching", out of scope for this package).
type HostMatcher interface {
	Match(hostname string) bool
}

// URLNormalizer normalizes a URL the same way across cache lookups and
// capture writes, so cache keys agree (spec.md §1: "URL normalization",
// out of scope for this package).
type URLNormalizer interface {
	Normalize(url string) string
}

// MIMEInferrer infers a MIME type from a URL path, and recognizes font
// bodies, when the browser-reported MIME type is uninformative (spec.md
// §4.E; "MIME inference" is out of scope for this package).
type MIMEInferrer interface {
	InferFromPath(path string) (mimeType string, ok bool)
	IsFont(mimeType string, body []byte) bool
}

// Authorization carries HTTP Basic credentials used both for Fetch.authRequired
// challenges and for the direct font re-fetch.
type Authorization struct {
	Username string
	Password string
}

// InterceptConfig configures the Interception Decider and Response
// Capturer's cache and policy collaborators (spec.md §6 "intercept").
type InterceptConfig struct {
	// Enabled turns on the Fetch domain and the Interception Decider. When
	// false, only the Network domain is observed: no Request Records are
	// created (spec.md's data model ties record creation to _handleRequest,
	// which only runs on the interception path), so Idle will simply never
	// see anything to wait out.
	Enabled bool

	Cache ResourceCache

	DisallowedHostnames HostMatcher
	AllowedHostnames    HostMatcher

	// DisableCache, when false (the default), lets any cached resource
	// satisfy a request even if it wasn't marked Provided ("caching-through
	// is enabled"). When true, only Root or Provided cache entries are
	// fulfilled; everything else continues to the network.
	DisableCache bool

	// EnableJavaScript allows the Response Capturer to save captured
	// Script/XHR/Fetch/EventSource bodies, not just document-adjacent
	// visual assets.
	EnableJavaScript bool
}

// Options configures a Watcher (spec.md §6 "Configuration inputs").
type Options struct {
	// NetworkIdleTimeout is the quiet-window length. Defaults to 100ms.
	NetworkIdleTimeout time.Duration

	Authorization  *Authorization
	RequestHeaders map[string]string

	// CaptureMockedServiceWorker, when true, does not bypass service
	// workers and additionally drives the Interception Decider from
	// Network.requestWillBeSent (no outbound Fetch commands in that path).
	CaptureMockedServiceWorker bool

	UserAgent string
	Intercept InterceptConfig

	// Meta is an opaque annotation attached to every log line this Watcher
	// emits; it carries no semantics of its own.
	Meta any

	Logger logr.Logger

	Fetcher      HTTPFetcher
	Normalizer   URLNormalizer
	MIMEInferrer MIMEInferrer
}
