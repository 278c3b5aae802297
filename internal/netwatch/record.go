package netwatch

import (
	"context"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
)

// RequestRecord is the in-memory Go rendering of spec.md §3's Request
// Record: the per-requestId state tracked from the moment a request is
// first observed until it is forgotten. network.RequestID and
// fetch.RequestID are reused directly from cdproto rather than re-declared,
// since they are already the exact wire types the Network and Fetch domains
// exchange.
type RequestRecord struct {
	RequestID    network.RequestID
	InterceptID  fetch.RequestID // empty for the service-worker flow
	URL          string
	Method       string
	Headers      network.Headers
	ResourceType network.ResourceType

	// RedirectChain holds every prior hop for this logical navigation,
	// earliest first. RedirectChain[i].URL is the URL that redirected to
	// RedirectChain[i+1]; the record's own URL is the final hop.
	RedirectChain []RequestRecord

	// Response is attached once Network.responseReceived has fired for
	// this requestId. nil until then.
	Response *ResponseRecord
}

// originURL returns the first URL in the redirect chain, or the record's
// own URL if it was never redirected. The Interception Decider consults the
// cache keyed by this URL (spec.md §4.D).
func (r RequestRecord) originURL() string {
	if len(r.RedirectChain) > 0 {
		return r.RedirectChain[0].URL
	}
	return r.URL
}

// ResponseRecord is the response half of a Request Record. buffer is the
// "deferred buffer() closure" from spec.md §3 and §9: fetching the body is
// an on-demand capability, not eagerly performed when the response arrives.
type ResponseRecord struct {
	Status   int64
	MimeType string
	Headers  network.Headers

	buffer func(ctx context.Context) ([]byte, error)
}

// Buffer invokes the deferred body-fetch capability. The Response Capturer
// is the only intended caller.
func (r *ResponseRecord) Buffer(ctx context.Context) ([]byte, error) {
	return r.buffer(ctx)
}
