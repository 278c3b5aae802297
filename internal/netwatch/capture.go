package netwatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/chromedp/cdproto/network"
)

const maxCaptureBytes = 25 * 1024 * 1024 // 25 MiB (spec.md §6 limits)

var allowedCaptureStatuses = map[int64]bool{
	200: true, 201: true, 301: true, 302: true, 304: true, 307: true, 308: true,
}

var allowedNonJSResourceTypes = map[network.ResourceType]bool{
	network.ResourceTypeDocument:   true,
	network.ResourceTypeStylesheet: true,
	network.ResourceTypeImage:      true,
	network.ResourceTypeMedia:      true,
	network.ResourceTypeFont:       true,
	network.ResourceTypeOther:      true,
}

// captureResponse implements the Response Capturer (spec.md §4.E). It runs
// from handleLoadingFinished, after both lifecycle latches for the request
// have resolved.
func (w *Watcher) captureResponse(ctx context.Context, rec *RequestRecord) {
	if rec.Response == nil {
		return
	}

	normalized := w.normalize(rec.URL)

	if w.opts.Intercept.Cache != nil {
		if existing, err := w.opts.Intercept.Cache.GetResource(ctx, normalized); err == nil && existing != nil {
			if existing.Root || existing.Provided || w.opts.Intercept.DisableCache {
				return
			}
		}
	}

	if !w.passesMetadataFilters(rec) {
		return
	}

	body, err := rec.Response.Buffer(ctx)
	if err != nil {
		w.opts.Logger.V(1).Info("response capturer: body fetch failed", "url", rec.URL, "error", err)
		return
	}

	if len(body) == 0 || len(body) > maxCaptureBytes {
		return
	}

	mimeType := w.effectiveMimeType(rec, body)

	if w.isFontMime(mimeType, body) {
		refetched, ferr := w.refetchFont(ctx, rec.URL)
		if ferr != nil {
			w.opts.Logger.V(1).Info("response capturer: font re-fetch failed", "url", rec.URL, "error", ferr)
			return
		}
		body = refetched
	}

	if w.opts.Intercept.Cache == nil {
		return
	}

	resource := Resource{
		URL:      normalized,
		Content:  body,
		MimeType: mimeType,
		SHA:      sha256Hex(body),
		Status:   int(rec.Response.Status),
		Headers:  splitHeaderValues(rec.Response.Headers),
	}

	if err := w.opts.Intercept.Cache.SaveResource(ctx, resource); err != nil {
		w.opts.Logger.V(1).Info("response capturer: save resource failed", "url", rec.URL, "error", err)
		return
	}
	w.counters.resourcesCaptured.Add(1)
}

// passesMetadataFilters runs the filters checkable before any body fetch:
// response presence, hostname, status code, and resource type (spec.md §4.E
// filters 1-2, 5 and 6).
func (w *Watcher) passesMetadataFilters(rec *RequestRecord) bool {
	if !w.hostnameAllowed(rec.URL) {
		return false
	}
	if rec.Response == nil || !allowedCaptureStatuses[rec.Response.Status] {
		return false
	}
	if !w.opts.Intercept.EnableJavaScript && !allowedNonJSResourceTypes[rec.ResourceType] {
		return false
	}
	return true
}

// effectiveMimeType refines an uninformative browser-reported MIME type
// using the path-based MIMEInferrer collaborator (spec.md §4.E).
func (w *Watcher) effectiveMimeType(rec *RequestRecord, body []byte) string {
	mimeType := rec.Response.MimeType
	if mimeType != "text/plain" || w.opts.MIMEInferrer == nil {
		return mimeType
	}
	u, err := url.Parse(rec.URL)
	if err != nil {
		return mimeType
	}
	if inferred, ok := w.opts.MIMEInferrer.InferFromPath(u.Path); ok {
		return inferred
	}
	return mimeType
}

func (w *Watcher) isFontMime(mimeType string, body []byte) bool {
	if strings.Contains(mimeType, "font") {
		return true
	}
	if w.opts.MIMEInferrer != nil {
		return w.opts.MIMEInferrer.IsFont(mimeType, body)
	}
	return false
}

// refetchFont re-fetches a font body directly over HTTP rather than trusting
// the (sometimes truncated) body the browser reports (spec.md §4.E).
func (w *Watcher) refetchFont(ctx context.Context, rawURL string) ([]byte, error) {
	if w.opts.Fetcher == nil {
		return nil, fmt.Errorf("netwatch: no HTTPFetcher configured for font re-fetch")
	}
	return w.opts.Fetcher.Fetch(ctx, rawURL, w.opts.Authorization)
}

// sha256Hex returns the hex-encoded SHA-256 digest of body, matching the
// upstream percy's content-addressed resource identity (spec.md §6 resource
// shape: "sha").
func sha256Hex(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func splitHeaderValues(headers network.Headers) map[string][]string {
	out := make(map[string][]string, len(headers))
	for name, raw := range headers {
		out[name] = strings.Split(fmt.Sprint(raw), "\n")
	}
	return out
}
