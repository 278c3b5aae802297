package netwatch

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
)

// pausedRequest is the normalized input to the Interception Decider,
// abstracting over its two callers: Fetch.requestPaused (the common path)
// and Network.requestWillBeSent in service-worker mode (spec.md §4.D, §4.C).
type pausedRequest struct {
	requestID     network.RequestID
	interceptID   fetch.RequestID // empty for the service-worker flow
	url           string
	method        string
	headers       network.Headers
	resourceType  network.ResourceType
	serviceWorker bool
}

// decideInterception implements the Interception Decider (spec.md §4.D).
// Exactly one of fulfillRequest, continueRequest or failRequest is issued
// per call, except in the service-worker flow (no outbound Fetch command at
// all) or when the abort race in handleSendOutcome swallows the failure.
func (w *Watcher) decideInterception(ctx context.Context, pr pausedRequest) {
	w.counters.requestsSeen.Add(1)

	rec := &RequestRecord{
		RequestID:    pr.requestID,
		InterceptID:  pr.interceptID,
		URL:          pr.url,
		Method:       pr.method,
		Headers:      pr.headers,
		ResourceType: pr.resourceType,
	}

	if prior, ok := w.registry.takeForRedirect(pr.requestID); ok {
		rec.RedirectChain = append(append([]RequestRecord{}, prior.RedirectChain...), prior)
	}

	w.registry.insert(rec)

	if pr.serviceWorker {
		// The Registry is updated but no outbound Fetch command is issued
		// (spec.md §9 open question: service-worker-mocked requests never
		// produce outbound Fetch commands, since there is no paused
		// request to decide on).
		return
	}

	cached, err := w.lookupCache(ctx, rec.originURL())
	if err != nil {
		w.opts.Logger.V(1).Info("interception decider: cache lookup failed", "url", rec.originURL(), "error", err)
		cached = nil
	}

	// Decision table (spec.md §4.D). "not a root resource" in the
	// no-cache row is read as "not the top-level document request" here:
	// a document request is never failed outright even when its hostname
	// is disallowed, since that would abort the page's own navigation
	// rather than merely decline to cache an asset.
	switch {
	case cached == nil && w.hostnameDisallowed(rec.URL) && rec.ResourceType != network.ResourceTypeDocument:
		w.counters.requestsFailed.Add(1)
		w.failRequest(ctx, rec, network.ErrorReasonAborted)
	case cached != nil && cached.Root:
		w.counters.resourcesFulfilled.Add(1)
		w.fulfillFromCache(ctx, rec, *cached)
	case cached != nil && (cached.Provided || !w.opts.Intercept.DisableCache):
		w.counters.resourcesFulfilled.Add(1)
		w.fulfillFromCache(ctx, rec, *cached)
	default:
		w.counters.requestsContinued.Add(1)
		w.continueRequest(ctx, rec)
	}
}

func (w *Watcher) lookupCache(ctx context.Context, originURL string) (*Resource, error) {
	if w.opts.Intercept.Cache == nil {
		return nil, nil
	}
	return w.opts.Intercept.Cache.GetResource(ctx, w.normalize(originURL))
}

// fulfillFromCache issues Fetch.fulfillRequest from a cached resource
// (spec.md §4.D's payload contract).
func (w *Watcher) fulfillFromCache(ctx context.Context, rec *RequestRecord, res Resource) {
	status := res.Status
	if status == 0 {
		status = 200
	}

	var headers []*fetch.HeaderEntry
	for name, values := range res.Headers {
		for _, v := range values {
			headers = append(headers, &fetch.HeaderEntry{
				Name:  strings.ToLower(name),
				Value: v,
			})
		}
	}

	err := w.safeSend(rec.RequestID, func() error {
		return fetch.FulfillRequest(rec.InterceptID, int64(status)).
			WithResponseHeaders(headers).
			WithBody(base64.StdEncoding.EncodeToString(res.Content)).
			Do(ctx)
	})
	w.handleSendOutcome(ctx, rec, err)
}

func (w *Watcher) continueRequest(ctx context.Context, rec *RequestRecord) {
	err := w.safeSend(rec.RequestID, func() error {
		return fetch.ContinueRequest(rec.InterceptID).Do(ctx)
	})
	w.handleSendOutcome(ctx, rec, err)
}

func (w *Watcher) failRequest(ctx context.Context, rec *RequestRecord, reason network.ErrorReason) {
	err := w.safeSend(rec.RequestID, func() error {
		return fetch.FailRequest(rec.InterceptID, reason).Do(ctx)
	})
	w.handleSendOutcome(ctx, rec, err)
}
