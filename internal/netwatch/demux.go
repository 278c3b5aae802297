package netwatch

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
)

// handleRequestWillBeSent implements spec.md §4.C's Network.requestWillBeSent
// contract.
func (w *Watcher) handleRequestWillBeSent(ctx context.Context, evt *network.EventRequestWillBeSent) {
	if strings.HasPrefix(evt.Request.URL, "data:") {
		return
	}

	if w.opts.Intercept.Enabled {
		w.registry.setPending(evt)

		if w.opts.CaptureMockedServiceWorker {
			w.decideInterception(ctx, pausedRequest{
				requestID:     evt.RequestID,
				url:           evt.Request.URL,
				method:        evt.Request.Method,
				headers:       evt.Request.Headers,
				resourceType:  evt.Type,
				serviceWorker: true,
			})
		}
	}

	// Resolved regardless of interception mode (spec.md §4.C).
	w.registry.latchesFor(evt.RequestID).requestWillBeSent.resolve()
}

// handleRequestPaused implements spec.md §4.C's Fetch.requestPaused
// contract. It is only meaningful when intercepting; Watch only subscribes
// Fetch domain commands in that mode, but the guard here keeps the handler
// correct even if a stray event arrives.
func (w *Watcher) handleRequestPaused(ctx context.Context, evt *fetch.EventRequestPaused) {
	if !w.opts.Intercept.Enabled {
		return
	}

	requestID := evt.NetworkID
	interceptID := evt.RequestID

	if err := w.registry.latchesFor(requestID).requestWillBeSent.wait(ctx); err != nil {
		return
	}

	pending, ok := w.registry.popPending(requestID)
	if !ok {
		return
	}

	// Redirect guard (spec.md §9 open question): a same-requestId redirect
	// produces a pending event whose URL/method no longer match this pause.
	// The paused event is dropped entirely; the browser delivers a fresh
	// requestPaused for the post-redirect URL.
	if pending.Request.URL != evt.Request.URL || pending.Request.Method != evt.Request.Method {
		return
	}

	w.decideInterception(ctx, pausedRequest{
		requestID:    requestID,
		interceptID:  interceptID,
		url:          evt.Request.URL,
		method:       evt.Request.Method,
		headers:      evt.Request.Headers,
		resourceType: evt.ResourceType,
	})
}

// handleAuthRequired implements spec.md §4.C's Fetch.authRequired contract.
func (w *Watcher) handleAuthRequired(ctx context.Context, evt *fetch.EventAuthRequired) {
	interceptID := evt.RequestID

	if w.registry.hasAuthenticated(interceptID) {
		_ = fetch.ContinueWithAuth(interceptID, &fetch.AuthChallengeResponse{
			Response: fetch.AuthChallengeResponseResponseCancelAuth,
		}).Do(ctx)
		return
	}

	if w.opts.Authorization != nil {
		w.registry.markAuthenticated(interceptID)
		_ = fetch.ContinueWithAuth(interceptID, &fetch.AuthChallengeResponse{
			Response: fetch.AuthChallengeResponseResponseProvideCredentials,
			Username: w.opts.Authorization.Username,
			Password: w.opts.Authorization.Password,
		}).Do(ctx)
		return
	}

	_ = fetch.ContinueWithAuth(interceptID, &fetch.AuthChallengeResponse{
		Response: fetch.AuthChallengeResponseResponseDefault,
	}).Do(ctx)
}

// handleResponseReceived implements spec.md §4.C's Network.responseReceived
// contract, attaching a deferred body() capability rather than eagerly
// fetching it.
func (w *Watcher) handleResponseReceived(ctx context.Context, evt *network.EventResponseReceived) {
	if err := w.registry.latchesFor(evt.RequestID).requestWillBeSent.wait(ctx); err != nil {
		return
	}

	rec, ok := w.registry.get(evt.RequestID)
	if !ok {
		return
	}

	requestID := evt.RequestID
	resp := evt.Response

	rec.Response = &ResponseRecord{
		Status:   resp.Status,
		MimeType: resp.MimeType,
		Headers:  resp.Headers,
		buffer: func(bctx context.Context) ([]byte, error) {
			body, base64Encoded, err := network.GetResponseBody(requestID).Do(bctx)
			if err != nil {
				return nil, err
			}
			if base64Encoded {
				return base64.StdEncoding.DecodeString(body)
			}
			return []byte(body), nil
		},
	}

	w.registry.latchesFor(evt.RequestID).responseReceived.resolve()
}

// handleEventSourceMessageReceived implements spec.md §4.C's
// Network.eventSourceMessageReceived contract: server-sent-event streams
// never "finish", so the record is forgotten immediately to avoid blocking
// idle forever.
func (w *Watcher) handleEventSourceMessageReceived(ctx context.Context, evt *network.EventEventSourceMessageReceived) {
	if err := w.registry.latchesFor(evt.RequestID).requestWillBeSent.wait(ctx); err != nil {
		return
	}
	if rec, ok := w.registry.get(evt.RequestID); ok {
		w.registry.forget(rec, false)
	}
}

// handleLoadingFinished implements spec.md §4.C's Network.loadingFinished
// contract.
func (w *Watcher) handleLoadingFinished(ctx context.Context, evt *network.EventLoadingFinished) {
	lp := w.registry.latchesFor(evt.RequestID)
	if err := lp.requestWillBeSent.wait(ctx); err != nil {
		return
	}
	if err := lp.responseReceived.wait(ctx); err != nil {
		return
	}

	rec, ok := w.registry.get(evt.RequestID)
	if !ok {
		return
	}

	w.captureResponse(ctx, rec)
	w.registry.forget(rec, false)
}

// handleLoadingFailed implements spec.md §4.C's Network.loadingFailed
// contract.
func (w *Watcher) handleLoadingFailed(ctx context.Context, evt *network.EventLoadingFailed) {
	if err := w.registry.latchesFor(evt.RequestID).requestWillBeSent.wait(ctx); err != nil {
		return
	}

	// The Aborted set is keyed by requestId independent of record presence
	// (spec.md §3): mark it unconditionally so a requestPaused/decideInterception
	// that hasn't inserted the record yet still observes the abort and never
	// sends a continue/fail for it (spec.md §8 scenario S5).
	if evt.ErrorText == "net::ERR_ABORTED" {
		w.registry.markAborted(evt.RequestID)
	}

	rec, ok := w.registry.get(evt.RequestID)
	if !ok {
		return
	}

	switch {
	case evt.ErrorText == "net::ERR_ABORTED":
		w.opts.Logger.V(1).Info("loadingFailed: request aborted", "requestId", evt.RequestID, "url", rec.URL)
		w.registry.forget(rec, false)
	case evt.ErrorText != "net::ERR_FAILED":
		// Generic ERR_FAILED is suppressed: a more specific log likely
		// preceded it.
		w.opts.Logger.V(1).Info("loadingFailed", "requestId", evt.RequestID, "url", rec.URL, "errorText", evt.ErrorText)
		w.registry.forget(rec, false)
	default:
		w.registry.forget(rec, false)
	}
}
