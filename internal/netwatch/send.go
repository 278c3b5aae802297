package netwatch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
)

// ErrInterceptionIDInvalid is the typed replacement for the original
// implementation's string-matching on "Invalid InterceptionId" / an
// aborted sentinel (spec.md §9 design notes). Safe Send raises it
// synchronously when an outbound command would reference an
// already-aborted requestId.
var ErrInterceptionIDInvalid = errors.New("netwatch: interception id invalid (request aborted)")

// safeSend guards an outbound Fetch command keyed by requestID against
// requests the browser has already reported ERR_ABORTED for (spec.md
// §4.G). It never sends in that case.
func (w *Watcher) safeSend(requestID network.RequestID, send func() error) error {
	if w.registry.isAborted(requestID) {
		return fmt.Errorf("%w: requestId=%s", ErrInterceptionIDInvalid, requestID)
	}
	return send()
}

// handleSendOutcome implements the abort-race handling from spec.md §4.D
// and §7: a send that fails because the browser already invalidated the
// interceptId yields one scheduler tick, rechecks the Aborted set, and
// either returns silently (confirmed abort) or attempts one best-effort
// failRequest, swallowing any further error. A session-closed error is
// always swallowed.
func (w *Watcher) handleSendOutcome(ctx context.Context, rec *RequestRecord, err error) {
	if err == nil {
		return
	}

	if isSessionClosing(err) {
		return
	}

	if errors.Is(err, ErrInterceptionIDInvalid) || isInvalidInterceptionID(err) {
		runtime.Gosched()
		if w.registry.isAborted(rec.RequestID) {
			return
		}
		_ = w.safeSend(rec.RequestID, func() error {
			return fetch.FailRequest(rec.InterceptID, network.ErrorReasonFailed).Do(ctx)
		})
		return
	}

	w.opts.Logger.V(1).Info("interception decider: outbound send failed", "requestId", rec.RequestID, "interceptId", rec.InterceptID, "error", err)
}

func isInvalidInterceptionID(err error) bool {
	return strings.Contains(err.Error(), "Invalid InterceptionId")
}

func isSessionClosing(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "context canceled") ||
		strings.Contains(msg, "session closed") ||
		strings.Contains(msg, "target closed")
}
