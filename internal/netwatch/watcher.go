package netwatch

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/go-logr/logr"
)

// Watcher attaches to an already-bootstrapped CDP page session and runs the
// network discovery engine described in spec.md. Session/browser bootstrap
// is an external concern (spec.md §1): callers pass a context that already
// carries a chromedp target, typically created with chromedp.NewContext
// one layer above this package.
type Watcher struct {
	opts     Options
	registry *registry
	counters counters
}

// New constructs a Watcher. Call Watch to subscribe to the page's protocol
// event stream, then Idle to wait for network idle.
func New(opts Options) *Watcher {
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	if opts.Meta != nil {
		opts.Logger = opts.Logger.WithValues("meta", opts.Meta)
	}
	if opts.NetworkIdleTimeout <= 0 {
		opts.NetworkIdleTimeout = 100 * time.Millisecond
	}
	return &Watcher{
		opts:     opts,
		registry: newRegistry(),
	}
}

// Watch issues the one-time outbound bootstrap commands (spec.md §6) and
// subscribes to the inbound protocol events. It returns once the
// subscription is registered; callers then drive the page (navigation,
// etc.) and call Idle to wait for network idle. Only this initial setup and
// Idle propagate errors to the caller — per spec.md §7, inbound handler
// errors never halt the page.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := network.Enable().Do(ctx); err != nil {
		return fmt.Errorf("netwatch: Network.enable: %w", err)
	}
	if err := network.SetBypassServiceWorker(!w.opts.CaptureMockedServiceWorker).Do(ctx); err != nil {
		return fmt.Errorf("netwatch: Network.setBypassServiceWorker: %w", err)
	}
	if err := network.SetCacheDisabled(true).Do(ctx); err != nil {
		return fmt.Errorf("netwatch: Network.setCacheDisabled: %w", err)
	}

	if w.opts.UserAgent != "" {
		if err := network.SetUserAgentOverride(w.opts.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("netwatch: Network.setUserAgentOverride: %w", err)
		}
	}

	if len(w.opts.RequestHeaders) > 0 {
		headers := make(network.Headers, len(w.opts.RequestHeaders))
		for k, v := range w.opts.RequestHeaders {
			headers[k] = v
		}
		if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
			return fmt.Errorf("netwatch: Network.setExtraHTTPHeaders: %w", err)
		}
	}

	if w.opts.Intercept.Enabled {
		if err := fetch.Enable().
			WithHandleAuthRequests(true).
			WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}).
			Do(ctx); err != nil {
			return fmt.Errorf("netwatch: Fetch.enable: %w", err)
		}
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		// Each handler runs in its own goroutine so that one handler
		// suspending on a lifecycle latch never blocks delivery of
		// unrelated events (spec.md §5).
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			go w.handleRequestWillBeSent(ctx, e)
		case *fetch.EventRequestPaused:
			go w.handleRequestPaused(ctx, e)
		case *fetch.EventAuthRequired:
			go w.handleAuthRequired(ctx, e)
		case *network.EventResponseReceived:
			go w.handleResponseReceived(ctx, e)
		case *network.EventEventSourceMessageReceived:
			go w.handleEventSourceMessageReceived(ctx, e)
		case *network.EventLoadingFinished:
			go w.handleLoadingFinished(ctx, e)
		case *network.EventLoadingFailed:
			go w.handleLoadingFailed(ctx, e)
		}
	})

	return nil
}

func (w *Watcher) hostnameAllowed(rawURL string) bool {
	m := w.opts.Intercept.AllowedHostnames
	if m == nil {
		return true
	}
	return m.Match(hostnameOf(rawURL))
}

func (w *Watcher) hostnameDisallowed(rawURL string) bool {
	m := w.opts.Intercept.DisallowedHostnames
	if m == nil {
		return false
	}
	return m.Match(hostnameOf(rawURL))
}

func (w *Watcher) normalize(rawURL string) string {
	if w.opts.Normalizer == nil {
		return rawURL
	}
	return w.opts.Normalizer.Normalize(rawURL)
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
