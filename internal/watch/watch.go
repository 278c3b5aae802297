// Package watch bootstraps a headless Chrome session and drives
// internal/netwatch's discovery engine against it. Session/browser bootstrap
// is explicitly out of scope for internal/netwatch (spec.md §1); this package
// is the "one layer above" that spec.md leaves for callers to supply,
// grounded on the teacher's internal/capture.Capture.
package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-logr/logr"

	"github.com/felipeplets/percy-cli/internal/assetcache"
	"github.com/felipeplets/percy-cli/internal/directfetch"
	"github.com/felipeplets/percy-cli/internal/hostmatch"
	"github.com/felipeplets/percy-cli/internal/mimeinfer"
	"github.com/felipeplets/percy-cli/internal/netwatch"
	"github.com/felipeplets/percy-cli/internal/urlnorm"
)

// Options configures a watch session end to end: browser bootstrap,
// interception policy, and the idle-wait bound.
type Options struct {
	URL string

	// NavigationTimeout bounds the initial page navigation. A timeout here
	// is non-fatal: the engine still waits for network idle on whatever
	// loaded so far.
	NavigationTimeout time.Duration

	// TotalTimeout bounds the entire session, navigation plus idle wait.
	TotalTimeout time.Duration

	Intercept        bool
	DisableCache     bool
	EnableJavaScript bool

	AllowedHostnames    []string
	DisallowedHostnames []string

	Authorization  *netwatch.Authorization
	RequestHeaders map[string]string

	FetchTimeout time.Duration

	Logger logr.Logger
}

// Result summarizes a completed watch session.
type Result struct {
	Stats     netwatch.Stats
	Resources map[string]netwatch.Resource
	TimedOut  bool
}

// Run bootstraps a headless Chrome allocator, wires a netwatch.Watcher with
// concrete collaborators, navigates to opts.URL, and waits for network idle.
func Run(ctx context.Context, opts Options) (*Result, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...any) {}),
		chromedp.WithErrorf(func(string, ...any) {}),
		chromedp.WithDebugf(func(string, ...any) {}),
	)
	defer browserCancel()

	totalTimeout := opts.TotalTimeout
	if totalTimeout <= 0 {
		totalTimeout = 30 * time.Second
	}
	totalCtx, totalCancel := context.WithTimeout(browserCtx, totalTimeout)
	defer totalCancel()

	// A nil HostMatcher means "no restriction" to netwatch.Watcher (allow
	// every hostname, disallow none); only wire a GlobMatcher when the
	// caller actually configured a pattern list, since a GlobMatcher built
	// from an empty list matches nothing and would invert the allow-list's
	// default-open policy.
	var allowed, disallowed netwatch.HostMatcher
	if len(opts.AllowedHostnames) > 0 {
		m, err := hostmatch.New(opts.AllowedHostnames)
		if err != nil {
			return nil, fmt.Errorf("watch: invalid allowed-hostname pattern: %w", err)
		}
		allowed = m
	}
	if len(opts.DisallowedHostnames) > 0 {
		m, err := hostmatch.New(opts.DisallowedHostnames)
		if err != nil {
			return nil, fmt.Errorf("watch: invalid disallowed-hostname pattern: %w", err)
		}
		disallowed = m
	}

	cache := assetcache.NewMemoryCache()
	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}

	watcher := netwatch.New(netwatch.Options{
		Authorization:  opts.Authorization,
		RequestHeaders: opts.RequestHeaders,
		Logger:         opts.Logger,
		Fetcher:        directfetch.NewClient(fetchTimeout),
		Normalizer:     urlnorm.New(),
		MIMEInferrer:   mimeinfer.New(),
		Intercept: netwatch.InterceptConfig{
			Enabled:             opts.Intercept,
			Cache:               cache,
			AllowedHostnames:    allowed,
			DisallowedHostnames: disallowed,
			DisableCache:        opts.DisableCache,
			EnableJavaScript:    opts.EnableJavaScript,
		},
	})

	if err := watcher.Watch(totalCtx); err != nil {
		return nil, fmt.Errorf("watch: failed to start: %w", err)
	}

	navCtx := totalCtx
	navCancel := func() {}
	if opts.NavigationTimeout > 0 {
		navCtx, navCancel = context.WithTimeout(totalCtx, opts.NavigationTimeout)
	}
	navErr := chromedp.Run(navCtx, chromedp.Navigate(opts.URL))
	navCancel()
	if navErr != nil && !isTimeoutError(navErr) {
		return nil, fmt.Errorf("watch: navigation failed: %w", navErr)
	}

	// Idle only ever returns totalCtx's error (the total timeout, or
	// cancellation) or the idleTimeoutError diagnostic for the hard ceiling
	// (spec.md §8 scenario S6); every such error is reported as TimedOut,
	// never as a hard failure, so the session still reports whatever was
	// captured so far.
	timedOut := false
	if err := watcher.Idle(totalCtx, nil); err != nil {
		timedOut = true
	}

	return &Result{
		Stats:     watcher.Stats(),
		Resources: cache.Snapshot(),
		TimedOut:  timedOut,
	}, nil
}

func isTimeoutError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
