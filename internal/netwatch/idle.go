package netwatch

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

const (
	defaultHardCeiling       = 30 * time.Second
	hardCeilingWarnThreshold = 60 * time.Second
	idlePollInterval         = 10 * time.Millisecond
)

var (
	hardCeilingOnce  sync.Once
	hardCeilingValue time.Duration
)

// hardCeiling returns the process-wide idle-wait ceiling, read once from
// PERCY_NETWORK_IDLE_WAIT_TIMEOUT at first use (spec.md §9).
func hardCeiling(logger logr.Logger) time.Duration {
	hardCeilingOnce.Do(func() {
		hardCeilingValue = defaultHardCeiling
		raw := strings.TrimSpace(os.Getenv("PERCY_NETWORK_IDLE_WAIT_TIMEOUT"))
		if raw == "" {
			return
		}
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			logger.Error(err, "invalid PERCY_NETWORK_IDLE_WAIT_TIMEOUT, using default", "value", raw)
			return
		}
		hardCeilingValue = time.Duration(ms) * time.Millisecond
		if hardCeilingValue > hardCeilingWarnThreshold {
			logger.Info("PERCY_NETWORK_IDLE_WAIT_TIMEOUT exceeds 60000ms; idle waits may block far longer than expected", "value", hardCeilingValue)
		}
	})
	return hardCeilingValue
}

// Idle blocks until filter's in-flight set has been empty continuously for
// the configured quiet window (spec.md §4.F), subject to the hard ceiling.
// A nil filter matches every in-flight record.
func (w *Watcher) Idle(ctx context.Context, filter func(RequestRecord) bool) error {
	if filter == nil {
		filter = func(RequestRecord) bool { return true }
	}

	quietWindow := w.opts.NetworkIdleTimeout
	if quietWindow <= 0 {
		quietWindow = 100 * time.Millisecond
	}

	ceilingCtx, cancel := context.WithTimeout(ctx, hardCeiling(w.opts.Logger))
	defer cancel()

	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	var quietSince time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ceilingCtx.Done():
			// ceilingCtx is derived from ctx, so a cancelled ctx closes both
			// channels; report the caller's error in that case.
			if err := ctx.Err(); err != nil {
				return err
			}
			return w.idleTimeoutError(filter)
		case <-ticker.C:
			inFlight := w.registry.inFlight(filter)
			if len(inFlight) == 0 {
				if quietSince.IsZero() {
					quietSince = time.Now()
				}
				if time.Since(quietSince) >= quietWindow {
					return nil
				}
			} else {
				quietSince = time.Time{}
			}
		}
	}
}

// idleTimeoutError builds the diagnostic error for a ceiling breach,
// listing every request still in flight (spec.md §8 scenario S6).
func (w *Watcher) idleTimeoutError(filter func(RequestRecord) bool) error {
	inFlight := w.registry.inFlight(filter)
	urls := make([]string, 0, len(inFlight))
	for _, r := range inFlight {
		urls = append(urls, r.URL)
	}
	return fmt.Errorf("netwatch: idle timeout after %s; Active requests: %s", hardCeiling(w.opts.Logger), strings.Join(urls, ", "))
}
