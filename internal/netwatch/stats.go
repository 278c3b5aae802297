package netwatch

import "sync/atomic"

// Stats is a point-in-time snapshot of engine activity, useful for the CLI
// summary and for diagnostics; it is not part of spec.md's invariant set.
type Stats struct {
	RequestsSeen       int64
	ResourcesFulfilled int64
	RequestsContinued  int64
	RequestsFailed     int64
	ResourcesCaptured  int64
}

// counters holds the atomic fields backing Stats. Incremented from the
// Interception Decider and Response Capturer; read by Watcher.Stats.
type counters struct {
	requestsSeen       atomic.Int64
	resourcesFulfilled atomic.Int64
	requestsContinued  atomic.Int64
	requestsFailed     atomic.Int64
	resourcesCaptured  atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		RequestsSeen:       c.requestsSeen.Load(),
		ResourcesFulfilled: c.resourcesFulfilled.Load(),
		RequestsContinued:  c.requestsContinued.Load(),
		RequestsFailed:     c.requestsFailed.Load(),
		ResourcesCaptured:  c.resourcesCaptured.Load(),
	}
}

// Stats returns a snapshot of engine activity counters.
func (w *Watcher) Stats() Stats {
	return w.counters.snapshot()
}
