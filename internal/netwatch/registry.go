package netwatch

import (
	"sync"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
)

// registry is the single-writer Request Registry (spec.md §4.B): in-flight
// Request Records, pending pre-pause events, active auth attempts, and the
// aborted set, all guarded by one mutex so the redirect-archival operation
// (forget + insert) is never observed half-applied.
type registry struct {
	mu sync.Mutex

	records         map[network.RequestID]*RequestRecord
	pending         map[network.RequestID]*network.EventRequestWillBeSent
	authentications map[fetch.RequestID]struct{}
	aborted         map[network.RequestID]struct{}
	latches         map[network.RequestID]*latchPair
}

func newRegistry() *registry {
	return &registry{
		records:         make(map[network.RequestID]*RequestRecord),
		pending:         make(map[network.RequestID]*network.EventRequestWillBeSent),
		authentications: make(map[fetch.RequestID]struct{}),
		aborted:         make(map[network.RequestID]struct{}),
		latches:         make(map[network.RequestID]*latchPair),
	}
}

// latchesFor returns the latch pair for requestID, creating it lazily on
// first access by either the producer or a consumer (spec.md §4.A's
// "default-map" design note).
func (r *registry) latchesFor(requestID network.RequestID) *latchPair {
	r.mu.Lock()
	defer r.mu.Unlock()

	lp, ok := r.latches[requestID]
	if !ok {
		lp = newLatchPair()
		r.latches[requestID] = lp
	}
	return lp
}

func (r *registry) setPending(evt *network.EventRequestWillBeSent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[evt.RequestID] = evt
}

// popPending removes and returns the pending requestWillBeSent event for
// requestID, if one exists.
func (r *registry) popPending(requestID network.RequestID) (*network.EventRequestWillBeSent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	evt, ok := r.pending[requestID]
	if ok {
		delete(r.pending, requestID)
	}
	return evt, ok
}

func (r *registry) insert(rec *RequestRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.RequestID] = rec
}

func (r *registry) get(requestID network.RequestID) (*RequestRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[requestID]
	return rec, ok
}

// forget removes rec from the in-flight map and its interceptId from the
// Authentications set (spec.md §4.B). keepPending=false also drops any
// pending entry for the same requestId; the redirect path uses
// takeForRedirect instead, which never touches Pending at all (the
// requestPaused handler has already popped it by the time a redirect is
// detected).
func (r *registry) forget(rec *RequestRecord, keepPending bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgetLocked(rec, keepPending)
}

func (r *registry) forgetLocked(rec *RequestRecord, keepPending bool) {
	delete(r.records, rec.RequestID)
	if rec.InterceptID != "" {
		delete(r.authentications, rec.InterceptID)
	}
	if !keepPending {
		delete(r.pending, rec.RequestID)
	}
}

// takeForRedirect atomically retrieves and forgets (keepPending=true, per
// spec.md §4.D) the current record for requestID, for the Interception
// Decider's redirect-archival step. ok is false when there is no prior
// record, i.e. this is not a redirect.
func (r *registry) takeForRedirect(requestID network.RequestID) (rec RequestRecord, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior, found := r.records[requestID]
	if !found {
		return RequestRecord{}, false
	}
	rec = *prior
	r.forgetLocked(prior, true)
	return rec, true
}

func (r *registry) markAborted(requestID network.RequestID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborted[requestID] = struct{}{}
}

func (r *registry) isAborted(requestID network.RequestID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.aborted[requestID]
	return ok
}

func (r *registry) hasAuthenticated(interceptID fetch.RequestID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.authentications[interceptID]
	return ok
}

func (r *registry) markAuthenticated(interceptID fetch.RequestID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authentications[interceptID] = struct{}{}
}

// inFlight returns a snapshot copy of every in-flight record matching
// filter (nil matches everything), taken under the lock so callers never
// observe a record mutating beneath them.
func (r *registry) inFlight(filter func(RequestRecord) bool) []RequestRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []RequestRecord
	for _, rec := range r.records {
		snapshot := *rec
		if filter == nil || filter(snapshot) {
			out = append(out, snapshot)
		}
	}
	return out
}
