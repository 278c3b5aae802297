package netwatch

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func awaitLatch(t *testing.T, l *latch) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.wait(ctx))
}

func TestHandleRequestWillBeSentResolvesLatch(t *testing.T) {
	t.Parallel()

	w := New(Options{})
	evt := &network.EventRequestWillBeSent{
		RequestID: "r1",
		Request:   &network.Request{URL: "https://ex/a", Method: "GET"},
	}

	w.handleRequestWillBeSent(context.Background(), evt)
	awaitLatch(t, w.registry.latchesFor("r1").requestWillBeSent)
}

func TestHandleRequestWillBeSentSkipsDataURLs(t *testing.T) {
	t.Parallel()

	w := New(Options{Intercept: InterceptConfig{Enabled: true}})
	evt := &network.EventRequestWillBeSent{
		RequestID: "r1",
		Request:   &network.Request{URL: "data:text/plain;base64,aGk=", Method: "GET"},
	}

	w.handleRequestWillBeSent(context.Background(), evt)

	_, pending := w.registry.popPending("r1")
	assert.False(t, pending, "data: URLs are never tracked in Pending")
}

func TestHandleRequestWillBeSentTracksPendingWhenIntercepting(t *testing.T) {
	t.Parallel()

	w := New(Options{Intercept: InterceptConfig{Enabled: true}})
	evt := &network.EventRequestWillBeSent{
		RequestID: "r1",
		Request:   &network.Request{URL: "https://ex/a", Method: "GET"},
	}

	w.handleRequestWillBeSent(context.Background(), evt)

	got, ok := w.registry.popPending("r1")
	require.True(t, ok)
	assert.Equal(t, "https://ex/a", got.Request.URL)
}

// TestHandleRequestPausedOrdering exercises invariant 3: requestPaused never
// observes the Registry before requestWillBeSent has been processed for the
// same requestId.
func TestHandleRequestPausedOrdering(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{}
	ctx := cdp.WithExecutor(context.Background(), exec)
	w := New(Options{Intercept: InterceptConfig{Enabled: true}})

	done := make(chan struct{})
	go func() {
		w.handleRequestPaused(ctx, &fetch.EventRequestPaused{
			RequestID: "i1",
			NetworkID: "r1",
			Request:   &network.Request{URL: "https://ex/a", Method: "GET"},
		})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("requestPaused returned before requestWillBeSent was processed")
	case <-time.After(20 * time.Millisecond):
	}

	w.handleRequestWillBeSent(ctx, &network.EventRequestWillBeSent{
		RequestID: "r1",
		Request:   &network.Request{URL: "https://ex/a", Method: "GET"},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("requestPaused never unblocked")
	}

	assert.Equal(t, []string{"Fetch.continueRequest"}, exec.calls)
}

func TestHandleRequestPausedDropsOnURLMismatch(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{}
	ctx := cdp.WithExecutor(context.Background(), exec)
	w := New(Options{Intercept: InterceptConfig{Enabled: true}})

	w.handleRequestWillBeSent(ctx, &network.EventRequestWillBeSent{
		RequestID: "r1",
		Request:   &network.Request{URL: "https://ex/first", Method: "GET"},
	})

	w.handleRequestPaused(ctx, &fetch.EventRequestPaused{
		RequestID: "i1",
		NetworkID: "r1",
		Request:   &network.Request{URL: "https://ex/second", Method: "GET"},
	})

	assert.Empty(t, exec.calls, "a redirect-mismatched pause is dropped, not decided on")
}

func TestHandleAuthRequiredProvidesCredentialsOnce(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{}
	ctx := cdp.WithExecutor(context.Background(), exec)
	w := New(Options{Authorization: &Authorization{Username: "u", Password: "p"}})

	w.handleAuthRequired(ctx, &fetch.EventAuthRequired{RequestID: "i1"})
	assert.Equal(t, []string{"Fetch.continueWithAuth"}, exec.calls)
	assert.True(t, w.registry.hasAuthenticated("i1"))

	w.handleAuthRequired(ctx, &fetch.EventAuthRequired{RequestID: "i1"})
	assert.Equal(t, []string{"Fetch.continueWithAuth", "Fetch.continueWithAuth"}, exec.calls)
}

func TestHandleAuthRequiredDefaultWithoutCredentials(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{}
	ctx := cdp.WithExecutor(context.Background(), exec)
	w := New(Options{})

	w.handleAuthRequired(ctx, &fetch.EventAuthRequired{RequestID: "i1"})
	assert.Equal(t, []string{"Fetch.continueWithAuth"}, exec.calls)
}

func TestHandleResponseReceivedAttachesResponse(t *testing.T) {
	t.Parallel()

	w := New(Options{})
	w.registry.insert(&RequestRecord{RequestID: "r1", URL: "https://ex/a"})
	w.registry.latchesFor("r1").requestWillBeSent.resolve()

	w.handleResponseReceived(context.Background(), &network.EventResponseReceived{
		RequestID: "r1",
		Response:  &network.Response{Status: 200, MimeType: "text/html"},
	})

	rec, ok := w.registry.get("r1")
	require.True(t, ok)
	require.NotNil(t, rec.Response)
	assert.EqualValues(t, 200, rec.Response.Status)
	awaitLatch(t, w.registry.latchesFor("r1").responseReceived)
}

func TestHandleEventSourceMessageReceivedForgetsRecord(t *testing.T) {
	t.Parallel()

	w := New(Options{})
	w.registry.insert(&RequestRecord{RequestID: "r1"})
	w.registry.latchesFor("r1").requestWillBeSent.resolve()

	w.handleEventSourceMessageReceived(context.Background(), &network.EventEventSourceMessageReceived{RequestID: "r1"})

	_, ok := w.registry.get("r1")
	assert.False(t, ok, "event-source streams are forgotten immediately so idle isn't blocked forever")
}

// TestHandleLoadingFinishedNoLeak exercises invariant 1 for the
// loadingFinished path.
func TestHandleLoadingFinishedNoLeak(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{}
	ctx := cdp.WithExecutor(context.Background(), exec)
	w := New(Options{})

	w.registry.insert(&RequestRecord{RequestID: "r1", URL: "https://ex/a", ResourceType: network.ResourceTypeDocument})
	w.registry.latchesFor("r1").requestWillBeSent.resolve()
	w.registry.latchesFor("r1").responseReceived.resolve()

	w.handleLoadingFinished(ctx, &network.EventLoadingFinished{RequestID: "r1"})

	_, ok := w.registry.get("r1")
	assert.False(t, ok)
}

// TestHandleLoadingFailedAborted exercises invariant 1 and the Aborted-set
// half of scenario S5.
func TestHandleLoadingFailedAborted(t *testing.T) {
	t.Parallel()

	w := New(Options{})
	w.registry.insert(&RequestRecord{RequestID: "r1", URL: "https://ex/a"})
	w.registry.latchesFor("r1").requestWillBeSent.resolve()

	w.handleLoadingFailed(context.Background(), &network.EventLoadingFailed{
		RequestID: "r1",
		ErrorText: "net::ERR_ABORTED",
	})

	assert.True(t, w.registry.isAborted("r1"))
	_, ok := w.registry.get("r1")
	assert.False(t, ok)
}

// TestHandleLoadingFailedAbortedMarksSetWithoutRecord covers the genuine
// abort-before-decision race: loadingFailed(ERR_ABORTED) can arrive before
// requestPaused has inserted a record for this requestId. The Aborted set
// must still be marked so a later decideInterception never sends a
// continue/fail for it (spec.md §8 scenario S5).
func TestHandleLoadingFailedAbortedMarksSetWithoutRecord(t *testing.T) {
	t.Parallel()

	w := New(Options{})
	w.registry.latchesFor("r1").requestWillBeSent.resolve()

	w.handleLoadingFailed(context.Background(), &network.EventLoadingFailed{
		RequestID: "r1",
		ErrorText: "net::ERR_ABORTED",
	})

	assert.True(t, w.registry.isAborted("r1"))
}

func TestHandleLoadingFailedGenericErrFailedSilent(t *testing.T) {
	t.Parallel()

	w := New(Options{})
	w.registry.insert(&RequestRecord{RequestID: "r1", URL: "https://ex/a"})
	w.registry.latchesFor("r1").requestWillBeSent.resolve()

	w.handleLoadingFailed(context.Background(), &network.EventLoadingFailed{
		RequestID: "r1",
		ErrorText: "net::ERR_FAILED",
	})

	_, ok := w.registry.get("r1")
	assert.False(t, ok)
	assert.False(t, w.registry.isAborted("r1"))
}
