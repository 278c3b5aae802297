package netwatch

import (
	"context"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	get  func(ctx context.Context, url string) (*Resource, error)
	save []Resource
}

func (c *fakeCache) GetResource(ctx context.Context, url string) (*Resource, error) {
	if c.get == nil {
		return nil, nil
	}
	return c.get(ctx, url)
}

func (c *fakeCache) SaveResource(ctx context.Context, r Resource) error {
	c.save = append(c.save, r)
	return nil
}

type fakeFetcher struct {
	body []byte
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, auth *Authorization) ([]byte, error) {
	return f.body, f.err
}

type fakeMimeInferrer struct {
	inferred string
	ok       bool
	isFont   bool
}

func (m *fakeMimeInferrer) InferFromPath(path string) (string, bool) {
	return m.inferred, m.ok
}

func (m *fakeMimeInferrer) IsFont(mimeType string, body []byte) bool {
	return m.isFont
}

func bufferedResponse(status int64, mimeType string, body []byte) *ResponseRecord {
	return &ResponseRecord{
		Status:   status,
		MimeType: mimeType,
		buffer: func(ctx context.Context) ([]byte, error) {
			return body, nil
		},
	}
}

// TestCaptureResponseStylesheet exercises scenario S3: a captured stylesheet
// is handed to the external cache with its mime type and status intact.
func TestCaptureResponseStylesheet(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{}
	w := New(Options{Intercept: InterceptConfig{Cache: cache}})

	rec := &RequestRecord{
		URL:          "https://ex/app.css",
		ResourceType: network.ResourceTypeStylesheet,
		Response:     bufferedResponse(200, "text/css", make([]byte, 1024)),
	}

	w.captureResponse(context.Background(), rec)

	require.Len(t, cache.save, 1)
	assert.Equal(t, "text/css", cache.save[0].MimeType)
	assert.Equal(t, 200, cache.save[0].Status)
	assert.NotEmpty(t, cache.save[0].SHA)
	assert.EqualValues(t, 1, w.Stats().ResourcesCaptured)
}

// TestCaptureResponseSHAIsContentAddressed documents that SHA is a digest of
// the captured body, not a constant placeholder: two different bodies must
// produce two different digests, and the same body must be reproducible.
func TestCaptureResponseSHAIsContentAddressed(t *testing.T) {
	t.Parallel()

	capture := func(body []byte) string {
		cache := &fakeCache{}
		w := New(Options{Intercept: InterceptConfig{Cache: cache}})
		rec := &RequestRecord{
			URL:          "https://ex/app.css",
			ResourceType: network.ResourceTypeStylesheet,
			Response:     bufferedResponse(200, "text/css", body),
		}
		w.captureResponse(context.Background(), rec)
		require.Len(t, cache.save, 1)
		return cache.save[0].SHA
	}

	shaA := capture([]byte("body-a"))
	shaB := capture([]byte("body-b"))
	assert.NotEqual(t, shaA, shaB)
	assert.Equal(t, shaA, capture([]byte("body-a")))
}

// TestCaptureResponseFontRefetch exercises scenario S4: a font response
// discards the browser-reported body and uses the direct-fetch bytes.
func TestCaptureResponseFontRefetch(t *testing.T) {
	t.Parallel()

	directBytes := []byte("direct-fetch-bytes")
	cache := &fakeCache{}
	w := New(Options{
		Intercept: InterceptConfig{Cache: cache},
		Fetcher:   &fakeFetcher{body: directBytes},
	})

	rec := &RequestRecord{
		URL:          "https://ex/font.woff2",
		ResourceType: network.ResourceTypeFont,
		Response:     bufferedResponse(200, "font/woff2", []byte("browser-bytes")),
	}

	w.captureResponse(context.Background(), rec)

	require.Len(t, cache.save, 1)
	assert.Equal(t, directBytes, cache.save[0].Content)
}

func TestCaptureResponseSkipsWhenCacheEntryUsable(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{
		get: func(ctx context.Context, url string) (*Resource, error) {
			return &Resource{URL: url, Root: true}, nil
		},
	}
	w := New(Options{Intercept: InterceptConfig{Cache: cache}})

	rec := &RequestRecord{
		URL:          "https://ex/",
		ResourceType: network.ResourceTypeDocument,
		Response:     bufferedResponse(200, "text/html", []byte("<html></html>")),
	}

	w.captureResponse(context.Background(), rec)
	assert.Empty(t, cache.save, "already-cached root resource must not be re-captured")
}

// TestCaptureResponseFilterSize exercises invariant 6: an oversized body
// never reaches saveResource.
func TestCaptureResponseFilterSize(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{}
	w := New(Options{Intercept: InterceptConfig{Cache: cache}})

	rec := &RequestRecord{
		URL:          "https://ex/huge.bin",
		ResourceType: network.ResourceTypeOther,
		Response:     bufferedResponse(200, "application/octet-stream", make([]byte, maxCaptureBytes+1)),
	}

	w.captureResponse(context.Background(), rec)
	assert.Empty(t, cache.save)
}

func TestCaptureResponseFilterDisallowedStatus(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{}
	w := New(Options{Intercept: InterceptConfig{Cache: cache}})

	rec := &RequestRecord{
		URL:          "https://ex/error",
		ResourceType: network.ResourceTypeDocument,
		Response:     bufferedResponse(500, "text/html", []byte("oops")),
	}

	w.captureResponse(context.Background(), rec)
	assert.Empty(t, cache.save)
}

func TestCaptureResponseFilterResourceTypeWithoutJS(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{}
	w := New(Options{Intercept: InterceptConfig{Cache: cache, EnableJavaScript: false}})

	rec := &RequestRecord{
		URL:          "https://ex/app.js",
		ResourceType: network.ResourceTypeScript,
		Response:     bufferedResponse(200, "application/javascript", []byte("console.log(1)")),
	}

	w.captureResponse(context.Background(), rec)
	assert.Empty(t, cache.save)
}

func TestCaptureResponseAllowsScriptWithJSEnabled(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{}
	w := New(Options{Intercept: InterceptConfig{Cache: cache, EnableJavaScript: true}})

	rec := &RequestRecord{
		URL:          "https://ex/app.js",
		ResourceType: network.ResourceTypeScript,
		Response:     bufferedResponse(200, "application/javascript", []byte("console.log(1)")),
	}

	w.captureResponse(context.Background(), rec)
	assert.Len(t, cache.save, 1)
}

func TestEffectiveMimeTypeRefinesTextPlain(t *testing.T) {
	t.Parallel()

	w := New(Options{MIMEInferrer: &fakeMimeInferrer{inferred: "image/svg+xml", ok: true}})
	rec := &RequestRecord{URL: "https://ex/icon.svg", Response: &ResponseRecord{MimeType: "text/plain"}}

	assert.Equal(t, "image/svg+xml", w.effectiveMimeType(rec, nil))
}

func TestEffectiveMimeTypeKeepsInformativeMime(t *testing.T) {
	t.Parallel()

	w := New(Options{MIMEInferrer: &fakeMimeInferrer{inferred: "image/svg+xml", ok: true}})
	rec := &RequestRecord{URL: "https://ex/app.css", Response: &ResponseRecord{MimeType: "text/css"}}

	assert.Equal(t, "text/css", w.effectiveMimeType(rec, nil))
}

func TestIsFontMimeDetectsFontSubstring(t *testing.T) {
	t.Parallel()

	w := New(Options{})
	assert.True(t, w.isFontMime("font/woff2", nil))
	assert.True(t, w.isFontMime("application/font-sfnt", nil))
	assert.False(t, w.isFontMime("text/css", nil))
}

func TestIsFontMimeDefersToInferrer(t *testing.T) {
	t.Parallel()

	w := New(Options{MIMEInferrer: &fakeMimeInferrer{isFont: true}})
	assert.True(t, w.isFontMime("application/octet-stream", []byte("OTTO...")))
}
