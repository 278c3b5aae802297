package netwatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultUserAgentStripsHeadless(t *testing.T) {
	t.Parallel()

	in := "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) HeadlessChrome/120.0.0.0 Safari/537.36"
	out := DefaultUserAgent(in)

	assert.NotContains(t, out, "Headless")
	assert.Contains(t, out, "Chrome/120.0.0.0")
}

func TestDefaultUserAgentNoHeadlessIsUnchanged(t *testing.T) {
	t.Parallel()

	in := "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15"
	assert.Equal(t, in, DefaultUserAgent(in))
}
