package utils

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoveHopByHopHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Connection", "keep-alive, X-Internal-Hop")
	h.Set("Keep-Alive", "timeout=5")
	h.Set("Transfer-Encoding", "chunked")
	h.Set("Upgrade", "h2c")
	h.Set("Proxy-Authorization", "Basic abc")
	h.Set("X-Internal-Hop", "1")
	h.Set("Content-Type", "image/png")
	h.Set("ETag", `"abc"`)

	RemoveHopByHopHeaders(h)

	for _, name := range []string{"Connection", "Keep-Alive", "Transfer-Encoding", "Upgrade", "Proxy-Authorization", "X-Internal-Hop"} {
		assert.Empty(t, h.Get(name), name)
	}
	assert.Equal(t, "image/png", h.Get("Content-Type"))
	assert.Equal(t, `"abc"`, h.Get("ETag"))
}

func TestCopyProxyHeaders_DoesNotMutateSource(t *testing.T) {
	src := http.Header{}
	src.Set("Connection", "close")
	src.Add("Content-Range", "bytes 0-1/2")

	dst := http.Header{}
	CopyProxyHeaders(dst, src)

	assert.Equal(t, "close", src.Get("Connection"))
	assert.Empty(t, dst.Get("Connection"))
	assert.Equal(t, "bytes 0-1/2", dst.Get("Content-Range"))
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename=report.pdf`, ContentDisposition("report.pdf", false))
	assert.Equal(t, `inline; filename="my photo.png"`, ContentDisposition("my photo.png", true))
	assert.Equal(t, "attachment", ContentDisposition("", false))
}
