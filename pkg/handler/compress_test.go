package handler

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressedSite(t *testing.T) http.Handler {
	h, _ := newSite(t, "", map[string]string{
		"big.css":    "body { margin: 0; } " + strings.Repeat("/* filler */ ", 200),
		"small.css":  "body{}",
		"image.png":  strings.Repeat("\x89PNG", 1024),
		"index.html": strings.Repeat("<p>hello</p>", 200),
	})
	return Compression()(h)
}

func compressedGet(t *testing.T, h http.Handler, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestGzipNegotiated(t *testing.T) {
	h := compressedSite(t)

	rr := compressedGet(t, h, "/big.css", "Accept-Encoding", "gzip")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	assert.Contains(t, rr.Header().Values("Vary"), "Accept-Encoding")

	gr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Contains(t, string(body), "margin")
}

func TestGzipSkippedWithoutAcceptEncoding(t *testing.T) {
	h := compressedSite(t)

	rr := compressedGet(t, h, "/big.css")
	assert.Empty(t, rr.Header().Get("Content-Encoding"))
	assert.Contains(t, rr.Body.String(), "margin")
}

func TestGzipSkippedBelowThreshold(t *testing.T) {
	h := compressedSite(t)

	rr := compressedGet(t, h, "/small.css", "Accept-Encoding", "gzip")
	assert.Empty(t, rr.Header().Get("Content-Encoding"))
	assert.Equal(t, "body{}", rr.Body.String())
}

func TestGzipSkippedForNonCompressibleType(t *testing.T) {
	h := compressedSite(t)

	rr := compressedGet(t, h, "/image.png", "Accept-Encoding", "gzip")
	assert.Empty(t, rr.Header().Get("Content-Encoding"))
}

func TestGzipNeverAppliedToRanges(t *testing.T) {
	h := compressedSite(t)

	rr := compressedGet(t, h, "/big.css",
		"Accept-Encoding", "gzip",
		"Range", "bytes=0-9")
	assert.Equal(t, http.StatusPartialContent, rr.Code)
	assert.Empty(t, rr.Header().Get("Content-Encoding"))
	assert.Len(t, rr.Body.String(), 10)
}

func TestGzipNotAppliedTo304(t *testing.T) {
	h := compressedSite(t)

	first := compressedGet(t, h, "/big.css", "Accept-Encoding", "gzip")
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	second := compressedGet(t, h, "/big.css",
		"Accept-Encoding", "gzip",
		"If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Header().Get("Content-Encoding"))
	assert.Empty(t, second.Body.String())
}

func TestCompressibleTypeTable(t *testing.T) {
	assert.True(t, compressibleType("text/html; charset=utf-8"))
	assert.True(t, compressibleType("application/json"))
	assert.True(t, compressibleType("application/javascript"))
	assert.True(t, compressibleType("image/svg+xml"))
	assert.False(t, compressibleType("image/png"))
	assert.False(t, compressibleType("application/octet-stream"))
}
