package handler

import (
	"compress/gzip"
	"net/http"
	"strconv"
	"strings"
)

// compressMinSize is the smallest body worth the gzip overhead.
const compressMinSize = 1024

var compressibleTypes = []string{
	"text/",
	"application/json",
	"application/javascript",
	"application/xml",
	"image/svg+xml",
}

func compressibleType(contentType string) bool {
	for _, prefix := range compressibleTypes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// Compression negotiates gzip for compressible responses. The decision
// is deferred to WriteHeader so status (never 206 or 304) and the
// announced Content-Length (1 KiB floor) can both be consulted; chi's
// Compress middleware decides before either is known, which is why this
// wrapper exists.
func Compression() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			gw := &gzipResponseWriter{ResponseWriter: w}
			defer gw.close()
			next.ServeHTTP(gw, r)
		}
		return http.HandlerFunc(fn)
	}
}

type gzipResponseWriter struct {
	http.ResponseWriter
	gz          *gzip.Writer
	wroteHeader bool
}

func (w *gzipResponseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true

	if w.shouldCompress(status) {
		w.Header().Add("Vary", "Accept-Encoding")
		w.Header().Del("Content-Length")
		w.Header().Set("Content-Encoding", "gzip")
		w.gz = gzip.NewWriter(w.ResponseWriter)
	}

	w.ResponseWriter.WriteHeader(status)
}

func (w *gzipResponseWriter) shouldCompress(status int) bool {
	if status != http.StatusOK {
		return false
	}
	if w.Header().Get("Content-Encoding") != "" {
		return false
	}
	if !compressibleType(w.Header().Get("Content-Type")) {
		return false
	}
	// A known length below the floor is not worth compressing; an
	// unknown length (streamed body) is.
	if cl := w.Header().Get("Content-Length"); cl != "" {
		size, err := strconv.Atoi(cl)
		if err == nil && size < compressMinSize {
			return false
		}
	}
	return true
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.gz != nil {
		return w.gz.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (w *gzipResponseWriter) close() {
	if w.gz != nil {
		w.gz.Close()
	}
}
