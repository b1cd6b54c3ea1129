package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/statica-dev/statica/pkg/logger"
)

// applyHeaderRules shapes a response with the configured headers rules.
// Every matching rule applies; later rules override earlier ones on the
// same key.
func (h *Handler) applyHeaderRules(w http.ResponseWriter, requestPath string) {
	p := matchPath(requestPath)
	for _, rule := range h.cfg.Headers {
		if !rule.Rule.MatchString(p) {
			continue
		}
		for _, kv := range rule.Headers {
			w.Header().Set(kv.Key, kv.Value)
		}
	}
}

// RequestLogger emits one line per request with client, method, path,
// status and duration.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if !log.RequestLogging() {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.HTTP(clientIP(r), r.Method, r.URL.Path, ww.Status(), time.Since(start))
		}
		return http.HandlerFunc(fn)
	}
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if idx := lastColon(host); idx >= 0 {
		host = host[:idx]
	}
	return host
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}
