package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type errorBody struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func errorBodyFor(status int) errorBody {
	body := errorBody{StatusCode: status}
	switch status {
	case http.StatusBadRequest:
		body.Code = "bad_request"
		body.Message = "Bad request"
	case http.StatusForbidden:
		body.Code = "forbidden"
		body.Message = "Access to this resource is forbidden"
	case http.StatusNotFound:
		body.Code = "not_found"
		body.Message = "The requested path could not be found"
	case http.StatusMethodNotAllowed:
		body.Code = "method_not_allowed"
		body.Message = "The method is not allowed for this resource"
	case http.StatusRequestEntityTooLarge:
		body.Code = "payload_too_large"
		body.Message = "The request body exceeds the configured limit"
	case http.StatusRequestedRangeNotSatisfiable:
		body.Code = "range_not_satisfiable"
		body.Message = "The requested range cannot be satisfied"
	default:
		body.Code = "internal_server_error"
		body.Message = "A server error has occurred"
	}
	return body
}

func acceptsJSON(r *http.Request) bool {
	for _, value := range r.Header.Values("Accept") {
		if strings.Contains(strings.ToLower(value), "application/json") {
			return true
		}
	}
	return false
}

// sendError renders an error response. A <status>.html file in the
// public root takes precedence; otherwise JSON clients get a structured
// body and everyone else the HTML error page.
func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, status int) {
	custom := filepath.Join(h.cfg.Public, fmt.Sprintf("%d.html", status))
	if fi, err := os.Lstat(custom); err == nil && !fi.IsDir() {
		if f, err := os.Open(custom); err == nil {
			defer f.Close()
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(status)
			if r.Method != http.MethodHead {
				io.Copy(w, f)
			}
			return
		}
	}

	body := errorBodyFor(status)

	if acceptsJSON(r) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		type envelope struct {
			Error errorBody `json:"error"`
		}
		if err := json.NewEncoder(w).Encode(envelope{body}); err != nil {
			h.log.Error("encode error body: %v", err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if err := errorTemplate.Execute(w, body); err != nil {
		h.log.Error("render error page: %v", err)
	}
}
