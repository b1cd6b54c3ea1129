package handler

import (
	"fmt"
	"net/http"
	"os"
)

// serveEntity delivers a regular file with validator headers and range
// support. http.ServeContent negotiates If-None-Match/If-Modified-Since,
// single and multi ranges (206/416), HEAD elision and the content type.
func (h *Handler) serveEntity(w http.ResponseWriter, r *http.Request, abs string, fi os.FileInfo, requestPath string) {
	h.applyHeaderRules(w, requestPath)

	if h.cfg.Etag {
		w.Header().Set("ETag", etagFor(fi))
	}

	f, err := os.Open(abs)
	if err != nil {
		switch {
		case os.IsPermission(err):
			h.sendError(w, r, http.StatusForbidden)
		case os.IsNotExist(err):
			// The stat succeeded but the file vanished underneath us.
			h.sendError(w, r, http.StatusNotFound)
		default:
			h.log.Error("open %s: %v", abs, err)
			h.sendError(w, r, http.StatusInternalServerError)
		}
		return
	}
	defer f.Close()

	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}

// etagFor derives the strong validator from (size, mtime) only, so it is
// stable across restarts.
func etagFor(fi os.FileInfo) string {
	return fmt.Sprintf(`"%x-%x"`, fi.ModTime().Unix(), fi.Size())
}
