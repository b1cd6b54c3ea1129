package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/statica-dev/statica/pkg/logger"
	"github.com/statica-dev/statica/pkg/pattern"
)

const allowedMethods = "GET, HEAD, POST, OPTIONS"

// Handler is the request pipeline. Its configuration and compiled rules
// are shared read-only across every connection goroutine.
type Handler struct {
	cfg *Config
	log *logger.Logger
}

// New builds the pipeline for a resolved configuration.
func New(cfg *Config, log *logger.Logger) *Handler {
	return &Handler{cfg: cfg, log: log}
}

// AttachRoutes mounts the pipeline as the router's catch-all.
func (h *Handler) AttachRoutes(router chi.Router) {
	router.Handle("/*", h)
}

// ServeHTTP dispatches on method: POST feeds the echo engine, GET and
// HEAD walk the file pipeline, OPTIONS answers 204, anything else 405.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.echo(w, r)
	case http.MethodGet, http.MethodHead:
		h.serve(w, r)
	case http.MethodOptions:
		w.Header().Set("Allow", allowedMethods)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", allowedMethods)
		h.sendError(w, r, http.StatusMethodNotAllowed)
	}
}

var (
	errBadPath   = errors.New("path contains forbidden bytes")
	errTraversal = errors.New("path escapes the public root")
)

// normalizePath operates on the once percent-decoded path: it rejects
// control bytes, collapses repeated slashes and resolves . and ..
// lexically. A .. that would climb above / fails before any disk access.
func normalizePath(p string) (string, error) {
	for _, r := range p {
		if r < 0x20 || r == 0x7f {
			return "", errBadPath
		}
	}

	trailing := strings.HasSuffix(p, "/")

	var out []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(out) == 0 {
				return "", errTraversal
			}
			out = out[:len(out)-1]
		default:
			out = append(out, seg)
		}
	}

	normalized := "/" + strings.Join(out, "/")
	if trailing && normalized != "/" {
		normalized += "/"
	}
	return normalized, nil
}

// matchPath is the form rules are matched against: no trailing slash
// except for the root itself.
func matchPath(p string) string {
	if p != "/" {
		return strings.TrimSuffix(p, "/")
	}
	return p
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	decoded, err := normalizePath(r.URL.Path)
	if err == errBadPath {
		h.sendError(w, r, http.StatusBadRequest)
		return
	}
	if err != nil {
		h.sendError(w, r, http.StatusNotFound)
		return
	}

	h.log.Debug("request %s -> %s", r.URL.Path, decoded)

	// Configured redirects run before everything else; first match wins.
	for _, redirect := range h.cfg.Redirects {
		caps, ok := redirect.Rule.Match(matchPath(decoded))
		if !ok {
			continue
		}
		http.Redirect(w, r, pattern.Expand(redirect.Destination, caps), redirect.Status)
		return
	}

	if target, ok := h.cleanURLRedirect(decoded); ok {
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return
	}

	if target, ok := h.trailingSlashRedirect(decoded); ok {
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return
	}

	// Rewrites replace the logical path in a single pass; the result is
	// not re-run through redirects or further rewrites.
	logical := decoded
	for _, rewrite := range h.cfg.Rewrites {
		caps, ok := rewrite.Rule.Match(matchPath(decoded))
		if !ok {
			continue
		}
		logical = pattern.Expand(rewrite.Destination, caps)
		if idx := strings.IndexByte(logical, '?'); idx >= 0 {
			logical = logical[:idx]
		}
		logical, err = normalizePath(logical)
		if err != nil {
			h.sendError(w, r, http.StatusNotFound)
			return
		}
		h.log.Debug("rewrite %s -> %s", decoded, logical)
		break
	}

	if hasHiddenSegment(logical) {
		h.sendError(w, r, http.StatusNotFound)
		return
	}

	h.resolve(w, r, decoded, logical)
}

// cleanURLRedirect maps /foo.html (and /foo/index) onto /foo with a 301
// when clean URLs are on.
func (h *Handler) cleanURLRedirect(decoded string) (string, bool) {
	if !h.cfg.CleanUrls {
		return "", false
	}

	p := matchPath(decoded)
	switch {
	case strings.HasSuffix(p, "/index.html"):
		p = strings.TrimSuffix(p, "index.html")
	case strings.HasSuffix(p, ".html"):
		p = strings.TrimSuffix(p, ".html")
	case strings.HasSuffix(p, "/index"):
		p = strings.TrimSuffix(p, "index")
	default:
		return "", false
	}

	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	if p == "" {
		p = "/"
	}
	if p == matchPath(decoded) {
		return "", false
	}
	return p, true
}

// trailingSlashRedirect reshapes the URL per the configured tri-state
// policy. Paths with extensions never gain a slash.
func (h *Handler) trailingSlashRedirect(decoded string) (string, bool) {
	if decoded == "/" {
		return "", false
	}

	trailed := strings.HasSuffix(decoded, "/")
	switch h.cfg.TrailingSlash {
	case TrailingSlashForce:
		if !trailed && path.Ext(decoded) == "" && !hasHiddenSegment(decoded) {
			return decoded + "/", true
		}
	case TrailingSlashStrip:
		if trailed {
			return strings.TrimSuffix(decoded, "/"), true
		}
	}
	return "", false
}

func hasHiddenSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if len(seg) > 1 && seg[0] == '.' {
			return true
		}
	}
	return false
}

// resolve joins the logical (post-rewrite) path below the public root
// and serves the entity found there: a file, a directory index, a
// listing, a clean-URL sibling, or one of the not-found fallbacks.
// display is the client-visible path; header rules and listing links use
// it, never the rewritten form.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, display, logical string) {
	abs := filepath.Join(h.cfg.Public, filepath.FromSlash(matchPath(logical)))
	if !pathIsInside(abs, h.cfg.Public) {
		h.sendError(w, r, http.StatusNotFound)
		return
	}

	fi, err := os.Lstat(abs)
	if err != nil && !os.IsNotExist(err) {
		h.failStat(w, r, err)
		return
	}

	if fi != nil && fi.Mode()&os.ModeSymlink != 0 {
		if !h.cfg.Symlinks {
			h.sendError(w, r, http.StatusNotFound)
			return
		}
		abs, fi, err = h.followSymlink(abs)
		if err != nil {
			h.sendError(w, r, http.StatusNotFound)
			return
		}
	}

	if fi != nil && fi.IsDir() {
		h.resolveDirectory(w, r, display, abs)
		return
	}

	if fi == nil && h.cfg.CleanUrls {
		// /foo resolves to foo.html when present.
		sibling := abs + ".html"
		if sfi, err := os.Lstat(sibling); err == nil && !sfi.IsDir() {
			h.serveEntity(w, r, sibling, sfi, display)
			return
		}
	}

	if fi == nil {
		h.fallback(w, r, display)
		return
	}

	h.serveEntity(w, r, abs, fi, display)
}

func (h *Handler) followSymlink(abs string) (string, os.FileInfo, error) {
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", nil, err
	}
	fi, err := os.Lstat(resolved)
	if err != nil {
		return "", nil, err
	}
	return resolved, fi, nil
}

func (h *Handler) resolveDirectory(w http.ResponseWriter, r *http.Request, display, abs string) {
	index := filepath.Join(abs, "index.html")
	if fi, err := os.Lstat(index); err == nil && !fi.IsDir() {
		h.serveEntity(w, r, index, fi, display)
		return
	}

	if h.cfg.DirectoryListing {
		h.renderDirectory(w, r, display, abs)
		return
	}

	h.sendError(w, r, http.StatusNotFound)
}

// fallback handles not-found paths: the SPA rewrite when --single is
// set (it wins over renderSingle), else the sole-HTML-file rendering,
// else 404. Both are a single step; no second pass runs.
func (h *Handler) fallback(w http.ResponseWriter, r *http.Request, display string) {
	if h.cfg.Single {
		index := filepath.Join(h.cfg.Public, "index.html")
		if fi, err := os.Lstat(index); err == nil && !fi.IsDir() {
			h.serveEntity(w, r, index, fi, display)
			return
		}
		h.sendError(w, r, http.StatusNotFound)
		return
	}

	if h.cfg.RenderSingle {
		if only, fi := soleHTMLFile(h.cfg.Public); only != "" {
			h.serveEntity(w, r, only, fi, display)
			return
		}
	}

	h.sendError(w, r, http.StatusNotFound)
}

// soleHTMLFile returns the public root's only HTML file, if there is
// exactly one.
func soleHTMLFile(root string) (string, os.FileInfo) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", nil
	}

	var match string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		if match != "" {
			return "", nil
		}
		match = filepath.Join(root, entry.Name())
	}
	if match == "" {
		return "", nil
	}
	fi, err := os.Lstat(match)
	if err != nil {
		return "", nil
	}
	return match, fi
}

func (h *Handler) failStat(w http.ResponseWriter, r *http.Request, err error) {
	if os.IsPermission(err) {
		h.sendError(w, r, http.StatusForbidden)
		return
	}
	h.log.Error("stat failed: %v", err)
	h.sendError(w, r, http.StatusInternalServerError)
}
