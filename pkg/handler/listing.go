package handler

import (
	"encoding/json"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"

	humanize "github.com/dustin/go-humanize"
)

type listingEntry struct {
	Title    string `json:"title"`
	Base     string `json:"base"`
	Ext      string `json:"ext"`
	Relative string `json:"relative"`
	Size     string `json:"size,omitempty"`
	IsDir    bool   `json:"isDir"`
}

type breadcrumb struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type listingData struct {
	Directory   string         `json:"directory"`
	Breadcrumbs []breadcrumb   `json:"paths"`
	Files       []listingEntry `json:"files"`
}

// renderDirectory emits the directory listing, as HTML or (for JSON
// clients) as the raw structure. Unlisted patterns hide entries.
func (h *Handler) renderDirectory(w http.ResponseWriter, r *http.Request, logical, abs string) {
	entries, err := os.ReadDir(abs)
	if err != nil {
		h.log.Error("read directory %s: %v", abs, err)
		h.sendError(w, r, http.StatusInternalServerError)
		return
	}

	base := matchPath(logical)
	data := listingData{
		Directory:   displayDirectory(base),
		Breadcrumbs: breadcrumbsFor(base),
	}

	for _, entry := range entries {
		name := entry.Name()
		if !h.canBeListed(name, path.Join(base, name)) {
			continue
		}

		relative := path.Join(base, name)
		item := listingEntry{
			Title:    name,
			Base:     name,
			Relative: relative,
			IsDir:    entry.IsDir(),
		}

		if entry.IsDir() {
			item.Base += "/"
			item.Relative += "/"
		} else {
			item.Ext = strings.TrimPrefix(path.Ext(name), ".")
			if item.Ext == "" {
				item.Ext = "txt"
			}
			if info, err := entry.Info(); err == nil {
				item.Size = humanize.Bytes(uint64(info.Size()))
			}
		}

		data.Files = append(data.Files, item)
	}

	// Directories first, then alphabetical.
	sort.SliceStable(data.Files, func(i, j int) bool {
		if data.Files[i].IsDir != data.Files[j].IsDir {
			return data.Files[i].IsDir
		}
		return data.Files[i].Base < data.Files[j].Base
	})

	if base != "/" {
		parent := path.Dir(base)
		if parent != "/" {
			parent += "/"
		}
		data.Files = append([]listingEntry{{
			Title:    "..",
			Base:     "..",
			Relative: parent,
			IsDir:    true,
		}}, data.Files...)
	}

	if acceptsJSON(r) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.log.Error("encode listing: %v", err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.Method == http.MethodHead {
		return
	}
	if err := directoryTemplate.Execute(w, data); err != nil {
		h.log.Error("render listing: %v", err)
	}
}

// canBeListed applies the unlisted globs against both the bare name and
// the root-relative path.
func (h *Handler) canBeListed(name, relative string) bool {
	rel := strings.TrimPrefix(relative, "/")
	for _, g := range h.cfg.Unlisted {
		if g.Match(name) || g.Match(rel) {
			return false
		}
	}
	return true
}

func displayDirectory(base string) string {
	if base == "/" {
		return "/"
	}
	return base + "/"
}

func breadcrumbsFor(base string) []breadcrumb {
	crumbs := []breadcrumb{{Name: "/", URL: "/"}}
	if base == "/" {
		return crumbs
	}

	parents := "/"
	for _, part := range strings.Split(strings.Trim(base, "/"), "/") {
		parents += part + "/"
		crumbs = append(crumbs, breadcrumb{Name: part, URL: parents})
	}
	return crumbs
}
