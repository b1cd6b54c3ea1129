package handler

import (
	"path/filepath"
	"runtime"
	"strings"
)

// pathIsInside reports whether child is root itself or one of its
// descendants, by lexical prefix. It runs after normalization and is the
// last containment gate before any disk access.
func pathIsInside(child, root string) bool {
	child = strings.TrimRight(child, string(filepath.Separator))
	root = strings.TrimRight(root, string(filepath.Separator))

	if runtime.GOOS == "windows" {
		child = strings.ToLower(child)
		root = strings.ToLower(root)
	}

	if !strings.HasPrefix(child, root) {
		return false
	}
	return len(child) == len(root) || child[len(root)] == filepath.Separator
}
