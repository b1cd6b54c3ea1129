package webinit

import (
	"embed"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

//go:embed templates/index.html templates/style.css templates/main.js
var templates embed.FS

var files = []string{"index.html", "style.css", "main.js"}

// Scaffold writes the starter web files into dir, skipping any that
// already exist. It returns the names of the files it created; an
// existing file is never overwritten.
func Scaffold(dir string) ([]string, error) {
	var created []string

	for _, name := range files {
		target := filepath.Join(dir, name)
		if _, err := os.Lstat(target); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return created, errors.Wrapf(err, "stat %s", target)
		}

		content, err := templates.ReadFile("templates/" + name)
		if err != nil {
			return created, errors.Wrapf(err, "embedded template %s", name)
		}
		if err := os.WriteFile(target, content, 0o644); err != nil {
			return created, errors.Wrapf(err, "write %s", target)
		}
		created = append(created, name)
	}

	return created, nil
}

// HasIndex reports whether dir already serves a default page.
func HasIndex(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "index.html"))
	return err == nil
}
