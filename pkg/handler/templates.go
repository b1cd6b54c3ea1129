package handler

import (
	_ "embed"
	"html/template"
)

//go:embed templates/error.html
var errorHTML string

//go:embed templates/directory.html
var directoryHTML string

var (
	errorTemplate     = template.Must(template.New("error").Parse(errorHTML))
	directoryTemplate = template.Must(template.New("directory").Parse(directoryHTML))
)
