package handler

import (
	"github.com/gobwas/glob"

	"github.com/statica-dev/statica/pkg/pattern"
)

// Server identity, emitted on every response.
const (
	ServerName = "statica"
	Version    = "1.2.0"
	Signature  = ServerName + "/" + Version
)

// DefaultBodyLimit caps POST bodies consumed by the echo engine.
const DefaultBodyLimit int64 = 32 << 20

// ConfigRewrite maps a source pattern to an internal destination.
type ConfigRewrite struct {
	Source      string `json:"source" validate:"min=1"`
	Destination string `json:"destination" validate:"min=1"`
}

// ConfigRedirect maps a source pattern to an external Location.
type ConfigRedirect struct {
	Source      string `json:"source" validate:"min=1"`
	Destination string `json:"destination" validate:"min=1"`
	Type        int    `json:"type" validate:"omitempty,oneof=301 302 307 308"`
}

// ConfigHeaderValue is one header applied by a headers rule.
type ConfigHeaderValue struct {
	Key   string `json:"key" validate:"min=1,max=128"`
	Value string `json:"value" validate:"min=1,max=2048"`
}

// ConfigHeader applies a set of headers to every path its source matches.
type ConfigHeader struct {
	Source  string              `json:"source" validate:"min=1,max=100"`
	Headers []ConfigHeaderValue `json:"headers" validate:"dive"`
}

// Configuration is the raw serve.json document (also found under
// now.json `.now.static` and package.json `.static`). Tri-state booleans
// use pointers so an absent key can fall back to its default.
type Configuration struct {
	Public           string           `json:"public"`
	CleanUrls        bool             `json:"cleanUrls"`
	Rewrites         []ConfigRewrite  `json:"rewrites" validate:"dive"`
	Redirects        []ConfigRedirect `json:"redirects" validate:"dive"`
	Headers          []ConfigHeader   `json:"headers" validate:"dive"`
	DirectoryListing *bool            `json:"directoryListing"`
	Unlisted         []string         `json:"unlisted"`
	TrailingSlash    *bool            `json:"trailingSlash"`
	RenderSingle     bool             `json:"renderSingle"`
	Symlinks         bool             `json:"symlinks"`
	Etag             *bool            `json:"etag"`
	Compress         *bool            `json:"compress"`
}

// TrailingSlashPolicy is the tri-state trailingSlash setting: an absent
// key preserves the request as-is, true forces the slash, false strips it.
type TrailingSlashPolicy int

const (
	TrailingSlashPreserve TrailingSlashPolicy = iota
	TrailingSlashForce
	TrailingSlashStrip
)

// CompiledRewrite is an immutable rewrite rule shared by all workers.
type CompiledRewrite struct {
	Rule        *pattern.Rule
	Destination string
}

// CompiledRedirect is an immutable redirect rule.
type CompiledRedirect struct {
	Rule        *pattern.Rule
	Destination string
	Status      int
}

// CompiledHeaders is an immutable headers rule; all matching rules apply
// and later rules override earlier ones on the same key.
type CompiledHeaders struct {
	Rule    *pattern.Rule
	Headers []ConfigHeaderValue
}

// Config is the fully-resolved configuration: file settings merged with
// CLI overrides, patterns compiled, public root made absolute. It is
// built once in main and never mutated afterwards.
type Config struct {
	Public           string
	CleanUrls        bool
	TrailingSlash    TrailingSlashPolicy
	RenderSingle     bool
	Single           bool
	Symlinks         bool
	Etag             bool
	DirectoryListing bool
	Compress         bool
	CORS             bool
	BodyLimit        int64

	Rewrites  []CompiledRewrite
	Redirects []CompiledRedirect
	Headers   []CompiledHeaders
	Unlisted  []glob.Glob
}
