package handler

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	validator "gopkg.in/go-playground/validator.v9"

	"github.com/statica-dev/statica/pkg/pattern"
)

var validate = validator.New()

// Configuration files probed inside the serve directory, highest
// priority first. The first file found is the sole source; nothing is
// merged across files.
var configCandidates = []string{"serve.json", "now.json", "package.json"}

// LoadConfiguration locates and parses the configuration for serveDir.
// customPath, when non-empty, bypasses discovery and must exist. Every
// returned error names the file it came from; callers treat all of them
// as fatal startup errors.
func LoadConfiguration(serveDir, customPath string) (*Config, error) {
	raw := Configuration{}
	source := ""

	if customPath != "" {
		if err := decodeConfigFile(customPath, &raw); err != nil {
			return nil, err
		}
		source = customPath
	} else {
		for _, name := range configCandidates {
			path := filepath.Join(serveDir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := decodeConfigFile(path, &raw); err != nil {
				return nil, err
			}
			source = path
			break
		}
	}

	cfg, err := resolveConfiguration(serveDir, raw)
	if err != nil && source != "" {
		return nil, errors.Wrapf(err, "configuration file %s", source)
	}
	return cfg, err
}

func decodeConfigFile(path string, out *Configuration) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "configuration file %s", path)
	}

	switch filepath.Base(path) {
	case "now.json":
		var doc struct {
			Now struct {
				Static *Configuration `json:"static"`
			} `json:"now"`
		}
		if err := json.Unmarshal(contents, &doc); err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}
		if doc.Now.Static != nil {
			*out = *doc.Now.Static
		}
	case "package.json":
		var doc struct {
			Static *Configuration `json:"static"`
		}
		if err := json.Unmarshal(contents, &doc); err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}
		if doc.Static != nil {
			*out = *doc.Static
		}
	default:
		if err := json.Unmarshal(contents, out); err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}
	}

	if err := validate.Struct(out); err != nil {
		return errors.Wrapf(err, "validate %s", path)
	}
	return nil
}

// resolveConfiguration applies defaults, resolves the public root and
// compiles every pattern. Compilation failures are fatal.
func resolveConfiguration(serveDir string, raw Configuration) (*Config, error) {
	cfg := &Config{
		CleanUrls:        raw.CleanUrls,
		RenderSingle:     raw.RenderSingle,
		Symlinks:         raw.Symlinks,
		Etag:             true,
		DirectoryListing: true,
		Compress:         true,
		BodyLimit:        DefaultBodyLimit,
	}

	if raw.Etag != nil {
		cfg.Etag = *raw.Etag
	}
	if raw.DirectoryListing != nil {
		cfg.DirectoryListing = *raw.DirectoryListing
	}
	if raw.Compress != nil {
		cfg.Compress = *raw.Compress
	}
	if raw.TrailingSlash != nil {
		if *raw.TrailingSlash {
			cfg.TrailingSlash = TrailingSlashForce
		} else {
			cfg.TrailingSlash = TrailingSlashStrip
		}
	}

	public := serveDir
	if raw.Public != "" {
		if filepath.IsAbs(raw.Public) {
			public = raw.Public
		} else {
			public = filepath.Join(serveDir, raw.Public)
		}
	}
	abs, err := filepath.Abs(public)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve public directory %s", public)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Errorf("public directory does not exist: %s", abs)
	}
	if !fi.IsDir() {
		return nil, errors.Errorf("public path is not a directory: %s", abs)
	}
	cfg.Public = abs

	for _, rw := range raw.Rewrites {
		rule, err := pattern.Compile(rw.Source)
		if err != nil {
			return nil, errors.Wrap(err, "compile rewrite")
		}
		cfg.Rewrites = append(cfg.Rewrites, CompiledRewrite{Rule: rule, Destination: rw.Destination})
	}

	for _, rd := range raw.Redirects {
		rule, err := pattern.Compile(rd.Source)
		if err != nil {
			return nil, errors.Wrap(err, "compile redirect")
		}
		status := rd.Type
		if status == 0 {
			status = 301
		}
		cfg.Redirects = append(cfg.Redirects, CompiledRedirect{
			Rule:        rule,
			Destination: rd.Destination,
			Status:      status,
		})
	}

	for _, hd := range raw.Headers {
		rule, err := pattern.Compile(hd.Source)
		if err != nil {
			return nil, errors.Wrap(err, "compile headers rule")
		}
		cfg.Headers = append(cfg.Headers, CompiledHeaders{Rule: rule, Headers: hd.Headers})
	}

	unlisted := raw.Unlisted
	if len(unlisted) == 0 {
		unlisted = []string{".DS_Store", ".git"}
	}
	for _, source := range unlisted {
		g, err := glob.Compile(source, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "compile unlisted pattern %q", source)
		}
		cfg.Unlisted = append(cfg.Unlisted, g)
	}

	return cfg, nil
}
