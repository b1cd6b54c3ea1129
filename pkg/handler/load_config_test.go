package handler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultsWithoutConfigFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfiguration(dir, "")
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Public)
	assert.False(t, cfg.CleanUrls)
	assert.True(t, cfg.Etag)
	assert.True(t, cfg.DirectoryListing)
	assert.True(t, cfg.Compress)
	assert.Equal(t, TrailingSlashPreserve, cfg.TrailingSlash)
	assert.Empty(t, cfg.Rewrites)
	assert.Len(t, cfg.Unlisted, 2) // .DS_Store and .git
}

func TestLoadServeJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "public"), 0o755))
	writeConfig(t, dir, "serve.json", `{
		"public": "public",
		"cleanUrls": true,
		"rewrites": [{"source": "**", "destination": "/index.html"}]
	}`)

	cfg, err := LoadConfiguration(dir, "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "public"), cfg.Public)
	assert.True(t, cfg.CleanUrls)
	require.Len(t, cfg.Rewrites, 1)
	assert.Equal(t, "/index.html", cfg.Rewrites[0].Destination)
	assert.True(t, cfg.Rewrites[0].Rule.MatchString("/anything/at/all"))
}

func TestCustomConfigPathNotFound(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfiguration(dir, filepath.Join(dir, "nonexistent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent.json")
}

func TestMalformedJSONIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "serve.json", "{ invalid json }")

	_, err := LoadConfiguration(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serve.json")
}

func TestServeJSONWinsOverPackageJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "serve.json", `{"cleanUrls": true, "etag": false}`)
	writeConfig(t, dir, "package.json", `{"static": {"cleanUrls": false, "etag": true}}`)

	cfg, err := LoadConfiguration(dir, "")
	require.NoError(t, err)

	assert.True(t, cfg.CleanUrls)
	assert.False(t, cfg.Etag)
}

func TestNowJSONNestedSection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dist"), 0o755))
	writeConfig(t, dir, "now.json", `{
		"now": {"static": {"public": "dist", "cleanUrls": true}}
	}`)

	cfg, err := LoadConfiguration(dir, "")
	require.NoError(t, err)

	assert.True(t, cfg.CleanUrls)
	assert.Equal(t, filepath.Join(dir, "dist"), cfg.Public)
}

func TestNowJSONWithoutWrapperFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "now.json", `{"static": {"cleanUrls": true}}`)

	cfg, err := LoadConfiguration(dir, "")
	require.NoError(t, err)
	assert.False(t, cfg.CleanUrls)
}

func TestPackageJSONStaticSection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build"), 0o755))
	writeConfig(t, dir, "package.json", `{
		"name": "my-app",
		"version": "1.0.0",
		"static": {"public": "build", "renderSingle": true, "symlinks": true}
	}`)

	cfg, err := LoadConfiguration(dir, "")
	require.NoError(t, err)

	assert.True(t, cfg.RenderSingle)
	assert.True(t, cfg.Symlinks)
	assert.Equal(t, filepath.Join(dir, "build"), cfg.Public)
}

func TestInvalidRedirectStatusRejected(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "serve.json", `{
		"redirects": [{"source": "/old", "destination": "/new", "type": 200}]
	}`)

	_, err := LoadConfiguration(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serve.json")
}

func TestAcceptedRedirectStatuses(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "serve.json", `{
		"redirects": [
			{"source": "/a", "destination": "/w", "type": 301},
			{"source": "/b", "destination": "/x", "type": 302},
			{"source": "/c", "destination": "/y", "type": 307},
			{"source": "/d", "destination": "/z", "type": 308}
		]
	}`)

	cfg, err := LoadConfiguration(dir, "")
	require.NoError(t, err)
	require.Len(t, cfg.Redirects, 4)
	assert.Equal(t, 301, cfg.Redirects[0].Status)
	assert.Equal(t, 308, cfg.Redirects[3].Status)
}

func TestEmptyRewriteRuleRejected(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "serve.json", `{
		"rewrites": [{"source": "", "destination": "/index.html"}]
	}`)

	_, err := LoadConfiguration(dir, "")
	assert.Error(t, err)
}

func TestNonexistentPublicDirectoryRejected(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "serve.json", `{"public": "missing-dir"}`)

	_, err := LoadConfiguration(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing-dir")
}

func TestAbsolutePublicDirectory(t *testing.T) {
	dir := t.TempDir()
	public := filepath.Join(dir, "absolute_public")
	require.NoError(t, os.MkdirAll(public, 0o755))
	writeConfig(t, dir, "serve.json", `{"public": "`+public+`"}`)

	cfg, err := LoadConfiguration(dir, "")
	require.NoError(t, err)
	assert.Equal(t, public, cfg.Public)
}

func TestTrailingSlashTriState(t *testing.T) {
	dir := t.TempDir()

	writeConfig(t, dir, "serve.json", `{"trailingSlash": true}`)
	cfg, err := LoadConfiguration(dir, "")
	require.NoError(t, err)
	assert.Equal(t, TrailingSlashForce, cfg.TrailingSlash)

	writeConfig(t, dir, "serve.json", `{"trailingSlash": false}`)
	cfg, err = LoadConfiguration(dir, "")
	require.NoError(t, err)
	assert.Equal(t, TrailingSlashStrip, cfg.TrailingSlash)
}

func TestComplexConfiguration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dist"), 0o755))
	writeConfig(t, dir, "serve.json", `{
		"public": "dist",
		"cleanUrls": true,
		"trailingSlash": true,
		"renderSingle": true,
		"symlinks": true,
		"etag": false,
		"directoryListing": false,
		"rewrites": [
			{"source": "/api/*", "destination": "/api/index.html"},
			{"source": "**", "destination": "/index.html"}
		],
		"redirects": [
			{"source": "/old-api/(.*)", "destination": "/api/$1", "type": 301},
			{"source": "/legacy", "destination": "/", "type": 302}
		],
		"headers": [
			{
				"source": "**/*.@(jpg|jpeg|png|gif)",
				"headers": [
					{"key": "Cache-Control", "value": "max-age=86400"},
					{"key": "X-Content-Type-Options", "value": "nosniff"}
				]
			}
		],
		"unlisted": ["*.log", "private"]
	}`)

	cfg, err := LoadConfiguration(dir, "")
	require.NoError(t, err)

	assert.True(t, cfg.CleanUrls)
	assert.Equal(t, TrailingSlashForce, cfg.TrailingSlash)
	assert.True(t, cfg.RenderSingle)
	assert.True(t, cfg.Symlinks)
	assert.False(t, cfg.Etag)
	assert.False(t, cfg.DirectoryListing)
	assert.Len(t, cfg.Rewrites, 2)
	assert.Len(t, cfg.Redirects, 2)
	require.Len(t, cfg.Headers, 1)
	assert.Len(t, cfg.Headers[0].Headers, 2)
	assert.Len(t, cfg.Unlisted, 2)
	assert.True(t, cfg.Headers[0].Rule.MatchString("/img/photo.jpg"))
}
