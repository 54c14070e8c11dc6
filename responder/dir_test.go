package responder

import (
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
)

func setupListingDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644))
	assert.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	return dir
}

func TestServeDirJSON(t *testing.T) {
	dir := setupListingDir(t)

	resp, rej := ServeDir(dir, "/", true)
	assert.Nil(t, rej)
	assert.Equal(t, "application/json; charset=utf-8", resp.ContentType)

	var entries []listingEntry
	assert.NoError(t, json.Unmarshal(resp.Body, &entries))
	assert.Len(t, entries, 2)
	assert.Equal(t, "sub", entries[0].Name)
	assert.Equal(t, "dir", entries[0].Type)
	assert.Equal(t, "a.txt", entries[1].Name)
	assert.Equal(t, "file", entries[1].Type)
}

func TestServeDirHTML(t *testing.T) {
	dir := setupListingDir(t)

	resp, rej := ServeDir(dir, "/sub/../", false)
	assert.Nil(t, rej)
	assert.Equal(t, "text/html; charset=utf-8", resp.ContentType)
	assert.Contains(t, string(resp.Body), "a.txt")
	assert.Contains(t, string(resp.Body), "sub/")
}

func TestServeDirNotFound(t *testing.T) {
	_, rej := ServeDir("/nonexistent/dir", "/", true)
	assert.NotNil(t, rej)
}
