package pathresolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanSimpleFile(t *testing.T) {
	r, ok := Clean("/var/www", "/index.html")
	assert.True(t, ok)
	assert.Equal(t, "/var/www/index.html", r.FSPath)
	assert.False(t, r.IsDir)
}

func TestCleanDirectoryTrailingSlash(t *testing.T) {
	r, ok := Clean("/var/www", "/assets/")
	assert.True(t, ok)
	assert.Equal(t, "/var/www/assets", r.FSPath)
	assert.True(t, r.IsDir)
}

func TestCleanRoot(t *testing.T) {
	r, ok := Clean("/var/www", "/")
	assert.True(t, ok)
	assert.Equal(t, "/var/www", r.FSPath)
	assert.True(t, r.IsDir)
}

func TestCleanRejectsTraversal(t *testing.T) {
	_, ok := Clean("/var/www", "/../etc/passwd")
	assert.False(t, ok)
}

func TestCleanRejectsDeepTraversal(t *testing.T) {
	_, ok := Clean("/var/www", "/a/b/../../../etc/passwd")
	assert.False(t, ok)
}

func TestCleanCollapsesDotSegments(t *testing.T) {
	r, ok := Clean("/var/www", "/a/./b/../c")
	assert.True(t, ok)
	assert.Equal(t, "/var/www/a/c", r.FSPath)
}

func TestCleanRejectsSiblingPrefixEscape(t *testing.T) {
	// "/var/www-evil" shares the "/var/www" byte prefix but is not
	// contained under it; Clean must reject the ".." that reaches it.
	_, ok := Clean("/var/www", "/../www-evil/x")
	assert.False(t, ok)
}
