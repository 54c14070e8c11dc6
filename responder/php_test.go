package responder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCGIOutputWithHeaders(t *testing.T) {
	raw := []byte("Content-Type: text/plain\r\nX-Custom: yes\r\n\r\nhello")
	resp, rej := parseCGIOutput(raw)
	assert.Nil(t, rej)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "text/plain", resp.ContentType)
	assert.Equal(t, "yes", resp.Headers["X-Custom"])
	assert.Equal(t, []byte("hello"), resp.Body)
}

func TestParseCGIOutputWithExplicitStatus(t *testing.T) {
	raw := []byte("Status: 404 Not Found\r\n\r\nmissing")
	resp, rej := parseCGIOutput(raw)
	assert.Nil(t, rej)
	assert.Equal(t, 404, resp.Status)
}

func TestParseCGIOutputPromotesBareLocationTo302(t *testing.T) {
	raw := []byte("Location: /elsewhere\r\n\r\n")
	resp, rej := parseCGIOutput(raw)
	assert.Nil(t, rej)
	assert.Equal(t, 302, resp.Status)
	assert.Equal(t, "/elsewhere", resp.Headers["Location"])
}

func TestParseCGIOutputNoHeaderBlock(t *testing.T) {
	raw := []byte("<html>no headers here</html>")
	resp, rej := parseCGIOutput(raw)
	assert.Nil(t, rej)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, raw, resp.Body)
}

func TestBuildCGIEnvMirrorsHeadersAndAppliesDenyList(t *testing.T) {
	env := buildCGIEnv(PhpRequest{
		ScriptFilename: "/var/www/index.php",
		Method:         "GET",
		QueryString:    "a=1",
		Headers: map[string]string{
			"cookie":     "secret=1",
			"user-agent": "test",
		},
		DenyHeaders: []string{"Cookie"},
	}, nil)

	joined := strings.Join(env, "\n")
	assert.Contains(t, joined, "HTTP_USER_AGENT=test")
	assert.NotContains(t, joined, "HTTP_COOKIE")
}
