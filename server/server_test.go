package server

import (
	"testing"
	"time"

	"github.com/cloudflare/tableflip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodewire/originserver/cache"
	"github.com/nodewire/originserver/conf"
)

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()
	flip, err := tableflip.New(tableflip.Options{})
	require.NoError(t, err)
	t.Cleanup(flip.Stop)

	bc := conf.Default()
	bc.Server.Addr = ":8080"
	bc.Cache.MaxEntries = 4
	bc.Cache.TTL = time.Minute
	return New(flip, bc)
}

func TestListenAddrDefaultsToConfiguredHost(t *testing.T) {
	s := newTestServer(t)
	s.config.Server.BindLocalOnly = false
	assert.Equal(t, ":8080", s.listenAddr())
}

func TestListenAddrForcesLoopbackWhenBindLocalOnly(t *testing.T) {
	s := newTestServer(t)
	s.config.Server.BindLocalOnly = true
	assert.Equal(t, "127.0.0.1:8080", s.listenAddr())
}

func TestAdminPortIsMainPortPlusOne(t *testing.T) {
	assert.Equal(t, "8081", adminPort(":8080"))
	assert.Equal(t, "7879", adminPort("not-an-addr"))
}

func TestAdminHostsAlwaysIncludesLoopback(t *testing.T) {
	s := newTestServer(t)
	s.config.Server.LocalAPIAllowHosts = []string{"10.0.0.5"}
	hosts := s.adminHosts()
	assert.Contains(t, hosts, "127.0.0.1")
	assert.Contains(t, hosts, "10.0.0.5")
}

func TestApplyConfigResizesCache(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 4; i++ {
		s.cache.Insert(cache.FingerprintKey{Method: "GET", Path: string(rune('a' + i))}, &cache.Artifact{})
	}
	assert.Equal(t, 4, s.cache.Len())

	reloaded := conf.Default()
	reloaded.Cache.MaxEntries = 1
	reloaded.Cache.TTL = time.Minute
	s.ApplyConfig(reloaded)

	s.cache.Insert(cache.FingerprintKey{Method: "GET", Path: "/overflow-1"}, &cache.Artifact{})
	s.cache.Insert(cache.FingerprintKey{Method: "GET", Path: "/overflow-2"}, &cache.Artifact{})
	assert.Equal(t, 1, s.cache.Len())
}
