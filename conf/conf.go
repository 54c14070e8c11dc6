// Package conf defines the bootstrap configuration tree loaded from TOML.
package conf

import (
	"time"

	"github.com/nodewire/originserver/pkg/mapstruct"
)

// Bootstrap is the top-level configuration document.
type Bootstrap struct {
	// Hostname overrides the app identity reported in startup logs and
	// the admin /internal/version payload; empty falls back to
	// os.Hostname().
	Hostname string  `toml:"hostname"`
	PidFile  string  `toml:"pidfile"`
	Logger   *Logger `toml:"logger"`
	Server   *Server `toml:"server"`
	Cache    *Cache  `toml:"cache"`
	PHP      *PHP    `toml:"php"`
}

// Logger configures the zap-backed logging facade.
type Logger struct {
	Level      string `toml:"level"`
	Path       string `toml:"path"`
	Caller     bool   `toml:"caller"`
	MaxSize    int    `toml:"max_size"`
	MaxAge     int    `toml:"max_age"`
	MaxBackups int    `toml:"max_backups"`
	Compress   bool   `toml:"compress"`
}

// Server holds the listener and per-connection timeout configuration.
//
// Field names track spec §6's TOML key table directly so config.Scan
// can decode a user's file with no translation layer.
type Server struct {
	Addr               string        `toml:"addr"`
	BindLocalOnly      bool          `toml:"bind_local_only"`
	WWWRoot            string        `toml:"www_root"`
	WorkerThreads      int           `toml:"worker_threads"`
	ReadTimeout        time.Duration `toml:"read_timeout_ms"`
	WriteTimeout       time.Duration `toml:"write_timeout_ms"`
	MaxHeaderBytes     int           `toml:"max_header_bytes"`
	AccessLog          *AccessLog    `toml:"access_log"`
	LocalAPIAllowHosts []string      `toml:"local_api_allow_hosts"`
}

// AccessLog configures the rotated access-log sink.
type AccessLog struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Cache configures the in-memory LRU content cache (spec §4.D).
type Cache struct {
	MaxEntries    int           `toml:"cache_size"`
	TTL           time.Duration `toml:"cache_ttl_seconds"`
	MaxFileBytes  int64         `toml:"cache_max_file_bytes"`
}

// PHP configures CGI-style delegation to an external interpreter (spec §4.G).
//
// Env is typed loosely (map[string]any, not map[string]string) because
// TOML lets an operator write `timeout = 5` or `debug = true` under
// [php.env] without quoting; pkg/mapstruct decodes it into the
// responder's map[string]string at startup (see ResolveEnv).
type PHP struct {
	Interpreter    string         `toml:"php_interpreter"`
	Timeout        time.Duration  `toml:"timeout_ms"`
	MaxOutputBytes int64          `toml:"max_output_bytes"`
	Env            map[string]any `toml:"env"`
	EnvDenyHeaders []string       `toml:"env_deny_headers"`
}

// ResolveEnv decodes Env into the string-valued map the PHP responder's
// CGI environment needs, via pkg/mapstruct so non-string TOML scalars
// (ints, bools) are coerced rather than rejected.
func (p *PHP) ResolveEnv() (map[string]string, error) {
	if len(p.Env) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(p.Env))
	if err := mapstruct.Decode(p.Env, &out); err != nil {
		return nil, err
	}
	return out, nil
}
