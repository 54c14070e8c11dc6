package conf

import "time"

// Default returns a Bootstrap populated with spec §6's documented defaults.
// Callers merge a user-supplied TOML document over this with mergo so a
// config file only needs to set the keys it wants to change.
func Default() *Bootstrap {
	return &Bootstrap{
		PidFile: "originserver.pid",
		Logger: &Logger{
			Level:      "info",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		},
		Server: &Server{
			Addr:           "127.0.0.1:7878",
			BindLocalOnly:  true,
			WWWRoot:        "./static/",
			WorkerThreads:  0, // 0 => runtime.NumCPU()
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxHeaderBytes: 16 * 1024,
			AccessLog:      &AccessLog{},
		},
		Cache: &Cache{
			MaxEntries:   10,
			TTL:          60 * time.Second,
			MaxFileBytes: 1 << 20,
		},
		PHP: &PHP{
			Interpreter:    "php-cgi",
			Timeout:        5 * time.Second,
			MaxOutputBytes: 8 << 20,
		},
	}
}
