// Package server wires together the acceptor, the worker pool
// (pool.Pool), and an admin HTTP mux, following the shape of the
// teacher's server/server.go: a tableflip-owned listener, a
// localhost-only admin surface, and a Start/Stop pair satisfying
// transport.Server.
//
// Unlike the teacher, the public-facing listener is NOT served via
// net/http.Server — spec §2 requires a hand-rolled byte-buffer reader
// and request parser (conn.ReadHeaderBlock / conn.ParseHeaderBlock)
// instead of net/http's request decoding, so Start runs its own accept
// loop over net.Listener and hands each connection to conn.HandleConnection
// through pool.Pool. The admin surface (§6's status/shutdown/version plus
// /metrics) is small enough that net/http is still the right tool there.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cloudflare/tableflip"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.uber.org/zap"

	"github.com/nodewire/originserver/cache"
	"github.com/nodewire/originserver/conf"
	"github.com/nodewire/originserver/conn"
	"github.com/nodewire/originserver/contrib/log"
	"github.com/nodewire/originserver/contrib/transport"
	"github.com/nodewire/originserver/internal/constants"
	"github.com/nodewire/originserver/metrics"
	"github.com/nodewire/originserver/pkg/x/runtime"
	"github.com/nodewire/originserver/pool"
	"github.com/nodewire/originserver/responder"
)

// HTTPServer is the origin server's public listener plus its admin mux.
type HTTPServer struct {
	config *conf.Bootstrap
	flip   *tableflip.Upgrader
	cache  *cache.Cache

	listener net.Listener
	pool     *pool.Pool

	phpEnv map[string]string

	accessLog *zap.Logger

	admin *http.Server

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

var _ transport.Server = (*HTTPServer)(nil)

// New builds an HTTPServer from bc, owning flip's graceful-restart
// listener and a freshly constructed content cache.
func New(flip *tableflip.Upgrader, bc *conf.Bootstrap) *HTTPServer {
	s := &HTTPServer{
		config:     bc,
		flip:       flip,
		cache:      cache.New(bc.Cache.MaxEntries, bc.Cache.TTL),
		shutdownCh: make(chan struct{}),
	}

	if al := bc.Server.AccessLog; al != nil && al.Enabled {
		if al.Path == "" {
			log.Warnf("access_log.path is empty, writing access log to stdout")
		}
		s.accessLog = log.NewAccessLog(al.Path)
	}

	env, err := bc.PHP.ResolveEnv()
	if err != nil {
		log.Warnf("failed to decode php.env, PHP children get no extra env vars: %v", err)
	}
	s.phpEnv = env

	s.pool = pool.New(bc.Server.WorkerThreads, s.handle)
	s.admin = &http.Server{Handler: s.newAdminMux()}
	return s
}

func (s *HTTPServer) handle(ctx context.Context, c net.Conn) {
	conn.HandleConnection(ctx, c, conn.Config{
		WWWRoot:           s.config.Server.WWWRoot,
		ServerName:        constants.AppName + "/1",
		Deadlines:         conn.ReadDeadlines{PerRead: s.config.Server.ReadTimeout, Total: s.config.Server.WriteTimeout},
		Cache:             s.cache,
		MaxCacheableBytes: s.config.Cache.MaxFileBytes,
		MaxHeaderBytes:    s.config.Server.MaxHeaderBytes,
		PhpOptions: responder.PhpOptions{
			Interpreter:    s.config.PHP.Interpreter,
			Timeout:        s.config.PHP.Timeout,
			MaxOutputBytes: s.config.PHP.MaxOutputBytes,
			ExtraEnv:       s.phpEnv,
			EnvDenyHeaders: s.config.PHP.EnvDenyHeaders,
		},
		OnComplete: s.logAccess,
	})
}

// logAccess writes one access-log line per finished connection, a
// no-op when access logging was never enabled in config.
func (s *HTTPServer) logAccess(m *metrics.RequestMetric) {
	if s.accessLog == nil {
		return
	}
	s.accessLog.Info(m.Line())
}

// ApplyConfig hot-swaps the parts of a SIGHUP-triggered config reload
// that can't just fall out of s.config being re-scanned in place: the
// content cache's size and TTL are baked into the cache.Cache at
// construction time, so they need an explicit resize. WWWRoot and the
// other fields conn.Config reads straight off s.config pick up the
// reload automatically since handle() rebuilds conn.Config per
// connection.
func (s *HTTPServer) ApplyConfig(bc *conf.Bootstrap) {
	s.cache.SetLimits(bc.Cache.MaxEntries, bc.Cache.TTL)
	log.Infof("config reloaded: cache max_entries=%d ttl=%s, www_root=%s", bc.Cache.MaxEntries, bc.Cache.TTL, bc.Server.WWWRoot)
}

// Start implements transport.Server: it binds (via tableflip, so a
// SIGHUP-triggered restart hands the fd to the new process without
// dropping connections), launches the worker pool, and accepts until
// the listener closes.
func (s *HTTPServer) Start(ctx context.Context) error {
	ln, err := s.flip.Listen("tcp", s.listenAddr())
	if err != nil {
		return err
	}
	s.listener = ln

	if err := s.flip.Ready(); err != nil {
		return err
	}

	s.pool.Start(ctx)

	log.Infof("origin server listening on %s", ln.Addr())

	go s.serveAdmin()

	for {
		c, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warnf("accept failed: %v", err)
			continue
		}
		s.pool.Submit(c)
	}
}

// listenAddr forces the public listener onto loopback when
// bind_local_only is set, overriding whatever host Addr names so an
// operator can't accidentally expose a dev instance beyond localhost.
func (s *HTTPServer) listenAddr() string {
	if !s.config.Server.BindLocalOnly {
		return s.config.Server.Addr
	}
	_, port, err := net.SplitHostPort(s.config.Server.Addr)
	if err != nil {
		return s.config.Server.Addr
	}
	return net.JoinHostPort("127.0.0.1", port)
}

// adminHosts is always at least loopback, per spec §9's shared-mutable-
// state note that admin state must be reachable before the acceptor
// starts; LocalAPIAllowHosts extends it to additional trusted hosts
// (e.g. a sidecar on the same pod network) without exposing it publicly.
func (s *HTTPServer) adminHosts() []string {
	hosts := []string{"127.0.0.1"}
	hosts = append(hosts, s.config.Server.LocalAPIAllowHosts...)
	return hosts
}

func (s *HTTPServer) serveAdmin() {
	port := adminPort(s.config.Server.Addr)

	var listeners []net.Listener
	for _, host := range s.adminHosts() {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
		if err != nil {
			log.Warnf("admin listener on %s failed: %v", host, err)
			continue
		}
		log.Infof("admin interface listening on %s", ln.Addr())
		listeners = append(listeners, ln)
	}

	var wg sync.WaitGroup
	for _, ln := range listeners {
		wg.Add(1)
		go func(ln net.Listener) {
			defer wg.Done()
			if err := s.admin.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("admin server exited: %v", err)
			}
		}(ln)
	}
	wg.Wait()
}

// adminPort derives the admin listener's port from the main listener's
// port + 1, so operators don't need a second explicit config key.
func adminPort(mainAddr string) string {
	_, portStr, err := net.SplitHostPort(mainAddr)
	if err != nil {
		return "7879"
	}
	n, err := strconv.Atoi(portStr)
	if err != nil {
		return "7879"
	}
	return strconv.Itoa(n + 1)
}

// Stop implements transport.Server.
func (s *HTTPServer) Stop(ctx context.Context) error {
	var errs []error

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	deadline := 10 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			deadline = d
		}
	}
	s.pool.Shutdown(deadline)

	if err := s.admin.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	s.cache.Close()

	if s.accessLog != nil {
		_ = s.accessLog.Sync()
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ShutdownRequested exposes the admin `/internal/shutdown` trigger so
// the caller's contrib/app.App can tear the whole process down.
func (s *HTTPServer) ShutdownRequested() <-chan struct{} { return s.shutdownCh }

func (s *HTTPServer) newAdminMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/internal/status", func(w http.ResponseWriter, r *http.Request) {
		payload, _ := json.Marshal(map[string]any{
			"active_connections": s.pool.ActiveConnections(),
			"cached_entries":     s.cache.Len(),
			"throughput_per_sec": s.pool.Throughput(),
		})
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	})

	mux.HandleFunc("/internal/version", func(w http.ResponseWriter, r *http.Request) {
		payload, _ := json.Marshal(runtime.BuildInfo)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	})

	mux.HandleFunc("/internal/shutdown", func(w http.ResponseWriter, r *http.Request) {
		s.shutdownOnce.Do(func() { close(s.shutdownCh) })
		w.WriteHeader(http.StatusAccepted)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	return mux
}
