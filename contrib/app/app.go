// Package app is a minimal process runner: it starts a set of
// transport.Servers, waits for SIGINT/SIGTERM (or an explicit
// Shutdown call from the admin interface), and stops them all with a
// bounded grace period. It plays the same role main.go's `kratos.New(...)
// .Run()` call plays in the teacher repo, rebuilt locally since the
// teacher's own contrib/kratos package was not available to copy.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nodewire/originserver/contrib/log"
	"github.com/nodewire/originserver/contrib/transport"
)

// Option configures an App.
type Option func(*App)

// ID sets the instance identifier used only for log lines.
func ID(id string) Option { return func(a *App) { a.id = id } }

// Name sets the application name used only for log lines.
func Name(name string) Option { return func(a *App) { a.name = name } }

// Version sets the build version used only for log lines.
func Version(v string) Option { return func(a *App) { a.version = v } }

// StopTimeout bounds how long Stop waits for servers to drain.
func StopTimeout(d time.Duration) Option { return func(a *App) { a.stopTimeout = d } }

// Servers registers the transport.Servers the app owns.
func Servers(servers ...transport.Server) Option {
	return func(a *App) { a.servers = servers }
}

// App runs a fixed set of transport.Servers to completion.
type App struct {
	id          string
	name        string
	version     string
	stopTimeout time.Duration
	servers     []transport.Server

	mu       sync.Mutex
	cancel   context.CancelFunc
	shutdown chan struct{}
}

// New builds an App from opts.
func New(opts ...Option) *App {
	a := &App{
		stopTimeout: 30 * time.Second,
		shutdown:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every server, blocks until a termination signal or an
// explicit Shutdown() call arrives, then stops every server within
// StopTimeout.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	log.Infof("%s/%s (%s) starting", a.name, a.version, a.id)

	var wg sync.WaitGroup
	errCh := make(chan error, len(a.servers))

	for _, srv := range a.servers {
		srv := srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received signal %s, shutting down", sig)
	case <-a.shutdown:
		log.Infof("shutdown requested via admin interface")
	case err := <-errCh:
		log.Errorf("server exited early: %s", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), a.stopTimeout)
	defer stopCancel()

	var errs []error
	for _, srv := range a.servers {
		if err := srv.Stop(stopCtx); err != nil {
			errs = append(errs, err)
		}
	}

	cancel()
	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Shutdown triggers the same graceful stop sequence Run's signal
// handler would, used by the admin `/internal/shutdown` endpoint.
func (a *App) Shutdown() {
	select {
	case <-a.shutdown:
	default:
		close(a.shutdown)
	}
}
