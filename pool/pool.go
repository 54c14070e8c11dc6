// Package pool implements spec §4.I: a bounded FIFO queue of accepted
// connections drained by a fixed set of long-lived workers, with
// backpressure on submission and a bounded graceful drain on shutdown.
package pool

import (
	"context"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulbellamy/ratecounter"

	"github.com/nodewire/originserver/contrib/log"
	"github.com/nodewire/originserver/metrics"
)

// Handler processes one accepted connection to completion.
type Handler func(ctx context.Context, c net.Conn)

// Pool is a bounded worker pool over accepted net.Conns.
type Pool struct {
	workers int
	jobs    chan net.Conn
	handler Handler

	active  atomic.Int64
	counter *ratecounter.RateCounter

	wg       sync.WaitGroup
	draining atomic.Bool
}

// New builds a Pool with workerThreads long-lived workers and a queue
// capacity of workerThreads*4, per spec §4.I.
func New(workerThreads int, handler Handler) *Pool {
	if workerThreads <= 0 {
		workerThreads = runtime.NumCPU()
	}
	return &Pool{
		workers: workerThreads,
		jobs:    make(chan net.Conn, workerThreads*4),
		handler: handler,
		counter: ratecounter.NewRateCounter(time.Second),
	}
}

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for c := range p.jobs {
		p.active.Add(1)
		p.counter.Incr(1)
		metrics.ActiveConnections.Inc()
		p.handler(ctx, c)
		metrics.ActiveConnections.Dec()
		p.active.Add(-1)
	}
}

// Submit enqueues c, blocking the caller (the acceptor) when the queue
// is full — this is spec §4.I's backpressure mechanism. It is a no-op
// that closes c once shutdown has begun.
func (p *Pool) Submit(c net.Conn) {
	if p.draining.Load() {
		_ = c.Close()
		return
	}
	p.jobs <- c
}

// ActiveConnections reports the number of connections currently being
// processed, for the admin status() call.
func (p *Pool) ActiveConnections() int64 { return p.active.Load() }

// Throughput reports connections workers started processing in the
// last second.
func (p *Pool) Throughput() int64 { return p.counter.Rate() }

// Shutdown stops accepting new submissions, drains outstanding jobs,
// and returns once every worker has exited or deadline elapses.
func (p *Pool) Shutdown(deadline time.Duration) {
	p.draining.Store(true)
	close(p.jobs)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(deadline):
		log.Warnf("worker pool shutdown deadline of %s exceeded, abandoning outstanding jobs", deadline)
	}
}
