// Package config is a tiny generic config loader: a list of Sources is
// scanned into a typed Bootstrap struct, and a SIGHUP re-scans it and
// notifies registered Observers. Adapted from the teacher's
// contrib/config/config.go; its YAML decoder is swapped for TOML since
// spec §6 specifies TOML as the on-disk configuration format.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"

	"github.com/nodewire/originserver/contrib/log"
)

// Observer is notified with the freshly re-scanned Bootstrap after a reload.
type Observer[T any] func(string, *T)

// Config loads and hot-reloads a typed bootstrap document.
type Config[T any] interface {
	Scan(v *T) error
	Watch(key string, o Observer[T]) error
	Close() error
}

type Option func(*options)

type options struct {
	sources []Source
}

// WithSource sets the sources a Config scans, in order.
func WithSource(s ...Source) Option {
	return func(o *options) { o.sources = s }
}

type config[T any] struct {
	opts   *options
	stop   chan struct{}
	signal chan os.Signal

	observers map[string][]Observer[T]
	bc        *T
}

// New builds a Config and starts its SIGHUP reload watcher.
func New[T any](opts ...Option) Config[T] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	c := &config[T]{
		opts:      o,
		stop:      make(chan struct{}, 1),
		signal:    make(chan os.Signal, 1),
		observers: make(map[string][]Observer[T]),
	}

	go c.tick()

	return c
}

func (c *config[T]) Scan(v *T) error {
	c.bc = v
	for _, source := range c.opts.sources {
		files, err := source.Load()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("config file not found: %w", err)
			}
			return err
		}

		for _, file := range files {
			if file.Value == nil {
				continue
			}
			log.Debugf("[config] load file: %s format: %s", file.Key, file.Format)
			if err := toml.Unmarshal(file.Value, v); err != nil {
				log.Errorf("[config] unmarshal file: %s error: %s", file.Key, err)
				return err
			}
		}
	}
	return nil
}

func (c *config[T]) Watch(key string, o Observer[T]) error {
	c.observers[key] = append(c.observers[key], o)
	return nil
}

func (c *config[T]) Close() error {
	c.stop <- struct{}{}
	close(c.stop)
	close(c.signal)
	return nil
}

func (c *config[T]) tick() {
	signal.Notify(c.signal, syscall.SIGHUP)

	for {
		select {
		case <-c.stop:
			return
		case <-c.signal:
			log.Debug("[config] received SIGHUP, reloading")
			if err := c.Scan(c.bc); err != nil {
				log.Errorf("[config] reload failed: %s", err)
				continue
			}
			for k, observers := range c.observers {
				for _, observer := range observers {
					observer(k, c.bc)
				}
			}
		}
	}
}
